// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/evidence-engine/internal/batch"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run classification and linking over the paper store",
	Long: `Run processes every paper in scope and records the run with its counters.
Kinds:

  classify     assign study design labels
  link         link papers to the trials they mention
  all          classify, then link
  references   link papers cited by stored trial registrations

Papers that were already classified or linked are skipped unless --force is
given. A failure on one paper is counted and the run continues. The command
exits non-zero when the run ends failed or is interrupted.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	year, _ := cmd.Flags().GetInt("year")
	force, _ := cmd.Flags().GetBool("force")
	pmidArgs, _ := cmd.Flags().GetStringSlice("pmids")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	pmids, err := parsePMIDs(pmidArgs)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl := batch.New(a.store, a.classifier, a.linker, a.cfg.Batch, a.metrics, a.logger)
	scope := batch.Scope{
		Kind:  types.RunKind(kind),
		Year:  year,
		PMIDs: pmids,
		Force: force,
	}

	progress := os.Stdout
	if jsonOutput {
		progress = os.Stderr
	}
	run, runErr := ctrl.Run(cmd.Context(), scope, progress)
	a.writeMetrics()

	if jsonOutput && run != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return err
		}
	}
	return runErr
}

func init() {
	runCmd.Flags().String("kind", string(types.RunAll), "run kind: classify, link, all, references")
	runCmd.Flags().Int("year", 0, "only papers published in this year")
	runCmd.Flags().Int("workers", 0, "papers processed concurrently (overrides batch.workers)")
	runCmd.Flags().Bool("force", false, "reprocess papers that were already classified or linked")
	runCmd.Flags().StringSlice("pmids", nil, "only these PMIDs (comma-separated)")
	runCmd.Flags().Bool("json", false, "print the final run record as JSON")

	_ = viper.BindPFlag("batch.workers", runCmd.Flags().Lookup("workers"))

	rootCmd.AddCommand(runCmd)
}
