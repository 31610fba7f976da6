// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded batch runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batch runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-10s  %-11s  %-16s  %-10s  %-9s  %-6s  %s\n",
		"ID", "Kind", "Status", "Started", "Duration", "Processed", "Failed", "Links")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "%-36s  %-10s  %-11s  %-16s  %-10s  %-9s  %-6d  %d\n",
			r.ID, r.Kind, r.Status, r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Duration.Round(time.Second),
			fmt.Sprintf("%d/%d", r.Counters.Processed, r.Counters.Total),
			r.Counters.Failed, r.Counters.LinksCreated)
	}
	return nil
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.store.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return err
	}
	if run.Status == types.RunFailed {
		fmt.Fprintf(os.Stderr, "run failed: %s\n", run.ErrorMessage)
	}
	return nil
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "maximum runs to list (0 = all)")
	runsListCmd.Flags().Bool("json", false, "output runs as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	rootCmd.AddCommand(runsCmd)
}
