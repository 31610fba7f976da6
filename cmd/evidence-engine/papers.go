// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/store"
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Import and export paper records",
	Long: `Papers moves bibliographic records in and out of the local store.
Records are YAML documents holding a single paper or a list of papers with
pmid, title, abstract, publication_year, and publication_types fields.`,
}

// --- import subcommand ---

var papersImportCmd = &cobra.Command{
	Use:   "import <files...>",
	Short: "Import paper YAML files into the store",
	Long: `Import upserts every paper in the given YAML files. PMIDs are normalized.
A paper whose title, abstract, or publication types changed loses its cached
classification and link markers so the next run processes it again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPapersImport,
}

func runPapersImport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var total store.ImportSummary
	for _, path := range args {
		papers, err := store.ReadPapersFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: %d papers\n", path, len(papers))

		s, err := a.store.ImportPapers(cmd.Context(), papers, os.Stdout)
		total.Inserted += s.Inserted
		total.Updated += s.Updated
		total.Failed += s.Failed
		if err != nil {
			return err
		}
	}

	if len(args) > 1 {
		fmt.Fprintf(os.Stdout, "\n%d files, %d papers: imported %d, updated %d, failed %d\n",
			len(args), total.Total(), total.Inserted, total.Updated, total.Failed)
	}
	if total.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed import", total.Failed)
	}
	return nil
}

// --- export subcommand ---

var papersExportCmd = &cobra.Command{
	Use:   "export [pmids...]",
	Short: "Write stored papers as YAML to stdout",
	Long: `Export writes the stored papers, with their cached classifications and
link markers, as a YAML list. The output can be imported again.`,
	RunE: runPapersExport,
}

func runPapersExport(cmd *cobra.Command, args []string) error {
	pmids, err := parsePMIDs(args)
	if err != nil {
		return err
	}
	year, _ := cmd.Flags().GetInt("year")
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.ExportPapers(cmd.Context(), os.Stdout, store.PaperFilter{Year: year, PMIDs: pmids, Limit: limit})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported %d papers\n", n)
	return nil
}

func init() {
	papersExportCmd.Flags().Int("year", 0, "only papers published in this year")
	papersExportCmd.Flags().Int("limit", 0, "maximum papers to export (0 = all)")

	papersCmd.AddCommand(papersImportCmd)
	papersCmd.AddCommand(papersExportCmd)

	rootCmd.AddCommand(papersCmd)
}
