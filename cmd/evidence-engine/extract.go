// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Find trial identifiers and PMIDs in a title and abstract",
	Long: `Extract scans a title and abstract for ClinicalTrials.gov identifiers and
PubMed IDs and prints each distinct identifier with the text around its first
mention.

Strict mode accepts only canonical NCT numbers and PMIDs introduced by a
label or PubMed URL. Loose mode also accepts split trial numbers such as
"NCT 0001-2345" and bare digit runs as PMIDs.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	abstract, _ := cmd.Flags().GetString("abstract")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if strings.TrimSpace(title) == "" && strings.TrimSpace(abstract) == "" {
		return fmt.Errorf("provide --title or --abstract")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ext, err := newExtractor(cfg.Extraction)
	if err != nil {
		return err
	}

	matches := append(ext.Trials(title, abstract), ext.PMIDs(title, abstract)...)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	if len(matches) == 0 {
		fmt.Println("No identifiers found.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-6s  %-12s  %-9s  %-8s  %s\n", "Family", "Identifier", "Strength", "Field", "Context")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, m := range matches {
		field := ""
		if len(m.Occurrences) > 0 {
			field = string(m.Occurrences[0].Field)
		}
		fmt.Fprintf(os.Stdout, "%-6s  %-12s  %-9s  %-8s  %s\n",
			m.Family, m.Value, m.Strength, field, truncate(m.Context, 60))
	}
	fmt.Fprintf(os.Stdout, "\n%d identifiers (%s mode)\n", len(matches), ext.Mode())
	return nil
}

func init() {
	extractCmd.Flags().String("title", "", "paper title")
	extractCmd.Flags().String("abstract", "", "paper abstract")
	extractCmd.Flags().String("mode", "", "extraction mode: strict or loose (overrides extraction.mode)")
	extractCmd.Flags().Bool("json", false, "output matches as JSON")

	_ = viper.BindPFlag("extraction.mode", extractCmd.Flags().Lookup("mode"))

	rootCmd.AddCommand(extractCmd)
}
