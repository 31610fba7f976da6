// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/internal/studytype"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [pmids...]",
	Short: "Classify stored papers by study design",
	Long: `Classify scores the title, abstract, and publication types of stored papers
against the study design pattern library, resolves conflicting labels, and
caches the result on each paper. Papers that already carry labels are shown
from the cache unless --force is given.

With no PMIDs, every paper in the store (or in --year) is classified.`,
	Args: cobra.ArbitraryArgs,
	RunE: runClassify,
}

// classifiedPaper is one row of classify output.
type classifiedPaper struct {
	PMID            string                       `json:"pmid"`
	Title           string                       `json:"title"`
	Classifications []types.ClassificationResult `json:"classifications"`
	Error           string                       `json:"error,omitempty"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	pmids, err := parsePMIDs(args)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	year, _ := cmd.Flags().GetInt("year")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	papers, err := a.store.ListPapers(ctx, store.PaperFilter{Year: year, PMIDs: pmids})
	if err != nil {
		return err
	}
	if len(pmids) > 0 && len(papers) < len(pmids) {
		fmt.Fprintf(os.Stderr, "%d of %d PMIDs not in the store\n", len(pmids)-len(papers), len(pmids))
	}

	out := make([]classifiedPaper, 0, len(papers))
	failed := 0
	for i := range papers {
		p := &papers[i]
		row := classifiedPaper{PMID: p.PMID, Title: p.Title}
		results, err := a.classifier.ClassifyPaper(ctx, p, force)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			row.Error = err.Error()
		}
		row.Classifications = results
		out = append(out, row)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		formatClassifyOutput(os.Stdout, out)
	}

	if failed > 0 {
		return fmt.Errorf("%d paper(s) failed classification", failed)
	}
	return nil
}

func formatClassifyOutput(w io.Writer, rows []classifiedPaper) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No papers found.")
		return
	}

	fmt.Fprintf(w, "%-10s  %-40s  %s\n", "PMID", "Title", "Study design")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range rows {
		labels := "-"
		switch {
		case r.Error != "":
			labels = "error: " + r.Error
		case len(r.Classifications) > 0:
			parts := make([]string, len(r.Classifications))
			for i, c := range r.Classifications {
				parts[i] = fmt.Sprintf("%s (%.2f)", c.Label, c.Confidence)
			}
			labels = strings.Join(parts, ", ")
		}
		fmt.Fprintf(w, "%-10s  %-40s  %s\n", r.PMID, truncate(r.Title, 40), labels)
	}
	fmt.Fprintf(w, "\n%d papers\n", len(rows))
}

// --- text subcommand ---

var classifyTextCmd = &cobra.Command{
	Use:   "text",
	Short: "Classify an ad hoc title and abstract",
	Long: `Text classifies a title and abstract given on the command line without
touching the store. Use --candidates to also see every label above the
threshold before conflict resolution.`,
	Args: cobra.NoArgs,
	RunE: runClassifyText,
}

func runClassifyText(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	abstract, _ := cmd.Flags().GetString("abstract")
	pubTypes, _ := cmd.Flags().GetStringArray("pubtype")
	showCandidates, _ := cmd.Flags().GetBool("candidates")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if strings.TrimSpace(title) == "" && strings.TrimSpace(abstract) == "" {
		return fmt.Errorf("provide --title or --abstract")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := newClassifier(cfg.Classifier)
	if err != nil {
		return err
	}

	doc := studytype.Document{Title: title, Abstract: abstract, PublicationTypes: pubTypes}
	candidates := c.Candidates(doc)
	results := c.Library().Resolve(candidates)

	if jsonOutput {
		payload := struct {
			Classifications []types.ClassificationResult `json:"classifications"`
			Candidates      []types.ClassificationResult `json:"candidates,omitempty"`
			Conflicts       []string                     `json:"conflicts,omitempty"`
		}{Classifications: results}
		if showCandidates {
			payload.Candidates = candidates
			payload.Conflicts = c.Library().Conflicts(candidates)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	if showCandidates {
		fmt.Fprintln(os.Stdout, "Candidates:")
		formatResults(os.Stdout, candidates)
		if conflicts := c.Library().Conflicts(candidates); len(conflicts) > 0 {
			fmt.Fprintf(os.Stdout, "Conflicting groups: %s\n", strings.Join(conflicts, ", "))
		}
		fmt.Fprintln(os.Stdout, "\nResolved:")
	}
	formatResults(os.Stdout, results)
	return nil
}

func formatResults(w io.Writer, results []types.ClassificationResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No study design above the confidence threshold.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-10s  %s\n", "Label", "Confidence", "Evidence")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range results {
		fmt.Fprintf(w, "%-36s  %-10.2f  %s\n", r.Label, r.Confidence, truncate(strings.Join(r.Evidence, "; "), 50))
	}
}

// classifyTextFlags registers the text subcommand flags. Publication types
// such as "Research Support, N.I.H., Extramural" contain commas, so
// --pubtype takes one whole value per use.
func classifyTextFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "paper title")
	cmd.Flags().String("abstract", "", "paper abstract")
	cmd.Flags().StringArray("pubtype", nil, "publication type (repeatable)")
	cmd.Flags().Bool("candidates", false, "also show unresolved candidates and conflicts")
	cmd.Flags().Bool("json", false, "output results as JSON")
}

func init() {
	classifyCmd.Flags().Bool("force", false, "reclassify papers that already carry labels")
	classifyCmd.Flags().Int("year", 0, "only papers published in this year")
	classifyCmd.Flags().Bool("json", false, "output results as JSON")

	classifyTextFlags(classifyTextCmd)

	classifyCmd.AddCommand(classifyTextCmd)

	rootCmd.AddCommand(classifyCmd)
}
