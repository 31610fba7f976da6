// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var linkCmd = &cobra.Command{
	Use:   "link [pmids...]",
	Short: "Link papers to the trials they mention",
	Long: `Link finds ClinicalTrials.gov identifiers in the title and abstract of each
paper, fetches the registrations, and records a medium-confidence link per
trial. Existing links are never duplicated.

With no PMIDs, every paper not yet linked (or every paper in --year) is
processed. Use the subcommands for reference matching, manual links, and
verification.`,
	Args: cobra.ArbitraryArgs,
	RunE: runLink,
}

func runLink(cmd *cobra.Command, args []string) error {
	pmids, err := parsePMIDs(args)
	if err != nil {
		return err
	}
	year, _ := cmd.Flags().GetInt("year")
	force, _ := cmd.Flags().GetBool("force")

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

	var processed, created, failed int
	for i := range papers {
		p := &papers[i]
		if p.LinkedAt != nil && !force && len(pmids) == 0 {
			continue
		}
		res, err := a.linker.LinkMentions(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(os.Stdout, "failed   %s: %v\n", p.PMID, err)
			failed++
			continue
		}
		processed++
		created += res.LinksCreated
		if res.Identifiers == 0 {
			continue
		}
		fmt.Fprintf(os.Stdout, "linked   %s: %d trial ids, %d new links", p.PMID, res.Identifiers, res.LinksCreated)
		if len(res.Unresolved) > 0 {
			fmt.Fprintf(os.Stdout, ", unresolved %s", strings.Join(res.Unresolved, " "))
		}
		fmt.Fprintln(os.Stdout)
	}

	fmt.Fprintf(os.Stdout, "\nprocessed: %d, links created: %d, failed: %d\n", processed, created, failed)
	if failed > 0 {
		return fmt.Errorf("%d paper(s) failed linking", failed)
	}
	return nil
}

// --- references subcommand ---

var linkReferencesCmd = &cobra.Command{
	Use:   "references [nct-ids...]",
	Short: "Link papers cited by stored trial registrations",
	Long: `References scans the references, see-also links, and descriptions of trial
registrations for PubMed IDs and links each cited paper present in the store
with high confidence. With no identifiers, every stored trial is scanned.`,
	RunE: runLinkReferences,
}

func runLinkReferences(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var trials []types.TrialRecord
	for _, arg := range args {
		nct, err := parseTrialID(arg)
		if err != nil {
			return err
		}
		rec, err := a.resolver.Resolve(ctx, nct)
		if err != nil {
			return err
		}
		trials = append(trials, *rec)
	}

	stats, err := a.linker.RunReferenceMatching(ctx, trials)
	fmt.Fprintf(os.Stdout, "trials: %d, with references: %d, links created: %d, errors: %d\n",
		stats.TrialsProcessed, stats.TrialsWithReferences, stats.LinksCreated, stats.Errors)
	if err != nil {
		return err
	}
	if stats.Errors > 0 {
		return fmt.Errorf("%d trial(s) failed reference matching", stats.Errors)
	}
	return nil
}

// --- manual subcommand ---

var linkManualCmd = &cobra.Command{
	Use:   "manual <pmid> <nct-id>",
	Short: "Record a curator-confirmed link",
	Long: `Manual links a stored paper to a trial with high confidence. The trial is
fetched from the registry if it is not cached. An existing link for the pair
is left unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: runLinkManual,
}

func runLinkManual(cmd *cobra.Command, args []string) error {
	notes, _ := cmd.Flags().GetString("notes")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	link, created, err := a.linker.ManualLink(cmd.Context(), args[0], args[1], notes)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(os.Stdout, "linked %s to %s (%s)\n", link.PaperID, link.NCTID, link.ID)
	} else {
		fmt.Fprintf(os.Stdout, "link %s to %s already exists (%s, %s confidence)\n",
			link.PaperID, link.NCTID, link.Method, link.Confidence)
	}
	return nil
}

// --- verify subcommand ---

var linkVerifyCmd = &cobra.Command{
	Use:   "verify <pmid> <nct-id>",
	Short: "Mark a link as reviewed by a curator",
	Args:  cobra.ExactArgs(2),
	RunE:  runLinkVerify,
}

func runLinkVerify(cmd *cobra.Command, args []string) error {
	by, _ := cmd.Flags().GetString("by")
	if strings.TrimSpace(by) == "" {
		return fmt.Errorf("--by is required")
	}
	pmids, err := parsePMIDs(args[:1])
	if err != nil {
		return err
	}
	nct, err := parseTrialID(args[1])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	link, err := a.store.VerifyLink(cmd.Context(), pmids[0], nct, by)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "verified %s to %s by %s\n", link.PaperID, link.NCTID, link.VerifiedBy)
	return nil
}

// --- list subcommand ---

var linkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored paper-trial links",
	Args:  cobra.NoArgs,
	RunE:  runLinkList,
}

func runLinkList(cmd *cobra.Command, args []string) error {
	paper, _ := cmd.Flags().GetString("paper")
	trial, _ := cmd.Flags().GetString("trial")
	method, _ := cmd.Flags().GetString("method")
	unverified, _ := cmd.Flags().GetBool("unverified")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	f := store.LinkFilter{Method: types.ExtractionMethod(method), Unverified: unverified}
	if paper != "" {
		pmids, err := parsePMIDs([]string{paper})
		if err != nil {
			return err
		}
		f.PaperID = pmids[0]
	}
	if trial != "" {
		nct, err := parseTrialID(trial)
		if err != nil {
			return err
		}
		f.NCTID = nct
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	links, err := a.store.ListLinks(cmd.Context(), f)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(links)
	}
	if len(links) == 0 {
		fmt.Println("No links found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-10s  %-11s  %-16s  %-6s  %-8s  %s\n",
		"PMID", "Trial", "Method", "Conf", "Verified", "Context")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, l := range links {
		verified := "no"
		if l.Verified {
			verified = "yes"
		}
		fmt.Fprintf(os.Stdout, "%-10s  %-11s  %-16s  %-6s  %-8s  %s\n",
			l.PaperID, l.NCTID, l.Method, l.Confidence, verified, truncate(l.ContextSnippet, 45))
	}
	fmt.Fprintf(os.Stdout, "\n%d links\n", len(links))
	return nil
}

func init() {
	linkCmd.Flags().Int("year", 0, "only papers published in this year")
	linkCmd.Flags().Bool("force", false, "relink papers already marked linked")

	linkManualCmd.Flags().String("notes", "", "curator notes stored on the link")

	linkVerifyCmd.Flags().String("by", "", "name of the reviewing curator (required)")

	linkListCmd.Flags().String("paper", "", "filter by PMID")
	linkListCmd.Flags().String("trial", "", "filter by trial identifier")
	linkListCmd.Flags().String("method", "", "filter by method: title_abstract, trial_references, manual")
	linkListCmd.Flags().Bool("unverified", false, "only links not yet verified")
	linkListCmd.Flags().Bool("json", false, "output links as JSON")

	// Wire subcommands.
	linkCmd.AddCommand(linkReferencesCmd)
	linkCmd.AddCommand(linkManualCmd)
	linkCmd.AddCommand(linkVerifyCmd)
	linkCmd.AddCommand(linkListCmd)

	rootCmd.AddCommand(linkCmd)
}
