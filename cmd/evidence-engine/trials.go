// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

var trialsCmd = &cobra.Command{
	Use:   "trials",
	Short: "Fetch and inspect cached trial registrations",
	Long: `Trials manages the local cache of ClinicalTrials.gov registrations. Records
are fetched on first use and reused until trials.max_age passes.`,
}

// --- fetch subcommand ---

var trialsFetchCmd = &cobra.Command{
	Use:   "fetch <nct-ids...>",
	Short: "Fetch trial registrations into the cache",
	Long: `Fetch resolves each trial identifier through the cache, contacting the
registry only for records that are missing or stale. --refresh always
re-fetches.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTrialsFetch,
}

func runTrialsFetch(cmd *cobra.Command, args []string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var (
		records []*types.TrialRecord
		failed  int
	)
	for _, arg := range args {
		resolve := a.resolver.Resolve
		if refresh {
			resolve = a.resolver.Refresh
		}
		rec, err := resolve(ctx, arg)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(os.Stderr, "failed   %s: %v\n", arg, err)
			failed++
			continue
		}
		records = append(records, rec)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return err
		}
	} else {
		formatTrials(records)
	}

	if failed > 0 {
		return fmt.Errorf("%d trial(s) could not be fetched", failed)
	}
	return nil
}

// --- list subcommand ---

var trialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached trial registrations",
	Args:  cobra.NoArgs,
	RunE:  runTrialsList,
}

func runTrialsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	recs, err := a.store.ListTrials(cmd.Context())
	if err != nil {
		return err
	}
	out := make([]*types.TrialRecord, len(recs))
	for i := range recs {
		out[i] = &recs[i]
	}
	formatTrials(out)
	return nil
}

func formatTrials(recs []*types.TrialRecord) {
	if len(recs) == 0 {
		fmt.Println("No trials found.")
		return
	}
	fmt.Fprintf(os.Stdout, "%-11s  %-22s  %-10s  %-20s  %s\n", "Trial", "Status", "Start", "Fetched", "Title")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, r := range recs {
		fmt.Fprintf(os.Stdout, "%-11s  %-22s  %-10s  %-20s  %s\n",
			r.NCTID, truncate(r.OverallStatus, 22), r.StartDate.Date,
			r.FetchedAt.Local().Format("2006-01-02 15:04"), truncate(r.BriefTitle, 45))
	}
	fmt.Fprintf(os.Stdout, "\n%d trials\n", len(recs))
}

// --- candidates subcommand ---

var trialsCandidatesCmd = &cobra.Command{
	Use:   "candidates <nct-id>",
	Short: "Suggest papers that may report on a trial",
	Long: `Candidates searches stored papers for the trial's condition terms within a
publication window around the trial start date. Papers already linked to the
trial are excluded. Candidates are suggestions for review and are never
recorded as links; confirm one with "link manual".`,
	Args: cobra.ExactArgs(1),
	RunE: runTrialsCandidates,
}

func runTrialsCandidates(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	nct, err := parseTrialID(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	rec, err := a.resolver.Resolve(ctx, nct)
	if err != nil {
		return err
	}
	cands, err := a.linker.Candidates(ctx, rec)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cands)
	}
	if len(cands) == 0 {
		fmt.Println("No candidates found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-10s  %-4s  %-24s  %s\n", "PMID", "Year", "Matched", "Title")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, c := range cands {
		fmt.Fprintf(os.Stdout, "%-10s  %-4d  %-24s  %s\n",
			c.Paper.PMID, c.Paper.PublicationYear, truncate(strings.Join(c.MatchedTerms, ","), 24), truncate(c.Paper.Title, 55))
	}
	fmt.Fprintf(os.Stdout, "\n%d candidates for %s\n", len(cands), rec.NCTID)
	return nil
}

func init() {
	trialsFetchCmd.Flags().Bool("refresh", false, "re-fetch even when a cached record is fresh")
	trialsFetchCmd.Flags().Bool("json", false, "output records as JSON")

	trialsCandidatesCmd.Flags().Bool("json", false, "output candidates as JSON")

	// Wire subcommands.
	trialsCmd.AddCommand(trialsFetchCmd)
	trialsCmd.AddCommand(trialsListCmd)
	trialsCmd.AddCommand(trialsCandidatesCmd)

	rootCmd.AddCommand(trialsCmd)
}
