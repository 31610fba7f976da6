// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package linker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/identifier"
	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ReferencePMIDs returns the PMIDs a trial registration cites, in first-seen
// order. It reads the structured pmid of each reference, PMIDs written in
// citations, see-also links, and the brief and detailed descriptions.
func (l *Linker) ReferencePMIDs(t *types.TrialRecord) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(pmid string) {
		if id, ok := identifier.NormalizePMID(pmid); ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	addText := func(text string) {
		if text == "" {
			return
		}
		for _, m := range l.references.PMIDsInText(text) {
			add(m.Value)
		}
	}

	for _, ref := range t.References {
		if ref.PMID != "" {
			add(ref.PMID)
		}
		addText(ref.Citation)
	}
	for _, link := range t.SeeAlso {
		addText(link.URL)
		addText(link.Label)
	}
	addText(t.BriefSummary)
	addText(t.DetailedDescription)
	return out
}

// ReferenceResult summarizes reference matching for one trial.
type ReferenceResult struct {
	// PMIDs is the number of distinct PMIDs the trial cites.
	PMIDs int

	// Matched is the number of cited papers present locally.
	Matched int

	LinksCreated int
}

// LinkReferences links a trial to every local paper its registration cites.
// Links are high confidence. Existing links are left unchanged.
func (l *Linker) LinkReferences(ctx context.Context, t *types.TrialRecord) (ReferenceResult, error) {
	pmids := l.ReferencePMIDs(t)
	res := ReferenceResult{PMIDs: len(pmids)}
	if len(pmids) == 0 {
		return res, nil
	}
	l.metrics.Identifiers(string(identifier.FamilyPMID), len(pmids))

	papers, err := l.store.ListPapers(ctx, store.PaperFilter{PMIDs: pmids})
	if err != nil {
		return res, fmt.Errorf("finding papers cited by %s: %w", t.NCTID, err)
	}
	res.Matched = len(papers)

	for _, p := range papers {
		link := &types.PaperTrialLink{
			PaperID:        p.PMID,
			NCTID:          t.NCTID,
			Method:         types.MethodTrialReferences,
			Confidence:     types.ConfidenceHigh,
			ContextSnippet: fmt.Sprintf("Paper PMID %s referenced in trial %s", p.PMID, t.NCTID),
			Notes:          "Linked via PMID reference in trial registration",
		}
		created, err := l.store.CreateLink(ctx, link)
		if err != nil {
			return res, fmt.Errorf("linking %s to %s: %w", p.PMID, t.NCTID, err)
		}
		if created {
			res.LinksCreated++
			l.metrics.LinkCreated(string(types.MethodTrialReferences))
			l.logger.Info("linked paper to trial",
				zap.String("pmid", p.PMID),
				zap.String("nct_id", t.NCTID),
				zap.String("method", string(types.MethodTrialReferences)))
		}
	}
	return res, nil
}

// ReferenceStats summarizes a reference matching pass over many trials.
type ReferenceStats struct {
	TrialsProcessed      int `json:"trials_processed" yaml:"trials_processed"`
	TrialsWithReferences int `json:"trials_with_references" yaml:"trials_with_references"`
	LinksCreated         int `json:"links_created" yaml:"links_created"`
	Errors               int `json:"errors" yaml:"errors"`
}

// RunReferenceMatching runs LinkReferences over trials, or over every stored
// trial when trials is nil. A failure on one trial is logged and counted.
func (l *Linker) RunReferenceMatching(ctx context.Context, trials []types.TrialRecord) (ReferenceStats, error) {
	var stats ReferenceStats
	if trials == nil {
		var err error
		trials, err = l.store.ListTrials(ctx)
		if err != nil {
			return stats, fmt.Errorf("listing trials: %w", err)
		}
	}

	for i := range trials {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		t := &trials[i]
		stats.TrialsProcessed++

		res, err := l.LinkReferences(ctx, t)
		if err != nil {
			l.logger.Warn("reference matching failed", zap.String("nct_id", t.NCTID), zap.Error(err))
			stats.Errors++
			continue
		}
		if res.PMIDs > 0 {
			stats.TrialsWithReferences++
		}
		stats.LinksCreated += res.LinksCreated
	}

	l.logger.Info("reference matching completed",
		zap.Int("trials", stats.TrialsProcessed),
		zap.Int("with_references", stats.TrialsWithReferences),
		zap.Int("links_created", stats.LinksCreated),
		zap.Int("errors", stats.Errors))
	return stats, nil
}
