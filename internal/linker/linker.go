// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package linker associates papers with trial registrations. Links come from
// trial identifiers written in a paper (medium confidence), from a trial
// registration citing the paper by PMID (high confidence), or from a curator.
// Condition and date matching only suggests candidates; it never writes links.
package linker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/identifier"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/registry"
	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Store is the persistence the linker needs.
type Store interface {
	GetPaper(ctx context.Context, pmid string) (*types.Paper, error)
	ListPapers(ctx context.Context, f store.PaperFilter) ([]types.Paper, error)
	SearchPapers(ctx context.Context, q store.PaperQuery) ([]types.Paper, error)
	ListTrials(ctx context.Context) ([]types.TrialRecord, error)
	CreateLink(ctx context.Context, l *types.PaperTrialLink) (bool, error)
	MarkLinked(ctx context.Context, pmid string, at time.Time) error
}

// TrialResolver turns a trial identifier into a stored trial record.
type TrialResolver interface {
	Resolve(ctx context.Context, id string) (*types.TrialRecord, error)
}

// Linker creates paper–trial links.
type Linker struct {
	store      Store
	resolver   TrialResolver
	extractor  *identifier.Extractor
	references *identifier.Extractor
	candidates types.CandidateConfig
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a linker. ext finds trial identifiers in paper text; PMIDs in
// trial registrations are always extracted in strict mode. A zero cfg selects
// the candidate defaults. m and logger may be nil.
func New(st Store, res TrialResolver, ext *identifier.Extractor, cfg types.CandidateConfig, m *metrics.Metrics, logger *zap.Logger) *Linker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ext == nil {
		ext = identifier.New(identifier.ModeStrict)
	}
	return &Linker{
		store:      st,
		resolver:   res,
		extractor:  ext,
		references: identifier.New(identifier.ModeStrict),
		candidates: candidateConfig(cfg),
		metrics:    m,
		logger:     logger.Named("linker"),
		now:        time.Now,
	}
}

// MentionResult summarizes direct mention linking for one paper.
type MentionResult struct {
	// Identifiers is the number of distinct trial identifiers found.
	Identifiers int

	// LinksCreated counts links that did not exist before.
	LinksCreated int

	// Unresolved lists identifiers whose trial record could not be obtained.
	Unresolved []string
}

// LinkMentions links a paper to every trial identified in its title or
// abstract. A trial that cannot be resolved is logged and skipped. The paper
// is marked linked unless a lookup failed for a reason other than the trial
// not existing, so that transient registry failures are retried on the next
// run.
func (l *Linker) LinkMentions(ctx context.Context, paper *types.Paper) (MentionResult, error) {
	matches := l.extractor.Trials(paper.Title, paper.Abstract)
	res := MentionResult{Identifiers: len(matches)}
	l.metrics.Identifiers(string(identifier.FamilyTrial), len(matches))

	retry := false
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		trial, err := l.resolver.Resolve(ctx, m.Value)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			l.logger.Warn("could not resolve trial",
				zap.String("pmid", paper.PMID),
				zap.String("nct_id", m.Value),
				zap.Error(err))
			res.Unresolved = append(res.Unresolved, m.Value)
			if !errors.Is(err, registry.ErrNotFound) {
				retry = true
			}
			continue
		}

		link := &types.PaperTrialLink{
			PaperID:        paper.PMID,
			NCTID:          trial.NCTID,
			Method:         types.MethodTitleAbstract,
			Confidence:     types.ConfidenceMedium,
			ContextSnippet: Snippet(m.BestContext()),
		}
		created, err := l.store.CreateLink(ctx, link)
		if err != nil {
			return res, fmt.Errorf("linking %s to %s: %w", paper.PMID, trial.NCTID, err)
		}
		if created {
			res.LinksCreated++
			l.metrics.LinkCreated(string(types.MethodTitleAbstract))
			l.logger.Info("linked paper to trial",
				zap.String("pmid", paper.PMID),
				zap.String("nct_id", trial.NCTID),
				zap.String("method", string(types.MethodTitleAbstract)))
		}
	}

	if !retry {
		at := l.now()
		if err := l.store.MarkLinked(ctx, paper.PMID, at); err != nil {
			return res, fmt.Errorf("marking %s linked: %w", paper.PMID, err)
		}
		paper.LinkedAt = &at
	}
	return res, nil
}

// ManualLink records a curator-asserted link. The paper must already be
// stored; the trial is resolved (and fetched if needed). It reports whether
// a new link was created; an existing link is returned unchanged.
func (l *Linker) ManualLink(ctx context.Context, pmid, nctID, notes string) (*types.PaperTrialLink, bool, error) {
	id, ok := identifier.NormalizePMID(pmid)
	if !ok {
		return nil, false, fmt.Errorf("invalid pmid %q", pmid)
	}
	paper, err := l.store.GetPaper(ctx, id)
	if err != nil {
		return nil, false, err
	}
	trial, err := l.resolver.Resolve(ctx, nctID)
	if err != nil {
		return nil, false, err
	}

	link := &types.PaperTrialLink{
		PaperID:        paper.PMID,
		NCTID:          trial.NCTID,
		Method:         types.MethodManual,
		Confidence:     types.ConfidenceHigh,
		ContextSnippet: Snippet(fmt.Sprintf("Manually linked paper PMID %s to trial %s", paper.PMID, trial.NCTID)),
		Notes:          notes,
	}
	created, err := l.store.CreateLink(ctx, link)
	if err != nil {
		return nil, false, fmt.Errorf("linking %s to %s: %w", paper.PMID, trial.NCTID, err)
	}
	if created {
		l.metrics.LinkCreated(string(types.MethodManual))
	}
	return link, created, nil
}

// Snippet truncates s to types.MaxSnippetLen runes.
func Snippet(s string) string {
	r := []rune(s)
	if len(r) <= types.MaxSnippetLen {
		return s
	}
	return string(r[:types.MaxSnippetLen])
}
