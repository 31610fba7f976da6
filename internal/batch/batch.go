// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch runs classification and trial linking over a scope of
// stored papers and records each run's outcome. A failure on one paper is
// counted and never stops the run; only failing to load the scope aborts it.
package batch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/evidence-engine/internal/linker"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// progressEvery is how many processed papers pass between run record
// updates.
const progressEvery = 50

// Store is the persistence the controller needs.
type Store interface {
	ListPapers(ctx context.Context, f store.PaperFilter) ([]types.Paper, error)
	CreateRun(ctx context.Context, r *types.RunRecord) error
	UpdateRun(ctx context.Context, r *types.RunRecord) error
}

// Classifier assigns study design labels to a paper.
type Classifier interface {
	ClassifyPaper(ctx context.Context, p *types.Paper, force bool) ([]types.ClassificationResult, error)
}

// Linker links papers to trials.
type Linker interface {
	LinkMentions(ctx context.Context, p *types.Paper) (linker.MentionResult, error)
	RunReferenceMatching(ctx context.Context, trials []types.TrialRecord) (linker.ReferenceStats, error)
}

// Scope selects the work of one run.
type Scope struct {
	Kind types.RunKind

	// Year restricts the run to papers published that year (0 = all).
	Year int

	// PMIDs restricts the run to the listed papers.
	PMIDs []string

	// Force reprocesses papers that already carry classification or link
	// markers.
	Force bool

	// Workers overrides the configured concurrency when positive.
	Workers int
}

// Controller executes batch runs.
type Controller struct {
	store      Store
	classifier Classifier
	linker     Linker
	workers    int
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a controller. m and logger may be nil.
func New(st Store, c Classifier, l Linker, cfg types.BatchConfig, m *metrics.Metrics, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:      st,
		classifier: c,
		linker:     l,
		workers:    cfg.Workers,
		metrics:    m,
		logger:     logger.Named("batch"),
		now:        time.Now,
	}
}

// Run executes scope and returns the final run record. Progress lines are
// written to w. The returned error is non-nil when the run ended failed or
// its record could not be written; per-paper failures only show in the
// counters.
func (c *Controller) Run(ctx context.Context, scope Scope, w io.Writer) (*types.RunRecord, error) {
	if !scope.Kind.Valid() {
		return nil, fmt.Errorf("unknown run kind %q", scope.Kind)
	}

	run := &types.RunRecord{
		Kind:       scope.Kind,
		Status:     types.RunStarted,
		YearFilter: scope.Year,
		StartedAt:  c.now(),
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	log := c.logger.With(zap.String("run_id", run.ID), zap.String("kind", string(run.Kind)))
	log.Info("run started", zap.Int("year", scope.Year), zap.Int("pmids", len(scope.PMIDs)))

	var runErr error
	if scope.Kind == types.RunReferences {
		runErr = c.runReferences(ctx, run)
	} else {
		runErr = c.runPapers(ctx, run, scope, w, log)
	}
	return c.finish(ctx, run, runErr, w, log)
}

func (c *Controller) runPapers(ctx context.Context, run *types.RunRecord, scope Scope, w io.Writer, log *zap.Logger) error {
	papers, err := c.store.ListPapers(ctx, store.PaperFilter{Year: scope.Year, PMIDs: scope.PMIDs})
	if err != nil {
		return fmt.Errorf("loading papers: %w", err)
	}

	run.Counters.Total = len(papers)
	run.Status = types.RunInProgress
	if err := c.store.UpdateRun(ctx, run); err != nil {
		log.Warn("updating run record", zap.Error(err))
	}
	fmt.Fprintf(w, "run %s: %s over %d papers\n", run.ID, run.Kind, len(papers))

	workers := scope.Workers
	if workers <= 0 {
		workers = c.workers
	}
	if workers <= 0 {
		workers = 1
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(workers)

	for i := range papers {
		if ctx.Err() != nil {
			break
		}
		p := &papers[i]
		g.Go(func() error {
			delta, skipped, err := c.processPaper(ctx, p, scope)

			mu.Lock()
			defer mu.Unlock()
			run.Counters.Add(delta)
			run.Counters.Processed++
			outcome := metrics.OutcomeSuccess
			switch {
			case err != nil:
				outcome = metrics.OutcomeFailure
				run.Counters.Failed++
				fmt.Fprintf(w, "failed   %s: %v\n", p.PMID, err)
				log.Warn("paper failed", zap.String("pmid", p.PMID), zap.Error(err))
			case skipped:
				outcome = metrics.OutcomeSkipped
				run.Counters.Skipped++
				fmt.Fprintf(w, "skipped  %s\n", p.PMID)
			default:
				run.Counters.Succeeded++
				fmt.Fprintf(w, "%s\n", describe(p.PMID, delta))
			}
			c.metrics.PaperProcessed(string(run.Kind), outcome)

			if run.Counters.Processed%progressEvery == 0 {
				if err := c.store.UpdateRun(ctx, run); err != nil {
					log.Warn("updating run progress", zap.Error(err))
				}
			}
			// Workers never fail the group; failures live in the counters.
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted after %d of %d papers: %w",
			run.Counters.Processed, run.Counters.Total, err)
	}
	return nil
}

// processPaper does the run's work on one paper. It reports the counter
// contributions, whether the paper was skipped as already processed, and
// any failure. Panics are recovered as failures of this paper.
func (c *Controller) processPaper(ctx context.Context, p *types.Paper, scope Scope) (delta types.RunCounters, skipped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	classify := scope.Kind == types.RunClassify || scope.Kind == types.RunAll
	link := scope.Kind == types.RunLink || scope.Kind == types.RunAll
	if !scope.Force {
		if classify && p.ClassifiedAt != nil && len(p.Classifications) > 0 {
			classify = false
		}
		if link && p.LinkedAt != nil {
			link = false
		}
		if !classify && !link {
			return delta, true, nil
		}
	}

	if classify {
		results, err := c.classifier.ClassifyPaper(ctx, p, scope.Force)
		if err != nil {
			return delta, false, fmt.Errorf("classifying: %w", err)
		}
		if len(results) > 0 {
			delta.Classified++
			c.metrics.LabelsAssignedTo(types.Labels(results))
		}
	}

	if link {
		res, err := c.linker.LinkMentions(ctx, p)
		if err != nil {
			return delta, false, fmt.Errorf("linking: %w", err)
		}
		if res.Identifiers > 0 {
			delta.PapersWithIdentifiers++
		}
		delta.IdentifiersFound += res.Identifiers
		delta.LinksCreated += res.LinksCreated
	}
	return delta, false, nil
}

func describe(pmid string, d types.RunCounters) string {
	s := fmt.Sprintf("done     %s", pmid)
	if d.Classified > 0 {
		s += " (classified)"
	}
	if d.IdentifiersFound > 0 {
		s += fmt.Sprintf(" (%d trial ids, %d new links)", d.IdentifiersFound, d.LinksCreated)
	}
	return s
}

func (c *Controller) runReferences(ctx context.Context, run *types.RunRecord) error {
	run.Status = types.RunInProgress
	if err := c.store.UpdateRun(ctx, run); err != nil {
		c.logger.Warn("updating run record", zap.String("run_id", run.ID), zap.Error(err))
	}

	stats, err := c.linker.RunReferenceMatching(ctx, nil)
	run.Counters.Total = stats.TrialsProcessed
	run.Counters.Processed = stats.TrialsProcessed
	run.Counters.Failed = stats.Errors
	run.Counters.Succeeded = stats.TrialsProcessed - stats.Errors
	run.Counters.LinksCreated = stats.LinksCreated
	if err != nil {
		return fmt.Errorf("reference matching: %w", err)
	}
	return nil
}

// finish stamps the terminal status and persists it. The update ignores
// cancellation of ctx so interrupted runs are still recorded.
func (c *Controller) finish(ctx context.Context, run *types.RunRecord, runErr error, w io.Writer, log *zap.Logger) (*types.RunRecord, error) {
	done := c.now()
	run.CompletedAt = &done
	run.Duration = done.Sub(run.StartedAt)
	run.Status = types.RunCompleted
	if runErr != nil {
		run.Status = types.RunFailed
		run.ErrorMessage = runErr.Error()
	}

	c.metrics.RunFinished(string(run.Kind), string(run.Status), run.Duration)
	if err := c.store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		return run, fmt.Errorf("recording run result: %w", err)
	}

	cnt := run.Counters
	fmt.Fprintf(w, "\nrun %s %s in %s: processed %d/%d, succeeded %d, failed %d, skipped %d, classified %d, links created %d\n",
		run.ID, run.Status, run.Duration.Round(time.Millisecond),
		cnt.Processed, cnt.Total, cnt.Succeeded, cnt.Failed, cnt.Skipped, cnt.Classified, cnt.LinksCreated)

	if runErr != nil {
		log.Error("run failed", zap.Error(runErr))
		return run, runErr
	}
	log.Info("run completed",
		zap.Int("processed", cnt.Processed),
		zap.Int("failed", cnt.Failed),
		zap.Duration("duration", run.Duration))
	return run, nil
}
