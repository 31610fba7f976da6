// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/linker"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// --- fakes ---

type fakeClassifier struct {
	st      *store.Store
	failFor map[string]error
	panicOn string
	calls   atomic.Int32
	hook    func(p *types.Paper)
}

func (f *fakeClassifier) ClassifyPaper(ctx context.Context, p *types.Paper, force bool) ([]types.ClassificationResult, error) {
	f.calls.Add(1)
	if f.hook != nil {
		f.hook(p)
	}
	if p.PMID == f.panicOn {
		panic("corrupt abstract")
	}
	if err := f.failFor[p.PMID]; err != nil {
		return nil, err
	}
	results := []types.ClassificationResult{{Label: "randomized_controlled_trial", Confidence: 0.81}}
	at := time.Now()
	if err := f.st.SaveClassifications(ctx, p.PMID, results, at); err != nil {
		return nil, err
	}
	p.Classifications, p.ClassifiedAt = results, &at
	return results, nil
}

type fakeLinker struct {
	mu       sync.Mutex
	linked   []string
	refStats linker.ReferenceStats
	refErr   error
}

func (f *fakeLinker) LinkMentions(ctx context.Context, p *types.Paper) (linker.MentionResult, error) {
	f.mu.Lock()
	f.linked = append(f.linked, p.PMID)
	f.mu.Unlock()
	if p.PMID == "1" {
		return linker.MentionResult{Identifiers: 2, LinksCreated: 1}, nil
	}
	return linker.MentionResult{}, nil
}

func (f *fakeLinker) RunReferenceMatching(ctx context.Context, trials []types.TrialRecord) (linker.ReferenceStats, error) {
	return f.refStats, f.refErr
}

// failingStore fails ListPapers on demand.
type failingStore struct {
	*store.Store
	listErr error
}

func (s *failingStore) ListPapers(ctx context.Context, f store.PaperFilter) ([]types.Paper, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.ListPapers(ctx, f)
}

// --- helpers ---

func setup(t *testing.T, n int) (*failingStore, *fakeClassifier, *fakeLinker) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "evidence.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for i := 1; i <= n; i++ {
		year := 2019
		if i%2 == 0 {
			year = 2020
		}
		_, err := st.UpsertPaper(context.Background(), &types.Paper{
			PMID: strconv.Itoa(i), Title: fmt.Sprintf("Paper %d", i), PublicationYear: year,
		})
		require.NoError(t, err)
	}
	return &failingStore{Store: st}, &fakeClassifier{st: st, failFor: map[string]error{}}, &fakeLinker{}
}

// --- tests ---

func TestRun_IsolatesPaperFailures(t *testing.T) {
	st, cls, lnk := setup(t, 10)
	cls.failFor["7"] = errors.New("save failed")
	m := metrics.New()
	c := New(st, cls, lnk, types.BatchConfig{}, m, nil)

	var out bytes.Buffer
	run, err := c.Run(context.Background(), Scope{Kind: types.RunClassify}, &out)
	require.NoError(t, err)

	assert.Equal(t, types.RunCompleted, run.Status)
	assert.Equal(t, 10, run.Counters.Total)
	assert.Equal(t, 10, run.Counters.Processed)
	assert.Equal(t, 9, run.Counters.Succeeded)
	assert.Equal(t, 1, run.Counters.Failed)
	assert.Equal(t, 9, run.Counters.Classified)
	assert.NotNil(t, run.CompletedAt)
	assert.Contains(t, out.String(), "failed   7: classifying: save failed")

	stored, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, stored.Status)
	assert.Equal(t, run.Counters, stored.Counters)

	assert.Equal(t, 9.0, testutil.ToFloat64(m.PapersProcessed.WithLabelValues("classify", metrics.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PapersProcessed.WithLabelValues("classify", metrics.OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("classify", "completed")))
}

func TestRun_RecoversPanics(t *testing.T) {
	st, cls, lnk := setup(t, 4)
	cls.panicOn = "2"
	c := New(st, cls, lnk, types.BatchConfig{Workers: 3}, nil, nil)

	run, err := c.Run(context.Background(), Scope{Kind: types.RunClassify}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, run.Status)
	assert.Equal(t, 3, run.Counters.Succeeded)
	assert.Equal(t, 1, run.Counters.Failed)
}

func TestRun_ConcurrentWorkersCountEveryPaper(t *testing.T) {
	st, cls, lnk := setup(t, 120)
	cls.failFor["13"] = errors.New("x")
	cls.failFor["77"] = errors.New("y")
	c := New(st, cls, lnk, types.BatchConfig{Workers: 8}, nil, nil)

	run, err := c.Run(context.Background(), Scope{Kind: types.RunAll}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 120, run.Counters.Processed)
	assert.Equal(t, 118, run.Counters.Succeeded)
	assert.Equal(t, 2, run.Counters.Failed)
	assert.Len(t, lnk.linked, 118)
	assert.Equal(t, 1, run.Counters.PapersWithIdentifiers)
	assert.Equal(t, 2, run.Counters.IdentifiersFound)
	assert.Equal(t, 1, run.Counters.LinksCreated)
}

func TestRun_SkipsProcessedUnlessForced(t *testing.T) {
	st, cls, lnk := setup(t, 3)
	c := New(st, cls, lnk, types.BatchConfig{}, nil, nil)
	ctx := context.Background()

	_, err := c.Run(ctx, Scope{Kind: types.RunClassify, PMIDs: []string{"1", "2"}}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, int32(2), cls.calls.Load())

	run, err := c.Run(ctx, Scope{Kind: types.RunClassify}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, run.Counters.Skipped)
	assert.Equal(t, 1, run.Counters.Succeeded)
	assert.Equal(t, int32(3), cls.calls.Load())

	run, err = c.Run(ctx, Scope{Kind: types.RunClassify, Force: true}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Zero(t, run.Counters.Skipped)
	assert.Equal(t, int32(6), cls.calls.Load())
}

func TestRun_YearFilter(t *testing.T) {
	st, cls, lnk := setup(t, 6)
	c := New(st, cls, lnk, types.BatchConfig{}, nil, nil)

	run, err := c.Run(context.Background(), Scope{Kind: types.RunLink, Year: 2020}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 3, run.Counters.Total)
	assert.Equal(t, 2020, run.YearFilter)
	assert.ElementsMatch(t, []string{"2", "4", "6"}, lnk.linked)
}

func TestRun_ScopeLoadFailure(t *testing.T) {
	st, cls, lnk := setup(t, 2)
	st.listErr = errors.New("database is locked")
	c := New(st, cls, lnk, types.BatchConfig{}, nil, nil)

	run, err := c.Run(context.Background(), Scope{Kind: types.RunClassify}, &bytes.Buffer{})
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, types.RunFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "database is locked")
	assert.Zero(t, cls.calls.Load())

	stored, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunFailed, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
}

func TestRun_InterruptedIsRecordedFailed(t *testing.T) {
	st, cls, lnk := setup(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cls.hook = func(p *types.Paper) {
		if p.PMID == "3" {
			cancel()
		}
	}
	c := New(st, cls, lnk, types.BatchConfig{Workers: 1}, nil, nil)

	run, err := c.Run(ctx, Scope{Kind: types.RunClassify}, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.RunFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "interrupted")
	assert.Less(t, run.Counters.Processed, 10)

	stored, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunFailed, stored.Status)
}

func TestRun_References(t *testing.T) {
	st, cls, lnk := setup(t, 0)
	lnk.refStats = linker.ReferenceStats{TrialsProcessed: 4, TrialsWithReferences: 2, LinksCreated: 3, Errors: 1}
	c := New(st, cls, lnk, types.BatchConfig{}, nil, nil)

	run, err := c.Run(context.Background(), Scope{Kind: types.RunReferences}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, run.Status)
	assert.Equal(t, types.RunCounters{Total: 4, Processed: 4, Succeeded: 3, Failed: 1, LinksCreated: 3}, run.Counters)
}

func TestRun_UnknownKind(t *testing.T) {
	st, cls, lnk := setup(t, 0)
	c := New(st, cls, lnk, types.BatchConfig{}, nil, nil)
	run, err := c.Run(context.Background(), Scope{Kind: "translate"}, &bytes.Buffer{})
	assert.Error(t, err)
	assert.Nil(t, run)

	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
