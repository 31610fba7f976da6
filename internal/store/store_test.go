// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "evidence.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPaper(t *testing.T, s *Store, p types.Paper) {
	t.Helper()
	_, err := s.UpsertPaper(context.Background(), &p)
	require.NoError(t, err)
}

func seedTrial(t *testing.T, s *Store, nctID string) {
	t.Helper()
	require.NoError(t, s.UpsertTrial(context.Background(), &types.TrialRecord{
		NCTID:      nctID,
		BriefTitle: "Trial " + nctID,
		StartDate:  types.TrialDate{Date: "2018-03"},
	}))
}

// --- schema ---

func TestOpen_MigratesToLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.db")
	s, err := Open(path)
	require.NoError(t, err)

	v, err := schemaVersion(s.db)
	require.NoError(t, err)
	assert.Equal(t, latestVersion(), v)
	require.NoError(t, s.Close())

	// Reopening is a no-op.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	v, err = schemaVersion(s.db)
	require.NoError(t, err)
	assert.Equal(t, latestVersion(), v)
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	saved := migrations
	t.Cleanup(func() { migrations = saved })
	migrations = []Migration{
		{Version: 1, Description: "ok", Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE a (x INTEGER)`)
			return err
		}},
		{Version: 2, Description: "broken", Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE nope (`)
			return err
		}},
	}

	err = migrate(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 2 (broken)")

	v, err := schemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

// --- papers ---

func TestUpsertPaper_ClearsCacheWhenTextChanges(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := types.Paper{PMID: "123", Title: "A randomized trial", Abstract: "Patients were randomly assigned.", PublicationYear: 2019}
	created, err := s.UpsertPaper(ctx, &p)
	require.NoError(t, err)
	assert.True(t, created)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	results := []types.ClassificationResult{{Label: "randomized_controlled_trial", Name: "Randomized Controlled Trial", Confidence: 0.81, Evidence: []string{"Title: randomized"}}}
	require.NoError(t, s.SaveClassifications(ctx, "123", results, at))
	require.NoError(t, s.MarkLinked(ctx, "123", at))

	// Journal-only change keeps the cache.
	p.Journal = "BMJ"
	created, err = s.UpsertPaper(ctx, &p)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetPaper(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "BMJ", got.Journal)
	require.NotNil(t, got.ClassifiedAt)
	assert.True(t, got.ClassifiedAt.Equal(at))
	assert.Equal(t, results, got.Classifications)
	assert.NotNil(t, got.LinkedAt)

	// Abstract change invalidates it.
	p.Abstract = "Observational cohort."
	_, err = s.UpsertPaper(ctx, &p)
	require.NoError(t, err)

	got, err = s.GetPaper(ctx, "123")
	require.NoError(t, err)
	assert.Nil(t, got.ClassifiedAt)
	assert.Nil(t, got.LinkedAt)
	assert.Empty(t, got.Classifications)
}

func TestGetPaper_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetPaper(context.Background(), "999")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.SaveClassifications(context.Background(), "999", nil, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPapers_Filters(t *testing.T) {
	s := testStore(t)
	seedPaper(t, s, types.Paper{PMID: "100", Title: "a", PublicationYear: 2019})
	seedPaper(t, s, types.Paper{PMID: "20", Title: "b", PublicationYear: 2020})
	seedPaper(t, s, types.Paper{PMID: "3", Title: "c", PublicationYear: 2019})

	ctx := context.Background()
	all, err := s.ListPapers(ctx, PaperFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].PMID, "numeric order")
	assert.Equal(t, "100", all[2].PMID)

	y, err := s.ListPapers(ctx, PaperFilter{Year: 2019})
	require.NoError(t, err)
	assert.Len(t, y, 2)

	ids, err := s.ListPapers(ctx, PaperFilter{PMIDs: []string{"20", "404"}})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "20", ids[0].PMID)

	limited, err := s.ListPapers(ctx, PaperFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSearchPapers(t *testing.T) {
	s := testStore(t)
	seedPaper(t, s, types.Paper{PMID: "1", Title: "Fluoride varnish in children", PublicationYear: 2018})
	seedPaper(t, s, types.Paper{PMID: "2", Title: "Caries prevention", Abstract: "Fluoride rinse.", PublicationYear: 2021})
	seedPaper(t, s, types.Paper{PMID: "3", Title: "Fluoride 100%_pure", PublicationYear: 2030})
	seedPaper(t, s, types.Paper{PMID: "4", Title: "Unrelated", PublicationYear: 2019})
	seedTrial(t, s, "NCT00000001")

	ctx := context.Background()
	_, err := s.CreateLink(ctx, &types.PaperTrialLink{PaperID: "1", NCTID: "NCT00000001", Method: types.MethodManual, Confidence: types.ConfidenceHigh})
	require.NoError(t, err)

	got, err := s.SearchPapers(ctx, PaperQuery{
		Terms:           []string{"FLUORIDE"},
		YearFrom:        2017,
		YearTo:          2021,
		ExcludeLinkedTo: "NCT00000001",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].PMID)

	// LIKE wildcards in terms are literal.
	got, err = s.SearchPapers(ctx, PaperQuery{Terms: []string{"100%_"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].PMID)

	got, err = s.SearchPapers(ctx, PaperQuery{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

// --- trials ---

func TestTrials_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.GetTrial(ctx, "NCT01234567")
	assert.ErrorIs(t, err, ErrNotFound)

	fetched := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := &types.TrialRecord{
		NCTID:      "NCT01234567",
		BriefTitle: "Fluoride Varnish Study",
		Conditions: []string{"Dental Caries"},
		References: []types.TrialReference{{PMID: "31415926", Type: "RESULT"}},
		Raw:        []byte(`{"protocolSection":{}}`),
		FetchedAt:  fetched,
	}
	require.NoError(t, s.UpsertTrial(ctx, rec))

	got, err := s.GetTrial(ctx, "NCT01234567")
	require.NoError(t, err)
	assert.Equal(t, "Fluoride Varnish Study", got.BriefTitle)
	assert.Equal(t, []string{"Dental Caries"}, got.Conditions)
	assert.Equal(t, "31415926", got.References[0].PMID)
	assert.JSONEq(t, `{"protocolSection":{}}`, string(got.Raw))
	assert.True(t, got.FetchedAt.Equal(fetched))
	assert.False(t, got.UpdatedAt.IsZero())

	seedTrial(t, s, "NCT00000001")
	all, err := s.ListTrials(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "NCT00000001", all[0].NCTID)
}

// --- links ---

func TestCreateLink_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedPaper(t, s, types.Paper{PMID: "42", Title: "x"})
	seedTrial(t, s, "NCT01234567")

	first := &types.PaperTrialLink{PaperID: "42", NCTID: "NCT01234567",
		Method: types.MethodTitleAbstract, Confidence: types.ConfidenceMedium,
		ContextSnippet: strings.Repeat("é", 600)}
	created, err := s.CreateLink(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)
	assert.Len(t, []rune(first.ContextSnippet), types.MaxSnippetLen)

	second := &types.PaperTrialLink{PaperID: "42", NCTID: "NCT01234567",
		Method: types.MethodTrialReferences, Confidence: types.ConfidenceHigh}
	created, err = s.CreateLink(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, types.MethodTitleAbstract, second.Method, "first method wins")

	links, err := s.ListLinks(ctx, LinkFilter{NCTID: "NCT01234567"})
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestCreateLink_ConcurrentSamePair(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedPaper(t, s, types.Paper{PMID: "42", Title: "x"})
	seedTrial(t, s, "NCT01234567")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CreateLink(ctx, &types.PaperTrialLink{PaperID: "42", NCTID: "NCT01234567",
				Method: types.MethodTitleAbstract, Confidence: types.ConfidenceMedium})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestCreateLink_RequiresKnownTrial(t *testing.T) {
	s := testStore(t)
	seedPaper(t, s, types.Paper{PMID: "42", Title: "x"})
	_, err := s.CreateLink(context.Background(), &types.PaperTrialLink{PaperID: "42", NCTID: "NCT09999999",
		Method: types.MethodManual, Confidence: types.ConfidenceHigh})
	assert.Error(t, err)
}

func TestVerifyLink(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedPaper(t, s, types.Paper{PMID: "42", Title: "x"})
	seedTrial(t, s, "NCT01234567")

	_, err := s.VerifyLink(ctx, "42", "NCT01234567", "curator")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CreateLink(ctx, &types.PaperTrialLink{PaperID: "42", NCTID: "NCT01234567",
		Method: types.MethodTitleAbstract, Confidence: types.ConfidenceMedium})
	require.NoError(t, err)

	l, err := s.VerifyLink(ctx, "42", "NCT01234567", "curator")
	require.NoError(t, err)
	assert.True(t, l.Verified)
	assert.Equal(t, "curator", l.VerifiedBy)
	assert.NotNil(t, l.VerifiedAt)

	unverified, err := s.ListLinks(ctx, LinkFilter{Unverified: true})
	require.NoError(t, err)
	assert.Empty(t, unverified)

	ids, err := s.LinkedPaperIDs(ctx, "NCT01234567")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"42": true}, ids)
}

// --- runs ---

func TestRuns_Lifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	older := &types.RunRecord{Kind: types.RunClassify, StartedAt: base}
	require.NoError(t, s.CreateRun(ctx, older))
	assert.Equal(t, types.RunStarted, older.Status)

	newer := &types.RunRecord{Kind: types.RunLink, YearFilter: 2020, StartedAt: base.Add(500 * time.Millisecond)}
	require.NoError(t, s.CreateRun(ctx, newer))

	done := base.Add(90 * time.Second)
	newer.Status = types.RunCompleted
	newer.Counters = types.RunCounters{Total: 10, Processed: 10, Succeeded: 9, Failed: 1, LinksCreated: 4}
	newer.CompletedAt = &done
	newer.Duration = 90 * time.Second
	require.NoError(t, s.UpdateRun(ctx, newer))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID, "newest first")
	assert.Equal(t, types.RunCompleted, runs[0].Status)
	assert.Equal(t, 9, runs[0].Counters.Succeeded)
	assert.Equal(t, 90*time.Second, runs[0].Duration)
	assert.Equal(t, 2020, runs[0].YearFilter)

	got, err := s.GetRun(ctx, older.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CompletedAt)

	err = s.UpdateRun(ctx, &types.RunRecord{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- papers file ---

func TestDecodePapers_SingleAndList(t *testing.T) {
	in := `pmid: "1"
title: One
---
- pmid: "2"
  title: Two
  publication_types: [Review]
- pmid: "0003"
  title: Three
`
	papers, err := DecodePapers(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, papers, 3)
	assert.Equal(t, "One", papers[0].Title)
	assert.Equal(t, []string{"Review"}, papers[1].PublicationTypes)

	_, err = DecodePapers(strings.NewReader("just a string\n"))
	assert.Error(t, err)
}

func TestImportExport(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	papers := []types.Paper{
		{PMID: "00042", Title: "Trial A", PublicationYear: 2020},
		{PMID: "abc", Title: "bad"},
		{PMID: "7", Title: "Trial B", PublicationYear: 2021},
	}
	var out bytes.Buffer
	sum, err := s.ImportPapers(ctx, papers, &out)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Inserted: 2, Failed: 1}, sum)
	assert.Contains(t, out.String(), "imported 42")

	sum, err = s.ImportPapers(ctx, papers[:1], &out)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)

	var buf bytes.Buffer
	n, err := s.ExportPapers(ctx, &buf, PaperFilter{Year: 2021})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	back, err := DecodePapers(&buf)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, "7", back[0].PMID)
}
