// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package linker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

func TestConditionTerms(t *testing.T) {
	tests := []struct {
		name       string
		conditions []string
		limit      int
		want       []string
	}{
		{"stopwords and short words dropped", []string{"Caries and Periodontitis of the Molars"}, 0, []string{"caries", "periodontitis", "molars"}},
		{"deduplicated across conditions", []string{"Dental Caries", "Childhood Caries"}, 0, []string{"dental", "caries", "childhood"}},
		{"limited", []string{"Dental Caries", "Childhood Caries", "Gingivitis", "Plaque Biofilm"}, 5, []string{"dental", "caries", "childhood", "gingivitis", "plaque"}},
		{"custom limit", []string{"Dental Caries"}, 1, []string{"dental"}},
		{"nothing usable", []string{"of", "in a", "the"}, 0, nil},
		{"accented letters stay inside words", []string{"Sjögren's Syndrome", "Behçet Disease"}, 0, []string{"sjögren", "syndrome", "behçet", "disease"}},
		{"three letters counted as runes", []string{"Ménière Œdème"}, 0, []string{"ménière", "œdème"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConditionTerms(tt.conditions, tt.limit))
		})
	}
}

func TestCandidates(t *testing.T) {
	l, st, res, _ := setup(t)
	ctx := context.Background()

	addPaper(t, st, types.Paper{PMID: "1", Title: "Caries in preschool children", PublicationYear: 2019})
	addPaper(t, st, types.Paper{PMID: "2", Title: "Varnish", Abstract: "Dental outcomes after two years.", PublicationYear: 2021})
	addPaper(t, st, types.Paper{PMID: "3", Title: "Caries trends", PublicationYear: 2012})
	addPaper(t, st, types.Paper{PMID: "4", Title: "Orthodontic retention", PublicationYear: 2019})
	addPaper(t, st, types.Paper{PMID: "5", Title: "Caries arrest with silver diamine", PublicationYear: 2020})

	trial, err := res.Resolve(ctx, "NCT00012345")
	require.NoError(t, err)
	trial.Conditions = []string{"Dental Caries"}
	trial.StartDate = types.TrialDate{Date: "2018-03"}

	_, err = st.CreateLink(ctx, &types.PaperTrialLink{PaperID: "5", NCTID: trial.NCTID,
		Method: types.MethodManual, Confidence: types.ConfidenceHigh})
	require.NoError(t, err)

	cands, err := l.Candidates(ctx, trial)
	require.NoError(t, err)

	var ids []string
	for _, c := range cands {
		ids = append(ids, c.Paper.PMID)
		assert.Equal(t, "NCT00012345", c.NCTID)
		assert.NotEmpty(t, c.MatchedTerms)
	}
	assert.ElementsMatch(t, []string{"1", "2"}, ids)

	// Candidates never become links.
	links, err := st.ListLinks(ctx, store.LinkFilter{NCTID: trial.NCTID})
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestCandidates_UnknownStartDateSearchesAllYears(t *testing.T) {
	l, st, _, _ := setup(t)
	addPaper(t, st, types.Paper{PMID: "3", Title: "Caries trends", PublicationYear: 1990})

	trial := &types.TrialRecord{NCTID: "NCT00012345", Conditions: []string{"Caries"}}
	cands, err := l.Candidates(context.Background(), trial)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, []string{"caries"}, cands[0].MatchedTerms)
}

func TestCandidates_NoConditions(t *testing.T) {
	l, _, _, _ := setup(t)
	cands, err := l.Candidates(context.Background(), &types.TrialRecord{NCTID: "NCT00012345"})
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestCandidates_MaxResults(t *testing.T) {
	l, st, _, _ := setup(t)
	l.candidates.MaxResults = 2
	for _, id := range []string{"1", "2", "3"} {
		addPaper(t, st, types.Paper{PMID: id, Title: "Caries " + id})
	}
	cands, err := l.Candidates(context.Background(), &types.TrialRecord{NCTID: "NCT00012345", Conditions: []string{"Caries"}})
	require.NoError(t, err)
	assert.Len(t, cands, 2)
}

func TestCandidates_ZeroYearWindow(t *testing.T) {
	l, st, _, _ := setup(t)
	l.candidates = candidateConfig(types.CandidateConfig{MaxTerms: 5, MaxResults: 50})
	addPaper(t, st, types.Paper{PMID: "1", Title: "Caries before", PublicationYear: 2017})
	addPaper(t, st, types.Paper{PMID: "2", Title: "Caries during", PublicationYear: 2018})
	addPaper(t, st, types.Paper{PMID: "3", Title: "Caries after", PublicationYear: 2019})

	trial := &types.TrialRecord{NCTID: "NCT00012345", Conditions: []string{"Caries"}, StartDate: types.TrialDate{Date: "2018-06"}}
	cands, err := l.Candidates(context.Background(), trial)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "2", cands[0].Paper.PMID)
}

func TestCandidateConfig(t *testing.T) {
	assert.Equal(t, types.CandidateConfig{MaxTerms: 5, MaxResults: 50, YearsBefore: 1, YearsAfter: 3},
		candidateConfig(types.CandidateConfig{}))
	assert.Equal(t, types.CandidateConfig{MaxTerms: 5, MaxResults: 10, YearsBefore: 0, YearsAfter: 2},
		candidateConfig(types.CandidateConfig{MaxResults: 10, YearsBefore: -1, YearsAfter: 2}))
}
