// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package identifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTrialID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"NCT01234567", "NCT01234567", true},
		{"nct01234567", "NCT01234567", true},
		{" NCT 0123 4567 ", "NCT01234567", true},
		{"NCT-01234567", "NCT01234567", true},
		{"NCT_0123_4567", "NCT01234567", true},
		{"NCT0123456", "", false},
		{"NCT012345678", "", false},
		{"ISRCTN12345678", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeTrialID(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.True(t, ValidTrialID("NCT00012345"))
	assert.False(t, ValidTrialID("nct00012345"))
}

func TestNormalizePMID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"23456789", "23456789", true},
		{"0012345", "12345", true},
		{"1", "1", true},
		{"123456789", "123456789", true},
		{"1234567890", "", false},
		{"0", "", false},
		{"000", "", false},
		{"12a45", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizePMID(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, m)

	m, err = ParseMode("LOOSE")
	require.NoError(t, err)
	assert.Equal(t, ModeLoose, m)

	_, err = ParseMode("fuzzy")
	assert.Error(t, err)
}

func TestTrials_RegisteredMention(t *testing.T) {
	e := New(ModeStrict)
	got := e.Trials("", "The study was registered as NCT01234567 before enrollment.")

	require.Len(t, got, 1)
	assert.Equal(t, "NCT01234567", got[0].Value)
	assert.Equal(t, FamilyTrial, got[0].Family)
	assert.Equal(t, StrengthAnchored, got[0].Strength)
	require.Len(t, got[0].Occurrences, 1)
	occ := got[0].Occurrences[0]
	assert.Equal(t, FieldAbstract, occ.Field)
	assert.Equal(t, "NCT01234567", "The study was registered as NCT01234567 before enrollment."[occ.Start:occ.End])
	assert.Contains(t, got[0].Context, "registered as NCT01234567")
}

func TestTrials_FluorideTitle(t *testing.T) {
	e := New(ModeStrict)
	got := e.Trials(
		"A Double-Blind, Placebo-Controlled Randomized Trial of Fluoride Varnish, NCT00012345",
		"...participants were randomly assigned...",
	)
	assert.Equal(t, []string{"NCT00012345"}, Values(got))
	assert.Equal(t, StrengthCanonical, got[0].Strength)
	assert.Equal(t, FieldTitle, got[0].Occurrences[0].Field)
}

func TestTrials_Forms(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		strict   []string
		loose    []string
		strength Strength
	}{
		{
			name:     "registry label",
			text:     "ClinicalTrials.gov Identifier: NCT02345678.",
			strict:   []string{"NCT02345678"},
			loose:    []string{"NCT02345678"},
			strength: StrengthAnchored,
		},
		{
			name:     "registry url",
			text:     "See https://clinicaltrials.gov/ct2/show/NCT03456789 for details.",
			strict:   []string{"NCT03456789"},
			loose:    []string{"NCT03456789"},
			strength: StrengthAnchored,
		},
		{
			name:     "trial registration heading",
			text:     "Trial registration: ClinicalTrials.gov, NCT04567890.",
			strict:   []string{"NCT04567890"},
			loose:    []string{"NCT04567890"},
			strength: StrengthAnchored,
		},
		{
			name:     "parenthetical",
			text:     "a multicentre trial (nct05678901) of sealants",
			strict:   []string{"NCT05678901"},
			loose:    []string{"NCT05678901"},
			strength: StrengthAnchored,
		},
		{
			name:   "separated digits only in loose mode",
			text:   "registry number NCT 0123 4567 was assigned",
			strict: []string{},
			loose:  []string{"NCT01234567"},
		},
		{
			name:   "hyphenated only in loose mode",
			text:   "trial NCT-01234567 enrolled 80 children",
			strict: []string{},
			loose:  []string{"NCT01234567"},
		},
		{
			name:   "too few digits",
			text:   "NCT0123456 is malformed",
			strict: []string{},
			loose:  []string{},
		},
		{
			name:   "embedded in a longer token",
			text:   "XNCT01234567Y",
			strict: []string{},
			loose:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strict := New(ModeStrict).TrialsInText(tt.text)
			assert.Equal(t, tt.strict, Values(strict))
			loose := New(ModeLoose).TrialsInText(tt.text)
			assert.Equal(t, tt.loose, Values(loose))
			if tt.strength != 0 && len(strict) > 0 {
				assert.Equal(t, tt.strength, strict[0].Strength)
			}
		})
	}
}

func TestTrials_DeduplicatesInFirstSeenOrder(t *testing.T) {
	e := New(ModeStrict)
	got := e.Trials(
		"Outcomes of NCT22222222",
		"Registered as NCT11111111 (NCT22222222); an extension, NCT11111111, followed.",
	)
	require.Equal(t, []string{"NCT22222222", "NCT11111111"}, Values(got))

	// One occurrence per captured span even when several rules match it.
	assert.Len(t, got[0].Occurrences, 2)
	assert.Equal(t, FieldTitle, got[0].Occurrences[0].Field)
	assert.Equal(t, StrengthAnchored, got[0].Strength, "strongest occurrence wins")
	assert.Len(t, got[1].Occurrences, 2)
}

func TestPMIDs_Forms(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		strict []string
		loose  []string
	}{
		{"labelled", "PMID: 23456789", []string{"23456789"}, []string{"23456789"}},
		{"no colon", "see PMID 1234567", []string{"1234567"}, []string{"1234567"}},
		{"pubmed id", "PubMed ID: 7654321", []string{"7654321"}, []string{"7654321"}},
		{"bracketed", "as reported [PubMed: 31234567]", []string{"31234567"}, []string{"31234567"}},
		{"pubmed url", "https://pubmed.ncbi.nlm.nih.gov/30123456/", []string{"30123456"}, []string{"30123456"}},
		{"legacy url", "http://www.ncbi.nlm.nih.gov/pubmed/19876543", []string{"19876543"}, []string{"19876543"}},
		{"short url", "pubmed.gov/28765432", []string{"28765432"}, []string{"28765432"}},
		{"leading zeros", "PMID: 000123", []string{"123"}, []string{"123"}},
		{"ten digits rejected", "PMID: 1234567890", []string{}, []string{}},
		{"bare digits only in loose mode", "reference 29876543 in the list", []string{}, []string{"29876543"}},
		{"separated trial digits are not pmids", "NCT 01234567", []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.strict, Values(New(ModeStrict).PMIDsInText(tt.text)))
			assert.Equal(t, tt.loose, Values(New(ModeLoose).PMIDsInText(tt.text)))
		})
	}
}

func TestPMIDs_LooseStrength(t *testing.T) {
	got := New(ModeLoose).PMIDsInText("PMID: 23456789 and also 34567890")
	require.Len(t, got, 2)
	assert.Equal(t, StrengthAnchored, got[0].Strength)
	assert.Equal(t, StrengthLoose, got[1].Strength)
}

func TestContextWindows(t *testing.T) {
	filler := strings.Repeat("word ", 60)
	abstract := filler + "registered as NCT01234567 today " + filler

	e := New(ModeStrict)
	got := e.Trials("", abstract)
	require.Len(t, got, 1)
	ctx := got[0].Context
	assert.LessOrEqual(t, len(ctx), len("NCT01234567")+2*DefaultAbstractContext)
	assert.False(t, strings.HasPrefix(ctx, "ord"), "context starts on a word boundary")
	assert.Contains(t, ctx, "NCT01234567")

	narrow := New(ModeStrict, WithContextWindows(10, 10)).Trials("", abstract)
	require.Len(t, narrow, 1)
	assert.Less(t, len(narrow[0].Context), len(ctx))
}

func TestMatch_BestContext(t *testing.T) {
	e := New(ModeStrict)
	got := e.Trials("Fluoride varnish, NCT01234567",
		"Children were randomly assigned. The trial was registered as NCT01234567 before enrolment began.")
	require.Len(t, got, 1)
	m := got[0]
	require.Len(t, m.Occurrences, 2)
	assert.Equal(t, FieldTitle, m.Occurrences[0].Field)
	assert.Equal(t, m.Occurrences[0].Context, m.Context)

	best := m.BestContext()
	assert.Contains(t, best, "registered as NCT01234567")
	assert.Equal(t, m.Occurrences[1].Context, best)

	tie := Match{Occurrences: []Occurrence{
		{Strength: StrengthCanonical, Context: "short NCT01234567"},
		{Strength: StrengthCanonical, Context: "a longer window around NCT01234567"},
	}}
	assert.Equal(t, "a longer window around NCT01234567", tie.BestContext())

	assert.Equal(t, "only", Match{Context: "only"}.BestContext())
}

func TestExtractContext(t *testing.T) {
	text := "alpha beta gamma NCT01234567 delta epsilon zeta"
	start := strings.Index(text, "NCT")
	end := start + len("NCT01234567")

	assert.Equal(t, "gamma NCT01234567 delta", extractContext(text, start, end, 8))
	assert.Equal(t, text, extractContext(text, start, end, 100))
}

func TestStrength_MarshalText(t *testing.T) {
	b, err := StrengthCanonical.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "canonical", string(b))
}
