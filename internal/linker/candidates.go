// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package linker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/orsinium-labs/stopwords"

	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Candidate search defaults. A zero CandidateConfig passed to New selects
// all of them.
const (
	DefaultMaxTerms    = 5
	DefaultMaxResults  = 50
	DefaultYearsBefore = 1
	DefaultYearsAfter  = 3
)

var (
	termRe  = regexp.MustCompile(`[\p{L}\p{N}]{3,}`)
	english = stopwords.MustGet("en")
)

// ConditionTerms returns up to limit distinct search terms from a trial's
// condition names: lowercased runs of three or more letters or digits that
// are not English stopwords. Letters outside ASCII count as word characters.
func ConditionTerms(conditions []string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMaxTerms
	}
	seen := make(map[string]bool)
	var terms []string
	for _, c := range conditions {
		for _, w := range termRe.FindAllString(strings.ToLower(c), -1) {
			if seen[w] || english.Contains(w) {
				continue
			}
			seen[w] = true
			terms = append(terms, w)
			if len(terms) == limit {
				return terms
			}
		}
	}
	return terms
}

// Candidates suggests papers that may report on t: papers mentioning any of
// the trial's condition terms, published within the configured window
// around the trial start year when it is known. Papers already linked to
// the trial are excluded. Candidates are for review only.
func (l *Linker) Candidates(ctx context.Context, t *types.TrialRecord) ([]types.LinkCandidate, error) {
	terms := ConditionTerms(t.Conditions, l.candidates.MaxTerms)
	if len(terms) == 0 {
		return nil, nil
	}

	q := store.PaperQuery{
		Terms:           terms,
		ExcludeLinkedTo: t.NCTID,
		Limit:           l.candidates.MaxResults,
	}
	if year, ok := t.StartDate.Year(); ok {
		q.YearFrom = year - l.candidates.YearsBefore
		q.YearTo = year + l.candidates.YearsAfter
	}

	papers, err := l.store.SearchPapers(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("searching candidates for %s: %w", t.NCTID, err)
	}

	out := make([]types.LinkCandidate, 0, len(papers))
	for _, p := range papers {
		text := strings.ToLower(p.Title + " " + p.Abstract)
		var matched []string
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched = append(matched, term)
			}
		}
		out = append(out, types.LinkCandidate{Paper: p, NCTID: t.NCTID, MatchedTerms: matched})
	}
	return out, nil
}

// candidateConfig fills in defaults. The term and result limits must be
// positive; a zero year offset is a valid, exact bound.
func candidateConfig(cfg types.CandidateConfig) types.CandidateConfig {
	if cfg == (types.CandidateConfig{}) {
		return types.CandidateConfig{
			MaxTerms:    DefaultMaxTerms,
			MaxResults:  DefaultMaxResults,
			YearsBefore: DefaultYearsBefore,
			YearsAfter:  DefaultYearsAfter,
		}
	}
	if cfg.MaxTerms <= 0 {
		cfg.MaxTerms = DefaultMaxTerms
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	cfg.YearsBefore = max(cfg.YearsBefore, 0)
	cfg.YearsAfter = max(cfg.YearsAfter, 0)
	return cfg
}
