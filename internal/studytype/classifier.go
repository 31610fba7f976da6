// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package studytype

import (
	"sort"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultMinConfidence is the score a label must exceed to be kept.
const DefaultMinConfidence = 0.3

// Classifier scores documents against a library and keeps labels above a
// confidence threshold.
type Classifier struct {
	lib       *Library
	threshold float64
}

// NewClassifier returns a classifier over lib. A non-positive minConfidence
// selects DefaultMinConfidence.
func NewClassifier(lib *Library, minConfidence float64) *Classifier {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Classifier{lib: lib, threshold: minConfidence}
}

// Library returns the pattern library the classifier scores with.
func (c *Classifier) Library() *Library { return c.lib }

// Candidates returns every label scoring strictly above the threshold, sorted
// by descending confidence with ties in library order. Conflicts are not
// resolved. A document with no title and no abstract yields no candidates.
func (c *Classifier) Candidates(d Document) []types.ClassificationResult {
	if d.Empty() {
		return nil
	}
	var out []types.ClassificationResult
	for _, s := range c.lib.ScoreAll(d) {
		if s.Confidence <= c.threshold {
			continue
		}
		out = append(out, types.ClassificationResult{
			Label:      string(s.Label),
			Name:       c.lib.Name(s.Label),
			Confidence: s.Confidence,
			Evidence:   s.Evidence,
		})
	}
	c.lib.sortResults(out)
	return out
}

// Classify returns the conflict-resolved label set for a document.
func (c *Classifier) Classify(d Document) []types.ClassificationResult {
	return c.lib.Resolve(c.Candidates(d))
}

// sortResults orders results by descending confidence, breaking ties by
// library order and then by label name.
func (l *Library) sortResults(rs []types.ClassificationResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Confidence != rs[j].Confidence {
			return rs[i].Confidence > rs[j].Confidence
		}
		oi, oj := l.order(Label(rs[i].Label)), l.order(Label(rs[j].Label))
		if oi != oj {
			return oi < oj
		}
		return rs[i].Label < rs[j].Label
	})
}
