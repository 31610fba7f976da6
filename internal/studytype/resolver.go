// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package studytype

import (
	"slices"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Resolve reduces candidates to a conflict-free set. The highest-confidence
// primary design becomes the anchor and every other primary design is
// dropped. When the anchor belongs to a rider set's anchor family, the riders
// of that set present among the candidates follow it in confidence order.
//
// If no candidate is a primary design the candidates are returned sorted but
// otherwise unfiltered. The input slice is not modified.
func (l *Library) Resolve(candidates []types.ClassificationResult) []types.ClassificationResult {
	if len(candidates) == 0 {
		return nil
	}
	sorted := slices.Clone(candidates)
	l.sortResults(sorted)

	anchor := -1
	for i, c := range sorted {
		if l.primary[Label(c.Label)] {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return sorted
	}

	out := []types.ClassificationResult{sorted[anchor]}
	anchorLabel := Label(sorted[anchor].Label)
	for ri, set := range l.riders {
		if !slices.Contains(set.Anchors, anchorLabel) {
			continue
		}
		for _, c := range sorted {
			if si, ok := l.riderSet[Label(c.Label)]; ok && si == ri {
				out = append(out, c)
			}
		}
	}
	return out
}

// Conflicts returns the names of groups holding more than one label of
// results. Riders are not members of any group and never conflict.
func (l *Library) Conflicts(results []types.ClassificationResult) []string {
	var out []string
	for _, g := range l.groups {
		n := 0
		for _, r := range results {
			if slices.Contains(g.Labels, Label(r.Label)) {
				n++
			}
		}
		if n > 1 {
			out = append(out, g.Name)
		}
	}
	return out
}
