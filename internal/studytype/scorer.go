// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package studytype

import (
	"math"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Document is the text of a paper as seen by the scorer.
type Document struct {
	Title            string
	Abstract         string
	PublicationTypes []string
}

// DocumentFor builds a Document from a stored paper.
func DocumentFor(p *types.Paper) Document {
	return Document{
		Title:            p.Title,
		Abstract:         p.Abstract,
		PublicationTypes: p.PublicationTypes,
	}
}

// Empty reports whether the document has neither title nor abstract text.
func (d Document) Empty() bool {
	return strings.TrimSpace(d.Title) == "" && strings.TrimSpace(d.Abstract) == ""
}

// Score is the pattern score of one label.
type Score struct {
	Label      Label
	Confidence float64
	Evidence   []string
}

// hits is the phrase presence of one document, per search surface.
type hits struct {
	text    []bool
	title   []bool
	pubType []bool
}

func (l *Library) scanDocument(d Document) hits {
	title := strings.ToLower(d.Title)
	text := strings.ToLower(strings.TrimSpace(d.Title + " " + d.Abstract))
	pub := strings.ToLower(strings.Join(d.PublicationTypes, "; "))
	return hits{
		text:    l.scan(text),
		title:   l.scan(title),
		pubType: l.scan(pub),
	}
}

func (h hits) surface(t Tier) []bool {
	switch t {
	case TierTitle:
		return h.title
	case TierPubType:
		return h.pubType
	default:
		return h.text
	}
}

func (l *Library) score(i int, h hits) Score {
	p := &l.patterns[i]
	s := Score{Label: p.Label}
	var total float64
	for t := TierKeyword; t <= TierPubType; t++ {
		found := h.surface(t)
		phrases := p.phrases(t)
		for k, id := range l.phraseIDs[i][t] {
			if !found[id] {
				continue
			}
			total += p.Weight * t.Multiplier()
			s.Evidence = append(s.Evidence, t.String()+": "+phrases[k])
		}
	}
	s.Confidence = math.Min(total, 1.0)
	return s
}

// Score computes the capped score of a single label. The second result is
// false when the library does not define the label.
func (l *Library) Score(label Label, d Document) (Score, bool) {
	i, ok := l.index[label]
	if !ok {
		return Score{}, false
	}
	return l.score(i, l.scanDocument(d)), true
}

// ScoreAll scores every label in library order, including zero scores.
func (l *Library) ScoreAll(d Document) []Score {
	h := l.scanDocument(d)
	out := make([]Score, len(l.patterns))
	for i := range l.patterns {
		out[i] = l.score(i, h)
	}
	return out
}
