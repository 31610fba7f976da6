// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package identifier

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Field names the part of a record an identifier was found in.
type Field string

const (
	FieldTitle    Field = "title"
	FieldAbstract Field = "abstract"
	FieldText     Field = "text"
)

// Default context windows, in bytes on each side of a match.
const (
	DefaultTitleContext    = 50
	DefaultAbstractContext = 100
)

// Occurrence is one place an identifier was found.
type Occurrence struct {
	Field    Field    `json:"field" yaml:"field"`
	Start    int      `json:"start" yaml:"start"`
	End      int      `json:"end" yaml:"end"`
	Strength Strength `json:"strength" yaml:"strength"`
	Context  string   `json:"context" yaml:"context"`
}

// Match is a normalized identifier with every place it occurred.
type Match struct {
	Value    string   `json:"value" yaml:"value"`
	Family   Family   `json:"family" yaml:"family"`
	Strength Strength `json:"strength" yaml:"strength"`

	// Context is the context window of the first occurrence.
	Context     string       `json:"context" yaml:"context"`
	Occurrences []Occurrence `json:"occurrences" yaml:"occurrences"`
}

// BestContext returns the context of the strongest occurrence, preferring
// the longest context among equally strong ones. It falls back to Context
// when there are no occurrences.
func (m Match) BestContext() string {
	best := -1
	for i, o := range m.Occurrences {
		if best < 0 || o.Strength > m.Occurrences[best].Strength ||
			(o.Strength == m.Occurrences[best].Strength && len(o.Context) > len(m.Occurrences[best].Context)) {
			best = i
		}
	}
	if best < 0 {
		return m.Context
	}
	return m.Occurrences[best].Context
}

// Values returns the identifier values of matches in order.
func Values(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Value
	}
	return out
}

// rule is one extraction pattern. Capture group 1 holds the identifier.
type rule struct {
	re        *regexp.Regexp
	strength  Strength
	looseOnly bool
}

var trialRules = []rule{
	// ClinicalTrials.gov Identifier: NCT01234567
	{re: regexp.MustCompile(`(?i)clinicaltrials\.gov[\s:]*(?:identifier|id|registration|number|no\.?)?[\s:#]*(NCT\d{8})\b`), strength: StrengthAnchored},
	// https://clinicaltrials.gov/ct2/show/NCT01234567, /study/NCT01234567
	{re: regexp.MustCompile(`(?i)clinicaltrials\.gov/(?:ct2/show/|study/|show/)?(NCT\d{8})\b`), strength: StrengthAnchored},
	// Trial registration: ..., registered as NCT01234567
	{re: regexp.MustCompile(`(?i)\b(?:trial\s+registration|registration|registered)\b[^;\n]{0,80}?\b(NCT\d{8})\b`), strength: StrengthAnchored},
	// (NCT01234567)
	{re: regexp.MustCompile(`(?i)\(\s*(NCT\d{8})\s*[),;]`), strength: StrengthAnchored},
	{re: regexp.MustCompile(`(?i)\b(NCT\d{8})\b`), strength: StrengthCanonical},
	// NCT 01234567, NCT-0123-4567
	{re: regexp.MustCompile(`(?i)\b(NCT[\s\-_]+\d{8}|NCT[\s\-_]*\d{4}[\s\-_]\d{4})\b`), strength: StrengthLoose, looseOnly: true},
}

var pmidRules = []rule{
	// PMID: 23456789, PMID 23456789
	{re: regexp.MustCompile(`(?i)\bPMID\s*[:#]?\s*(\d{1,9})\b`), strength: StrengthAnchored},
	{re: regexp.MustCompile(`(?i)\bPubMed\s+ID\s*[:#]?\s*(\d{1,9})\b`), strength: StrengthAnchored},
	{re: regexp.MustCompile(`(?i)\[\s*PubMed\s*:?\s*(\d{1,9})\s*\]`), strength: StrengthAnchored},
	{re: regexp.MustCompile(`(?i)\bPubMed\s*:?\s+(\d{1,9})\b`), strength: StrengthAnchored},
	{re: regexp.MustCompile(`(?i)pubmed\.ncbi\.nlm\.nih\.gov/(\d{1,9})\b`), strength: StrengthAnchored},
	{re: regexp.MustCompile(`(?i)ncbi\.nlm\.nih\.gov/pubmed/(\d{1,9})\b`), strength: StrengthAnchored},
	{re: regexp.MustCompile(`(?i)\bpubmed\.gov/(\d{1,9})\b`), strength: StrengthAnchored},
	{re: regexp.MustCompile(`(?i)doi\.org/\S*?pmid[/:=](\d{1,9})\b`), strength: StrengthAnchored},
	// Bare 8-9 digit runs corroborate only.
	{re: regexp.MustCompile(`\b(\d{8,9})\b`), strength: StrengthLoose, looseOnly: true},
}

// Extractor finds identifiers in paper text.
type Extractor struct {
	mode           Mode
	titleWindow    int
	abstractWindow int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithContextWindows sets the title and abstract context windows. Non-positive
// values keep the defaults.
func WithContextWindows(title, abstract int) Option {
	return func(e *Extractor) {
		if title > 0 {
			e.titleWindow = title
		}
		if abstract > 0 {
			e.abstractWindow = abstract
		}
	}
}

// New returns an Extractor for mode.
func New(mode Mode, opts ...Option) *Extractor {
	if mode == "" {
		mode = ModeStrict
	}
	e := &Extractor{
		mode:           mode,
		titleWindow:    DefaultTitleContext,
		abstractWindow: DefaultAbstractContext,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Mode returns the extractor's mode.
func (e *Extractor) Mode() Mode { return e.mode }

type segment struct {
	field  Field
	text   string
	window int
}

func (e *Extractor) paperSegments(title, abstract string) []segment {
	return []segment{
		{field: FieldTitle, text: title, window: e.titleWindow},
		{field: FieldAbstract, text: abstract, window: e.abstractWindow},
	}
}

// Trials returns the trial identifiers in a paper's title and abstract.
func (e *Extractor) Trials(title, abstract string) []Match {
	return e.extract(FamilyTrial, e.paperSegments(title, abstract))
}

// PMIDs returns the PubMed identifiers in a paper's title and abstract.
func (e *Extractor) PMIDs(title, abstract string) []Match {
	return e.extract(FamilyPMID, e.paperSegments(title, abstract))
}

// TrialsInText returns the trial identifiers in a single block of text.
func (e *Extractor) TrialsInText(text string) []Match {
	return e.extract(FamilyTrial, []segment{{field: FieldText, text: text, window: e.abstractWindow}})
}

// PMIDsInText returns the PubMed identifiers in a single block of text.
func (e *Extractor) PMIDsInText(text string) []Match {
	return e.extract(FamilyPMID, []segment{{field: FieldText, text: text, window: e.abstractWindow}})
}

type rawHit struct {
	value      string
	start, end int
	strength   Strength
}

func (e *Extractor) extract(family Family, segments []segment) []Match {
	rules, normalize := trialRules, NormalizeTrialID
	if family == FamilyPMID {
		rules, normalize = pmidRules, NormalizePMID
	}

	var out []Match
	index := make(map[string]int)

	for _, seg := range segments {
		if seg.text == "" {
			continue
		}

		var hits []rawHit
		for _, r := range rules {
			if r.looseOnly && e.mode != ModeLoose {
				continue
			}
			for _, m := range r.re.FindAllStringSubmatchIndex(seg.text, -1) {
				start, end := m[2], m[3]
				if family == FamilyPMID && r.strength == StrengthLoose && precededByTrialPrefix(seg.text, start) {
					continue
				}
				value, ok := normalize(seg.text[start:end])
				if !ok {
					continue
				}
				hits = append(hits, rawHit{value: value, start: start, end: end, strength: r.strength})
			}
		}
		sort.SliceStable(hits, func(i, j int) bool {
			if hits[i].start != hits[j].start {
				return hits[i].start < hits[j].start
			}
			return hits[i].strength > hits[j].strength
		})

		// Several rules may capture the same span; keep the strongest.
		seenStart := make(map[int]bool)
		for _, h := range hits {
			if seenStart[h.start] {
				continue
			}
			seenStart[h.start] = true

			occ := Occurrence{
				Field:    seg.field,
				Start:    h.start,
				End:      h.end,
				Strength: h.strength,
				Context:  extractContext(seg.text, h.start, h.end, seg.window),
			}
			i, ok := index[h.value]
			if !ok {
				index[h.value] = len(out)
				out = append(out, Match{
					Value:    h.value,
					Family:   family,
					Strength: h.strength,
					Context:  occ.Context,
				})
				i = len(out) - 1
			}
			out[i].Occurrences = append(out[i].Occurrences, occ)
			if h.strength > out[i].Strength {
				out[i].Strength = h.strength
			}
		}
	}
	return out
}

// precededByTrialPrefix reports whether the digits at start belong to a
// separated trial number such as "NCT 01234567".
func precededByTrialPrefix(text string, start int) bool {
	before := strings.TrimRight(text[:start], " \t-_")
	return len(before) >= 3 && strings.EqualFold(before[len(before)-3:], "NCT")
}

// extractContext returns the text within window bytes of a match, trimmed to
// word boundaries.
func extractContext(text string, start, end, window int) string {
	ctxStart := start - window
	if ctxStart < 0 {
		ctxStart = 0
	}
	ctxEnd := end + window
	if ctxEnd > len(text) {
		ctxEnd = len(text)
	}
	for ctxStart < start && !utf8.RuneStart(text[ctxStart]) {
		ctxStart++
	}
	for ctxEnd > end && ctxEnd < len(text) && !utf8.RuneStart(text[ctxEnd]) {
		ctxEnd--
	}
	snippet := text[ctxStart:ctxEnd]
	if ctxStart > 0 {
		if i := strings.IndexByte(snippet, ' '); i >= 0 && i < start-ctxStart {
			snippet = snippet[i+1:]
		}
	}
	if ctxEnd < len(text) {
		if i := strings.LastIndexByte(snippet, ' '); i >= 0 && i >= len(snippet)-(ctxEnd-end) {
			snippet = snippet[:i]
		}
	}
	return strings.TrimSpace(snippet)
}
