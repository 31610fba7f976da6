// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package studytype

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/coregx/ahocorasick"
	"go.yaml.in/yaml/v3"
)

//go:embed patterns.yaml
var defaultPatterns []byte

// Tier identifies which part of a paper a phrase is looked for in and how
// much a match contributes.
type Tier int

const (
	TierKeyword Tier = iota
	TierTitle
	TierAbstract
	TierMethod
	TierPubType
)

var tierMultiplier = [...]float64{
	TierKeyword:  0.3,
	TierTitle:    0.4,
	TierAbstract: 0.2,
	TierMethod:   0.1,
	TierPubType:  0.2,
}

var tierPrefix = [...]string{
	TierKeyword:  "Keyword",
	TierTitle:    "Title",
	TierAbstract: "Abstract",
	TierMethod:   "Method",
	TierPubType:  "PubType",
}

// Multiplier returns the fraction of a label's weight a match in t is worth.
func (t Tier) Multiplier() float64 { return tierMultiplier[t] }

func (t Tier) String() string { return tierPrefix[t] }

// Pattern is the phrase set of one label.
type Pattern struct {
	Label    Label    `yaml:"label"`
	Name     string   `yaml:"name"`
	Weight   float64  `yaml:"weight"`
	Keywords []string `yaml:"keywords,omitempty"`
	Title    []string `yaml:"title,omitempty"`
	Abstract []string `yaml:"abstract,omitempty"`
	Method   []string `yaml:"method,omitempty"`
}

// phrases returns the pattern's phrases for a tier. Publication types are
// searched with the keyword list.
func (p *Pattern) phrases(t Tier) []string {
	switch t {
	case TierKeyword, TierPubType:
		return p.Keywords
	case TierTitle:
		return p.Title
	case TierAbstract:
		return p.Abstract
	default:
		return p.Method
	}
}

// Group is a set of mutually exclusive labels. The primary group holds every
// design that can anchor a classification.
type Group struct {
	Name    string  `yaml:"name"`
	Primary bool    `yaml:"primary,omitempty"`
	Labels  []Label `yaml:"labels"`
}

// RiderSet lists specification labels allowed to accompany an anchor from
// Anchors. Riders are exempt from group exclusivity.
type RiderSet struct {
	Name    string  `yaml:"name"`
	Anchors []Label `yaml:"anchors"`
	Labels  []Label `yaml:"labels"`
}

type libraryFile struct {
	Labels []Pattern  `yaml:"labels"`
	Groups []Group    `yaml:"groups"`
	Riders []RiderSet `yaml:"riders"`
}

// Library is an immutable, validated pattern table with a single phrase
// automaton over every tier of every label. It is safe for concurrent use.
type Library struct {
	patterns []Pattern
	index    map[Label]int
	groups   []Group
	riders   []RiderSet
	primary  map[Label]bool
	riderSet map[Label]int

	phrases []string
	// phraseIDs[i][t] holds automaton pattern IDs for patterns[i].phrases(t).
	phraseIDs [][TierPubType + 1][]int
	ac        *ahocorasick.Automaton
}

// DefaultLibrary returns the built-in library, parsed once per process.
var DefaultLibrary = sync.OnceValues(func() (*Library, error) {
	return ParseLibrary(defaultPatterns)
})

// LoadLibraryFile reads a library from a YAML file in the built-in format.
func LoadLibraryFile(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern library: %w", err)
	}
	lib, err := ParseLibrary(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lib, nil
}

// ParseLibrary decodes, validates, and compiles a pattern library.
func ParseLibrary(data []byte) (*Library, error) {
	var f libraryFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing pattern library: %w", err)
	}

	lib := &Library{
		patterns: f.Labels,
		index:    make(map[Label]int, len(f.Labels)),
		groups:   f.Groups,
		riders:   f.Riders,
		primary:  make(map[Label]bool),
		riderSet: make(map[Label]int),
	}
	for i := range lib.patterns {
		normalizePattern(&lib.patterns[i])
	}
	if err := lib.validate(); err != nil {
		return nil, err
	}
	if err := lib.compile(); err != nil {
		return nil, err
	}
	return lib, nil
}

func normalizePattern(p *Pattern) {
	for _, list := range [][]string{p.Keywords, p.Title, p.Abstract, p.Method} {
		for i, s := range list {
			list[i] = strings.ToLower(strings.TrimSpace(s))
		}
	}
	p.Name = strings.TrimSpace(p.Name)
}

func (l *Library) validate() error {
	var errs []error

	if len(l.patterns) == 0 {
		return errors.New("pattern library defines no labels")
	}
	for i, p := range l.patterns {
		if !p.Label.Known() {
			errs = append(errs, fmt.Errorf("unknown label %q", p.Label))
			continue
		}
		if _, dup := l.index[p.Label]; dup {
			errs = append(errs, fmt.Errorf("label %q defined twice", p.Label))
			continue
		}
		l.index[p.Label] = i
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("label %q: missing name", p.Label))
		}
		if p.Weight <= 0 || p.Weight > 1 {
			errs = append(errs, fmt.Errorf("label %q: weight %v outside (0, 1]", p.Label, p.Weight))
		}
		total := 0
		for t := TierKeyword; t < TierPubType; t++ {
			seen := make(map[string]bool)
			for _, s := range p.phrases(t) {
				if s == "" {
					errs = append(errs, fmt.Errorf("label %q: empty %s phrase", p.Label, t))
				}
				if seen[s] {
					errs = append(errs, fmt.Errorf("label %q: duplicate %s phrase %q", p.Label, t, s))
				}
				seen[s] = true
				total++
			}
		}
		if total == 0 {
			errs = append(errs, fmt.Errorf("label %q: no phrases", p.Label))
		}
	}

	primaryGroups := 0
	for _, g := range l.groups {
		if g.Primary {
			primaryGroups++
		}
		for _, lbl := range g.Labels {
			if _, ok := l.index[lbl]; !ok {
				errs = append(errs, fmt.Errorf("group %q: label %q not defined", g.Name, lbl))
				continue
			}
			if g.Primary {
				l.primary[lbl] = true
			}
		}
	}
	if primaryGroups != 1 {
		errs = append(errs, fmt.Errorf("expected exactly one primary group, found %d", primaryGroups))
	}

	for ri, r := range l.riders {
		if len(r.Anchors) == 0 {
			errs = append(errs, fmt.Errorf("rider set %q: no anchors", r.Name))
		}
		for _, a := range r.Anchors {
			if !l.primary[a] {
				errs = append(errs, fmt.Errorf("rider set %q: anchor %q is not a primary design", r.Name, a))
			}
		}
		for _, lbl := range r.Labels {
			if _, ok := l.index[lbl]; !ok {
				errs = append(errs, fmt.Errorf("rider set %q: label %q not defined", r.Name, lbl))
				continue
			}
			if l.primary[lbl] {
				errs = append(errs, fmt.Errorf("rider set %q: label %q is also a primary design", r.Name, lbl))
			}
			if prev, dup := l.riderSet[lbl]; dup && prev != ri {
				errs = append(errs, fmt.Errorf("label %q belongs to more than one rider set", lbl))
			}
			l.riderSet[lbl] = ri
		}
	}

	for _, p := range l.patterns {
		if !p.Label.Known() {
			continue
		}
		_, isRider := l.riderSet[p.Label]
		if !l.primary[p.Label] && !isRider {
			errs = append(errs, fmt.Errorf("label %q is neither a primary design nor a rider", p.Label))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid pattern library: %w", errors.Join(errs...))
	}
	return nil
}

// compile assigns every distinct phrase an automaton ID and builds the
// automaton. Overlapping matches are reported so that a phrase contained in a
// longer one ("randomized" in "randomized trial") is still seen.
func (l *Library) compile() error {
	ids := make(map[string]int)
	l.phraseIDs = make([][TierPubType + 1][]int, len(l.patterns))
	for i := range l.patterns {
		p := &l.patterns[i]
		for t := TierKeyword; t <= TierPubType; t++ {
			list := p.phrases(t)
			out := make([]int, len(list))
			for k, s := range list {
				id, ok := ids[s]
				if !ok {
					id = len(l.phrases)
					ids[s] = id
					l.phrases = append(l.phrases, s)
				}
				out[k] = id
			}
			l.phraseIDs[i][t] = out
		}
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(l.phrases).
		Build()
	if err != nil {
		return fmt.Errorf("building phrase automaton: %w", err)
	}
	l.ac = automaton
	return nil
}

// scan reports which library phrases occur in text. text must already be
// lowercased.
func (l *Library) scan(text string) []bool {
	found := make([]bool, len(l.phrases))
	if text == "" {
		return found
	}
	for _, m := range l.ac.FindAllOverlapping([]byte(text)) {
		if m.PatternID >= 0 && m.PatternID < len(found) {
			found[m.PatternID] = true
		}
	}
	return found
}

// Labels returns the library's labels in definition order.
func (l *Library) Labels() []Label {
	out := make([]Label, len(l.patterns))
	for i, p := range l.patterns {
		out[i] = p.Label
	}
	return out
}

// Pattern returns the phrase set for a label.
func (l *Library) Pattern(label Label) (Pattern, bool) {
	i, ok := l.index[label]
	if !ok {
		return Pattern{}, false
	}
	return l.patterns[i], true
}

// Name returns the human-readable name of a label, or the label itself when
// the library does not define it.
func (l *Library) Name(label Label) string {
	if i, ok := l.index[label]; ok {
		return l.patterns[i].Name
	}
	return string(label)
}

// IsPrimary reports whether label belongs to the primary design group.
func (l *Library) IsPrimary(label Label) bool { return l.primary[label] }

// IsRider reports whether label is a specification rider.
func (l *Library) IsRider(label Label) bool {
	_, ok := l.riderSet[label]
	return ok
}

// Groups returns the mutually exclusive label groups.
func (l *Library) Groups() []Group { return l.groups }

// Riders returns the rider sets.
func (l *Library) Riders() []RiderSet { return l.riders }

// order ranks labels for deterministic tie-breaking; unknown labels sort last.
func (l *Library) order(label Label) int {
	if i, ok := l.index[label]; ok {
		return i
	}
	return len(l.patterns)
}
