// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package identifier finds trial registration numbers and PubMed identifiers
// in free text. Extraction is pure: it returns normalized, deduplicated
// identifiers in first-seen order together with every occurrence for audit.
package identifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Family is the kind of identifier.
type Family string

const (
	FamilyTrial Family = "trial"
	FamilyPMID  Family = "pmid"
)

// Mode selects how permissive extraction is.
type Mode string

const (
	// ModeStrict accepts only self-identifying or context-anchored forms.
	ModeStrict Mode = "strict"

	// ModeLoose adds separator-tolerant trial numbers and bare digit runs.
	ModeLoose Mode = "loose"
)

// ParseMode validates a mode name. The empty string selects ModeStrict.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStrict:
		return ModeStrict, nil
	case ModeLoose:
		return ModeLoose, nil
	}
	return "", fmt.Errorf("unknown extraction mode %q (want strict or loose)", s)
}

// Strength grades the evidence that a match really is an identifier.
type Strength int

const (
	// StrengthLoose matches rely on shape alone (bare digit runs, split
	// trial numbers). Produced only in ModeLoose.
	StrengthLoose Strength = iota + 1

	// StrengthCanonical matches are in the canonical self-identifying form.
	StrengthCanonical

	// StrengthAnchored matches carry an explicit label or registry URL.
	StrengthAnchored
)

func (s Strength) String() string {
	switch s {
	case StrengthAnchored:
		return "anchored"
	case StrengthCanonical:
		return "canonical"
	case StrengthLoose:
		return "loose"
	default:
		return "unknown"
	}
}

// MarshalText renders the strength name in JSON and YAML output.
func (s Strength) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var (
	trialIDRe = regexp.MustCompile(`^NCT\d{8}$`)
	digitsRe  = regexp.MustCompile(`^\d+$`)
)

// NormalizeTrialID returns the canonical uppercase "NCT" + 8 digit form of s,
// removing spaces, hyphens, and underscores between the prefix and digits.
func NormalizeTrialID(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "", "-", "", "_", "", "\t", "").Replace(s)
	if !trialIDRe.MatchString(s) {
		return "", false
	}
	return s, true
}

// ValidTrialID reports whether s is already a canonical trial identifier.
func ValidTrialID(s string) bool {
	return trialIDRe.MatchString(s)
}

// NormalizePMID strips leading zeros and validates that s is a positive
// decimal of at most nine digits.
func NormalizePMID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !digitsRe.MatchString(s) {
		return "", false
	}
	s = strings.TrimLeft(s, "0")
	if s == "" || len(s) > 9 {
		return "", false
	}
	if _, err := strconv.Atoi(s); err != nil {
		return "", false
	}
	return s, true
}
