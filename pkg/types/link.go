// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ExtractionMethod records how a paper–trial link was discovered.
type ExtractionMethod string

const (
	// MethodTitleAbstract links come from a trial identifier written in the
	// paper's title or abstract.
	MethodTitleAbstract ExtractionMethod = "title_abstract"

	// MethodTrialReferences links come from the trial registration listing
	// the paper among its references.
	MethodTrialReferences ExtractionMethod = "trial_references"

	// MethodManual links were entered by a curator.
	MethodManual ExtractionMethod = "manual"
)

// ConfidenceTier grades how much a link can be trusted without review.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// MaxSnippetLen bounds the context snippet stored on a link.
const MaxSnippetLen = 500

// PaperTrialLink associates a paper with a trial registration. There is at
// most one link per (PaperID, NCTID) pair.
type PaperTrialLink struct {
	// ID is a random UUID assigned on creation.
	ID string `json:"id" yaml:"id"`

	// PaperID is the PMID of the linked paper.
	PaperID string `json:"paper_id" yaml:"paper_id"`

	// NCTID is the linked trial's registry identifier.
	NCTID string `json:"nct_id" yaml:"nct_id"`

	Method     ExtractionMethod `json:"extraction_method" yaml:"extraction_method"`
	Confidence ConfidenceTier   `json:"confidence" yaml:"confidence"`

	// ContextSnippet is the text around the identifier mention, at most
	// MaxSnippetLen characters.
	ContextSnippet string `json:"context_snippet,omitempty" yaml:"context_snippet,omitempty"`

	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`

	Verified   bool       `json:"verified" yaml:"verified"`
	VerifiedBy string     `json:"verified_by,omitempty" yaml:"verified_by,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty" yaml:"verified_at,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// LinkCandidate is a paper that heuristically matches a trial's conditions
// and dates. Candidates are offered for review and never stored as links.
type LinkCandidate struct {
	Paper        Paper    `json:"paper" yaml:"paper"`
	NCTID        string   `json:"nct_id" yaml:"nct_id"`
	MatchedTerms []string `json:"matched_terms" yaml:"matched_terms"`
}
