// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Paper holds the bibliographic record of a research paper as the host
// application stores it. Classification and linking read the title, abstract,
// and publication types; everything else is carried for display and filtering.
type Paper struct {
	// PMID is the PubMed identifier, a decimal string without leading zeros.
	PMID string `json:"pmid" yaml:"pmid"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// DOI is the digital object identifier, if known.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Journal is the journal name.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// PublicationYear is the four-digit year of publication (0 when unknown).
	PublicationYear int `json:"publication_year,omitempty" yaml:"publication_year,omitempty"`

	// PublicationTypes lists the publication types declared by the indexer
	// (e.g. "Randomized Controlled Trial", "Review").
	PublicationTypes []string `json:"publication_types,omitempty" yaml:"publication_types,omitempty"`

	// Classifications is the cached, conflict-resolved study design label set.
	Classifications []ClassificationResult `json:"classifications,omitempty" yaml:"classifications,omitempty"`

	// ClassifiedAt records when Classifications was last computed.
	ClassifiedAt *time.Time `json:"classified_at,omitempty" yaml:"classified_at,omitempty"`

	// LinkedAt records when the paper last went through trial linking.
	LinkedAt *time.Time `json:"linked_at,omitempty" yaml:"linked_at,omitempty"`
}

// ClassificationResult is one scored study design label for a paper.
type ClassificationResult struct {
	// Label is the machine name of the study design (e.g. "randomized_controlled_trial").
	Label string `json:"label" yaml:"label"`

	// Name is the human-readable label name.
	Name string `json:"name" yaml:"name"`

	// Confidence is the capped pattern score in [0, 1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Evidence lists the matched signals in tier order
	// (e.g. "Keyword: randomized trial", "Title: randomized").
	Evidence []string `json:"evidence" yaml:"evidence"`
}

// Labels returns the machine names of a classification set in order.
func Labels(results []ClassificationResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Label
	}
	return out
}
