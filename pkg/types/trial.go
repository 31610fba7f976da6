// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// TrialDate is a registry date with its precision preserved. Registries
// report dates as YYYY-MM-DD, YYYY-MM, or YYYY, flagged ACTUAL or ESTIMATED.
type TrialDate struct {
	Date string `json:"date,omitempty" yaml:"date,omitempty"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Year returns the calendar year of the date and whether one could be parsed.
func (d TrialDate) Year() (int, bool) {
	s := strings.TrimSpace(d.Date)
	if len(s) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}

// Time parses the date at whatever precision it was reported. Missing month
// or day components default to the first.
func (d TrialDate) Time() (time.Time, bool) {
	s := strings.TrimSpace(d.Date)
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Intervention is one studied intervention (drug, device, behavioral, ...).
type Intervention struct {
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Outcome is a registered primary or secondary outcome measure.
type Outcome struct {
	Measure     string `json:"measure" yaml:"measure"`
	TimeFrame   string `json:"time_frame,omitempty" yaml:"time_frame,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Location is a trial site.
type Location struct {
	Facility string `json:"facility,omitempty" yaml:"facility,omitempty"`
	City     string `json:"city,omitempty" yaml:"city,omitempty"`
	State    string `json:"state,omitempty" yaml:"state,omitempty"`
	Country  string `json:"country,omitempty" yaml:"country,omitempty"`
}

// Eligibility holds the participant criteria of a trial.
type Eligibility struct {
	Criteria          string `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	MinimumAge        string `json:"minimum_age,omitempty" yaml:"minimum_age,omitempty"`
	MaximumAge        string `json:"maximum_age,omitempty" yaml:"maximum_age,omitempty"`
	Sex               string `json:"sex,omitempty" yaml:"sex,omitempty"`
	HealthyVolunteers bool   `json:"healthy_volunteers,omitempty" yaml:"healthy_volunteers,omitempty"`
}

// TrialReference is a publication the registry lists against a trial.
type TrialReference struct {
	// PMID is the reference's PubMed identifier when the registry supplies one.
	PMID string `json:"pmid,omitempty" yaml:"pmid,omitempty"`

	// Type is the registry's reference type (BACKGROUND, RESULT, DERIVED).
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Citation is the free-text citation.
	Citation string `json:"citation,omitempty" yaml:"citation,omitempty"`
}

// SeeAlsoLink is a related web link listed on a registration.
type SeeAlsoLink struct {
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	URL   string `json:"url" yaml:"url"`
}

// TrialRecord is the locally cached, normalized copy of a trial registration.
type TrialRecord struct {
	// NCTID is the registry identifier, "NCT" followed by eight digits.
	NCTID string `json:"nct_id" yaml:"nct_id"`

	BriefTitle    string `json:"brief_title" yaml:"brief_title"`
	OfficialTitle string `json:"official_title,omitempty" yaml:"official_title,omitempty"`
	Acronym       string `json:"acronym,omitempty" yaml:"acronym,omitempty"`
	OrgStudyID    string `json:"org_study_id,omitempty" yaml:"org_study_id,omitempty"`

	// OverallStatus is the recruitment status (RECRUITING, COMPLETED, ...).
	OverallStatus string `json:"overall_status,omitempty" yaml:"overall_status,omitempty"`
	WhyStopped    string `json:"why_stopped,omitempty" yaml:"why_stopped,omitempty"`

	StudyType         string   `json:"study_type,omitempty" yaml:"study_type,omitempty"`
	Phases            []string `json:"phases,omitempty" yaml:"phases,omitempty"`
	Allocation        string   `json:"allocation,omitempty" yaml:"allocation,omitempty"`
	InterventionModel string   `json:"intervention_model,omitempty" yaml:"intervention_model,omitempty"`
	PrimaryPurpose    string   `json:"primary_purpose,omitempty" yaml:"primary_purpose,omitempty"`
	Masking           string   `json:"masking,omitempty" yaml:"masking,omitempty"`
	WhoMasked         []string `json:"who_masked,omitempty" yaml:"who_masked,omitempty"`

	StartDate             TrialDate `json:"start_date" yaml:"start_date"`
	PrimaryCompletionDate TrialDate `json:"primary_completion_date" yaml:"primary_completion_date"`
	CompletionDate        TrialDate `json:"completion_date" yaml:"completion_date"`

	Enrollment     int    `json:"enrollment,omitempty" yaml:"enrollment,omitempty"`
	EnrollmentType string `json:"enrollment_type,omitempty" yaml:"enrollment_type,omitempty"`

	Conditions        []string       `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Interventions     []Intervention `json:"interventions,omitempty" yaml:"interventions,omitempty"`
	Eligibility       Eligibility    `json:"eligibility" yaml:"eligibility"`
	PrimaryOutcomes   []Outcome      `json:"primary_outcomes,omitempty" yaml:"primary_outcomes,omitempty"`
	SecondaryOutcomes []Outcome      `json:"secondary_outcomes,omitempty" yaml:"secondary_outcomes,omitempty"`
	Locations         []Location     `json:"locations,omitempty" yaml:"locations,omitempty"`

	LeadSponsor      string `json:"lead_sponsor,omitempty" yaml:"lead_sponsor,omitempty"`
	LeadSponsorClass string `json:"lead_sponsor_class,omitempty" yaml:"lead_sponsor_class,omitempty"`

	BriefSummary        string           `json:"brief_summary,omitempty" yaml:"brief_summary,omitempty"`
	DetailedDescription string           `json:"detailed_description,omitempty" yaml:"detailed_description,omitempty"`
	References          []TrialReference `json:"references,omitempty" yaml:"references,omitempty"`
	SeeAlso             []SeeAlsoLink    `json:"see_also,omitempty" yaml:"see_also,omitempty"`

	// Raw is the registry payload the record was normalized from.
	Raw json.RawMessage `json:"-" yaml:"-"`

	// FetchedAt is when the record was last retrieved from the registry.
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`

	// UpdatedAt is when the local row was last written.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Title returns the best available title for display and matching.
func (t *TrialRecord) Title() string {
	if t.OfficialTitle != "" {
		return t.OfficialTitle
	}
	return t.BriefTitle
}
