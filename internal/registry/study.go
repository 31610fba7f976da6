// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// study captures the parts of a ClinicalTrials.gov v2 study we keep. Missing
// modules decode as nil and leave the matching record fields empty.
type study struct {
	ProtocolSection *protocolSection `json:"protocolSection"`
}

type protocolSection struct {
	Identification *struct {
		NCTID          string `json:"nctId"`
		OrgStudyIDInfo struct {
			ID string `json:"id"`
		} `json:"orgStudyIdInfo"`
		BriefTitle    string `json:"briefTitle"`
		OfficialTitle string `json:"officialTitle"`
		Acronym       string `json:"acronym"`
	} `json:"identificationModule"`

	Status *struct {
		OverallStatus         string     `json:"overallStatus"`
		WhyStopped            string     `json:"whyStopped"`
		StartDate             dateStruct `json:"startDateStruct"`
		PrimaryCompletionDate dateStruct `json:"primaryCompletionDateStruct"`
		CompletionDate        dateStruct `json:"completionDateStruct"`
	} `json:"statusModule"`

	Sponsor *struct {
		LeadSponsor struct {
			Name  string `json:"name"`
			Class string `json:"class"`
		} `json:"leadSponsor"`
	} `json:"sponsorCollaboratorsModule"`

	Description *struct {
		BriefSummary        string `json:"briefSummary"`
		DetailedDescription string `json:"detailedDescription"`
	} `json:"descriptionModule"`

	Conditions *struct {
		Conditions []string `json:"conditions"`
	} `json:"conditionsModule"`

	Design *struct {
		StudyType  string   `json:"studyType"`
		Phases     []string `json:"phases"`
		DesignInfo struct {
			Allocation        string `json:"allocation"`
			InterventionModel string `json:"interventionModel"`
			PrimaryPurpose    string `json:"primaryPurpose"`
			MaskingInfo       struct {
				Masking   string   `json:"masking"`
				WhoMasked []string `json:"whoMasked"`
			} `json:"maskingInfo"`
		} `json:"designInfo"`
		EnrollmentInfo struct {
			Count int    `json:"count"`
			Type  string `json:"type"`
		} `json:"enrollmentInfo"`
	} `json:"designModule"`

	ArmsInterventions *struct {
		Interventions []types.Intervention `json:"interventions"`
	} `json:"armsInterventionsModule"`

	Outcomes *struct {
		PrimaryOutcomes   []outcome `json:"primaryOutcomes"`
		SecondaryOutcomes []outcome `json:"secondaryOutcomes"`
	} `json:"outcomesModule"`

	Eligibility *struct {
		Criteria          string `json:"eligibilityCriteria"`
		HealthyVolunteers bool   `json:"healthyVolunteers"`
		Sex               string `json:"sex"`
		MinimumAge        string `json:"minimumAge"`
		MaximumAge        string `json:"maximumAge"`
	} `json:"eligibilityModule"`

	ContactsLocations *struct {
		Locations []types.Location `json:"locations"`
	} `json:"contactsLocationsModule"`

	References *struct {
		References   []types.TrialReference `json:"references"`
		SeeAlsoLinks []types.SeeAlsoLink    `json:"seeAlsoLinks"`
	} `json:"referencesModule"`
}

type dateStruct struct {
	Date string `json:"date"`
	Type string `json:"type"`
}

type outcome struct {
	Measure     string `json:"measure"`
	Description string `json:"description"`
	TimeFrame   string `json:"timeFrame"`
}

func (d dateStruct) trialDate() types.TrialDate {
	return types.TrialDate{Date: strings.TrimSpace(d.Date), Type: d.Type}
}

func outcomes(in []outcome) []types.Outcome {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.Outcome, len(in))
	for i, o := range in {
		out[i] = types.Outcome{Measure: o.Measure, TimeFrame: o.TimeFrame, Description: o.Description}
	}
	return out
}

// record flattens the protocol modules into a TrialRecord.
func (p *protocolSection) record() *types.TrialRecord {
	rec := &types.TrialRecord{}

	if m := p.Identification; m != nil {
		rec.NCTID = strings.ToUpper(strings.TrimSpace(m.NCTID))
		rec.OrgStudyID = m.OrgStudyIDInfo.ID
		rec.BriefTitle = m.BriefTitle
		rec.OfficialTitle = m.OfficialTitle
		rec.Acronym = m.Acronym
	}
	if m := p.Status; m != nil {
		rec.OverallStatus = m.OverallStatus
		rec.WhyStopped = m.WhyStopped
		rec.StartDate = m.StartDate.trialDate()
		rec.PrimaryCompletionDate = m.PrimaryCompletionDate.trialDate()
		rec.CompletionDate = m.CompletionDate.trialDate()
	}
	if m := p.Sponsor; m != nil {
		rec.LeadSponsor = m.LeadSponsor.Name
		rec.LeadSponsorClass = m.LeadSponsor.Class
	}
	if m := p.Description; m != nil {
		rec.BriefSummary = m.BriefSummary
		rec.DetailedDescription = m.DetailedDescription
	}
	if m := p.Conditions; m != nil {
		rec.Conditions = m.Conditions
	}
	if m := p.Design; m != nil {
		rec.StudyType = m.StudyType
		rec.Phases = m.Phases
		rec.Allocation = m.DesignInfo.Allocation
		rec.InterventionModel = m.DesignInfo.InterventionModel
		rec.PrimaryPurpose = m.DesignInfo.PrimaryPurpose
		rec.Masking = m.DesignInfo.MaskingInfo.Masking
		rec.WhoMasked = m.DesignInfo.MaskingInfo.WhoMasked
		rec.Enrollment = m.EnrollmentInfo.Count
		rec.EnrollmentType = m.EnrollmentInfo.Type
	}
	if m := p.ArmsInterventions; m != nil {
		rec.Interventions = m.Interventions
	}
	if m := p.Outcomes; m != nil {
		rec.PrimaryOutcomes = outcomes(m.PrimaryOutcomes)
		rec.SecondaryOutcomes = outcomes(m.SecondaryOutcomes)
	}
	if m := p.Eligibility; m != nil {
		rec.Eligibility = types.Eligibility{
			Criteria:          m.Criteria,
			MinimumAge:        m.MinimumAge,
			MaximumAge:        m.MaximumAge,
			Sex:               m.Sex,
			HealthyVolunteers: m.HealthyVolunteers,
		}
	}
	if m := p.ContactsLocations; m != nil {
		rec.Locations = m.Locations
	}
	if m := p.References; m != nil {
		rec.References = m.References
		rec.SeeAlso = m.SeeAlsoLinks
	}
	return rec
}
