// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package studytype assigns study design labels to papers from their title,
// abstract, and declared publication types. Labels are scored against an
// immutable pattern library, filtered by a confidence threshold, and reduced to
// a conflict-free set of one primary design plus any trial specification riders.
package studytype

// Label is the machine name of a study design.
type Label string

const (
	SystematicReview                   Label = "systematic_review"
	MetaAnalysis                       Label = "meta_analysis"
	NetworkMetaAnalysis                Label = "network_meta_analysis"
	UmbrellaReview                     Label = "umbrella_review"
	ScopingReview                      Label = "scoping_review"
	RandomizedControlledTrial          Label = "randomized_controlled_trial"
	ControlledClinicalTrial            Label = "controlled_clinical_trial"
	ClinicalTrial                      Label = "clinical_trial"
	PlaceboControlledRCT               Label = "placebo_controlled_rct"
	OpenLabelRCT                       Label = "open_label_rct"
	SingleBlindRCT                     Label = "single_blind_rct"
	DoubleBlindRCT                     Label = "double_blind_rct"
	TripleBlindRCT                     Label = "triple_blind_rct"
	CohortStudy                        Label = "cohort_study"
	CaseControlStudy                   Label = "case_control_study"
	CrossSectionalStudy                Label = "cross_sectional_study"
	TargetTrialEmulation               Label = "target_trial_emulation"
	CaseSeries                         Label = "case_series"
	CaseReport                         Label = "case_report"
	SingleArmTrial                     Label = "single_arm_trial"
	PilotStudy                         Label = "pilot_study"
	AnimalStudies                      Label = "animal_studies"
	InVitroStudy                       Label = "in_vitro_study"
	LaboratoryStudy                    Label = "laboratory_study"
	EconomicEvaluations                Label = "economic_evaluations"
	HealthTechnologyAssessment         Label = "health_technology_assessment"
	Guidelines                         Label = "guidelines"
	ConsensusStatement                 Label = "consensus_statement"
	NarrativeReview                    Label = "narrative_review"
	QualitativeStudies                 Label = "qualitative_studies"
	SurveysQuestionnaires              Label = "surveys_questionnaires"
	PatientPerspectives                Label = "patient_perspectives"
	MatchingAdjustedIndirectComparison Label = "matching_adjusted_indirect_comparison"
	SimulatedTreatmentComparison       Label = "simulated_treatment_comparison"
	MultilevelNetworkMetaRegression    Label = "multilevel_network_meta_regression"
)

// AllLabels lists every known study design in canonical order.
var AllLabels = []Label{
	SystematicReview,
	MetaAnalysis,
	NetworkMetaAnalysis,
	UmbrellaReview,
	ScopingReview,
	RandomizedControlledTrial,
	ControlledClinicalTrial,
	ClinicalTrial,
	PlaceboControlledRCT,
	OpenLabelRCT,
	SingleBlindRCT,
	DoubleBlindRCT,
	TripleBlindRCT,
	CohortStudy,
	CaseControlStudy,
	CrossSectionalStudy,
	TargetTrialEmulation,
	CaseSeries,
	CaseReport,
	SingleArmTrial,
	PilotStudy,
	AnimalStudies,
	InVitroStudy,
	LaboratoryStudy,
	EconomicEvaluations,
	HealthTechnologyAssessment,
	Guidelines,
	ConsensusStatement,
	NarrativeReview,
	QualitativeStudies,
	SurveysQuestionnaires,
	PatientPerspectives,
	MatchingAdjustedIndirectComparison,
	SimulatedTreatmentComparison,
	MultilevelNetworkMetaRegression,
}

var knownLabels = func() map[Label]bool {
	m := make(map[Label]bool, len(AllLabels))
	for _, l := range AllLabels {
		m[l] = true
	}
	return m
}()

// Known reports whether l is a recognized study design.
func (l Label) Known() bool {
	return knownLabels[l]
}
