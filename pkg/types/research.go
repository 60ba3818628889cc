// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// QueryCategory classifies a research question for budget allocation.
type QueryCategory string

const (
	CategoryDrugSafety  QueryCategory = "drug_safety"
	CategoryNewResearch QueryCategory = "new_research"
	CategoryTreatment   QueryCategory = "treatment"
	CategoryNutrition   QueryCategory = "nutrition"
	CategoryGeneral     QueryCategory = "general"
)

// ProviderRatios splits the non-web source budget between the literature
// index, the preprint index, and the trial registry.
type ProviderRatios struct {
	PubMed         float64 `json:"pubmed" yaml:"pubmed"`
	MedRxiv        float64 `json:"medrxiv" yaml:"medrxiv"`
	ClinicalTrials float64 `json:"clinicaltrials" yaml:"clinicaltrials"`
}

// Sum returns the total of the three ratios.
func (r ProviderRatios) Sum() float64 {
	return r.PubMed + r.MedRxiv + r.ClinicalTrials
}

// QueryAnalysis is the Query Analyzer's classification of a question.
type QueryAnalysis struct {
	Category   QueryCategory  `json:"category" yaml:"category"`
	Ratios     ProviderRatios `json:"ratios" yaml:"ratios"`
	Confidence float64        `json:"confidence" yaml:"confidence"`
	Reasoning  string         `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`

	// Fallback is true when the keyword classifier produced the result.
	Fallback bool `json:"fallback" yaml:"fallback"`
}

// SourceCounts is the per-provider number of sources requested each round.
type SourceCounts struct {
	PubMed         int `json:"pubmed" yaml:"pubmed"`
	MedRxiv        int `json:"medrxiv" yaml:"medrxiv"`
	ClinicalTrials int `json:"clinicaltrials" yaml:"clinicaltrials"`
	Exa            int `json:"exa" yaml:"exa"`
}

// For returns the count for provider k.
func (c SourceCounts) For(k ProviderKind) int {
	switch k {
	case ProviderPubMed:
		return c.PubMed
	case ProviderMedRxiv:
		return c.MedRxiv
	case ProviderClinicalTrials:
		return c.ClinicalTrials
	case ProviderExa:
		return c.Exa
	default:
		return 0
	}
}

// NonWeb returns the combined PubMed, medRxiv, and ClinicalTrials counts.
func (c SourceCounts) NonWeb() int {
	return c.PubMed + c.MedRxiv + c.ClinicalTrials
}

// EvidenceQuality is the Reflector's coarse grade of the evidence so far.
type EvidenceQuality string

const (
	QualityLow    EvidenceQuality = "low"
	QualityMedium EvidenceQuality = "medium"
	QualityHigh   EvidenceQuality = "high"
)

// ResearchReflection is the Reflector's evaluation of the accumulated rounds.
type ResearchReflection struct {
	EvidenceQuality EvidenceQuality `json:"evidence_quality" yaml:"evidence_quality"`
	GapsIdentified  []string        `json:"gaps_identified" yaml:"gaps_identified"`
	ShouldContinue  bool            `json:"should_continue" yaml:"should_continue"`
	Reasoning       string          `json:"reasoning" yaml:"reasoning"`
}

// StoppingDecision records whether the loop stops and every condition
// that fired.
type StoppingDecision struct {
	ShouldStop          bool     `json:"should_stop" yaml:"should_stop"`
	Reason              string   `json:"reason" yaml:"reason"`
	TriggeredConditions []string `json:"triggered_conditions,omitempty" yaml:"triggered_conditions,omitempty"`
}

// RefinedQuery is a gap-targeted follow-up query. Original is never changed.
type RefinedQuery struct {
	Original  string `json:"original" yaml:"original"`
	Refined   string `json:"refined" yaml:"refined"`
	FocusArea string `json:"focus_area" yaml:"focus_area"`
	Reasoning string `json:"reasoning" yaml:"reasoning"`
}

// ProgressEventType distinguishes fetch progress notifications.
type ProgressEventType string

const (
	ProgressStarted   ProgressEventType = "started"
	ProgressCompleted ProgressEventType = "completed"
	ProgressUpdate    ProgressEventType = "progress"
)

// ProgressEvent is emitted by the fetcher for UI feedback only.
type ProgressEvent struct {
	Type       ProgressEventType `json:"type"`
	Round      int               `json:"round"`
	Provider   ProviderKind      `json:"provider,omitempty"`
	Count      int               `json:"count,omitempty"`
	DurationMS int64             `json:"duration_ms,omitempty"`
	Success    bool              `json:"success,omitempty"`
	Fetched    int               `json:"fetched,omitempty"`
	Total      int               `json:"total,omitempty"`
}

// QualityMetrics aggregates relevance over the selected sources.
type QualityMetrics struct {
	AverageRelevance float64 `json:"average_relevance" yaml:"average_relevance"`
	MinRelevance     float64 `json:"min_relevance" yaml:"min_relevance"`
	MaxRelevance     float64 `json:"max_relevance" yaml:"max_relevance"`
	HighQualityCount int     `json:"high_quality_count" yaml:"high_quality_count"`
}

// ResearchSummary is the aggregate description of a session's output.
type ResearchSummary struct {
	SelectedCount      int            `json:"selected_count" yaml:"selected_count"`
	TotalTokens        int            `json:"total_tokens" yaml:"total_tokens"`
	QualityMetrics     QualityMetrics `json:"quality_metrics" yaml:"quality_metrics"`
	SelectionStrategy  string         `json:"selection_strategy" yaml:"selection_strategy"`
	TotalSourcesFound  int            `json:"total_sources_found" yaml:"total_sources_found"`
	DuplicatesFiltered int            `json:"duplicates_filtered" yaml:"duplicates_filtered"`
	RoundsCompleted    int            `json:"rounds_completed" yaml:"rounds_completed"`
	Completeness       float64        `json:"completeness" yaml:"completeness"`
}

// ResearchOutput is the sole handoff from a research session to synthesis.
type ResearchOutput struct {
	SessionID       string              `json:"session_id" yaml:"session_id"`
	Question        string              `json:"question" yaml:"question"`
	Tier            Tier                `json:"tier" yaml:"tier"`
	Analysis        QueryAnalysis       `json:"analysis" yaml:"analysis"`
	Counts          SourceCounts        `json:"counts" yaml:"counts"`
	Rounds          []RoundResult       `json:"rounds" yaml:"rounds"`
	Refinements     []RefinedQuery      `json:"refinements,omitempty" yaml:"refinements,omitempty"`
	FinalReflection *ResearchReflection `json:"final_reflection,omitempty" yaml:"final_reflection,omitempty"`
	Decision        StoppingDecision    `json:"decision" yaml:"decision"`
	States          []string            `json:"states" yaml:"states"`
	Selected        []SelectedSource    `json:"selected" yaml:"selected"`
	Summary         ResearchSummary     `json:"summary" yaml:"summary"`
	StartedAt       time.Time           `json:"started_at" yaml:"started_at"`
	Duration        time.Duration       `json:"duration" yaml:"duration"`
}
