// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the evidence-engine:
// provider records, per-round results, reflections, stopping decisions,
// and the ranked and selected sources handed to synthesis.
package types

import (
	"net/url"
	"strings"
	"time"
)

// ProviderKind identifies one of the external search providers.
type ProviderKind string

const (
	ProviderPubMed         ProviderKind = "pubmed"
	ProviderMedRxiv        ProviderKind = "medrxiv"
	ProviderClinicalTrials ProviderKind = "clinicaltrials"
	ProviderExa            ProviderKind = "exa"
)

// AllProviders lists the providers in the fixed order used for
// deduplication, reporting, and token accounting.
var AllProviders = []ProviderKind{
	ProviderPubMed,
	ProviderMedRxiv,
	ProviderClinicalTrials,
	ProviderExa,
}

// Label returns a human-readable provider name.
func (k ProviderKind) Label() string {
	switch k {
	case ProviderPubMed:
		return "PubMed"
	case ProviderMedRxiv:
		return "medRxiv"
	case ProviderClinicalTrials:
		return "ClinicalTrials.gov"
	case ProviderExa:
		return "Web"
	default:
		return string(k)
	}
}

// SourceRecord is a single item returned by a provider. Only the
// identity fields relevant to the provider are populated: PubMed articles
// carry a PMID (and often a DOI), preprints a DOI, trials an NCT ID, and
// web results a URL.
type SourceRecord struct {
	// Kind is the provider that returned the record.
	Kind ProviderKind `json:"kind" yaml:"kind"`

	// PMID is the PubMed identifier.
	PMID string `json:"pmid,omitempty" yaml:"pmid,omitempty"`

	// DOI is the bare DOI (no https://doi.org/ prefix).
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// NCTID is the ClinicalTrials.gov registry identifier.
	NCTID string `json:"nct_id,omitempty" yaml:"nct_id,omitempty"`

	// URL is the canonical link to the source.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Title is the article, preprint, study, or page title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the abstract, brief summary, or page text snippet.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Authors lists authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Venue is the journal, preprint server, trial sponsor, or web domain.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// PublishedAt is the publication, posting, or registration date.
	PublishedAt time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	// TrialStatus is the overall recruitment status of a trial.
	TrialStatus string `json:"trial_status,omitempty" yaml:"trial_status,omitempty"`

	// TrialPhase is the trial phase (e.g. "PHASE3").
	TrialPhase string `json:"trial_phase,omitempty" yaml:"trial_phase,omitempty"`
}

// IdentityKey returns the deduplication key for the record. The first
// available identifier wins: PMID, DOI, NCT ID, then the normalized URL.
// An empty string means no identity could be extracted.
func (r SourceRecord) IdentityKey() string {
	if id := strings.TrimSpace(r.PMID); id != "" {
		return "pmid:" + id
	}
	if doi := normalizeDOI(r.DOI); doi != "" {
		return "doi:" + doi
	}
	if nct := strings.ToUpper(strings.TrimSpace(r.NCTID)); nct != "" {
		return "nct:" + nct
	}
	if u := NormalizeURL(r.URL); u != "" {
		return "url:" + u
	}
	return ""
}

func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(strings.ToLower(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return doi
}

// NormalizeURL reduces a URL to lower-cased host+path with the scheme
// kept, "www." stripped, and any trailing slash removed. Query strings
// and fragments are dropped. Unparseable or host-less input yields "".
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(strings.ToLower(u.Path), "/")
	return scheme + "://" + host + path
}

// Host returns the lower-cased host of the record's URL without "www.".
func (r SourceRecord) Host() string {
	u, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// RoundResult is the output of one fetch round. It is built once by the
// fetcher and not modified afterwards.
type RoundResult struct {
	// RoundNumber starts at 1.
	RoundNumber int `json:"round_number" yaml:"round_number"`

	// Query is the (translated) query sent to the providers this round.
	Query string `json:"query" yaml:"query"`

	// SourcesByProvider holds the deduplicated records per provider.
	SourcesByProvider map[ProviderKind][]SourceRecord `json:"sources_by_provider" yaml:"sources_by_provider"`

	// SourceCount is the sum of len(SourcesByProvider[k]) over all providers.
	SourceCount int `json:"source_count" yaml:"source_count"`

	// Requested is the total number of sources requested across providers.
	Requested int `json:"requested" yaml:"requested"`

	// Timing records how long each provider task took.
	Timing map[ProviderKind]time.Duration `json:"timing" yaml:"timing"`

	// Errors records provider failures (timeouts, transport errors).
	Errors map[ProviderKind]string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// DuplicatesFiltered counts records dropped by the deduplicator this round.
	DuplicatesFiltered int `json:"duplicates_filtered" yaml:"duplicates_filtered"`
}

// Sources returns all records of the round in provider order.
func (r RoundResult) Sources() []SourceRecord {
	var out []SourceRecord
	for _, k := range AllProviders {
		out = append(out, r.SourcesByProvider[k]...)
	}
	return out
}

// RankedSource is a source scored for relevance to the original question.
type RankedSource struct {
	Source         SourceRecord `json:"source" yaml:"source"`
	RelevanceScore float64      `json:"relevance_score" yaml:"relevance_score"`
	SourceType     ProviderKind `json:"source_type" yaml:"source_type"`
	Reasoning      string       `json:"reasoning" yaml:"reasoning"`
}

// SelectedSource is a final output unit. Its position in the selected list
// defines the citation number used downstream.
type SelectedSource struct {
	Source           SourceRecord `json:"source" yaml:"source"`
	RelevanceScore   float64      `json:"relevance_score" yaml:"relevance_score"`
	SourceType       ProviderKind `json:"source_type" yaml:"source_type"`
	Citation         string       `json:"citation" yaml:"citation"`
	Summary          string       `json:"summary" yaml:"summary"`
	CredibilityBadge string       `json:"credibility_badge" yaml:"credibility_badge"`
	EstimatedTokens  int          `json:"estimated_tokens" yaml:"estimated_tokens"`
}
