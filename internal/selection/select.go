// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

const (
	// excellentScore is the relevance above which a selected source
	// counts towards QualityMetrics.HighQualityCount.
	excellentScore = 80

	// minSimilarityWordLen is the exclusive lower bound on word length
	// for the near-duplicate comparison.
	minSimilarityWordLen = 3

	maxSummaryLen = 500
	maxAuthors    = 3
)

// Credibility badges.
const (
	BadgePeerReviewed     = "peer-reviewed"
	BadgePreprint         = "preprint (not peer-reviewed)"
	BadgeTrialRegistry    = "registered clinical trial"
	BadgeAuthoritativeWeb = "authoritative web source"
	BadgeWeb              = "web source"
)

// Result is the outcome of Select.
type Result struct {
	Selected       []types.SelectedSource `json:"selected"`
	TotalTokens    int                    `json:"total_tokens"`
	QualityMetrics types.QualityMetrics   `json:"quality_metrics"`
	Strategy       string                 `json:"strategy"`
}

// withDefaults fills zero fields of cfg from DefaultSelectionConfig.
func withDefaults(cfg types.SelectionConfig) types.SelectionConfig {
	def := types.DefaultSelectionConfig()
	if cfg.BaseLimit <= 0 {
		cfg.BaseLimit = def.BaseLimit
	}
	if cfg.ExtendedLimit < cfg.BaseLimit {
		cfg.ExtendedLimit = max(def.ExtendedLimit, cfg.BaseLimit)
	}
	if cfg.HighQualityScore <= 0 {
		cfg.HighQualityScore = def.HighQualityScore
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = def.TokenBudget
	}
	if cfg.MinRelevanceScore < 0 {
		cfg.MinRelevanceScore = def.MinRelevanceScore
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	return cfg
}

// Select cuts ranked (sorted by descending relevance) down to the final
// source list:
//
//  1. drop sources scoring below the minimum relevance
//  2. use the extended limit when more than BaseLimit sources are high quality
//  3. keep the top slice up to the limit
//  4. drop near-duplicates by Jaccard similarity, keeping the earlier source
//  5. accumulate estimated tokens in order, stopping at the first source
//     that would exceed the budget
//
// Select is deterministic and never exceeds cfg.TokenBudget.
func Select(ranked []types.RankedSource, cfg types.SelectionConfig) Result {
	cfg = withDefaults(cfg)

	eligible := make([]types.RankedSource, 0, len(ranked))
	highQuality := 0
	for _, rs := range ranked {
		if rs.RelevanceScore < cfg.MinRelevanceScore {
			continue
		}
		eligible = append(eligible, rs)
		if rs.RelevanceScore >= cfg.HighQualityScore {
			highQuality++
		}
	}

	limit := cfg.BaseLimit
	if highQuality > cfg.BaseLimit {
		limit = cfg.ExtendedLimit
	}
	top := eligible
	if len(top) > limit {
		top = top[:limit]
	}

	distinct, nearDups := removeNearDuplicates(top, cfg.SimilarityThreshold)

	var selected []types.SelectedSource
	total := 0
	budgetHit := false
	for _, rs := range distinct {
		s := toSelected(rs)
		if total+s.EstimatedTokens > cfg.TokenBudget {
			budgetHit = true
			break
		}
		total += s.EstimatedTokens
		selected = append(selected, s)
	}

	strategy := fmt.Sprintf("top-%d of %d sources scoring >= %.0f (%d high quality >= %.0f); %d near-duplicates removed; %d selected using %d/%d tokens",
		limit, len(eligible), cfg.MinRelevanceScore, highQuality, cfg.HighQualityScore,
		nearDups, len(selected), total, cfg.TokenBudget)
	if budgetHit {
		strategy += "; stopped at token budget"
	}

	return Result{
		Selected:       selected,
		TotalTokens:    total,
		QualityMetrics: qualityMetrics(selected),
		Strategy:       strategy,
	}
}

func removeNearDuplicates(ranked []types.RankedSource, threshold float64) ([]types.RankedSource, int) {
	kept := make([]types.RankedSource, 0, len(ranked))
	sets := make([]map[string]struct{}, 0, len(ranked))
	removed := 0
	for _, rs := range ranked {
		set := wordSet(rs.Source.Title + " " + rs.Source.Abstract)
		dup := false
		for _, other := range sets {
			if Jaccard(set, other) >= threshold {
				dup = true
				break
			}
		}
		if dup {
			removed++
			continue
		}
		kept = append(kept, rs)
		sets = append(sets, set)
	}
	return kept, removed
}

// wordSet returns the distinct lower-cased words longer than three
// characters.
func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range words(text) {
		if utf8.RuneCountInString(w) > minSimilarityWordLen {
			set[w] = struct{}{}
		}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets have similarity 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func toSelected(rs types.RankedSource) types.SelectedSource {
	citation := Citation(rs.Source)
	summary := Summary(rs.Source)
	return types.SelectedSource{
		Source:           rs.Source,
		RelevanceScore:   rs.RelevanceScore,
		SourceType:       rs.SourceType,
		Citation:         citation,
		Summary:          summary,
		CredibilityBadge: Badge(rs.Source),
		EstimatedTokens:  EstimateTokens(citation + summary),
	}
}

// EstimateTokens approximates the token count of text as one token per
// four characters, rounded up.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// Citation formats a one-line reference for src.
func Citation(src types.SourceRecord) string {
	var parts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, strings.TrimRight(s, "."))
		}
	}
	year := ""
	if !src.PublishedAt.IsZero() {
		year = fmt.Sprintf("%d", src.PublishedAt.Year())
	}

	switch src.Kind {
	case types.ProviderPubMed:
		add(authorList(src.Authors))
		add(src.Title)
		add(src.Venue)
		add(year)
		if src.PMID != "" {
			add("PMID: " + src.PMID)
		}
	case types.ProviderMedRxiv:
		add(authorList(src.Authors))
		add(src.Title)
		add("medRxiv preprint")
		add(year)
		if src.DOI != "" {
			add("doi:" + src.DOI)
		}
	case types.ProviderClinicalTrials:
		add(src.Title)
		add("ClinicalTrials.gov " + src.NCTID)
		var status []string
		for _, s := range []string{src.TrialStatus, src.TrialPhase} {
			if s != "" {
				status = append(status, s)
			}
		}
		add(strings.Join(status, ", "))
		add(src.Venue)
	default:
		add(src.Title)
		host := src.Host()
		if host == "" {
			host = src.Venue
		}
		add(host)
		add(year)
		add(src.URL)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ". ") + "."
}

func authorList(authors []string) string {
	switch {
	case len(authors) == 0:
		return ""
	case len(authors) <= maxAuthors:
		return strings.Join(authors, ", ")
	default:
		return strings.Join(authors[:maxAuthors], ", ") + ", et al"
	}
}

// Summary returns the abstract with whitespace collapsed, cut at a word
// boundary to at most maxSummaryLen characters. Records without an
// abstract summarize to their title.
func Summary(src types.SourceRecord) string {
	text := strings.Join(strings.Fields(src.Abstract), " ")
	if text == "" {
		return strings.TrimSpace(src.Title)
	}
	runes := []rune(text)
	if len(runes) <= maxSummaryLen {
		return text
	}
	cut := string(runes[:maxSummaryLen-3])
	if i := strings.LastIndexByte(cut, ' '); i > maxSummaryLen/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

// Badge returns the credibility label for src.
func Badge(src types.SourceRecord) string {
	switch src.Kind {
	case types.ProviderPubMed:
		return BadgePeerReviewed
	case types.ProviderMedRxiv:
		return BadgePreprint
	case types.ProviderClinicalTrials:
		return BadgeTrialRegistry
	default:
		if IsAuthoritativeHost(src.Host()) {
			return BadgeAuthoritativeWeb
		}
		return BadgeWeb
	}
}

func qualityMetrics(selected []types.SelectedSource) types.QualityMetrics {
	if len(selected) == 0 {
		return types.QualityMetrics{}
	}
	m := types.QualityMetrics{
		MinRelevance: selected[0].RelevanceScore,
		MaxRelevance: selected[0].RelevanceScore,
	}
	sum := 0.0
	for _, s := range selected {
		sum += s.RelevanceScore
		m.MinRelevance = min(m.MinRelevance, s.RelevanceScore)
		m.MaxRelevance = max(m.MaxRelevance, s.RelevanceScore)
		if s.RelevanceScore > excellentScore {
			m.HighQualityCount++
		}
	}
	m.AverageRelevance = sum / float64(len(selected))
	return m
}
