// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selection ranks the accumulated sources of a research session
// against the original question and cuts them down to a token-budgeted,
// near-duplicate-free list ready for synthesis.
package selection

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Score components.
const (
	titleWeight    = 50.0
	abstractWeight = 30.0

	recentBoost   = 8.0
	moderateBoost = 4.0
	recentYears   = 2
	moderateYears = 5

	minTermLen = 3
)

// providerBoost is the credibility boost per provider.
var providerBoost = map[types.ProviderKind]float64{
	types.ProviderPubMed:         12,
	types.ProviderClinicalTrials: 10,
	types.ProviderMedRxiv:        6,
	types.ProviderExa:            3,
}

const authoritativeWebBoost = 8.0

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "are": true, "was": true,
	"were": true, "what": true, "which": true, "who": true, "whom": true, "this": true,
	"that": true, "these": true, "those": true, "from": true, "into": true, "about": true,
	"does": true, "did": true, "doing": true, "have": true, "has": true, "had": true,
	"how": true, "why": true, "when": true, "where": true, "can": true, "could": true,
	"should": true, "would": true, "will": true, "there": true, "their": true, "them": true,
	"they": true, "than": true, "then": true, "any": true, "all": true, "not": true,
	"but": true, "you": true, "your": true, "our": true, "its": true, "also": true,
	"between": true, "more": true, "most": true, "some": true, "such": true, "other": true,
	"over": true, "after": true, "before": true, "during": true, "being": true, "been": true,
	"best": true, "latest": true, "new": true, "use": true, "used": true, "using": true,
}

// Rank scores every source against question and returns them sorted by
// descending score. Ties keep a stable order by identity key. now anchors
// the recency boost.
//
// translated is the English rendering of question used for the provider
// searches, or "" when none was needed. Each source is scored against the
// question's terms and the translation's terms, and the better match
// counts, so a non-English question can still match English records.
func Rank(question, translated string, sources []types.SourceRecord, now time.Time) []types.RankedSource {
	termSets := [][]string{queryTerms(question)}
	if t := strings.TrimSpace(translated); t != "" && !strings.EqualFold(t, strings.TrimSpace(question)) {
		termSets = append(termSets, queryTerms(t))
	}

	ranked := make([]types.RankedSource, 0, len(sources))
	for _, src := range sources {
		ranked = append(ranked, score(termSets, src, now))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RelevanceScore != ranked[j].RelevanceScore {
			return ranked[i].RelevanceScore > ranked[j].RelevanceScore
		}
		return ranked[i].Source.IdentityKey() < ranked[j].Source.IdentityKey()
	})
	return ranked
}

// termMatch scores the title and abstract overlap with one term set.
func termMatch(terms []string, src types.SourceRecord) (float64, []string) {
	if len(terms) == 0 {
		return 0, nil
	}
	titleHits := overlap(terms, tokenSet(src.Title))
	abstractHits := overlap(terms, tokenSet(src.Abstract))
	points := titleWeight*float64(titleHits)/float64(len(terms)) +
		abstractWeight*float64(abstractHits)/float64(len(terms))
	return points, []string{
		fmt.Sprintf("title %d/%d terms", titleHits, len(terms)),
		fmt.Sprintf("abstract %d/%d terms", abstractHits, len(terms)),
	}
}

func score(termSets [][]string, src types.SourceRecord, now time.Time) types.RankedSource {
	var reasons []string
	total := 0.0

	best := -1.0
	for i, terms := range termSets {
		points, why := termMatch(terms, src)
		if why == nil || points <= best {
			continue
		}
		best = points
		if i > 0 {
			why = append(why, "translated terms")
		}
		reasons = why
	}
	if best > 0 {
		total += best
	}

	boost := providerBoost[src.Kind]
	if src.Kind == types.ProviderExa && IsAuthoritativeHost(src.Host()) {
		boost = authoritativeWebBoost
	}
	if boost > 0 {
		total += boost
		reasons = append(reasons, fmt.Sprintf("%s +%.0f", src.Kind.Label(), boost))
	}

	if !src.PublishedAt.IsZero() {
		switch {
		case !src.PublishedAt.Before(now.AddDate(-recentYears, 0, 0)):
			total += recentBoost
			reasons = append(reasons, fmt.Sprintf("recent +%.0f", recentBoost))
		case !src.PublishedAt.Before(now.AddDate(-moderateYears, 0, 0)):
			total += moderateBoost
			reasons = append(reasons, fmt.Sprintf("recent +%.0f", moderateBoost))
		}
	}

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return types.RankedSource{
		Source:         src,
		RelevanceScore: total,
		SourceType:     src.Kind,
		Reasoning:      strings.Join(reasons, ", "),
	}
}

// IsAuthoritativeHost reports whether a web host belongs to a government,
// academic, or WHO domain. NIH hosts (nih.gov and its subdomains) fall
// under .gov.
func IsAuthoritativeHost(host string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}
	return strings.HasSuffix(host, ".gov") ||
		strings.Contains(host, ".gov.") ||
		strings.HasSuffix(host, ".edu") ||
		host == "who.int" || strings.HasSuffix(host, ".who.int")
}

// queryTerms returns the distinct lower-cased question words of at least
// three characters that are not stopwords, in first-seen order.
func queryTerms(question string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range words(question) {
		if len([]rune(w)) < minTermLen || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range words(s) {
		set[w] = true
		set[stem(w)] = true
	}
	return set
}

// stem drops a plural "s" so "effect" and "effects" match.
func stem(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

func overlap(terms []string, set map[string]bool) int {
	n := 0
	for _, t := range terms {
		if set[t] || set[stem(t)] {
			n++
		}
	}
	return n
}
