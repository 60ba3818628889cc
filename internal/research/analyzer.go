// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/llm"
	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ratioTolerance is how far the model's ratios may drift from 1.0 before
// they are renormalized.
const ratioTolerance = 0.01

// categoryPresets are the fixed splits used by the keyword classifier.
var categoryPresets = map[types.QueryCategory]struct {
	ratios     types.ProviderRatios
	confidence float64
}{
	types.CategoryDrugSafety:  {types.ProviderRatios{PubMed: 0.7, MedRxiv: 0.1, ClinicalTrials: 0.2}, 0.6},
	types.CategoryNewResearch: {types.ProviderRatios{PubMed: 0.4, MedRxiv: 0.5, ClinicalTrials: 0.1}, 0.6},
	types.CategoryTreatment:   {types.ProviderRatios{PubMed: 0.5, MedRxiv: 0.1, ClinicalTrials: 0.4}, 0.6},
	types.CategoryNutrition:   {types.ProviderRatios{PubMed: 0.7, MedRxiv: 0.2, ClinicalTrials: 0.1}, 0.55},
	types.CategoryGeneral:     {types.ProviderRatios{PubMed: 0.6, MedRxiv: 0.2, ClinicalTrials: 0.2}, 0.5},
}

// categoryPatterns are tried in order; the first family that matches wins.
// Polish variants are included because questions arrive untranslated.
var categoryPatterns = []struct {
	category types.QueryCategory
	re       *regexp.Regexp
}{
	{types.CategoryDrugSafety, regexp.MustCompile(`(?i)side[\s-]?effects?|adverse|safety|safe\b|toxic|interaction|contraindicat|overdose|skutki uboczne|działania niepożądane|bezpiecz|interakcj`)},
	{types.CategoryNewResearch, regexp.MustCompile(`(?i)\b(latest|newest|new|recent|emerging|novel|breakthrough|cutting[\s-]edge|20[2-3]\d)\b|najnowsze|nowe badania|ostatnie`)},
	{types.CategoryTreatment, regexp.MustCompile(`(?i)treat|therap|cure|efficacy|effective|manage|medication|drug for|surgery|leczeni|terapi|skuteczn`)},
	{types.CategoryNutrition, regexp.MustCompile(`(?i)diet|nutri|food|vitamin|supplement|fasting|\beat(ing)?\b|protein|calori|żywien|witamin|suplement|jedzeni`)},
}

// Analyzer classifies questions and fixes the per-provider budget.
type Analyzer struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewAnalyzer returns an Analyzer backed by completer.
func NewAnalyzer(completer llm.Completer, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{completer: completer, logger: logger}
}

// analyzerResponse is the JSON shape requested from the model.
type analyzerResponse struct {
	Category            string  `json:"category"`
	PubMedRatio         float64 `json:"pubmed_ratio"`
	MedRxivRatio        float64 `json:"medrxiv_ratio"`
	ClinicalTrialsRatio float64 `json:"clinicaltrials_ratio"`
	Confidence          float64 `json:"confidence"`
	Reasoning           string  `json:"reasoning"`
}

// Analyze classifies question. It never fails: any completion or parse
// problem falls back to the keyword classifier.
func (a *Analyzer) Analyze(ctx context.Context, question string) types.QueryAnalysis {
	if a.completer == nil {
		return ClassifyByKeywords(question)
	}

	text, err := a.completer.Complete(ctx, analyzerSystemPrompt, question, 0.1, 300)
	if err != nil {
		a.logger.Warn("query analysis failed, using keyword classifier", zap.Error(err))
		metrics.CompletionFallbacks.WithLabelValues("analyzer").Inc()
		return ClassifyByKeywords(question)
	}

	var resp analyzerResponse
	if err := llm.DecodeJSON(text, &resp); err != nil {
		a.logger.Warn("could not parse query analysis, using keyword classifier", zap.Error(err))
		metrics.CompletionFallbacks.WithLabelValues("analyzer").Inc()
		return ClassifyByKeywords(question)
	}

	category := types.QueryCategory(strings.ToLower(strings.TrimSpace(resp.Category)))
	if _, ok := categoryPresets[category]; !ok {
		a.logger.Warn("unknown query category, using keyword classifier", zap.String("category", resp.Category))
		metrics.CompletionFallbacks.WithLabelValues("analyzer").Inc()
		return ClassifyByKeywords(question)
	}

	ratios := types.ProviderRatios{
		PubMed:         math.Max(0, resp.PubMedRatio),
		MedRxiv:        math.Max(0, resp.MedRxivRatio),
		ClinicalTrials: math.Max(0, resp.ClinicalTrialsRatio),
	}
	sum := ratios.Sum()
	if sum <= 0 {
		a.logger.Warn("query analysis returned no usable ratios, using keyword classifier")
		metrics.CompletionFallbacks.WithLabelValues("analyzer").Inc()
		return ClassifyByKeywords(question)
	}
	if math.Abs(sum-1.0) > ratioTolerance {
		a.logger.Debug("renormalizing provider ratios", zap.Float64("sum", sum))
		ratios = normalizeRatios(ratios)
	}

	confidence := resp.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.8
	}

	return types.QueryAnalysis{
		Category:   category,
		Ratios:     ratios,
		Confidence: confidence,
		Reasoning:  resp.Reasoning,
	}
}

// ClassifyByKeywords is the deterministic fallback classifier.
func ClassifyByKeywords(question string) types.QueryAnalysis {
	category := types.CategoryGeneral
	for _, p := range categoryPatterns {
		if p.re.MatchString(question) {
			category = p.category
			break
		}
	}
	preset := categoryPresets[category]
	return types.QueryAnalysis{
		Category:   category,
		Ratios:     preset.ratios,
		Confidence: preset.confidence,
		Reasoning:  "keyword heuristic",
		Fallback:   true,
	}
}

// normalizeRatios scales ratios to sum to 1. All-zero input maps to
// PubMed only.
func normalizeRatios(r types.ProviderRatios) types.ProviderRatios {
	r.PubMed = math.Max(0, r.PubMed)
	r.MedRxiv = math.Max(0, r.MedRxiv)
	r.ClinicalTrials = math.Max(0, r.ClinicalTrials)
	sum := r.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return types.ProviderRatios{PubMed: 1}
	}
	return types.ProviderRatios{
		PubMed:         r.PubMed / sum,
		MedRxiv:        r.MedRxiv / sum,
		ClinicalTrials: r.ClinicalTrials / sum,
	}
}

// CalculateSourceCounts turns ratios into integer PubMed, medRxiv, and
// ClinicalTrials counts that sum to target exactly. Each ratio×target is
// rounded, and the rounding remainder goes to the provider with the
// largest ratio (clamped at zero; any residue moves down the ratio order).
// The Exa count is left at zero for the caller to fill.
func CalculateSourceCounts(ratios types.ProviderRatios, target int) types.SourceCounts {
	if target <= 0 {
		return types.SourceCounts{}
	}
	r := normalizeRatios(ratios)
	shares := []float64{r.PubMed, r.MedRxiv, r.ClinicalTrials}

	counts := make([]int, len(shares))
	sum := 0
	for i, s := range shares {
		counts[i] = int(math.Round(s * float64(target)))
		sum += counts[i]
	}

	// Indices by descending ratio; ties keep PubMed, medRxiv, trials order.
	order := []int{0, 1, 2}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && shares[order[j]] > shares[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	remainder := target - sum
	for _, idx := range order {
		if remainder == 0 {
			break
		}
		next := counts[idx] + remainder
		if next < 0 {
			remainder = next
			counts[idx] = 0
			continue
		}
		counts[idx] = next
		remainder = 0
	}

	return types.SourceCounts{
		PubMed:         counts[0],
		MedRxiv:        counts[1],
		ClinicalTrials: counts[2],
	}
}
