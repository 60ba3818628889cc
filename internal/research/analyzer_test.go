// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

func TestAnalyze_ModelResponse(t *testing.T) {
	c := replyCompleter("```json\n{\"category\":\"drug_safety\",\"pubmed_ratio\":0.7,\"medrxiv_ratio\":0.1,\"clinicaltrials_ratio\":0.2,\"confidence\":0.9,\"reasoning\":\"asks about adverse effects\"}\n```")
	a := NewAnalyzer(c, nil)

	got := a.Analyze(context.Background(), "metformin side effects")
	assert.Equal(t, types.CategoryDrugSafety, got.Category)
	assert.InDelta(t, 0.7, got.Ratios.PubMed, 1e-9)
	assert.InDelta(t, 0.1, got.Ratios.MedRxiv, 1e-9)
	assert.InDelta(t, 0.2, got.Ratios.ClinicalTrials, 1e-9)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.False(t, got.Fallback)
}

func TestAnalyze_RenormalizesRatios(t *testing.T) {
	c := replyCompleter(`{"category":"treatment","pubmed_ratio":0.5,"medrxiv_ratio":0.5,"clinicaltrials_ratio":1.0,"confidence":0.8}`)
	got := NewAnalyzer(c, nil).Analyze(context.Background(), "psoriasis treatment")

	assert.Equal(t, types.CategoryTreatment, got.Category)
	assert.InDelta(t, 1.0, got.Ratios.Sum(), 1e-9)
	assert.InDelta(t, 0.25, got.Ratios.PubMed, 1e-9)
	assert.InDelta(t, 0.5, got.Ratios.ClinicalTrials, 1e-9)
}

func TestAnalyze_SmallDeviationKept(t *testing.T) {
	c := replyCompleter(`{"category":"general","pubmed_ratio":0.6,"medrxiv_ratio":0.2,"clinicaltrials_ratio":0.205,"confidence":0.7}`)
	got := NewAnalyzer(c, nil).Analyze(context.Background(), "how do vaccines work")
	assert.InDelta(t, 0.205, got.Ratios.ClinicalTrials, 1e-9)
}

func TestAnalyze_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		a    *Analyzer
	}{
		{"transport error", NewAnalyzer(failingCompleter(), nil)},
		{"garbage", NewAnalyzer(replyCompleter("I think this is about drugs."), nil)},
		{"unknown category", NewAnalyzer(replyCompleter(`{"category":"veterinary","pubmed_ratio":1}`), nil)},
		{"zero ratios", NewAnalyzer(replyCompleter(`{"category":"general","pubmed_ratio":0,"medrxiv_ratio":0,"clinicaltrials_ratio":0}`), nil)},
		{"no completer", NewAnalyzer(nil, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Analyze(context.Background(), "metformin side effects")
			assert.True(t, got.Fallback)
			assert.Equal(t, types.CategoryDrugSafety, got.Category)
			assert.InDelta(t, 0.6, got.Confidence, 1e-9)
		})
	}
}

func TestClassifyByKeywords(t *testing.T) {
	tests := []struct {
		question string
		want     types.QueryCategory
	}{
		{"metformin side effects", types.CategoryDrugSafety},
		{"Is ibuprofen safe during pregnancy?", types.CategoryDrugSafety},
		{"skutki uboczne metforminy", types.CategoryDrugSafety},
		{"latest research on long covid", types.CategoryNewResearch},
		{"najnowsze badania nad cukrzycą", types.CategoryNewResearch},
		{"best therapy for plaque psoriasis", types.CategoryTreatment},
		{"leczenie nadciśnienia", types.CategoryTreatment},
		{"vitamin D and bone density", types.CategoryNutrition},
		{"is intermittent fasting healthy", types.CategoryNutrition},
		{"how does the immune system work", types.CategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got := ClassifyByKeywords(tt.question)
			assert.Equal(t, tt.want, got.Category)
			assert.True(t, got.Fallback)
			assert.InDelta(t, 1.0, got.Ratios.Sum(), 1e-9)
			assert.GreaterOrEqual(t, got.Confidence, 0.5)
			assert.LessOrEqual(t, got.Confidence, 0.6)
		})
	}
}

func TestCalculateSourceCounts_Metformin(t *testing.T) {
	got := CalculateSourceCounts(types.ProviderRatios{PubMed: 0.7, MedRxiv: 0.1, ClinicalTrials: 0.2}, 5)
	assert.Equal(t, types.SourceCounts{PubMed: 3, MedRxiv: 1, ClinicalTrials: 1}, got)
	assert.Equal(t, 5, got.NonWeb())
}

func TestCalculateSourceCounts_Cases(t *testing.T) {
	tests := []struct {
		name   string
		ratios types.ProviderRatios
		target int
		want   types.SourceCounts
	}{
		{"exact", types.ProviderRatios{PubMed: 0.6, MedRxiv: 0.2, ClinicalTrials: 0.2}, 15, types.SourceCounts{PubMed: 9, MedRxiv: 3, ClinicalTrials: 3}},
		{"remainder up", types.ProviderRatios{PubMed: 0.4, MedRxiv: 0.3, ClinicalTrials: 0.3}, 1, types.SourceCounts{PubMed: 1}},
		{"largest is preprints", types.ProviderRatios{PubMed: 0.4, MedRxiv: 0.5, ClinicalTrials: 0.1}, 5, types.SourceCounts{PubMed: 2, MedRxiv: 2, ClinicalTrials: 1}},
		{"all zero", types.ProviderRatios{}, 5, types.SourceCounts{PubMed: 5}},
		{"unnormalized", types.ProviderRatios{PubMed: 2, MedRxiv: 1, ClinicalTrials: 1}, 4, types.SourceCounts{PubMed: 2, MedRxiv: 1, ClinicalTrials: 1}},
		{"zero target", types.ProviderRatios{PubMed: 1}, 0, types.SourceCounts{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateSourceCounts(tt.ratios, tt.target)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateSourceCounts_SumsToTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		ratios := types.ProviderRatios{
			PubMed:         rng.Float64(),
			MedRxiv:        rng.Float64(),
			ClinicalTrials: rng.Float64(),
		}
		if i%7 == 0 {
			ratios.MedRxiv = 0
		}
		target := rng.Intn(60)
		got := CalculateSourceCounts(ratios, target)
		require.Equal(t, target, got.NonWeb(), "ratios %+v target %d", ratios, target)
		require.GreaterOrEqual(t, got.PubMed, 0)
		require.GreaterOrEqual(t, got.MedRxiv, 0)
		require.GreaterOrEqual(t, got.ClinicalTrials, 0)
		require.Zero(t, got.Exa)
	}
}

func FuzzCalculateSourceCounts(f *testing.F) {
	f.Add(0.7, 0.1, 0.2, 5)
	f.Add(0.0, 0.0, 0.0, 15)
	f.Add(1e300, 1e300, 1e300, 25)
	f.Add(-1.0, 0.5, 0.5, 3)
	f.Fuzz(func(t *testing.T, p, m, c float64, target int) {
		if target < 0 || target > 10000 {
			t.Skip()
		}
		got := CalculateSourceCounts(types.ProviderRatios{PubMed: p, MedRxiv: m, ClinicalTrials: c}, target)
		if got.NonWeb() != target {
			t.Fatalf("sum %d != target %d for (%v, %v, %v)", got.NonWeb(), target, p, m, c)
		}
		if got.PubMed < 0 || got.MedRxiv < 0 || got.ClinicalTrials < 0 {
			t.Fatalf("negative count %+v", got)
		}
	})
}

func TestNormalizeRatios_NonFinite(t *testing.T) {
	got := normalizeRatios(types.ProviderRatios{PubMed: math.NaN(), MedRxiv: 1})
	assert.Equal(t, types.ProviderRatios{PubMed: 1}, got)
}
