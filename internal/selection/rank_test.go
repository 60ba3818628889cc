// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"metformin", "side", "effects", "pregnancy"},
		queryTerms("What are the Metformin side-effects during pregnancy? metformin"))
	assert.Empty(t, queryTerms("is it ok"))
}

func TestRank_ScoreComponents(t *testing.T) {
	tests := []struct {
		name string
		src  types.SourceRecord
		want float64
	}{
		{
			name: "full overlap pubmed recent",
			src: types.SourceRecord{Kind: types.ProviderPubMed, PMID: "1",
				Title: "Metformin side effects", Abstract: "Side effects of metformin.", PublishedAt: now.AddDate(-1, 0, 0)},
			want: 50 + 30 + 12 + 8,
		},
		{
			name: "half title trial older",
			src: types.SourceRecord{Kind: types.ProviderClinicalTrials, NCTID: "NCT1",
				Title: "Metformin in type 2 diabetes", Abstract: "", PublishedAt: now.AddDate(-4, 0, 0)},
			want: 50.0/3 + 10 + 4,
		},
		{
			name: "preprint old",
			src: types.SourceRecord{Kind: types.ProviderMedRxiv, DOI: "10.1101/x",
				Title: "Unrelated", PublishedAt: now.AddDate(-10, 0, 0)},
			want: 6,
		},
		{
			name: "plain web",
			src:  types.SourceRecord{Kind: types.ProviderExa, URL: "https://blog.example.com/metformin", Title: "Metformin"},
			want: 50.0/3 + 3,
		},
		{
			name: "authoritative web",
			src:  types.SourceRecord{Kind: types.ProviderExa, URL: "https://www.nlm.nih.gov/metformin", Title: "Metformin"},
			want: 50.0/3 + 8,
		},
		{
			name: "plural matches singular",
			src:  types.SourceRecord{Kind: types.ProviderExa, URL: "https://example.com/e", Title: "Metformin side effect profile"},
			want: 50 + 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rank("metformin side effects", "", []types.SourceRecord{tt.src}, now)
			require.Len(t, got, 1)
			assert.InDelta(t, tt.want, got[0].RelevanceScore, 1e-9)
			assert.Equal(t, tt.src.Kind, got[0].SourceType)
			assert.NotEmpty(t, got[0].Reasoning)
		})
	}
}

func TestRank_SortedAndStable(t *testing.T) {
	sources := []types.SourceRecord{
		{Kind: types.ProviderExa, URL: "https://z.example/1", Title: "nothing"},
		{Kind: types.ProviderPubMed, PMID: "9", Title: "Metformin side effects"},
		{Kind: types.ProviderExa, URL: "https://a.example/1", Title: "nothing"},
		{Kind: types.ProviderPubMed, PMID: "1", Title: "Metformin side effects"},
	}
	got := Rank("metformin side effects", "", sources, now)
	require.Len(t, got, 4)

	keys := make([]string, len(got))
	for i, r := range got {
		keys[i] = r.Source.IdentityKey()
	}
	assert.Equal(t, []string{"pmid:1", "pmid:9", "url:https://a.example/1", "url:https://z.example/1"}, keys)

	again := Rank("metformin side effects", "", sources, now)
	assert.Equal(t, got, again)
}

func TestRank_TranslatedTerms(t *testing.T) {
	src := types.SourceRecord{Kind: types.ProviderPubMed, PMID: "1",
		Title: "Metformin side effects in pregnancy", Abstract: "Pregnancy outcomes after metformin."}

	untranslated := Rank("skutki uboczne metforminy w ciąży", "", []types.SourceRecord{src}, now)
	require.Len(t, untranslated, 1)
	assert.InDelta(t, 12, untranslated[0].RelevanceScore, 1e-9, "only the provider boost without a translation")

	got := Rank("skutki uboczne metforminy w ciąży", "metformin side effects in pregnancy", []types.SourceRecord{src}, now)
	require.Len(t, got, 1)
	assert.InDelta(t, 50+30.0*2/4+12, got[0].RelevanceScore, 1e-9)
	assert.Contains(t, got[0].Reasoning, "translated terms")
}

func TestRank_TranslationNeverLowersScore(t *testing.T) {
	src := types.SourceRecord{Kind: types.ProviderPubMed, PMID: "1", Title: "Metformin side effects"}

	plain := Rank("metformin side effects", "", []types.SourceRecord{src}, now)
	withUnrelated := Rank("metformin side effects", "unrelated words entirely", []types.SourceRecord{src}, now)
	assert.Equal(t, plain[0].RelevanceScore, withUnrelated[0].RelevanceScore)
	assert.NotContains(t, withUnrelated[0].Reasoning, "translated terms")

	same := Rank("metformin side effects", "Metformin side effects", []types.SourceRecord{src}, now)
	assert.Equal(t, plain, same)
}

func TestRank_ScoreBounds(t *testing.T) {
	got := Rank("", "", []types.SourceRecord{{Kind: types.ProviderPubMed, PMID: "1", PublishedAt: now}}, now)
	require.Len(t, got, 1)
	assert.InDelta(t, 20, got[0].RelevanceScore, 1e-9)

	for _, r := range Rank("metformin", "", []types.SourceRecord{{Kind: types.ProviderPubMed, PMID: "1",
		Title: "metformin", Abstract: "metformin", PublishedAt: now}}, now) {
		assert.LessOrEqual(t, r.RelevanceScore, 100.0)
		assert.GreaterOrEqual(t, r.RelevanceScore, 0.0)
	}
}

func TestIsAuthoritativeHost(t *testing.T) {
	for host, want := range map[string]bool{
		"cdc.gov":            true,
		"www.nhs.gov.uk":     true,
		"med.stanford.edu":   true,
		"who.int":            true,
		"apps.who.int":       true,
		"ncbi.nlm.nih.gov":   true,
		"nih.gov":            true,
		"nihilist.example":   false,
		"tanihealth.com":     false,
		"healthline.com":     false,
		"":                   false,
		"notwho.int.example": false,
	} {
		assert.Equal(t, want, IsAuthoritativeHost(host), host)
	}
}
