// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// swap points *target at url for the duration of the test.
func swap(t *testing.T, target *string, url string) {
	t.Helper()
	orig := *target
	*target = url
	t.Cleanup(func() { *target = orig })
}

// --- PubMed ---

const samplePubMedSearchJSON = `{"esearchresult":{"count":"2","idlist":["38000002","38000001"]}}`

const samplePubMedFetchXML = `<?xml version="1.0" ?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">38000001</PMID>
      <Article>
        <Journal>
          <JournalIssue><PubDate><Year>2023</Year><Month>Mar</Month><Day>05</Day></PubDate></JournalIssue>
          <Title>Diabetes Care</Title>
        </Journal>
        <ArticleTitle>Gastrointestinal adverse events of metformin</ArticleTitle>
        <Abstract>
          <AbstractText Label="BACKGROUND">Metformin is first-line therapy.</AbstractText>
          <AbstractText Label="RESULTS">Diarrhea was the most common adverse event.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author><LastName>Kowalski</LastName><ForeName>Jan</ForeName></Author>
          <Author><CollectiveName>Metformin Study Group</CollectiveName></Author>
        </AuthorList>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">38000001</ArticleId>
        <ArticleId IdType="doi">10.2337/dc23-0001</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">38000002</PMID>
      <Article>
        <Journal>
          <JournalIssue><PubDate><MedlineDate>2019 Mar-Apr</MedlineDate></PubDate></JournalIssue>
          <Title>Lancet</Title>
        </Journal>
        <ArticleTitle>Lactic acidosis risk with metformin</ArticleTitle>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func TestPubMedSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/esearch.fcgi"):
			assert.Equal(t, "metformin side effects", r.URL.Query().Get("term"))
			assert.Equal(t, "5", r.URL.Query().Get("retmax"))
			assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
			io.WriteString(w, samplePubMedSearchJSON)
		case strings.HasSuffix(r.URL.Path, "/efetch.fcgi"):
			assert.Equal(t, "38000002,38000001", r.URL.Query().Get("id"))
			io.WriteString(w, samplePubMedFetchXML)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	swap(t, &pubmedEutilsBase, ts.URL)

	c := &PubMedClient{APIKey: "secret"}
	got, err := c.Search(context.Background(), "metformin side effects", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// esearch order is preserved.
	assert.Equal(t, "38000002", got[0].PMID)
	assert.Equal(t, 2019, got[0].PublishedAt.Year())

	a := got[1]
	assert.Equal(t, types.ProviderPubMed, a.Kind)
	assert.Equal(t, "10.2337/dc23-0001", a.DOI)
	assert.Equal(t, "Diabetes Care", a.Venue)
	assert.Equal(t, time.Date(2023, time.March, 5, 0, 0, 0, 0, time.UTC), a.PublishedAt)
	assert.Equal(t, []string{"Jan Kowalski", "Metformin Study Group"}, a.Authors)
	assert.Contains(t, a.Abstract, "BACKGROUND: Metformin is first-line therapy.")
	assert.Contains(t, a.Abstract, "RESULTS: Diarrhea")
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/38000001/", a.URL)
	assert.Equal(t, "pmid:38000001", a.IdentityKey())
}

func TestPubMedSearchNoHits(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/efetch.fcgi") {
			t.Error("efetch should not be called without ids")
		}
		io.WriteString(w, `{"esearchresult":{"count":"0","idlist":[]}}`)
	}))
	defer ts.Close()
	swap(t, &pubmedEutilsBase, ts.URL)

	got, err := (&PubMedClient{}).Search(context.Background(), "nothing", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPubMedSearchHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()
	swap(t, &pubmedEutilsBase, ts.URL)

	_, err := (&PubMedClient{}).Search(context.Background(), "x", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestEmptyQueries(t *testing.T) {
	clients := []Client{&PubMedClient{}, &MedRxivClient{}, &ClinicalTrialsClient{}, &ExaClient{APIKey: "k"}}
	for _, c := range clients {
		_, err := c.Search(context.Background(), "   ", 5)
		assert.Error(t, err, "provider %s", c.Kind())
	}
}

// --- medRxiv ---

func TestMedRxivSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		assert.Contains(t, q, "(long covid)")
		assert.Contains(t, q, "SRC:PPR")
		assert.Equal(t, "me@example.com", r.URL.Query().Get("email"))
		io.WriteString(w, `{"hitCount":2,"resultList":{"result":[
			{"id":"PPR1","source":"PPR","doi":"10.1101/2024.01.01.24300001","title":"Long COVID cohort","authorString":"Smith J, Doe A.","abstractText":"<h4>Background</h4> Persistent   symptoms.","firstPublicationDate":"2024-01-03"},
			{"id":"PPR2","source":"PPR","title":"No DOI preprint"}
		]}}`)
	}))
	defer ts.Close()
	swap(t, &europePMCSearchBase, ts.URL)

	got, err := (&MedRxivClient{Email: "me@example.com"}).Search(context.Background(), "long covid", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	p := got[0]
	assert.Equal(t, types.ProviderMedRxiv, p.Kind)
	assert.Equal(t, "10.1101/2024.01.01.24300001", p.DOI)
	assert.Equal(t, "https://doi.org/10.1101/2024.01.01.24300001", p.URL)
	assert.Equal(t, []string{"Smith J", "Doe A"}, p.Authors)
	assert.Equal(t, "Background Persistent symptoms.", p.Abstract)
	assert.Equal(t, 2024, p.PublishedAt.Year())
	assert.Empty(t, got[1].IdentityKey())
}

// --- ClinicalTrials.gov ---

func TestClinicalTrialsSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "metformin", r.URL.Query().Get("query.term"))
		assert.Equal(t, "3", r.URL.Query().Get("pageSize"))
		io.WriteString(w, `{"studies":[{"protocolSection":{
			"identificationModule":{"nctId":"nct01234567","briefTitle":"Metformin in Prediabetes","officialTitle":"A Randomized Trial"},
			"statusModule":{"overallStatus":"COMPLETED","startDateStruct":{"date":"2015-06"}},
			"sponsorCollaboratorsModule":{"leadSponsor":{"name":"NIDDK"}},
			"descriptionModule":{"briefSummary":"Evaluates metformin."},
			"designModule":{"phases":["PHASE3"]}}}]}`)
	}))
	defer ts.Close()
	swap(t, &clinicalTrialsBase, ts.URL)

	got, err := (&ClinicalTrialsClient{}).Search(context.Background(), "metformin", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)

	s := got[0]
	assert.Equal(t, "Metformin in Prediabetes", s.Title)
	assert.Equal(t, "COMPLETED", s.TrialStatus)
	assert.Equal(t, "PHASE3", s.TrialPhase)
	assert.Equal(t, "NIDDK", s.Venue)
	assert.Equal(t, time.Date(2015, time.June, 1, 0, 0, 0, 0, time.UTC), s.PublishedAt)
	assert.Equal(t, "nct:NCT01234567", s.IdentityKey())
}

// --- Exa ---

func TestExaSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "exa-key", r.Header.Get("x-api-key"))
		var body exaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "metformin", body.Query)
		assert.Equal(t, 4, body.NumResults)
		io.WriteString(w, `{"results":[
			{"url":"https://www.nih.gov/metformin/","title":"Metformin facts","text":"Metformin  lowers\nglucose.","publishedDate":"2023-11-16T01:36:32.547Z"},
			{"url":"","title":"dropped"}
		]}`)
	}))
	defer ts.Close()
	swap(t, &exaSearchURL, ts.URL)

	got, err := (&ExaClient{APIKey: "exa-key"}).Search(context.Background(), "metformin", 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "nih.gov", got[0].Venue)
	assert.Equal(t, "Metformin lowers glucose.", got[0].Abstract)
	assert.Equal(t, "url:https://nih.gov/metformin", got[0].IdentityKey())
	assert.Equal(t, 2023, got[0].PublishedAt.Year())
}

func TestExaRequiresKey(t *testing.T) {
	_, err := (&ExaClient{}).Search(context.Background(), "x", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewClients(t *testing.T) {
	clients := NewClients(types.ProviderConfig{})
	require.Len(t, clients, 3)
	assert.Equal(t, types.ProviderPubMed, clients[0].Kind())
	assert.Equal(t, types.ProviderMedRxiv, clients[1].Kind())
	assert.Equal(t, types.ProviderClinicalTrials, clients[2].Kind())

	withExa := NewClients(types.ProviderConfig{ExaAPIKey: "k", NCBIAPIKey: "n"})
	require.Len(t, withExa, 4)
	assert.Equal(t, types.ProviderExa, withExa[3].Kind())
	pm := withExa[0].(*PubMedClient)
	assert.InDelta(t, float64(pubmedRPSWithKey), float64(pm.Requester.Limiter.Limit()), 1e-9)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-02-29", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"2015-06", time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"2019 Mar 7", time.Date(2019, 3, 7, 0, 0, 0, 0, time.UTC)},
		{"2019", time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"garbage", time.Time{}},
		{"", time.Time{}},
	}
	for _, tt := range tests {
		assert.True(t, tt.want.Equal(parseDate(tt.in)), "parseDate(%q)", tt.in)
	}
}
