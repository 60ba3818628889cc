// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// pubmedEutilsBase is the NCBI E-utilities root. Declared as a var so
// tests can substitute an httptest server.
var pubmedEutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// PubMedClient queries PubMed through esearch (IDs by relevance) and
// efetch (article XML with abstracts).
type PubMedClient struct {
	Requester *httputil.Requester
	APIKey    string
	UserAgent string
}

// Kind returns the provider identifier.
func (c *PubMedClient) Kind() types.ProviderKind { return types.ProviderPubMed }

// Search returns up to maxResults articles for query, in relevance order.
func (c *PubMedClient) Search(ctx context.Context, query string, maxResults int) ([]types.SourceRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty PubMed query")
	}

	ids, err := c.searchIDs(ctx, query, clampResults(maxResults, 100))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.fetchArticles(ctx, ids)
}

func (c *PubMedClient) searchIDs(ctx context.Context, query string, retmax int) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {strconv.Itoa(retmax)},
		"retmode": {"json"},
		"sort":    {"relevance"},
	}
	if c.APIKey != "" {
		params.Set("api_key", c.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pubmedEutilsBase+"/esearch.fcgi?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	var sr pubmedSearchResponse
	if err := getJSON(ctx, requester(c.Requester), req, "PubMed esearch", &sr); err != nil {
		return nil, err
	}
	return sr.Result.IDList, nil
}

func (c *PubMedClient) fetchArticles(ctx context.Context, ids []string) ([]types.SourceRecord, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
		"rettype": {"abstract"},
	}
	if c.APIKey != "" {
		params.Set("api_key", c.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pubmedEutilsBase+"/efetch.fcgi?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := requester(c.Requester).Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("PubMed efetch API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PubMed efetch API returned HTTP %d", resp.StatusCode)
	}

	var set pubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("parsing PubMed efetch response: %w", err)
	}

	// efetch does not guarantee the esearch order; restore relevance order.
	byID := make(map[string]types.SourceRecord, len(set.Articles))
	for _, a := range set.Articles {
		rec := a.toRecord()
		if rec.PMID != "" {
			byID[rec.PMID] = rec
		}
	}
	records := make([]types.SourceRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// PubMed esearch JSON structure.
type pubmedSearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// PubMed efetch XML structures.
type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    string `xml:"ArticleTitle"`
			Abstract struct {
				Texts []pubmedAbstractText `xml:"AbstractText"`
			} `xml:"Abstract"`
			Journal struct {
				Title string `xml:"Title"`
				Issue struct {
					PubDate pubmedDate `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			Authors []pubmedAuthor `xml:"AuthorList>Author"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	ArticleIDs []pubmedArticleID `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type pubmedAbstractText struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

type pubmedDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

type pubmedAuthor struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	CollectiveName string `xml:"CollectiveName"`
}

type pubmedArticleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

func (a pubmedArticle) toRecord() types.SourceRecord {
	art := a.Citation.Article
	pmid := strings.TrimSpace(a.Citation.PMID)
	rec := types.SourceRecord{
		Kind:        types.ProviderPubMed,
		PMID:        pmid,
		Title:       strings.TrimSpace(art.Title),
		Venue:       strings.TrimSpace(art.Journal.Title),
		PublishedAt: art.Journal.Issue.PubDate.time(),
	}
	if pmid != "" {
		rec.URL = "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/"
	}

	var parts []string
	for _, t := range art.Abstract.Texts {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		if t.Label != "" {
			text = t.Label + ": " + text
		}
		parts = append(parts, text)
	}
	rec.Abstract = strings.Join(parts, " ")

	for _, au := range art.Authors {
		switch {
		case au.CollectiveName != "":
			rec.Authors = append(rec.Authors, au.CollectiveName)
		case au.LastName != "":
			rec.Authors = append(rec.Authors, strings.TrimSpace(au.ForeName+" "+au.LastName))
		}
	}

	for _, id := range a.ArticleIDs {
		if id.IDType == "doi" {
			rec.DOI = strings.TrimSpace(id.Value)
		}
	}
	return rec
}

func (d pubmedDate) time() time.Time {
	if d.Year == "" {
		// MedlineDate looks like "2019 Mar-Apr"; the year is enough.
		if len(d.MedlineDate) >= 4 {
			return parseDate(d.MedlineDate[:4])
		}
		return time.Time{}
	}
	s := d.Year
	if d.Month != "" {
		s += " " + d.Month
		if d.Day != "" {
			s += " " + strings.TrimLeft(d.Day, "0")
		}
	}
	if t := parseDate(s); !t.IsZero() {
		return t
	}
	return parseDate(d.Year)
}
