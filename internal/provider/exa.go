// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// exaSearchURL is the Exa search endpoint. Declared as a var so tests can
// substitute an httptest server.
var exaSearchURL = "https://api.exa.ai/search"

// exaSnippetChars caps the page text requested per result.
const exaSnippetChars = 1500

// ExaClient queries the Exa semantic web-search API.
type ExaClient struct {
	Requester *httputil.Requester
	APIKey    string
	UserAgent string
}

// Kind returns the provider identifier.
func (c *ExaClient) Kind() types.ProviderKind { return types.ProviderExa }

// Search returns up to maxResults web pages for query.
func (c *ExaClient) Search(ctx context.Context, query string, maxResults int) ([]types.SourceRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty Exa query")
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("Exa API key not configured")
	}

	body, err := json.Marshal(exaRequest{
		Query:      query,
		NumResults: clampResults(maxResults, 25),
		Type:       "auto",
		Contents: exaContents{
			Text: exaText{MaxCharacters: exaSnippetChars},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, exaSearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("User-Agent", c.UserAgent)

	var er exaResponse
	if err := getJSON(ctx, requester(c.Requester), req, "Exa", &er); err != nil {
		return nil, err
	}

	var records []types.SourceRecord
	for _, r := range er.Results {
		if r.URL == "" {
			continue
		}
		rec := types.SourceRecord{
			Kind:        types.ProviderExa,
			URL:         r.URL,
			Title:       strings.TrimSpace(r.Title),
			Abstract:    strings.Join(strings.Fields(r.Text), " "),
			PublishedAt: parseDate(r.PublishedDate),
		}
		if r.Author != "" {
			rec.Authors = []string{r.Author}
		}
		rec.Venue = rec.Host()
		records = append(records, rec)
	}
	return records, nil
}

// Exa JSON structures.
type exaRequest struct {
	Query      string      `json:"query"`
	NumResults int         `json:"numResults"`
	Type       string      `json:"type"`
	Contents   exaContents `json:"contents"`
}

type exaContents struct {
	Text exaText `json:"text"`
}

type exaText struct {
	MaxCharacters int `json:"maxCharacters"`
}

type exaResponse struct {
	Results []exaResult `json:"results"`
}

type exaResult struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Text          string `json:"text"`
	Author        string `json:"author"`
	PublishedDate string `json:"publishedDate"`
}
