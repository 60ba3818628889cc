// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// europePMCSearchBase is the Europe PMC REST search endpoint. Declared as
// a var so tests can substitute an httptest server.
var europePMCSearchBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// MedRxivClient queries medRxiv preprints. medRxiv has no full-text
// search API of its own, so the query goes to Europe PMC restricted to
// preprints published by medRxiv.
type MedRxivClient struct {
	Requester *httputil.Requester
	// Email is sent for polite access.
	Email     string
	UserAgent string
}

// Kind returns the provider identifier.
func (c *MedRxivClient) Kind() types.ProviderKind { return types.ProviderMedRxiv }

// Search returns up to maxResults medRxiv preprints for query.
func (c *MedRxivClient) Search(ctx context.Context, query string, maxResults int) ([]types.SourceRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty medRxiv query")
	}

	params := url.Values{
		"query":      {fmt.Sprintf(`(%s) AND SRC:PPR AND PUBLISHER:"medRxiv"`, query)},
		"format":     {"json"},
		"resultType": {"core"},
		"pageSize":   {strconv.Itoa(clampResults(maxResults, 100))},
	}
	if c.Email != "" {
		params.Set("email", c.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, europePMCSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	var er europePMCResponse
	if err := getJSON(ctx, requester(c.Requester), req, "Europe PMC", &er); err != nil {
		return nil, err
	}

	var records []types.SourceRecord
	for _, p := range er.ResultList.Result {
		rec := types.SourceRecord{
			Kind:        types.ProviderMedRxiv,
			DOI:         strings.TrimSpace(p.DOI),
			Title:       strings.TrimSpace(p.Title),
			Abstract:    stripTags(p.AbstractText),
			Venue:       "medRxiv",
			PublishedAt: parseDate(p.FirstPublicationDate),
		}
		if p.AuthorString != "" {
			for _, a := range strings.Split(strings.TrimSuffix(p.AuthorString, "."), ",") {
				if a = strings.TrimSpace(a); a != "" {
					rec.Authors = append(rec.Authors, a)
				}
			}
		}
		if rec.DOI != "" {
			rec.URL = "https://doi.org/" + rec.DOI
		}
		records = append(records, rec)
		if len(records) >= maxResults && maxResults > 0 {
			break
		}
	}
	return records, nil
}

// stripTags removes the inline HTML markup Europe PMC leaves in abstracts.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Europe PMC search JSON structures.
type europePMCResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	ID                   string `json:"id"`
	Source               string `json:"source"`
	DOI                  string `json:"doi"`
	Title                string `json:"title"`
	AuthorString         string `json:"authorString"`
	AbstractText         string `json:"abstractText"`
	FirstPublicationDate string `json:"firstPublicationDate"`
}
