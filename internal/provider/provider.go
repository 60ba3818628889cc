// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider contains the search clients for the four evidence
// providers: PubMed, medRxiv (through Europe PMC), ClinicalTrials.gov,
// and the Exa web-search API. Each client is a plain request/response
// wrapper returning typed SourceRecords; timeouts and fault tolerance
// are applied by the research fetcher.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/evidence-engine/internal/httputil"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Client searches a single provider. Each provider implements this
// interface per the Strategy pattern.
type Client interface {
	Kind() types.ProviderKind
	Search(ctx context.Context, query string, maxResults int) ([]types.SourceRecord, error)
}

// Requests-per-second ceilings published by each provider.
const (
	pubmedRPS          = 3
	pubmedRPSWithKey   = 10
	europePMCRPS       = 10
	clinicalTrialsRPS  = 5
	exaRPS             = 5
	defaultHTTPTimeout = 30 * time.Second
	defaultUserAgent   = "evidence-engine/0.1"
)

// NewClients builds the four provider clients from configuration. The
// Exa client is omitted when no API key is configured.
func NewClients(cfg types.ProviderConfig) []Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	httpClient := &http.Client{Timeout: timeout}

	pubmedRate := float64(pubmedRPS)
	if cfg.NCBIAPIKey != "" {
		pubmedRate = pubmedRPSWithKey
	}

	clients := []Client{
		&PubMedClient{
			Requester: httputil.NewRequester(httpClient, pubmedRate),
			APIKey:    cfg.NCBIAPIKey,
			UserAgent: ua,
		},
		&MedRxivClient{
			Requester: httputil.NewRequester(httpClient, europePMCRPS),
			Email:     cfg.EuropePMCEmail,
			UserAgent: ua,
		},
		&ClinicalTrialsClient{
			Requester: httputil.NewRequester(httpClient, clinicalTrialsRPS),
			UserAgent: ua,
		},
	}
	if cfg.ExaAPIKey != "" {
		clients = append(clients, &ExaClient{
			Requester: httputil.NewRequester(httpClient, exaRPS),
			APIKey:    cfg.ExaAPIKey,
			UserAgent: ua,
		})
	}
	return clients
}

// getJSON issues req through r and decodes a 200 JSON body into v. name
// prefixes error messages.
func getJSON(ctx context.Context, r *httputil.Requester, req *http.Request, name string, v any) error {
	resp, err := r.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%s API request: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s API returned HTTP %d", name, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing %s response: %w", name, err)
	}
	return nil
}

func requester(r *httputil.Requester) *httputil.Requester {
	if r == nil {
		return &httputil.Requester{}
	}
	return r
}

// parseDate accepts the date layouts the providers emit and returns the
// zero time for anything else.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", "2006 Jan 2", "2006 Jan", "2006", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// clampResults bounds a requested result count to [1, max].
func clampResults(n, max int) int {
	if n <= 0 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}
