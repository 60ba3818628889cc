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

// clinicalTrialsBase is the ClinicalTrials.gov v2 studies endpoint.
// Declared as a var so tests can substitute an httptest server.
var clinicalTrialsBase = "https://clinicaltrials.gov/api/v2/studies"

// ClinicalTrialsClient queries the ClinicalTrials.gov registry.
type ClinicalTrialsClient struct {
	Requester *httputil.Requester
	UserAgent string
}

// Kind returns the provider identifier.
func (c *ClinicalTrialsClient) Kind() types.ProviderKind { return types.ProviderClinicalTrials }

// Search returns up to maxResults registered studies for query.
func (c *ClinicalTrialsClient) Search(ctx context.Context, query string, maxResults int) ([]types.SourceRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty ClinicalTrials.gov query")
	}

	params := url.Values{
		"query.term": {query},
		"pageSize":   {strconv.Itoa(clampResults(maxResults, 100))},
		"format":     {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, clinicalTrialsBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	var cr ctStudiesResponse
	if err := getJSON(ctx, requester(c.Requester), req, "ClinicalTrials.gov", &cr); err != nil {
		return nil, err
	}

	var records []types.SourceRecord
	for _, s := range cr.Studies {
		p := s.Protocol
		nct := strings.TrimSpace(p.Identification.NCTID)
		title := p.Identification.OfficialTitle
		if p.Identification.BriefTitle != "" {
			title = p.Identification.BriefTitle
		}
		rec := types.SourceRecord{
			Kind:        types.ProviderClinicalTrials,
			NCTID:       nct,
			Title:       strings.TrimSpace(title),
			Abstract:    strings.TrimSpace(p.Description.BriefSummary),
			Venue:       strings.TrimSpace(p.Sponsor.LeadSponsor.Name),
			PublishedAt: parseDate(p.Status.StartDate.Date),
			TrialStatus: p.Status.OverallStatus,
			TrialPhase:  strings.Join(p.Design.Phases, "/"),
		}
		if nct != "" {
			rec.URL = "https://clinicaltrials.gov/study/" + nct
		}
		records = append(records, rec)
		if len(records) >= maxResults && maxResults > 0 {
			break
		}
	}
	return records, nil
}

// ClinicalTrials.gov v2 JSON structures.
type ctStudiesResponse struct {
	Studies []ctStudy `json:"studies"`
}

type ctStudy struct {
	Protocol struct {
		Identification struct {
			NCTID         string `json:"nctId"`
			BriefTitle    string `json:"briefTitle"`
			OfficialTitle string `json:"officialTitle"`
		} `json:"identificationModule"`
		Status struct {
			OverallStatus string `json:"overallStatus"`
			StartDate     struct {
				Date string `json:"date"`
			} `json:"startDateStruct"`
		} `json:"statusModule"`
		Sponsor struct {
			LeadSponsor struct {
				Name string `json:"name"`
			} `json:"leadSponsor"`
		} `json:"sponsorCollaboratorsModule"`
		Description struct {
			BriefSummary string `json:"briefSummary"`
		} `json:"descriptionModule"`
		Design struct {
			Phases []string `json:"phases"`
		} `json:"designModule"`
	} `json:"protocolSection"`
}
