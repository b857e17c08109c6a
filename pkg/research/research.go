// Package research queries ClinicalTrials.gov v2 and PubMed E-utilities for
// company activity signals. Neither API needs a key; PubMed allows 3 req/sec.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const maxResponseSizeBytes = 4 << 20

var ErrUnavailable = errors.New("research api unavailable after retries")

type Config struct {
	TrialsBaseURL string        `split_words:"true" default:"https://clinicaltrials.gov/api/v2"`
	PubmedBaseURL string        `split_words:"true" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	Timeout       time.Duration `split_words:"true" default:"15s"`
	MaxRetries    int           `split_words:"true" default:"3"`
}

type Client struct {
	trialsBaseURL string
	pubmedBaseURL string
	maxRetries    int
	httpClient    *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		trialsBaseURL: strings.TrimRight(cfg.TrialsBaseURL, "/"),
		pubmedBaseURL: strings.TrimRight(cfg.PubmedBaseURL, "/"),
		maxRetries:    maxRetries,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

type Trial struct {
	NCTID         string   `json:"nct_id"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	Sponsor       string   `json:"sponsor"`
	Conditions    []string `json:"conditions"`
	Investigators []string `json:"investigators,omitempty"`
}

type TrialsQuery struct {
	Condition string
	Sponsor   string
	Status    string // default RECRUITING
	PageSize  int
}

// SearchTrials lists registered studies. An empty slice is a valid
// "no trials" answer, not an error.
func (c *Client) SearchTrials(ctx context.Context, query TrialsQuery) ([]Trial, error) {
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 5
	}
	status := query.Status
	if status == "" {
		status = "RECRUITING"
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("pageSize", strconv.Itoa(pageSize))
	if query.Condition != "" {
		q.Set("query.cond", query.Condition)
	}
	if query.Sponsor != "" {
		q.Set("query.spons", query.Sponsor)
	}
	q.Set("filter.overallStatus", status)

	raw, err := c.get(ctx, c.trialsBaseURL+"/studies?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Studies []struct {
			ProtocolSection struct {
				IdentificationModule struct {
					NCTID      string `json:"nctId"`
					BriefTitle string `json:"briefTitle"`
				} `json:"identificationModule"`
				StatusModule struct {
					OverallStatus string `json:"overallStatus"`
				} `json:"statusModule"`
				SponsorCollaboratorsModule struct {
					LeadSponsor struct {
						Name string `json:"name"`
					} `json:"leadSponsor"`
				} `json:"sponsorCollaboratorsModule"`
				ConditionsModule struct {
					Conditions []string `json:"conditions"`
				} `json:"conditionsModule"`
				ContactsLocationsModule struct {
					OverallOfficials []struct {
						Name string `json:"name"`
					} `json:"overallOfficials"`
				} `json:"contactsLocationsModule"`
			} `json:"protocolSection"`
		} `json:"studies"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode trials response: %w", err)
	}

	trials := make([]Trial, 0, len(parsed.Studies))
	for _, s := range parsed.Studies {
		p := s.ProtocolSection
		t := Trial{
			NCTID:      p.IdentificationModule.NCTID,
			Title:      p.IdentificationModule.BriefTitle,
			Status:     p.StatusModule.OverallStatus,
			Sponsor:    p.SponsorCollaboratorsModule.LeadSponsor.Name,
			Conditions: p.ConditionsModule.Conditions,
		}
		for _, official := range p.ContactsLocationsModule.OverallOfficials {
			if official.Name != "" {
				t.Investigators = append(t.Investigators, official.Name)
			}
		}
		trials = append(trials, t)
	}
	return trials, nil
}

type Publication struct {
	PMID    string   `json:"pmid"`
	Title   string   `json:"title"`
	Journal string   `json:"journal"`
	PubDate string   `json:"pub_date"`
	Authors []string `json:"authors,omitempty"`
}

// SearchPubmed searches by affiliation (and optional topic), returning PMIDs
// sorted by date.
func (c *Client) SearchPubmed(ctx context.Context, affiliation, topic string, maxResults int) ([]string, error) {
	if affiliation == "" {
		return nil, errors.New("affiliation is required")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	term := fmt.Sprintf("%q[affil]", affiliation)
	if topic != "" {
		term += fmt.Sprintf(" AND %q[tiab]", topic)
	}

	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmax", strconv.Itoa(maxResults))
	q.Set("retmode", "json")
	q.Set("sort", "date")

	raw, err := c.get(ctx, c.pubmedBaseURL+"/esearch.fcgi?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode pubmed search response: %w", err)
	}
	return parsed.ESearchResult.IDList, nil
}

// FetchSummaries fetches article summaries for a list of PMIDs (max 50).
func (c *Client) FetchSummaries(ctx context.Context, pmids []string) ([]Publication, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	if len(pmids) > 50 {
		pmids = pmids[:50]
	}

	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "json")

	raw, err := c.get(ctx, c.pubmedBaseURL+"/esummary.fcgi?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode pubmed summary response: %w", err)
	}

	var uids []string
	if rawUIDs, ok := parsed.Result["uids"]; ok {
		if err := json.Unmarshal(rawUIDs, &uids); err != nil {
			return nil, fmt.Errorf("decode pubmed uid list: %w", err)
		}
	}

	pubs := make([]Publication, 0, len(uids))
	for _, uid := range uids {
		rawArticle, ok := parsed.Result[uid]
		if !ok {
			continue
		}
		var article struct {
			UID             string `json:"uid"`
			Title           string `json:"title"`
			FullJournalName string `json:"fulljournalname"`
			PubDate         string `json:"pubdate"`
			Authors         []struct {
				Name string `json:"name"`
			} `json:"authors"`
		}
		if err := json.Unmarshal(rawArticle, &article); err != nil {
			continue
		}
		pub := Publication{
			PMID:    article.UID,
			Title:   article.Title,
			Journal: article.FullJournalName,
			PubDate: article.PubDate,
		}
		for i, a := range article.Authors {
			if i >= 5 {
				break
			}
			pub.Authors = append(pub.Authors, a.Name)
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	backoff := 2 * time.Second
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build research request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute research request: %w", err)
		}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read research response: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			log.Warn().Int("status", resp.StatusCode).Dur("backoff", backoff).Msg("research api retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, time.Minute)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("research api http status=%d body=%s", resp.StatusCode, string(raw))
		}
		return raw, nil
	}
	return nil, ErrUnavailable
}
