// Package hunter is a Hunter.io v2 API client: domain search, email finder,
// and email verifier. Auth is an api_key query param on every call.
package hunter

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

const maxResponseSizeBytes = 2 << 20

var ErrRateLimited = errors.New("hunter rate limit exceeded")

type Config struct {
	BaseURL    string        `split_words:"true" default:"https://api.hunter.io/v2"`
	APIKey     string        `split_words:"true" required:"true"`
	Timeout    time.Duration `split_words:"true" default:"15s"`
	MaxRetries int           `split_words:"true" default:"3"`
}

type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("hunter base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid hunter base url: %w", err)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("hunter api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type EmailRecord struct {
	Value      string `json:"value"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Position   string `json:"position"`
	Confidence int    `json:"confidence"`
	Department string `json:"department"`
	Seniority  string `json:"seniority"`
	Linkedin   string `json:"linkedin"`
}

func (e EmailRecord) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

type DomainSearchParams struct {
	Domain     string
	Limit      int
	Offset     int
	Department string
	Seniority  string
}

type DomainSearchResult struct {
	Domain  string
	Pattern string // e.g. "{first}.{last}"
	Emails  []EmailRecord
	Total   int
}

// HasMore reports whether another page exists past the given offset.
func (r *DomainSearchResult) HasMore(offset int) bool {
	return r.Total > offset+len(r.Emails)
}

type FindResult struct {
	Email    string
	Score    int
	Position string
	Domain   string
}

type VerifyResult struct {
	Email  string
	Status string // deliverable | risky | undeliverable | unknown
	Score  int
}

// SearchDomain lists email addresses known at a domain. An empty Emails
// slice is a valid "no result" response, not an error. Costs 1 credit.
func (c *Client) SearchDomain(ctx context.Context, p DomainSearchParams) (*DomainSearchResult, error) {
	if strings.TrimSpace(p.Domain) == "" {
		return nil, errors.New("domain is required")
	}
	limit := p.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	q := url.Values{}
	q.Set("domain", p.Domain)
	q.Set("limit", strconv.Itoa(limit))
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	if p.Department != "" {
		q.Set("department", p.Department)
	}
	if p.Seniority != "" {
		q.Set("seniority", p.Seniority)
	}

	var parsed struct {
		Data struct {
			Domain  string        `json:"domain"`
			Pattern string        `json:"pattern"`
			Emails  []EmailRecord `json:"emails"`
		} `json:"data"`
		Meta struct {
			Results int `json:"results"`
		} `json:"meta"`
	}
	if err := c.get(ctx, "/domain-search", q, &parsed); err != nil {
		return nil, err
	}

	total := parsed.Meta.Results
	if total == 0 {
		total = len(parsed.Data.Emails)
	}
	return &DomainSearchResult{
		Domain:  parsed.Data.Domain,
		Pattern: parsed.Data.Pattern,
		Emails:  parsed.Data.Emails,
		Total:   total,
	}, nil
}

// FindEmail looks up one person's email at a domain. Costs 1 credit.
func (c *Client) FindEmail(ctx context.Context, domain, firstName, lastName string) (*FindResult, error) {
	if domain == "" || firstName == "" || lastName == "" {
		return nil, errors.New("domain, first_name and last_name are required")
	}

	q := url.Values{}
	q.Set("domain", domain)
	q.Set("first_name", firstName)
	q.Set("last_name", lastName)

	var parsed struct {
		Data struct {
			Email    string `json:"email"`
			Score    int    `json:"score"`
			Position string `json:"position"`
			Domain   string `json:"domain"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/email-finder", q, &parsed); err != nil {
		return nil, err
	}
	return &FindResult{
		Email:    parsed.Data.Email,
		Score:    parsed.Data.Score,
		Position: parsed.Data.Position,
		Domain:   parsed.Data.Domain,
	}, nil
}

// VerifyEmail checks deliverability of an address. Costs 0.5 credits.
func (c *Client) VerifyEmail(ctx context.Context, email string) (*VerifyResult, error) {
	if email == "" {
		return nil, errors.New("email is required")
	}

	q := url.Values{}
	q.Set("email", email)

	var parsed struct {
		Data struct {
			Email  string `json:"email"`
			Status string `json:"status"`
			Score  int    `json:"score"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/email-verifier", q, &parsed); err != nil {
		return nil, err
	}
	status := parsed.Data.Status
	if status == "" {
		status = "unknown"
	}
	return &VerifyResult{Email: parsed.Data.Email, Status: status, Score: parsed.Data.Score}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("api_key", c.apiKey)
	endpoint := c.baseURL + path + "?" + q.Encode()

	backoff := 2 * time.Second
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("build hunter request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("execute hunter request: %w", err)
		}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read hunter response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			log.Warn().Int("status", resp.StatusCode).Str("path", path).
				Dur("backoff", backoff).Msg("hunter retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, time.Minute)
			continue
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return fmt.Errorf("hunter http status=%d body=%s", resp.StatusCode, string(raw))
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode hunter response: %w", err)
		}
		return nil
	}
	return ErrRateLimited
}
