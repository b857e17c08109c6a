// Package findymail is a Findymail API client: find verified emails by
// name+domain or LinkedIn URL. Auth is a bearer token; a credit is charged
// only when an email is found.
package findymail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const maxResponseSizeBytes = 1 << 20

var ErrUnavailable = errors.New("findymail unavailable after retries")

type Config struct {
	BaseURL    string        `split_words:"true" default:"https://app.findymail.com/api"`
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
		return nil, errors.New("findymail base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid findymail base url: %w", err)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("findymail api key is required")
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

type Contact struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	JobTitle string `json:"job_title"`
	Domain   string `json:"domain"`
}

// FindByName finds a person's verified email from full name + company
// domain. An empty Email means "not found", not an error.
func (c *Client) FindByName(ctx context.Context, name, domain string) (*Contact, error) {
	if name == "" || domain == "" {
		return nil, errors.New("name and domain are required")
	}
	return c.search(ctx, "/search/name", map[string]string{
		"name":   name,
		"domain": domain,
	})
}

// FindByLinkedin finds a work email from a LinkedIn profile URL.
func (c *Client) FindByLinkedin(ctx context.Context, linkedinURL string) (*Contact, error) {
	if linkedinURL == "" {
		return nil, errors.New("linkedin_url is required")
	}
	return c.search(ctx, "/search/linkedin", map[string]string{
		"linkedin_url": linkedinURL,
	})
}

// Verify checks an email address. Status is valid | invalid | unknown.
func (c *Client) Verify(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", errors.New("email is required")
	}
	raw, err := c.post(ctx, "/verify", map[string]string{"email": email})
	if err != nil {
		return "", err
	}
	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode findymail verify response: %w", err)
	}
	if parsed.Status == "" {
		return "unknown", nil
	}
	return parsed.Status, nil
}

// Credits returns the remaining finder credits.
func (c *Client) Credits(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/credits", nil)
	if err != nil {
		return 0, fmt.Errorf("build findymail request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute findymail request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return 0, fmt.Errorf("read findymail response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("findymail http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Credits int64 `json:"credits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("decode findymail credits: %w", err)
	}
	return parsed.Credits, nil
}

func (c *Client) search(ctx context.Context, path string, body map[string]string) (*Contact, error) {
	raw, err := c.post(ctx, path, body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Contact *Contact `json:"contact"`
		Email   string   `json:"email"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode findymail response: %w", err)
	}
	if parsed.Contact != nil {
		return parsed.Contact, nil
	}
	return &Contact{Email: parsed.Email}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (c *Client) post(ctx context.Context, path string, body map[string]string) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal findymail request: %w", err)
	}

	backoff := time.Second
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build findymail request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt == c.maxRetries-1 {
				return nil, fmt.Errorf("execute findymail request: %w", err)
			}
			log.Warn().Err(err).Str("path", path).Msg("findymail retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read findymail response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			log.Warn().Str("path", path).Dur("backoff", backoff).Msg("findymail rate limited")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return nil, fmt.Errorf("findymail http status=%d body=%s", resp.StatusCode, string(raw))
		}
		return raw, nil
	}
	return nil, ErrUnavailable
}
