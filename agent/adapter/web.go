package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
	"github.com/hyomin-dev/leadscout/pkg/tavily"
)

// searcher keeps Search mockable in tests without standing up Tavily.
type searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]tavily.Result, error)
}

// WebSearch answers free-text queries with title/url/snippet facts.
type WebSearch struct {
	client searcher
}

func NewWebSearch(client *tavily.Client) *WebSearch {
	return &WebSearch{client: client}
}

func (a *WebSearch) Name() string { return SourceWebSearch }

func (a *WebSearch) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, contractx.NewValidationError("query must not be empty")
	}
	maxResults, err := optionalIntArg(args, "max_results", 5)
	if err != nil {
		return nil, err
	}

	results, err := a.client.Search(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	facts := make([]contractx.ResearchFact, 0, len(results))
	for _, r := range results {
		facts = append(facts, contractx.ResearchFact{
			Source:  SourceWebSearch,
			Ref:     r.URL,
			Title:   r.Title,
			Snippet: truncate(r.Content, maxSnippetLen),
		})
	}
	return facts, nil
}

const (
	maxPageBytes  = 2 << 20
	maxSnippetLen = 4000
)

var (
	scriptPattern = regexp.MustCompile(`(?is)<(script|style|noscript)\b.*?</\w+>`)
	tagPattern    = regexp.MustCompile(`(?s)<[^>]*>`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// WebPage fetches one URL and returns its visible text, markup stripped.
type WebPage struct {
	httpClient *http.Client
}

func NewWebPage(timeout time.Duration) *WebPage {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebPage{httpClient: &http.Client{Timeout: timeout}}
}

func (a *WebPage) Name() string { return SourceWebPage }

func (a *WebPage) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	pageURL, err := stringArg(args, "url")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return nil, contractx.NewValidationError("url must start with http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, contractx.NewValidationError("invalid url: %v", err)
	}
	req.Header.Set("User-Agent", "leadscout/1.0")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page http status=%d", resp.StatusCode)
	}

	text := StripHTML(string(raw))
	if text == "" {
		return nil, nil
	}
	return []contractx.ResearchFact{{
		Source:  SourceWebPage,
		Ref:     pageURL,
		Snippet: truncate(text, maxSnippetLen),
	}}, nil
}

// StripHTML reduces a page to readable text: scripts and styles dropped,
// tags removed, whitespace collapsed.
func StripHTML(html string) string {
	text := scriptPattern.ReplaceAllString(html, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&#39;", "'", "&nbsp;", " ",
	).Replace(text)
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
