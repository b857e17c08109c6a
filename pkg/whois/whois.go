// Package whois performs plain port-43 WHOIS lookups and extracts
// registrant/admin contact emails. Free, no key, frequently privacy-redacted.
package whois

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"time"
)

const maxResponseSizeBytes = 256 << 10

type Config struct {
	Server  string        `split_words:"true" default:"whois.iana.org:43"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	server  string
	timeout time.Duration
	dial    func(ctx context.Context, addr string) (net.Conn, error)
}

func NewClient(cfg Config) *Client {
	server := strings.TrimSpace(cfg.Server)
	if server == "" {
		server = "whois.iana.org:43"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		server:  server,
		timeout: timeout,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	referPattern = regexp.MustCompile(`(?im)^\s*(?:refer|whois server):\s*(\S+)`)

	skipPrefixes = []string{
		"abuse@", "noreply@", "no-reply@", "hostmaster@",
		"domaincontrol@", "dnsadmin@", "postmaster@",
	}
	privacyMarkers = []string{
		"whoisguard", "privacyguard", "proxy", "redacted", "withheld",
		"contactprivacy", "whoisprivacy", "domainprivacy", "identityprotect",
		"privacy-protect", "domainsbyproxy", "whoisprotection",
	}
)

type Record struct {
	Domain           string   `json:"domain"`
	Emails           []string `json:"emails"`
	PrivacyProtected bool     `json:"privacy_protected"`
	Raw              string   `json:"-"`
}

// Lookup queries the IANA root, follows one referral if present, and
// extracts usable contact emails. Generic role addresses and privacy
// service addresses are dropped.
func (c *Client) Lookup(ctx context.Context, domain string) (*Record, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, errors.New("domain is required")
	}

	raw, err := c.query(ctx, c.server, domain)
	if err != nil {
		return nil, err
	}
	if m := referPattern.FindStringSubmatch(raw); m != nil {
		referral := strings.TrimSpace(m[1])
		if !strings.Contains(referral, ":") {
			referral += ":43"
		}
		if followed, err := c.query(ctx, referral, domain); err == nil {
			raw = followed
		}
	}

	rec := &Record{Domain: domain, Raw: raw}
	seen := map[string]struct{}{}
	for _, email := range emailPattern.FindAllString(raw, -1) {
		lower := strings.ToLower(email)
		if hasAnyPrefix(lower, skipPrefixes) {
			continue
		}
		if containsAny(lower, privacyMarkers) {
			rec.PrivacyProtected = true
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		rec.Emails = append(rec.Emails, lower)
	}
	if containsAny(strings.ToLower(raw), privacyMarkers) {
		rec.PrivacyProtected = true
	}
	return rec, nil
}

func (c *Client) query(ctx context.Context, server, domain string) (string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(dialCtx, server)
	if err != nil {
		return "", fmt.Errorf("whois dial %s: %w", server, err)
	}
	defer conn.Close()

	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := fmt.Fprintf(conn, "%s\r\n", domain); err != nil {
		return "", fmt.Errorf("whois query %s: %w", server, err)
	}
	raw, err := io.ReadAll(io.LimitReader(conn, maxResponseSizeBytes))
	if err != nil {
		return "", fmt.Errorf("whois read %s: %w", server, err)
	}
	return string(raw), nil
}

var corpSuffixPattern = regexp.MustCompile(
	`\b(inc|corp|co|ltd|llc|gmbh|ag|sa|srl|pty|pharmaceuticals?|pharma|kabushiki kaisha|kk)\b`)

var nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]`)

// knownDomains overrides the name-derived guess for companies whose primary
// domain does not follow the name+.com convention.
var knownDomains = map[string]string{
	"merck":                 "merck.com",
	"johnson & johnson":     "jnj.com",
	"eli lilly":             "lilly.com",
	"eli lilly and company": "lilly.com",
	"bristol myers squibb":  "bms.com",
	"glaxosmithkline":       "gsk.com",
	"gsk":                   "gsk.com",
	"astrazeneca":           "astrazeneca.com",
	"boehringer ingelheim":  "boehringer-ingelheim.com",
	"takeda":                "takeda.com",
	"novo nordisk":          "novonordisk.com",
}

// GuessDomain derives a best-effort domain from a company name: known
// companies first, then strip corporate suffixes and append .com. The
// result is a guess and needs verification before use.
func GuessDomain(companyName string) string {
	lowered := strings.ToLower(strings.TrimSpace(companyName))
	if domain, ok := knownDomains[lowered]; ok {
		return domain
	}
	clean := corpSuffixPattern.ReplaceAllString(lowered, "")
	if domain, ok := knownDomains[strings.TrimSpace(clean)]; ok {
		return domain
	}
	clean = nonAlnumPattern.ReplaceAllString(clean, "")
	if clean == "" {
		return ""
	}
	return clean + ".com"
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
