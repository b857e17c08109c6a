package resolve

import (
	"fmt"
	"strings"
	"sync"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

// Generic mailbox providers never identify a company domain.
var genericProviders = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"hotmail.com": {},
	"outlook.com": {},
	"live.com":    {},
	"aol.com":     {},
	"icloud.com":  {},
	"mail.com":    {},
}

// EmailPattern is the structural shape of a corporate mailbox local part.
type EmailPattern string

const (
	PatternFirstDotLast EmailPattern = "first.last"
	PatternFirstLast    EmailPattern = "firstlast"
	PatternFLast        EmailPattern = "flast"
	PatternFirstL       EmailPattern = "firstl"
	PatternFDotLast     EmailPattern = "f.last"
	PatternFirst        EmailPattern = "first"
	PatternLastDotFirst EmailPattern = "last.first"
)

// DetectPattern matches an email's local part against the owner's name.
func DetectPattern(email, fullName string) (EmailPattern, bool) {
	first, last, ok := splitName(fullName)
	if !ok {
		return "", false
	}
	local, _, found := strings.Cut(strings.ToLower(email), "@")
	if !found || local == "" {
		return "", false
	}

	candidates := []EmailPattern{
		PatternFirstDotLast, PatternFirstLast, PatternFLast,
		PatternFirstL, PatternFDotLast, PatternLastDotFirst, PatternFirst,
	}
	for _, p := range candidates {
		if p.localPart(first, last) == local {
			return p, true
		}
	}
	return "", false
}

// Apply renders the pattern for a person at a domain. Empty when the name
// cannot be split into first and last parts.
func (p EmailPattern) Apply(fullName, domain string) string {
	first, last, ok := splitName(fullName)
	if !ok || domain == "" {
		return ""
	}
	return p.localPart(first, last) + "@" + strings.ToLower(domain)
}

func (p EmailPattern) localPart(first, last string) string {
	switch p {
	case PatternFirstDotLast:
		return first + "." + last
	case PatternFirstLast:
		return first + last
	case PatternFLast:
		return first[:1] + last
	case PatternFirstL:
		return first + last[:1]
	case PatternFDotLast:
		return first[:1] + "." + last
	case PatternLastDotFirst:
		return last + "." + first
	case PatternFirst:
		return first
	default:
		return ""
	}
}

func splitName(fullName string) (first, last string, ok bool) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(fullName)))
	if len(parts) < 2 {
		return "", "", false
	}
	first = sanitizeNamePart(parts[0])
	last = sanitizeNamePart(parts[len(parts)-1])
	if first == "" || last == "" {
		return "", "", false
	}
	return first, last, true
}

func sanitizeNamePart(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PeerEmail is a verified mailbox of a colleague at the target's company.
type PeerEmail struct {
	FullName string
	Email    string
}

// InferenceInput is everything the cascade may consult for one target.
// KnownEmail, when set, is a directly supplied address and bypasses
// inference entirely.
type InferenceInput struct {
	FullName    string
	Company     string
	KnownEmail  string
	Peers       []PeerEmail
	DomainGuess string // company-name-derived fallback, may be empty
}

type Inference struct {
	Email      string
	Confidence contractx.ConfidenceLevel
	Pattern    EmailPattern
	Domain     string
}

// InferEmail derives a missing email from peer evidence. Deterministic:
// identical input facts always produce the identical inference.
//
//   - supplied email            → verified, untouched
//   - ≥2 peers share a pattern  → that pattern, high
//   - exactly 1 peer email      → its pattern, medium
//   - no peers, domain derivable → first.last guess, low
//   - no domain at all          → empty, unknown
func InferEmail(in InferenceInput) Inference {
	if email := strings.TrimSpace(in.KnownEmail); email != "" {
		return Inference{Email: email, Confidence: contractx.ConfidenceVerified}
	}

	domain := DerivePeerDomain(in.Peers)
	if domain == "" {
		domain = strings.ToLower(strings.TrimSpace(in.DomainGuess))
	}
	if domain == "" {
		return Inference{Confidence: contractx.ConfidenceUnknown}
	}

	pattern, votes := dominantPattern(in.Peers)
	switch {
	case votes >= 2:
		if email := pattern.Apply(in.FullName, domain); email != "" {
			return Inference{Email: email, Confidence: contractx.ConfidenceHigh, Pattern: pattern, Domain: domain}
		}
	case votes == 1:
		if email := pattern.Apply(in.FullName, domain); email != "" {
			return Inference{Email: email, Confidence: contractx.ConfidenceMedium, Pattern: pattern, Domain: domain}
		}
	}

	// No usable peer pattern: guess the most common corporate shape.
	if email := PatternFirstDotLast.Apply(in.FullName, domain); email != "" {
		return Inference{Email: email, Confidence: contractx.ConfidenceLow, Pattern: PatternFirstDotLast, Domain: domain}
	}
	return Inference{Confidence: contractx.ConfidenceUnknown, Domain: domain}
}

// DerivePeerDomain extracts the company mail domain from peer emails,
// ignoring generic providers.
func DerivePeerDomain(peers []PeerEmail) string {
	for _, peer := range peers {
		_, domain, found := strings.Cut(strings.ToLower(peer.Email), "@")
		if !found || domain == "" {
			continue
		}
		if _, generic := genericProviders[domain]; generic {
			continue
		}
		return domain
	}
	return ""
}

// dominantPattern counts structural patterns across peers and returns the
// winner with its vote count. Ties break on the fixed candidate order via
// lexical pattern name, keeping the result stable.
func dominantPattern(peers []PeerEmail) (EmailPattern, int) {
	counts := map[EmailPattern]int{}
	usable := 0
	for _, peer := range peers {
		if strings.TrimSpace(peer.Email) == "" {
			continue
		}
		usable++
		if p, ok := DetectPattern(peer.Email, peer.FullName); ok {
			counts[p]++
		}
	}
	if usable == 0 {
		return "", 0
	}

	var best EmailPattern
	bestVotes := 0
	for p, n := range counts {
		if n > bestVotes || (n == bestVotes && p < best) {
			best, bestVotes = p, n
		}
	}
	if bestVotes == 0 {
		// Peer emails exist but none matched a known shape; a single peer
		// still pins the domain, so treat it as one unpatterned vote.
		return PatternFirstDotLast, minInt(usable, 1)
	}
	return best, bestVotes
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// SourceCascade tracks the priority-ranked contact-finder order for one
// session. Three consecutive failures from the active source demote it for
// all remaining targets, not just the failing one. Safe for concurrent use;
// tool dispatch runs calls in parallel.
type SourceCascade struct {
	mu        sync.Mutex
	sources   []string
	active    int
	failures  int
	threshold int
}

func NewSourceCascade(sources ...string) (*SourceCascade, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: cascade needs at least one source", contractx.ErrValidation)
	}
	return &SourceCascade{sources: sources, threshold: 3}, nil
}

// Active returns the current source, or "" when every source is exhausted.
func (c *SourceCascade) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active >= len(c.sources) {
		return ""
	}
	return c.sources[c.active]
}

// Demoted reports whether a source sits before the active one, i.e. it
// already burned through its failure allowance this session.
func (c *SourceCascade) Demoted(source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.sources {
		if s == source {
			return i < c.active
		}
	}
	return false
}

// RecordSuccess resets the failure count when the named source is active.
func (c *SourceCascade) RecordSuccess(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active < len(c.sources) && c.sources[c.active] == source {
		c.failures = 0
	}
}

// RecordFailure counts a consecutive failure against the active source and
// reports whether the cascade just fell back to the next one. Failures from
// a non-active source do not count.
func (c *SourceCascade) RecordFailure(source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active >= len(c.sources) || c.sources[c.active] != source {
		return false
	}
	c.failures++
	if c.failures < c.threshold {
		return false
	}
	c.active++
	c.failures = 0
	return true
}

// Exhausted reports whether no source remains.
func (c *SourceCascade) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active >= len(c.sources)
}
