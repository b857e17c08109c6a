package contract

import (
	"strings"
	"time"
)

type AgentType string

const (
	AgentTypeLister  AgentType = "lister"
	AgentTypeFinder  AgentType = "finder"
	AgentTypeDrafter AgentType = "drafter"
)

type SessionStatus string

const (
	StatusRunning SessionStatus = "running"
	StatusSuccess SessionStatus = "success"
	StatusPartial SessionStatus = "partial"
	StatusAborted SessionStatus = "aborted"
	StatusFailed  SessionStatus = "failed"
)

func (s SessionStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusPartial || s == StatusAborted || s == StatusFailed
}

// ConfidenceLevel is the categorical trust rating attached to an email.
type ConfidenceLevel string

const (
	ConfidenceVerified ConfidenceLevel = "verified"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceMedium   ConfidenceLevel = "medium"
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceUnknown  ConfidenceLevel = "unknown"
)

var confidenceRank = map[ConfidenceLevel]int{
	ConfidenceVerified: 4,
	ConfidenceHigh:     3,
	ConfidenceMedium:   2,
	ConfidenceLow:      1,
	ConfidenceUnknown:  0,
}

func (c ConfidenceLevel) Rank() int {
	return confidenceRank[c]
}

type Contact struct {
	ContactName     string          `json:"contact_name"`
	Email           string          `json:"email,omitempty"`
	EmailConfidence ConfidenceLevel `json:"email_confidence"`
	Company         string          `json:"company"`
	Title           string          `json:"title,omitempty"`
	LinkedinURL     string          `json:"linkedin_url,omitempty"`
	Location        string          `json:"location,omitempty"`
	Source          string          `json:"source,omitempty"`
	FitScore        float64         `json:"fit_score"`
	FitReason       string          `json:"fit_reason,omitempty"`
}

// DedupKey identifies duplicate contact records across sources:
// (normalized email, normalized company) when an email is present,
// (normalized name, normalized company) otherwise.
func (c Contact) DedupKey() string {
	company := NormalizeKey(c.Company)
	if email := NormalizeKey(c.Email); email != "" {
		return "email:" + email + "|" + company
	}
	return "name:" + NormalizeKey(c.ContactName) + "|" + company
}

func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ResearchFact is one normalized unit of evidence produced by a source
// adapter. Never mutated after creation.
type ResearchFact struct {
	Source  string            `json:"source"`
	Ref     string            `json:"ref,omitempty"` // url or registry identifier
	Title   string            `json:"title,omitempty"`
	Snippet string            `json:"snippet,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type ToolRequest struct {
	CallID string         `json:"call_id,omitempty"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	CallID   string        `json:"call_id,omitempty"`
	Tool     string        `json:"tool"`
	Content  string        `json:"content,omitempty"`
	Err      *ToolError    `json:"error,omitempty"`
	At       time.Time     `json:"at,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

func (r ToolResult) Failed() bool {
	return r.Err != nil
}

// RequestContext is read-only context injected into a session's initial
// turn. Shared feedback history is passed here, never read from globals.
type RequestContext struct {
	Product      string   `json:"product,omitempty"`
	Feedback     string   `json:"feedback,omitempty"`
	TargetTitles []string `json:"target_titles,omitempty"`
	Industries   []string `json:"industries,omitempty"`
	Regions      []string `json:"regions,omitempty"`
	Companies    []string `json:"companies,omitempty"` // companies the contact stage must cover
}

type SessionResult struct {
	SessionID      string        `json:"session_id"`
	Status         SessionStatus `json:"status"`
	Artifact       Artifact      `json:"artifact"`
	IterationsUsed int           `json:"iterations_used"`
	Exhausted      bool          `json:"exhausted,omitempty"` // loop bound hit before a terminal response
}

// Artifact is the structured output of one session: a ranked contact list
// and/or the model's final text.
type Artifact struct {
	Contacts []Contact `json:"contacts,omitempty"`
	Text     string    `json:"text,omitempty"`
}
