package adapter

import (
	"context"
	"strconv"
	"strings"
	"sync"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

// SourceProspects labels facts served from the pipeline's own ranked
// contact list rather than an external service.
const SourceProspects = "prospects"

// ProspectLoader serves the ranked contacts produced by the earlier stages
// so the drafter can personalize per recipient.
type ProspectLoader struct {
	contacts []contractx.Contact
}

func NewProspectLoader(contacts []contractx.Contact) *ProspectLoader {
	return &ProspectLoader{contacts: contacts}
}

func (a *ProspectLoader) Name() string { return "load_prospects" }

func (a *ProspectLoader) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	limit, err := optionalIntArg(args, "limit", len(a.contacts))
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(a.contacts) {
		limit = len(a.contacts)
	}

	facts := make([]contractx.ResearchFact, 0, limit)
	for _, c := range a.contacts[:limit] {
		fields := map[string]string{
			"name":             c.ContactName,
			"company":          c.Company,
			"email_confidence": string(c.EmailConfidence),
			"fit_score":        strconv.FormatFloat(c.FitScore, 'f', 1, 64),
		}
		if c.Email != "" {
			fields["email"] = c.Email
		}
		if c.Title != "" {
			fields["title"] = c.Title
		}
		if c.LinkedinURL != "" {
			fields["linkedin_url"] = c.LinkedinURL
		}
		if c.Location != "" {
			fields["location"] = c.Location
		}
		facts = append(facts, contractx.ResearchFact{
			Source:  SourceProspects,
			Ref:     c.Email,
			Title:   c.ContactName,
			Snippet: c.FitReason,
			Fields:  fields,
		})
	}
	return facts, nil
}

// Draft is one saved outreach message, keyed by recipient.
type Draft struct {
	ContactName string
	Email       string
	Subject     string
	Body        string
}

// DraftBook accumulates drafts across one drafter session. Saving again for
// the same recipient replaces the earlier draft.
type DraftBook struct {
	mu     sync.Mutex
	drafts []Draft
}

func NewDraftBook() *DraftBook {
	return &DraftBook{}
}

func (b *DraftBook) put(d Draft) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := contractx.NormalizeKey(d.ContactName)
	for i, existing := range b.drafts {
		if contractx.NormalizeKey(existing.ContactName) == key {
			b.drafts[i] = d
			return len(b.drafts)
		}
	}
	b.drafts = append(b.drafts, d)
	return len(b.drafts)
}

func (b *DraftBook) Drafts() []Draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Draft, len(b.drafts))
	copy(out, b.drafts)
	return out
}

// Render flattens the book into readable plain text, one draft per block.
func (b *DraftBook) Render() string {
	var sb strings.Builder
	for i, d := range b.Drafts() {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		sb.WriteString("To: " + d.ContactName)
		if d.Email != "" {
			sb.WriteString(" <" + d.Email + ">")
		}
		sb.WriteString("\nSubject: " + d.Subject + "\n\n" + d.Body + "\n")
	}
	return sb.String()
}

// SaveDraft records one outreach message in the session's draft book.
type SaveDraft struct {
	book *DraftBook
}

func NewSaveDraft(book *DraftBook) *SaveDraft {
	return &SaveDraft{book: book}
}

func (a *SaveDraft) Name() string { return "save_draft" }

func (a *SaveDraft) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	name, err := stringArg(args, "contact_name")
	if err != nil {
		return nil, err
	}
	subject, err := stringArg(args, "subject")
	if err != nil {
		return nil, err
	}
	body, err := stringArg(args, "body")
	if err != nil {
		return nil, err
	}
	email, err := optionalStringArg(args, "email")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
		return nil, contractx.NewValidationError("contact_name, subject and body must not be empty")
	}

	total := a.book.put(Draft{ContactName: name, Email: email, Subject: subject, Body: body})
	return []contractx.ResearchFact{{
		Source: SourceProspects,
		Ref:    email,
		Title:  name,
		Fields: map[string]string{
			"saved":        "true",
			"drafts_total": strconv.Itoa(total),
		},
	}}, nil
}

// FinalizeCampaign closes out the drafting pass and reports what was
// written. It refuses to finalize an empty book so the model keeps working.
type FinalizeCampaign struct {
	book *DraftBook
}

func NewFinalizeCampaign(book *DraftBook) *FinalizeCampaign {
	return &FinalizeCampaign{book: book}
}

func (a *FinalizeCampaign) Name() string { return "finalize_campaign" }

func (a *FinalizeCampaign) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	campaign, err := optionalStringArg(args, "campaign_name")
	if err != nil {
		return nil, err
	}

	drafts := a.book.Drafts()
	if len(drafts) == 0 {
		return nil, contractx.NewValidationError("no drafts saved yet, save at least one before finalizing")
	}

	subjects := make([]string, 0, len(drafts))
	for _, d := range drafts {
		subjects = append(subjects, d.ContactName+": "+d.Subject)
	}
	fields := map[string]string{
		"drafts": strconv.Itoa(len(drafts)),
	}
	if campaign != "" {
		fields["campaign_name"] = campaign
	}
	return []contractx.ResearchFact{{
		Source:  SourceProspects,
		Snippet: strings.Join(subjects, "\n"),
		Fields:  fields,
	}}, nil
}
