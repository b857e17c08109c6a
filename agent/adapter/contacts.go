package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
	"github.com/hyomin-dev/leadscout/agent/resolve"
	"github.com/hyomin-dev/leadscout/pkg/budget"
	"github.com/hyomin-dev/leadscout/pkg/findymail"
	"github.com/hyomin-dev/leadscout/pkg/hunter"
	"github.com/hyomin-dev/leadscout/pkg/whois"
)

type hunterAPI interface {
	SearchDomain(ctx context.Context, p hunter.DomainSearchParams) (*hunter.DomainSearchResult, error)
	FindEmail(ctx context.Context, domain, firstName, lastName string) (*hunter.FindResult, error)
	VerifyEmail(ctx context.Context, email string) (*hunter.VerifyResult, error)
}

// HunterDomainSearch lists people at a company domain. Placeholder entries
// and back-office departments are filtered before the model sees them.
type HunterDomainSearch struct {
	client hunterAPI
	ledger *budget.Ledger
}

func NewHunterDomainSearch(client *hunter.Client, ledger *budget.Ledger) *HunterDomainSearch {
	return &HunterDomainSearch{client: client, ledger: ledger}
}

func (a *HunterDomainSearch) Name() string { return SourceHunter + "_domain_search" }

func (a *HunterDomainSearch) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	domain, err := stringArg(args, "domain")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(domain) == "" {
		return nil, contractx.NewValidationError("domain must not be empty")
	}
	limit, err := optionalIntArg(args, "limit", 10)
	if err != nil {
		return nil, err
	}
	department, err := optionalStringArg(args, "department")
	if err != nil {
		return nil, err
	}
	seniority, err := optionalStringArg(args, "seniority")
	if err != nil {
		return nil, err
	}

	if err := spend(a.ledger, SourceHunter, 1); err != nil {
		return nil, err
	}

	result, err := a.client.SearchDomain(ctx, hunter.DomainSearchParams{
		Domain:     domain,
		Limit:      limit,
		Department: department,
		Seniority:  seniority,
	})
	if err != nil {
		return nil, fmt.Errorf("hunter domain search: %w", err)
	}

	facts := make([]contractx.ResearchFact, 0, len(result.Emails))
	for _, rec := range result.Emails {
		name := rec.FullName()
		if resolve.IsJunkName(name) {
			continue
		}
		if resolve.IsExcludedDepartment(rec.Department) || resolve.IsExcludedDepartment(rec.Position) {
			continue
		}
		fields := map[string]string{
			"name":       name,
			"email":      rec.Value,
			"confidence": string(resolve.ScoreToConfidence(rec.Confidence)),
			"domain":     result.Domain,
		}
		if rec.Position != "" {
			fields["title"] = rec.Position
		}
		if rec.Department != "" {
			fields["department"] = rec.Department
		}
		if rec.Linkedin != "" {
			fields["linkedin_url"] = rec.Linkedin
		}
		facts = append(facts, contractx.ResearchFact{
			Source: SourceHunter,
			Ref:    rec.Value,
			Title:  name,
			Fields: fields,
		})
	}
	if pattern := result.Pattern; pattern != "" && len(facts) > 0 {
		facts[0].Fields["email_pattern"] = pattern
	}
	return facts, nil
}

// HunterFindEmail looks up one named person's email at a domain.
type HunterFindEmail struct {
	client hunterAPI
	ledger *budget.Ledger
}

func NewHunterFindEmail(client *hunter.Client, ledger *budget.Ledger) *HunterFindEmail {
	return &HunterFindEmail{client: client, ledger: ledger}
}

func (a *HunterFindEmail) Name() string { return SourceHunter + "_find_email" }

func (a *HunterFindEmail) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	domain, err := stringArg(args, "domain")
	if err != nil {
		return nil, err
	}
	firstName, err := stringArg(args, "first_name")
	if err != nil {
		return nil, err
	}
	lastName, err := stringArg(args, "last_name")
	if err != nil {
		return nil, err
	}
	if domain == "" || firstName == "" || lastName == "" {
		return nil, contractx.NewValidationError("domain, first_name and last_name must not be empty")
	}

	if err := spend(a.ledger, SourceHunter, 1); err != nil {
		return nil, err
	}

	found, err := a.client.FindEmail(ctx, domain, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("hunter email finder: %w", err)
	}
	if found.Email == "" {
		// Not found costs nothing on the provider side.
		if a.ledger != nil {
			a.ledger.Refund(SourceHunter, 1)
		}
		return nil, nil
	}

	fields := map[string]string{
		"name":       strings.TrimSpace(firstName + " " + lastName),
		"email":      found.Email,
		"confidence": string(resolve.ScoreToConfidence(found.Score)),
		"score":      strconv.Itoa(found.Score),
		"domain":     found.Domain,
	}
	if found.Position != "" {
		fields["title"] = found.Position
	}
	return []contractx.ResearchFact{{
		Source: SourceHunter,
		Ref:    found.Email,
		Title:  fields["name"],
		Fields: fields,
	}}, nil
}

// HunterVerify checks deliverability of one address.
type HunterVerify struct {
	client hunterAPI
	ledger *budget.Ledger
}

func NewHunterVerify(client *hunter.Client, ledger *budget.Ledger) *HunterVerify {
	return &HunterVerify{client: client, ledger: ledger}
}

func (a *HunterVerify) Name() string { return SourceHunter + "_verify" }

func (a *HunterVerify) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	email, err := stringArg(args, "email")
	if err != nil {
		return nil, err
	}
	if !strings.Contains(email, "@") {
		return nil, contractx.NewValidationError("email %q is not an address", email)
	}

	if err := spend(a.ledger, SourceHunter, 1); err != nil {
		return nil, err
	}

	verified, err := a.client.VerifyEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("hunter verify: %w", err)
	}

	confidence := resolve.ScoreToConfidence(verified.Score)
	if verified.Status == "undeliverable" {
		confidence = contractx.ConfidenceUnknown
	}
	return []contractx.ResearchFact{{
		Source: SourceHunter,
		Ref:    verified.Email,
		Fields: map[string]string{
			"email":      verified.Email,
			"status":     verified.Status,
			"score":      strconv.Itoa(verified.Score),
			"confidence": string(confidence),
		},
	}}, nil
}

type findymailAPI interface {
	FindByName(ctx context.Context, name, domain string) (*findymail.Contact, error)
	FindByLinkedin(ctx context.Context, linkedinURL string) (*findymail.Contact, error)
}

// FindymailFinder resolves a verified email from name+domain or a LinkedIn
// profile URL, whichever the caller supplies.
type FindymailFinder struct {
	client findymailAPI
	ledger *budget.Ledger
}

func NewFindymailFinder(client *findymail.Client, ledger *budget.Ledger) *FindymailFinder {
	return &FindymailFinder{client: client, ledger: ledger}
}

func (a *FindymailFinder) Name() string { return SourceFindymail + "_find_email" }

func (a *FindymailFinder) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	linkedinURL, err := optionalStringArg(args, "linkedin_url")
	if err != nil {
		return nil, err
	}
	name, err := optionalStringArg(args, "name")
	if err != nil {
		return nil, err
	}
	domain, err := optionalStringArg(args, "domain")
	if err != nil {
		return nil, err
	}
	if linkedinURL == "" && (name == "" || domain == "") {
		return nil, contractx.NewValidationError("either linkedin_url or name+domain is required")
	}

	if err := spend(a.ledger, SourceFindymail, 1); err != nil {
		return nil, err
	}

	var contact *findymail.Contact
	if linkedinURL != "" {
		contact, err = a.client.FindByLinkedin(ctx, linkedinURL)
	} else {
		contact, err = a.client.FindByName(ctx, name, domain)
	}
	if err != nil {
		return nil, fmt.Errorf("findymail: %w", err)
	}
	if contact.Email == "" {
		// Findymail only charges when an email is found.
		if a.ledger != nil {
			a.ledger.Refund(SourceFindymail, 1)
		}
		return nil, nil
	}

	if contact.Name == "" {
		contact.Name = name
	}
	fields := map[string]string{
		"name":       contact.Name,
		"email":      contact.Email,
		"confidence": string(contractx.ConfidenceVerified),
	}
	if contact.JobTitle != "" {
		fields["title"] = contact.JobTitle
	}
	if contact.Domain != "" {
		fields["domain"] = contact.Domain
	}
	if linkedinURL != "" {
		fields["linkedin_url"] = linkedinURL
	}
	return []contractx.ResearchFact{{
		Source: SourceFindymail,
		Ref:    contact.Email,
		Title:  contact.Name,
		Fields: fields,
	}}, nil
}

type whoisAPI interface {
	Lookup(ctx context.Context, domain string) (*whois.Record, error)
}

// WhoisLookup extracts registrant contact emails for a domain. Free and
// keyless, so it sits last in the cascade as the fallback of last resort.
type WhoisLookup struct {
	client whoisAPI
}

func NewWhoisLookup(client *whois.Client) *WhoisLookup {
	return &WhoisLookup{client: client}
}

func (a *WhoisLookup) Name() string { return SourceWhois + "_lookup" }

func (a *WhoisLookup) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	domain, err := stringArg(args, "domain")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(domain) == "" {
		return nil, contractx.NewValidationError("domain must not be empty")
	}

	rec, err := a.client.Lookup(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("whois lookup: %w", err)
	}

	facts := make([]contractx.ResearchFact, 0, len(rec.Emails))
	for _, email := range rec.Emails {
		facts = append(facts, contractx.ResearchFact{
			Source: SourceWhois,
			Ref:    email,
			Fields: map[string]string{
				"email":      email,
				"domain":     rec.Domain,
				"confidence": string(contractx.ConfidenceLow),
			},
		})
	}
	if len(facts) == 0 && rec.PrivacyProtected {
		return []contractx.ResearchFact{{
			Source:  SourceWhois,
			Ref:     rec.Domain,
			Snippet: "registration is privacy-protected, no contact emails published",
			Fields:  map[string]string{"privacy_protected": "true"},
		}}, nil
	}
	return facts, nil
}
