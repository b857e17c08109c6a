package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
	"github.com/hyomin-dev/leadscout/pkg/budget"
	"github.com/hyomin-dev/leadscout/pkg/findymail"
	"github.com/hyomin-dev/leadscout/pkg/hunter"
	"github.com/hyomin-dev/leadscout/pkg/tavily"
	"github.com/hyomin-dev/leadscout/pkg/whois"
)

type fakeSearcher struct {
	results []tavily.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]tavily.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func TestWebSearchMapsResultsToFacts(t *testing.T) {
	fake := &fakeSearcher{results: []tavily.Result{
		{Title: "Acme opens new lab", URL: "https://example.com/a", Content: "Acme Pharma announced..."},
	}}
	a := &WebSearch{client: fake}

	facts, err := a.Execute(context.Background(), map[string]any{"query": "Acme Pharma news"})
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 1 {
		t.Fatalf("got %d facts, want 1", len(facts))
	}
	f := facts[0]
	if f.Source != SourceWebSearch || f.Ref != "https://example.com/a" || f.Title != "Acme opens new lab" {
		t.Errorf("fact mapped wrong: %+v", f)
	}
}

func TestWebSearchRejectsMissingQuery(t *testing.T) {
	a := &WebSearch{client: &fakeSearcher{}}
	_, err := a.Execute(context.Background(), map[string]any{})
	var te *contractx.ToolError
	if !errors.As(err, &te) || te.Kind != contractx.ErrKindValidation {
		t.Fatalf("want validation ToolError, got %v", err)
	}
	if len(a.client.(*fakeSearcher).queries) != 0 {
		t.Error("client must not be called on invalid args")
	}
}

func TestWebSearchRejectsNonStringArg(t *testing.T) {
	a := &WebSearch{client: &fakeSearcher{}}
	_, err := a.Execute(context.Background(), map[string]any{"query": 42})
	var te *contractx.ToolError
	if !errors.As(err, &te) || te.Kind != contractx.ErrKindValidation {
		t.Fatalf("want validation ToolError, got %v", err)
	}
}

func TestStripHTML(t *testing.T) {
	html := `<html><head><style>body{color:red}</style><script>alert(1)</script></head>
<body><h1>Acme &amp; Co</h1><p>Contact   us</p></body></html>`
	got := StripHTML(html)
	if got != "Acme & Co Contact us" {
		t.Errorf("StripHTML = %q", got)
	}
}

type fakeHunter struct {
	domainResult *hunter.DomainSearchResult
	findResult   *hunter.FindResult
	verifyResult *hunter.VerifyResult
	err          error
	calls        int
}

func (f *fakeHunter) SearchDomain(context.Context, hunter.DomainSearchParams) (*hunter.DomainSearchResult, error) {
	f.calls++
	return f.domainResult, f.err
}

func (f *fakeHunter) FindEmail(context.Context, string, string, string) (*hunter.FindResult, error) {
	f.calls++
	return f.findResult, f.err
}

func (f *fakeHunter) VerifyEmail(context.Context, string) (*hunter.VerifyResult, error) {
	f.calls++
	return f.verifyResult, f.err
}

func TestHunterDomainSearchFiltersJunkAndBackOffice(t *testing.T) {
	fake := &fakeHunter{domainResult: &hunter.DomainSearchResult{
		Domain:  "acme.com",
		Pattern: "{first}.{last}",
		Emails: []hunter.EmailRecord{
			{Value: "jane.doe@acme.com", FirstName: "Jane", LastName: "Doe", Position: "VP of BD", Confidence: 95},
			{Value: "pending@acme.com", FirstName: "[Processing]", Confidence: 80},
			{Value: "cfo@acme.com", FirstName: "Carl", LastName: "Moneybags", Department: "finance", Confidence: 99},
		},
	}}
	a := &HunterDomainSearch{client: fake}

	facts, err := a.Execute(context.Background(), map[string]any{"domain": "acme.com"})
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 1 {
		t.Fatalf("got %d facts, want 1 (junk and finance filtered)", len(facts))
	}
	f := facts[0]
	if f.Fields["email"] != "jane.doe@acme.com" {
		t.Errorf("email = %q", f.Fields["email"])
	}
	if f.Fields["confidence"] != string(contractx.ConfidenceVerified) {
		t.Errorf("confidence = %q, want verified for score 95", f.Fields["confidence"])
	}
	if f.Fields["email_pattern"] != "{first}.{last}" {
		t.Errorf("email_pattern = %q", f.Fields["email_pattern"])
	}
}

func TestHunterDomainSearchBudgetExhausted(t *testing.T) {
	fake := &fakeHunter{}
	ledger := budget.NewLedger(map[string]int64{SourceHunter: 0})
	a := &HunterDomainSearch{client: fake, ledger: ledger}

	_, err := a.Execute(context.Background(), map[string]any{"domain": "acme.com"})
	var te *contractx.ToolError
	if !errors.As(err, &te) || te.Kind != contractx.ErrKindTransient || te.Retryable {
		t.Fatalf("want non-retryable transient error, got %v", err)
	}
	if fake.calls != 0 {
		t.Error("exhausted budget must short-circuit before the API call")
	}
}

func TestHunterFindEmailRefundsWhenNotFound(t *testing.T) {
	fake := &fakeHunter{findResult: &hunter.FindResult{}}
	ledger := budget.NewLedger(map[string]int64{SourceHunter: 5})
	a := &HunterFindEmail{client: fake, ledger: ledger}

	facts, err := a.Execute(context.Background(), map[string]any{
		"domain": "acme.com", "first_name": "Jane", "last_name": "Doe",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 0 {
		t.Fatalf("not found should yield zero facts, got %d", len(facts))
	}
	if spent := ledger.Spent(SourceHunter); spent != 0 {
		t.Errorf("spent = %d, want 0 after refund", spent)
	}
}

func TestHunterVerifyUndeliverableDowngradesConfidence(t *testing.T) {
	fake := &fakeHunter{verifyResult: &hunter.VerifyResult{
		Email: "gone@acme.com", Status: "undeliverable", Score: 95,
	}}
	a := &HunterVerify{client: fake}

	facts, err := a.Execute(context.Background(), map[string]any{"email": "gone@acme.com"})
	if err != nil {
		t.Fatal(err)
	}
	if facts[0].Fields["confidence"] != string(contractx.ConfidenceUnknown) {
		t.Errorf("confidence = %q, want unknown for undeliverable", facts[0].Fields["confidence"])
	}
}

type fakeFindymail struct {
	contact *findymail.Contact
	err     error
}

func (f *fakeFindymail) FindByName(context.Context, string, string) (*findymail.Contact, error) {
	return f.contact, f.err
}

func (f *fakeFindymail) FindByLinkedin(context.Context, string) (*findymail.Contact, error) {
	return f.contact, f.err
}

func TestFindymailFinderRequiresIdentity(t *testing.T) {
	a := &FindymailFinder{client: &fakeFindymail{}}
	_, err := a.Execute(context.Background(), map[string]any{"name": "Jane Doe"})
	var te *contractx.ToolError
	if !errors.As(err, &te) || te.Kind != contractx.ErrKindValidation {
		t.Fatalf("name without domain must fail validation, got %v", err)
	}
}

func TestFindymailFinderFoundIsVerified(t *testing.T) {
	a := &FindymailFinder{client: &fakeFindymail{contact: &findymail.Contact{
		Email: "jane.doe@acme.com", Name: "Jane Doe", JobTitle: "VP of BD",
	}}}
	facts, err := a.Execute(context.Background(), map[string]any{
		"name": "Jane Doe", "domain": "acme.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if facts[0].Fields["confidence"] != string(contractx.ConfidenceVerified) {
		t.Errorf("findymail hits are provider-verified, got %q", facts[0].Fields["confidence"])
	}
}

type fakeWhois struct {
	record *whois.Record
	err    error
}

func (f *fakeWhois) Lookup(context.Context, string) (*whois.Record, error) {
	return f.record, f.err
}

func TestWhoisLookupPrivacyProtected(t *testing.T) {
	a := &WhoisLookup{client: &fakeWhois{record: &whois.Record{
		Domain: "acme.com", PrivacyProtected: true,
	}}}
	facts, err := a.Execute(context.Background(), map[string]any{"domain": "acme.com"})
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 1 || facts[0].Fields["privacy_protected"] != "true" {
		t.Fatalf("privacy-protected domains should report one marker fact, got %+v", facts)
	}
	if !strings.Contains(facts[0].Snippet, "privacy") {
		t.Errorf("snippet should explain the redaction, got %q", facts[0].Snippet)
	}
}
