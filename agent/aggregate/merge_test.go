package aggregate

import (
	"bytes"
	"strings"
	"testing"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
	"github.com/hyomin-dev/leadscout/agent/resolve"
)

func TestMergeDedupByEmail(t *testing.T) {
	contacts := []contractx.Contact{
		{ContactName: "Jane Doe", Email: "jane.doe@acme.com", EmailConfidence: contractx.ConfidenceMedium, Company: "Acme", Source: "hunter"},
		{ContactName: "Jane Doe", Email: "Jane.Doe@ACME.com", EmailConfidence: contractx.ConfidenceVerified, Company: "acme", Title: "VP of BD", Source: "findymail"},
	}
	merged := Merge(contacts)
	if len(merged) != 1 {
		t.Fatalf("got %d contacts, want 1", len(merged))
	}
	c := merged[0]
	if c.EmailConfidence != contractx.ConfidenceVerified {
		t.Errorf("confidence = %s, want verified (highest wins)", c.EmailConfidence)
	}
	if c.Title != "VP of BD" {
		t.Errorf("missing fields must fill from duplicates, title = %q", c.Title)
	}
	if !strings.Contains(c.Source, "hunter") || !strings.Contains(c.Source, "findymail") {
		t.Errorf("sources should union, got %q", c.Source)
	}
}

func TestMergeNameKeyedRecordGainsEmail(t *testing.T) {
	contacts := []contractx.Contact{
		{ContactName: "Jane Doe", Company: "Acme", Title: "VP of BD"},
		{ContactName: "jane doe", Email: "jane.doe@acme.com", EmailConfidence: contractx.ConfidenceHigh, Company: "Acme"},
	}
	merged := Merge(contacts)
	if len(merged) != 1 {
		t.Fatalf("got %d contacts, want 1 (name-keyed then email-keyed)", len(merged))
	}
	if merged[0].Email != "jane.doe@acme.com" || merged[0].Title != "VP of BD" {
		t.Errorf("merge lost fields: %+v", merged[0])
	}
}

func TestMergeKeepsDifferentEmailsForSameName(t *testing.T) {
	contacts := []contractx.Contact{
		{ContactName: "Jane Doe", Email: "jane.doe@acme.com", EmailConfidence: contractx.ConfidenceVerified, Company: "Acme"},
		{ContactName: "Jane Doe", Email: "jdoe@acme-labs.com", EmailConfidence: contractx.ConfidenceVerified, Company: "Acme"},
	}
	merged := Merge(contacts)
	if len(merged) != 2 {
		t.Fatalf("got %d contacts, want 2 (different emails are different records)", len(merged))
	}
	emails := map[string]bool{merged[0].Email: true, merged[1].Email: true}
	if !emails["jane.doe@acme.com"] || !emails["jdoe@acme-labs.com"] {
		t.Errorf("an email was dropped: %+v", merged)
	}
}

func TestMergeNameRecordFoldsOnceEmailsDiffer(t *testing.T) {
	contacts := []contractx.Contact{
		{ContactName: "Jane Doe", Company: "Acme", Title: "VP of BD"},
		{ContactName: "Jane Doe", Email: "jane.doe@acme.com", EmailConfidence: contractx.ConfidenceVerified, Company: "Acme"},
		{ContactName: "Jane Doe", Email: "jdoe@acme-labs.com", EmailConfidence: contractx.ConfidenceVerified, Company: "Acme"},
	}
	merged := Merge(contacts)
	if len(merged) != 2 {
		t.Fatalf("got %d contacts, want 2", len(merged))
	}
	if merged[0].Email != "jane.doe@acme.com" || merged[0].Title != "VP of BD" {
		t.Errorf("email-less record should fold into the first email record: %+v", merged[0])
	}
}

func TestMergeKeepsDistinctPeople(t *testing.T) {
	contacts := []contractx.Contact{
		{ContactName: "Jane Doe", Company: "Acme"},
		{ContactName: "Jane Doe", Company: "Globex"},
		{ContactName: "Bob Roe", Company: "Acme"},
	}
	if merged := Merge(contacts); len(merged) != 3 {
		t.Fatalf("got %d contacts, want 3", len(merged))
	}
}

func TestMergeDropsPlaceholderNames(t *testing.T) {
	contacts := []contractx.Contact{
		{ContactName: "[Processing]", Company: "Acme"},
		{ContactName: "Unknown", Company: "Acme"},
		{ContactName: "Jane Doe", Company: "Acme"},
	}
	merged := Merge(contacts)
	if len(merged) != 1 || merged[0].ContactName != "Jane Doe" {
		t.Fatalf("placeholders must be dropped, got %+v", merged)
	}
}

func TestResolveEmailsInfersFromPeers(t *testing.T) {
	contacts := []contractx.Contact{
		{ContactName: "Bob Roe", Email: "bob.roe@acme.com", EmailConfidence: contractx.ConfidenceVerified, Company: "Acme"},
		{ContactName: "Ann Lee", Email: "ann.lee@acme.com", EmailConfidence: contractx.ConfidenceVerified, Company: "Acme"},
		{ContactName: "Jane Doe", Company: "Acme"},
	}
	ResolveEmails(contacts)
	if contacts[2].Email != "jane.doe@acme.com" {
		t.Errorf("email = %q, want peer-pattern inference", contacts[2].Email)
	}
	if contacts[2].EmailConfidence != contractx.ConfidenceHigh {
		t.Errorf("confidence = %s, want high for two matching peers", contacts[2].EmailConfidence)
	}
	if contacts[0].Email != "bob.roe@acme.com" {
		t.Error("existing emails must stay untouched")
	}
}

func TestResolveEmailsDomainGuessFallback(t *testing.T) {
	contacts := []contractx.Contact{
		{ContactName: "Jane Doe", Company: "Globex Pharmaceuticals Inc"},
	}
	ResolveEmails(contacts)
	if contacts[0].Email != "jane.doe@globex.com" {
		t.Errorf("email = %q, want company-derived domain guess", contacts[0].Email)
	}
	if contacts[0].EmailConfidence != contractx.ConfidenceLow {
		t.Errorf("confidence = %s, want low for a guess", contacts[0].EmailConfidence)
	}
}

func TestResolveEmailsNoDomainStaysUnknown(t *testing.T) {
	contacts := []contractx.Contact{{ContactName: "Jane Doe"}}
	ResolveEmails(contacts)
	if contacts[0].Email != "" || contacts[0].EmailConfidence != contractx.ConfidenceUnknown {
		t.Errorf("no derivable domain must stay unknown: %+v", contacts[0])
	}
}

func TestRescoreRanksDeterministically(t *testing.T) {
	contacts := []contractx.Contact{
		{ContactName: "Bob Roe", Company: "Globex", Title: "Research Scientist", EmailConfidence: contractx.ConfidenceLow},
		{ContactName: "Jane Doe", Company: "Acme", Title: "VP of Business Development", EmailConfidence: contractx.ConfidenceVerified},
	}
	activity := map[string]resolve.DomainActivity{"acme": resolve.ActivityActive}

	Rescore(contacts, []string{"VP of Business Development"}, activity)
	if contacts[0].ContactName != "Jane Doe" {
		t.Fatalf("expected Jane Doe first, got %+v", contacts)
	}
	if contacts[0].FitScore <= contacts[1].FitScore {
		t.Errorf("ranking out of order: %.1f vs %.1f", contacts[0].FitScore, contacts[1].FitScore)
	}
	if contacts[0].FitReason == "" {
		t.Error("rescore must attach a fit reason")
	}
}

func TestWriteCSVColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []contractx.Contact{{
		ContactName:     "Jane Doe",
		Email:           "jane.doe@acme.com",
		EmailConfidence: contractx.ConfidenceVerified,
		Company:         "Acme",
		Title:           "VP of BD",
		FitScore:        8.5,
		FitReason:       "title matches",
	}})
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1 row", len(lines))
	}
	wantHeader := "contact_name,email,email_confidence,company,title,linkedin_url,fit_score,fit_reason,location,source"
	if lines[0] != wantHeader {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "8.5") {
		t.Errorf("fit score must render with one decimal: %q", lines[1])
	}
}

func TestWriteCSVEmptyListStillHasHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) == "" {
		t.Error("empty result should still render the header row")
	}
}
