package resolve

import (
	"testing"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

func TestDetectPattern(t *testing.T) {
	cases := []struct {
		email, name string
		want        EmailPattern
		ok          bool
	}{
		{"jane.doe@acme.com", "Jane Doe", PatternFirstDotLast, true},
		{"janedoe@acme.com", "Jane Doe", PatternFirstLast, true},
		{"jdoe@acme.com", "Jane Doe", PatternFLast, true},
		{"j.doe@acme.com", "Jane Doe", PatternFDotLast, true},
		{"jane@acme.com", "Jane Doe", PatternFirst, true},
		{"doe.jane@acme.com", "Jane Doe", PatternLastDotFirst, true},
		{"contact@acme.com", "Jane Doe", "", false},
		{"jane.doe@acme.com", "Jane", "", false},
	}
	for _, tc := range cases {
		got, ok := DetectPattern(tc.email, tc.name)
		if ok != tc.ok || got != tc.want {
			t.Errorf("DetectPattern(%q, %q) = (%q, %v), want (%q, %v)",
				tc.email, tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPatternApply(t *testing.T) {
	got := PatternFLast.Apply("María O'Neil Smith", "Acme.COM")
	if got != "msmith@acme.com" {
		t.Errorf("Apply = %q, want msmith@acme.com", got)
	}
	if out := PatternFirstDotLast.Apply("Cher", "acme.com"); out != "" {
		t.Errorf("single-word name should produce empty email, got %q", out)
	}
}

func TestInferEmailSuppliedBypassesInference(t *testing.T) {
	inf := InferEmail(InferenceInput{
		FullName:   "Jane Doe",
		KnownEmail: "jane.doe@acme.com",
		Peers:      []PeerEmail{{FullName: "Bob Roe", Email: "broe@acme.com"}},
	})
	if inf.Email != "jane.doe@acme.com" || inf.Confidence != contractx.ConfidenceVerified {
		t.Errorf("supplied email must stay verified, got %+v", inf)
	}
}

func TestInferEmailTwoPeersSamePattern(t *testing.T) {
	inf := InferEmail(InferenceInput{
		FullName: "Jane Doe",
		Peers: []PeerEmail{
			{FullName: "Bob Roe", Email: "bob.roe@acme.com"},
			{FullName: "Ann Lee", Email: "ann.lee@acme.com"},
		},
	})
	if inf.Email != "jane.doe@acme.com" {
		t.Errorf("email = %q, want jane.doe@acme.com", inf.Email)
	}
	if inf.Confidence != contractx.ConfidenceHigh {
		t.Errorf("confidence = %s, want high", inf.Confidence)
	}
}

func TestInferEmailSinglePeer(t *testing.T) {
	inf := InferEmail(InferenceInput{
		FullName: "Jane Doe",
		Peers:    []PeerEmail{{FullName: "Bob Roe", Email: "broe@acme.com"}},
	})
	if inf.Email != "jdoe@acme.com" || inf.Confidence != contractx.ConfidenceMedium {
		t.Errorf("single peer pattern not applied, got %+v", inf)
	}
}

func TestInferEmailNoPeersFallsBackToGuess(t *testing.T) {
	inf := InferEmail(InferenceInput{
		FullName:    "Jane Doe",
		DomainGuess: "acme.com",
	})
	if inf.Email != "jane.doe@acme.com" || inf.Confidence != contractx.ConfidenceLow {
		t.Errorf("domain guess fallback, got %+v", inf)
	}
}

func TestInferEmailNoDomainIsUnknown(t *testing.T) {
	inf := InferEmail(InferenceInput{FullName: "Jane Doe"})
	if inf.Email != "" || inf.Confidence != contractx.ConfidenceUnknown {
		t.Errorf("no domain must stay unknown, got %+v", inf)
	}
}

func TestDerivePeerDomainSkipsGenericProviders(t *testing.T) {
	peers := []PeerEmail{
		{FullName: "Bob Roe", Email: "bob@gmail.com"},
		{FullName: "Ann Lee", Email: "ann.lee@acme.com"},
	}
	if got := DerivePeerDomain(peers); got != "acme.com" {
		t.Errorf("DerivePeerDomain = %q, want acme.com", got)
	}
	if got := DerivePeerDomain(peers[:1]); got != "" {
		t.Errorf("gmail-only peers should yield no domain, got %q", got)
	}
}

func TestSourceCascadeFallsBackAfterThreeFailures(t *testing.T) {
	c, err := NewSourceCascade("hunter", "findymail", "whois")
	if err != nil {
		t.Fatal(err)
	}
	if c.Active() != "hunter" {
		t.Fatalf("active = %q, want hunter", c.Active())
	}

	if c.RecordFailure("hunter") || c.RecordFailure("hunter") {
		t.Fatal("cascade fell back before the third failure")
	}
	if !c.RecordFailure("hunter") {
		t.Fatal("third consecutive failure must demote the source")
	}
	if c.Active() != "findymail" {
		t.Errorf("active = %q, want findymail", c.Active())
	}
	if !c.Demoted("hunter") {
		t.Error("hunter must report demoted")
	}
	if c.Demoted("whois") {
		t.Error("whois is still ahead, not demoted")
	}
}

func TestSourceCascadeSuccessResetsCounter(t *testing.T) {
	c, _ := NewSourceCascade("hunter", "findymail")
	c.RecordFailure("hunter")
	c.RecordFailure("hunter")
	c.RecordSuccess("hunter")
	if c.RecordFailure("hunter") || c.RecordFailure("hunter") {
		t.Fatal("success must reset the consecutive failure count")
	}
	if c.Active() != "hunter" {
		t.Errorf("active = %q, want hunter", c.Active())
	}
}

func TestSourceCascadeIgnoresInactiveSourceFailures(t *testing.T) {
	c, _ := NewSourceCascade("hunter", "findymail")
	for i := 0; i < 5; i++ {
		c.RecordFailure("findymail")
	}
	if c.Active() != "hunter" {
		t.Errorf("inactive source failures must not demote, active=%q", c.Active())
	}
}

func TestSourceCascadeExhaustion(t *testing.T) {
	c, _ := NewSourceCascade("hunter")
	for i := 0; i < 3; i++ {
		c.RecordFailure("hunter")
	}
	if !c.Exhausted() || c.Active() != "" {
		t.Errorf("cascade should be exhausted, active=%q", c.Active())
	}
}

func TestNewSourceCascadeEmpty(t *testing.T) {
	if _, err := NewSourceCascade(); err == nil {
		t.Fatal("expected error for empty cascade")
	}
}
