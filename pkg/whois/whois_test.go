package whois

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

type fakeConn struct {
	net.Conn
	reader *strings.Reader
}

func (c *fakeConn) Read(p []byte) (int, error)         { return c.reader.Read(p) }
func (c *fakeConn) Write(p []byte) (int, error)        { return len(p), nil }
func (c *fakeConn) Close() error                       { return nil }
func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func scriptedClient(responses map[string]string, dialed *[]string) *Client {
	c := NewClient(Config{})
	c.dial = func(_ context.Context, addr string) (net.Conn, error) {
		*dialed = append(*dialed, addr)
		return &fakeConn{reader: strings.NewReader(responses[addr])}, nil
	}
	return c
}

func TestLookupExtractsContactEmails(t *testing.T) {
	var dialed []string
	c := scriptedClient(map[string]string{
		"whois.iana.org:43": "Registrant Email: Jane.Doe@acme.com\nAdmin Email: abuse@registrar.example\n",
	}, &dialed)

	rec, err := c.Lookup(context.Background(), "acme.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Emails) != 1 || rec.Emails[0] != "jane.doe@acme.com" {
		t.Errorf("emails = %v, want the registrant address lowercased", rec.Emails)
	}
	if rec.PrivacyProtected {
		t.Error("nothing here is privacy-protected")
	}
}

func TestLookupFollowsReferral(t *testing.T) {
	var dialed []string
	c := scriptedClient(map[string]string{
		"whois.iana.org:43":          "refer: whois.registrar.example\n",
		"whois.registrar.example:43": "Registrant Email: admin-team@acme.com\n",
	}, &dialed)

	rec, err := c.Lookup(context.Background(), "acme.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(dialed) != 2 || dialed[1] != "whois.registrar.example:43" {
		t.Fatalf("dialed = %v, want one referral hop", dialed)
	}
	if len(rec.Emails) != 1 || rec.Emails[0] != "admin-team@acme.com" {
		t.Errorf("emails = %v", rec.Emails)
	}
}

func TestLookupFlagsPrivacyProtection(t *testing.T) {
	var dialed []string
	c := scriptedClient(map[string]string{
		"whois.iana.org:43": "Registrant Email: acme.com@domainsbyproxy.com\n",
	}, &dialed)

	rec, err := c.Lookup(context.Background(), "acme.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Emails) != 0 {
		t.Errorf("proxy addresses must be dropped, got %v", rec.Emails)
	}
	if !rec.PrivacyProtected {
		t.Error("privacy marker should set the flag")
	}
}

func TestGuessDomain(t *testing.T) {
	cases := []struct {
		company string
		want    string
	}{
		{"Globex Pharmaceuticals Inc", "globex.com"},
		{"Acme Corp", "acme.com"},
		{"Johnson & Johnson", "jnj.com"},
		{"Eli Lilly", "lilly.com"},
		{"GSK", "gsk.com"},
		{"", ""},
		{"& Co", ""},
	}
	for _, tc := range cases {
		if got := GuessDomain(tc.company); got != tc.want {
			t.Errorf("GuessDomain(%q) = %q, want %q", tc.company, got, tc.want)
		}
	}
}
