// Package aggregate turns the facts a session collected into the final
// deliverable: duplicates merged, scores recomputed on the full evidence,
// ranked output rendered to CSV and persisted per session.
package aggregate

import (
	contractx "github.com/hyomin-dev/leadscout/agent/contract"
	"github.com/hyomin-dev/leadscout/agent/resolve"
	"github.com/hyomin-dev/leadscout/pkg/whois"
)

// Merge collapses duplicate contacts. Records with the same dedup key fold
// into one: the highest-confidence email wins, and fields missing on the
// survivor fill in from later records. First-seen order is kept so merging
// is deterministic. Placeholder names without an email are dropped.
func Merge(contacts []contractx.Contact) []contractx.Contact {
	merged := make([]contractx.Contact, 0, len(contacts))
	index := make(map[string]int, len(contacts))

	for _, c := range contacts {
		if resolve.IsJunkName(c.ContactName) && c.Email == "" {
			continue
		}
		key := c.DedupKey()
		at, seen := index[key]
		if !seen {
			index[key] = len(merged)
			merged = append(merged, c)
			continue
		}
		merged[at] = fold(merged[at], c)
	}

	// An email-keyed record can still duplicate a name-keyed one for the
	// same person; a second pass catches name matches where at most one side
	// has an email. Two different emails mean two distinct records.
	byName := make(map[string]int, len(merged))
	final := make([]contractx.Contact, 0, len(merged))
	for _, c := range merged {
		nameKey := "name:" + contractx.NormalizeKey(c.ContactName) + "|" + contractx.NormalizeKey(c.Company)
		at, seen := byName[nameKey]
		if seen && c.ContactName != "" && (c.Email == "" || final[at].Email == "") {
			final[at] = fold(final[at], c)
			continue
		}
		if !seen {
			byName[nameKey] = len(final)
		}
		final = append(final, c)
	}
	return final
}

func fold(base, next contractx.Contact) contractx.Contact {
	if next.EmailConfidence.Rank() > base.EmailConfidence.Rank() && next.Email != "" {
		base.Email = next.Email
		base.EmailConfidence = next.EmailConfidence
	}
	if base.Title == "" {
		base.Title = next.Title
	}
	if base.LinkedinURL == "" {
		base.LinkedinURL = next.LinkedinURL
	}
	if base.Location == "" {
		base.Location = next.Location
	}
	if base.Source == "" {
		base.Source = next.Source
	} else if next.Source != "" && next.Source != base.Source {
		base.Source = base.Source + "," + next.Source
	}
	if next.FitScore > base.FitScore {
		base.FitScore = next.FitScore
		if next.FitReason != "" {
			base.FitReason = next.FitReason
		}
	}
	return base
}

// ResolveEmails infers missing emails in place from peer evidence within
// each company: strong peer emails pin the domain and pattern, and a
// company-name-derived domain guess is the last resort. Contacts that
// arrive with an email keep it untouched.
func ResolveEmails(contacts []contractx.Contact) {
	peers := make(map[string][]resolve.PeerEmail)
	for _, c := range contacts {
		if c.Email == "" || c.EmailConfidence.Rank() < contractx.ConfidenceHigh.Rank() {
			continue
		}
		company := contractx.NormalizeKey(c.Company)
		peers[company] = append(peers[company], resolve.PeerEmail{
			FullName: c.ContactName,
			Email:    c.Email,
		})
	}

	for i := range contacts {
		if contacts[i].Email != "" {
			continue
		}
		inf := resolve.InferEmail(resolve.InferenceInput{
			FullName:    contacts[i].ContactName,
			Company:     contacts[i].Company,
			Peers:       peers[contractx.NormalizeKey(contacts[i].Company)],
			DomainGuess: whois.GuessDomain(contacts[i].Company),
		})
		contacts[i].Email = inf.Email
		contacts[i].EmailConfidence = inf.Confidence
	}
}

// Rescore recomputes every fit score against the full merged evidence and
// ranks the slice in place. activity maps a normalized company name to its
// pipeline signal; missing companies default to no signal.
func Rescore(contacts []contractx.Contact, targetTitles []string, activity map[string]resolve.DomainActivity) {
	for i := range contacts {
		score, reason := resolve.Score(resolve.ScoreInput{
			Title:           contacts[i].Title,
			TargetTitles:    targetTitles,
			EmailConfidence: contacts[i].EmailConfidence,
			Activity:        activity[contractx.NormalizeKey(contacts[i].Company)],
		})
		contacts[i].FitScore = score
		contacts[i].FitReason = reason
	}
	resolve.RankContacts(contacts)
}
