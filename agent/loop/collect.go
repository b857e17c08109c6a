package loop

import (
	"encoding/json"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

// collector folds contact-bearing tool results into a running set so a
// session that hits the iteration bound still yields the people it found.
type collector struct {
	index map[string]int
	list  []contractx.Contact
}

func newCollector() *collector {
	return &collector{index: map[string]int{}}
}

// add decodes a successful tool result and keeps every fact that carries an
// email. Results that are not fact lists are ignored.
func (c *collector) add(result contractx.ToolResult) {
	if result.Failed() || result.Content == "" {
		return
	}
	var facts []contractx.ResearchFact
	if err := json.Unmarshal([]byte(result.Content), &facts); err != nil {
		return
	}
	for _, fact := range facts {
		contact, ok := contactFromFact(fact)
		if !ok {
			continue
		}
		key := contact.DedupKey()
		if at, seen := c.index[key]; seen {
			if contact.EmailConfidence.Rank() > c.list[at].EmailConfidence.Rank() {
				c.list[at] = contact
			}
			continue
		}
		c.index[key] = len(c.list)
		c.list = append(c.list, contact)
	}
}

func (c *collector) contacts() []contractx.Contact {
	return c.list
}

func contactFromFact(fact contractx.ResearchFact) (contractx.Contact, bool) {
	email := fact.Fields["email"]
	if email == "" {
		return contractx.Contact{}, false
	}
	name := fact.Fields["name"]
	if name == "" {
		name = fact.Title
	}
	confidence := contractx.ConfidenceLevel(fact.Fields["confidence"])
	if confidence.Rank() == 0 {
		confidence = contractx.ConfidenceUnknown
	}
	company := fact.Fields["company"]
	if company == "" {
		company = fact.Fields["domain"]
	}
	return contractx.Contact{
		ContactName:     name,
		Email:           email,
		EmailConfidence: confidence,
		Company:         company,
		Title:           fact.Fields["title"],
		LinkedinURL:     fact.Fields["linkedin_url"],
		Source:          fact.Source,
	}, true
}
