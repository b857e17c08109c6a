package prompt

import (
	_ "embed"
	"strings"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

var (
	//go:embed template/lister.txt
	listerRaw string

	//go:embed template/finder.txt
	finderRaw string

	//go:embed template/drafter.txt
	drafterRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Lister  string
	Finder  string
	Drafter string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// Safe to call concurrently; the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Lister:  strings.TrimSpace(listerRaw),
		Finder:  strings.TrimSpace(finderRaw),
		Drafter: strings.TrimSpace(drafterRaw),
	}
}

// For returns the system prompt for one agent role.
func (p PromptSet) For(agentType contractx.AgentType) string {
	switch agentType {
	case contractx.AgentTypeLister:
		return p.Lister
	case contractx.AgentTypeFinder:
		return p.Finder
	case contractx.AgentTypeDrafter:
		return p.Drafter
	default:
		return ""
	}
}
