package tool

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/hyomin-dev/leadscout/agent/adapter"
	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

// AdapterSet holds one instance of every source adapter. Roles pick the
// subset they are allowed to call.
type AdapterSet struct {
	WebSearch    adapter.Adapter
	WebPage      adapter.Adapter
	Trials       adapter.Adapter
	Pubmed       adapter.Adapter
	HunterDomain adapter.Adapter
	HunterFind   adapter.Adapter
	HunterVerify adapter.Adapter
	Findymail    adapter.Adapter
	Whois        adapter.Adapter

	// Drafter-only, wired after the finder stage produced contacts.
	Prospects adapter.Adapter
	SaveDraft adapter.Adapter
	Finalize  adapter.Adapter
}

// ForAgent builds the tool registry for one agent role. The lister
// researches companies, the finder resolves people and emails, the drafter
// only needs enough web access to personalize copy.
func ForAgent(agentType contractx.AgentType, set AdapterSet) (*Registry, error) {
	var specs []toolSpec
	switch agentType {
	case contractx.AgentTypeLister:
		specs = []toolSpec{
			webSearchSpec(set.WebSearch),
			webPageSpec(set.WebPage),
			trialsSpec(set.Trials),
			pubmedSpec(set.Pubmed),
		}
	case contractx.AgentTypeFinder:
		specs = []toolSpec{
			webSearchSpec(set.WebSearch),
			hunterDomainSpec(set.HunterDomain),
			hunterFindSpec(set.HunterFind),
			hunterVerifySpec(set.HunterVerify),
			findymailSpec(set.Findymail),
			whoisSpec(set.Whois),
		}
	case contractx.AgentTypeDrafter:
		specs = []toolSpec{
			webSearchSpec(set.WebSearch),
			webPageSpec(set.WebPage),
			prospectsSpec(set.Prospects),
			saveDraftSpec(set.SaveDraft),
			finalizeSpec(set.Finalize),
		}
	default:
		return nil, fmt.Errorf("%w: unknown agent type %q", contractx.ErrValidation, agentType)
	}

	registry := NewRegistry()
	for _, spec := range specs {
		if spec.adapter == nil {
			return nil, fmt.Errorf("%w: adapter for tool %s is not configured", contractx.ErrValidation, spec.name)
		}
		if err := registry.Register(spec.build()); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

type toolSpec struct {
	name     string
	desc     string
	params   map[string]*schema.ParameterInfo
	input    *jsonschema.Schema
	volatile bool
	adapter  adapter.Adapter
}

func (s toolSpec) build() *Tool {
	a := s.adapter
	return &Tool{
		Name: s.name,
		Info: &schema.ToolInfo{
			Name:        s.name,
			Desc:        s.desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(s.params),
		},
		Input:    s.input,
		Volatile: s.volatile,
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			return a.Execute(ctx, args)
		},
	}
}

func objectSchema(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func webSearchSpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: adapter.SourceWebSearch,
		desc: "Search the web for companies, news, funding rounds, and people.",
		params: map[string]*schema.ParameterInfo{
			"query":       {Type: schema.String, Desc: "Free-text search query", Required: true},
			"max_results": {Type: schema.Integer, Desc: "Result count, default 5, max 10"},
		},
		input: objectSchema([]string{"query"}, map[string]*jsonschema.Schema{
			"query":       {Type: "string"},
			"max_results": {Type: "integer"},
		}),
		adapter: a,
	}
}

func webPageSpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: adapter.SourceWebPage,
		desc: "Fetch one web page and return its readable text.",
		params: map[string]*schema.ParameterInfo{
			"url": {Type: schema.String, Desc: "Absolute http(s) URL", Required: true},
		},
		input: objectSchema([]string{"url"}, map[string]*jsonschema.Schema{
			"url": {Type: "string"},
		}),
		adapter: a,
	}
}

func trialsSpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: adapter.SourceTrials,
		desc: "Search ClinicalTrials.gov for a sponsor's registered studies.",
		params: map[string]*schema.ParameterInfo{
			"sponsor":     {Type: schema.String, Desc: "Sponsor company name"},
			"condition":   {Type: schema.String, Desc: "Medical condition"},
			"status":      {Type: schema.String, Desc: "Overall status filter, default RECRUITING"},
			"max_results": {Type: schema.Integer, Desc: "Result count, default 5"},
		},
		input: objectSchema(nil, map[string]*jsonschema.Schema{
			"sponsor":     {Type: "string"},
			"condition":   {Type: "string"},
			"status":      {Type: "string"},
			"max_results": {Type: "integer"},
		}),
		adapter: a,
	}
}

func pubmedSpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: adapter.SourcePubmed,
		desc: "Search PubMed for recent publications by company affiliation.",
		params: map[string]*schema.ParameterInfo{
			"affiliation": {Type: schema.String, Desc: "Company or institution affiliation", Required: true},
			"topic":       {Type: schema.String, Desc: "Optional topic keyword"},
			"max_results": {Type: schema.Integer, Desc: "Result count, default 10"},
		},
		input: objectSchema([]string{"affiliation"}, map[string]*jsonschema.Schema{
			"affiliation": {Type: "string"},
			"topic":       {Type: "string"},
			"max_results": {Type: "integer"},
		}),
		adapter: a,
	}
}

func hunterDomainSpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: a.Name(),
		desc: "List people with known emails at a company domain (costs credits).",
		params: map[string]*schema.ParameterInfo{
			"domain":     {Type: schema.String, Desc: "Company domain, e.g. acme.com", Required: true},
			"limit":      {Type: schema.Integer, Desc: "Max people, default 10"},
			"department": {Type: schema.String, Desc: "Hunter department filter"},
			"seniority":  {Type: schema.String, Desc: "junior | senior | executive"},
		},
		input: objectSchema([]string{"domain"}, map[string]*jsonschema.Schema{
			"domain":     {Type: "string"},
			"limit":      {Type: "integer"},
			"department": {Type: "string"},
			"seniority":  {Type: "string"},
		}),
		adapter: a,
	}
}

func hunterFindSpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: a.Name(),
		desc: "Find one named person's email at a domain (costs credits).",
		params: map[string]*schema.ParameterInfo{
			"domain":     {Type: schema.String, Desc: "Company domain", Required: true},
			"first_name": {Type: schema.String, Desc: "First name", Required: true},
			"last_name":  {Type: schema.String, Desc: "Last name", Required: true},
		},
		input: objectSchema([]string{"domain", "first_name", "last_name"}, map[string]*jsonschema.Schema{
			"domain":     {Type: "string"},
			"first_name": {Type: "string"},
			"last_name":  {Type: "string"},
		}),
		adapter: a,
	}
}

func hunterVerifySpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: a.Name(),
		desc: "Verify deliverability of an email address (costs credits).",
		params: map[string]*schema.ParameterInfo{
			"email": {Type: schema.String, Desc: "Address to verify", Required: true},
		},
		input: objectSchema([]string{"email"}, map[string]*jsonschema.Schema{
			"email": {Type: "string"},
		}),
		adapter: a,
	}
}

func findymailSpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: a.Name(),
		desc: "Find a verified email from name+domain or a LinkedIn URL (costs credits).",
		params: map[string]*schema.ParameterInfo{
			"name":         {Type: schema.String, Desc: "Full name, used with domain"},
			"domain":       {Type: schema.String, Desc: "Company domain, used with name"},
			"linkedin_url": {Type: schema.String, Desc: "LinkedIn profile URL"},
		},
		input: objectSchema(nil, map[string]*jsonschema.Schema{
			"name":         {Type: "string"},
			"domain":       {Type: "string"},
			"linkedin_url": {Type: "string"},
		}),
		adapter: a,
	}
}

func prospectsSpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: "load_prospects",
		desc: "Load the ranked contact list to draft outreach for.",
		params: map[string]*schema.ParameterInfo{
			"limit": {Type: schema.Integer, Desc: "Max contacts, default all"},
		},
		input: objectSchema(nil, map[string]*jsonschema.Schema{
			"limit": {Type: "integer"},
		}),
		adapter: a,
	}
}

func saveDraftSpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: "save_draft",
		desc: "Save one outreach draft for a contact. Saving again replaces it.",
		params: map[string]*schema.ParameterInfo{
			"contact_name": {Type: schema.String, Desc: "Recipient full name", Required: true},
			"email":        {Type: schema.String, Desc: "Recipient email if known"},
			"subject":      {Type: schema.String, Desc: "Subject line", Required: true},
			"body":         {Type: schema.String, Desc: "Plain-text message body", Required: true},
		},
		input: objectSchema([]string{"contact_name", "subject", "body"}, map[string]*jsonschema.Schema{
			"contact_name": {Type: "string"},
			"email":        {Type: "string"},
			"subject":      {Type: "string"},
			"body":         {Type: "string"},
		}),
		volatile: true,
		adapter:  a,
	}
}

func finalizeSpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: "finalize_campaign",
		desc: "Close out drafting once every contact has a saved draft.",
		params: map[string]*schema.ParameterInfo{
			"campaign_name": {Type: schema.String, Desc: "Optional label for the batch"},
		},
		input: objectSchema(nil, map[string]*jsonschema.Schema{
			"campaign_name": {Type: "string"},
		}),
		volatile: true,
		adapter:  a,
	}
}

func whoisSpec(a adapter.Adapter) toolSpec {
	return toolSpec{
		name: a.Name(),
		desc: "WHOIS lookup for registrant contact emails (free, often redacted).",
		params: map[string]*schema.ParameterInfo{
			"domain": {Type: schema.String, Desc: "Domain to look up", Required: true},
		},
		input: objectSchema([]string{"domain"}, map[string]*jsonschema.Schema{
			"domain": {Type: "string"},
		}),
		adapter: a,
	}
}
