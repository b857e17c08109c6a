package main

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyomin-dev/leadscout/agent/adapter"
	"github.com/hyomin-dev/leadscout/agent/aggregate"
	contractx "github.com/hyomin-dev/leadscout/agent/contract"
	llmx "github.com/hyomin-dev/leadscout/agent/llm"
	"github.com/hyomin-dev/leadscout/agent/loop"
	"github.com/hyomin-dev/leadscout/agent/prompt"
	"github.com/hyomin-dev/leadscout/agent/resolve"
	"github.com/hyomin-dev/leadscout/agent/tool"
	"github.com/hyomin-dev/leadscout/pkg/budget"
	configx "github.com/hyomin-dev/leadscout/pkg/config"
	"github.com/hyomin-dev/leadscout/pkg/findymail"
	"github.com/hyomin-dev/leadscout/pkg/hunter"
	_ "github.com/hyomin-dev/leadscout/pkg/logger/autoload"
	openrouterx "github.com/hyomin-dev/leadscout/pkg/openrouter"
	"github.com/hyomin-dev/leadscout/pkg/research"
	"github.com/hyomin-dev/leadscout/pkg/tavily"
	"github.com/hyomin-dev/leadscout/pkg/whois"
)

type AppConfig struct {
	Product      string `envconfig:"PRODUCT" required:"true"`
	Feedback     string `envconfig:"FEEDBACK"`
	TargetTitles string `envconfig:"TARGET_TITLES" default:"VP of Business Development,Chief Scientific Officer,Director of R&D"`
	Industries   string `envconfig:"INDUSTRIES"`
	Regions      string `envconfig:"REGIONS"`
	OutputPath   string `envconfig:"OUTPUT_PATH" default:"contacts.csv"`

	HunterQuota    int64  `envconfig:"HUNTER_QUOTA" default:"50"`
	FindymailQuota int64  `envconfig:"FINDYMAIL_QUOTA" default:"50"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}
	openRouterClient := openrouterx.NewClient(llmCfg.OpenRouterFor(contractx.AgentTypeLister))
	if openRouterClient == nil {
		log.Fatal().Msg("failed to initialize openrouter client")
	}
	loopCfg := configx.MustNew[loop.Config]("LOOP")

	set := buildAdapters(appCfg)
	store := buildStore(ctx, appCfg)
	prompts := prompt.LoadPromptSet()

	targetTitles := splitCSV(appCfg.TargetTitles)
	request := contractx.RequestContext{
		Product:      appCfg.Product,
		Feedback:     appCfg.Feedback,
		TargetTitles: targetTitles,
		Industries:   splitCSV(appCfg.Industries),
		Regions:      splitCSV(appCfg.Regions),
	}

	// Stage 1: research companies worth contacting.
	listerRes := runAgent(ctx, contractx.AgentTypeLister, *llmCfg, *loopCfg, prompts, set, store, request)

	// Stage 2: resolve people and emails at those companies.
	finderReq := request
	finderReq.Feedback = joinNonEmpty(request.Feedback, "Target companies:\n"+listerRes.Artifact.Text)
	finderReq.Companies = companiesFromListing(listerRes.Artifact.Text)
	finderRes := runAgent(ctx, contractx.AgentTypeFinder, *llmCfg, *loopCfg, prompts, set, store, finderReq)

	contacts := aggregate.Merge(finderRes.Artifact.Contacts)
	aggregate.ResolveEmails(contacts)
	aggregate.Rescore(contacts, targetTitles, map[string]resolve.DomainActivity{})

	if err := writeContacts(appCfg.OutputPath, contacts); err != nil {
		log.Fatal().Err(err).Str("path", appCfg.OutputPath).Msg("write contacts")
	}
	log.Info().Int("contacts", len(contacts)).Str("path", appCfg.OutputPath).
		Str("lister_session", listerRes.SessionID).Str("finder_session", finderRes.SessionID).
		Msg("contact list written")

	if len(contacts) == 0 {
		return
	}

	// Stage 3: draft first-touch emails for the ranked contacts.
	book := adapter.NewDraftBook()
	set.Prospects = adapter.NewProspectLoader(contacts)
	set.SaveDraft = adapter.NewSaveDraft(book)
	set.Finalize = adapter.NewFinalizeCampaign(book)

	drafterReq := request
	drafterReq.Feedback = joinNonEmpty(request.Feedback, "Contacts to draft for:\n"+describeContacts(contacts))
	drafterRes := runAgent(ctx, contractx.AgentTypeDrafter, *llmCfg, *loopCfg, prompts, set, store, drafterReq)

	if rendered := book.Render(); rendered != "" {
		os.Stdout.WriteString(rendered + "\n")
	} else if drafterRes.Artifact.Text != "" {
		os.Stdout.WriteString(drafterRes.Artifact.Text + "\n")
	}
}

func buildAdapters(appCfg *AppConfig) tool.AdapterSet {
	tavilyClient, err := tavily.NewClient(*configx.MustNew[tavily.Config]("TAVILY"))
	if err != nil {
		log.Fatal().Err(err).Msg("init tavily client")
	}
	hunterClient, err := hunter.NewClient(*configx.MustNew[hunter.Config]("HUNTER"))
	if err != nil {
		log.Fatal().Err(err).Msg("init hunter client")
	}
	findymailClient, err := findymail.NewClient(*configx.MustNew[findymail.Config]("FINDYMAIL"))
	if err != nil {
		log.Fatal().Err(err).Msg("init findymail client")
	}
	researchClient := research.NewClient(*configx.MustNew[research.Config]("RESEARCH"))
	whoisClient := whois.NewClient(*configx.MustNew[whois.Config]("WHOIS"))

	ledger := budget.NewLedger(map[string]int64{
		adapter.SourceHunter:    appCfg.HunterQuota,
		adapter.SourceFindymail: appCfg.FindymailQuota,
	})

	return tool.AdapterSet{
		WebSearch:    adapter.NewWebSearch(tavilyClient),
		WebPage:      adapter.NewWebPage(0),
		Trials:       adapter.NewTrials(researchClient),
		Pubmed:       adapter.NewPubmed(researchClient),
		HunterDomain: adapter.NewHunterDomainSearch(hunterClient, ledger),
		HunterFind:   adapter.NewHunterFindEmail(hunterClient, ledger),
		HunterVerify: adapter.NewHunterVerify(hunterClient, ledger),
		Findymail:    adapter.NewFindymailFinder(findymailClient, ledger),
		Whois:        adapter.NewWhoisLookup(whoisClient),
	}
}

func buildStore(ctx context.Context, appCfg *AppConfig) contractx.ArtifactStore {
	if strings.TrimSpace(appCfg.DatabaseURL) == "" {
		return nil
	}
	store, err := aggregate.NewStore(aggregate.StoreConfig{DSN: appCfg.DatabaseURL})
	if err != nil {
		log.Fatal().Err(err).Msg("init artifact store")
	}
	if err := store.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate artifact store")
	}
	return store
}

func runAgent(
	ctx context.Context,
	agentType contractx.AgentType,
	llmCfg llmx.Config,
	loopCfg loop.Config,
	prompts prompt.PromptSet,
	set tool.AdapterSet,
	store contractx.ArtifactStore,
	request contractx.RequestContext,
) contractx.SessionResult {
	modelCfg := llmCfg.OpenRouterFor(agentType)
	chatModel, err := modelCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("agent", string(agentType)).Msg("init chat model")
	}

	if agentType == contractx.AgentTypeFinder {
		set = guardFinderSources(set)
	}
	registry, err := tool.ForAgent(agentType, set)
	if err != nil {
		log.Fatal().Err(err).Str("agent", string(agentType)).Msg("build tool registry")
	}
	dispatcher := tool.NewDispatcher(registry, tool.DispatcherConfig{})

	controller, err := loop.New(agentType, chatModel, dispatcher, prompts.For(agentType), loopCfg, store)
	if err != nil {
		log.Fatal().Err(err).Str("agent", string(agentType)).Msg("build loop controller")
	}

	result, err := controller.Run(ctx, request)
	if err != nil {
		log.Fatal().Err(err).Str("agent", string(agentType)).
			Str("session", result.SessionID).Msg("agent session failed")
	}
	if result.Exhausted {
		log.Warn().Str("agent", string(agentType)).Str("session", result.SessionID).
			Msg("session hit the iteration bound, result is partial")
	}
	return result
}

// guardFinderSources shares one fallback cascade across the finder's
// contact sources for the duration of a session: verified-returning sources
// first, free and noisy last.
func guardFinderSources(set tool.AdapterSet) tool.AdapterSet {
	cascade, err := resolve.NewSourceCascade(adapter.ContactCascadeOrder()...)
	if err != nil {
		log.Fatal().Err(err).Msg("build source cascade")
	}
	set.HunterDomain = adapter.NewCascadeGuard(set.HunterDomain, adapter.SourceHunter, cascade)
	set.HunterFind = adapter.NewCascadeGuard(set.HunterFind, adapter.SourceHunter, cascade)
	set.HunterVerify = adapter.NewCascadeGuard(set.HunterVerify, adapter.SourceHunter, cascade)
	set.Findymail = adapter.NewCascadeGuard(set.Findymail, adapter.SourceFindymail, cascade)
	set.Whois = adapter.NewCascadeGuard(set.Whois, adapter.SourceWhois, cascade)
	return set
}

func writeContacts(path string, contacts []contractx.Contact) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return aggregate.WriteCSV(f, contacts)
}

func describeContacts(contacts []contractx.Contact) string {
	var b strings.Builder
	for _, c := range contacts {
		b.WriteString(c.ContactName)
		if c.Title != "" {
			b.WriteString(" (" + c.Title + ")")
		}
		b.WriteString(" at " + c.Company)
		if c.Email != "" {
			b.WriteString(" <" + c.Email + ">")
		}
		if c.FitReason != "" {
			b.WriteString(" - " + c.FitReason)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// companiesFromListing pulls company names out of the lister's summary,
// one "name | domain guess | why it fits" line per company.
func companiesFromListing(text string) []string {
	var companies []string
	for _, line := range strings.Split(text, "\n") {
		i := strings.Index(line, "|")
		if i < 0 {
			continue
		}
		name := strings.TrimSpace(strings.TrimLeft(line[:i], "-* \t"))
		if name != "" {
			companies = append(companies, name)
		}
	}
	return companies
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
