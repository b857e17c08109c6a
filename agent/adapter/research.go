package adapter

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
	"github.com/hyomin-dev/leadscout/pkg/research"
)

// trialSearcher and pubmedSearcher split the research client for tests.
type trialSearcher interface {
	SearchTrials(ctx context.Context, query research.TrialsQuery) ([]research.Trial, error)
}

type pubmedSearcher interface {
	SearchPubmed(ctx context.Context, affiliation, topic string, maxResults int) ([]string, error)
	FetchSummaries(ctx context.Context, pmids []string) ([]research.Publication, error)
}

// Trials surfaces a company's registered clinical studies. The sponsor
// name doubles as a domain activity signal for scoring.
type Trials struct {
	client trialSearcher
}

func NewTrials(client *research.Client) *Trials {
	return &Trials{client: client}
}

func (a *Trials) Name() string { return SourceTrials }

func (a *Trials) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	sponsor, err := optionalStringArg(args, "sponsor")
	if err != nil {
		return nil, err
	}
	condition, err := optionalStringArg(args, "condition")
	if err != nil {
		return nil, err
	}
	if sponsor == "" && condition == "" {
		return nil, contractx.NewValidationError("at least one of sponsor or condition is required")
	}
	status, err := optionalStringArg(args, "status")
	if err != nil {
		return nil, err
	}
	pageSize, err := optionalIntArg(args, "max_results", 5)
	if err != nil {
		return nil, err
	}

	trials, err := a.client.SearchTrials(ctx, research.TrialsQuery{
		Condition: condition,
		Sponsor:   sponsor,
		Status:    status,
		PageSize:  pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("trials search: %w", err)
	}

	facts := make([]contractx.ResearchFact, 0, len(trials))
	for _, t := range trials {
		fields := map[string]string{
			"status":  t.Status,
			"sponsor": t.Sponsor,
		}
		if len(t.Conditions) > 0 {
			fields["conditions"] = strings.Join(t.Conditions, "; ")
		}
		if len(t.Investigators) > 0 {
			fields["investigators"] = strings.Join(t.Investigators, "; ")
		}
		facts = append(facts, contractx.ResearchFact{
			Source: SourceTrials,
			Ref:    t.NCTID,
			Title:  t.Title,
			Fields: fields,
		})
	}
	return facts, nil
}

// Pubmed searches recent publications by affiliation, then enriches the
// hits with summaries in one call so the model sees authors and dates.
type Pubmed struct {
	client pubmedSearcher
}

func NewPubmed(client *research.Client) *Pubmed {
	return &Pubmed{client: client}
}

func (a *Pubmed) Name() string { return SourcePubmed }

func (a *Pubmed) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	affiliation, err := stringArg(args, "affiliation")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(affiliation) == "" {
		return nil, contractx.NewValidationError("affiliation must not be empty")
	}
	topic, err := optionalStringArg(args, "topic")
	if err != nil {
		return nil, err
	}
	maxResults, err := optionalIntArg(args, "max_results", 10)
	if err != nil {
		return nil, err
	}

	pmids, err := a.client.SearchPubmed(ctx, affiliation, topic, maxResults)
	if err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}
	if len(pmids) == 0 {
		return nil, nil
	}

	pubs, err := a.client.FetchSummaries(ctx, pmids)
	if err != nil {
		return nil, fmt.Errorf("pubmed summaries: %w", err)
	}

	facts := make([]contractx.ResearchFact, 0, len(pubs))
	for _, p := range pubs {
		fields := map[string]string{
			"journal":  p.Journal,
			"pub_date": p.PubDate,
		}
		if len(p.Authors) > 0 {
			fields["authors"] = strings.Join(p.Authors, "; ")
		}
		facts = append(facts, contractx.ResearchFact{
			Source: SourcePubmed,
			Ref:    p.PMID,
			Title:  p.Title,
			Fields: fields,
		})
	}
	return facts, nil
}
