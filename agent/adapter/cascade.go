package adapter

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
	"github.com/hyomin-dev/leadscout/agent/resolve"
)

// ContactCascadeOrder is the contact-finder priority: sources returning
// verified emails come first, the free registrant fallback last.
func ContactCascadeOrder() []string {
	return []string{SourceFindymail, SourceHunter, SourceWhois}
}

// CascadeGuard enforces the session-wide contact-finder fallback order
// around a source adapter. A source that burned its failure allowance is
// rejected for the rest of the session; every call reports its outcome back
// to the shared cascade.
type CascadeGuard struct {
	inner   Adapter
	source  string
	cascade *resolve.SourceCascade
}

func NewCascadeGuard(inner Adapter, source string, cascade *resolve.SourceCascade) *CascadeGuard {
	return &CascadeGuard{inner: inner, source: source, cascade: cascade}
}

func (g *CascadeGuard) Name() string { return g.inner.Name() }

func (g *CascadeGuard) Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error) {
	if g.cascade.Demoted(g.source) {
		msg := "source " + g.source + " is unavailable for the rest of this session"
		if next := g.cascade.Active(); next != "" {
			msg += "; use " + next + " instead"
		}
		return nil, &contractx.ToolError{Kind: contractx.ErrKindTransient, Message: msg}
	}

	facts, err := g.inner.Execute(ctx, args)
	if err != nil {
		if te := contractx.AsToolError(err); te.Kind != contractx.ErrKindValidation {
			if g.cascade.RecordFailure(g.source) {
				log.Warn().Str("source", g.source).Str("next", g.cascade.Active()).
					Msg("source demoted after repeated failures")
			}
		}
		return nil, err
	}
	g.cascade.RecordSuccess(g.source)
	return facts, nil
}
