// Package adapter wraps each external data source behind one uniform
// surface: validated args in, normalized research facts out. An adapter
// returning an empty slice means "nothing found", which is a valid answer;
// errors are reserved for the source genuinely failing.
package adapter

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
	"github.com/hyomin-dev/leadscout/pkg/budget"
)

// Source names. These identify facts, meter budgets, and order the
// contact-finder cascade.
const (
	SourceWebSearch = "web_search"
	SourceWebPage   = "web_page"
	SourceTrials    = "clinical_trials"
	SourcePubmed    = "pubmed"
	SourceHunter    = "hunter"
	SourceFindymail = "findymail"
	SourceWhois     = "whois"
)

// Adapter executes one source operation. Implementations never mutate a
// returned fact and never panic on malformed args; bad input is a
// validation ToolError.
type Adapter interface {
	Name() string
	Execute(ctx context.Context, args map[string]any) ([]contractx.ResearchFact, error)
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", contractx.NewValidationError("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", contractx.NewValidationError("argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

func optionalStringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", contractx.NewValidationError("argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

// optionalIntArg accepts float64 because JSON numbers decode that way.
func optionalIntArg(args map[string]any, key string, fallback int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, contractx.NewValidationError("argument %q must be a number, got %T", key, v)
	}
}

// spend reserves credits for a metered source. Exhaustion is not retryable:
// the loop should move to the next source, not hammer this one.
func spend(ledger *budget.Ledger, source string, n int64) error {
	if ledger == nil {
		return nil
	}
	if err := ledger.TrySpend(source, n); err != nil {
		if errors.Is(err, budget.ErrExhausted) {
			return &contractx.ToolError{
				Kind:    contractx.ErrKindTransient,
				Message: fmt.Sprintf("source %s unavailable: %v", source, err),
			}
		}
		return err
	}
	return nil
}
