// Package tool holds the registry and dispatcher sitting between the model
// and the source adapters. The registry owns tool metadata in both shapes
// the system needs: eino ToolInfo for model binding and a JSON schema for
// input validation before any adapter runs.
package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/google/jsonschema-go/jsonschema"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

// Tool is one registered operation. Volatile marks tools whose result
// depends on session state beyond the args; the dispatcher never caches
// them.
type Tool struct {
	Name     string
	Info     *schema.ToolInfo
	Input    *jsonschema.Schema
	Volatile bool
	Run      func(ctx context.Context, args map[string]any) (any, error)

	resolved *jsonschema.Resolved
}

// ValidateArgs checks args against the tool's input schema. A schema
// violation is a validation ToolError, so it reaches the model as feedback
// and never reaches the adapter.
func (t *Tool) ValidateArgs(args map[string]any) error {
	if t.resolved == nil {
		return nil
	}
	if err := t.resolved.Validate(args); err != nil {
		return contractx.NewValidationError("tool %s: %v", t.Name, err)
	}
	return nil
}

// Registry is the set of tools one agent role may call. Registration
// order is preserved so the model always sees a stable catalog.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("%w: tool needs a name", contractx.ErrValidation)
	}
	if t.Run == nil {
		return fmt.Errorf("%w: tool %s has no handler", contractx.ErrValidation, t.Name)
	}
	if t.Input != nil {
		resolved, err := t.Input.Resolve(nil)
		if err != nil {
			return fmt.Errorf("resolve schema for tool %s: %w", t.Name, err)
		}
		t.resolved = resolved
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[t.Name]; dup {
		return fmt.Errorf("%w: tool %s already registered", contractx.ErrValidation, t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Infos lists tool metadata for model binding, in registration order.
func (r *Registry) Infos() []*schema.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.tools[name].Info)
	}
	return infos
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
