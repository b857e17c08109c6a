package tool

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

const (
	defaultWorkers     = 4
	defaultCallTimeout = 15 * time.Second
	defaultMaxRetries  = 3
	retryBaseBackoff   = 500 * time.Millisecond
)

type DispatcherConfig struct {
	Workers     int
	CallTimeout time.Duration
	MaxRetries  int
}

// Dispatcher executes the model's tool calls against the registry: validate,
// consult the session cache, run with timeout and retry, record the result.
// One Dispatcher belongs to one session; the cache never leaks across
// sessions.
type Dispatcher struct {
	registry  *Registry
	observers []contractx.Observer

	workers     int
	callTimeout time.Duration
	maxRetries  int

	mu    sync.Mutex
	cache map[string]contractx.ToolResult

	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(registry *Registry, cfg DispatcherConfig, observers ...contractx.Observer) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Dispatcher{
		registry:    registry,
		observers:   observers,
		workers:     workers,
		callTimeout: callTimeout,
		maxRetries:  maxRetries,
		cache:       make(map[string]contractx.ToolResult),
		sleep:       sleepCtx,
	}
}

func (d *Dispatcher) Infos() []*schema.ToolInfo {
	return d.registry.Infos()
}

// Execute runs a batch of tool calls with bounded parallelism. Results come
// back in request order regardless of completion order. Duplicate requests
// in one batch run once and share the result.
func (d *Dispatcher) Execute(ctx context.Context, reqs []contractx.ToolRequest) []contractx.ToolResult {
	results := make([]contractx.ToolResult, len(reqs))

	// Identical (tool, args) pairs in one batch collapse onto one leader;
	// followers copy the leader's result afterwards.
	leaders := make([]int, 0, len(reqs))
	followerOf := make(map[int]int)
	firstByKey := make(map[string]int)
	for i, req := range reqs {
		key := cacheKey(req.Tool, req.Args)
		if leader, seen := firstByKey[key]; seen {
			followerOf[i] = leader
			continue
		}
		firstByKey[key] = i
		leaders = append(leaders, i)
	}

	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	for _, i := range leaders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = d.execOne(ctx, reqs[i])
		}(i)
	}
	wg.Wait()

	for follower, leader := range followerOf {
		r := results[leader]
		r.CallID = reqs[follower].CallID
		results[follower] = r
	}
	return results
}

func (d *Dispatcher) execOne(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	d.notifyRequested(req)
	result := d.resolve(ctx, req)
	result.CallID = req.CallID
	d.notifyCompleted(result)
	return result
}

func (d *Dispatcher) resolve(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	if t, ok := d.registry.Get(req.Tool); ok && t.Volatile {
		return d.invoke(ctx, req)
	}

	key := cacheKey(req.Tool, req.Args)
	d.mu.Lock()
	if cached, hit := d.cache[key]; hit {
		d.mu.Unlock()
		log.Debug().Str("tool", req.Tool).Msg("tool cache hit")
		return cached
	}
	d.mu.Unlock()

	result := d.invoke(ctx, req)

	d.mu.Lock()
	d.cache[key] = result
	d.mu.Unlock()
	return result
}

func (d *Dispatcher) invoke(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	started := time.Now()
	result := contractx.ToolResult{Tool: req.Tool, At: started}

	t, ok := d.registry.Get(req.Tool)
	if !ok {
		result.Err = contractx.NewValidationError("%v: %s", contractx.ErrUnknownTool, req.Tool)
		result.Duration = time.Since(started)
		return result
	}
	if err := t.ValidateArgs(req.Args); err != nil {
		result.Err = contractx.AsToolError(err)
		result.Duration = time.Since(started)
		return result
	}

	var out any
	var toolErr *contractx.ToolError
	backoff := retryBaseBackoff
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		out, toolErr = d.attempt(ctx, t, req.Args)
		if toolErr == nil || !toolErr.Retryable {
			break
		}
		log.Warn().Str("tool", req.Tool).Int("attempt", attempt+1).
			Str("error", toolErr.Message).Msg("tool call retrying")
		if err := d.sleep(ctx, backoff); err != nil {
			break
		}
		backoff *= 2
	}

	result.Duration = time.Since(started)
	if toolErr != nil {
		result.Err = toolErr
		return result
	}

	raw, err := json.Marshal(out)
	if err != nil {
		result.Err = contractx.NewTransientError("encode tool output: %v", err)
		return result
	}
	content := string(raw)
	if content == "null" {
		content = "[]"
	}
	result.Content = content
	return result
}

func (d *Dispatcher) attempt(ctx context.Context, t *Tool, args map[string]any) (any, *contractx.ToolError) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	out, err := t.Run(callCtx, args)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, contractx.NewTransientError("tool %s timed out after %s", t.Name, d.callTimeout)
	}
	return nil, contractx.AsToolError(err)
}

func (d *Dispatcher) notifyRequested(req contractx.ToolRequest) {
	for _, obs := range d.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Any("panic", r).Str("tool", req.Tool).Msg("observer panicked")
				}
			}()
			obs.ToolRequested(req.Tool, req.Args)
		}()
	}
}

func (d *Dispatcher) notifyCompleted(result contractx.ToolResult) {
	for _, obs := range d.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Any("panic", r).Str("tool", result.Tool).Msg("observer panicked")
				}
			}()
			obs.ToolCompleted(result.Tool, result)
		}()
	}
}

// cacheKey canonicalizes args: encoding/json writes map keys sorted, so two
// semantically identical arg maps produce one key.
func cacheKey(tool string, args map[string]any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		return tool + "|unencodable"
	}
	return tool + "|" + string(raw)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
