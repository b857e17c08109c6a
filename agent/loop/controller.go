// Package loop runs the model-directed research loop: invoke the model,
// dispatch the tool calls it plans, feed results back, and stop on a
// terminal response or a hard bound. The model decides what to call; the
// loop decides when to stop.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

const (
	defaultMaxIterations       = 25
	defaultForcedContinuations = 3
)

type Config struct {
	MaxIterations       int `split_words:"true" default:"25"`
	ForcedContinuations int `split_words:"true" default:"3"`
}

// Controller drives one agent role's sessions. Safe for sequential reuse;
// each Run gets a fresh session and history.
type Controller struct {
	agentType contractx.AgentType
	chatModel einomodel.ToolCallingChatModel
	gateway   contractx.Gateway
	store     contractx.ArtifactStore

	systemPrompt        string
	maxIterations       int
	forcedContinuations int
}

func New(
	agentType contractx.AgentType,
	chatModel einomodel.ToolCallingChatModel,
	gateway contractx.Gateway,
	systemPrompt string,
	cfg Config,
	store contractx.ArtifactStore,
) (*Controller, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if gateway == nil {
		return nil, fmt.Errorf("%w: tool gateway is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: system prompt is required", contractx.ErrValidation)
	}

	toolModel, err := chatModel.WithTools(gateway.Infos())
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for agent=%s: %v", contractx.ErrModelInvoke, agentType, err)
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	forced := cfg.ForcedContinuations
	if forced <= 0 {
		forced = defaultForcedContinuations
	}

	return &Controller{
		agentType:           agentType,
		chatModel:           toolModel,
		gateway:             gateway,
		store:               store,
		systemPrompt:        systemPrompt,
		maxIterations:       maxIterations,
		forcedContinuations: forced,
	}, nil
}

// Run executes one session to a terminal status. The iteration bound turns
// a runaway session into a partial result instead of an error; a fatal tool
// failure aborts immediately.
func (c *Controller) Run(ctx context.Context, req contractx.RequestContext) (contractx.SessionResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return contractx.SessionResult{}, fmt.Errorf("%w: marshal request context: %v", contractx.ErrValidation, err)
	}

	sess := newSession(c.agentType, c.systemPrompt, string(payload))
	log.Info().Str("session", sess.id).Str("agent", string(c.agentType)).Msg("session started")

	forcedUsed := 0
	collected := newCollector()
	var artifact contractx.Artifact

	for sess.iterations < c.maxIterations {
		sess.iterations++

		msg, err := c.chatModel.Generate(ctx, sess.history)
		if err != nil {
			sess.finish(contractx.StatusFailed)
			return c.result(ctx, sess, artifact),
				fmt.Errorf("%w: agent=%s iteration=%d: %v", contractx.ErrModelInvoke, c.agentType, sess.iterations, err)
		}
		sess.append(msg)

		if len(msg.ToolCalls) == 0 {
			candidate := parseArtifact(msg.Content)
			if c.agentType == contractx.AgentTypeFinder && forcedUsed < c.forcedContinuations {
				if nudge := continuationNudge(candidate, req.Companies); nudge != "" {
					forcedUsed++
					log.Warn().Str("session", sess.id).Int("forced", forcedUsed).
						Msg("terminal response with targets uncovered, forcing continuation")
					sess.append(schema.UserMessage(nudge))
					continue
				}
			}
			artifact = candidate
			sess.finish(contractx.StatusSuccess)
			return c.result(ctx, sess, artifact), nil
		}

		toolMsgs, fatal := c.dispatch(ctx, collected, msg.ToolCalls)
		sess.append(toolMsgs...)
		if fatal != nil {
			log.Error().Str("session", sess.id).Str("error", fatal.Message).Msg("fatal tool error, aborting")
			sess.finish(contractx.StatusAborted)
			return c.result(ctx, sess, artifact), fmt.Errorf("%w: %s", contractx.ErrFatalTool, fatal.Message)
		}
	}

	sess.finish(contractx.StatusPartial)
	log.Warn().Str("session", sess.id).Int("iterations", sess.iterations).Msg("iteration bound reached")
	if len(artifact.Contacts) == 0 {
		artifact.Contacts = collected.contacts()
	}
	res := c.result(ctx, sess, artifact)
	res.Exhausted = true
	return res, nil
}

// dispatch converts the model's tool calls, executes them, and renders one
// tool message per call, in the order the model requested them. Malformed
// args become validation errors the model sees next turn; only a fatal
// error stops the session.
func (c *Controller) dispatch(ctx context.Context, collected *collector, calls []schema.ToolCall) ([]*schema.Message, *contractx.ToolError) {
	msgs := make([]*schema.Message, len(calls))
	reqs := make([]contractx.ToolRequest, 0, len(calls))
	reqPos := make([]int, 0, len(calls))

	for i, call := range calls {
		name := strings.TrimSpace(call.Function.Name)
		args := map[string]any{}
		var argErr *contractx.ToolError
		if name == "" {
			argErr = contractx.NewValidationError("tool call name is empty")
		} else if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				argErr = contractx.NewValidationError("tool %s args are not valid JSON: %v", name, err)
			}
		}
		if argErr != nil {
			msgs[i] = schema.ToolMessage(errorContent(argErr), call.ID)
			continue
		}
		reqs = append(reqs, contractx.ToolRequest{CallID: call.ID, Tool: name, Args: args})
		reqPos = append(reqPos, i)
	}

	var fatal *contractx.ToolError
	for j, result := range c.gateway.Execute(ctx, reqs) {
		i := reqPos[j]
		if result.Failed() {
			if result.Err.Kind == contractx.ErrKindFatal && fatal == nil {
				fatal = result.Err
			}
			msgs[i] = schema.ToolMessage(errorContent(result.Err), result.CallID)
			continue
		}
		collected.add(result)
		msgs[i] = schema.ToolMessage(result.Content, result.CallID)
	}
	return msgs, fatal
}

// continuationNudge guards the finder against declaring victory early: with
// no contacts at all, or with target companies that have no contact yet.
// An empty return accepts the artifact.
func continuationNudge(artifact contractx.Artifact, companies []string) string {
	if len(artifact.Contacts) == 0 {
		return "You have not produced any contacts yet. Continue researching with your tools, " +
			"then return the final contact list as JSON."
	}
	if uncovered := uncoveredCompanies(companies, artifact.Contacts); len(uncovered) > 0 {
		return "You have no contacts yet for: " + strings.Join(uncovered, ", ") +
			". Continue researching those companies with your tools, then return the full contact list as JSON."
	}
	return ""
}

// uncoveredCompanies lists targets no contact belongs to. Matching is
// lenient on normalization: "Acme" covers "Acme Corp" and vice versa.
func uncoveredCompanies(companies []string, contacts []contractx.Contact) []string {
	var uncovered []string
	for _, company := range companies {
		target := contractx.NormalizeKey(company)
		if target == "" {
			continue
		}
		covered := false
		for _, c := range contacts {
			have := contractx.NormalizeKey(c.Company)
			if have == "" {
				continue
			}
			if strings.Contains(have, target) || strings.Contains(target, have) {
				covered = true
				break
			}
		}
		if !covered {
			uncovered = append(uncovered, company)
		}
	}
	return uncovered
}

func (c *Controller) result(ctx context.Context, sess *session, artifact contractx.Artifact) contractx.SessionResult {
	if c.store != nil && sess.status != contractx.StatusFailed {
		if err := c.store.Persist(ctx, sess.id, artifact); err != nil {
			log.Error().Err(err).Str("session", sess.id).Msg("artifact persistence failed")
		}
	}
	return contractx.SessionResult{
		SessionID:      sess.id,
		Status:         sess.status,
		Artifact:       artifact,
		IterationsUsed: sess.iterations,
	}
}

func errorContent(te *contractx.ToolError) string {
	raw, err := json.Marshal(map[string]string{
		"error": te.Message,
		"kind":  string(te.Kind),
	})
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, te.Message)
	}
	return string(raw)
}
