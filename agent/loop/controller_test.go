package loop

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

type fakeToolCallingModel struct {
	responses []*schema.Message
	err       error
	idx       int
	inputs    [][]*schema.Message
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return f.responses[len(f.responses)-1], nil
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

type fakeGateway struct {
	results map[string]contractx.ToolResult
	calls   []contractx.ToolRequest
}

func (g *fakeGateway) Execute(_ context.Context, reqs []contractx.ToolRequest) []contractx.ToolResult {
	out := make([]contractx.ToolResult, len(reqs))
	for i, req := range reqs {
		g.calls = append(g.calls, req)
		r, ok := g.results[req.Tool]
		if !ok {
			r = contractx.ToolResult{Tool: req.Tool, Content: "{}"}
		}
		r.CallID = req.CallID
		r.Tool = req.Tool
		out[i] = r
	}
	return out
}

func (g *fakeGateway) Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{{Name: "web_search", Desc: "search"}}
}

type fakeStore struct {
	sessions map[string]contractx.Artifact
}

func (s *fakeStore) Persist(_ context.Context, sessionID string, artifact contractx.Artifact) error {
	if s.sessions == nil {
		s.sessions = map[string]contractx.Artifact{}
	}
	s.sessions[sessionID] = artifact
	return nil
}

func toolCallMsg(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: id, Function: schema.FunctionCall{Name: name, Arguments: args}},
		},
	}
}

func newController(t *testing.T, agentType contractx.AgentType, model einomodel.ToolCallingChatModel, gw contractx.Gateway, cfg Config, store contractx.ArtifactStore) *Controller {
	t.Helper()
	c, err := New(agentType, model, gw, "system prompt", cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRunTerminalResponseSucceeds(t *testing.T) {
	fake := &fakeToolCallingModel{responses: []*schema.Message{
		toolCallMsg("c1", "web_search", `{"query":"acme pharma"}`),
		{Role: schema.Assistant, Content: `{"contacts":[{"contact_name":"Jane Doe","company":"Acme","fit_score":8.5}],"text":"done"}`},
	}}
	gw := &fakeGateway{results: map[string]contractx.ToolResult{
		"web_search": {Content: `[{"source":"web_search","title":"Acme"}]`},
	}}
	store := &fakeStore{}
	c := newController(t, contractx.AgentTypeLister, fake, gw, Config{}, store)

	res, err := c.Run(context.Background(), contractx.RequestContext{Product: "assay kit"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != contractx.StatusSuccess {
		t.Errorf("status = %s, want success", res.Status)
	}
	if res.IterationsUsed != 2 {
		t.Errorf("iterations = %d, want 2", res.IterationsUsed)
	}
	if len(res.Artifact.Contacts) != 1 || res.Artifact.Contacts[0].ContactName != "Jane Doe" {
		t.Errorf("artifact wrong: %+v", res.Artifact)
	}
	if len(gw.calls) != 1 || gw.calls[0].Tool != "web_search" {
		t.Errorf("gateway calls wrong: %+v", gw.calls)
	}
	if _, ok := store.sessions[res.SessionID]; !ok {
		t.Error("artifact was not persisted under the session id")
	}
}

func TestRunIterationBoundYieldsPartial(t *testing.T) {
	fake := &fakeToolCallingModel{responses: []*schema.Message{
		toolCallMsg("c1", "web_search", `{"query":"again"}`),
	}}
	gw := &fakeGateway{}
	c := newController(t, contractx.AgentTypeLister, fake, gw, Config{MaxIterations: 3}, nil)

	res, err := c.Run(context.Background(), contractx.RequestContext{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != contractx.StatusPartial {
		t.Errorf("status = %s, want partial", res.Status)
	}
	if !res.Exhausted {
		t.Error("exhausted flag must be set when the bound is hit")
	}
	if res.IterationsUsed != 3 {
		t.Errorf("iterations = %d, want 3", res.IterationsUsed)
	}
}

func TestRunIterationBoundKeepsCollectedContacts(t *testing.T) {
	fake := &fakeToolCallingModel{responses: []*schema.Message{
		toolCallMsg("c1", "hunter_domain_search", `{"domain":"acme.com"}`),
	}}
	gw := &fakeGateway{results: map[string]contractx.ToolResult{
		"hunter_domain_search": {Content: `[
			{"source":"hunter","title":"Jane Doe","fields":{"name":"Jane Doe","email":"jane.doe@acme.com","confidence":"high","domain":"acme.com","title":"VP of BD"}},
			{"source":"hunter","title":"Jane Doe","fields":{"name":"Jane Doe","email":"jane.doe@acme.com","confidence":"medium","domain":"acme.com"}}
		]`},
	}}
	c := newController(t, contractx.AgentTypeFinder, fake, gw, Config{MaxIterations: 2, ForcedContinuations: 1}, nil)

	res, err := c.Run(context.Background(), contractx.RequestContext{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != contractx.StatusPartial {
		t.Fatalf("status = %s, want partial", res.Status)
	}
	if len(res.Artifact.Contacts) != 1 {
		t.Fatalf("collected contacts = %+v, want one deduped entry", res.Artifact.Contacts)
	}
	got := res.Artifact.Contacts[0]
	if got.Email != "jane.doe@acme.com" || got.EmailConfidence != contractx.ConfidenceHigh {
		t.Errorf("best-effort contact wrong: %+v", got)
	}
	if got.Company != "acme.com" || got.Title != "VP of BD" {
		t.Errorf("fact fields should carry over: %+v", got)
	}
}

func TestRunFatalToolErrorAborts(t *testing.T) {
	fake := &fakeToolCallingModel{responses: []*schema.Message{
		toolCallMsg("c1", "web_search", `{"query":"x"}`),
		{Role: schema.Assistant, Content: "should never be reached"},
	}}
	gw := &fakeGateway{results: map[string]contractx.ToolResult{
		"web_search": {Err: contractx.NewFatalError("api key revoked")},
	}}
	c := newController(t, contractx.AgentTypeLister, fake, gw, Config{}, nil)

	res, err := c.Run(context.Background(), contractx.RequestContext{})
	if !errors.Is(err, contractx.ErrFatalTool) {
		t.Fatalf("want ErrFatalTool, got %v", err)
	}
	if res.Status != contractx.StatusAborted {
		t.Errorf("status = %s, want aborted", res.Status)
	}
	if res.IterationsUsed != 1 {
		t.Errorf("iterations = %d, want 1 (abort is immediate)", res.IterationsUsed)
	}
}

func TestRunModelErrorFails(t *testing.T) {
	fake := &fakeToolCallingModel{err: errors.New("upstream 500")}
	c := newController(t, contractx.AgentTypeLister, fake, &fakeGateway{}, Config{}, nil)

	res, err := c.Run(context.Background(), contractx.RequestContext{})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("want ErrModelInvoke, got %v", err)
	}
	if res.Status != contractx.StatusFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
}

func TestRunMalformedToolArgsFedBackToModel(t *testing.T) {
	fake := &fakeToolCallingModel{responses: []*schema.Message{
		toolCallMsg("c1", "web_search", `{"query": not-json`),
		{Role: schema.Assistant, Content: `{"contacts":[],"text":"gave up"}`},
	}}
	gw := &fakeGateway{}
	c := newController(t, contractx.AgentTypeLister, fake, gw, Config{}, nil)

	res, err := c.Run(context.Background(), contractx.RequestContext{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != contractx.StatusSuccess {
		t.Errorf("status = %s, want success", res.Status)
	}
	if len(gw.calls) != 0 {
		t.Error("malformed args must not reach the gateway")
	}
}

func TestRunToolFeedbackMatchesRequestOrder(t *testing.T) {
	fake := &fakeToolCallingModel{responses: []*schema.Message{
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{
			{ID: "c1", Function: schema.FunctionCall{Name: "web_search", Arguments: `{"query":"first"}`}},
			{ID: "c2", Function: schema.FunctionCall{Name: "web_search", Arguments: `{"query": broken`}},
			{ID: "c3", Function: schema.FunctionCall{Name: "web_search", Arguments: `{"query":"third"}`}},
		}},
		{Role: schema.Assistant, Content: `{"contacts":[],"text":"done"}`},
	}}
	c := newController(t, contractx.AgentTypeLister, fake, &fakeGateway{}, Config{}, nil)

	if _, err := c.Run(context.Background(), contractx.RequestContext{}); err != nil {
		t.Fatal(err)
	}
	if len(fake.inputs) != 2 {
		t.Fatalf("model called %d times, want 2", len(fake.inputs))
	}
	history := fake.inputs[1]
	tail := history[len(history)-3:]
	for i, wantID := range []string{"c1", "c2", "c3"} {
		if tail[i].Role != schema.Tool || tail[i].ToolCallID != wantID {
			t.Errorf("tool message %d = role %s id %s, want tool/%s", i, tail[i].Role, tail[i].ToolCallID, wantID)
		}
	}
}

func TestRunFinderForcedContinuation(t *testing.T) {
	fake := &fakeToolCallingModel{responses: []*schema.Message{
		{Role: schema.Assistant, Content: `{"contacts":[],"text":"nothing yet"}`},
		{Role: schema.Assistant, Content: `{"contacts":[{"contact_name":"Jane Doe","company":"Acme"}]}`},
	}}
	c := newController(t, contractx.AgentTypeFinder, fake, &fakeGateway{}, Config{}, nil)

	res, err := c.Run(context.Background(), contractx.RequestContext{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != contractx.StatusSuccess {
		t.Errorf("status = %s, want success", res.Status)
	}
	if len(res.Artifact.Contacts) != 1 {
		t.Errorf("continuation should have produced contacts, got %+v", res.Artifact)
	}
	if res.IterationsUsed != 2 {
		t.Errorf("iterations = %d, want 2", res.IterationsUsed)
	}
}

func TestRunFinderForcedContinuationCoversAllCompanies(t *testing.T) {
	fake := &fakeToolCallingModel{responses: []*schema.Message{
		{Role: schema.Assistant, Content: `{"contacts":[{"contact_name":"Jane Doe","company":"Acme Corp"}]}`},
		{Role: schema.Assistant, Content: `{"contacts":[{"contact_name":"Jane Doe","company":"Acme Corp"},{"contact_name":"Bob Roe","company":"Globex"}]}`},
	}}
	c := newController(t, contractx.AgentTypeFinder, fake, &fakeGateway{}, Config{}, nil)

	res, err := c.Run(context.Background(), contractx.RequestContext{
		Companies: []string{"Acme", "Globex"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != contractx.StatusSuccess {
		t.Errorf("status = %s, want success", res.Status)
	}
	if res.IterationsUsed != 2 {
		t.Fatalf("iterations = %d, want 2 (one continuation for the uncovered company)", res.IterationsUsed)
	}
	if len(res.Artifact.Contacts) != 2 {
		t.Errorf("final artifact should cover both companies: %+v", res.Artifact)
	}

	nudge := fake.inputs[1][len(fake.inputs[1])-1]
	if nudge.Role != schema.User || !strings.Contains(nudge.Content, "Globex") {
		t.Errorf("continuation should name the uncovered company, got %q", nudge.Content)
	}
	if strings.Contains(nudge.Content, "Acme") {
		t.Errorf("covered companies must not be re-requested: %q", nudge.Content)
	}
}

func TestUncoveredCompaniesLenientMatch(t *testing.T) {
	contacts := []contractx.Contact{
		{ContactName: "Jane Doe", Company: "Acme Corporation"},
	}
	uncovered := uncoveredCompanies([]string{"Acme", "Globex Pharma"}, contacts)
	if len(uncovered) != 1 || uncovered[0] != "Globex Pharma" {
		t.Errorf("uncovered = %v, want only Globex Pharma", uncovered)
	}
}

func TestRunFinderForcedContinuationGuardStops(t *testing.T) {
	fake := &fakeToolCallingModel{responses: []*schema.Message{
		{Role: schema.Assistant, Content: `{"contacts":[],"text":"empty"}`},
	}}
	c := newController(t, contractx.AgentTypeFinder, fake, &fakeGateway{}, Config{ForcedContinuations: 2}, nil)

	res, err := c.Run(context.Background(), contractx.RequestContext{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != contractx.StatusSuccess {
		t.Errorf("status = %s, want success after guard stops forcing", res.Status)
	}
	if res.IterationsUsed != 3 {
		t.Errorf("iterations = %d, want 3 (two forced continuations then accept)", res.IterationsUsed)
	}
}

func TestParseArtifactRepairsSloppyJSON(t *testing.T) {
	art := parseArtifact("```json\n{contacts: [{contact_name: 'Jane Doe', company: 'Acme',}],}\n```")
	if len(art.Contacts) != 1 || art.Contacts[0].ContactName != "Jane Doe" {
		t.Errorf("repair failed: %+v", art)
	}
}

func TestParseArtifactPlainTextSurvives(t *testing.T) {
	art := parseArtifact("Dear Dr. Doe, I noticed your recent trial...")
	if art.Text == "" || len(art.Contacts) != 0 {
		t.Errorf("plain text should land in Text: %+v", art)
	}
}
