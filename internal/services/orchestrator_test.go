package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/domain/answer"
	"github.com/peerspark/peerspark-backend/internal/domain/convo"
	"github.com/peerspark/peerspark-backend/internal/domain/llmcfg"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/pkg/errs"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
	"github.com/peerspark/peerspark-backend/internal/platform/openai"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

// ---- fakes ----

type fakeConfigResolver struct {
	err error
}

func (f *fakeConfigResolver) Resolve(_ dbctx.Context, _ uuid.UUID, modelOverride string) (llmcfg.Resolved, error) {
	if f.err != nil {
		return llmcfg.Resolved{}, f.err
	}
	cfg := llmcfg.Resolved{Provider: "openai", Model: "gpt-4o", APIKey: "test"}
	if modelOverride != "" {
		cfg.Model = modelOverride
	}
	return cfg, nil
}

type fakeConversations struct {
	conv     *convo.Conversation
	appended []*convo.Message
	nextSeq  int64
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{
		conv:    &convo.Conversation{ID: uuid.New(), OwnerID: uuid.New(), Title: "t"},
		nextSeq: 1,
	}
}

func (f *fakeConversations) Create(_ dbctx.Context, ownerID uuid.UUID, title string) (*convo.Conversation, error) {
	f.conv = &convo.Conversation{ID: uuid.New(), OwnerID: ownerID, Title: title}
	return f.conv, nil
}

func (f *fakeConversations) EnsureConversation(dbc dbctx.Context, ownerID uuid.UUID, id *uuid.UUID, fallbackTitle string) (*convo.Conversation, error) {
	if id == nil {
		return f.Create(dbc, ownerID, DeriveTitle(fallbackTitle))
	}
	return f.conv, nil
}

func (f *fakeConversations) List(_ dbctx.Context, _ uuid.UUID, _ int) ([]*convo.Conversation, error) {
	return []*convo.Conversation{f.conv}, nil
}

func (f *fakeConversations) History(_ dbctx.Context, _, _ uuid.UUID, _ int) ([]*convo.Message, error) {
	return nil, nil
}

func (f *fakeConversations) AppendMessages(_ dbctx.Context, conversationID, ownerID uuid.UUID, msgs []*convo.Message) ([]*convo.Message, error) {
	now := time.Now().UTC()
	for i, m := range msgs {
		m.ConversationID = conversationID
		m.OwnerID = ownerID
		m.Seq = f.nextSeq
		m.SentAt = now.Add(time.Duration(i) * time.Millisecond)
		f.nextSeq++
		f.appended = append(f.appended, m)
	}
	return msgs, nil
}

func (f *fakeConversations) UpdateTitle(_ dbctx.Context, _, _ uuid.UUID, _ string) error { return nil }
func (f *fakeConversations) Delete(_ dbctx.Context, _, _ uuid.UUID) error                { return nil }

type fakeToolConfigs struct {
	rows []*llmcfg.UserToolConfig
}

func (f *fakeToolConfigs) ListEnabledByUser(_ dbctx.Context, _ uuid.UUID) ([]*llmcfg.UserToolConfig, error) {
	return f.rows, nil
}
func (f *fakeToolConfigs) Create(_ dbctx.Context, row *llmcfg.UserToolConfig) (*llmcfg.UserToolConfig, error) {
	return row, nil
}
func (f *fakeToolConfigs) UpdateFields(_ dbctx.Context, _ uuid.UUID, _ map[string]interface{}) error {
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	results map[answer.ToolKind]answer.ToolInvocation
	calls   []answer.ToolKind
}

func (f *fakeRunner) Run(_ dbctx.Context, req ToolRequest) answer.ToolInvocation {
	f.mu.Lock()
	f.calls = append(f.calls, req.Kind)
	f.mu.Unlock()

	if inv, ok := f.results[req.Kind]; ok {
		inv.Kind = req.Kind
		return inv
	}
	return answer.ToolInvocation{Kind: req.Kind, Err: "no result configured"}
}

func (f *fakeRunner) Supports(_ answer.ToolKind) bool { return true }

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAI struct {
	chatErr  error
	chatText string
}

func (f *fakeAI) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeAI) ChatComplete(_ context.Context, _ openai.ChatRequest) (openai.ChatResult, error) {
	if f.chatErr != nil {
		return openai.ChatResult{}, f.chatErr
	}
	text := f.chatText
	if text == "" {
		text = "here is the answer"
	}
	return openai.ChatResult{Content: text}, nil
}

func (f *fakeAI) GenerateText(_ context.Context, _ string, _ string) (string, error) {
	return "rationale", nil
}

func (f *fakeAI) GenerateJSON(_ context.Context, _, _, _ string, _ map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

type fakeLocker struct {
	err      error
	acquired int
	released int
}

func (f *fakeLocker) Acquire(_ context.Context, _ uuid.UUID, _ time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired++
	return func() { f.released++ }, nil
}

func (f *fakeLocker) Close() error { return nil }

// ---- harness ----

type askHarness struct {
	orch     Orchestrator
	convs    *fakeConversations
	runner   *fakeRunner
	ai       *fakeAI
	locker   *fakeLocker
	resolver *fakeConfigResolver
}

func newAskHarness(t *testing.T, policy ToolSelectionPolicy) *askHarness {
	t.Helper()
	h := &askHarness{
		convs:    newFakeConversations(),
		runner:   &fakeRunner{results: map[answer.ToolKind]answer.ToolInvocation{}},
		ai:       &fakeAI{},
		locker:   &fakeLocker{},
		resolver: &fakeConfigResolver{},
	}
	if policy == nil {
		policy = StaticToolPolicy{}
	}
	h.orch = NewOrchestrator(
		h.resolver,
		h.convs,
		&fakeToolConfigs{},
		policy,
		h.runner,
		h.ai,
		h.locker,
		testLogger(t),
	)
	return h
}

func roles(msgs []*convo.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Role)
	}
	return out
}

// ---- tests ----

func TestAskUseToolsFalseNeverInvokesTools(t *testing.T) {
	h := newAskHarness(t, StaticToolPolicy{Tools: []answer.ToolKind{answer.ToolRAG}})
	dbc := dbctx.Context{Ctx: context.Background()}

	res, err := h.orch.Ask(dbc, AskRequest{
		UserID:         uuid.New(),
		Query:          "what is a b-tree?",
		UseTools:       false,
		PreferredTools: []string{"rag", "web_search"},
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if res.Mode != answer.ModeGeneral {
		t.Fatalf("mode: want=%s got=%s", answer.ModeGeneral, res.Mode)
	}
	if h.runner.callCount() != 0 {
		t.Fatalf("tools invoked despite use_tools=false: %d calls", h.runner.callCount())
	}
	for _, m := range h.convs.appended {
		if m.Role == convo.RoleToolCall || m.Role == convo.RoleToolOutput {
			t.Fatalf("unexpected %s message appended", m.Role)
		}
	}
	got := roles(h.convs.appended)
	if len(got) != 2 || got[0] != convo.RoleUser || got[1] != convo.RoleAssistant {
		t.Fatalf("message roles: got=%v", got)
	}
}

func TestAskToolFlowAppendsCallThenOutput(t *testing.T) {
	policy := StaticToolPolicy{Tools: []answer.ToolKind{answer.ToolRAG, answer.ToolWebSearch}}
	h := newAskHarness(t, policy)
	h.runner.results[answer.ToolRAG] = answer.ToolInvocation{
		Result: map[string]any{"context": "[source 1] notes\nRAG is retrieval augmented generation.", "sources": []any{}},
	}
	h.runner.results[answer.ToolWebSearch] = answer.ToolInvocation{Err: "upstream timeout"}

	dbc := dbctx.Context{Ctx: context.Background()}
	res, err := h.orch.Ask(dbc, AskRequest{UserID: uuid.New(), Query: "what is RAG?", UseTools: true})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if res.Mode != answer.ModeToolUse {
		t.Fatalf("mode: want=%s got=%s", answer.ModeToolUse, res.Mode)
	}
	if len(res.Invocations) != 2 {
		t.Fatalf("invocations: want=2 got=%d", len(res.Invocations))
	}

	got := roles(h.convs.appended)
	want := []string{
		convo.RoleUser,
		convo.RoleToolCall, convo.RoleToolCall,
		convo.RoleToolOutput, convo.RoleToolOutput,
		convo.RoleAssistant,
	}
	if len(got) != len(want) {
		t.Fatalf("message count: want=%d got=%d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d: want=%s got=%s", i, want[i], got[i])
		}
	}

	var prev int64
	for _, m := range h.convs.appended {
		if m.Seq <= prev {
			t.Fatalf("seq not strictly increasing: %d after %d", m.Seq, prev)
		}
		prev = m.Seq
	}
}

func TestAskAllToolsFailedStillAnswers(t *testing.T) {
	policy := StaticToolPolicy{Tools: []answer.ToolKind{answer.ToolWebSearch}}
	h := newAskHarness(t, policy)
	h.runner.results[answer.ToolWebSearch] = answer.ToolInvocation{Err: "context deadline exceeded"}

	res, err := h.orch.Ask(dbctx.Context{Ctx: context.Background()}, AskRequest{
		UserID: uuid.New(), Query: "latest Go release?", UseTools: true,
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if res.Mode != answer.ModeToolUseFailed {
		t.Fatalf("mode: want=%s got=%s", answer.ModeToolUseFailed, res.Mode)
	}
	if res.Answer == "" {
		t.Fatal("expected a best-effort answer")
	}
}

func TestAskEmptyRAGScopeIsNotUsableSignal(t *testing.T) {
	policy := StaticToolPolicy{Tools: []answer.ToolKind{answer.ToolRAG}}
	h := newAskHarness(t, policy)
	h.runner.results[answer.ToolRAG] = answer.ToolInvocation{
		Result: map[string]any{"context": "", "sources": []any{}},
	}

	res, err := h.orch.Ask(dbctx.Context{Ctx: context.Background()}, AskRequest{
		UserID: uuid.New(), Query: "what is RAG?", UseTools: true, PreferredTools: []string{"rag"},
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if res.Mode != answer.ModeToolUseFailed {
		t.Fatalf("mode: want=%s got=%s", answer.ModeToolUseFailed, res.Mode)
	}
}

func TestAskGenerationFailure(t *testing.T) {
	h := newAskHarness(t, nil)
	h.ai.chatErr = fmt.Errorf("model unavailable")

	res, err := h.orch.Ask(dbctx.Context{Ctx: context.Background()}, AskRequest{
		UserID: uuid.New(), Query: "hello", UseTools: false,
	})
	if !errors.Is(err, errs.ErrGenerationFailure) {
		t.Fatalf("want ErrGenerationFailure, got %v", err)
	}
	if res.Mode != answer.ModeFailedGeneral {
		t.Fatalf("mode: want=%s got=%s", answer.ModeFailedGeneral, res.Mode)
	}
	for _, m := range h.convs.appended {
		if m.Role == convo.RoleAssistant {
			t.Fatal("assistant message appended despite generation failure")
		}
	}
	// The user message already written stays: no rollback of history.
	if len(h.convs.appended) != 1 || h.convs.appended[0].Role != convo.RoleUser {
		t.Fatalf("appended roles: got=%v", roles(h.convs.appended))
	}
}

func TestAskConfigurationMissing(t *testing.T) {
	h := newAskHarness(t, nil)
	h.resolver.err = errs.ErrConfigurationMissing

	_, err := h.orch.Ask(dbctx.Context{Ctx: context.Background()}, AskRequest{
		UserID: uuid.New(), Query: "hello", UseTools: true,
	})
	if !errors.Is(err, errs.ErrConfigurationMissing) {
		t.Fatalf("want ErrConfigurationMissing, got %v", err)
	}
	if len(h.convs.appended) != 0 {
		t.Fatalf("messages appended before config resolution: %v", roles(h.convs.appended))
	}
	if h.runner.callCount() != 0 {
		t.Fatal("tools invoked despite missing configuration")
	}
}

func TestAskTurnAlreadyInFlight(t *testing.T) {
	h := newAskHarness(t, nil)
	h.locker.err = errors.New("conversation turn already in flight")

	_, err := h.orch.Ask(dbctx.Context{Ctx: context.Background()}, AskRequest{
		UserID: uuid.New(), Query: "hello",
	})
	if err == nil {
		t.Fatal("expected lock error")
	}
	if len(h.convs.appended) != 0 {
		t.Fatal("messages appended while another turn held the lock")
	}
}

func TestAskReleasesLock(t *testing.T) {
	h := newAskHarness(t, nil)
	if _, err := h.orch.Ask(dbctx.Context{Ctx: context.Background()}, AskRequest{
		UserID: uuid.New(), Query: "hello",
	}); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if h.locker.acquired != 1 || h.locker.released != 1 {
		t.Fatalf("lock lifecycle: acquired=%d released=%d", h.locker.acquired, h.locker.released)
	}
}
