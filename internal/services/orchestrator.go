package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	redisclients "github.com/peerspark/peerspark-backend/internal/clients/redis"
	"github.com/peerspark/peerspark-backend/internal/data/repos"
	"github.com/peerspark/peerspark-backend/internal/domain/answer"
	"github.com/peerspark/peerspark-backend/internal/domain/convo"
	"github.com/peerspark/peerspark-backend/internal/domain/llmcfg"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/pkg/errs"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
	"github.com/peerspark/peerspark-backend/internal/platform/openai"
)

const (
	turnLockTTL      = 2 * time.Minute
	historyWindow    = 20
	maxParallelTools = 3
)

// AskRequest is one orchestrated question-answering turn.
type AskRequest struct {
	UserID         uuid.UUID
	ConversationID *uuid.UUID
	Query          string

	KBIDs   []uuid.UUID
	NoteIDs []uuid.UUID

	UseTools       bool
	PreferredTools []string
	LLMModelID     string
}

// Orchestrator runs the per-turn state machine: resolve config, lock the
// conversation, decide on tools, execute them in parallel, synthesize, and
// classify the outcome. Messages append in execution order and are never
// rolled back, even when a later step fails.
type Orchestrator interface {
	Ask(dbc dbctx.Context, req AskRequest) (answer.AskResult, error)
}

type orchestrator struct {
	log *logger.Logger

	configs       ConfigResolver
	conversations ConversationService
	toolConfigs   repos.UserToolConfigRepo
	policy        ToolSelectionPolicy
	runner        ToolRunner
	ai            openai.Client
	locks         redisclients.TurnLocker
}

func NewOrchestrator(
	configs ConfigResolver,
	conversations ConversationService,
	toolConfigs repos.UserToolConfigRepo,
	policy ToolSelectionPolicy,
	runner ToolRunner,
	ai openai.Client,
	locks redisclients.TurnLocker,
	baseLog *logger.Logger,
) Orchestrator {
	return &orchestrator{
		log:           baseLog.With("service", "Orchestrator"),
		configs:       configs,
		conversations: conversations,
		toolConfigs:   toolConfigs,
		policy:        policy,
		runner:        runner,
		ai:            ai,
		locks:         locks,
	}
}

func (o *orchestrator) Ask(dbc dbctx.Context, req AskRequest) (answer.AskResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return answer.AskResult{}, fmt.Errorf("%w: empty query", errs.ErrInvalidArgument)
	}
	if req.UserID == uuid.Nil {
		return answer.AskResult{}, fmt.Errorf("%w: user required", errs.ErrInvalidArgument)
	}

	// Configuration failures surface before any message or tool call.
	cfg, err := o.configs.Resolve(dbc, req.UserID, req.LLMModelID)
	if err != nil {
		return answer.AskResult{}, err
	}
	ai := openai.WithConfig(o.ai, cfg)

	conv, err := o.conversations.EnsureConversation(dbc, req.UserID, req.ConversationID, query)
	if err != nil {
		return answer.AskResult{}, err
	}

	// One in-flight turn per conversation; turns on other conversations
	// never contend.
	release, err := o.locks.Acquire(dbc.Ctx, conv.ID, turnLockTTL)
	if err != nil {
		return answer.AskResult{}, err
	}
	defer release()

	history, err := o.conversations.History(dbc, req.UserID, conv.ID, historyWindow)
	if err != nil {
		return answer.AskResult{}, err
	}

	var turn []convo.Message
	appendTurn := func(msgs ...*convo.Message) error {
		created, err := o.conversations.AppendMessages(dbc, conv.ID, req.UserID, msgs)
		if err != nil {
			return err
		}
		for _, m := range created {
			turn = append(turn, *m)
		}
		return nil
	}

	if err := appendTurn(&convo.Message{Role: convo.RoleUser, Content: query}); err != nil {
		return answer.AskResult{}, err
	}

	// Deciding: tools are off the table entirely when the caller said so,
	// whatever the preference hints claim.
	var selected []answer.ToolKind
	if req.UseTools {
		available, mcpConfig, err := o.availableTools(dbc, req.UserID)
		if err != nil {
			return answer.AskResult{}, err
		}
		preferred := parsePreferred(req.PreferredTools)
		selected, err = o.policy.SelectTools(dbc.Ctx, query, available, preferred)
		if err != nil {
			o.log.Warn("tool selection failed, degrading to hints", "error", err)
			selected = intersectKinds(preferred, available)
		}

		if len(selected) > 0 {
			invocations, err := o.executeTools(dbc, req, query, selected, mcpConfig, appendTurn)
			if err != nil {
				return answer.AskResult{Mode: answer.ModeFailedGeneral, TurnMessages: turn}, err
			}
			return o.synthesize(dbc, ai, query, history, invocations, turn, appendTurn)
		}
	}

	return o.synthesize(dbc, ai, query, history, nil, turn, appendTurn)
}

// availableTools assembles the per-user tool catalog: rag always, web_search
// when a provider is wired, mcp_tool when the user registered an enabled
// endpoint.
func (o *orchestrator) availableTools(dbc dbctx.Context, userID uuid.UUID) ([]answer.ToolKind, *llmcfg.UserToolConfig, error) {
	var kinds []answer.ToolKind
	if o.runner.Supports(answer.ToolRAG) {
		kinds = append(kinds, answer.ToolRAG)
	}
	if o.runner.Supports(answer.ToolWebSearch) {
		kinds = append(kinds, answer.ToolWebSearch)
	}

	rows, err := o.toolConfigs.ListEnabledByUser(dbc, userID)
	if err != nil {
		return nil, nil, err
	}
	var mcpConfig *llmcfg.UserToolConfig
	if len(rows) > 0 && o.runner.Supports(answer.ToolMCP) {
		mcpConfig = rows[0]
		kinds = append(kinds, answer.ToolMCP)
	}
	return kinds, mcpConfig, nil
}

// executeTools appends the tool_call messages, fans the calls out, then
// appends one tool_output per call in the same order. Tool failures are
// folded into invocations; only message persistence can fail here.
func (o *orchestrator) executeTools(
	dbc dbctx.Context,
	req AskRequest,
	query string,
	selected []answer.ToolKind,
	mcpConfig *llmcfg.UserToolConfig,
	appendTurn func(...*convo.Message) error,
) ([]answer.ToolInvocation, error) {
	toolReqs := make([]ToolRequest, len(selected))
	callMsgs := make([]*convo.Message, len(selected))
	for i, kind := range selected {
		toolReqs[i] = ToolRequest{
			Kind:    kind,
			Query:   query,
			KBIDs:   req.KBIDs,
			NoteIDs: req.NoteIDs,
		}
		if kind == answer.ToolMCP {
			toolReqs[i].ToolConfig = mcpConfig
		}

		payload, _ := json.Marshal(map[string]any{
			"tool_kind": string(kind),
			"request":   requestPayload(toolReqs[i]),
		})
		callMsgs[i] = &convo.Message{
			Role:      convo.RoleToolCall,
			Content:   fmt.Sprintf("calling %s", kind),
			ToolCalls: payload,
		}
	}
	if err := appendTurn(callMsgs...); err != nil {
		return nil, err
	}

	invocations := make([]answer.ToolInvocation, len(selected))
	g, gctx := errgroup.WithContext(dbc.Ctx)
	g.SetLimit(maxParallelTools)
	for i := range toolReqs {
		g.Go(func() error {
			invocations[i] = o.runner.Run(dbctx.Context{Ctx: gctx, Tx: dbc.Tx}, toolReqs[i])
			return nil
		})
	}
	_ = g.Wait()

	outMsgs := make([]*convo.Message, len(invocations))
	for i, inv := range invocations {
		raw, _ := json.Marshal(inv)
		content := fmt.Sprintf("%s returned", inv.Kind)
		if !inv.Succeeded() {
			content = fmt.Sprintf("%s failed: %s", inv.Kind, inv.Err)
		}
		outMsgs[i] = &convo.Message{
			Role:       convo.RoleToolOutput,
			Content:    content,
			ToolOutput: raw,
		}
	}
	if err := appendTurn(outMsgs...); err != nil {
		return nil, err
	}
	return invocations, nil
}

const askSystemPrompt = "You are the PeerSpark study assistant. Answer the student's question directly and concisely. When tool results are provided, ground your answer in them and cite sources by their [source N] tags; when a tool failed or returned nothing, answer from general knowledge without mentioning internal tooling."

func (o *orchestrator) synthesize(
	dbc dbctx.Context,
	ai openai.Client,
	query string,
	history []*convo.Message,
	invocations []answer.ToolInvocation,
	turn []convo.Message,
	appendTurn func(...*convo.Message) error,
) (answer.AskResult, error) {
	msgs := []openai.Message{{Role: "system", Content: askSystemPrompt}}
	for _, h := range history {
		switch h.Role {
		case convo.RoleUser:
			msgs = append(msgs, openai.Message{Role: "user", Content: h.Content})
		case convo.RoleAssistant:
			msgs = append(msgs, openai.Message{Role: "assistant", Content: h.Content})
		}
	}
	msgs = append(msgs, openai.Message{Role: "user", Content: composeUserTurn(query, invocations)})

	res, err := ai.ChatComplete(dbc.Ctx, openai.ChatRequest{Messages: msgs})
	if err != nil || strings.TrimSpace(res.Content) == "" {
		// Terminal failure: whatever was appended so far stays.
		if err == nil {
			err = fmt.Errorf("empty completion")
		}
		return answer.AskResult{Mode: answer.ModeFailedGeneral, TurnMessages: turn, Invocations: invocations},
			fmt.Errorf("%w: %v", errs.ErrGenerationFailure, err)
	}
	final := strings.TrimSpace(res.Content)

	if err := appendTurn(&convo.Message{Role: convo.RoleAssistant, Content: final}); err != nil {
		return answer.AskResult{}, err
	}

	return answer.AskResult{
		Answer:       final,
		Mode:         classifyMode(invocations),
		TurnMessages: turn,
		Invocations:  invocations,
	}, nil
}

func composeUserTurn(query string, invocations []answer.ToolInvocation) string {
	if len(invocations) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString(query)
	b.WriteString("\n\nTool results:\n")
	for _, inv := range invocations {
		if inv.Succeeded() {
			raw, _ := json.Marshal(inv.Result)
			fmt.Fprintf(&b, "- %s: %s\n", inv.Kind, raw)
		} else {
			fmt.Fprintf(&b, "- %s: error: %s\n", inv.Kind, inv.Err)
		}
	}
	return b.String()
}

func classifyMode(invocations []answer.ToolInvocation) answer.Mode {
	if len(invocations) == 0 {
		return answer.ModeGeneral
	}
	for _, inv := range invocations {
		if HasUsableOutput(inv) {
			return answer.ModeToolUse
		}
	}
	return answer.ModeToolUseFailed
}

func parsePreferred(hints []string) []answer.ToolKind {
	var out []answer.ToolKind
	for _, h := range hints {
		if kind, ok := answer.ParseToolKind(strings.TrimSpace(h)); ok {
			out = append(out, kind)
		}
	}
	return out
}
