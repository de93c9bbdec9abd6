package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/peerspark/peerspark-backend/internal/domain/answer"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
	"github.com/peerspark/peerspark-backend/internal/platform/openai"
)

// ToolSelectionPolicy decides which tools a turn should invoke. It sees only
// tools that are actually available to the user, plus the caller's preference
// hints. Selecting zero tools is a valid outcome (direct answer).
type ToolSelectionPolicy interface {
	SelectTools(ctx context.Context, query string, available, preferred []answer.ToolKind) ([]answer.ToolKind, error)
}

// StaticToolPolicy is deterministic: preferred tools that are available, or
// all of Tools that are available when no preference was given. Used in tests
// and as the fallback when the model-backed policy fails.
type StaticToolPolicy struct {
	Tools []answer.ToolKind
}

func (p StaticToolPolicy) SelectTools(_ context.Context, _ string, available, preferred []answer.ToolKind) ([]answer.ToolKind, error) {
	want := preferred
	if len(want) == 0 {
		want = p.Tools
	}
	return intersectKinds(want, available), nil
}

type llmToolPolicy struct {
	log *logger.Logger
	ai  openai.Client
}

// NewLLMToolPolicy asks the generation model to pick tools via structured
// output. Policy failures degrade to the preference hints rather than
// failing the turn.
func NewLLMToolPolicy(ai openai.Client, baseLog *logger.Logger) ToolSelectionPolicy {
	return &llmToolPolicy{log: baseLog.With("service", "ToolSelectionPolicy"), ai: ai}
}

const toolPolicySystemPrompt = "You decide which tools, if any, an assistant on a student collaboration platform should call before answering. Pick rag for questions about the user's own study materials, web_search for current or external facts, mcp_tool when the user's registered external tool clearly applies. Pick none when the question is answerable directly. Respond with JSON only."

func (p *llmToolPolicy) SelectTools(ctx context.Context, query string, available, preferred []answer.ToolKind) ([]answer.ToolKind, error) {
	if len(available) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(available))
	for _, k := range available {
		names = append(names, string(k))
	}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tools": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "enum": names},
			},
		},
		"required":             []string{"tools"},
		"additionalProperties": false,
	}

	user := fmt.Sprintf("Question: %s\nAvailable tools: %s", query, strings.Join(names, ", "))
	if len(preferred) > 0 {
		hints := make([]string, 0, len(preferred))
		for _, k := range preferred {
			hints = append(hints, string(k))
		}
		user += fmt.Sprintf("\nThe caller suggests: %s. Favor these when plausible, but you may pick others or none.", strings.Join(hints, ", "))
	}

	out, err := p.ai.GenerateJSON(ctx, toolPolicySystemPrompt, user, "tool_selection", schema)
	if err != nil {
		p.log.Warn("tool selection call failed, falling back to hints", "error", err)
		return intersectKinds(preferred, available), nil
	}

	raw, _ := out["tools"].([]any)
	var picked []answer.ToolKind
	for _, v := range raw {
		s, _ := v.(string)
		kind, ok := answer.ParseToolKind(s)
		if !ok {
			continue
		}
		picked = append(picked, kind)
	}
	return intersectKinds(picked, available), nil
}

// intersectKinds keeps want's order, drops anything unavailable, dedupes.
func intersectKinds(want, available []answer.ToolKind) []answer.ToolKind {
	avail := make(map[answer.ToolKind]struct{}, len(available))
	for _, k := range available {
		avail[k] = struct{}{}
	}
	var out []answer.ToolKind
	seen := make(map[answer.ToolKind]struct{}, len(want))
	for _, k := range want {
		if _, ok := avail[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
