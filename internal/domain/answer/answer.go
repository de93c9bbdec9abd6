package answer

import (
	"time"

	"github.com/peerspark/peerspark-backend/internal/domain/convo"
)

// Mode classifies how a turn's answer was produced.
type Mode string

const (
	// ModeGeneral means no tools were invoked and generation succeeded.
	ModeGeneral Mode = "General_mode"
	// ModeToolUse means at least one tool succeeded and was folded into the answer.
	ModeToolUse Mode = "Tool_Use_mode"
	// ModeToolUseFailed means tools ran but none yielded usable output; the
	// answer is the model's best effort without them.
	ModeToolUseFailed Mode = "Tool_Use_Failed_Answer"
	// ModeFailedGeneral means the completion call itself failed.
	ModeFailedGeneral Mode = "Failed_General_mode"
)

// ToolKind names the orchestrator's invokable tools.
type ToolKind string

const (
	ToolRAG       ToolKind = "rag"
	ToolWebSearch ToolKind = "web_search"
	ToolMCP       ToolKind = "mcp_tool"
)

func ParseToolKind(s string) (ToolKind, bool) {
	switch ToolKind(s) {
	case ToolRAG, ToolWebSearch, ToolMCP:
		return ToolKind(s), true
	}
	return "", false
}

// ToolInvocation is the transient record of one tool call within a turn.
type ToolInvocation struct {
	Kind    ToolKind       `json:"tool_kind"`
	Request map[string]any `json:"request_payload,omitempty"`
	Result  map[string]any `json:"result_payload,omitempty"`
	Err     string         `json:"error,omitempty"`
	Latency time.Duration  `json:"latency"`
}

func (ti ToolInvocation) Succeeded() bool { return ti.Err == "" }

// AskResult is the structured outcome of one orchestrated turn.
type AskResult struct {
	Answer       string           `json:"answer"`
	Mode         Mode             `json:"answer_mode"`
	TurnMessages []convo.Message  `json:"turn_messages"`
	Invocations  []ToolInvocation `json:"tool_invocations,omitempty"`
}
