package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/domain/answer"
	"github.com/peerspark/peerspark-backend/internal/domain/llmcfg"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
	"github.com/peerspark/peerspark-backend/internal/platform/mcptool"
	"github.com/peerspark/peerspark-backend/internal/platform/websearch"
	"github.com/peerspark/peerspark-backend/internal/utils"
)

const webSearchResultLimit = 5

// ToolRequest is one tool execution order within a turn.
type ToolRequest struct {
	Kind  answer.ToolKind
	Query string

	// RAG scope.
	KBIDs   []uuid.UUID
	NoteIDs []uuid.UUID

	// MCP target; required for ToolMCP.
	ToolConfig *llmcfg.UserToolConfig
}

// ToolRunner executes one tool call under the per-tool timeout. Failures and
// timeouts come back as error-tagged invocations, never as Go errors: a hung
// or broken tool must not abort the turn.
type ToolRunner interface {
	Run(dbc dbctx.Context, req ToolRequest) answer.ToolInvocation

	// Supports reports whether the deployment has a provider wired for the
	// kind. Unsupported kinds never reach the selection policy.
	Supports(kind answer.ToolKind) bool
}

type toolRunner struct {
	log     *logger.Logger
	rag     RAGService
	search  websearch.Client
	mcp     mcptool.Client
	timeout time.Duration
}

// NewToolRunner wires the three tool kinds. search and mcp may be nil when
// the deployment has no provider configured; those kinds then fail fast.
func NewToolRunner(rag RAGService, search websearch.Client, mcp mcptool.Client, baseLog *logger.Logger) ToolRunner {
	log := baseLog.With("service", "ToolRunner")
	timeout := time.Duration(utils.GetEnvAsInt("TOOL_TIMEOUT_SECONDS", 30, log)) * time.Second
	return &toolRunner{log: log, rag: rag, search: search, mcp: mcp, timeout: timeout}
}

func (r *toolRunner) Supports(kind answer.ToolKind) bool {
	switch kind {
	case answer.ToolRAG:
		return r.rag != nil
	case answer.ToolWebSearch:
		return r.search != nil
	case answer.ToolMCP:
		return r.mcp != nil
	}
	return false
}

func (r *toolRunner) Run(dbc dbctx.Context, req ToolRequest) answer.ToolInvocation {
	start := time.Now()
	ctx, cancel := context.WithTimeout(dbc.Ctx, r.timeout)
	defer cancel()

	inv := answer.ToolInvocation{Kind: req.Kind, Request: requestPayload(req)}

	var (
		result map[string]any
		err    error
	)
	switch req.Kind {
	case answer.ToolRAG:
		result, err = r.runRAG(dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, req)
	case answer.ToolWebSearch:
		result, err = r.runWebSearch(ctx, req)
	case answer.ToolMCP:
		result, err = r.runMCP(ctx, req)
	default:
		err = fmt.Errorf("unknown tool kind %q", req.Kind)
	}

	inv.Latency = time.Since(start)
	if err != nil {
		r.log.Warn("tool invocation failed", "tool_kind", req.Kind, "latency", inv.Latency, "error", err)
		inv.Err = err.Error()
		return inv
	}
	inv.Result = result
	return inv
}

func (r *toolRunner) runRAG(dbc dbctx.Context, req ToolRequest) (map[string]any, error) {
	ragCtx, err := r.rag.BuildContext(dbc, req.Query, req.KBIDs, req.NoteIDs, 0, 0)
	if err != nil {
		return nil, err
	}
	sources := make([]map[string]any, 0, len(ragCtx.Sources))
	for _, s := range ragCtx.Sources {
		sources = append(sources, map[string]any{
			"entity_id":   s.EntityID.String(),
			"entity_type": string(s.EntityType),
			"title":       s.Title,
			"similarity":  s.Similarity,
		})
	}
	return map[string]any{
		"context": ragCtx.Text,
		"sources": sources,
	}, nil
}

func (r *toolRunner) runWebSearch(ctx context.Context, req ToolRequest) (map[string]any, error) {
	if r.search == nil {
		return nil, fmt.Errorf("no web search provider configured")
	}
	results, err := r.search.Search(ctx, req.Query, webSearchResultLimit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(results))
	for _, res := range results {
		items = append(items, map[string]any{
			"title":   res.Title,
			"url":     res.URL,
			"snippet": res.Snippet,
		})
	}
	return map[string]any{"results": items}, nil
}

func (r *toolRunner) runMCP(ctx context.Context, req ToolRequest) (map[string]any, error) {
	if r.mcp == nil {
		return nil, fmt.Errorf("no mcp client configured")
	}
	if req.ToolConfig == nil {
		return nil, fmt.Errorf("no mcp tool configured for user")
	}
	return r.mcp.CallTool(ctx, req.ToolConfig.Endpoint, req.ToolConfig.Name, map[string]any{"query": req.Query})
}

func requestPayload(req ToolRequest) map[string]any {
	payload := map[string]any{"query": req.Query}
	if len(req.KBIDs) > 0 {
		payload["kb_ids"] = uuidStrings(req.KBIDs)
	}
	if len(req.NoteIDs) > 0 {
		payload["note_ids"] = uuidStrings(req.NoteIDs)
	}
	if req.ToolConfig != nil {
		payload["tool_name"] = req.ToolConfig.Name
		payload["endpoint"] = req.ToolConfig.Endpoint
	}
	return payload
}

// HasUsableOutput reports whether an invocation yielded signal worth folding
// into the answer. A successful RAG call over an empty scope, for instance,
// carries no signal.
func HasUsableOutput(inv answer.ToolInvocation) bool {
	if !inv.Succeeded() {
		return false
	}
	switch inv.Kind {
	case answer.ToolRAG:
		text, _ := inv.Result["context"].(string)
		return text != ""
	case answer.ToolWebSearch:
		items, _ := inv.Result["results"].([]map[string]any)
		if len(items) > 0 {
			return true
		}
		anyItems, _ := inv.Result["results"].([]any)
		return len(anyItems) > 0
	default:
		return len(inv.Result) > 0
	}
}
