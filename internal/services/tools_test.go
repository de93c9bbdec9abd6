package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/domain/answer"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/platform/websearch"
)

type hangingRAG struct{}

func (hangingRAG) BuildContext(dbc dbctx.Context, _ string, _, _ []uuid.UUID, _, _ int) (RAGContext, error) {
	<-dbc.Ctx.Done()
	return RAGContext{}, dbc.Ctx.Err()
}

type hangingSearch struct{}

func (hangingSearch) Search(ctx context.Context, _ string, _ int) ([]websearch.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunDeadlinesHungTool(t *testing.T) {
	r := &toolRunner{
		log:     testLogger(t),
		rag:     hangingRAG{},
		search:  hangingSearch{},
		timeout: 50 * time.Millisecond,
	}
	dbc := dbctx.Context{Ctx: context.Background()}

	for _, kind := range []answer.ToolKind{answer.ToolRAG, answer.ToolWebSearch} {
		start := time.Now()
		inv := r.Run(dbc, ToolRequest{Kind: kind, Query: "anything"})
		elapsed := time.Since(start)

		if elapsed > 5*time.Second {
			t.Fatalf("%s: Run took %v, hung past its deadline", kind, elapsed)
		}
		if inv.Err == "" {
			t.Fatalf("%s: expected error-tagged invocation, got success", kind)
		}
		if inv.Latency < 50*time.Millisecond {
			t.Fatalf("%s: latency %v shorter than the deadline", kind, inv.Latency)
		}
		if HasUsableOutput(inv) {
			t.Fatalf("%s: deadlined invocation must not count as usable output", kind)
		}
	}
}

func TestRunMCPWithoutUserConfig(t *testing.T) {
	r := &toolRunner{log: testLogger(t), rag: hangingRAG{}, timeout: time.Second}
	inv := r.Run(dbctx.Context{Ctx: context.Background()}, ToolRequest{Kind: answer.ToolMCP, Query: "q"})
	if inv.Err == "" {
		t.Fatalf("expected error-tagged invocation for unconfigured mcp tool")
	}
}
