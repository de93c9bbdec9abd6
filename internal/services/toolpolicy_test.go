package services

import (
	"context"
	"testing"

	"github.com/peerspark/peerspark-backend/internal/domain/answer"
)

func TestStaticToolPolicyPrefersHints(t *testing.T) {
	policy := StaticToolPolicy{Tools: []answer.ToolKind{answer.ToolRAG}}
	available := []answer.ToolKind{answer.ToolRAG, answer.ToolWebSearch}

	got, err := policy.SelectTools(context.Background(), "q", available,
		[]answer.ToolKind{answer.ToolWebSearch, answer.ToolWebSearch, answer.ToolMCP})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	// Duplicates collapse, unavailable kinds drop.
	if len(got) != 1 || got[0] != answer.ToolWebSearch {
		t.Fatalf("want [web_search], got %v", got)
	}

	got, err = policy.SelectTools(context.Background(), "q", available, nil)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 1 || got[0] != answer.ToolRAG {
		t.Fatalf("want [rag] from defaults, got %v", got)
	}
}

func TestHasUsableOutput(t *testing.T) {
	cases := []struct {
		name string
		inv  answer.ToolInvocation
		want bool
	}{
		{"failed", answer.ToolInvocation{Kind: answer.ToolRAG, Err: "boom"}, false},
		{"rag with context", answer.ToolInvocation{Kind: answer.ToolRAG, Result: map[string]any{"context": "x"}}, true},
		{"rag empty context", answer.ToolInvocation{Kind: answer.ToolRAG, Result: map[string]any{"context": ""}}, false},
		{"search with hits", answer.ToolInvocation{Kind: answer.ToolWebSearch, Result: map[string]any{"results": []any{map[string]any{"url": "u"}}}}, true},
		{"search empty", answer.ToolInvocation{Kind: answer.ToolWebSearch, Result: map[string]any{"results": []any{}}}, false},
		{"mcp with payload", answer.ToolInvocation{Kind: answer.ToolMCP, Result: map[string]any{"value": 1}}, true},
		{"mcp empty", answer.ToolInvocation{Kind: answer.ToolMCP, Result: map[string]any{}}, false},
	}
	for _, tc := range cases {
		if got := HasUsableOutput(tc.inv); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}
