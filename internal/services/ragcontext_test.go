package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/domain"
	"github.com/peerspark/peerspark-backend/internal/domain/match"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
)

func chunkCandidate(title, content string, sim float64) match.Candidate {
	id := uuid.New()
	return match.Candidate{
		EntityID:   id,
		EntityType: domain.EntityKnowledgeChunk,
		Similarity: sim,
		Snapshot: match.Snapshot{
			EntityID:   id,
			EntityType: domain.EntityKnowledgeChunk,
			Title:      title,
			Summary:    content,
		},
	}
}

func TestBuildContextEmptyScope(t *testing.T) {
	retrieval := &fakeRetrieval{}
	svc := NewRAGService(retrieval, testLogger(t))

	got, err := svc.BuildContext(dbctx.Context{Ctx: context.Background()}, "what is RAG?", nil, nil, 5, 1000)
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if !got.Empty() {
		t.Fatalf("empty scope should yield empty context, got %q", got.Text)
	}
	if retrieval.queries != 0 {
		t.Fatalf("retrieval ran despite empty scope: %d queries", retrieval.queries)
	}
}

func TestBuildContextRankOrderAndAttribution(t *testing.T) {
	retrieval := &fakeRetrieval{
		byType: map[domain.EntityType][]match.Candidate{
			domain.EntityKnowledgeChunk: {
				chunkCandidate("Vectors", "Vectors encode meaning.", 0.7),
				chunkCandidate("Retrieval", "Retrieval finds relevant text.", 0.9),
			},
		},
	}
	svc := NewRAGService(retrieval, testLogger(t))

	got, err := svc.BuildContext(dbctx.Context{Ctx: context.Background()}, "what is retrieval?",
		[]uuid.UUID{uuid.New()}, nil, 5, 4000)
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("sources: want=2 got=%d", len(got.Sources))
	}
	if got.Sources[0].Title != "Retrieval" || got.Sources[1].Title != "Vectors" {
		t.Fatalf("sources not in similarity order: %v, %v", got.Sources[0].Title, got.Sources[1].Title)
	}
	if !strings.Contains(got.Text, "[source 1] Retrieval") || !strings.Contains(got.Text, "[source 2] Vectors") {
		t.Fatalf("missing source tags:\n%s", got.Text)
	}
	if strings.Index(got.Text, "Retrieval finds") > strings.Index(got.Text, "Vectors encode") {
		t.Fatal("chunk bodies not in rank order")
	}
}

func TestBuildContextRespectsBudget(t *testing.T) {
	long := strings.Repeat("retrieval augmented generation ", 50)
	retrieval := &fakeRetrieval{
		byType: map[domain.EntityType][]match.Candidate{
			domain.EntityKnowledgeChunk: {
				chunkCandidate("A", long, 0.9),
				chunkCandidate("B", long, 0.8),
				chunkCandidate("C", long, 0.7),
			},
		},
	}
	svc := NewRAGService(retrieval, testLogger(t))

	budget := 600
	got, err := svc.BuildContext(dbctx.Context{Ctx: context.Background()}, "rag",
		[]uuid.UUID{uuid.New()}, nil, 5, budget)
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if len(got.Text) > budget {
		t.Fatalf("budget exceeded: %d > %d", len(got.Text), budget)
	}
	// The top-ranked chunk survives; the lowest-ranked is dropped first.
	if !strings.Contains(got.Text, "[source 1] A") {
		t.Fatal("top chunk missing from packed context")
	}
	if strings.Contains(got.Text, "[source 3] C") {
		t.Fatal("lowest-ranked chunk should have been dropped by the budget")
	}
}

func TestBuildContextTopNCap(t *testing.T) {
	retrieval := &fakeRetrieval{
		byType: map[domain.EntityType][]match.Candidate{
			domain.EntityKnowledgeChunk: {
				chunkCandidate("A", "a", 0.9),
				chunkCandidate("B", "b", 0.8),
				chunkCandidate("C", "c", 0.7),
			},
		},
	}
	svc := NewRAGService(retrieval, testLogger(t))

	got, err := svc.BuildContext(dbctx.Context{Ctx: context.Background()}, "q",
		[]uuid.UUID{uuid.New()}, nil, 2, 4000)
	if err != nil {
		t.Fatalf("build context: %v", err)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("topN cap: want=2 got=%d", len(got.Sources))
	}
}
