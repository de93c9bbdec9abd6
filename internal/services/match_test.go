package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/domain"
	"github.com/peerspark/peerspark-backend/internal/domain/match"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/pkg/errs"
)

type fakeRetrieval struct {
	byType  map[domain.EntityType][]match.Candidate
	seed    match.Snapshot
	seedErr error
	queries int
}

func (f *fakeRetrieval) CandidatesForQuery(_ dbctx.Context, _ string, target domain.EntityType, initialK int, _ map[string]any) ([]match.Candidate, error) {
	f.queries++
	cands := f.byType[target]
	if len(cands) > initialK {
		cands = cands[:initialK]
	}
	return cands, nil
}

func (f *fakeRetrieval) CandidatesForEntity(_ dbctx.Context, _ domain.EntityType, _ uuid.UUID, target domain.EntityType, initialK int) (match.Snapshot, []match.Candidate, error) {
	if f.seedErr != nil {
		return match.Snapshot{}, nil, f.seedErr
	}
	cands := f.byType[target]
	if len(cands) > initialK {
		cands = cands[:initialK]
	}
	return f.seed, cands, nil
}

type fakeMatchCache struct {
	store map[string][]match.Ranked
	hits  int
}

func (f *fakeMatchCache) Get(_ context.Context, key string) ([]match.Ranked, bool) {
	v, ok := f.store[key]
	if ok {
		f.hits++
	}
	return v, ok
}

func (f *fakeMatchCache) Set(_ context.Context, key string, results []match.Ranked) {
	f.store[key] = results
}

func (f *fakeMatchCache) Close() error { return nil }

func projectCandidate(sim float64) match.Candidate {
	id := uuid.New()
	return match.Candidate{
		EntityID:   id,
		EntityType: domain.EntityProject,
		Similarity: sim,
		Snapshot:   match.Snapshot{EntityID: id, EntityType: domain.EntityProject, Title: "p"},
	}
}

func TestMatchReturnsAvailableNotFinalK(t *testing.T) {
	retrieval := &fakeRetrieval{
		seed: match.Snapshot{EntityID: uuid.New(), EntityType: domain.EntityStudent},
		byType: map[domain.EntityType][]match.Candidate{
			domain.EntityProject: {projectCandidate(0.9), projectCandidate(0.8)},
		},
	}
	svc := NewMatchService(retrieval, nil, nil, testLogger(t))

	got, err := svc.Match(dbctx.Context{Ctx: context.Background()}, MatchRequest{
		SeedType:   domain.EntityStudent,
		SeedID:     uuid.New(),
		TargetType: domain.EntityProject,
		InitialK:   50,
		FinalK:     3,
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want exactly the 2 available candidates, got %d", len(got))
	}
}

func TestMatchSeedWithoutEmbedding(t *testing.T) {
	retrieval := &fakeRetrieval{seedErr: errs.ErrNoEmbeddingAvailable}
	svc := NewMatchService(retrieval, nil, nil, testLogger(t))

	_, err := svc.Match(dbctx.Context{Ctx: context.Background()}, MatchRequest{
		SeedType:   domain.EntityStudent,
		SeedID:     uuid.New(),
		TargetType: domain.EntityProject,
	})
	if !errors.Is(err, errs.ErrNoEmbeddingAvailable) {
		t.Fatalf("want ErrNoEmbeddingAvailable, got %v", err)
	}
}

func TestMatchValidation(t *testing.T) {
	svc := NewMatchService(&fakeRetrieval{}, nil, nil, testLogger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	// Neither query nor seed.
	_, err := svc.Match(dbc, MatchRequest{TargetType: domain.EntityProject})
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}

	// Both query and seed.
	_, err = svc.Match(dbc, MatchRequest{
		Query: "go", SeedType: domain.EntityStudent, SeedID: uuid.New(),
		TargetType: domain.EntityProject,
	})
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}

	// Unknown target type.
	_, err = svc.Match(dbc, MatchRequest{Query: "go", TargetType: "folder"})
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestMatchUsesCache(t *testing.T) {
	retrieval := &fakeRetrieval{
		byType: map[domain.EntityType][]match.Candidate{
			domain.EntityProject: {projectCandidate(0.9)},
		},
	}
	cache := &fakeMatchCache{store: map[string][]match.Ranked{}}
	svc := NewMatchService(retrieval, nil, cache, testLogger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	req := MatchRequest{Query: "distributed systems", TargetType: domain.EntityProject}

	first, err := svc.Match(dbc, req)
	if err != nil {
		t.Fatalf("first match: %v", err)
	}
	second, err := svc.Match(dbc, req)
	if err != nil {
		t.Fatalf("second match: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("cache hits: want=1 got=%d", cache.hits)
	}
	if retrieval.queries != 1 {
		t.Fatalf("retrieval calls: want=1 got=%d", retrieval.queries)
	}
	if len(first) != len(second) || first[0].EntityID != second[0].EntityID {
		t.Fatal("cached result differs from computed result")
	}
}

func TestSemanticSearchUnionAndLimit(t *testing.T) {
	course := uuid.New()
	retrieval := &fakeRetrieval{
		byType: map[domain.EntityType][]match.Candidate{
			domain.EntityProject: {projectCandidate(0.4), projectCandidate(0.3)},
			domain.EntityCourse: {{
				EntityID:   course,
				EntityType: domain.EntityCourse,
				Similarity: 0.95,
				Snapshot:   match.Snapshot{EntityID: course, EntityType: domain.EntityCourse, Title: "c"},
			}},
		},
	}
	svc := NewMatchService(retrieval, nil, nil, testLogger(t))

	got, err := svc.SemanticSearch(dbctx.Context{Ctx: context.Background()}, "databases",
		[]domain.EntityType{domain.EntityProject, domain.EntityCourse}, 2)
	if err != nil {
		t.Fatalf("semantic search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit: want=2 got=%d", len(got))
	}
	if got[0].EntityID != course {
		t.Fatalf("expected the high-similarity course first, got %s %s", got[0].EntityType, got[0].EntityID)
	}

	// Empty index is an empty result, not an error.
	empty, err := svc.SemanticSearch(dbctx.Context{Ctx: context.Background()}, "databases",
		[]domain.EntityType{domain.EntityNote}, 5)
	if err != nil {
		t.Fatalf("semantic search on empty type: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("want empty result, got %d", len(empty))
	}
}

func TestDeriveTitle(t *testing.T) {
	if got := DeriveTitle("  what   is\na b-tree? "); got != "what is a b-tree?" {
		t.Fatalf("collapse whitespace: got %q", got)
	}
	long := strings.Repeat("databases ", 20)
	got := DeriveTitle(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) > maxDerivedTitle+3 {
		t.Fatalf("truncation: got %q", got)
	}
}
