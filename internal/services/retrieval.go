package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/peerspark/peerspark-backend/internal/data/repos"
	"github.com/peerspark/peerspark-backend/internal/domain"
	"github.com/peerspark/peerspark-backend/internal/domain/match"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/pkg/errs"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
	"github.com/peerspark/peerspark-backend/internal/platform/vectorstore"
)

// RetrievalService is Stage1 of the matching pipeline: broad vector recall
// over one entity-type namespace, returning candidates with the denormalized
// snapshots Stage2 scores against.
type RetrievalService interface {
	// CandidatesForQuery embeds free text and recalls up to initialK
	// candidates. filter restricts by payload fields, e.g.
	// {"knowledge_base_id": {"$in": [...]}}. Fewer than initialK indexed
	// entities is not an error; zero matches returns an empty slice.
	CandidatesForQuery(dbc dbctx.Context, query string, target domain.EntityType, initialK int, filter map[string]any) ([]match.Candidate, error)

	// CandidatesForEntity recalls candidates near a seed entity's stored
	// vector, e.g. projects for a student. The seed itself is excluded from
	// the results. A seed with no stored vector gets one inline re-embed
	// attempt before the call fails with ErrNoEmbeddingAvailable.
	CandidatesForEntity(dbc dbctx.Context, seedType domain.EntityType, seedID uuid.UUID, target domain.EntityType, initialK int) (match.Snapshot, []match.Candidate, error)
}

type retrievalService struct {
	log      *logger.Logger
	store    vectorstore.VectorStore
	embedder EmbeddingService

	students repos.StudentRepo
	projects repos.ProjectRepo
	courses  repos.CourseRepo
	chunks   repos.KnowledgeChunkRepo
	notes    repos.NoteRepo
}

func NewRetrievalService(
	store vectorstore.VectorStore,
	embedder EmbeddingService,
	students repos.StudentRepo,
	projects repos.ProjectRepo,
	courses repos.CourseRepo,
	chunks repos.KnowledgeChunkRepo,
	notes repos.NoteRepo,
	baseLog *logger.Logger,
) RetrievalService {
	return &retrievalService{
		log:      baseLog.With("service", "RetrievalService"),
		store:    store,
		embedder: embedder,
		students: students,
		projects: projects,
		courses:  courses,
		chunks:   chunks,
		notes:    notes,
	}
}

func (s *retrievalService) CandidatesForQuery(dbc dbctx.Context, query string, target domain.EntityType, initialK int, filter map[string]any) ([]match.Candidate, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", errs.ErrInvalidArgument)
	}
	vec, err := s.embedder.EmbedQuery(dbc.Ctx, query)
	if err != nil {
		return nil, err
	}
	return s.recall(dbc, vec, target, initialK, filter, uuid.Nil)
}

func (s *retrievalService) CandidatesForEntity(dbc dbctx.Context, seedType domain.EntityType, seedID uuid.UUID, target domain.EntityType, initialK int) (match.Snapshot, []match.Candidate, error) {
	seed, err := s.loadSnapshot(dbc, seedType, seedID)
	if err != nil {
		return match.Snapshot{}, nil, err
	}

	vec, ok, err := s.store.FetchVector(dbc.Ctx, vectorNamespace(seedType), seedID.String())
	if err != nil {
		return match.Snapshot{}, nil, fmt.Errorf("fetch seed vector: %w", err)
	}
	if !ok {
		// The seed was never embedded (or its vector was dropped after a
		// provider failure). Try once inline before giving up.
		if err := s.embedder.ReembedEntity(dbc, seedType, seedID); err != nil {
			s.log.Warn("inline reembed of seed failed", "entity_type", seedType, "entity_id", seedID, "error", err)
			return match.Snapshot{}, nil, errs.ErrNoEmbeddingAvailable
		}
		vec, ok, err = s.store.FetchVector(dbc.Ctx, vectorNamespace(seedType), seedID.String())
		if err != nil {
			return match.Snapshot{}, nil, fmt.Errorf("fetch seed vector: %w", err)
		}
		if !ok {
			return match.Snapshot{}, nil, errs.ErrNoEmbeddingAvailable
		}
	}

	exclude := uuid.Nil
	if seedType == target {
		exclude = seedID
	}
	// Over-fetch by one so excluding the seed still yields initialK.
	k := initialK
	if exclude != uuid.Nil {
		k++
	}
	cands, err := s.recall(dbc, vec, target, k, nil, exclude)
	if err != nil {
		return match.Snapshot{}, nil, err
	}
	if len(cands) > initialK {
		cands = cands[:initialK]
	}
	return seed, cands, nil
}

func (s *retrievalService) recall(dbc dbctx.Context, vec []float32, target domain.EntityType, k int, filter map[string]any, exclude uuid.UUID) ([]match.Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", errs.ErrInvalidArgument)
	}

	matches, err := s.store.QueryMatches(dbc.Ctx, vectorNamespace(target), vec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	if len(matches) == 0 {
		return []match.Candidate{}, nil
	}

	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			s.log.Warn("skipping non-uuid vector id", "namespace", target, "vector_id", m.ID)
			continue
		}
		if id == exclude {
			continue
		}
		ids = append(ids, id)
	}

	// One batch fetch for all snapshots instead of a read per candidate.
	snaps, err := s.loadSnapshots(dbc, target, ids)
	if err != nil {
		return nil, err
	}

	cands := make([]match.Candidate, 0, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(m.ID)
		if err != nil || id == exclude {
			continue
		}
		snap, ok := snaps[id]
		if !ok {
			// Indexed but since deleted from the relational store.
			continue
		}
		cands = append(cands, match.Candidate{
			EntityID:   id,
			EntityType: target,
			Similarity: m.Score,
			Snapshot:   snap,
		})
	}
	return cands, nil
}

func (s *retrievalService) loadSnapshot(dbc dbctx.Context, t domain.EntityType, id uuid.UUID) (match.Snapshot, error) {
	snaps, err := s.loadSnapshots(dbc, t, []uuid.UUID{id})
	if err != nil {
		return match.Snapshot{}, err
	}
	snap, ok := snaps[id]
	if !ok {
		return match.Snapshot{}, fmt.Errorf("%w: %s %s", errs.ErrNotFound, t, id)
	}
	return snap, nil
}

func (s *retrievalService) loadSnapshots(dbc dbctx.Context, t domain.EntityType, ids []uuid.UUID) (map[uuid.UUID]match.Snapshot, error) {
	out := make(map[uuid.UUID]match.Snapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	switch t {
	case domain.EntityStudent:
		rows, err := s.students.ListByIDs(dbc, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[r.ID] = snapshotStudent(r)
		}
	case domain.EntityProject:
		rows, err := s.projects.ListByIDs(dbc, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[r.ID] = snapshotProject(r)
		}
	case domain.EntityCourse:
		rows, err := s.courses.ListByIDs(dbc, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[r.ID] = snapshotCourse(r)
		}
	case domain.EntityKnowledgeChunk:
		rows, err := s.chunks.ListByIDs(dbc, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[r.ID] = snapshotChunk(r)
		}
	case domain.EntityNote:
		rows, err := s.notes.ListByIDs(dbc, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[r.ID] = snapshotNote(r)
		}
	default:
		return nil, fmt.Errorf("%w: entity type %q", errs.ErrInvalidArgument, t)
	}
	return out, nil
}
