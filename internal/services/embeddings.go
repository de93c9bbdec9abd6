package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/peerspark/peerspark-backend/internal/data/repos"
	"github.com/peerspark/peerspark-backend/internal/domain"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/pkg/errs"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
	"github.com/peerspark/peerspark-backend/internal/platform/openai"
	"github.com/peerspark/peerspark-backend/internal/platform/vectorstore"
)

const reembedConcurrency = 4

// EmbeddingService keeps the vector index in sync with entity source text and
// embeds free-text queries for retrieval.
type EmbeddingService interface {
	// EmbedQuery embeds one query string. Provider failures surface as
	// ErrEmbeddingUnavailable.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// ReembedEntity recomputes one entity's vector from its current source
	// text and upserts it. Idempotent, last write wins. When the provider
	// fails, the stale vector is removed so Stage1 excludes the entity
	// instead of ranking against outdated text.
	ReembedEntity(dbc dbctx.Context, entityType domain.EntityType, id uuid.UUID) error

	// ReembedAll re-embeds every entity of the given types and returns how
	// many succeeded. Per-entity failures are logged and skipped.
	ReembedAll(dbc dbctx.Context, entityTypes []domain.EntityType) (int, error)
}

type embeddingService struct {
	log   *logger.Logger
	ai    openai.Client
	store vectorstore.VectorStore

	students repos.StudentRepo
	projects repos.ProjectRepo
	courses  repos.CourseRepo
	chunks   repos.KnowledgeChunkRepo
	notes    repos.NoteRepo
}

func NewEmbeddingService(
	ai openai.Client,
	store vectorstore.VectorStore,
	students repos.StudentRepo,
	projects repos.ProjectRepo,
	courses repos.CourseRepo,
	chunks repos.KnowledgeChunkRepo,
	notes repos.NoteRepo,
	baseLog *logger.Logger,
) EmbeddingService {
	return &embeddingService{
		log:      baseLog.With("service", "EmbeddingService"),
		ai:       ai,
		store:    store,
		students: students,
		projects: projects,
		courses:  courses,
		chunks:   chunks,
		notes:    notes,
	}
}

func (s *embeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.ai.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: provider returned no vector", errs.ErrEmbeddingUnavailable)
	}
	return vecs[0], nil
}

func (s *embeddingService) ReembedEntity(dbc dbctx.Context, entityType domain.EntityType, id uuid.UUID) error {
	text, metadata, err := s.loadSource(dbc, entityType, id)
	if err != nil {
		return err
	}

	ns := vectorNamespace(entityType)
	if text == "" {
		// Nothing to embed. Remove any stale vector so the entity drops out
		// of Stage1 until it has text again.
		return s.store.DeleteIDs(dbc.Ctx, ns, []string{id.String()})
	}

	vec, err := s.EmbedQuery(dbc.Ctx, text)
	if err != nil {
		if delErr := s.store.DeleteIDs(dbc.Ctx, ns, []string{id.String()}); delErr != nil {
			s.log.Warn("failed to delete stale vector after embed failure",
				"entity_type", entityType, "entity_id", id, "error", delErr)
		}
		return err
	}

	if err := s.store.Upsert(dbc.Ctx, ns, []vectorstore.Vector{{
		ID:       id.String(),
		Values:   vec,
		Metadata: metadata,
	}}); err != nil {
		return fmt.Errorf("upsert vector: %w", err)
	}

	if err := s.markEmbedded(dbc, entityType, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark embedded: %w", err)
	}
	return nil
}

func (s *embeddingService) ReembedAll(dbc dbctx.Context, entityTypes []domain.EntityType) (int, error) {
	if len(entityTypes) == 0 {
		entityTypes = domain.AllEntityTypes()
	}

	var done atomic.Int64
	g, ctx := errgroup.WithContext(dbc.Ctx)
	g.SetLimit(reembedConcurrency)

	for _, t := range entityTypes {
		ids, err := s.listIDs(dbc, t)
		if err != nil {
			return int(done.Load()), err
		}
		for _, id := range ids {
			g.Go(func() error {
				if err := s.ReembedEntity(dbctx.Context{Ctx: ctx, Tx: dbc.Tx}, t, id); err != nil {
					s.log.Warn("reembed failed", "entity_type", t, "entity_id", id, "error", err)
					return nil
				}
				done.Add(1)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return int(done.Load()), err
	}
	return int(done.Load()), nil
}

const reembedPageSize = 500

func (s *embeddingService) listIDs(dbc dbctx.Context, t domain.EntityType) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for offset := 0; ; offset += reembedPageSize {
		var (
			page int
			err  error
		)
		switch t {
		case domain.EntityStudent:
			rows, e := s.students.ListAll(dbc, reembedPageSize, offset)
			err = e
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			page = len(rows)
		case domain.EntityProject:
			rows, e := s.projects.ListAll(dbc, reembedPageSize, offset)
			err = e
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			page = len(rows)
		case domain.EntityCourse:
			rows, e := s.courses.ListAll(dbc, reembedPageSize, offset)
			err = e
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			page = len(rows)
		case domain.EntityKnowledgeChunk:
			rows, e := s.chunks.ListAll(dbc, reembedPageSize, offset)
			err = e
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			page = len(rows)
		case domain.EntityNote:
			rows, e := s.notes.ListAll(dbc, reembedPageSize, offset)
			err = e
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			page = len(rows)
		default:
			return nil, fmt.Errorf("%w: entity type %q", errs.ErrInvalidArgument, t)
		}
		if err != nil {
			return nil, err
		}
		if page < reembedPageSize {
			return ids, nil
		}
	}
}

// loadSource returns the entity's embedding source text plus the payload
// stored alongside its vector. The payload carries the fields scope filters
// match against.
func (s *embeddingService) loadSource(dbc dbctx.Context, t domain.EntityType, id uuid.UUID) (string, map[string]any, error) {
	base := map[string]any{
		"entity_id":   id.String(),
		"entity_type": string(t),
	}
	switch t {
	case domain.EntityStudent:
		row, err := s.students.GetByID(dbc, id)
		if err != nil {
			return "", nil, err
		}
		return sourceTextStudent(row), base, nil
	case domain.EntityProject:
		row, err := s.projects.GetByID(dbc, id)
		if err != nil {
			return "", nil, err
		}
		base["owner_id"] = row.OwnerID.String()
		base["status"] = row.Status
		return sourceTextProject(row), base, nil
	case domain.EntityCourse:
		row, err := s.courses.GetByID(dbc, id)
		if err != nil {
			return "", nil, err
		}
		base["subject"] = row.Subject
		return sourceTextCourse(row), base, nil
	case domain.EntityKnowledgeChunk:
		row, err := s.chunks.GetByID(dbc, id)
		if err != nil {
			return "", nil, err
		}
		base["knowledge_base_id"] = row.KnowledgeBaseID.String()
		return sourceTextChunk(row), base, nil
	case domain.EntityNote:
		row, err := s.notes.GetByID(dbc, id)
		if err != nil {
			return "", nil, err
		}
		base["owner_id"] = row.OwnerID.String()
		return sourceTextNote(row), base, nil
	}
	return "", nil, fmt.Errorf("%w: entity type %q", errs.ErrInvalidArgument, t)
}

func (s *embeddingService) markEmbedded(dbc dbctx.Context, t domain.EntityType, id uuid.UUID, at time.Time) error {
	switch t {
	case domain.EntityStudent:
		return s.students.MarkEmbedded(dbc, id, at)
	case domain.EntityProject:
		return s.projects.MarkEmbedded(dbc, id, at)
	case domain.EntityCourse:
		return s.courses.MarkEmbedded(dbc, id, at)
	case domain.EntityKnowledgeChunk:
		return s.chunks.MarkEmbedded(dbc, id, at)
	case domain.EntityNote:
		return s.notes.MarkEmbedded(dbc, id, at)
	}
	return fmt.Errorf("%w: entity type %q", errs.ErrInvalidArgument, t)
}
