package campus

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/peerspark/peerspark-backend/internal/domain/campus"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
)

type KnowledgeChunkRepo interface {
	Create(dbc dbctx.Context, rows []*types.KnowledgeChunk) ([]*types.KnowledgeChunk, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.KnowledgeChunk, error)
	ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.KnowledgeChunk, error)
	ListByKnowledgeBase(dbc dbctx.Context, kbID uuid.UUID, limit int) ([]*types.KnowledgeChunk, error)
	ListAll(dbc dbctx.Context, limit, offset int) ([]*types.KnowledgeChunk, error)
	MarkEmbedded(dbc dbctx.Context, id uuid.UUID, at time.Time) error
}

type knowledgeChunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKnowledgeChunkRepo(db *gorm.DB, log *logger.Logger) KnowledgeChunkRepo {
	return &knowledgeChunkRepo{db: db, log: log.With("repo", "KnowledgeChunkRepo")}
}

func (r *knowledgeChunkRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *knowledgeChunkRepo) Create(dbc dbctx.Context, rows []*types.KnowledgeChunk) ([]*types.KnowledgeChunk, error) {
	if len(rows) == 0 {
		return []*types.KnowledgeChunk{}, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *knowledgeChunkRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.KnowledgeChunk, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing knowledge chunk id")
	}
	var out types.KnowledgeChunk
	if err := r.tx(dbc).WithContext(dbc.Ctx).First(&out, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *knowledgeChunkRepo) ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.KnowledgeChunk, error) {
	if len(ids) == 0 {
		return []*types.KnowledgeChunk{}, nil
	}
	var out []*types.KnowledgeChunk
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *knowledgeChunkRepo) ListByKnowledgeBase(dbc dbctx.Context, kbID uuid.UUID, limit int) ([]*types.KnowledgeChunk, error) {
	if kbID == uuid.Nil {
		return nil, fmt.Errorf("missing knowledge base id")
	}
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	var out []*types.KnowledgeChunk
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("knowledge_base_id = ?", kbID).
		Order("chunk_index ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *knowledgeChunkRepo) ListAll(dbc dbctx.Context, limit, offset int) ([]*types.KnowledgeChunk, error) {
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.KnowledgeChunk
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *knowledgeChunkRepo) MarkEmbedded(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing knowledge chunk id")
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.KnowledgeChunk{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"embedded_at": at, "updated_at": time.Now().UTC()}).Error
}
