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

type NoteRepo interface {
	Create(dbc dbctx.Context, rows []*types.Note) ([]*types.Note, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Note, error)
	ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Note, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Note, error)
	ListAll(dbc dbctx.Context, limit, offset int) ([]*types.Note, error)
	MarkEmbedded(dbc dbctx.Context, id uuid.UUID, at time.Time) error
}

type noteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNoteRepo(db *gorm.DB, log *logger.Logger) NoteRepo {
	return &noteRepo{db: db, log: log.With("repo", "NoteRepo")}
}

func (r *noteRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *noteRepo) Create(dbc dbctx.Context, rows []*types.Note) ([]*types.Note, error) {
	if len(rows) == 0 {
		return []*types.Note{}, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *noteRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Note, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing note id")
	}
	var out types.Note
	if err := r.tx(dbc).WithContext(dbc.Ctx).First(&out, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *noteRepo) ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Note, error) {
	if len(ids) == 0 {
		return []*types.Note{}, nil
	}
	var out []*types.Note
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *noteRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Note, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("missing owner id")
	}
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	var out []*types.Note
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *noteRepo) ListAll(dbc dbctx.Context, limit, offset int) ([]*types.Note, error) {
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.Note
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *noteRepo) MarkEmbedded(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing note id")
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Note{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"embedded_at": at, "updated_at": time.Now().UTC()}).Error
}
