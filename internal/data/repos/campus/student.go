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

type StudentRepo interface {
	Create(dbc dbctx.Context, rows []*types.Student) ([]*types.Student, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Student, error)
	ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Student, error)
	ListAll(dbc dbctx.Context, limit, offset int) ([]*types.Student, error)
	MarkEmbedded(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type studentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, log *logger.Logger) StudentRepo {
	return &studentRepo{db: db, log: log.With("repo", "StudentRepo")}
}

func (r *studentRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *studentRepo) Create(dbc dbctx.Context, rows []*types.Student) ([]*types.Student, error) {
	if len(rows) == 0 {
		return []*types.Student{}, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *studentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Student, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing student id")
	}
	var out types.Student
	if err := r.tx(dbc).WithContext(dbc.Ctx).First(&out, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *studentRepo) ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Student, error) {
	if len(ids) == 0 {
		return []*types.Student{}, nil
	}
	var out []*types.Student
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *studentRepo) ListAll(dbc dbctx.Context, limit, offset int) ([]*types.Student, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.Student
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *studentRepo) MarkEmbedded(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{"embedded_at": at})
}

func (r *studentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing student id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Student{}).
		Where("id = ?", id).
		Updates(updates).Error
}
