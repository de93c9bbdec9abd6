package convo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/peerspark/peerspark-backend/internal/domain/convo"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
)

type ConversationRepo interface {
	Create(dbc dbctx.Context, row *types.Conversation) (*types.Conversation, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error)
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Conversation, error)
	// AllocateSeq reserves n sequence numbers for a conversation and returns
	// the first reserved value. The reservation is a single atomic UPDATE so
	// concurrent turns on the same conversation can never interleave numbers.
	AllocateSeq(dbc dbctx.Context, id uuid.UUID, n int64) (int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// Delete hard-deletes the conversation; messages cascade at the database
	// level.
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: log.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *conversationRepo) Create(dbc dbctx.Context, row *types.Conversation) (*types.Conversation, error) {
	if row == nil {
		return nil, fmt.Errorf("missing conversation")
	}
	if row.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_id")
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *conversationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing conversation id")
	}
	var out types.Conversation
	if err := r.tx(dbc).WithContext(dbc.Ctx).First(&out, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *conversationRepo) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID, limit int) ([]*types.Conversation, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.Conversation
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("owner_id = ?", ownerID).
		Order("last_message_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conversationRepo) AllocateSeq(dbc dbctx.Context, id uuid.UUID, n int64) (int64, error) {
	if id == uuid.Nil {
		return 0, fmt.Errorf("missing conversation id")
	}
	if n <= 0 {
		return 0, fmt.Errorf("seq allocation count must be positive")
	}

	var newNext int64
	err := r.tx(dbc).WithContext(dbc.Ctx).Raw(`
		UPDATE conversation
		SET next_seq = next_seq + ?, updated_at = now()
		WHERE id = ? AND deleted_at IS NULL
		RETURNING next_seq
	`, n, id).Scan(&newNext).Error
	if err != nil {
		return 0, err
	}
	if newNext == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return newNext - n + 1, nil
}

func (r *conversationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing conversation id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *conversationRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing conversation id")
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Unscoped().
		Delete(&types.Conversation{}, "id = ?", id).Error
}
