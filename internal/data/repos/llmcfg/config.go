package llmcfg

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/peerspark/peerspark-backend/internal/domain/llmcfg"
	"github.com/peerspark/peerspark-backend/internal/pkg/dbctx"
	"github.com/peerspark/peerspark-backend/internal/platform/logger"
)

type UserLLMConfigRepo interface {
	GetActiveByUser(dbc dbctx.Context, userID uuid.UUID) (*types.UserLLMConfig, error)
	Create(dbc dbctx.Context, row *types.UserLLMConfig) (*types.UserLLMConfig, error)
	// Activate marks one config active and deactivates the user's others in
	// the same statement pair; callers should run it inside a transaction.
	Activate(dbc dbctx.Context, userID, configID uuid.UUID) error
}

type UserToolConfigRepo interface {
	ListEnabledByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserToolConfig, error)
	Create(dbc dbctx.Context, row *types.UserToolConfig) (*types.UserToolConfig, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type userLLMConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserLLMConfigRepo(db *gorm.DB, log *logger.Logger) UserLLMConfigRepo {
	return &userLLMConfigRepo{db: db, log: log.With("repo", "UserLLMConfigRepo")}
}

func (r *userLLMConfigRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *userLLMConfigRepo) GetActiveByUser(dbc dbctx.Context, userID uuid.UUID) (*types.UserLLMConfig, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var out types.UserLLMConfig
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("user_id = ? AND active = true", userID).
		Order("updated_at DESC").
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userLLMConfigRepo) Create(dbc dbctx.Context, row *types.UserLLMConfig) (*types.UserLLMConfig, error) {
	if row == nil {
		return nil, fmt.Errorf("missing config")
	}
	if row.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *userLLMConfigRepo) Activate(dbc dbctx.Context, userID, configID uuid.UUID) error {
	if userID == uuid.Nil || configID == uuid.Nil {
		return fmt.Errorf("missing user_id or config id")
	}
	txx := r.tx(dbc).WithContext(dbc.Ctx)
	if err := txx.Model(&types.UserLLMConfig{}).
		Where("user_id = ? AND id <> ?", userID, configID).
		Updates(map[string]interface{}{"active": false, "updated_at": time.Now().UTC()}).Error; err != nil {
		return err
	}
	return txx.Model(&types.UserLLMConfig{}).
		Where("user_id = ? AND id = ?", userID, configID).
		Updates(map[string]interface{}{"active": true, "updated_at": time.Now().UTC()}).Error
}

type userToolConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserToolConfigRepo(db *gorm.DB, log *logger.Logger) UserToolConfigRepo {
	return &userToolConfigRepo{db: db, log: log.With("repo", "UserToolConfigRepo")}
}

func (r *userToolConfigRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *userToolConfigRepo) ListEnabledByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserToolConfig, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var out []*types.UserToolConfig
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("user_id = ? AND enabled = true", userID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userToolConfigRepo) Create(dbc dbctx.Context, row *types.UserToolConfig) (*types.UserToolConfig, error) {
	if row == nil {
		return nil, fmt.Errorf("missing tool config")
	}
	if row.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *userToolConfigRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing tool config id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.UserToolConfig{}).
		Where("id = ?", id).
		Updates(updates).Error
}
