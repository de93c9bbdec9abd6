package llmcfg

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserLLMConfig names the provider and models a user has activated. The API
// key is stored encrypted by the credential collaborator; this row only
// carries the opaque ciphertext reference.
type UserLLMConfig struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Provider       string `gorm:"column:provider;not null" json:"provider"`
	Model          string `gorm:"column:model;not null" json:"model"`
	EmbeddingModel string `gorm:"column:embedding_model;not null;default:''" json:"embedding_model,omitempty"`
	BaseURL        string `gorm:"column:base_url;not null;default:''" json:"base_url,omitempty"`
	APIKeyRef      string `gorm:"column:api_key_ref;not null;default:''" json:"-"`

	Active bool `gorm:"column:active;not null;default:false;index" json:"active"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserLLMConfig) TableName() string { return "user_llm_config" }

// UserToolConfig registers an MCP tool endpoint a user has made available to
// the orchestrator.
type UserToolConfig struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Name        string         `gorm:"column:name;not null" json:"name"`
	Description string         `gorm:"column:description;type:text;not null;default:''" json:"description,omitempty"`
	Endpoint    string         `gorm:"column:endpoint;not null" json:"endpoint"`
	InputSchema datatypes.JSON `gorm:"type:jsonb;column:input_schema;not null;default:'{}'" json:"input_schema,omitempty"`
	Enabled     bool           `gorm:"column:enabled;not null;default:true;index" json:"enabled"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserToolConfig) TableName() string { return "user_tool_config" }

// Resolved is the decrypted configuration handed to the engine. It is never
// persisted.
type Resolved struct {
	Provider       string
	Model          string
	EmbeddingModel string
	BaseURL        string
	APIKey         string
}
