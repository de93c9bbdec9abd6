package campus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KnowledgeChunk is one retrievable slice of a knowledge base document.
type KnowledgeChunk struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	KnowledgeBaseID uuid.UUID `gorm:"type:uuid;not null;index" json:"knowledge_base_id"`

	Title      string `gorm:"column:title;not null;default:''" json:"title"`
	Content    string `gorm:"column:content;type:text;not null" json:"content"`
	ChunkIndex int    `gorm:"column:chunk_index;not null;default:0" json:"chunk_index"`

	EmbeddedAt *time.Time `gorm:"column:embedded_at;index" json:"embedded_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (KnowledgeChunk) TableName() string { return "knowledge_chunk" }
