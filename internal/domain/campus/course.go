package campus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Course struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description;type:text;not null;default:''" json:"description"`
	Subject     string `gorm:"column:subject;not null;default:'';index" json:"subject,omitempty"`
	Level       string `gorm:"column:level;not null;default:''" json:"level,omitempty"`

	// TaughtSkills is a JSON array of {"name": string, "level": string}.
	TaughtSkills datatypes.JSON `gorm:"type:jsonb;column:taught_skills;not null;default:'[]'" json:"taught_skills,omitempty"`

	EmbeddedAt *time.Time `gorm:"column:embedded_at;index" json:"embedded_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }
