package campus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Project struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	Title       string `gorm:"column:title;not null" json:"title"`
	Description string `gorm:"column:description;type:text;not null;default:''" json:"description"`

	// RequiredSkills is a JSON array of {"name": string, "level": string}.
	RequiredSkills datatypes.JSON `gorm:"type:jsonb;column:required_skills;not null;default:'[]'" json:"required_skills,omitempty"`
	Location       string         `gorm:"column:location;not null;default:''" json:"location,omitempty"`
	// TimeCommitment is free text, e.g. "10-20 hours per week".
	TimeCommitment string `gorm:"column:time_commitment;not null;default:''" json:"time_commitment,omitempty"`
	// Duration is free text, e.g. "summer", "long term".
	Duration string `gorm:"column:duration;not null;default:''" json:"duration,omitempty"`
	Status   string `gorm:"column:status;not null;default:'open';index" json:"status"`

	EmbeddedAt *time.Time `gorm:"column:embedded_at;index" json:"embedded_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Project) TableName() string { return "project" }
