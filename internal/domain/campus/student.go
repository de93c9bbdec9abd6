package campus

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Student is the profile surface the matching engine reads. Account and
// credential fields live with the CRUD layer and are not modeled here.
type Student struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	DisplayName string `gorm:"column:display_name;not null;default:''" json:"display_name"`
	Bio         string `gorm:"column:bio;type:text;not null;default:''" json:"bio"`

	// Skills is a JSON array of {"name": string, "level": string} objects.
	// Levels follow the platform's four proficiency tiers.
	Skills       datatypes.JSON `gorm:"type:jsonb;column:skills;not null;default:'[]'" json:"skills,omitempty"`
	Interests    datatypes.JSON `gorm:"type:jsonb;column:interests;not null;default:'[]'" json:"interests,omitempty"`
	Location     string         `gorm:"column:location;not null;default:''" json:"location,omitempty"`
	Availability string         `gorm:"column:availability;not null;default:''" json:"availability,omitempty"`

	EmbeddedAt *time.Time `gorm:"column:embedded_at;index" json:"embedded_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Student) TableName() string { return "student" }
