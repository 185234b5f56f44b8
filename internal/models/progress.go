package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserProgress is one user's completion state on one tutorial.
// At most one row exists per (user_id, tutorial_id).
type UserProgress struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_progress_user_tutorial" json:"user_id"`
	TutorialID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_progress_user_tutorial" json:"tutorial_id"`
	Completed          bool       `gorm:"not null;default:false" json:"completed"`
	ProgressPercentage int        `gorm:"not null;default:0" json:"progress_percentage"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `gorm:"index" json:"updated_at"`

	Tutorial *Tutorial `gorm:"foreignKey:TutorialID;constraint:OnDelete:CASCADE" json:"tutorial,omitempty"`
}

func (UserProgress) TableName() string { return "user_progress" }

func (p *UserProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
