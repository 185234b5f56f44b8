package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Difficulty is the tutorial level shown to learners.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Débutant"
	DifficultyIntermediate Difficulty = "Intermédiaire"
	DifficultyAdvanced     Difficulty = "Avancé"
)

// Difficulties lists the accepted levels in display order.
var Difficulties = []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

// Valid reports whether d is one of the known levels.
func (d Difficulty) Valid() bool {
	for _, known := range Difficulties {
		if d == known {
			return true
		}
	}
	return false
}

// Tutorial is a piece of design-tutorial content. Only admins mutate it.
type Tutorial struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string     `gorm:"not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	Content         string     `gorm:"type:text" json:"content"`
	VideoURL        *string    `json:"video_url,omitempty"`
	ImageURL        *string    `json:"image_url,omitempty"`
	CategoryID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"category_id"`
	IsPublished     bool       `gorm:"not null;default:false;index" json:"is_published"`
	DifficultyLevel Difficulty `gorm:"type:varchar(32);not null" json:"difficulty_level"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (Tutorial) TableName() string { return "tutorials" }

func (t *Tutorial) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
