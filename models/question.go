package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Question belongs to exactly one pack. Position defines the pack order a
// game session walks through.
type Question struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	PackID    uuid.UUID `json:"pack_id" gorm:"type:uuid;not null;index:idx_questions_pack_position"`
	Text      string    `json:"text" gorm:"not null"`
	ImageURL  string    `json:"image_url,omitempty"`
	Position  int       `json:"position" gorm:"not null;index:idx_questions_pack_position"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Variants []Variant `json:"variants,omitempty" gorm:"foreignKey:QuestionID"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// QuestionWithVariants pairs a question with its variants in creation order.
type QuestionWithVariants struct {
	Question Question
	Variants []Variant
}
