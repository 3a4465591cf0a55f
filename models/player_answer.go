package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlayerAnswer is one submission of a player for one question. The unique
// index keeps the quorum count at one answer per player and question.
type PlayerAnswer struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	PlayerID   uuid.UUID `json:"player_id" gorm:"type:uuid;not null;uniqueIndex:idx_player_answers_player_question"`
	QuestionID uuid.UUID `json:"question_id" gorm:"type:uuid;not null;uniqueIndex:idx_player_answers_player_question;index"`
	VariantID  uuid.UUID `json:"variant_id" gorm:"type:uuid;not null"`
	IsCorrect  bool      `json:"is_correct" gorm:"not null"`
	AnsweredAt time.Time `json:"answered_at"`
}

func (a *PlayerAnswer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	return nil
}
