package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionState string

const (
	SessionWaiting  SessionState = "waiting"
	SessionActive   SessionState = "active"
	SessionFinished SessionState = "finished"
)

type GameSession struct {
	ID                   uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	PackID               uuid.UUID    `json:"pack_id" gorm:"type:uuid;not null;index"`
	State                SessionState `json:"state" gorm:"not null;default:'waiting'"`
	CurrentQuestionIndex int          `json:"current_question_index" gorm:"not null;default:0"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
	StartedAt            *time.Time   `json:"started_at"`
	FinishedAt           *time.Time   `json:"finished_at"`

	// Relationships
	Players []Player `json:"players,omitempty" gorm:"foreignKey:GameSessionID"`
}

func (s *GameSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.State == "" {
		s.State = SessionWaiting
	}
	return nil
}
