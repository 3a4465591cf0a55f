package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Player struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	GameSessionID uuid.UUID `json:"game_session_id" gorm:"type:uuid;not null;uniqueIndex:idx_players_session_name"`
	Name          string    `json:"name" gorm:"not null;uniqueIndex:idx_players_session_name"`
	Score         int       `json:"score" gorm:"not null;default:0"`
	JoinedAt      time.Time `json:"joined_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *Player) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	return nil
}
