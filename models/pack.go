package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Pack struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Title     string    `json:"title" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`

	// Relationships
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:PackID"`
}

func (p *Pack) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
