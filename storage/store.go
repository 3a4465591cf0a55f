package storage

import (
	"context"

	"gorm.io/gorm"
)

// GormStore is the relational persistence gateway for content and game
// sessions. Every method runs in its own implicit transaction.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a store bound to a single transaction.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx *GormStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
