package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"quizgame/models"
)

func (s *GormStore) AddPlayer(ctx context.Context, sessionID uuid.UUID, name string) (*models.Player, error) {
	player := models.Player{
		GameSessionID: sessionID,
		Name:          name,
		Score:         0,
		JoinedAt:      time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&player).Error; err != nil {
		return nil, translate(err)
	}
	return &player, nil
}

func (s *GormStore) GetPlayerByID(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var player models.Player
	if err := s.db.WithContext(ctx).First(&player, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &player, nil
}

func (s *GormStore) GetPlayersByGameSessionID(ctx context.Context, sessionID uuid.UUID) ([]models.Player, error) {
	var players []models.Player
	err := s.db.WithContext(ctx).
		Where("game_session_id = ?", sessionID).
		Order("joined_at, id").
		Find(&players).Error
	return players, translate(err)
}

// UpdatePlayerScore adds delta to the stored score in a single statement.
func (s *GormStore) UpdatePlayerScore(ctx context.Context, playerID uuid.UUID, delta int) (*models.Player, error) {
	var player models.Player
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Player{}).
			Where("id = ?", playerID).
			Update("score", gorm.Expr("score + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&player, "id = ?", playerID).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &player, nil
}
