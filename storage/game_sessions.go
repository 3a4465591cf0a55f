package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"quizgame/models"
)

func (s *GormStore) CreateGameSession(ctx context.Context, packID uuid.UUID) (*models.GameSession, error) {
	session := models.GameSession{
		PackID: packID,
		State:  models.SessionWaiting,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *GormStore) GetGameSessionByID(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	var session models.GameSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *GormStore) GetAllGameSessions(ctx context.Context) ([]models.GameSession, error) {
	var sessions []models.GameSession
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&sessions).Error
	return sessions, translate(err)
}

// StartGameSession moves a waiting session to active.
func (s *GormStore) StartGameSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	now := time.Now()
	return s.transition(ctx, id,
		map[string]interface{}{
			"state":      models.SessionActive,
			"started_at": now,
		},
		"state = ?", models.SessionWaiting)
}

// AdvanceToNextQuestion sets the question pointer to newIndex, only if the
// session is active and still points at newIndex-1.
func (s *GormStore) AdvanceToNextQuestion(ctx context.Context, id uuid.UUID, newIndex int) (*models.GameSession, error) {
	return s.transition(ctx, id,
		map[string]interface{}{
			"current_question_index": newIndex,
		},
		"state = ? AND current_question_index = ?", models.SessionActive, newIndex-1)
}

// EndGameSession moves an active session to finished.
func (s *GormStore) EndGameSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	now := time.Now()
	return s.transition(ctx, id,
		map[string]interface{}{
			"state":       models.SessionFinished,
			"finished_at": now,
		},
		"state = ?", models.SessionActive)
}

// transition applies updates when cond still holds and returns the fresh row.
// A missing session is ErrNotFound; an unmet condition is ErrStaleSession.
func (s *GormStore) transition(ctx context.Context, id uuid.UUID, updates map[string]interface{}, cond string, args ...interface{}) (*models.GameSession, error) {
	var session models.GameSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.GameSession{}).
			Where("id = ?", id).
			Where(cond, args...).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.First(&session, "id = ?", id).Error; err != nil {
				return err
			}
			return ErrStaleSession
		}
		return tx.First(&session, "id = ?", id).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}
