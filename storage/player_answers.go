package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"quizgame/models"
)

func (s *GormStore) SubmitPlayerAnswer(ctx context.Context, playerID, questionID, variantID uuid.UUID, isCorrect bool) (*models.PlayerAnswer, error) {
	answer := models.PlayerAnswer{
		PlayerID:   playerID,
		QuestionID: questionID,
		VariantID:  variantID,
		IsCorrect:  isCorrect,
		AnsweredAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&answer).Error; err != nil {
		return nil, translate(err)
	}
	return &answer, nil
}

func (s *GormStore) GetPlayerAnswersByPlayerID(ctx context.Context, playerID uuid.UUID) ([]models.PlayerAnswer, error) {
	var answers []models.PlayerAnswer
	err := s.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("answered_at").
		Find(&answers).Error
	return answers, translate(err)
}

// GetAnswersCountForQuestion counts answers to questionID given by players of
// the session.
func (s *GormStore) GetAnswersCountForQuestion(ctx context.Context, sessionID, questionID uuid.UUID) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.PlayerAnswer{}).
		Joins("JOIN players ON players.id = player_answers.player_id").
		Where("players.game_session_id = ? AND player_answers.question_id = ?", sessionID, questionID).
		Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	return int(count), nil
}
