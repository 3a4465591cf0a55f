package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"quizgame/models"
)

func (s *GormStore) CreatePack(ctx context.Context, title string) (*models.Pack, error) {
	pack := models.Pack{Title: title}
	if err := s.db.WithContext(ctx).Create(&pack).Error; err != nil {
		return nil, translate(err)
	}
	return &pack, nil
}

func (s *GormStore) GetAllPacks(ctx context.Context) ([]models.Pack, error) {
	var packs []models.Pack
	err := s.db.WithContext(ctx).Order("created_at, id").Find(&packs).Error
	return packs, translate(err)
}

func (s *GormStore) GetPackByID(ctx context.Context, id uuid.UUID) (*models.Pack, error) {
	var pack models.Pack
	if err := s.db.WithContext(ctx).First(&pack, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &pack, nil
}

// CreateQuestion appends the question at the end of its pack's order. The
// pack must exist.
func (s *GormStore) CreateQuestion(ctx context.Context, packID uuid.UUID, text, imageURL string) (*models.Question, error) {
	var question models.Question
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pack models.Pack
		if err := tx.First(&pack, "id = ?", packID).Error; err != nil {
			return err
		}

		var last struct{ Max *int }
		if err := tx.Model(&models.Question{}).
			Select("MAX(position) AS max").
			Where("pack_id = ?", packID).
			Scan(&last).Error; err != nil {
			return err
		}
		position := 0
		if last.Max != nil {
			position = *last.Max + 1
		}

		question = models.Question{
			PackID:   packID,
			Text:     text,
			ImageURL: imageURL,
			Position: position,
		}
		return tx.Create(&question).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &question, nil
}

func (s *GormStore) GetQuestionByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	var question models.Question
	if err := s.db.WithContext(ctx).First(&question, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &question, nil
}

func (s *GormStore) GetQuestionsByPackID(ctx context.Context, packID uuid.UUID) ([]models.Question, error) {
	var questions []models.Question
	err := s.db.WithContext(ctx).
		Where("pack_id = ?", packID).
		Order("position, created_at").
		Find(&questions).Error
	return questions, translate(err)
}

// CreateVariant adds a variant to an existing question.
func (s *GormStore) CreateVariant(ctx context.Context, questionID uuid.UUID, text string, isCorrect bool) (*models.Variant, error) {
	var variant models.Variant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var question models.Question
		if err := tx.First(&question, "id = ?", questionID).Error; err != nil {
			return err
		}
		variant = models.Variant{
			QuestionID: questionID,
			Text:       text,
			IsCorrect:  isCorrect,
		}
		return tx.Create(&variant).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &variant, nil
}

func (s *GormStore) GetVariantByID(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	if err := s.db.WithContext(ctx).First(&variant, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &variant, nil
}

func (s *GormStore) GetVariantsByQuestionID(ctx context.Context, questionID uuid.UUID) ([]models.Variant, error) {
	var variants []models.Variant
	err := s.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("created_at, id").
		Find(&variants).Error
	return variants, translate(err)
}

func (s *GormStore) CheckVariantCorrectnessByID(ctx context.Context, variantID uuid.UUID) (bool, error) {
	var variant models.Variant
	err := s.db.WithContext(ctx).
		Select("id", "is_correct").
		First(&variant, "id = ?", variantID).Error
	if err != nil {
		return false, translate(err)
	}
	return variant.IsCorrect, nil
}

// GetQuestionsAndVariantsByPackID returns the pack's questions in pack order,
// each with its variants.
func (s *GormStore) GetQuestionsAndVariantsByPackID(ctx context.Context, packID uuid.UUID) ([]models.QuestionWithVariants, error) {
	var questions []models.Question
	err := s.db.WithContext(ctx).
		Where("pack_id = ?", packID).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("variants.created_at, variants.id")
		}).
		Order("position, created_at").
		Find(&questions).Error
	if err != nil {
		return nil, translate(err)
	}

	result := make([]models.QuestionWithVariants, 0, len(questions))
	for _, q := range questions {
		variants := q.Variants
		q.Variants = nil
		result = append(result, models.QuestionWithVariants{Question: q, Variants: variants})
	}
	return result, nil
}
