package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"quizgame/models"
	"quizgame/storage"
)

// PackService manages quiz content: packs, their ordered questions and the
// answer variants of each question.
type PackService struct {
	store *storage.GormStore
	log   *zap.Logger
}

func NewPackService(store *storage.GormStore, log *zap.Logger) *PackService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PackService{store: store, log: log}
}

// PackImport summarizes a pack created from a YAML document.
type PackImport struct {
	Pack      models.Pack `json:"pack"`
	Questions int         `json:"questions"`
	Variants  int         `json:"variants"`
}

func (s *PackService) CreatePack(ctx context.Context, req *CreatePackRequest) (*models.Pack, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}
	pack, err := s.store.CreatePack(ctx, req.Title)
	if err != nil {
		return nil, fmt.Errorf("create pack: %w", err)
	}
	return pack, nil
}

func (s *PackService) GetAllPacks(ctx context.Context) ([]models.Pack, error) {
	packs, err := s.store.GetAllPacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("get packs: %w", err)
	}
	if packs == nil {
		packs = []models.Pack{}
	}
	return packs, nil
}

func (s *PackService) GetPackByID(ctx context.Context, id uuid.UUID) (*models.Pack, error) {
	pack, err := s.store.GetPackByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, ErrPackNotFound, "get pack")
	}
	return pack, nil
}

// CreateQuestion appends a question to the end of its pack.
func (s *PackService) CreateQuestion(ctx context.Context, req *CreateQuestionRequest) (*models.Question, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}
	packID, err := uuid.Parse(req.PackID)
	if err != nil {
		return nil, validationErr(fmt.Errorf("pack_id: %w", err))
	}

	question, err := s.store.CreateQuestion(ctx, packID, req.Text, req.ImageURL)
	if err != nil {
		return nil, lookupErr(err, ErrPackNotFound, "create question")
	}
	return question, nil
}

func (s *PackService) GetQuestionByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	question, err := s.store.GetQuestionByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, ErrQuestionNotFound, "get question")
	}
	return question, nil
}

func (s *PackService) GetQuestionsByPackID(ctx context.Context, packID uuid.UUID) ([]models.Question, error) {
	if _, err := s.store.GetPackByID(ctx, packID); err != nil {
		return nil, lookupErr(err, ErrPackNotFound, "get pack")
	}
	questions, err := s.store.GetQuestionsByPackID(ctx, packID)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	if questions == nil {
		questions = []models.Question{}
	}
	return questions, nil
}

// CreateVariant adds an answer variant. A question keeps at most one
// correct variant.
func (s *PackService) CreateVariant(ctx context.Context, req *CreateVariantRequest) (*models.Variant, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		return nil, validationErr(fmt.Errorf("question_id: %w", err))
	}

	var created *models.Variant
	err = s.store.Transaction(ctx, func(tx *storage.GormStore) error {
		if req.IsCorrect {
			existing, err := tx.GetVariantsByQuestionID(ctx, questionID)
			if err != nil {
				return err
			}
			for _, v := range existing {
				if v.IsCorrect {
					return fmt.Errorf("%w: question already has a correct variant", ErrInvalidPack)
				}
			}
		}
		variant, err := tx.CreateVariant(ctx, questionID, req.Text, req.IsCorrect)
		if err != nil {
			return err
		}
		created = variant
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidPack) {
			return nil, err
		}
		return nil, lookupErr(err, ErrQuestionNotFound, "create variant")
	}
	return created, nil
}

func (s *PackService) GetVariantByID(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	variant, err := s.store.GetVariantByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, ErrVariantNotFound, "get variant")
	}
	return variant, nil
}

func (s *PackService) GetVariantsByQuestionID(ctx context.Context, questionID uuid.UUID) ([]models.Variant, error) {
	if _, err := s.store.GetQuestionByID(ctx, questionID); err != nil {
		return nil, lookupErr(err, ErrQuestionNotFound, "get question")
	}
	variants, err := s.store.GetVariantsByQuestionID(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("get variants: %w", err)
	}
	if variants == nil {
		variants = []models.Variant{}
	}
	return variants, nil
}

// CreatePackFromYAML creates a whole pack in one transaction. Nothing is
// stored when any part of the document is invalid.
func (s *PackService) CreatePackFromYAML(ctx context.Context, doc []byte) (*PackImport, error) {
	var parsed PackDocument
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)
	if err := dec.Decode(&parsed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, validationErr(errors.New("empty YAML document"))
		}
		return nil, validationErr(fmt.Errorf("invalid YAML: %w", err))
	}
	if err := parsed.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}

	result := &PackImport{}
	err := s.store.Transaction(ctx, func(tx *storage.GormStore) error {
		pack, err := tx.CreatePack(ctx, parsed.Title)
		if err != nil {
			return err
		}
		result.Pack = *pack

		for _, q := range parsed.Questions {
			question, err := tx.CreateQuestion(ctx, pack.ID, q.Text, q.ImageURL)
			if err != nil {
				return err
			}
			result.Questions++

			for _, v := range q.Variants {
				if _, err := tx.CreateVariant(ctx, question.ID, v.Text, v.IsCorrect); err != nil {
					return err
				}
				result.Variants++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import pack: %w", err)
	}

	s.log.Info("pack imported from YAML",
		zap.String("pack_id", result.Pack.ID.String()),
		zap.String("title", result.Pack.Title),
		zap.Int("questions", result.Questions),
		zap.Int("variants", result.Variants),
	)
	return result, nil
}
