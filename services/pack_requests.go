package services

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	maxTitleLength        = 200
	maxQuestionTextLength = 1000
	maxVariantTextLength  = 500
)

var (
	errNotEnoughVariants = errors.New("a question needs at least 2 variants")
	errCorrectVariants   = errors.New("a question needs exactly one correct variant")
)

type CreatePackRequest struct {
	Title string `json:"title"`
}

func (req *CreatePackRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Title, validation.Required, validation.Length(1, maxTitleLength)),
	)
}

type CreateQuestionRequest struct {
	PackID   string `json:"pack_id"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

func (req *CreateQuestionRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.PackID, validation.Required, is.UUID),
		validation.Field(&req.Text, validation.Required, validation.Length(1, maxQuestionTextLength)),
		validation.Field(&req.ImageURL, is.URL),
	)
}

type CreateVariantRequest struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}

func (req *CreateVariantRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.QuestionID, validation.Required, is.UUID),
		validation.Field(&req.Text, validation.Required, validation.Length(1, maxVariantTextLength)),
	)
}

// PackDocument is the YAML form of a whole pack:
//
//	title: Capitals
//	questions:
//	  - text: Capital of France?
//	    image_url: https://example.com/france.png
//	    variants:
//	      - text: Paris
//	        is_correct: true
//	      - text: Lyon
type PackDocument struct {
	Title     string             `yaml:"title"`
	Questions []QuestionDocument `yaml:"questions"`
}

type QuestionDocument struct {
	Text     string            `yaml:"text"`
	ImageURL string            `yaml:"image_url"`
	Variants []VariantDocument `yaml:"variants"`
}

type VariantDocument struct {
	Text      string `yaml:"text"`
	IsCorrect bool   `yaml:"is_correct"`
}

func (doc *PackDocument) Validate() error {
	if err := validation.ValidateStruct(
		doc,
		validation.Field(&doc.Title, validation.Required, validation.Length(1, maxTitleLength)),
		validation.Field(&doc.Questions, validation.Required),
	); err != nil {
		return err
	}
	for i := range doc.Questions {
		if err := doc.Questions[i].Validate(); err != nil {
			return fmt.Errorf("questions[%d]: %w", i, err)
		}
	}
	return nil
}

func (q *QuestionDocument) Validate() error {
	if err := validation.ValidateStruct(
		q,
		validation.Field(&q.Text, validation.Required, validation.Length(1, maxQuestionTextLength)),
		validation.Field(&q.ImageURL, is.URL),
	); err != nil {
		return err
	}
	if len(q.Variants) < 2 {
		return errNotEnoughVariants
	}
	correct := 0
	for i := range q.Variants {
		v := &q.Variants[i]
		if err := validation.ValidateStruct(
			v,
			validation.Field(&v.Text, validation.Required, validation.Length(1, maxVariantTextLength)),
		); err != nil {
			return fmt.Errorf("variants[%d]: %w", i, err)
		}
		if v.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return errCorrectVariants
	}
	return nil
}
