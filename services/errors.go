package services

import (
	"errors"
	"fmt"

	"quizgame/storage"
)

// Umbrella errors; every specific error below wraps exactly one of them so
// transports can map categories without knowing each case.
var (
	ErrNotFound   = storage.ErrNotFound
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

var (
	ErrPackNotFound       = fmt.Errorf("pack %w", ErrNotFound)
	ErrQuestionNotFound   = fmt.Errorf("question %w", ErrNotFound)
	ErrVariantNotFound    = fmt.Errorf("variant %w", ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("game session %w", ErrNotFound)
	ErrPlayerNotFound     = fmt.Errorf("player %w", ErrNotFound)
	ErrNoCurrentQuestion  = fmt.Errorf("current question %w", ErrNotFound)
	ErrEventsNotRecorded  = fmt.Errorf("event history %w", ErrNotFound)
	ErrStatisticsNotFound = fmt.Errorf("statistics %w", ErrNotFound)

	ErrInvalidState           = fmt.Errorf("%w: game session is not in a state that allows this", ErrConflict)
	ErrAnswerAlreadySubmitted = fmt.Errorf("%w: answer already submitted", ErrConflict)
	ErrPlayerNameTaken        = fmt.Errorf("%w: player name already taken", ErrConflict)
	ErrVariantNotInQuestion   = fmt.Errorf("%w: variant does not belong to the current question", ErrConflict)
	ErrPackHasNoQuestions     = fmt.Errorf("%w: pack has no questions", ErrConflict)
	ErrNoPlayers              = fmt.Errorf("%w: game session has no players", ErrConflict)

	ErrInvalidPack = fmt.Errorf("%w: invalid pack", ErrValidation)
)

// lookupErr turns a storage miss into notFound and wraps anything else.
func lookupErr(err, notFound error, op string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func validationErr(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
