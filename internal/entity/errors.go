package entity

import "errors"

// Domain errors for flashcards and related aggregates.
var (
	ErrFlashcardNotFound    = errors.New("flashcard not found")
	ErrInvalidFlashcardID   = errors.New("invalid flashcard ID")
	ErrInvalidFlashcardText = errors.New("invalid flashcard text")
	ErrInvalidDifficulty    = errors.New("difficulty out of range")
	ErrInvalidTag           = errors.New("invalid tag")

	// ErrStorage wraps failures of the backing store so callers can
	// distinguish them from domain errors with errors.Is.
	ErrStorage = errors.New("storage unavailable")
)
