package repository

import (
	"context"
	"time"

	"github.com/eslsoft/studydeck/internal/entity"
)

// ListFlashcardQuery holds parameters for listing flashcards.
type ListFlashcardQuery struct {
	Page
	Order

	// Subject is an exact match when non-empty.
	Subject string

	// Tag is matched as a case-sensitive substring of the comma-joined
	// stored tag list, not as exact set membership.
	Tag string
}

// ReviewFunc mutates the freshly loaded card in place and returns the
// history record to append. The record must be non-nil on success: every
// answer produces exactly one history row. Both writes are committed as
// one unit; no concurrent reader observes a partially applied answer.
type ReviewFunc func(card *entity.Flashcard) (*entity.ReviewRecord, error)

// StatsAggregate carries the raw counters the stats usecase assembles into
// entity.StudyStats.
type StatsAggregate struct {
	TotalFlashcards int64
	DueNow          int64
	TotalCorrect    int64
	TotalIncorrect  int64

	// ActiveDays is the number of distinct review days in the trailing
	// 30-day window ending at the query time.
	ActiveDays int64
}

// FlashcardRepository abstracts persistence for flashcards and their review
// history to keep usecases storage agnostic.
//
// NextDue returns (nil, nil) when nothing is due; an empty result is not an
// error. GetByID, Update, Delete and Review return
// entity.ErrFlashcardNotFound for unknown ids; infrastructure failures are
// wrapped with entity.ErrStorage.
type FlashcardRepository interface {
	Create(ctx context.Context, card *entity.Flashcard) (*entity.Flashcard, error)
	GetByID(ctx context.Context, id string) (*entity.Flashcard, error)
	List(ctx context.Context, query *ListFlashcardQuery) ([]entity.Flashcard, int64, error)

	// NextDue selects the single most urgent card with
	// next_review <= now (or never scheduled), optionally restricted to a
	// subject. Never-reviewed cards come first, then ascending
	// next_review, then harder and less-mastered cards.
	NextDue(ctx context.Context, subject string, now time.Time) (*entity.Flashcard, error)

	Update(ctx context.Context, card *entity.Flashcard) (*entity.Flashcard, error)
	Delete(ctx context.Context, id string) error

	// DeleteByDocument removes every card generated from the given
	// document and reports how many were removed.
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)

	// DeleteAll clears the store and reports how many cards were removed.
	DeleteAll(ctx context.Context) (int64, error)

	// Review loads the card identified by id under a write lock, applies
	// fn, then persists the mutated card and the returned history record
	// atomically. Concurrent reviews of the same card are serialized.
	Review(ctx context.Context, id string, fn ReviewFunc) (*entity.Flashcard, error)

	// Stats aggregates the counters for the overview, with the activity
	// window anchored at now.
	Stats(ctx context.Context, now time.Time) (*StatsAggregate, error)
}
