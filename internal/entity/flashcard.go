package entity

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// Difficulty bounds for a flashcard. The value moves one step towards
// MinDifficulty on a correct answer and towards MaxDifficulty on an
// incorrect one.
const (
	MinDifficulty int32 = 1
	MaxDifficulty int32 = 5
)

// Scheduling defaults applied to a freshly created flashcard.
const (
	DefaultEasinessFactor = 2.5
	DefaultIntervalDays   = 1
)

// Flashcard represents a single learning item together with its embedded
// spaced-repetition state.
type Flashcard struct {
	ID       string
	Subject  string
	Question string
	Answer   string

	// Difficulty is a 1-5 scale adjusted after every answer.
	Difficulty int32

	// Tags keep their original insertion order for display; duplicates are
	// dropped during Normalize.
	Tags []string

	// DocumentID is a weak back-reference to the document the card was
	// generated from. Empty for manually created cards. Deleting the
	// document does not delete the card unless a cascade is requested.
	DocumentID string

	CorrectCount   int64
	IncorrectCount int64

	// Spaced-repetition state. EasinessFactor is never below 1.3.
	EasinessFactor   float64
	IntervalDays     int32
	RepetitionNumber int32

	LastReviewedAt *time.Time
	NextReviewAt   *time.Time

	CreatedAt time.Time
}

// Normalize ensures defaults & constraints before persistence. A new card is
// immediately due: NextReviewAt defaults to the creation time.
func (f *Flashcard) Normalize(now time.Time) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.Difficulty == 0 {
		f.Difficulty = MinDifficulty
	}
	if f.EasinessFactor == 0 {
		f.EasinessFactor = DefaultEasinessFactor
	}
	if f.IntervalDays == 0 {
		f.IntervalDays = DefaultIntervalDays
	}
	f.Tags = lo.Uniq(lo.Map(f.Tags, func(tag string, _ int) string {
		return strings.TrimSpace(tag)
	}))
	if f.NextReviewAt == nil {
		due := f.CreatedAt
		f.NextReviewAt = &due
	}
}

// Validate rejects content that must never reach the store.
func (f *Flashcard) Validate() error {
	if strings.TrimSpace(f.Subject) == "" ||
		strings.TrimSpace(f.Question) == "" ||
		strings.TrimSpace(f.Answer) == "" {
		return ErrInvalidFlashcardText
	}
	if f.Difficulty < MinDifficulty || f.Difficulty > MaxDifficulty {
		return ErrInvalidDifficulty
	}
	for _, tag := range f.Tags {
		// Tags are stored comma-joined; an embedded comma would corrupt
		// the serialized form.
		if tag == "" || strings.Contains(tag, ",") {
			return ErrInvalidTag
		}
	}
	return nil
}

// Reviewed reports whether the card has been answered at least once.
func (f *Flashcard) Reviewed() bool {
	return f.LastReviewedAt != nil
}
