package entity

import "time"

// ReviewRecord is an immutable, append-only account of one answer event.
type ReviewRecord struct {
	ID          string
	FlashcardID string
	ReviewedAt  time.Time
	Correct     bool

	// TimeSpentSeconds is optional; nil when the client did not measure it.
	TimeSpentSeconds *int32
}
