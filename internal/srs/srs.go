package srs

// MinEasiness is the floor for the easiness factor in every algorithm.
const MinEasiness = 1.3

// MaxIntervalDays caps every computed interval at roughly a century,
// matching the stock Anki maximum. Intervals are multiplied into day
// durations downstream, so unbounded growth is not representable.
const MaxIntervalDays = 36500

// State is the scheduling state embedded in a flashcard.
type State struct {
	// EasinessFactor controls how fast review intervals grow. Never
	// below MinEasiness.
	EasinessFactor float64

	// IntervalDays is the gap until the next review.
	IntervalDays int32

	// RepetitionNumber counts consecutive correct answers since the last
	// reset. An incorrect answer resets it to zero.
	RepetitionNumber int32
}

// DefaultState is the state assigned to a card that has never been reviewed.
func DefaultState() State {
	return State{EasinessFactor: 2.5, IntervalDays: 1, RepetitionNumber: 0}
}

// Algorithm computes the next review state from the current one and the
// outcome of a single answer. Implementations must not mutate shared state
// and must hold EasinessFactor >= MinEasiness and
// IntervalDays <= MaxIntervalDays in every returned State.
type Algorithm interface {
	ComputeNext(state State, correct bool) State
}
