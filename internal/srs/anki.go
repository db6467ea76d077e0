package srs

import (
	"fmt"
	"math"
)

// AnkiConfig tunes the Anki-style schedule. Zero values produce the stock
// Anki defaults; see field comments.
type AnkiConfig struct {
	// LearningSteps are the in-learning steps in minutes. Retained for
	// configuration compatibility; the binary correct/incorrect signal
	// never re-enters the learning phase, so they are not consulted.
	LearningSteps []int // nil → [1, 10]

	// GraduatingIntervalDays is the interval granted by the first correct
	// answer. zero → 1
	GraduatingIntervalDays int

	// EasyIntervalDays would apply to an "easy" grade, which the binary
	// signal cannot produce. Retained for configuration compatibility.
	// zero → 4
	EasyIntervalDays int

	// StartingEase is the ease assigned when the card carries none.
	// zero → 2.5
	StartingEase float64

	// EasyBonus would scale "easy" intervals; unreachable with the binary
	// signal. zero → 1.3
	EasyBonus float64

	// IntervalModifier scales every computed interval. zero → 1.0
	IntervalModifier float64
}

// Anki implements a simplified Anki schedule with graduating intervals.
// Incorrect answers lapse the card back to a one-day interval and cost 0.2
// ease; correct answers grow the interval by the ease factor and recover
// 0.15 ease up to the 2.5 ceiling.
type Anki struct {
	cfg AnkiConfig
}

// NewAnki creates an Anki schedule from the given config. Zero-value
// fields are filled with defaults; invalid values return an error.
func NewAnki(cfg AnkiConfig) (*Anki, error) {
	if cfg.LearningSteps == nil {
		cfg.LearningSteps = []int{1, 10}
	}
	if cfg.GraduatingIntervalDays == 0 {
		cfg.GraduatingIntervalDays = 1
	}
	if cfg.GraduatingIntervalDays < 0 {
		return nil, fmt.Errorf("srs: graduating interval %d must be positive", cfg.GraduatingIntervalDays)
	}
	if cfg.EasyIntervalDays == 0 {
		cfg.EasyIntervalDays = 4
	}
	if cfg.StartingEase == 0 {
		cfg.StartingEase = 2.5
	}
	if cfg.StartingEase < MinEasiness {
		return nil, fmt.Errorf("srs: starting ease %g below minimum %g", cfg.StartingEase, MinEasiness)
	}
	if cfg.EasyBonus == 0 {
		cfg.EasyBonus = 1.3
	}
	if cfg.IntervalModifier == 0 {
		cfg.IntervalModifier = 1.0
	}
	if cfg.IntervalModifier < 0 {
		return nil, fmt.Errorf("srs: interval modifier %g must be positive", cfg.IntervalModifier)
	}
	return &Anki{cfg: cfg}, nil
}

// ComputeNext applies one Anki step.
func (a *Anki) ComputeNext(state State, correct bool) State {
	ease := state.EasinessFactor
	if ease == 0 {
		ease = a.cfg.StartingEase
	}

	if !correct {
		return State{
			EasinessFactor:   math.Max(MinEasiness, ease-0.2),
			IntervalDays:     1,
			RepetitionNumber: 0,
		}
	}

	var interval int32
	if state.RepetitionNumber == 0 {
		interval = int32(a.cfg.GraduatingIntervalDays)
	} else {
		grown := math.Round(float64(state.IntervalDays) * ease * a.cfg.IntervalModifier)
		grown = math.Min(grown, MaxIntervalDays)
		interval = int32(math.Max(1, grown))
	}

	return State{
		EasinessFactor:   math.Min(2.5, ease+0.15),
		IntervalDays:     interval,
		RepetitionNumber: state.RepetitionNumber + 1,
	}
}
