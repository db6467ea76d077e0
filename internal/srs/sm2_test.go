package srs

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func assertState(t *testing.T, got, want State) {
	t.Helper()
	if math.Abs(got.EasinessFactor-want.EasinessFactor) > epsilon {
		t.Errorf("easiness factor = %.4f, want %.4f", got.EasinessFactor, want.EasinessFactor)
	}
	if got.IntervalDays != want.IntervalDays {
		t.Errorf("interval days = %d, want %d", got.IntervalDays, want.IntervalDays)
	}
	if got.RepetitionNumber != want.RepetitionNumber {
		t.Errorf("repetition number = %d, want %d", got.RepetitionNumber, want.RepetitionNumber)
	}
}

func TestSM2CorrectLadder(t *testing.T) {
	// Three correct answers from a fresh card: intervals 1, 6, then
	// round(6 * EF). Quality 4 leaves the factor untouched
	// (0.1 - 1*(0.08 + 0.02) == 0), so EF stays 2.5 and the third
	// interval is round(6 * 2.5) = 15.
	algo := SM2{}
	state := DefaultState()
	state.RepetitionNumber = 0

	state = algo.ComputeNext(state, true)
	assertState(t, state, State{EasinessFactor: 2.5, IntervalDays: 1, RepetitionNumber: 1})

	state = algo.ComputeNext(state, true)
	assertState(t, state, State{EasinessFactor: 2.5, IntervalDays: 6, RepetitionNumber: 2})

	state = algo.ComputeNext(state, true)
	assertState(t, state, State{EasinessFactor: 2.5, IntervalDays: 15, RepetitionNumber: 3})
}

func TestSM2IncorrectResets(t *testing.T) {
	algo := SM2{}
	tests := []struct {
		name  string
		state State
	}{
		{"fresh", State{EasinessFactor: 2.5, IntervalDays: 1, RepetitionNumber: 0}},
		{"mature", State{EasinessFactor: 2.5, IntervalDays: 120, RepetitionNumber: 7}},
		{"struggling", State{EasinessFactor: 1.3, IntervalDays: 3, RepetitionNumber: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := algo.ComputeNext(tt.state, false)
			if got.IntervalDays != 1 {
				t.Errorf("interval days = %d, want 1", got.IntervalDays)
			}
			if got.RepetitionNumber != 0 {
				t.Errorf("repetition number = %d, want 0", got.RepetitionNumber)
			}
		})
	}
}

func TestSM2IncorrectPenalty(t *testing.T) {
	// Quality 2 costs 0.1 - 3*(0.08 + 3*0.02) = -0.32.
	algo := SM2{}
	got := algo.ComputeNext(State{EasinessFactor: 2.5, IntervalDays: 6, RepetitionNumber: 2}, false)
	assertState(t, got, State{EasinessFactor: 2.18, IntervalDays: 1, RepetitionNumber: 0})
}

func TestSM2EasinessFloor(t *testing.T) {
	algo := SM2{}
	state := State{EasinessFactor: 1.35, IntervalDays: 1, RepetitionNumber: 0}
	for i := 0; i < 10; i++ {
		state = algo.ComputeNext(state, false)
		if state.EasinessFactor < MinEasiness {
			t.Fatalf("after %d failures easiness factor = %.4f, below floor %.2f",
				i+1, state.EasinessFactor, MinEasiness)
		}
	}
	if state.EasinessFactor != MinEasiness {
		t.Errorf("easiness factor = %.4f, want clamped to %.2f", state.EasinessFactor, MinEasiness)
	}
}

func TestSM2FloorHoldsOverMixedSequences(t *testing.T) {
	// Property: 1.3 <= EF after any answer sequence.
	algo := SM2{}
	sequences := [][]bool{
		{false, false, false, false, false, false},
		{true, false, true, false, true, false},
		{false, true, true, true, false, false, true},
		{true, true, true, true, true, true, true, true},
	}
	for _, seq := range sequences {
		state := DefaultState()
		for i, correct := range seq {
			state = algo.ComputeNext(state, correct)
			if state.EasinessFactor < MinEasiness {
				t.Fatalf("sequence %v step %d: easiness factor %.4f below floor", seq, i, state.EasinessFactor)
			}
		}
	}
}

func TestSM2RoundsStoredFactor(t *testing.T) {
	algo := SM2{}
	got := algo.ComputeNext(State{EasinessFactor: 2.215, IntervalDays: 1, RepetitionNumber: 0}, false)
	// 2.215 - 0.32 = 1.895; stored with two decimals.
	if math.Abs(got.EasinessFactor-1.9) > 0.005 {
		t.Errorf("easiness factor = %.4f, want ~1.90", got.EasinessFactor)
	}
	if got.EasinessFactor != math.Round(got.EasinessFactor*100)/100 {
		t.Errorf("easiness factor %.10f not rounded to two decimals", got.EasinessFactor)
	}
}

func TestSM2IntervalCapped(t *testing.T) {
	algo := SM2{}
	state := DefaultState()
	for i := 0; i < 40; i++ {
		state = algo.ComputeNext(state, true)
		if state.IntervalDays < 1 || state.IntervalDays > MaxIntervalDays {
			t.Fatalf("answer %d: interval %d outside [1, %d]", i+1, state.IntervalDays, MaxIntervalDays)
		}
	}
	if state.IntervalDays != MaxIntervalDays {
		t.Fatalf("interval = %d, want cap %d after a long correct run", state.IntervalDays, MaxIntervalDays)
	}
}
