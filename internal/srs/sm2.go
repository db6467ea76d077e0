package srs

import "math"

// SM2 implements the SuperMemo-2 schedule.
//
// The classic algorithm grades answers on a 0-5 quality scale. The UI only
// exposes right/wrong, so the binary signal is mapped to quality 4
// (correct) or 2 (incorrect); this two-level grading is deliberate and
// should not be widened without a product change.
type SM2 struct{}

// ComputeNext applies one SM-2 step.
//
// An incorrect answer resets the repetition count and shrinks the interval
// back to one day. Correct answers walk the 1, 6, round(interval*EF)
// ladder. The easiness factor is updated in both cases, floored at
// MinEasiness and stored rounded to two decimals.
func (SM2) ComputeNext(state State, correct bool) State {
	quality := 4
	if !correct {
		quality = 2
	}

	ef := state.EasinessFactor + (0.1 - float64(5-quality)*(0.08+float64(5-quality)*0.02))
	if ef < MinEasiness {
		ef = MinEasiness
	}

	if !correct {
		return State{
			EasinessFactor:   round2(ef),
			IntervalDays:     1,
			RepetitionNumber: 0,
		}
	}

	repetition := state.RepetitionNumber + 1
	var interval int32
	switch repetition {
	case 1:
		interval = 1
	case 2:
		interval = 6
	default:
		// The interval grows from the unrounded factor; only the stored
		// state keeps the two-decimal form. The cap is applied before
		// the int32 conversion, which the product can otherwise exceed
		// after a couple dozen correct answers.
		grown := math.Round(float64(state.IntervalDays) * ef)
		if grown > MaxIntervalDays {
			grown = MaxIntervalDays
		}
		interval = int32(grown)
	}

	return State{
		EasinessFactor:   round2(ef),
		IntervalDays:     interval,
		RepetitionNumber: repetition,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
