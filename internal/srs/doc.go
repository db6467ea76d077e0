// Package srs implements the spaced-repetition scheduling algorithms.
//
// An Algorithm maps the current review state of a card and a binary
// correct/incorrect signal to the next state. Implementations are pure and
// deterministic; persistence and timestamps are the caller's concern.
//
//	algo := srs.SM2{}
//	next := algo.ComputeNext(srs.State{EasinessFactor: 2.5, IntervalDays: 1}, true)
package srs
