// Package srs implements the spaced-repetition scheduling engine: a pure
// function from one review outcome to the next ease factor, interval and due
// delay. Simplified SM-2.
package srs

import (
	"math"
	"time"
)

// Ease factor bounds. The ease is clamped into [MinEase, MaxEase] before it
// is used to compute the next interval.
const (
	MinEase     = 1.3
	MaxEase     = 3.0
	DefaultEase = 2.50
)

// RelearnDelay is how soon a failed item comes back. Deliberately in minutes
// while the success path schedules in whole days: failed items relearn fast.
const RelearnDelay = 10 * time.Minute

// Result is the updated scheduling state after one review.
type Result struct {
	Ease         float64
	IntervalDays int
	DueDelta     time.Duration
}

// Advance maps one pass/fail review onto the next scheduling state.
//
// On success the ease rises by 0.05 and the interval progresses
// 0 -> 1 -> 2 -> round(interval * ease), with the due delay in days.
// On failure the ease drops by 0.20, the interval resets to 0 and the item
// is due again after RelearnDelay.
//
// Rounding is math.Round (half away from zero); with two-decimal ease values
// this matches e.g. round(5*2.55) = 13. No I/O, no clock access.
func Advance(correct bool, ease float64, intervalDays int) Result {
	if !correct {
		return Result{
			Ease:         clamp(ease-0.20, MinEase, MaxEase),
			IntervalDays: 0,
			DueDelta:     RelearnDelay,
		}
	}

	newEase := clamp(ease+0.05, MinEase, MaxEase)
	var next int
	switch {
	case intervalDays == 0:
		next = 1
	case intervalDays == 1:
		next = 2
	default:
		next = int(math.Round(float64(intervalDays) * newEase))
	}
	return Result{
		Ease:         newEase,
		IntervalDays: next,
		DueDelta:     time.Duration(next) * 24 * time.Hour,
	}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
