package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceSuccess(t *testing.T) {
	tests := []struct {
		name         string
		ease         float64
		intervalDays int
		wantEase     float64
		wantInterval int
		wantDelta    time.Duration
	}{
		{"first success", 2.50, 0, 2.55, 1, 24 * time.Hour},
		{"second success", 2.50, 1, 2.55, 2, 48 * time.Hour},
		{"multiplicative growth", 2.50, 5, 2.55, 13, 13 * 24 * time.Hour}, // round(5*2.55)=13
		{"ease capped at max", 3.0, 2, 3.0, 6, 6 * 24 * time.Hour},
		{"new ease used for the interval", 2.95, 10, 3.0, 30, 30 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Advance(true, tt.ease, tt.intervalDays)
			assert.InDelta(t, tt.wantEase, got.Ease, 1e-9)
			assert.Equal(t, tt.wantInterval, got.IntervalDays)
			assert.Equal(t, tt.wantDelta, got.DueDelta)
		})
	}
}

func TestAdvanceFailure(t *testing.T) {
	got := Advance(false, 2.50, 5)
	assert.InDelta(t, 2.30, got.Ease, 1e-9)
	assert.Equal(t, 0, got.IntervalDays)
	assert.Equal(t, 10*time.Minute, got.DueDelta)
}

func TestAdvanceFailureFloorsEase(t *testing.T) {
	got := Advance(false, MinEase, 0)
	assert.Equal(t, MinEase, got.Ease)

	// Repeated failures stay at the floor.
	for i := 0; i < 5; i++ {
		got = Advance(false, got.Ease, got.IntervalDays)
	}
	assert.Equal(t, MinEase, got.Ease)
	assert.Equal(t, 0, got.IntervalDays)
}

func TestAdvanceEaseStaysBounded(t *testing.T) {
	for ease := MinEase; ease <= MaxEase; ease += 0.01 {
		for _, correct := range []bool{true, false} {
			got := Advance(correct, ease, 3)
			assert.GreaterOrEqual(t, got.Ease, MinEase)
			assert.LessOrEqual(t, got.Ease, MaxEase)
		}
	}
}
