package driver

import (
	"context"
	"time"
)

// Budget models the three clocks of spec.md §5: preprocessing (cheap,
// per-pass), soft (whole-analysis simplification budget, triggers
// partial-result extraction) and hard (overall wall-clock, aborts all
// further work). A zero time.Time for any field means "no deadline".
type Budget struct {
	Preprocess time.Time
	Soft       time.Time
	Hard       time.Time
}

// NewBudget builds a Budget whose three clocks start now and expire after
// the given durations. A zero duration means "no deadline" for that
// clock.
func NewBudget(preprocess, soft, hard time.Duration) Budget {
	now := time.Now()

	b := Budget{}
	if preprocess > 0 {
		b.Preprocess = now.Add(preprocess)
	}

	if soft > 0 {
		b.Soft = now.Add(soft)
	}

	if hard > 0 {
		b.Hard = now.Add(hard)
	}

	return b
}

// PreprocessExpired reports whether the preprocessing clock has elapsed.
func (b Budget) PreprocessExpired() bool {
	return expired(b.Preprocess)
}

// SoftExpired reports whether the soft simplification clock has elapsed.
func (b Budget) SoftExpired() bool {
	return expired(b.Soft)
}

// HardExpired reports whether the hard wall-clock deadline has elapsed.
func (b Budget) HardExpired() bool {
	return expired(b.Hard)
}

func expired(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}

// Context derives a context from parent bound by the hard deadline, so
// every oracle call threaded through it can honour cooperative
// cancellation (spec.md §5 "every oracle call receives a remaining-budget
// hint").
func (b Budget) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if b.Hard.IsZero() {
		return context.WithCancel(parent)
	}

	return context.WithDeadline(parent, b.Hard)
}
