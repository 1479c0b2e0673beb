package workflow

import "time"

// BackoffStrategy computes the delay before retry attempt n (1-indexed).
type BackoffStrategy interface {
	Delay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay each attempt, capped at Max:
// Delay = min(Base * 2^(attempt-1), Max). With the default Base of one
// second and Max of thirty seconds this is the engine's min(2^n, 30s)
// retry policy. Tests shrink Base to keep runs fast.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
