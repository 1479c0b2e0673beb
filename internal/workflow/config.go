package workflow

import "time"

const (
	defaultStepTimeout           = 30 * time.Second
	defaultBackoffBase           = time.Second
	defaultBackoffMax            = 30 * time.Second
	defaultRetentionMaxInstances = 1000
	defaultRetentionTTL          = 24 * time.Hour
)

// Config carries the engine's tunables. Zero values fall back to defaults.
type Config struct {
	// DefaultStepTimeout bounds steps whose spec declares no timeout.
	DefaultStepTimeout time.Duration
	// BackoffBase is one retry "time unit"; the delay before retry n is
	// min(BackoffBase * 2^(n-1), BackoffMax). Tests shrink it.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// RetentionMaxInstances caps stored instances; terminal instances are
	// evicted oldest-first beyond it. RetentionTTL ages terminal instances
	// out regardless of the cap.
	RetentionMaxInstances int
	RetentionTTL          time.Duration
}

func (c Config) normalized() Config {
	out := c
	if out.DefaultStepTimeout <= 0 {
		out.DefaultStepTimeout = defaultStepTimeout
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = defaultBackoffBase
	}
	if out.BackoffMax <= 0 {
		out.BackoffMax = defaultBackoffMax
	}
	if out.RetentionMaxInstances <= 0 {
		out.RetentionMaxInstances = defaultRetentionMaxInstances
	}
	if out.RetentionTTL <= 0 {
		out.RetentionTTL = defaultRetentionTTL
	}
	return out
}
