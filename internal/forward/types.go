package forward

import (
	"time"

	"forwardbot/internal/transport"
)

// Config tunes the fan-out pipeline. Zero values fall back to the defaults
// below; a snapshot is taken at the start of each run so hot reloads never
// change a run midway.
type Config struct {
	BatchSize        int
	MaxRetries       int
	InterBatchDelay  time.Duration
	TimeoutBackoff   time.Duration
	TransientBackoff time.Duration
	// RatePerSec bounds aggregate relay calls across the whole run,
	// independent of batching. 0 disables the limiter.
	RatePerSec int
}

const (
	defaultBatchSize        = 20
	defaultMaxRetries       = 3
	defaultInterBatchDelay  = time.Second
	defaultTimeoutBackoff   = 2 * time.Second
	defaultTransientBackoff = time.Second

	// Keep per-run failure lists bounded; counts stay exact regardless.
	maxFailureList = 200
)

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.InterBatchDelay <= 0 {
		c.InterBatchDelay = defaultInterBatchDelay
	}
	if c.TimeoutBackoff <= 0 {
		c.TimeoutBackoff = defaultTimeoutBackoff
	}
	if c.TransientBackoff <= 0 {
		c.TransientBackoff = defaultTransientBackoff
	}
	return c
}

// Outcome is the terminal result of forwarding to one destination.
type Outcome struct {
	Target   transport.ChatTarget
	OK       bool
	Attempts int // relay calls made, including the successful one
	Err      error
}

// Report aggregates one full fan-out run.
type Report struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Batches   int
	Attempts  int
	Duration  time.Duration
	Failures  []transport.ChatTarget // capped at maxFailureList entries
}
