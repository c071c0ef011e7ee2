package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunEntry records the outcome of a single fan-out run.
// Keep it compact and schema-stable.
type RunEntry struct {
	At        time.Time `json:"at"`
	RunID     string    `json:"run_id"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Batches   int       `json:"batches"`
	Attempts  int       `json:"attempts"`
	TookMS    int64     `json:"took_ms"`
}

// Totals aggregates run history for /stats and the daily digest.
type Totals struct {
	Runs      int
	Forwarded int
	Failed    int
}
