package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Forward  ForwardConfig  `json:"forward"`
	Logging  LoggingConfig  `json:"logging"`

	Storage *StorageConfig `json:"storage,omitempty"`
	Metrics *MetricsConfig `json:"metrics,omitempty"`
	Report  *ReportConfig  `json:"report,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// MasterChannel is the only chat whose posts trigger fan-out.
	MasterChannel int64 `json:"master_channel"`

	// Destinations receive a forwarded copy of every master post.
	// The list is deduplicated on load, preserving first-seen order.
	Destinations []int64 `json:"destinations"`

	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`

	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// ForwardConfig tunes the fan-out pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "2s").
// Defaults (when fields are omitted/zero):
//   - batch_size: 20
//   - max_retries: 3
//   - inter_batch_delay: "1s"
//   - timeout_backoff: "2s"
//   - transient_backoff: "1s"
//   - rate_per_sec: 0 (aggregate limiter disabled)
type ForwardConfig struct {
	BatchSize        int    `json:"batch_size,omitempty"`
	MaxRetries       int    `json:"max_retries,omitempty"`
	InterBatchDelay  string `json:"inter_batch_delay,omitempty"`
	TimeoutBackoff   string `json:"timeout_backoff,omitempty"`
	TransientBackoff string `json:"transient_backoff,omitempty"`
	RatePerSec       int    `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls optional run-summary persistence.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./forwardbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MetricsConfig controls the optional Prometheus exposition endpoint.
// Prefer binding to localhost.
type MetricsConfig struct {
	Enabled     bool   `json:"enabled"`
	Addr        string `json:"addr,omitempty"` // default: "127.0.0.1:9090"
	ReadTimeout string `json:"read_timeout,omitempty"`
	IdleTimeout string `json:"idle_timeout,omitempty"`
}

// ReportConfig controls the daily digest posted to the operator chat.
type ReportConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // cron spec, default "0 9 * * *"
	ChatID   int64  `json:"chat_id,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Normalize cleans up fields that tolerate sloppy input: it deduplicates the
// destination list preserving first-seen order and trims the token.
func (c *Config) Normalize() {
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)

	seen := make(map[int64]struct{}, len(c.Telegram.Destinations))
	dests := c.Telegram.Destinations[:0]
	for _, id := range c.Telegram.Destinations {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		dests = append(dests, id)
	}
	c.Telegram.Destinations = dests
}

// Validate checks the invariants that must hold before the bot can start or a
// hot reload can be committed.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	if c.Telegram.MasterChannel == 0 {
		return errors.New("telegram.master_channel is required")
	}
	if len(c.Telegram.Destinations) == 0 {
		return errors.New("telegram.destinations must not be empty")
	}
	for _, id := range c.Telegram.Destinations {
		if id == c.Telegram.MasterChannel {
			return fmt.Errorf("telegram.destinations must not contain the master channel (%d)", id)
		}
	}
	if c.Forward.BatchSize < 0 {
		return errors.New("forward.batch_size must be >= 0")
	}
	if c.Forward.MaxRetries < 0 {
		return errors.New("forward.max_retries must be >= 0")
	}
	if c.Forward.RatePerSec < 0 {
		return errors.New("forward.rate_per_sec must be >= 0")
	}
	for name, v := range map[string]string{
		"telegram.poll_timeout":     c.Telegram.PollTimeout,
		"forward.inter_batch_delay": c.Forward.InterBatchDelay,
		"forward.timeout_backoff":   c.Forward.TimeoutBackoff,
		"forward.transient_backoff": c.Forward.TransientBackoff,
	} {
		if _, err := ParseDurationField(name, v); err != nil {
			return err
		}
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if c.Metrics != nil {
		if _, err := ParseDurationField("metrics.read_timeout", c.Metrics.ReadTimeout); err != nil {
			return err
		}
		if _, err := ParseDurationField("metrics.idle_timeout", c.Metrics.IdleTimeout); err != nil {
			return err
		}
	}
	return nil
}
