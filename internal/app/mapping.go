package app

import (
	"forwardbot/internal/config"
	"forwardbot/internal/forward"
	"forwardbot/internal/metrics"
	"forwardbot/internal/report"
	"forwardbot/internal/storage"
)

// The config package stores durations as strings so the file format stays
// hand-editable; these helpers produce the typed configs the components take.
// Parse errors are unexpected here because Validate runs first, but they are
// still returned rather than swallowed.

func forwardConfig(c *config.Config) (forward.Config, error) {
	inter, err := config.ParseDurationField("forward.inter_batch_delay", c.Forward.InterBatchDelay)
	if err != nil {
		return forward.Config{}, err
	}
	timeout, err := config.ParseDurationField("forward.timeout_backoff", c.Forward.TimeoutBackoff)
	if err != nil {
		return forward.Config{}, err
	}
	transient, err := config.ParseDurationField("forward.transient_backoff", c.Forward.TransientBackoff)
	if err != nil {
		return forward.Config{}, err
	}
	return forward.Config{
		BatchSize:        c.Forward.BatchSize,
		MaxRetries:       c.Forward.MaxRetries,
		InterBatchDelay:  inter,
		TimeoutBackoff:   timeout,
		TransientBackoff: transient,
		RatePerSec:       c.Forward.RatePerSec,
	}, nil
}

func storageConfig(c *config.Config) (storage.Config, error) {
	if c.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func metricsServerConfig(c *config.Config) (metrics.ServerConfig, error) {
	if c.Metrics == nil {
		return metrics.ServerConfig{}, nil
	}
	read, err := config.ParseDurationField("metrics.read_timeout", c.Metrics.ReadTimeout)
	if err != nil {
		return metrics.ServerConfig{}, err
	}
	idle, err := config.ParseDurationField("metrics.idle_timeout", c.Metrics.IdleTimeout)
	if err != nil {
		return metrics.ServerConfig{}, err
	}
	return metrics.ServerConfig{
		Enabled:     c.Metrics.Enabled,
		Addr:        c.Metrics.Addr,
		ReadTimeout: read,
		IdleTimeout: idle,
	}, nil
}

func reportConfig(c *config.Config) report.Config {
	if c.Report == nil {
		return report.Config{}
	}
	return report.Config{
		Enabled:  c.Report.Enabled,
		Schedule: c.Report.Schedule,
		ChatID:   c.Report.ChatID,
		Timezone: c.Report.Timezone,
	}
}
