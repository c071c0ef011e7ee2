package app

import (
	"testing"
	"time"

	"forwardbot/internal/config"
)

func TestForwardConfigMapping(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Forward = config.ForwardConfig{
		BatchSize:        10,
		MaxRetries:       5,
		InterBatchDelay:  "750ms",
		TimeoutBackoff:   "3s",
		TransientBackoff: "",
		RatePerSec:       25,
	}

	fc, err := forwardConfig(cfg)
	if err != nil {
		t.Fatalf("forwardConfig: %v", err)
	}
	if fc.BatchSize != 10 || fc.MaxRetries != 5 || fc.RatePerSec != 25 {
		t.Fatalf("mapped = %+v", fc)
	}
	if fc.InterBatchDelay != 750*time.Millisecond || fc.TimeoutBackoff != 3*time.Second {
		t.Fatalf("durations = %+v", fc)
	}
	if fc.TransientBackoff != 0 {
		t.Fatalf("empty duration should map to zero, got %v", fc.TransientBackoff)
	}

	cfg.Forward.InterBatchDelay = "junk"
	if _, err := forwardConfig(cfg); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestStorageConfigMapping(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	sc, err := storageConfig(cfg)
	if err != nil {
		t.Fatalf("nil storage: %v", err)
	}
	if sc.Driver != "" {
		t.Fatalf("nil storage should map to disabled, got %+v", sc)
	}

	cfg.Storage = &config.StorageConfig{Driver: "file", Path: "/tmp/x", BusyTimeout: "250ms"}
	sc, err = storageConfig(cfg)
	if err != nil {
		t.Fatalf("storageConfig: %v", err)
	}
	if sc.Driver != "file" || sc.BusyTimeout != 250*time.Millisecond {
		t.Fatalf("mapped = %+v", sc)
	}
}

func TestReportConfigMapping(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	if rc := reportConfig(cfg); rc.Enabled {
		t.Fatalf("nil report should map to disabled, got %+v", rc)
	}
	cfg.Report = &config.ReportConfig{Enabled: true, Schedule: "0 9 * * *", ChatID: 7, Timezone: "UTC"}
	rc := reportConfig(cfg)
	if !rc.Enabled || rc.ChatID != 7 || rc.Schedule != "0 9 * * *" {
		t.Fatalf("mapped = %+v", rc)
	}
}
