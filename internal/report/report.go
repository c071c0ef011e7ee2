package report

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"forwardbot/internal/storage"
	"forwardbot/internal/transport"
	"forwardbot/pkg/logx"
)

const defaultSchedule = "0 9 * * *"

// Config controls the daily digest posted to the operator chat.
type Config struct {
	Enabled  bool
	Schedule string // standard 5-field cron spec, default "0 9 * * *"
	ChatID   int64
	Timezone string // IANA TZ, e.g. "Asia/Jakarta"; empty means Local
}

// Service posts a periodic summary of run history to a configured chat.
// It is a no-op when disabled or when storage is absent.
type Service struct {
	mu sync.Mutex

	cfg    Config
	log    logx.Logger
	store  storage.Store
	sender transport.Sender

	parser cron.Parser
	c      *cron.Cron
	ctx    context.Context
}

func New(cfg Config, store storage.Store, sender transport.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		store:  store,
		sender: sender,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if !s.cfg.Enabled || s.cfg.ChatID == 0 || s.store == nil {
		return nil
	}
	s.ctx = ctx
	return s.startLocked()
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Apply swaps the configuration, restarting the cron when the schedule,
// timezone, or enablement changed.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := cfg.Enabled != s.cfg.Enabled ||
		cfg.Schedule != s.cfg.Schedule ||
		cfg.Timezone != s.cfg.Timezone ||
		cfg.ChatID != s.cfg.ChatID
	s.cfg = cfg
	if !changed || s.ctx == nil {
		return
	}

	s.stopLocked()
	if s.cfg.Enabled && s.cfg.ChatID != 0 && s.store != nil {
		if err := s.startLocked(); err != nil {
			s.log.Warn("digest restart failed", logx.Err(err))
		}
	}
}

func (s *Service) startLocked() error {
	spec := strings.TrimSpace(s.cfg.Schedule)
	if spec == "" {
		spec = defaultSchedule
	}
	loc := s.loadLocationLocked()
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, s.fire); err != nil {
		return fmt.Errorf("digest schedule %q: %w", spec, err)
	}
	c.Start()
	s.c = c
	s.log.Info("daily digest scheduled",
		logx.String("spec", spec), logx.String("tz", loc.String()), logx.Int64("chat_id", s.cfg.ChatID))
	return nil
}

func (s *Service) stopLocked() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) fire() {
	s.mu.Lock()
	ctx := s.ctx
	chatID := s.cfg.ChatID
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	totals, err := s.store.TotalsSince(sctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		s.log.Warn("digest totals query failed", logx.Err(err))
		return
	}
	if _, err := s.sender.SendText(sctx, transport.ChatTarget{ChatID: chatID}, digestText(totals)); err != nil {
		s.log.Warn("digest send failed", logx.Err(err), logx.Int64("chat_id", chatID))
		return
	}
	s.log.Info("daily digest sent", logx.Int("runs", totals.Runs))
}

// ValidateSchedule reports whether spec parses as a digest schedule.
// Empty means "use the default" and is valid.
func ValidateSchedule(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("report.schedule: %w", err)
	}
	return nil
}

func digestText(t storage.Totals) string {
	if t.Runs == 0 {
		return "Daily digest: no posts forwarded in the last 24h."
	}
	return fmt.Sprintf("Daily digest (last 24h): %d run(s), %d forwarded, %d failed.",
		t.Runs, t.Forwarded, t.Failed)
}
