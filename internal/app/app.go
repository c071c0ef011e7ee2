package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"forwardbot/internal/config"
	"forwardbot/internal/forward"
	"forwardbot/internal/intake"
	"forwardbot/internal/metrics"
	"forwardbot/internal/report"
	"forwardbot/internal/runtime/supervisor"
	"forwardbot/internal/storage"
	"forwardbot/internal/transport"
	"forwardbot/internal/transport/telegram"
	"forwardbot/pkg/logx"
)

// App wires the adapter, the fan-out pipeline, and the supporting services
// together and owns their lifecycle.
type App struct {
	cfgPath string
	cfgm    *config.Manager
	sup     *supervisor.Supervisor

	logs *logx.Service
	log  logx.Logger

	adapter transport.Adapter
	disp    *forward.Dispatcher
	in      *intake.Service
	store   storage.Store
	msrv    *metrics.Server
	digest  *report.Service

	ownersMu sync.RWMutex
	owners   []int64

	startedAt time.Time
	updates   chan transport.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logs.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	fcfg, err := forwardConfig(cfg)
	if err != nil {
		return nil, err
	}
	disp := forward.NewDispatcher(fcfg, adapter, logs.Logger().With(logx.String("comp", "forward")))

	scfg, err := storageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(scfg, logs.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	mcfg, err := metricsServerConfig(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		logs:    logs,
		log:     log,
		adapter: adapter,
		disp:    disp,
		store:   store,
		msrv:    metrics.NewServer(mcfg, logs.Logger().With(logx.String("comp", "metrics"))),
		updates: make(chan transport.Update, 256),
	}
	a.in = intake.New(disp, store, a, logs.Logger().With(logx.String("comp", "intake")))
	a.in.Apply(cfg.Telegram.MasterChannel, cfg.Telegram.Destinations)
	a.setOwners(cfg.Telegram.OwnerUserIDs)
	a.digest = report.New(reportConfig(cfg), store, adapter, logs.Logger().With(logx.String("comp", "report")))
	return a, nil
}

// Done is closed when the run context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.Report != nil {
			if err := report.ValidateSchedule(cfg.Report.Schedule); err != nil {
				return err
			}
			if tz := strings.TrimSpace(cfg.Report.Timezone); tz != "" {
				if _, err := time.LoadLocation(tz); err != nil {
					return fmt.Errorf("report.timezone: invalid %q: %w", tz, err)
				}
			}
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sup.Go("intake", func(c context.Context) error {
		return a.in.Run(c, a.updates)
	})

	if err := a.msrv.Start(a.sup.Context()); err != nil {
		return err
	}
	if err := a.digest.Start(a.sup.Context()); err != nil {
		return err
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.banner()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	return nil
}

// reloadLoop applies committed config changes to the live components.
// Token and storage changes need a restart; everything else applies in place.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest snapshot matters.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					drained = true
				}
			}
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(old, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if fcfg, err := forwardConfig(cfg); err != nil {
		a.log.Warn("forward config rejected on reload", logx.Err(err))
	} else {
		a.disp.Apply(fcfg)
	}

	a.in.Apply(cfg.Telegram.MasterChannel, cfg.Telegram.Destinations)
	a.setOwners(cfg.Telegram.OwnerUserIDs)
	a.digest.Apply(reportConfig(cfg))

	if old != nil {
		if cfg.Telegram.Token != old.Telegram.Token {
			a.log.Warn("telegram.token changed; restart required to take effect")
		}
		oldS, newS := old.Storage, cfg.Storage
		if (oldS == nil) != (newS == nil) ||
			(oldS != nil && newS != nil && (oldS.Driver != newS.Driver || oldS.Path != newS.Path)) {
			a.log.Warn("storage settings changed; restart required to take effect")
		}
	}

	a.log.Info("config reloaded",
		logx.Int64("master", cfg.Telegram.MasterChannel),
		logx.Int("destinations", len(cfg.Telegram.Destinations)))
}

func (a *App) banner() {
	cfg := a.cfgm.Get()
	if cfg == nil {
		return
	}
	preview := cfg.Telegram.Destinations
	if len(preview) > 5 {
		preview = preview[:5]
	}
	a.log.Info("forward bot started",
		logx.Int64("master", cfg.Telegram.MasterChannel),
		logx.Int("destinations", len(cfg.Telegram.Destinations)),
		logx.Any("first_destinations", preview),
		logx.Bool("storage", a.store != nil),
		logx.Bool("metrics", cfg.Metrics != nil && cfg.Metrics.Enabled),
		logx.Bool("daily_digest", cfg.Report != nil && cfg.Report.Enabled))
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	// Bound every shutdown step so one stuck component can't stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem > 0 && rem < max {
					max = rem
				}
			}
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
	}

	a.digest.Stop()
	step("adapter", 3*time.Second, a.adapter.Stop)
	step("metrics", 2*time.Second, a.msrv.Stop)
	step("supervisor", 2*time.Second, a.sup.Wait)

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}
