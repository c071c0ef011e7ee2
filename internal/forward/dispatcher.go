package forward

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"forwardbot/internal/metrics"
	"forwardbot/internal/transport"
	"forwardbot/pkg/logx"
)

// Dispatcher fans one message out to a destination set in contiguous batches.
// Destinations within a batch are forwarded concurrently; batches run
// sequentially with InterBatchDelay between them to stay under aggregate
// platform limits.
type Dispatcher struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	relayer transport.Relayer
	log     logx.Logger

	sleep    sleepFunc
	newRunID func() string
}

func NewDispatcher(cfg Config, relayer transport.Relayer, log logx.Logger) *Dispatcher {
	d := &Dispatcher{
		relayer:  relayer,
		log:      log,
		sleep:    sleepCtx,
		newRunID: func() string { return uuid.NewString() },
	}
	d.Apply(cfg)
	return d
}

// Apply installs a new tuning snapshot. Runs already in flight keep the
// snapshot they started with.
func (d *Dispatcher) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
	if cfg.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	} else {
		d.limiter = nil
	}
}

func (d *Dispatcher) snapshot() (Config, *rate.Limiter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg, d.limiter
}

// DispatchAll forwards msg to every target and returns the aggregated report.
// Every target yields exactly one terminal outcome; a failure (or panic) in
// one target never affects its siblings. Cancellation aborts pending work but
// the report still accounts for every target.
func (d *Dispatcher) DispatchAll(ctx context.Context, msg transport.MessageRef, targets []transport.ChatTarget) Report {
	cfg, limiter := d.snapshot()
	start := time.Now()

	rep := Report{RunID: d.newRunID(), Total: len(targets)}
	log := d.log.With(logx.String("run", rep.RunID))

	batches := splitBatches(targets, cfg.BatchSize)
	rep.Batches = len(batches)

	fwd := &forwarder{
		relayer: d.relayer,
		limiter: limiter,
		cfg:     cfg,
		log:     log,
		sleep:   d.sleep,
	}

	log.Info("run started",
		logx.Int64("message_chat", msg.ChatID),
		logx.Int("message_id", msg.MessageID),
		logx.Int("targets", len(targets)),
		logx.Int("batches", len(batches)))

	for i, batch := range batches {
		log.Info("batch started", logx.Int("batch", i+1), logx.Int("size", len(batch)))
		outcomes := d.runBatch(ctx, fwd, msg, batch)
		metrics.RecordBatch()

		for _, out := range outcomes {
			rep.Attempts += out.Attempts
			metrics.RecordDestination(out.OK)
			if out.OK {
				rep.Succeeded++
				continue
			}
			rep.Failed++
			if len(rep.Failures) < maxFailureList {
				rep.Failures = append(rep.Failures, out.Target)
			}
		}

		// Throttle between batches, never after the last one.
		if i < len(batches)-1 {
			if err := d.sleep(ctx, cfg.InterBatchDelay); err != nil {
				// Shutting down: remaining targets count as failures so the
				// report still covers the whole destination set.
				remaining := 0
				for _, later := range batches[i+1:] {
					remaining += len(later)
					for _, t := range later {
						if len(rep.Failures) < maxFailureList {
							rep.Failures = append(rep.Failures, t)
						}
						metrics.RecordDestination(false)
					}
				}
				rep.Failed += remaining
				log.Warn("run aborted between batches", logx.Int("skipped", remaining), logx.Err(err))
				break
			}
		}
	}

	rep.Duration = time.Since(start)
	metrics.RecordRun(rep.Duration)

	fields := []logx.Field{
		logx.Int("total", rep.Total),
		logx.Int("succeeded", rep.Succeeded),
		logx.Int("failed", rep.Failed),
		logx.Int("attempts", rep.Attempts),
		logx.Duration("dur", rep.Duration),
	}
	if rep.Failed > 0 {
		log.Warn("run finished with failures", fields...)
	} else {
		log.Info("run finished", fields...)
	}
	return rep
}

// runBatch forwards to every target in the batch concurrently. Outcomes land
// in per-index slots, so no aggregation lock is needed and completion order
// cannot affect the result.
func (d *Dispatcher) runBatch(ctx context.Context, fwd *forwarder, msg transport.MessageRef, batch []transport.ChatTarget) []Outcome {
	outcomes := make([]Outcome, len(batch))
	var wg sync.WaitGroup
	wg.Add(len(batch))
	for i, target := range batch {
		i, target := i, target
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.log.Error("panic in forward task",
						logx.Int64("chat_id", target.ChatID),
						logx.Any("panic", r),
						logx.Stack(logx.StackTrace()))
					outcomes[i] = Outcome{Target: target, Err: fmt.Errorf("forward panic: %v", r)}
				}
			}()
			outcomes[i] = fwd.forward(ctx, msg, target)
		}()
	}
	wg.Wait()
	return outcomes
}
