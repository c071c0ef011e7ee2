package forward

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"forwardbot/internal/metrics"
	"forwardbot/internal/transport"
	"forwardbot/pkg/logx"
)

// forwarder relays one message to one destination with bounded retry.
//
// Retry policy (per terminal classification):
//   - rate limited: wait retry_after+1s, then try again; the wait is mandatory,
//     so it does not consume the retry budget
//   - timeout: consume one attempt, back off TimeoutBackoff
//   - transient: consume one attempt, back off TransientBackoff unless the
//     budget is exhausted
//   - permanent or unclassified: abandon immediately
type forwarder struct {
	relayer transport.Relayer
	limiter *rate.Limiter // may be nil
	cfg     Config
	log     logx.Logger
	sleep   sleepFunc
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}

func (f *forwarder) forward(ctx context.Context, msg transport.MessageRef, to transport.ChatTarget) Outcome {
	out := Outcome{Target: to}
	log := f.log.With(logx.Int64("chat_id", to.ChatID))

	for attempt := 1; attempt <= f.cfg.MaxRetries; {
		if err := f.wait(ctx); err != nil {
			out.Err = err
			return out
		}

		err := f.relayer.Relay(ctx, msg, to)
		out.Attempts++
		if err == nil {
			out.OK = true
			metrics.RecordAttempt("ok")
			log.Debug("forwarded", logx.Int("attempt", out.Attempts))
			return out
		}
		out.Err = err

		if wait, ok := transport.AsRateLimited(err); ok {
			// The platform names the wait; retrying earlier is pointless, so
			// the wait is honored without charging the retry budget.
			wait += time.Second
			metrics.RecordAttempt("rate_limited")
			metrics.RecordRateLimitWait(wait)
			log.Warn("rate limited; waiting", logx.Duration("wait", wait), logx.Int("attempt", attempt), logx.Err(err))
			if serr := f.sleep(ctx, wait); serr != nil {
				out.Err = serr
				return out
			}
			continue
		}

		switch {
		case transport.IsTimeout(err):
			metrics.RecordAttempt("timeout")
			log.Warn("relay timed out", logx.Int("attempt", attempt), logx.Int("max", f.cfg.MaxRetries))
			attempt++
			if attempt > f.cfg.MaxRetries {
				break
			}
			if serr := f.sleep(ctx, f.cfg.TimeoutBackoff); serr != nil {
				out.Err = serr
				return out
			}
		case transport.IsTransient(err):
			metrics.RecordAttempt("transient")
			log.Warn("relay failed", logx.Int("attempt", attempt), logx.Int("max", f.cfg.MaxRetries), logx.Err(err))
			attempt++
			if attempt > f.cfg.MaxRetries {
				break
			}
			if serr := f.sleep(ctx, f.cfg.TransientBackoff); serr != nil {
				out.Err = serr
				return out
			}
		case transport.IsPermanent(err):
			metrics.RecordAttempt("permanent")
			log.Error("permanent relay failure; giving up", logx.Err(err))
			return out
		default:
			// Unknown condition: retrying blindly risks a loop that can never
			// succeed, so treat it like a permanent failure.
			metrics.RecordAttempt("unclassified")
			log.Error("unclassified relay failure; giving up", logx.Err(err))
			return out
		}
	}

	log.Error("relay failed after retries", logx.Int("attempts", out.Attempts), logx.Err(out.Err))
	return out
}

func (f *forwarder) wait(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	return f.limiter.Wait(ctx)
}
