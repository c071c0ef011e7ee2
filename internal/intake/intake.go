package intake

import (
	"context"
	"sync"
	"time"

	"forwardbot/internal/forward"
	"forwardbot/internal/metrics"
	"forwardbot/internal/storage"
	"forwardbot/internal/transport"
	"forwardbot/pkg/logx"
)

// Dispatcher is the fan-out entry point intake drives. Satisfied by
// *forward.Dispatcher.
type Dispatcher interface {
	DispatchAll(ctx context.Context, msg transport.MessageRef, targets []transport.ChatTarget) forward.Report
}

// CommandHandler receives operator commands pulled from the update stream.
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd transport.Command)
}

// Stats is a point-in-time view of intake activity since process start.
type Stats struct {
	Runs      int
	Forwarded int
	Failed    int
	LastRun   *forward.Report
	LastRunAt time.Time
}

// Service consumes the adapter's update stream: posts from the master channel
// trigger a fan-out run, posts from anywhere else are counted and dropped,
// and commands are handed to the command handler.
type Service struct {
	mu     sync.RWMutex
	master int64
	dests  []transport.ChatTarget

	stats Stats

	disp  Dispatcher
	store storage.Store
	cmds  CommandHandler
	log   logx.Logger
}

func New(disp Dispatcher, store storage.Store, cmds CommandHandler, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{disp: disp, store: store, cmds: cmds, log: log}
}

// Apply swaps the routing snapshot. A run already in flight keeps the
// destination set it started with.
func (s *Service) Apply(master int64, destinations []int64) {
	dests := make([]transport.ChatTarget, 0, len(destinations))
	for _, id := range destinations {
		dests = append(dests, transport.ChatTarget{ChatID: id})
	}
	s.mu.Lock()
	s.master = master
	s.dests = dests
	s.mu.Unlock()
}

func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Service) Destinations() []transport.ChatTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]transport.ChatTarget, len(s.dests))
	copy(out, s.dests)
	return out
}

// Run consumes updates until the stream closes or the context ends.
// Runs execute inline: a second master post queues in the update channel
// until the current fan-out finishes.
func (s *Service) Run(ctx context.Context, updates <-chan transport.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			switch up.Kind {
			case transport.UpdatePost:
				if up.Post != nil {
					s.handlePost(ctx, *up.Post)
				}
			case transport.UpdateCommand:
				if up.Command != nil && s.cmds != nil {
					s.cmds.HandleCommand(ctx, *up.Command)
				}
			}
		}
	}
}

func (s *Service) handlePost(ctx context.Context, post transport.Post) {
	s.mu.RLock()
	master := s.master
	dests := s.dests
	s.mu.RUnlock()

	if post.ChatID != master {
		metrics.RecordSkippedPost()
		s.log.Debug("post ignored (not master channel)",
			logx.Int64("chat_id", post.ChatID), logx.Int("message_id", post.MessageID))
		return
	}

	s.log.Info("master post received",
		logx.Int("message_id", post.MessageID),
		logx.String("category", string(post.Category)),
		logx.Int("destinations", len(dests)))

	if len(dests) == 0 {
		s.log.Warn("no destinations configured; post dropped", logx.Int("message_id", post.MessageID))
		return
	}

	rep := s.disp.DispatchAll(ctx, post.Ref(), dests)
	s.recordRun(ctx, rep)
}

func (s *Service) recordRun(ctx context.Context, rep forward.Report) {
	now := time.Now()
	s.mu.Lock()
	s.stats.Runs++
	s.stats.Forwarded += rep.Succeeded
	s.stats.Failed += rep.Failed
	s.stats.LastRun = &rep
	s.stats.LastRunAt = now
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	entry := storage.RunEntry{
		At:        now,
		RunID:     rep.RunID,
		Total:     rep.Total,
		Succeeded: rep.Succeeded,
		Failed:    rep.Failed,
		Batches:   rep.Batches,
		Attempts:  rep.Attempts,
		TookMS:    rep.Duration.Milliseconds(),
	}
	if err := s.store.AppendRun(ctx, entry); err != nil {
		s.log.Warn("run history append failed", logx.Err(err), logx.String("run", rep.RunID))
	}
}
