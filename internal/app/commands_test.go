package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"forwardbot/internal/config"
	"forwardbot/internal/forward"
	"forwardbot/internal/intake"
	"forwardbot/internal/transport"
	"forwardbot/pkg/logx"
)

type stubAdapter struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (s *stubAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (s *stubAdapter) Stop(ctx context.Context) error                               { return nil }
func (s *stubAdapter) Relay(ctx context.Context, msg transport.MessageRef, to transport.ChatTarget) error {
	return errors.New("not wired in test")
}
func (s *stubAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string) (transport.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = map[int64][]string{}
	}
	s.sent[to.ChatID] = append(s.sent[to.ChatID], text)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

type noopDispatcher struct{}

func (noopDispatcher) DispatchAll(ctx context.Context, msg transport.MessageRef, targets []transport.ChatTarget) forward.Report {
	return forward.Report{Total: len(targets), Succeeded: len(targets)}
}

func newTestApp(t *testing.T) (*App, *stubAdapter) {
	t.Helper()
	const raw = `{
	  "telegram": {
	    "token": "123:abc",
	    "master_channel": -1001,
	    "destinations": [-2001, -2002, -2003],
	    "owner_user_ids": [77]
	  },
	  "logging": {"level": "info", "console": false, "file": {"enabled": false, "path": ""}}
	}`
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfgm := config.NewManager(path)
	if _, err := cfgm.Load(); err != nil {
		t.Fatalf("load config: %v", err)
	}

	ad := &stubAdapter{}
	a := &App{
		cfgm:      cfgm,
		log:       logx.Nop(),
		adapter:   ad,
		startedAt: time.Now().Add(-time.Minute),
	}
	a.in = intake.New(noopDispatcher{}, nil, a, logx.Nop())
	a.in.Apply(-1001, []int64{-2001, -2002, -2003})
	a.setOwners([]int64{77})
	return a, ad
}

func TestHandleCommandIgnoresNonOwner(t *testing.T) {
	t.Parallel()
	a, ad := newTestApp(t)

	a.HandleCommand(context.Background(), transport.Command{ChatID: 5, FromID: 999, Name: "status"})

	ad.mu.Lock()
	defer ad.mu.Unlock()
	if len(ad.sent) != 0 {
		t.Fatalf("non-owner got a reply: %v", ad.sent)
	}
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()
	a, ad := newTestApp(t)

	a.HandleCommand(context.Background(), transport.Command{ChatID: 5, FromID: 77, Name: "status"})

	ad.mu.Lock()
	defer ad.mu.Unlock()
	replies := ad.sent[5]
	if len(replies) != 1 {
		t.Fatalf("replies = %v", replies)
	}
	if !strings.Contains(replies[0], "3 destination(s)") {
		t.Fatalf("status text = %q", replies[0])
	}
	if !strings.Contains(replies[0], "No posts forwarded yet") {
		t.Fatalf("status text = %q", replies[0])
	}
}

func TestChannelsCommand(t *testing.T) {
	t.Parallel()
	a, ad := newTestApp(t)

	a.HandleCommand(context.Background(), transport.Command{ChatID: 5, FromID: 77, Name: "channels"})

	ad.mu.Lock()
	defer ad.mu.Unlock()
	got := ad.sent[5][0]
	for _, want := range []string{"Master: -1001", "Destinations (3)", "-2002"} {
		if !strings.Contains(got, want) {
			t.Fatalf("channels text %q missing %q", got, want)
		}
	}
}

func TestUnknownCommandListsHelp(t *testing.T) {
	t.Parallel()
	a, ad := newTestApp(t)

	a.HandleCommand(context.Background(), transport.Command{ChatID: 5, FromID: 77, Name: "restart"})

	ad.mu.Lock()
	defer ad.mu.Unlock()
	if got := ad.sent[5][0]; !strings.Contains(got, "/status") {
		t.Fatalf("help text = %q", got)
	}
}

func TestStatsCommandWithoutStorage(t *testing.T) {
	t.Parallel()
	a, ad := newTestApp(t)

	a.HandleCommand(context.Background(), transport.Command{ChatID: 5, FromID: 77, Name: "stats"})

	ad.mu.Lock()
	defer ad.mu.Unlock()
	got := ad.sent[5][0]
	if !strings.Contains(got, "Since start: 0 run(s)") {
		t.Fatalf("stats text = %q", got)
	}
	if strings.Contains(got, "Last 24h") {
		t.Fatalf("stats text should omit storage section: %q", got)
	}
}
