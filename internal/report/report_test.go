package report

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"forwardbot/internal/storage"
	"forwardbot/internal/transport"
	"forwardbot/pkg/logx"
)

// testContext matches t.Context (Go 1.24+): a context canceled when the test
// finishes. Needed because this builds with older toolchains.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

type fakeStore struct {
	totals storage.Totals
}

func (f *fakeStore) AppendRun(ctx context.Context, e storage.RunEntry) error { return nil }
func (f *fakeStore) RecentRuns(ctx context.Context, limit int) ([]storage.RunEntry, error) {
	return nil, nil
}
func (f *fakeStore) TotalsSince(ctx context.Context, since time.Time) (storage.Totals, error) {
	return f.totals, nil
}
func (f *fakeStore) Close() error { return nil }

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	to   []int64
}

func (f *fakeSender) SendText(ctx context.Context, to transport.ChatTarget, text string) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.to = append(f.to, to.ChatID)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func TestDigestText(t *testing.T) {
	t.Parallel()
	if got := digestText(storage.Totals{}); !strings.Contains(got, "no posts") {
		t.Fatalf("empty digest = %q", got)
	}
	got := digestText(storage.Totals{Runs: 3, Forwarded: 57, Failed: 2})
	for _, want := range []string{"3 run", "57 forwarded", "2 failed"} {
		if !strings.Contains(got, want) {
			t.Fatalf("digest %q missing %q", got, want)
		}
	}
}

func TestFireSendsDigest(t *testing.T) {
	t.Parallel()
	store := &fakeStore{totals: storage.Totals{Runs: 1, Forwarded: 10, Failed: 0}}
	sender := &fakeSender{}
	svc := New(Config{Enabled: true, ChatID: 42}, store, sender, logx.Nop())

	svc.ctx = testContext(t)
	svc.fire()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if sender.to[0] != 42 {
		t.Fatalf("sent to %d, want 42", sender.to[0])
	}
	if !strings.Contains(sender.sent[0], "10 forwarded") {
		t.Fatalf("digest text = %q", sender.sent[0])
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	t.Parallel()
	svc := New(Config{Enabled: false, ChatID: 42}, &fakeStore{}, &fakeSender{}, logx.Nop())
	if err := svc.Start(testContext(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if svc.c != nil {
		t.Fatal("cron should not be running when disabled")
	}
	svc.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	svc := New(Config{Enabled: true, ChatID: 42, Schedule: "not a cron spec"}, store, &fakeSender{}, logx.Nop())
	if err := svc.Start(testContext(t)); err == nil {
		svc.Stop()
		t.Fatal("expected error for invalid schedule")
	}
}

func TestApplyRestartsOnScheduleChange(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	svc := New(Config{Enabled: true, ChatID: 42, Schedule: "0 9 * * *"}, store, &fakeSender{}, logx.Nop())
	if err := svc.Start(testContext(t)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	svc.Apply(Config{Enabled: true, ChatID: 42, Schedule: "30 18 * * *"})
	if svc.c == nil {
		t.Fatal("cron should be running after schedule change")
	}

	svc.Apply(Config{Enabled: false, ChatID: 42, Schedule: "30 18 * * *"})
	if svc.c != nil {
		t.Fatal("cron should stop when disabled")
	}
}
