package intake

import (
	"context"
	"sync"
	"testing"
	"time"

	"forwardbot/internal/forward"
	"forwardbot/internal/storage"
	"forwardbot/internal/transport"
	"forwardbot/pkg/logx"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []transport.MessageRef
	targets [][]transport.ChatTarget
	report  forward.Report
}

func (f *fakeDispatcher) DispatchAll(ctx context.Context, msg transport.MessageRef, targets []transport.ChatTarget) forward.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	f.targets = append(f.targets, targets)
	rep := f.report
	rep.Total = len(targets)
	return rep
}

type recordingStore struct {
	mu      sync.Mutex
	entries []storage.RunEntry
}

func (r *recordingStore) AppendRun(ctx context.Context, e storage.RunEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}
func (r *recordingStore) RecentRuns(ctx context.Context, limit int) ([]storage.RunEntry, error) {
	return nil, nil
}
func (r *recordingStore) TotalsSince(ctx context.Context, since time.Time) (storage.Totals, error) {
	return storage.Totals{}, nil
}
func (r *recordingStore) Close() error { return nil }

type recordingCommands struct {
	mu   sync.Mutex
	cmds []transport.Command
}

func (r *recordingCommands) HandleCommand(ctx context.Context, cmd transport.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
}

func runService(t *testing.T, svc *Service, updates []transport.Update) {
	t.Helper()
	ch := make(chan transport.Update, len(updates))
	for _, up := range updates {
		ch <- up
	}
	close(ch)
	if err := svc.Run(context.Background(), ch); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestMasterPostTriggersDispatch(t *testing.T) {
	t.Parallel()
	disp := &fakeDispatcher{report: forward.Report{RunID: "r1", Succeeded: 2}}
	svc := New(disp, nil, nil, logx.Nop())
	svc.Apply(-1001, []int64{-2001, -2002})

	runService(t, svc, []transport.Update{
		{Kind: transport.UpdatePost, Post: &transport.Post{ChatID: -1001, MessageID: 7, Category: transport.CategoryPhoto}},
	})

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.calls) != 1 {
		t.Fatalf("dispatch calls = %d, want 1", len(disp.calls))
	}
	if disp.calls[0] != (transport.MessageRef{ChatID: -1001, MessageID: 7}) {
		t.Fatalf("dispatched ref = %+v", disp.calls[0])
	}
	if len(disp.targets[0]) != 2 {
		t.Fatalf("targets = %v", disp.targets[0])
	}
}

func TestNonMasterPostIgnored(t *testing.T) {
	t.Parallel()
	disp := &fakeDispatcher{}
	svc := New(disp, nil, nil, logx.Nop())
	svc.Apply(-1001, []int64{-2001})

	runService(t, svc, []transport.Update{
		{Kind: transport.UpdatePost, Post: &transport.Post{ChatID: -9999, MessageID: 1}},
		{Kind: transport.UpdatePost, Post: &transport.Post{ChatID: -2001, MessageID: 2}},
	})

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.calls) != 0 {
		t.Fatalf("dispatch calls = %d, want 0", len(disp.calls))
	}
}

func TestRunRecordedToStore(t *testing.T) {
	t.Parallel()
	disp := &fakeDispatcher{report: forward.Report{
		RunID: "run-9", Succeeded: 4, Failed: 1, Batches: 3, Attempts: 8, Duration: 1500 * time.Millisecond,
	}}
	store := &recordingStore{}
	svc := New(disp, store, nil, logx.Nop())
	svc.Apply(-1001, []int64{-2001, -2002, -2003, -2004, -2005})

	runService(t, svc, []transport.Update{
		{Kind: transport.UpdatePost, Post: &transport.Post{ChatID: -1001, MessageID: 3}},
	})

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.entries) != 1 {
		t.Fatalf("stored entries = %d, want 1", len(store.entries))
	}
	e := store.entries[0]
	if e.RunID != "run-9" || e.Total != 5 || e.Succeeded != 4 || e.Failed != 1 || e.TookMS != 1500 {
		t.Fatalf("stored entry = %+v", e)
	}

	st := svc.Stats()
	if st.Runs != 1 || st.Forwarded != 4 || st.Failed != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if st.LastRun == nil || st.LastRun.RunID != "run-9" {
		t.Fatalf("last run = %+v", st.LastRun)
	}
}

func TestCommandsRouted(t *testing.T) {
	t.Parallel()
	cmds := &recordingCommands{}
	svc := New(&fakeDispatcher{}, nil, cmds, logx.Nop())
	svc.Apply(-1001, []int64{-2001})

	runService(t, svc, []transport.Update{
		{Kind: transport.UpdateCommand, Command: &transport.Command{ChatID: 5, FromID: 10, Name: "status"}},
	})

	cmds.mu.Lock()
	defer cmds.mu.Unlock()
	if len(cmds.cmds) != 1 || cmds.cmds[0].Name != "status" {
		t.Fatalf("commands = %+v", cmds.cmds)
	}
}

func TestNoDestinationsDropsPost(t *testing.T) {
	t.Parallel()
	disp := &fakeDispatcher{}
	svc := New(disp, nil, nil, logx.Nop())
	svc.Apply(-1001, nil)

	runService(t, svc, []transport.Update{
		{Kind: transport.UpdatePost, Post: &transport.Post{ChatID: -1001, MessageID: 1}},
	})

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.calls) != 0 {
		t.Fatalf("dispatch calls = %d, want 0", len(disp.calls))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	svc := New(&fakeDispatcher{}, nil, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := make(chan transport.Update)
	if err := svc.Run(ctx, ch); err != context.Canceled {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
}
