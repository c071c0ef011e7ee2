package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"forwardbot/pkg/logx"
)

// maxMemEntries bounds the replayed history window. Queries see at most this
// many most-recent runs; older lines stay on disk but are not scanned again.
const maxMemEntries = 5000

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.runs.jsonl (append-only JSON Lines)
//
// The file is replayed once on open into a bounded in-memory window that
// serves all reads; writes append to both.
type fileStore struct {
	log logx.Logger

	mu       sync.Mutex
	runsFile *os.File
	runs     []RunEntry // oldest first, at most maxMemEntries
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	runsPath := prefix + ".runs.jsonl"
	runs, err := replayRuns(runsPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("run history replay failed; starting empty", logx.Err(err))
	}

	rf, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{log: log, runsFile: rf, runs: runs}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return nil
	}
	err := s.runsFile.Close()
	s.runsFile = nil
	return err
}

func (s *fileStore) AppendRun(ctx context.Context, e RunEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return errors.New("run store closed")
	}
	if err := json.NewEncoder(s.runsFile).Encode(e); err != nil {
		return err
	}
	s.runs = append(s.runs, e)
	if len(s.runs) > maxMemEntries {
		s.runs = s.runs[len(s.runs)-maxMemEntries:]
	}
	return nil
}

func (s *fileStore) RecentRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	_ = ctx
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.runs)
	if limit > n {
		limit = n
	}
	out := make([]RunEntry, 0, limit)
	// newest first
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

func (s *fileStore) TotalsSince(ctx context.Context, since time.Time) (Totals, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var t Totals
	for i := len(s.runs) - 1; i >= 0; i-- {
		e := s.runs[i]
		if e.At.Before(since) {
			break
		}
		t.Runs++
		t.Forwarded += e.Succeeded
		t.Failed += e.Failed
	}
	return t, nil
}

func replayRuns(path string) ([]RunEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var runs []RunEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e RunEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue // tolerate a torn tail line
		}
		runs = append(runs, e)
		if len(runs) > maxMemEntries {
			runs = runs[len(runs)-maxMemEntries:]
		}
	}
	return runs, sc.Err()
}
