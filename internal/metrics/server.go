package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"forwardbot/pkg/logx"
)

// ServerConfig controls the optional metrics exposition endpoint.
// Prefer binding to localhost; scrape through a reverse proxy if remote
// access is needed.
type ServerConfig struct {
	Enabled     bool
	Addr        string // default "127.0.0.1:9090"
	ReadTimeout time.Duration
	IdleTimeout time.Duration
}

type Server struct {
	mu  sync.Mutex
	cfg ServerConfig
	log logx.Logger
	srv *http.Server
}

func NewServer(cfg ServerConfig, log logx.Logger) *Server {
	return &Server{cfg: cfg, log: log}
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.srv != nil {
		return nil
	}

	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:9090"
	}
	readTimeout := s.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	idleTimeout := s.cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Second
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	srv := s.srv
	go func() {
		s.log.Info("metrics server listening", logx.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server failed", logx.Err(err))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
