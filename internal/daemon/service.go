// Package daemon provides the long-running background recording service
// and its local HTTP API.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"codetrail/internal/analyzer"
	"codetrail/internal/model"
	"codetrail/internal/store"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Addr            string
	IdleTimeout     time.Duration // zero disables idle shutdown
	CleanupInterval time.Duration
	Search          store.SearchOptions
}

// Analyzer generates a structured insight from a session's messages.
// Nil means the feature is not configured.
type Analyzer interface {
	Analyze(ctx context.Context, msgs []model.Message) (analyzer.Insight, error)
}

// Service is the daemon runtime: one store, one HTTP listener, an idle
// watchdog, and a traffic-triggered cleanup sweep.
type Service struct {
	cfg      Config
	store    *store.Store
	analyzer Analyzer
	log      *slog.Logger

	now func() time.Time

	mu           sync.Mutex
	lastActivity time.Time
	lastCleanup  time.Time
}

// New returns a daemon service over the given store. analyzer may be nil.
func New(cfg Config, st *store.Store, an Analyzer, logger *slog.Logger) *Service {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7377"
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now()
	return &Service{
		cfg:          cfg,
		store:        st,
		analyzer:     an,
		log:          logger,
		now:          time.Now,
		lastActivity: now,
		lastCleanup:  now,
	}
}

// idlePollInterval bounds how stale an idle-shutdown decision can be.
// Variable so tests can tighten it.
var idlePollInterval = 30 * time.Second

// Run serves the HTTP API until ctx is canceled or the idle timeout
// elapses with no requests. Both are clean shutdowns, not errors.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info("daemon listening", "addr", s.cfg.Addr, "idle_timeout", s.cfg.IdleTimeout)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if s.cfg.IdleTimeout <= 0 {
			return nil
		}
		ticker := time.NewTicker(idlePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				idle := s.now().Sub(s.lastSeen())
				if idle >= s.cfg.IdleTimeout {
					s.log.Info("idle timeout reached, shutting down", "idle", idle.Round(time.Second))
					cancel()
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Service) lastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// touch marks API traffic: it resets the idle clock and, when the
// cleanup interval has elapsed, sweeps empty sessions. The sweep result
// never affects the request that triggered it.
func (s *Service) touch() {
	now := s.now()

	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()

	if s.shouldCleanNow(now) {
		go s.cleanEmptySessions()
	}
}

// shouldCleanNow claims a cleanup slot. Claiming eagerly keeps bursts of
// concurrent requests from launching duplicate sweeps.
func (s *Service) shouldCleanNow(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastCleanup) < s.cfg.CleanupInterval {
		return false
	}
	s.lastCleanup = now
	return true
}

func (s *Service) cleanEmptySessions() {
	n, err := s.store.CleanEmptySessions()
	if err != nil {
		s.log.Error("empty-session sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("swept empty sessions", "removed", n)
	}
}
