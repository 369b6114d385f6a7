/*
scheduler.go - Idle session sweeper

PURPOSE:
  Sessions fix the assignment window when they open and live until ended.
  The sweeper periodically ends sessions nobody has used for a while, so a
  reader returning the next day gets a window re-initialized at their first
  unread chapter.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick calls progress.Service.SweepIdle(MaxIdle)

CONFIGURATION:
  - CheckInterval: How often to check (default: 10 minutes)
  - MaxIdle: Idle time before a session ends (default: 6 hours)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewSessionSweeper(svc, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: EndSession endpoint (manual)
  - progress/service.go: SweepIdle
*/
package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/warp/reading-engine/progress"
)

// SessionSweeper ends idle sessions on a timer.
type SessionSweeper struct {
	Service       *progress.Service
	Logger        *slog.Logger
	CheckInterval time.Duration
	MaxIdle       time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSessionSweeper creates a sweeper with default timings.
func NewSessionSweeper(svc *progress.Service, logger *slog.Logger) *SessionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{
		Service:       svc,
		Logger:        logger,
		CheckInterval: 10 * time.Minute,
		MaxIdle:       6 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the sweeper. Calling Start twice is a no-op.
func (s *SessionSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("session sweeper disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}
	if s.CheckInterval <= 0 || s.MaxIdle <= 0 {
		s.Logger.Warn("session sweeper not started: interval and max idle must be positive",
			"interval", s.CheckInterval, "max_idle", s.MaxIdle)
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("session sweeper started", "interval", s.CheckInterval, "max_idle", s.MaxIdle)
}

// Stop stops the sweeper and waits for the goroutine to exit.
func (s *SessionSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("session sweeper stopped")
	}
}

func (s *SessionSweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-ticker.C:
			s.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow sweeps immediately and returns how many sessions ended.
func (s *SessionSweeper) RunNow() int {
	n := s.Service.SweepIdle(s.MaxIdle)
	if n > 0 {
		s.Logger.Info("idle sessions ended", "count", n, "remaining", s.Service.OpenSessions())
	}
	return n
}
