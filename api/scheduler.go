/*
scheduler.go - Background expiry sweep

PURPOSE:
  Every read already expires a user's lapsed lots before answering. The
  scheduler runs the same sweep for every user on an interval, so lots of
  users who never come back are still reversed in the ledger and the
  expiry metrics stay current.

DESIGN:
  - One background goroutine, first sweep immediately on Start
  - Each user is swept in its own transaction (booking.ExpireAll)
  - A failed user is logged and skipped; the next tick retries it
  - The sweep is idempotent, so overlapping with request-driven sweeps is safe

CONFIGURATION:
  - EXPIRY_SWEEP_INTERVAL: How often to sweep (default: 0, disabled)

USAGE:
  scheduler := NewExpiryScheduler(service, logger, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - cmd/server/admin.go: expire command (manual sweep for one user)
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/gym-credit/booking"
)

// ExpiryScheduler sweeps expired lots of all users on a fixed interval.
type ExpiryScheduler struct {
	Service       *booking.Service
	Logger        *slog.Logger
	CheckInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewExpiryScheduler creates a scheduler. An interval <= 0 disables it.
func NewExpiryScheduler(svc *booking.Service, logger *slog.Logger, interval time.Duration) *ExpiryScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryScheduler{
		Service:       svc,
		Logger:        logger,
		CheckInterval: interval,
	}
}

// Start begins the scheduler.
func (s *ExpiryScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CheckInterval <= 0 {
		s.Logger.Info("expiry scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()

	s.Logger.Info("expiry scheduler started", "interval", s.CheckInterval)
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("expiry scheduler stopped")
}

func (s *ExpiryScheduler) run() {
	defer s.wg.Done()

	s.RunNow(context.Background())
	for {
		select {
		case <-s.ticker.C:
			s.RunNow(context.Background())
		case <-s.stop:
			return
		}
	}
}

// RunNow performs one sweep synchronously and returns the number of lots
// it expired.
func (s *ExpiryScheduler) RunNow(ctx context.Context) int {
	started := time.Now()
	result, err := s.Service.ExpireAll(ctx)
	if err != nil {
		s.Logger.Error("expiry sweep failed", "error", err)
		return 0
	}
	for userID, userErr := range result.Failed {
		s.Logger.Error("expiry sweep failed for user", "user_id", userID, "error", userErr)
	}
	if result.Lots > 0 || len(result.Failed) > 0 {
		s.Logger.Info("expiry sweep completed",
			"users", result.Users,
			"lots", result.Lots,
			"failed", len(result.Failed),
			"took", time.Since(started),
		)
	}
	return result.Lots
}
