package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"culturehub-api/internal/repository"
)

// CleanupConfig holds configuration for the cleanup scheduler.
type CleanupConfig struct {
	// Interval is how often expired trade codes are removed.
	// Default: 10 minutes
	Interval time.Duration

	// Timeout bounds a single run.
	// Default: 1 minute
	Timeout time.Duration
}

// DefaultCleanupConfig returns default cleanup configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Interval: 10 * time.Minute,
		Timeout:  1 * time.Minute,
	}
}

// CleanupScheduler periodically deletes expired trade codes. It is
// best-effort housekeeping: redemption checks expiry itself, and MongoDB
// also evicts through its TTL index.
type CleanupScheduler struct {
	codes  repository.TradeCodeRepository
	config CleanupConfig
	now    Clock
	logger *zap.Logger

	ticker    *time.Ticker
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewCleanupScheduler creates a new cleanup scheduler.
func NewCleanupScheduler(codes repository.TradeCodeRepository, config CleanupConfig, now Clock, logger *zap.Logger) *CleanupScheduler {
	defaults := DefaultCleanupConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &CleanupScheduler{
		codes:  codes,
		config: config,
		now:    now,
		logger: logger.Named("cleanup"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the cleanup scheduler.
func (s *CleanupScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	s.logger.Info("cleanup scheduler started", zap.Duration("interval", s.config.Interval))

	go s.run()
}

// run is the main cleanup loop.
func (s *CleanupScheduler) run() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.ticker.C:
			if _, err := s.RunNow(context.Background()); err != nil {
				s.logger.Warn("trade code cleanup failed", zap.Error(err))
			}
		case <-s.stopCh:
			s.logger.Info("cleanup scheduler stopped")
			return
		}
	}
}

// RunNow deletes the codes expired at the current time and returns how
// many were removed.
func (s *CleanupScheduler) RunNow(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	deleted, err := s.codes.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("expired trade codes removed", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// Stop stops the cleanup scheduler and waits for the loop to exit.
func (s *CleanupScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()

		if running {
			<-s.doneCh
		}
	})
}
