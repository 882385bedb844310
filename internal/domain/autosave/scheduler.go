package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// ErrInvalidInterval is returned by Arm for a non-positive interval
var ErrInvalidInterval = errors.New("autosave interval must be positive")

// SaveFunc persists the current state
type SaveFunc func(ctx context.Context) error

// Ticker is the part of time.Ticker the scheduler needs
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// RealTicker is the TickerFactory backed by time.NewTicker
func RealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Scheduler owns the single autosave timer
type Scheduler struct {
	save      SaveFunc
	newTicker TickerFactory
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
}

// New creates a stopped scheduler
func New(save SaveFunc, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		save:      save,
		newTicker: RealTicker,
		logger:    logger,
	}
}

// WithTickerFactory replaces the ticker source (simulated time in tests)
func (s *Scheduler) WithTickerFactory(f TickerFactory) *Scheduler {
	s.newTicker = f
	return s
}

// WithMetrics adds metrics tracking to the scheduler
func (s *Scheduler) WithMetrics(metrics *monitoring.Metrics) *Scheduler {
	s.metrics = metrics
	return s
}

// Arm cancels the running timer, waits for its loop to exit and starts a new
// one at interval.
func (s *Scheduler) Arm(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticker := s.newTicker(interval)

	s.cancel = cancel
	s.done = done
	s.interval = interval

	go s.loop(ctx, ticker, done)

	s.logger.Debug("Autosave armed", zap.Duration("interval", interval))
	return nil
}

// Stop tears the timer down. It returns once the loop has exited, including
// any save that was in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Interval returns the armed interval, or zero when stopped
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.interval = 0
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	status := "success"
	if err := s.save(ctx); err != nil {
		status = "error"
		s.logger.Warn("Autosave failed", zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordAutoSaveTick(status)
	}
}
