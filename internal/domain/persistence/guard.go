package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/resilience"
	"go.uber.org/zap"
)

// GuardedStore runs store calls through a circuit breaker and times them
type GuardedStore struct {
	inner   RecordStore
	driver  string
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
}

// GuardOptions configures the breaker around a store
type GuardOptions struct {
	TripAfter uint32
	Cooldown  time.Duration
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics
}

// NewGuardedStore wraps inner
func NewGuardedStore(inner RecordStore, driver string, opts GuardOptions) *GuardedStore {
	if opts.TripAfter == 0 {
		opts.TripAfter = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker := resilience.New("storage:"+driver, resilience.Settings{
		Cooldown: opts.Cooldown,
		ShouldTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= opts.TripAfter
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Storage breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &GuardedStore{
		inner:   inner,
		driver:  driver,
		breaker: breaker,
		metrics: opts.Metrics,
	}
}

// Breaker exposes the breaker for health reporting
func (g *GuardedStore) Breaker() *resilience.Breaker {
	return g.breaker
}

// Get reads are not guarded. Load happens once at startup and must always
// reach the store.
func (g *GuardedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	timer := monitoring.NewTimer(g.metrics, g.driver, "get")
	v, found, err := g.inner.Get(ctx, key)
	timer.Stop(status(err))
	return v, found, err
}

func (g *GuardedStore) Put(ctx context.Context, key string, value []byte) error {
	timer := monitoring.NewTimer(g.metrics, g.driver, "put")
	err := g.breaker.Execute(func() error {
		return g.inner.Put(ctx, key, value)
	})
	timer.Stop(status(err))

	if g.metrics != nil && (errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests)) {
		g.metrics.IncBreakerRejected()
	}
	return err
}

func (g *GuardedStore) Close() error {
	return g.inner.Close()
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return "rejected"
	default:
		return "error"
	}
}
