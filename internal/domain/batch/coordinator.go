package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Operations
const (
	OpRefreshAll = "refresh-all"
	OpReloadAll  = "reload-all"
)

// ErrUnknownOperation is returned by Run for an unsupported operation name
var ErrUnknownOperation = errors.New("unknown batch operation")

const defaultWorkers = 4

// Store is the session store surface the coordinator drives
type Store interface {
	Len() int
	RefreshFingerprint(ctx context.Context, index int, strategy string) (types.Session, error)
	Reload(index int) (types.Session, error)
}

// Renderer receives reload intents
type Renderer interface {
	Reload(ctx context.Context, frame types.FrameSpec) error
}

// FrameFunc builds the frame spec for a session at index
type FrameFunc func(index int, s types.Session) types.FrameSpec

// Failure describes one window that could not be processed
type Failure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// Result aggregates a batch run
type Result struct {
	Operation string    `json:"operation"`
	Attempted int       `json:"attempted"`
	Failed    []Failure `json:"failed"`
}

// OK reports whether every window succeeded
func (r Result) OK() bool {
	return len(r.Failed) == 0
}

// Succeeded returns the number of windows processed without error
func (r Result) Succeeded() int {
	return r.Attempted - len(r.Failed)
}

// Coordinator runs batch operations
type Coordinator struct {
	store    Store
	renderer Renderer
	frame    FrameFunc
	workers  int
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewCoordinator creates a coordinator. workers bounds concurrent items.
func NewCoordinator(store Store, renderer Renderer, frame FrameFunc, workers int, logger *zap.Logger) *Coordinator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:    store,
		renderer: renderer,
		frame:    frame,
		workers:  workers,
		logger:   logger,
	}
}

// WithMetrics adds metrics tracking to the coordinator
func (c *Coordinator) WithMetrics(metrics *monitoring.Metrics) *Coordinator {
	c.metrics = metrics
	return c
}

// Run dispatches by operation name
func (c *Coordinator) Run(ctx context.Context, op, strategy string) (Result, error) {
	switch op {
	case OpRefreshAll:
		return c.RefreshAll(ctx, strategy), nil
	case OpReloadAll:
		return c.ReloadAll(ctx), nil
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
}

// RefreshAll regenerates the fingerprint of every window
func (c *Coordinator) RefreshAll(ctx context.Context, strategy string) Result {
	return c.fanOut(ctx, OpRefreshAll, func(ctx context.Context, i int) error {
		_, err := c.store.RefreshFingerprint(ctx, i, strategy)
		return err
	})
}

// ReloadAll signals a reload of every window to the renderer
func (c *Coordinator) ReloadAll(ctx context.Context) Result {
	return c.fanOut(ctx, OpReloadAll, func(ctx context.Context, i int) error {
		sess, err := c.store.Reload(i)
		if err != nil {
			return err
		}
		if c.renderer == nil {
			return nil
		}
		return c.renderer.Reload(ctx, c.frame(i, sess))
	})
}

func (c *Coordinator) fanOut(ctx context.Context, op string, fn func(ctx context.Context, i int) error) Result {
	n := c.store.Len()
	result := Result{Operation: op, Attempted: n, Failed: []Failure{}}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.workers)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			err := ctx.Err()
			if err == nil {
				err = fn(ctx, i)
			}
			if err != nil {
				mu.Lock()
				result.Failed = append(result.Failed, Failure{Index: i, Error: err.Error(), Err: err})
				mu.Unlock()
			}
			// Never cancel siblings; failures are collected instead
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Failed, func(a, b int) bool {
		return result.Failed[a].Index < result.Failed[b].Index
	})

	if len(result.Failed) > 0 {
		c.logger.Warn("Batch operation had failures",
			zap.String("operation", op),
			zap.Int("attempted", result.Attempted),
			zap.Int("failed", len(result.Failed)))
	}
	if c.metrics != nil {
		c.metrics.RecordBatch(op, len(result.Failed))
	}
	return result
}
