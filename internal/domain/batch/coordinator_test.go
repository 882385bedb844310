package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/device"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/session"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingRenderer struct {
	mu     sync.Mutex
	frames []types.FrameSpec
	failID int64
}

func (r *recordingRenderer) Reload(ctx context.Context, frame types.FrameSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if frame.ID == r.failID {
		return errors.New("renderer gone")
	}
	r.frames = append(r.frames, frame)
	return nil
}

func frameOf(i int, s types.Session) types.FrameSpec {
	return types.FrameSpec{Index: i, ID: s.ID, URL: s.URL, IsLoading: s.IsLoading}
}

func newTestStore(t *testing.T, n int) *session.Store {
	t.Helper()
	gen := device.MustNewGenerator(device.DefaultCatalog())
	store := session.NewStore(gen)
	ctx := context.Background()
	for i := 0; i < n; i++ {
		p, err := gen.Generate(ctx, device.StrategyRandom)
		require.NoError(t, err)
		_, err = store.Create(ctx, p, "https://example.com")
		require.NoError(t, err)
	}
	return store
}

func TestRefreshAllUpdatesEveryWindow(t *testing.T) {
	store := newTestStore(t, 6)
	before := store.Snapshot()
	c := NewCoordinator(store, nil, frameOf, 3, zaptest.NewLogger(t))

	result := c.RefreshAll(context.Background(), device.StrategyRandom)

	assert.True(t, result.OK())
	assert.Equal(t, 6, result.Attempted)

	after := store.Snapshot()
	require.Len(t, after, 6)
	for i := range after {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].URL, after[i].URL)
		assert.NotEqual(t, before[i].Fingerprint, after[i].Fingerprint)
	}
}

func TestRefreshAllUnknownStrategyFailsEachWindow(t *testing.T) {
	store := newTestStore(t, 3)
	c := NewCoordinator(store, nil, frameOf, 2, zaptest.NewLogger(t))

	result := c.RefreshAll(context.Background(), "psychic")

	assert.Equal(t, 3, result.Attempted)
	require.Len(t, result.Failed, 3)
	for i, f := range result.Failed {
		assert.Equal(t, i, f.Index)
		assert.ErrorIs(t, f.Err, device.ErrUnknownStrategy)
	}
}

func TestReloadAllSignalsRenderer(t *testing.T) {
	store := newTestStore(t, 4)
	renderer := &recordingRenderer{}
	c := NewCoordinator(store, renderer, frameOf, 2, zaptest.NewLogger(t))

	result := c.ReloadAll(context.Background())

	assert.True(t, result.OK())
	assert.Len(t, renderer.frames, 4)

	ids := make(map[int64]bool)
	for _, f := range renderer.frames {
		ids[f.ID] = true
		assert.True(t, f.IsLoading)
	}
	for _, s := range store.Snapshot() {
		assert.True(t, ids[s.ID], "window %d was not reloaded", s.ID)
	}
}

func TestReloadAllBestEffort(t *testing.T) {
	store := newTestStore(t, 3)
	failing, _ := store.Get(1)
	renderer := &recordingRenderer{failID: failing.ID}
	c := NewCoordinator(store, renderer, frameOf, 1, zaptest.NewLogger(t))

	result := c.ReloadAll(context.Background())

	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Succeeded())
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.Failed[0].Index)
	assert.Len(t, renderer.frames, 2)
}

func TestRunCanceledContext(t *testing.T) {
	store := newTestStore(t, 2)
	c := NewCoordinator(store, nil, frameOf, 2, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := c.Run(ctx, OpRefreshAll, device.StrategyRandom)
	require.NoError(t, err)
	assert.Len(t, result.Failed, 2)
}

func TestRunUnknownOperation(t *testing.T) {
	c := NewCoordinator(newTestStore(t, 1), nil, frameOf, 1, nil)

	_, err := c.Run(context.Background(), "explode-all", "")
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestEmptyStore(t *testing.T) {
	c := NewCoordinator(newTestStore(t, 0), nil, frameOf, 1, nil)

	result := c.ReloadAll(context.Background())
	assert.Equal(t, 0, result.Attempted)
	assert.NotNil(t, result.Failed)
}
