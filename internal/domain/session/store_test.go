package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/apperr"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGenerator hands out android profiles with a distinct fingerprint per call
type stubGenerator struct {
	calls atomic.Int64
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, strategy string) (types.DeviceProfile, error) {
	if g.err != nil {
		return types.DeviceProfile{}, g.err
	}
	n := g.calls.Add(1)
	return types.DeviceProfile{
		Platform:    types.PlatformAndroid,
		Brand:       "Google",
		Model:       "Pixel 7",
		OSVersion:   "13",
		Resolution:  "1080x2400",
		UserAgent:   "ua",
		Fingerprint: "fp-" + string(rune('a'+n%26)),
	}, nil
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func newTestStore(t *testing.T, n int) (*Store, *stubGenerator) {
	t.Helper()

	gen := &stubGenerator{}
	store := NewStore(gen)
	ctx := context.Background()
	for i := 0; i < n; i++ {
		profile, err := gen.Generate(ctx, "")
		require.NoError(t, err)
		_, err = store.Create(ctx, profile, "https://example.com")
		require.NoError(t, err)
	}
	return store, gen
}

func ids(sessions []types.Session) []int64 {
	out := make([]int64, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func TestCreateIDsStrictlyIncreasing(t *testing.T) {
	// Frozen clock forces the counter path
	store := NewStore(&stubGenerator{}).WithClock(fixedClock(1_000))
	ctx := context.Background()

	var last int64
	for i := 0; i < 50; i++ {
		sess, err := store.Create(ctx, types.DeviceProfile{Platform: types.PlatformIOS}, "https://example.com")
		require.NoError(t, err)
		assert.Greater(t, sess.ID, last)
		last = sess.ID
	}
	assert.Equal(t, 50, store.Len())
}

func TestCreateUsesDefaultURL(t *testing.T) {
	store := NewStore(&stubGenerator{})

	sess, err := store.Create(context.Background(), types.DeviceProfile{Platform: types.PlatformIOS}, "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org", sess.URL)
	assert.False(t, sess.IsLoading)
	assert.Nil(t, sess.Error)
}

func TestCreateCanceledContext(t *testing.T) {
	store := NewStore(&stubGenerator{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Create(ctx, types.DeviceProfile{}, "https://example.com")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len())
}

func TestObserveKeepsIDsAboveLoaded(t *testing.T) {
	store := NewStore(&stubGenerator{}).WithClock(fixedClock(10))
	store.Replace([]types.Session{{ID: 5_000}, {ID: 7_000}})

	sess, err := store.Create(context.Background(), types.DeviceProfile{}, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(7_001), sess.ID)

	store.Observe(9_000)
	sess, err = store.Create(context.Background(), types.DeviceProfile{}, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(9_001), sess.ID)
}

func TestCloseKeepsOrder(t *testing.T) {
	store, _ := newTestStore(t, 3)
	before := ids(store.Snapshot())

	removed := store.Close(1)

	assert.Equal(t, before[1], removed.ID)
	assert.Equal(t, []int64{before[0], before[2]}, ids(store.Snapshot()))
}

func TestCloseOutOfRangePanics(t *testing.T) {
	store, _ := newTestStore(t, 2)

	assert.Panics(t, func() { store.Close(2) })
	assert.Panics(t, func() { store.Close(-1) })
	assert.Equal(t, 2, store.Len())
}

func TestCloseAll(t *testing.T) {
	store, _ := newTestStore(t, 3)

	outcome, n := store.CloseAll()
	assert.Equal(t, ClosedAll, outcome)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, store.Len())

	outcome, n = store.CloseAll()
	assert.Equal(t, NothingToClose, outcome)
	assert.Equal(t, 0, n)
}

func TestNavigate(t *testing.T) {
	store, _ := newTestStore(t, 1)

	require.NoError(t, store.Navigate(0, "example.com/docs"))

	sess, ok := store.Get(0)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/docs", sess.URL)
	assert.False(t, sess.IsLoading)
	assert.Nil(t, sess.Error)
}

func TestNavigateInvalidKeepsURL(t *testing.T) {
	store, _ := newTestStore(t, 1)

	err := store.Navigate(0, "not a url")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	sess, _ := store.Get(0)
	assert.Equal(t, "https://example.com", sess.URL)
	assert.False(t, sess.IsLoading)
	require.NotNil(t, sess.Error)
	assert.Contains(t, *sess.Error, msgInvalidURL)

	// A later success clears the error
	require.NoError(t, store.Navigate(0, "example.org"))
	sess, _ = store.Get(0)
	assert.Nil(t, sess.Error)
}

func TestNavigateUnknownIndex(t *testing.T) {
	store, _ := newTestStore(t, 1)

	err := store.Navigate(3, "example.com")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestNavigateAll(t *testing.T) {
	store, _ := newTestStore(t, 3)

	url, err := store.NavigateAll("example.net")
	require.NoError(t, err)
	assert.Equal(t, "https://example.net", url)
	for _, sess := range store.Snapshot() {
		assert.Equal(t, "https://example.net", sess.URL)
	}
}

func TestNavigateAllInvalidChangesNothing(t *testing.T) {
	store, _ := newTestStore(t, 3)
	require.NoError(t, store.Navigate(1, "example.org"))
	before := store.Snapshot()

	_, err := store.NavigateAll("not a url")
	require.Error(t, err)
	assert.Equal(t, before, store.Snapshot())
}

func TestRefreshFingerprintInPlace(t *testing.T) {
	store, _ := newTestStore(t, 3)
	require.NoError(t, store.Navigate(1, "example.org"))
	before := store.Snapshot()

	updated, err := store.RefreshFingerprint(context.Background(), 1, "random")
	require.NoError(t, err)

	after := store.Snapshot()
	assert.Equal(t, ids(before), ids(after))
	assert.Equal(t, before[1].URL, updated.URL)
	assert.NotEqual(t, before[1].Fingerprint, after[1].Fingerprint)
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[2], after[2])
}

func TestRefreshFingerprintGeneratorError(t *testing.T) {
	store, gen := newTestStore(t, 1)
	before := store.Snapshot()
	gen.err = errors.New("catalog offline")

	_, err := store.RefreshFingerprint(context.Background(), 0, "random")
	require.Error(t, err)
	assert.Equal(t, before, store.Snapshot())
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []int
	}{
		{"forward", 0, 2, []int{1, 2, 0, 3}},
		{"backward", 3, 1, []int{0, 3, 1, 2}},
		{"same", 2, 2, []int{0, 1, 2, 3}},
		{"adjacent", 1, 2, []int{0, 2, 1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(t, 4)
			orig := ids(store.Snapshot())

			require.NoError(t, store.Reorder(tt.from, tt.to))

			want := make([]int64, len(tt.want))
			for i, idx := range tt.want {
				want[i] = orig[idx]
			}
			assert.Equal(t, want, ids(store.Snapshot()))
		})
	}
}

func TestReorderOutOfRange(t *testing.T) {
	store, _ := newTestStore(t, 2)
	before := ids(store.Snapshot())

	assert.True(t, apperr.Is(store.Reorder(0, 2), apperr.KindNotFound))
	assert.True(t, apperr.Is(store.Reorder(-1, 0), apperr.KindNotFound))
	assert.Equal(t, before, ids(store.Snapshot()))
}

func TestReloadAndFrameError(t *testing.T) {
	store, _ := newTestStore(t, 1)

	require.NoError(t, store.FrameError(0, "Failed to load"))
	sess, _ := store.Get(0)
	assert.False(t, sess.IsLoading)
	assert.Equal(t, "Failed to load", sess.ErrorMessage())

	sess, err := store.Reload(0)
	require.NoError(t, err)
	assert.True(t, sess.IsLoading)
	assert.Nil(t, sess.Error)

	_, err = store.Reload(5)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestFrameLoadedClearsReload(t *testing.T) {
	store, _ := newTestStore(t, 2)

	require.NoError(t, store.FrameError(0, "Failed to load"))
	_, err := store.Reload(0)
	require.NoError(t, err)
	require.NoError(t, store.FrameLoaded(0))

	sess, _ := store.Get(0)
	assert.False(t, sess.IsLoading)
	assert.Nil(t, sess.Error)

	tests := []struct {
		name  string
		index int
	}{
		{"negative", -1},
		{"past end", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.FrameLoaded(tt.index)
			assert.True(t, apperr.Is(err, apperr.KindNotFound))
		})
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	store, _ := newTestStore(t, 1)
	require.NoError(t, store.FrameError(0, "boom"))

	snap := store.Snapshot()
	*snap[0].Error = "changed"
	snap[0].URL = "https://changed.example.com"

	sess, _ := store.Get(0)
	assert.Equal(t, "boom", sess.ErrorMessage())
	assert.Equal(t, "https://example.com", sess.URL)
}
