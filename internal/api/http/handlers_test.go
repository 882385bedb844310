package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/autosave"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/device"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/persistence"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/workspace"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
)

var testDefaults = types.Settings{
	DefaultURL:       "https://example.com",
	DeviceStrategy:   device.StrategyRandom,
	AutoSaveInterval: 30,
}

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

type nopRenderer struct{}

func (nopRenderer) Reload(context.Context, types.FrameSpec) error { return nil }

// flakyStore fails writes while broken is set
type flakyStore struct {
	*persistence.MemoryStore
	mu     sync.Mutex
	broken bool
}

func (s *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken {
		return errors.New("disk full")
	}
	return s.MemoryStore.Put(ctx, key, value)
}

type testServer struct {
	router  *gin.Engine
	manager *workspace.Manager
	store   *flakyStore
}

func newTestServer(t *testing.T, windows int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gen := device.MustNewGenerator(device.DefaultCatalog())
	store := &flakyStore{MemoryStore: persistence.NewMemoryStore()}
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	manager := workspace.New(workspace.Deps{
		Generator:     gen,
		Gateway:       persistence.NewGateway(store, gen, testDefaults, zap.NewNop()),
		Renderer:      nopRenderer{},
		Logger:        zap.NewNop(),
		Metrics:       metrics,
		BatchWorkers:  2,
		TickerFactory: func(time.Duration) autosave.Ticker { return idleTicker{} },
	})

	ctx := context.Background()
	require.NoError(t, manager.Start(ctx))
	for len(manager.Sessions()) < windows {
		_, err := manager.CreateWindow(ctx)
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = manager.Close(context.Background()) })

	router := gin.New()
	NewHandlers(manager, metrics).Register(router)
	return &testServer{router: router, manager: manager, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, 1)

	w := s.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "online", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["windows"])
	assert.Contains(t, body, "metrics")
}

func TestWindowLifecycle(t *testing.T) {
	s := newTestServer(t, 1)

	w := s.do(t, http.MethodPost, "/windows", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, decode(t, w), "window")

	w = s.do(t, http.MethodGet, "/windows", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["windows"], 2)
	frames := body["frames"].([]interface{})
	require.Len(t, frames, 2)
	assert.NotContains(t, frames[0].(map[string]interface{})["sandbox"], "allow-same-origin")

	w = s.do(t, http.MethodDelete, "/windows/0", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.manager.Sessions(), 1)

	w = s.do(t, http.MethodDelete, "/windows", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["closed"])

	w = s.do(t, http.MethodDelete, "/windows", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["closed"])
}

func TestIndexErrors(t *testing.T) {
	s := newTestServer(t, 2)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"close out of range", http.MethodDelete, "/windows/5", nil, http.StatusNotFound},
		{"close not a number", http.MethodDelete, "/windows/abc", nil, http.StatusBadRequest},
		{"close negative", http.MethodDelete, "/windows/-1", nil, http.StatusBadRequest},
		{"navigate out of range", http.MethodPost, "/windows/9/navigate", urlRequest{URL: "example.com"}, http.StatusNotFound},
		{"fingerprint out of range", http.MethodPost, "/windows/2/fingerprint", nil, http.StatusNotFound},
		{"reload out of range", http.MethodPost, "/windows/2/reload", nil, http.StatusNotFound},
		{"reorder out of range", http.MethodPost, "/windows/reorder", map[string]int{"from": 0, "to": 7}, http.StatusNotFound},
		{"reorder missing field", http.MethodPost, "/windows/reorder", map[string]int{"from": 0}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, decode(t, w), "error")
		})
	}
	assert.Len(t, s.manager.Sessions(), 2)
}

func TestNavigate(t *testing.T) {
	s := newTestServer(t, 2)

	w := s.do(t, http.MethodPost, "/windows/1/navigate", urlRequest{URL: "github.com"})
	require.Equal(t, http.StatusOK, w.Code)
	win := decode(t, w)["window"].(map[string]interface{})
	assert.Equal(t, "https://github.com", win["url"])

	w = s.do(t, http.MethodPost, "/windows/1/navigate", urlRequest{URL: "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "Invalid URL")

	sess := s.manager.Sessions()[1]
	require.NotNil(t, sess.Error)
	assert.False(t, sess.IsLoading)
}

func TestNavigateAll(t *testing.T) {
	s := newTestServer(t, 3)

	w := s.do(t, http.MethodPost, "/windows/navigate", urlRequest{URL: "example.org"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.org", decode(t, w)["url"])
	for _, sess := range s.manager.Sessions() {
		assert.Equal(t, "https://example.org", sess.URL)
	}

	w = s.do(t, http.MethodPost, "/windows/navigate", urlRequest{URL: "::"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	for _, sess := range s.manager.Sessions() {
		assert.Equal(t, "https://example.org", sess.URL)
	}
}

func TestReorderFingerprintReloadFrameError(t *testing.T) {
	s := newTestServer(t, 3)
	before := s.manager.Sessions()

	w := s.do(t, http.MethodPost, "/windows/reorder", map[string]int{"from": 0, "to": 2})
	require.Equal(t, http.StatusOK, w.Code)
	after := s.manager.Sessions()
	assert.Equal(t, before[0].ID, after[2].ID)

	w = s.do(t, http.MethodPost, "/windows/0/fingerprint", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, after[0].ID, s.manager.Sessions()[0].ID)

	w = s.do(t, http.MethodPost, "/windows/0/reload", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = s.do(t, http.MethodPost, "/windows/1/frame-error", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, s.manager.Sessions()[1].Error)

	w = s.do(t, http.MethodPost, "/windows/2/frame-error", frameErrorRequest{Message: "Refused to connect"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Refused to connect", *s.manager.Sessions()[2].Error)
}

func TestFrameLoadedAfterReload(t *testing.T) {
	s := newTestServer(t, 2)

	w := s.do(t, http.MethodPost, "/windows/1/reload", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.True(t, s.manager.Sessions()[1].IsLoading)

	w = s.do(t, http.MethodPost, "/windows/1/frame-loaded", nil)
	require.Equal(t, http.StatusOK, w.Code)
	win := decode(t, w)["window"].(map[string]interface{})
	assert.Equal(t, false, win["isLoading"])
	assert.False(t, s.manager.Sessions()[1].IsLoading)

	tests := []struct {
		name string
		path string
		code int
	}{
		{"out of range", "/windows/5/frame-loaded", http.StatusNotFound},
		{"not a number", "/windows/x/frame-loaded", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, nil)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestBatch(t *testing.T) {
	s := newTestServer(t, 3)

	w := s.do(t, http.MethodPost, "/windows/batch/refresh-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "refresh-all", body["operation"])
	assert.EqualValues(t, 3, body["attempted"])

	w = s.do(t, http.MethodPost, "/windows/batch/reload-all", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/windows/batch/explode", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettings(t *testing.T) {
	s := newTestServer(t, 1)

	w := s.do(t, http.MethodGet, "/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body["strategies"], device.StrategyRandom)

	next := types.Settings{DefaultURL: "example.org", DeviceStrategy: device.StrategyRandom, AutoSaveInterval: 10}
	w = s.do(t, http.MethodPut, "/settings", next)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.org", s.manager.Settings().DefaultURL)
	assert.Equal(t, 10, s.manager.Settings().AutoSaveInterval)

	bad := types.Settings{DefaultURL: "https://example.org", DeviceStrategy: "psychic", AutoSaveInterval: 10}
	w = s.do(t, http.MethodPut, "/settings", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, device.StrategyRandom, s.manager.Settings().DeviceStrategy)

	w = s.do(t, http.MethodPut, "/settings", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportImport(t *testing.T) {
	s := newTestServer(t, 2)

	w := s.do(t, http.MethodGet, "/config/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), persistence.ExportFilename)
	exported := w.Body.String()

	other := newTestServer(t, 1)
	w = other.do(t, http.MethodPost, "/config/import", exported)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, other.manager.Sessions(), 2)
	assert.Equal(t, s.manager.Sessions()[0].ID, other.manager.Sessions()[0].ID)

	w = other.do(t, http.MethodPost, "/config/import", `{"windows": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, other.manager.Sessions(), 2)

	huge := `{"windows":[],"pad":"` + strings.Repeat("x", MaxImportSize) + `"}`
	w = other.do(t, http.MethodPost, "/config/import", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestStorageFailureMapsTo503(t *testing.T) {
	s := newTestServer(t, 1)
	s.store.mu.Lock()
	s.store.broken = true
	s.store.mu.Unlock()

	w := s.do(t, http.MethodPost, "/windows", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w), "error")
	// the window exists in memory even though it was not saved
	assert.Len(t, s.manager.Sessions(), 2)

	w = s.do(t, http.MethodPost, "/save", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.store.mu.Lock()
	s.store.broken = false
	s.store.mu.Unlock()

	w = s.do(t, http.MethodPost, "/save", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
