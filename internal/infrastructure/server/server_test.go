package server

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/device"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/apperr"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	cfg.Storage.Driver = driver
	cfg.Storage.Path = t.TempDir()
	return cfg
}

func startServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	ctx := context.Background()
	srv, err := NewServer(ctx, cfg, WithLogger(logging.Nop()))
	require.NoError(t, err)
	require.NoError(t, srv.Start(ctx))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestServerServesAPIAndMetrics(t *testing.T) {
	srv, ts := startServer(t, testConfig(t, "memory"))
	defer srv.Shutdown(context.Background())

	resp, err := http.Get(ts.URL + "/windows")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "devicematrix_")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServerCompressesResponses(t *testing.T) {
	srv, ts := startServer(t, testConfig(t, "memory"))
	defer srv.Shutdown(context.Background())

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	// a bare transport leaves the encoding alone
	resp, err := (&http.Transport{DisableCompression: true}).RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(body), "devicematrix_")
}

func TestServerStreamIsNotCompressed(t *testing.T) {
	srv, ts := startServer(t, testConfig(t, "memory"))
	defer srv.Shutdown(context.Background())

	header := http.Header{}
	header.Set("Accept-Encoding", "gzip")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/stream", header)
	require.NoError(t, err)
	defer conn.Close()

	var ev map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "system", ev["type"])
}

func TestServerPersistsAcrossRestart(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t, driver)
			ctx := context.Background()

			first, _ := startServer(t, cfg)
			_, err := first.Manager().CreateWindow(ctx)
			require.NoError(t, err)
			want := first.Manager().Sessions()
			require.NoError(t, first.Shutdown(ctx))

			second, _ := startServer(t, cfg)
			defer second.Shutdown(ctx)
			got := second.Manager().Sessions()
			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i].ID, got[i].ID)
				assert.Equal(t, want[i].UserAgent, got[i].UserAgent)
			}
		})
	}
}

func TestNewServerRejectsBadCatalog(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewServer(context.Background(), cfg, WithLogger(logging.Nop()))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindGeneration))
}

func TestNewServerRejectsBadDefaults(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Workspace.DeviceStrategy = "psychic"

	_, err := NewServer(context.Background(), cfg, WithLogger(logging.Nop()))
	assert.Error(t, err)
}

func TestNewServerRegistersConfiguredStrategies(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Workspace.Strategies = map[string]string{"android-heavy": "0.8", "ios-only": "ios"}
	cfg.Workspace.DeviceStrategy = "ios-only"

	srv, _ := startServer(t, cfg)
	defer srv.Shutdown(context.Background())

	assert.Equal(t, []string{"android-heavy", "ios-only", "random"}, srv.Manager().Strategies())
	assert.Equal(t, "ios-only", srv.Manager().Settings().DeviceStrategy)
	for _, sess := range srv.Manager().Sessions() {
		assert.Equal(t, types.PlatformIOS, sess.Platform)
	}
}

func TestNewServerRejectsBadStrategies(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Workspace.Strategies = map[string]string{"broken": "often"}

	_, err := NewServer(context.Background(), cfg, WithLogger(logging.Nop()))
	assert.ErrorIs(t, err, device.ErrInvalidStrategy)
}

func TestStoragePath(t *testing.T) {
	tests := []struct {
		cfg  config.StorageConfig
		want string
	}{
		{config.StorageConfig{Driver: "file", Path: "data"}, "data"},
		{config.StorageConfig{Driver: "sqlite", Path: "data"}, filepath.Join("data", sqliteFile)},
		{config.StorageConfig{Driver: "sqlite", Path: "state.db"}, "state.db"},
		{config.StorageConfig{Driver: "sqlite", Path: ":memory:"}, ":memory:"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, storagePath(tt.cfg))
	}
}
