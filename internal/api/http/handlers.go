package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/batch"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/persistence"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/apperr"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
)

// MaxImportSize bounds an uploaded configuration bundle
const MaxImportSize = 1 << 20

const (
	serviceName = "DeviceMatrix"
	version     = "0.1.0"
)

// Workspace is the set of workspace operations the API exposes
type Workspace interface {
	Sessions() []types.Session
	Frames() []types.FrameSpec
	Settings() types.Settings
	Strategies() []string
	CreateWindow(ctx context.Context) (types.Session, error)
	CloseWindow(ctx context.Context, index int) error
	CloseAll(ctx context.Context) (int, error)
	Navigate(ctx context.Context, index int, url string) error
	NavigateAll(ctx context.Context, url string) (string, error)
	RefreshFingerprint(ctx context.Context, index int) (types.Session, error)
	Reload(ctx context.Context, index int) error
	HandleFrameLoaded(ctx context.Context, index int) error
	HandleFrameError(ctx context.Context, index int, message string) error
	Reorder(ctx context.Context, from, to int) error
	Batch(ctx context.Context, op string) (batch.Result, error)
	SaveSettings(ctx context.Context, s types.Settings) (types.Settings, error)
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, doc []byte) error
	Save(ctx context.Context) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	workspace Workspace
	metrics   *monitoring.Metrics
}

// NewHandlers creates a new handler set
func NewHandlers(workspace Workspace, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		workspace: workspace,
		metrics:   metrics,
	}
}

type urlRequest struct {
	URL string `json:"url"`
}

type reorderRequest struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

type frameErrorRequest struct {
	Message string `json:"message"`
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": serviceName,
		"version": version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"windows": len(h.workspace.Sessions()),
	}
	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		resp["metrics"] = gin.H{
			"uptime_seconds":     snap.UptimeSeconds,
			"total_requests":     snap.TotalRequests,
			"total_errors":       snap.TotalErrors,
			"avg_latency_ms":     snap.AverageLatency().Milliseconds(),
			"active_connections": snap.ActiveConnections,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ListWindows returns every window with its frame spec
func (h *Handlers) ListWindows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"windows": h.workspace.Sessions(),
		"frames":  h.workspace.Frames(),
	})
}

// CreateWindow opens a new window
func (h *Handlers) CreateWindow(c *gin.Context) {
	sess, err := h.workspace.CreateWindow(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"window": sess})
}

// CloseAll closes every window
func (h *Handlers) CloseAll(c *gin.Context) {
	n, err := h.workspace.CloseAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": n})
}

// CloseWindow closes one window
func (h *Handlers) CloseWindow(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	if err := h.workspace.CloseWindow(c.Request.Context(), index); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": index, "windows": len(h.workspace.Sessions())})
}

// Navigate points one window at a url
func (h *Handlers) Navigate(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req urlRequest
	if !bind(c, &req) {
		return
	}
	if err := h.workspace.Navigate(c.Request.Context(), index, req.URL); err != nil {
		respondError(c, err)
		return
	}
	h.respondWindow(c, index)
}

// NavigateAll points every window at a url
func (h *Handlers) NavigateAll(c *gin.Context) {
	var req urlRequest
	if !bind(c, &req) {
		return
	}
	url, err := h.workspace.NavigateAll(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "windows": h.workspace.Sessions()})
}

// RefreshFingerprint gives one window a new device profile
func (h *Handlers) RefreshFingerprint(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	sess, err := h.workspace.RefreshFingerprint(c.Request.Context(), index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": sess})
}

// Reload asks the renderer to reload one window
func (h *Handlers) Reload(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	if err := h.workspace.Reload(c.Request.Context(), index); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"reloading": index})
}

// FrameLoaded clears the loading state once the front-end reports the frame loaded
func (h *Handlers) FrameLoaded(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	if err := h.workspace.HandleFrameLoaded(c.Request.Context(), index); err != nil {
		respondError(c, err)
		return
	}
	h.respondWindow(c, index)
}

// FrameError records a frame load failure reported by the front-end
func (h *Handlers) FrameError(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req frameErrorRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	if err := h.workspace.HandleFrameError(c.Request.Context(), index, req.Message); err != nil {
		respondError(c, err)
		return
	}
	h.respondWindow(c, index)
}

// Reorder moves a window to a new position
func (h *Handlers) Reorder(c *gin.Context) {
	var req reorderRequest
	if !bind(c, &req) {
		return
	}
	if err := h.workspace.Reorder(c.Request.Context(), *req.From, *req.To); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"windows": h.workspace.Sessions()})
}

// Batch runs refresh-all or reload-all
func (h *Handlers) Batch(c *gin.Context) {
	result, err := h.workspace.Batch(c.Request.Context(), c.Param("operation"))
	if err != nil && result.Operation == "" {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	c.JSON(status, result)
}

// GetSettings returns the current settings and the strategies available
func (h *Handlers) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"settings":   h.workspace.Settings(),
		"strategies": h.workspace.Strategies(),
	})
}

// PutSettings validates and saves new settings
func (h *Handlers) PutSettings(c *gin.Context) {
	var req types.Settings
	if !bind(c, &req) {
		return
	}
	settings, err := h.workspace.SaveSettings(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// Save persists the full state now
func (h *Handlers) Save(c *gin.Context) {
	if err := h.workspace.Save(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

// Export downloads the configuration bundle
func (h *Handlers) Export(c *gin.Context) {
	doc, err := h.workspace.Export(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+persistence.ExportFilename+`"`)
	c.Data(http.StatusOK, "application/json", doc)
}

// Import replaces the workspace with an uploaded bundle
func (h *Handlers) Import(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxImportSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "configuration file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read configuration file"})
		return
	}
	if err := h.workspace.Import(c.Request.Context(), body); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"windows":  h.workspace.Sessions(),
		"settings": h.workspace.Settings(),
	})
}

func (h *Handlers) respondWindow(c *gin.Context, index int) {
	sessions := h.workspace.Sessions()
	if index < 0 || index >= len(sessions) {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": sessions[index]})
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window index"})
		return 0, false
	}
	return index, true
}

func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// statusFor maps an error category to an HTTP status
func statusFor(err error) int {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": apperr.Message(err)})
}
