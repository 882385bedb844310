package http

import (
	"github.com/gin-gonic/gin"
)

// Register mounts the REST API on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	windows := r.Group("/windows")
	{
		windows.GET("", h.ListWindows)
		windows.POST("", h.CreateWindow)
		windows.DELETE("", h.CloseAll)
		windows.POST("/navigate", h.NavigateAll)
		windows.POST("/reorder", h.Reorder)
		windows.POST("/batch/:operation", h.Batch)
		windows.DELETE("/:index", h.CloseWindow)
		windows.POST("/:index/navigate", h.Navigate)
		windows.POST("/:index/fingerprint", h.RefreshFingerprint)
		windows.POST("/:index/reload", h.Reload)
		windows.POST("/:index/frame-loaded", h.FrameLoaded)
		windows.POST("/:index/frame-error", h.FrameError)
	}

	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.PutSettings)
	r.POST("/save", h.Save)

	config := r.Group("/config")
	{
		config.GET("/export", h.Export)
		config.POST("/import", h.Import)
	}
}
