// Package http provides HTTP handlers and routing for the DeviceMatrix REST API.
//
// Endpoints:
//   - Health: / and /health
//   - Windows: /windows, /windows/:index, /windows/navigate, /windows/reorder
//   - Per window: /windows/:index/{navigate,fingerprint,reload,frame-loaded,frame-error}
//   - Batch: /windows/batch/:operation (refresh-all, reload-all)
//   - Settings: /settings, /save
//   - Bundle: /config/export, /config/import
//
// Errors are returned as {"error": "..."}. Validation failures map to 400,
// unknown window indices to 404 and storage failures to 503. A 503 means the
// change was applied but could not be saved yet.
//
// Example Usage:
//
//	handlers := http.NewHandlers(manager, metrics)
//	handlers.Register(router)
package http
