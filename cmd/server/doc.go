// Package main is the entry point for the DeviceMatrix backend server.
//
// DeviceMatrix keeps a grid of simulated mobile browser windows, each with
// its own device profile, and serves them to a web front-end.
//
// Architecture:
//
//	Frontend (browser) → REST API  → Workspace → Record store (file/sqlite)
//	                   ← WebSocket ← notifications, reload events
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown with a final save
package main
