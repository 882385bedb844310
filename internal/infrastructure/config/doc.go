// Package config provides 12-factor configuration for the DeviceMatrix service.
//
// Configuration is loaded from environment variables with defaults. CLI
// flags can override environment variables for development.
//
// Configuration Sections:
//   - Server: HTTP listener, CORS origins, shutdown timeout
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting
//   - Storage: Record store driver and location
//   - Catalog: Optional device catalog file or URL
//   - Workspace: Settings defaults, frame sandbox, batch workers
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Server running on %s\n", cfg.Address())
//
// Environment Variables:
//   - PORT, HOST, CORS_ORIGINS, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - STORAGE_DRIVER, STORAGE_PATH
//   - CATALOG_PATH, CATALOG_URL
//   - DEFAULT_URL, DEVICE_STRATEGY, DEVICE_STRATEGIES, AUTOSAVE_INTERVAL, FRAME_SANDBOX, BATCH_WORKERS
package config
