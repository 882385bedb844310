// Package server wires the DeviceMatrix service together.
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger, metrics registry and tracer
//  3. Load the device catalog (built-in, file or URL)
//  4. Open the record store behind a circuit breaker
//  5. Build the workspace with the WebSocket hub as notifier and renderer
//  6. Setup HTTP routes and middleware
//  7. Restore the workspace and start the HTTP server
//  8. Graceful shutdown: drain HTTP, disconnect streams, final save
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := srv.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
