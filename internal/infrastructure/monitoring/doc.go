/*
Package monitoring provides Prometheus metrics for the DeviceMatrix service.

# Overview

Collectors are registered on an injected prometheus.Registerer so each
server (and each test) can own its registry.

Tracked:

- HTTP requests (latency, throughput, size), labelled by route template
- Generated device profiles per platform
- Open windows and navigation outcomes
- Record writes, record store latency and autosave ticks
- Batch runs and failed batch items
- User notifications by severity
- WebSocket connections

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	timer := monitoring.NewTimer(metrics, "sqlite", "put")
	// ... perform operation ...
	timer.Stop("success")
*/
package monitoring
