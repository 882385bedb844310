/*
Package tracing tags every HTTP request with a trace id and logs a span
for it once the response is written.

Trace context travels in the X-Trace-ID and X-Span-ID headers. When a
client sends them the request joins that trace, otherwise a new ULID trace
id is issued. Spans are handed to a buffered collector goroutine so logging
stays off the request path.

	tracer := tracing.New("devicematrix", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	logger.Info("saved", tracing.Fields(ctx)...)
*/
package tracing
