package tracing

import (
	"context"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/id"
	"github.com/gin-gonic/gin"
)

// HTTPMiddleware traces each request. Incoming X-Trace-ID/X-Span-ID headers
// continue an existing trace; the ids are echoed in the response.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if tid := c.GetHeader(HeaderTraceID); tid != "" && id.IsValid(tid) {
			ctx = WithTraceID(ctx, id.TraceID(tid))
		}
		if sid := c.GetHeader(HeaderSpanID); sid != "" && id.IsValid(sid) {
			ctx = context.WithValue(ctx, spanIDKey, id.SpanID(sid))
		}

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.path", c.Request.URL.Path)

		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, span.TraceID.String())
		c.Header(HeaderSpanID, span.SpanID.String())

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}
