// Package middleware provides HTTP middleware for the sync API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength bounds request IDs copied from headers into spans.
const MaxRequestIDLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing returns OpenTelemetry tracing middleware: otelgin followed by
// SpanErrorMarker, which must run inside the otelgin span.
func Tracing(cfg TracingConfig) gin.HandlersChain {
	if !cfg.Enabled {
		return gin.HandlersChain{func(c *gin.Context) {
			c.Next()
		}}
	}
	return gin.HandlersChain{otelgin.Middleware(cfg.ServiceName), SpanErrorMarker()}
}

func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > MaxRequestIDLength {
		return headerID[:MaxRequestIDLength]
	}
	return headerID
}

// SpanErrorMarker adds request_id and, for sync endpoints, the run_id of the
// run the request produced to the current span. It marks the span with error
// status for 4xx and 5xx responses.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if requestID := getRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if runID := c.Writer.Header().Get("X-Run-ID"); runID != "" {
			span.SetAttributes(attribute.String("sync.run_id", runID))
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}
		var msg string
		switch {
		case statusCode >= http.StatusInternalServerError:
			msg = "Internal Server Error"
		case statusCode == http.StatusConflict:
			msg = "Conflict"
		case statusCode == http.StatusNotFound:
			msg = "Not Found"
		default:
			msg = "Client Error"
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			span.RecordError(errs.Last().Err)
		}
		span.SetStatus(codes.Error, msg)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}
