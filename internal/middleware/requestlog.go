package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// RequestLogger writes one entry per request.  Handler errors are rendered
// here through c.Error so the logged status is the one the client saw.
func RequestLogger(logger log.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			fields := log.Fields{
				"request_id": RequestID(c),
				"method":     req.Method,
				"path":       req.URL.Path,
				"route":      c.Path(),
				"status":     status,
				"latency_ms": float64(time.Since(start)) / float64(time.Millisecond),
				"remote_ip":  c.RealIP(),
			}
			if uid := UserID(c); uid != "" {
				fields["user_id"] = uid
			}
			if sc := trace.SpanContextFromContext(req.Context()); sc.HasTraceID() {
				fields["trace_id"] = sc.TraceID().String()
			}

			entry := logger.WithFields(fields)
			switch {
			case status >= 500:
				if err != nil {
					entry = entry.WithError(err)
				}
				entry.Error("http.request")
			case status >= 400:
				entry.Warn("http.request")
			default:
				entry.Info("http.request")
			}
			return nil
		}
	}
}
