package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
	"github.com/varunvs7692/chaos-negotiator/pkg/telemetry"
	"github.com/varunvs7692/chaos-negotiator/services/engine/internal/metrics"
)

// Logger returns a middleware that logs HTTP requests and records the
// request duration histogram.
func Logger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			requestID := chimiddleware.GetReqID(r.Context())
			reqLog := log.WithRequestID(requestID)
			if traceID := telemetry.GetTraceID(r.Context()); traceID != "" {
				reqLog = &logger.Logger{Logger: reqLog.With("trace_id", traceID)}
			}

			reqLog.Debug("request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			metrics.RequestDuration.WithLabelValues(
				r.URL.Path, strconv.Itoa(ww.Status()),
			).Observe(duration.Seconds())

			reqLog.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", duration.Milliseconds(),
			)
		})
	}
}
