package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MetricsMiddleware times every request and feeds the trace to the global
// collector. The metrics endpoints and the health check are excluded so
// dashboard polling does not pollute its own numbers.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if strings.HasPrefix(path, "/api/v1/metrics") || path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		startTime := time.Now()
		requestID := uuid.New().String()

		trace := &RequestTrace{
			RequestID: requestID,
			Method:    r.Method,
			Path:      path,
			StartTime: startTime,
			DBQueries: make([]DBQueryTrace, 0),
			Metadata:  make(map[string]string),
		}

		ctx := WithRequestTrace(r.Context(), trace)
		r = r.WithContext(ctx)

		wrappedWriter := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrappedWriter, r)

		totalDuration := time.Since(startTime)

		trace.EndTime = time.Now()
		trace.TotalDuration = totalDuration
		trace.HandlerTime = totalDuration - trace.DBTotalTime
		trace.Status = wrappedWriter.statusCode

		if wrappedWriter.statusCode >= 400 {
			trace.Error = http.StatusText(wrappedWriter.statusCode)
		}

		GetMetrics().RecordTrace(*trace)

		if totalDuration > 1*time.Second {
			zap.S().Warnw("slow request",
				"requestId", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"duration", totalDuration,
				"status", wrappedWriter.statusCode,
				"dbQueries", len(trace.DBQueries),
				"dbTime", trace.DBTotalTime,
			)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code. It
// implements http.Hijacker so the websocket upgrade on /ws/events still
// works behind the middleware chain.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}
