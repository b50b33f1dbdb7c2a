package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SlowRequestThreshold is the duration above which a request is logged as a warning
const SlowRequestThreshold = time.Second

// RequestIDHeader carries the request id back to the caller
const RequestIDHeader = "X-Request-ID"

// MetricsMiddleware tracks request timing, records it on the global collector and logs
// every request with its id.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		requestID := uuid.New().String()
		trace := &RequestTrace{
			RequestID: requestID,
			Method:    r.Method,
			Route:     routeTemplate(r),
			StartTime: time.Now(),
		}
		r = r.WithContext(WithRequestTrace(r.Context(), trace))
		w.Header().Set(RequestIDHeader, requestID)

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		trace.TotalDuration = time.Since(trace.StartTime)
		trace.Status = wrapped.statusCode
		GetMetrics().RecordTrace(trace)

		fields := []interface{}{
			"requestId", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", trace.TotalDuration,
		}
		if trace.TotalDuration > SlowRequestThreshold {
			zap.S().Warnw("slow request", append(fields, "remoteCalls", trace.remoteCallCount())...)
			return
		}
		zap.S().Infow("request", fields...)
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// responseWriter wraps http.ResponseWriter to capture status code
// It implements http.Hijacker to support WebSocket upgrades
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker to support WebSocket upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}
