package web

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/signalsfoundry/ndvi-overlay/internal/logging"
)

// RequestIDHeader carries a caller-supplied request id.
const RequestIDHeader = "X-Request-ID"

// statusRecorder captures the response status for access logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack passes through to the underlying writer for websocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// withRequestID ensures every request carries a request_id, taken from the
// X-Request-ID header when present, and stores a request-scoped logger on the
// context.
func withRequestID(base logging.Logger, next http.Handler) http.Handler {
	base = logging.OrNoop(base)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if incoming := r.Header.Get(RequestIDHeader); incoming != "" {
			ctx = logging.ContextWithRequestID(ctx, incoming)
		}
		ctx, reqLog := logging.WithRequestLogger(ctx, base.With(
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		))
		ctx = logging.ContextWithLogger(ctx, reqLog)
		w.Header().Set(RequestIDHeader, logging.RequestIDFromContext(ctx))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		reqLog.Debug(ctx, "http request served",
			logging.Int("status", rec.status),
			logging.Any("elapsed", time.Since(start)),
		)
	})
}
