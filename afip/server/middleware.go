package server

import (
	"net/http"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// requestLogger logs one line per request and passes chi's request id down to the
// AFIP clients through the context. 5xx are logged at Error, 4xx at Warn.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimw.GetReqID(r.Context())
		ctx := afip.ContextWithRequestID(r.Context(), requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		entry := logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"status":      rw.statusCode,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
			"bytes":       rw.bytesWritten,
			"request_id":  requestID,
		})
		switch {
		case rw.statusCode >= 500:
			entry.Error("HTTP request")
		case rw.statusCode >= 400:
			entry.Warn("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	})
}
