package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mkrupp/teamify/internal/infra/logging"
)

// LoggingMiddlewareResponseWriter wraps http.ResponseWriter to capture the
// status code and the number of bytes sent.
type LoggingMiddlewareResponseWriter struct {
	http.ResponseWriter
	StatusCode  int
	BytesSent   int
	wroteHeader bool
}

func (w *LoggingMiddlewareResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.StatusCode = code
		w.wroteHeader = true
	}

	w.ResponseWriter.WriteHeader(code)
}

func (w *LoggingMiddlewareResponseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true

	n, err := w.ResponseWriter.Write(b)
	w.BytesSent += n

	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}

	return n, nil
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *LoggingMiddlewareResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// quietPaths are polled by health checks and scrapers; their successful responses
// are logged at debug level.
//
//nolint:gochecknoglobals
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// LoggingMiddleware creates middleware that logs HTTP request and response details.
// Responses are logged at a level determined by the status code:
// 5xx at ERROR, 4xx at WARN, others at INFO.
func LoggingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	//nolint:varnamelen
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		log.DebugContext(r.Context(), "request", logging.Group("http",
			"uri", r.RequestURI,
			"method", r.Method,
			"remote", r.RemoteAddr,
		))

		mw := &LoggingMiddlewareResponseWriter{
			ResponseWriter: w,
			StatusCode:     http.StatusOK,
		}

		next.ServeHTTP(mw, r)

		var level logging.Level

		switch {
		case mw.StatusCode >= http.StatusInternalServerError:
			level = logging.LevelError
		case mw.StatusCode >= http.StatusBadRequest:
			level = logging.LevelWarn
		case quietPaths[r.URL.Path]:
			level = logging.LevelDebug
		default:
			level = logging.LevelInfo
		}

		log.Log(r.Context(), level, "response", logging.Group("http",
			"uri", r.RequestURI,
			"method", r.Method,
			"status", mw.StatusCode,
			"bytes_sent", mw.BytesSent,
			"duration", time.Since(start),
		))
	})
}
