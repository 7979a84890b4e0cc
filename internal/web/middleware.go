package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	. "maragu.dev/gomponents"
	ghttp "maragu.dev/gomponents/http"

	"chatfunnel/internal/playback"
)

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the Flusher for streams.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func requestLoggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		// Assets and the high-frequency viewport pings log at debug.
		if strings.HasPrefix(r.URL.Path, "/static/") || strings.HasPrefix(r.URL.Path, "/chat/viewport/") {
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", duration,
			)
			return
		}
		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", duration,
			"remoteAddr", r.RemoteAddr,
		)
	})
}

// statusError carries the response status through ghttp.Adapt.
type statusError struct {
	code int
	err  error
}

func (e statusError) Error() string   { return e.err.Error() }
func (e statusError) StatusCode() int { return e.code }
func (e statusError) Unwrap() error   { return e.err }

func withStatus(code int, err error) error { return statusError{code: code, err: err} }

// adapt wraps a node handler. Invalid playback transitions become 409 and are
// logged at debug; other unclassified errors are logged and become 500.
func (s *Server) adapt(h ghttp.Handler) http.Handler {
	return ghttp.Adapt(func(w http.ResponseWriter, r *http.Request) (Node, error) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		n, err := h(w, r)
		if err == nil {
			return n, nil
		}
		var se statusError
		switch {
		case errors.As(err, &se):
			return n, se
		case errors.Is(err, playback.ErrInvalidTransition):
			s.logger().Debug("rejected transition", "path", r.URL.Path, "error", err)
			return n, withStatus(http.StatusConflict, err)
		default:
			s.logger().Error("handler failed", "path", r.URL.Path, "error", err)
			return n, err
		}
	})
}

func isHTMX(r *http.Request) bool { return r.Header.Get("HX-Request") == "true" }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
