package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"chatfunnel/internal/clock"
	"chatfunnel/internal/leads"
	"chatfunnel/internal/playback"
	"chatfunnel/internal/script"
	"chatfunnel/internal/session"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Script   *script.Graph
	Sessions session.Store[*Visit]
	Leads    *leads.Service
	// Ready backs /readyz. Nil means always ready.
	Ready Pinger
	Admin AdminAuth

	// Clock and Timings drive every visitor's playback; nil selects wall
	// time and the default pacing.
	Clock   clock.Clock
	Timings *playback.Timings

	TranscriptFont string
	// StaticDir overrides the embedded assets when set.
	StaticDir string
	Log       *slog.Logger

	streamMu    sync.Mutex
	stopStreams chan struct{}
}

const cookieName = "chatfunnel_sid"

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	s.static(mux)

	mux.Handle("GET /{$}", s.adapt(s.handleIndex))
	mux.Handle("GET /chat/view", s.adapt(s.handleView))
	mux.HandleFunc("GET /chat/stream", s.handleStream)
	mux.Handle("POST /chat/start", s.adapt(s.handleStart))
	mux.Handle("POST /chat/skip", s.adapt(s.handleSkip))
	mux.Handle("POST /chat/reset", s.adapt(s.handleReset))
	mux.Handle("POST /chat/speed", s.adapt(s.handleSpeed))
	mux.Handle("POST /chat/choice", s.adapt(s.handleChoice))
	mux.Handle("POST /chat/cta", s.adapt(s.handleCTA))
	mux.HandleFunc("POST /chat/cta/decline", s.handleDecline)
	mux.HandleFunc("POST /chat/viewport/scroll", s.handleScroll)
	mux.HandleFunc("POST /chat/viewport/pointer", s.handlePointer)
	mux.Handle("POST /chat/viewport/jump", s.adapt(s.handleJump))
	mux.HandleFunc("GET /chat/transcript.pdf", s.handleTranscript)

	mux.Handle("POST /leads", s.adapt(s.handleLead))
	mux.HandleFunc("POST /consultations", s.handleConsultation)
	mux.Handle("GET /consult/complete", s.adapt(s.handleComplete))

	mux.Handle("GET /admin", s.adapt(s.handleAdmin))
	mux.Handle("POST /admin/login", s.adapt(s.handleAdminLogin))
	mux.HandleFunc("POST /admin/logout", s.handleAdminLogout)
	mux.HandleFunc("GET /admin/export.json", s.withAuth(s.handleExport))

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	return requestLoggingMiddleware(s.logger(), mux)
}

// ListenAndServe serves Routes on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe over an existing listener. Open chat streams are
// ended when shutdown begins so they do not hold it up.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.closeStreams)
	errCh := make(chan error, 1)
	go func() {
		s.logger().Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// streamsStopped is closed once the server starts shutting down.
func (s *Server) streamsStopped() <-chan struct{} {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.stopStreams == nil {
		s.stopStreams = make(chan struct{})
	}
	return s.stopStreams
}

func (s *Server) closeStreams() {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.stopStreams == nil {
		s.stopStreams = make(chan struct{})
	}
	select {
	case <-s.stopStreams:
	default:
		close(s.stopStreams)
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

func (s *Server) clock() clock.Clock {
	if s.Clock == nil {
		return clock.Real()
	}
	return s.Clock
}

// getOrCreateVisit returns the visitor's session, creating it and setting the
// cookie when the request has none or the old one was evicted.
func (s *Server) getOrCreateVisit(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Visit, string) {
	id := s.sessionID(r)
	if id != "" {
		if v, ok, err := s.Sessions.Get(ctx, id); err == nil && ok {
			return v, id
		}
	} else {
		id = s.Sessions.NewID()
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	v := s.newVisit(id)
	if err := s.Sessions.Put(ctx, id, v); err != nil {
		s.logger().Error("storing visit", "error", err)
	}
	return v, id
}

// existingVisit returns the visitor's session without creating one.
func (s *Server) existingVisit(r *http.Request) (*Visit, bool) {
	id := s.sessionID(r)
	if id == "" {
		return nil, false
	}
	v, ok, err := s.Sessions.Get(r.Context(), id)
	if err != nil || !ok {
		return nil, false
	}
	return v, true
}

func (s *Server) sessionID(r *http.Request) string {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
