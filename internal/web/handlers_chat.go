package web

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	. "maragu.dev/gomponents"

	"chatfunnel/internal/html"
	"chatfunnel/internal/leads"
	"chatfunnel/internal/playback"
	"chatfunnel/internal/tracking"
	"chatfunnel/internal/viewport"
)

// GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) (Node, error) {
	w.Header().Set("Cache-Control", "no-store")
	v, _ := s.getOrCreateVisit(r.Context(), w, r)

	if !v.Engine.Snapshot().Started {
		if err := v.Engine.Start(); err != nil && !errors.Is(err, playback.ErrInvalidTransition) {
			return nil, err
		}
	}
	s.track(r, tracking.EventViewContent, "", "")

	var form *html.LeadForm
	if v.CTAAccepted() {
		form = &html.LeadForm{}
	}
	return html.ChatPage(s.chatView(v), form), nil
}

// GET /chat/view
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) (Node, error) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	return html.ChatFragment(s.chatView(v)), nil
}

// POST /chat/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) (Node, error) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	if err := v.Engine.Start(); err != nil {
		return nil, err
	}
	return html.ChatFragment(s.chatView(v)), nil
}

// POST /chat/skip
func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) (Node, error) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	v.Engine.SkipToEnd()
	return html.ChatFragment(s.chatView(v)), nil
}

// POST /chat/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) (Node, error) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	v.Reset()
	return html.ChatFragment(s.chatView(v)), nil
}

// POST /chat/speed
//
// An explicit speed=normal|fast sets the pace; without one the pace toggles.
func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) (Node, error) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	raw := r.FormValue("speed")
	speed := v.Engine.Snapshot().Speed.Toggle()
	if raw != "" {
		parsed, err := playback.ParseSpeed(raw)
		if err != nil {
			return nil, withStatus(http.StatusBadRequest, err)
		}
		speed = parsed
	}
	v.Engine.SetSpeed(speed)
	return html.ChatFragment(s.chatView(v)), nil
}

// POST /chat/choice
func (s *Server) handleChoice(w http.ResponseWriter, r *http.Request) (Node, error) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	i, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		return nil, withStatus(http.StatusBadRequest, fmt.Errorf("choice index: %w", err))
	}
	if err := v.Engine.SelectChoiceAt(i); err != nil {
		return nil, err
	}
	return html.ChatFragment(s.chatView(v)), nil
}

// POST /chat/cta renders the lead form into the form slot.
func (s *Server) handleCTA(w http.ResponseWriter, r *http.Request) (Node, error) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	if !v.AcceptCTA() {
		return nil, fmt.Errorf("%w: conversation not complete", playback.ErrInvalidTransition)
	}
	s.track(r, tracking.EventInitiateCheckout, "", "")
	return html.LeadFormFragment(html.LeadForm{}), nil
}

// POST /chat/cta/decline starts the visitor over.
func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	v.Reset()
	if isHTMX(r) {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// POST /chat/viewport/scroll
func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	var p viewport.Position
	for _, f := range []struct {
		name string
		dst  *float64
	}{{"top", &p.Top}, {"height", &p.Height}, {"client", &p.Client}} {
		n, err := strconv.ParseFloat(r.FormValue(f.name), 64)
		if err != nil {
			http.Error(w, "bad "+f.name, http.StatusBadRequest)
			return
		}
		*f.dst = n
	}
	before := v.Viewport.State()
	v.Viewport.OnScroll(p)
	if v.Viewport.State() != before {
		v.notify()
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /chat/viewport/pointer
func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	v.Viewport.OnPointerActivity()
	w.WriteHeader(http.StatusNoContent)
}

// POST /chat/viewport/jump
func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) (Node, error) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	v.Viewport.JumpToBottom()
	return html.ChatFragment(s.chatView(v)), nil
}

// track fires a funnel event in the background.
func (s *Server) track(r *http.Request, event, email, phone string) {
	if s.Leads == nil {
		return
	}
	o := origin(r)
	ctx := r.Context()
	go s.Leads.Track(ctx, event, uuid.NewString(), email, phone, o)
}

// origin collects the request attributes conversion tracking forwards.
func origin(r *http.Request) leads.Origin {
	o := leads.Origin{
		SourceURL: sourceURL(r),
		UserAgent: r.UserAgent(),
		ClientIP:  clientIP(r),
	}
	if c, err := r.Cookie("_fbp"); err == nil {
		o.FBP = c.Value
	}
	if c, err := r.Cookie("_fbc"); err == nil {
		o.FBC = c.Value
	}
	return o
}

// sourceURL is the page the visitor is on: the referring landing page for
// form posts and the request URL for page loads.
func sourceURL(r *http.Request) string {
	if r.Method != http.MethodGet {
		if ref := r.Referer(); ref != "" {
			return ref
		}
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
