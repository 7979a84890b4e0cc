package web

import (
	"sync"

	"chatfunnel/internal/html"
	"chatfunnel/internal/playback"
	"chatfunnel/internal/viewport"
)

// Visit is one visitor's live conversation. It is stored in the session
// store and closed when evicted.
type Visit struct {
	Engine   *playback.Engine
	Viewport *viewport.Controller

	mu          sync.Mutex
	ctaAccepted bool
	closed      bool
	subs        map[int]chan struct{}
	nextSub     int
}

func (s *Server) newVisit(id string) *Visit {
	log := s.logger().With("visit", id)
	v := &Visit{subs: map[int]chan struct{}{}}
	v.Viewport = viewport.New(viewport.Options{
		Clock:  s.clock(),
		OnSnap: v.notify,
	})
	v.Engine = playback.New(s.Script, playback.Options{
		Clock:   s.clock(),
		Timings: s.Timings,
		Logger:  log,
		OnComplete: func(c playback.Completion) {
			log.Info("conversation complete", "reason", c.Reason, "items", c.Items)
		},
	})
	return v
}

// Close stops playback and the idle timer and ends open streams.
func (v *Visit) Close() error {
	v.Engine.Close()
	v.Viewport.Close()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	for id, ch := range v.subs {
		close(ch)
		delete(v.subs, id)
	}
	return nil
}

// CTAAccepted reports whether the visitor asked for the consultation form.
func (v *Visit) CTAAccepted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ctaAccepted
}

// AcceptCTA opens the form. It requires a finished conversation.
func (v *Visit) AcceptCTA() bool {
	if !v.Engine.Snapshot().Complete {
		return false
	}
	v.mu.Lock()
	v.ctaAccepted = true
	v.mu.Unlock()
	v.notify()
	return true
}

// Reset discards the conversation and the CTA answer.
func (v *Visit) Reset() {
	v.Engine.Reset()
	v.mu.Lock()
	v.ctaAccepted = false
	v.mu.Unlock()
	v.Viewport.JumpToBottom()
}

// Subscribe reports visit changes that the engine does not see: CTA answers
// and viewport lock changes.
func (v *Visit) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		close(ch)
		return ch, func() {}
	}
	id := v.nextSub
	v.nextSub++
	v.subs[id] = ch
	return ch, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if c, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(c)
		}
	}
}

func (v *Visit) notify() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, ch := range v.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Server) chatView(v *Visit) html.ChatView {
	return html.ChatView{
		Title:       s.Script.Title(),
		Cast:        s.Script.Cast(),
		Snapshot:    v.Engine.Snapshot(),
		Viewport:    v.Viewport.State(),
		Follow:      v.Viewport.OnContentChange(),
		CTAAccepted: v.CTAAccepted(),
	}
}
