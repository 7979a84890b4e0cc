package web

import (
	"net/http"

	"chatfunnel/internal/transcript"
)

// GET /chat/transcript.pdf
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	v, ok := s.existingVisit(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	snap := v.Engine.Snapshot()
	if len(snap.Items) == 0 {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	pdf, err := transcript.Generate(snap.Items, transcript.Options{
		Title:       s.Script.Title(),
		Cast:        s.Script.Cast(),
		FontPath:    s.TranscriptFont,
		GeneratedAt: s.clock().Now(),
	})
	if err != nil {
		s.logger().Error("rendering transcript", "error", err)
		http.Error(w, "could not render transcript", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="consultation-transcript.pdf"`)
	if _, err := w.Write(pdf); err != nil {
		s.logger().Debug("writing transcript", "error", err)
	}
}
