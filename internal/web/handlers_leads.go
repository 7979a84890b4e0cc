package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	. "maragu.dev/gomponents"

	"chatfunnel/internal/html"
	"chatfunnel/internal/leads"
	"chatfunnel/internal/playback"
)

const (
	completePath = "/consult/complete"
	maxFormBytes = 64 << 10
)

// POST /leads takes the inline form. It is only accepted once the visitor
// finished the conversation and said yes to the CTA.
func (s *Server) handleLead(w http.ResponseWriter, r *http.Request) (Node, error) {
	v, _ := s.getOrCreateVisit(r.Context(), w, r)
	if !v.CTAAccepted() {
		return nil, fmt.Errorf("%w: consultation form not open", playback.ErrInvalidTransition)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return nil, withStatus(http.StatusBadRequest, err)
	}
	consent := r.PostForm.Get("privacy_consent")
	in := leads.HospitalLead{
		HospitalName:   r.PostForm.Get("hospital_name"),
		ContactName:    r.PostForm.Get("contact_name"),
		Phone:          r.PostForm.Get("phone"),
		Email:          r.PostForm.Get("email"),
		PrivacyConsent: consent == "yes",
	}
	form := html.LeadForm{Values: in, ConsentAnswered: consent != ""}

	saved, err := s.Leads.SubmitHospitalLead(r.Context(), in, origin(r))
	var ve *leads.ValidationError
	switch {
	case errors.As(err, &ve):
		form.Errors = html.FieldErrors(ve.Field, ve.Reason)
		return html.LeadFormFragment(form), withStatus(http.StatusUnprocessableEntity, err)
	case err != nil:
		s.logger().Error("storing hospital lead", "error", err)
		form.Failed = true
		return html.LeadFormFragment(form), withStatus(http.StatusServiceUnavailable, err)
	}

	s.logger().Info("lead submitted", "id", saved.ID)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", completePath)
		return nil, nil
	}
	http.Redirect(w, r, completePath, http.StatusSeeOther)
	return nil, nil
}

// POST /consultations is the JSON endpoint for the general consultation form.
func (s *Server) handleConsultation(w http.ResponseWriter, r *http.Request) {
	var in leads.Consultation
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	saved, err := s.Leads.SubmitConsultation(r.Context(), in, origin(r))
	var ve *leads.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": ve.Error(), "field": ve.Field})
		return
	case err != nil:
		s.logger().Error("storing consultation", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("could not store consultation"))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": saved.ID})
}

// GET /consult/complete
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) (Node, error) {
	return html.CompletePage(), nil
}
