package leads

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatfunnel/internal/tracking"
)

// Origin is the request context a submission came from, forwarded to
// conversion tracking.
type Origin struct {
	SourceURL string
	UserAgent string
	ClientIP  string
	FBP       string
	FBC       string
}

// Service runs submissions through validation, persistence and tracking.
type Service struct {
	store   Store
	tracker tracking.Tracker
	log     *slog.Logger
	timeout time.Duration
}

func NewService(store Store, tracker tracking.Tracker, logger *slog.Logger) *Service {
	if tracker == nil {
		tracker = tracking.Nop{}
	}
	return &Service{
		store:   store,
		tracker: tracker,
		log:     logger.With("component", "leads"),
		timeout: 5 * time.Second,
	}
}

// SubmitHospitalLead stores l and fires a Lead conversion. A tracking
// failure is logged and does not fail the submission.
func (s *Service) SubmitHospitalLead(ctx context.Context, l HospitalLead, o Origin) (HospitalLead, error) {
	l.Normalize()
	if err := l.Validate(); err != nil {
		return HospitalLead{}, err
	}
	l.ID = ""
	l.CreatedAt = time.Time{}
	if err := s.store.CreateHospitalLead(ctx, &l); err != nil {
		return HospitalLead{}, fmt.Errorf("submit hospital lead: %w", err)
	}
	s.log.Info("hospital lead stored", "id", l.ID)
	s.Track(ctx, tracking.EventLead, l.ID, l.Email, l.Phone, o)
	return l, nil
}

func (s *Service) SubmitConsultation(ctx context.Context, c Consultation, o Origin) (Consultation, error) {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return Consultation{}, err
	}
	c.ID = ""
	c.CreatedAt = time.Time{}
	if err := s.store.CreateConsultation(ctx, &c); err != nil {
		return Consultation{}, fmt.Errorf("submit consultation: %w", err)
	}
	s.log.Info("consultation stored", "id", c.ID)
	s.Track(ctx, tracking.EventLead, c.ID, c.Email, c.Phone, o)
	return c, nil
}

func (s *Service) HospitalLeads(ctx context.Context) ([]HospitalLead, error) {
	return s.store.ListHospitalLeads(ctx)
}

func (s *Service) Consultations(ctx context.Context) ([]Consultation, error) {
	return s.store.ListConsultations(ctx)
}

// Track sends a funnel event and only logs failures.
func (s *Service) Track(ctx context.Context, name, eventID, email, phone string, o Origin) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	err := s.tracker.Track(ctx, tracking.Event{
		Name:      name,
		ID:        eventID,
		Time:      time.Now(),
		SourceURL: o.SourceURL,
		UserAgent: o.UserAgent,
		ClientIP:  o.ClientIP,
		FBP:       o.FBP,
		FBC:       o.FBC,
		Email:     email,
		Phone:     phone,
	})
	if err != nil {
		s.log.Warn("conversion tracking failed", "event", name, "error", err)
	}
}
