// Package leads validates, stores and reports lead-form submissions.
package leads

import (
	"context"
	"time"
)

// Consultation is a general consultation request.
type Consultation struct {
	ID             string    `json:"id"`
	CompanyName    string    `json:"company_name"`
	ContactName    string    `json:"contact_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	PrivacyConsent bool      `json:"privacy_consent"`
	CreatedAt      time.Time `json:"created_at"`
}

// HospitalLead is the record the chat funnel's inline form produces.
type HospitalLead struct {
	ID             string    `json:"id"`
	HospitalName   string    `json:"hospital_name"`
	ContactName    string    `json:"contact_name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	PrivacyConsent bool      `json:"privacy_consent"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists both record kinds. List methods return records in
// insertion order.
type Store interface {
	CreateConsultation(ctx context.Context, c *Consultation) error
	ListConsultations(ctx context.Context) ([]Consultation, error)
	CreateHospitalLead(ctx context.Context, l *HospitalLead) error
	ListHospitalLeads(ctx context.Context) ([]HospitalLead, error)
	Ping(ctx context.Context) error
	Close() error
}
