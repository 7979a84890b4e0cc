// Package tracking sends conversion events for funnel milestones.
package tracking

import (
	"context"
	"time"
)

// Standard event names understood by the ad platforms.
const (
	EventViewContent      = "ViewContent"
	EventInitiateCheckout = "InitiateCheckout"
	EventLead             = "Lead"
)

// Event is one conversion signal. Email and Phone are plain text; trackers
// hash them before they leave the process.
type Event struct {
	Name      string
	ID        string
	Time      time.Time
	SourceURL string
	UserAgent string
	ClientIP  string
	FBP       string // _fbp browser id cookie
	FBC       string // _fbc click id cookie
	Email     string
	Phone     string
}

type Tracker interface {
	Track(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Track(context.Context, Event) error { return nil }
