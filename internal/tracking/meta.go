package tracking

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
)

const defaultGraphURL = "https://graph.facebook.com/v19.0"

type MetaConfig struct {
	PixelID       string
	AccessToken   string
	GraphURL      string // override for tests
	TestEventCode string
	HTTPClient    *http.Client
}

// Enabled reports whether both the pixel id and the access token are set.
func (c MetaConfig) Enabled() bool {
	return c.PixelID != "" && c.AccessToken != ""
}

// Meta posts events to the Meta Conversions API.
type Meta struct {
	cfg    MetaConfig
	client *http.Client
	log    *slog.Logger
}

// New returns a Meta tracker when cfg is enabled and Nop otherwise.
func New(cfg MetaConfig, logger *slog.Logger) Tracker {
	if !cfg.Enabled() {
		logger.Info("conversion tracking disabled")
		return Nop{}
	}
	return NewMeta(cfg, logger)
}

func NewMeta(cfg MetaConfig, logger *slog.Logger) *Meta {
	if cfg.GraphURL == "" {
		cfg.GraphURL = defaultGraphURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Meta{cfg: cfg, client: client, log: logger.With("tracker", "meta")}
}

type metaRequest struct {
	Data          []metaEvent `json:"data"`
	TestEventCode string      `json:"test_event_code,omitempty"`
}

type metaEvent struct {
	EventName      string   `json:"event_name"`
	EventTime      int64    `json:"event_time"`
	EventID        string   `json:"event_id,omitempty"`
	ActionSource   string   `json:"action_source"`
	EventSourceURL string   `json:"event_source_url,omitempty"`
	UserData       userData `json:"user_data"`
}

type userData struct {
	Em              []string `json:"em,omitempty"`
	Ph              []string `json:"ph,omitempty"`
	ClientUserAgent string   `json:"client_user_agent,omitempty"`
	ClientIPAddress string   `json:"client_ip_address,omitempty"`
	Fbp             string   `json:"fbp,omitempty"`
	Fbc             string   `json:"fbc,omitempty"`
}

// APIError is a non-2xx response from the Graph API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meta conversions api: status %d: %s", e.Status, e.Body)
}

func (m *Meta) Track(ctx context.Context, ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	body, err := json.Marshal(metaRequest{
		Data:          []metaEvent{toMetaEvent(ev)},
		TestEventCode: m.cfg.TestEventCode,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/events?access_token=%s",
		strings.TrimRight(m.cfg.GraphURL, "/"), url.PathEscape(m.cfg.PixelID), url.QueryEscape(m.cfg.AccessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s event: %w", ev.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	m.log.Debug("conversion event sent", "event", ev.Name)
	return nil
}

func toMetaEvent(ev Event) metaEvent {
	me := metaEvent{
		EventName:      ev.Name,
		EventTime:      ev.Time.Unix(),
		EventID:        ev.ID,
		ActionSource:   "website",
		EventSourceURL: ev.SourceURL,
		UserData: userData{
			ClientUserAgent: ev.UserAgent,
			ClientIPAddress: ev.ClientIP,
			Fbp:             ev.FBP,
			Fbc:             ev.FBC,
		},
	}
	if em := NormalizeEmail(ev.Email); em != "" {
		me.UserData.Em = []string{hash(em)}
	}
	if ph := NormalizePhone(ev.Phone); ph != "" {
		me.UserData.Ph = []string{hash(ph)}
	}
	return me
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone keeps digits only. Domestic numbers with a leading trunk
// zero get the Korean country code.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") && !strings.HasPrefix(s, "+") {
		digits = "82" + digits[1:]
	}
	return digits
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
