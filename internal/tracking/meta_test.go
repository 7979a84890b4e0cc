package tracking

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMeta_Track(t *testing.T) {
	var (
		gotPath  string
		gotToken string
		got      metaRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"events_received":1}`))
	}))
	defer srv.Close()

	m := NewMeta(MetaConfig{PixelID: "123", AccessToken: "tok", GraphURL: srv.URL}, discard())
	err := m.Track(context.Background(), Event{
		Name:      EventLead,
		Time:      time.Unix(1700000000, 0),
		SourceURL: "https://example.com/",
		UserAgent: "test-agent",
		Email:     "  Doctor@Example.COM ",
		Phone:     "010-1234-5678",
		FBP:       "fb.1.123.456",
	})
	require.NoError(t, err)

	assert.Equal(t, "/123/events", gotPath)
	assert.Equal(t, "tok", gotToken)
	require.Len(t, got.Data, 1)
	ev := got.Data[0]
	assert.Equal(t, "Lead", ev.EventName)
	assert.Equal(t, int64(1700000000), ev.EventTime)
	assert.Equal(t, "website", ev.ActionSource)
	assert.Equal(t, []string{hash("doctor@example.com")}, ev.UserData.Em)
	assert.Equal(t, []string{hash("821012345678")}, ev.UserData.Ph)
	assert.Equal(t, "test-agent", ev.UserData.ClientUserAgent)
	assert.Equal(t, "fb.1.123.456", ev.UserData.Fbp)
	assert.NotContains(t, ev.UserData.Em[0], "@")
}

func TestMeta_TrackOmitsEmptyUserData(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
	}))
	defer srv.Close()

	m := NewMeta(MetaConfig{PixelID: "1", AccessToken: "t", GraphURL: srv.URL}, discard())
	require.NoError(t, m.Track(context.Background(), Event{Name: EventViewContent}))

	data := raw["data"].([]any)[0].(map[string]any)
	user := data["user_data"].(map[string]any)
	assert.NotContains(t, user, "em")
	assert.NotContains(t, user, "ph")
	assert.NotZero(t, data["event_time"])
}

func TestMeta_TrackAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad token"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	m := NewMeta(MetaConfig{PixelID: "1", AccessToken: "t", GraphURL: srv.URL}, discard())
	err := m.Track(context.Background(), Event{Name: EventLead})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "bad token")
}

func TestNew_DisabledWithoutCredentials(t *testing.T) {
	tr := New(MetaConfig{PixelID: "1"}, discard())
	_, ok := tr.(Nop)
	assert.True(t, ok, "expected Nop tracker without an access token")
	assert.NoError(t, tr.Track(context.Background(), Event{Name: EventLead}))
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"010-1234-5678":    "821012345678",
		"+82 10 1234 5678": "821012345678",
		"(555) 123 4567":   "5551234567",
		"":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}
