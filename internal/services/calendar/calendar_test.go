package calendar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(t *testing.T) Event {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	start := time.Date(2026, 10, 19, 13, 0, 0, 0, loc)
	return Event{
		Title:       "Publish: LinkedIn, Instagram",
		Description: "LinkedIn post; Instagram post, with links",
		Start:       start,
		End:         start.Add(time.Hour),
		TimeZone:    "Europe/Amsterdam",
		Reminders:   DefaultReminders,
	}
}

func newTestGoogle(t *testing.T, handler http.HandlerFunc) *Google {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewGoogle(context.Background(), srv.Client(), "team@example.com", srv.URL+"/calendar/v3/")
	require.NoError(t, err)
	return g
}

// TestGoogle_Insert verifies the events.insert payload and that the
// htmlLink of the created event is returned.
func TestGoogle_Insert(t *testing.T) {
	var got map[string]any
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendar/v3/calendars/team@example.com/events", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ev1","htmlLink":"https://calendar.google.com/event?eid=ev1"}`))
	})

	link, err := g.Insert(context.Background(), sampleEvent(t))
	require.NoError(t, err)
	assert.Equal(t, "https://calendar.google.com/event?eid=ev1", link)

	assert.Equal(t, "Publish: LinkedIn, Instagram", got["summary"])
	start := got["start"].(map[string]any)
	assert.Equal(t, "2026-10-19T13:00:00+02:00", start["dateTime"])
	assert.Equal(t, "Europe/Amsterdam", start["timeZone"])
	end := got["end"].(map[string]any)
	assert.Equal(t, "2026-10-19T14:00:00+02:00", end["dateTime"])

	reminders := got["reminders"].(map[string]any)
	assert.Equal(t, false, reminders["useDefault"])
	overrides := reminders["overrides"].([]any)
	require.Len(t, overrides, 2)
	assert.Equal(t, "email", overrides[0].(map[string]any)["method"])
	assert.Equal(t, float64(60), overrides[0].(map[string]any)["minutes"])
	assert.Equal(t, float64(15), overrides[1].(map[string]any)["minutes"])
}

func TestGoogle_InsertAPIError(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid time zone"}}`))
	})

	_, err := g.Insert(context.Background(), sampleEvent(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid time zone")
}

func TestGoogle_InsertRejectsInvalidEvent(t *testing.T) {
	g := newTestGoogle(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	ev := sampleEvent(t)
	ev.End = ev.Start
	_, err := g.Insert(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end must be after start")
}

func TestICS_Insert(t *testing.T) {
	dir := t.TempDir()
	stamp := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	link, err := ICS{Dir: dir, Now: func() time.Time { return stamp }}.Insert(context.Background(), sampleEvent(t))
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)
	data, err := os.ReadFile(u.Path)
	require.NoError(t, err)
	doc := string(data)

	assert.True(t, strings.HasPrefix(doc, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, doc, "DTSTAMP:20261017T090000Z\r\n")
	assert.Contains(t, doc, "DTSTART;TZID=Europe/Amsterdam:20261019T130000\r\n")
	assert.Contains(t, doc, "DTEND;TZID=Europe/Amsterdam:20261019T140000\r\n")
	assert.Contains(t, doc, `SUMMARY:Publish: LinkedIn\, Instagram`)
	assert.Contains(t, doc, `DESCRIPTION:LinkedIn post\; Instagram post\, with links`)
	assert.Contains(t, doc, "TRIGGER:-PT60M\r\n")
	assert.Contains(t, doc, "ACTION:EMAIL\r\n")
	assert.Contains(t, doc, "TRIGGER:-PT15M\r\n")
	assert.Contains(t, doc, "ACTION:DISPLAY\r\n")
}

func TestEvent_Validate(t *testing.T) {
	ev := sampleEvent(t)
	assert.NoError(t, ev.Validate())

	ev.Title = " "
	assert.Error(t, ev.Validate())

	ev = sampleEvent(t)
	ev.Start = time.Time{}
	assert.Error(t, ev.Validate())
}
