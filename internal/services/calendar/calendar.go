// Package calendar commits publication events, either to Google Calendar or
// as iCalendar files in a local directory.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	calendarv3 "google.golang.org/api/calendar/v3"

	"github.com/lewflauta/AgenticSocialBot/internal/services/google"
)

// Reminder notifies Minutes before the event start.
type Reminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// DefaultReminders is an email an hour ahead and a popup a quarter hour ahead.
var DefaultReminders = []Reminder{
	{Method: "email", Minutes: 60},
	{Method: "popup", Minutes: 15},
}

// Event is one calendar entry.
type Event struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Reminders   []Reminder
}

// Validate checks the fields every backend needs.
func (e Event) Validate() error {
	switch {
	case strings.TrimSpace(e.Title) == "":
		return errors.New("calendar: event title is required")
	case e.Start.IsZero():
		return errors.New("calendar: event start is required")
	case !e.End.After(e.Start):
		return errors.New("calendar: event end must be after start")
	}
	return nil
}

// Inserter commits an event and returns a link to it.
type Inserter interface {
	Insert(ctx context.Context, ev Event) (string, error)
}

// Google inserts events through the Calendar v3 API.
type Google struct {
	events     *calendarv3.EventsService
	calendarID string
}

// NewGoogle creates a Google Calendar inserter. endpoint may be empty for the
// public API; an empty calendarID means the primary calendar.
func NewGoogle(ctx context.Context, client *http.Client, calendarID, endpoint string) (*Google, error) {
	svc, err := calendarv3.NewService(ctx, google.ClientOptions(client, endpoint)...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Google{events: svc.Events, calendarID: calendarID}, nil
}

var _ Inserter = (*Google)(nil)

// Insert calls events.insert and returns the event's htmlLink.
func (g *Google) Insert(ctx context.Context, ev Event) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	event := &calendarv3.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &calendarv3.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.TimeZone},
		End:         &calendarv3.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.TimeZone},
		Reminders: &calendarv3.EventReminders{
			UseDefault:      len(ev.Reminders) == 0,
			ForceSendFields: []string{"UseDefault"},
		},
	}
	for _, r := range ev.Reminders {
		event.Reminders.Overrides = append(event.Reminders.Overrides, &calendarv3.EventReminder{
			Method:  r.Method,
			Minutes: int64(r.Minutes),
		})
	}

	created, err := g.events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	if created.HtmlLink == "" {
		return "", errors.New("calendar: insert event: response has no htmlLink")
	}
	return created.HtmlLink, nil
}
