package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const icsStamp = "20060102T150405"

// ICS writes each event as an iCalendar file in Dir and returns a file://
// link to it.
type ICS struct {
	Dir string
	Now func() time.Time
}

var _ Inserter = ICS{}

// Insert renders ev and writes it to Dir/<uid>.ics.
func (c ICS) Insert(ctx context.Context, ev Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ev.Validate(); err != nil {
		return "", err
	}
	if c.Dir == "" {
		return "", errors.New("calendar: ics directory is not configured")
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	uid := uuid.NewString()
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", fmt.Errorf("calendar: create %s: %w", c.Dir, err)
	}
	path, err := filepath.Abs(filepath.Join(c.Dir, uid+".ics"))
	if err != nil {
		return "", fmt.Errorf("calendar: resolve path: %w", err)
	}
	if err := os.WriteFile(path, []byte(RenderICS(uid, ev, now())), 0o644); err != nil {
		return "", fmt.Errorf("calendar: write %s: %w", path, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

// RenderICS formats ev as a single-event VCALENDAR document.
func RenderICS(uid string, ev Event, stamp time.Time) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//socialbot//publication schedule//EN")
	line("CALSCALE:GREGORIAN")
	line("BEGIN:VEVENT")
	line("UID:" + uid)
	line("DTSTAMP:" + stamp.UTC().Format(icsStamp) + "Z")
	line(formatTime("DTSTART", ev.Start, ev.TimeZone))
	line(formatTime("DTEND", ev.End, ev.TimeZone))
	line("SUMMARY:" + escapeText(ev.Title))
	if ev.Description != "" {
		line("DESCRIPTION:" + escapeText(ev.Description))
	}
	for _, r := range ev.Reminders {
		action := "DISPLAY"
		if r.Method == "email" {
			action = "EMAIL"
		}
		line("BEGIN:VALARM")
		line("ACTION:" + action)
		line(fmt.Sprintf("TRIGGER:-PT%dM", r.Minutes))
		line("SUMMARY:" + escapeText(ev.Title))
		line("DESCRIPTION:" + escapeText(ev.Title))
		line("END:VALARM")
	}
	line("END:VEVENT")
	line("END:VCALENDAR")
	return b.String()
}

func formatTime(prop string, t time.Time, tz string) string {
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return prop + ";TZID=" + tz + ":" + t.In(loc).Format(icsStamp)
		}
	}
	return prop + ":" + t.UTC().Format(icsStamp) + "Z"
}

var textEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
