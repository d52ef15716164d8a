// Package google fetches calendar events from the Google Calendar API and
// maps them into the internal event model.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/tandemhq/tandem/calendar"
)

// SourceTag is the integration type this fetcher serves.
const SourceTag = "google"

// Fetcher pulls events from one Google calendar.
type Fetcher struct {
	srv        *gcal.Service
	calendarID string
}

// NewFetcher wraps an existing calendar service. calendarID defaults to the
// user's primary calendar when empty.
func NewFetcher(srv *gcal.Service, calendarID string) *Fetcher {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Fetcher{srv: srv, calendarID: calendarID}
}

// NewService builds a calendar service from OAuth client secrets and a
// stored token file.
func NewService(ctx context.Context, credentialsFile, tokenFile string) (*gcal.Service, error) {
	secrets, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secrets %s: %w", credentialsFile, err)
	}
	cfg, err := googleoauth.ConfigFromJSON(secrets, gcal.CalendarEventsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	tok, err := loadToken(tokenFile)
	if err != nil {
		return nil, err
	}
	srv, err := gcal.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return srv, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token %s: %w", path, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", path, err)
	}
	return &tok, nil
}

// ListEvents fetches the events in [from, to] from the calendar, expanded
// to single instances and ordered by start time.
func (f *Fetcher) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	call := f.srv.Events.List(f.calendarID).
		Context(ctx).
		SingleEvents(true).
		OrderBy("startTime")
	if !from.IsZero() {
		call = call.TimeMin(from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		call = call.TimeMax(to.Format(time.RFC3339))
	}
	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list google events: %w", err)
	}

	out := make([]calendar.Event, 0, len(res.Items))
	for _, item := range res.Items {
		if item == nil || item.Status == "cancelled" {
			continue
		}
		out = append(out, convertEvent(item))
	}
	return out, nil
}

// convertEvent maps a Google event into the internal model, preserving the
// instant-vs-date-only distinction for all-day events.
func convertEvent(ev *gcal.Event) calendar.Event {
	out := calendar.Event{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Source:      SourceTag,
		Start:       convertTime(ev.Start),
		End:         convertTime(ev.End),
	}
	// Google reports all-day ends as the exclusive next date; the internal
	// model treats the end date as inclusive.
	if out.End.Date != "" {
		if d, err := time.Parse("2006-01-02", out.End.Date); err == nil {
			out.End.Date = d.AddDate(0, 0, -1).Format("2006-01-02")
		}
	}
	for _, a := range ev.Attendees {
		if a == nil {
			continue
		}
		name := a.DisplayName
		if name == "" {
			name = a.Email
		}
		out.Attendees = append(out.Attendees, name)
	}
	return out
}

func convertTime(edt *gcal.EventDateTime) calendar.EventTime {
	if edt == nil {
		return calendar.EventTime{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return calendar.EventTime{DateTime: &t}
		}
	}
	return calendar.EventTime{Date: edt.Date}
}
