// Package calendar merges tasks and externally synced calendar events into
// one ordered, day-bucketed timeline.
package calendar

import "time"

// EventTime is a point in an event's schedule: either a precise instant or a
// date-only value for all-day events. Exactly one of DateTime and Date is set.
type EventTime struct {
	DateTime *time.Time `json:"date_time,omitempty"`
	Date     string     `json:"date,omitempty"` // YYYY-MM-DD
}

// Instant resolves the event time to a concrete instant in loc. Date-only
// values resolve to the start of the day; endOfDay selects 23:59:59 instead.
// ok is false when the value is empty or the date does not parse.
func (et EventTime) Instant(loc *time.Location, endOfDay bool) (t time.Time, ok bool) {
	if et.DateTime != nil {
		return *et.DateTime, true
	}
	if et.Date == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation("2006-01-02", et.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		// Construct the instant from calendar components; adding a fixed
		// duration lands on the wrong day when a DST transition shortens
		// or lengthens it.
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc), true
	}
	return d, true
}

// AllDay reports whether the value is date-only.
func (et EventTime) AllDay() bool { return et.DateTime == nil && et.Date != "" }

// Event is a calendar event synced from one integration source. Events are
// refreshed wholesale per sync and never mutated field-by-field.
type Event struct {
	ID          string    `json:"id"` // unique only within its source
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
	Source      string    `json:"source"` // integration type tag
}

// ItemType distinguishes the origin of a timeline item.
type ItemType string

const (
	ItemTask  ItemType = "task"
	ItemEvent ItemType = "event"
)

// Item is the unified projection of a task or event for timeline display.
// It is derived fresh on every aggregation call and never cached.
// Invariant: Start <= End.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Type      ItemType  `json:"type"`
	Priority  string    `json:"priority,omitempty"` // task only
	Status    string    `json:"status,omitempty"`   // task only
	Location  string    `json:"location,omitempty"` // event only
	Attendees []string  `json:"attendees,omitempty"`
	Source    string    `json:"source,omitempty"`
}
