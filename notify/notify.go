// Package notify defines persisted notifications and the ephemeral toast
// queue shown by the UI.
package notify

import (
	"fmt"
	"time"
)

// Priority orders notifications; urgent ones never auto-expire.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// DisplayInterval is how long a non-urgent notification stays in the active
// set after it is raised.
const DisplayInterval = 30 * time.Second

// Notification is a persisted alert with read/unread state.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Priority  Priority  `json:"priority"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
}

// EntityID implements store.Entity.
func (n Notification) EntityID() string { return n.ID }

// Validate checks a notification before it is created remotely.
func Validate(n Notification) error {
	if n.Title == "" {
		return fmt.Errorf("notification title is required")
	}
	switch n.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent, "":
	default:
		return fmt.Errorf("invalid notification priority %q", n.Priority)
	}
	return nil
}

// Active filters notifications down to the set the UI should surface at
// now: urgent notifications persist until read, everything else drops out of
// the active set DisplayInterval after its timestamp. The input order is
// preserved.
func Active(all []Notification, now time.Time) []Notification {
	var out []Notification
	for _, n := range all {
		if n.Read {
			continue
		}
		if n.Priority != PriorityUrgent && now.Sub(n.Timestamp) > DisplayInterval {
			continue
		}
		out = append(out, n)
	}
	return out
}
