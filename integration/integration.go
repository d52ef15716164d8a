// Package integration defines external calendar integrations and the syncer
// that maintains their per-source event collections.
package integration

import (
	"fmt"
	"time"
)

// Status is the connection state of an integration. Healthy is tracked
// independently: a connected integration can still be failing its syncs.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusPending      Status = "pending"
	StatusError        Status = "error"
	StatusDisconnected Status = "disconnected"
)

// Integration is one external source of calendar events. It belongs to
// exactly one workspace; tasks and events only reference its type tag.
type Integration struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"` // provider tag, e.g. "google"
	Name      string         `json:"name,omitempty"`
	Status    Status         `json:"status"`
	Healthy   bool           `json:"healthy"`
	Config    map[string]any `json:"config,omitempty"` // opaque, includes last_sync
	CreatedAt time.Time      `json:"created_at"`
}

// EntityID implements store.Entity.
func (i Integration) EntityID() string { return i.ID }

// Validate checks an integration before it is created remotely.
func Validate(i Integration) error {
	if i.Type == "" {
		return fmt.Errorf("integration type is required")
	}
	switch i.Status {
	case StatusConnected, StatusPending, StatusError, StatusDisconnected, "":
	default:
		return fmt.Errorf("invalid integration status %q", i.Status)
	}
	return nil
}

// LastSync extracts the last_sync instant from the opaque config, if set.
func (i Integration) LastSync() (time.Time, bool) {
	raw, ok := i.Config["last_sync"]
	if !ok {
		return time.Time{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
