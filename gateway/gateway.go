// Package gateway defines the remote backend contract consumed by the
// domain stores, and an HTTP implementation of it.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Kind identifies an entity family on the wire.
type Kind string

const (
	KindTask         Kind = "tasks"
	KindConversation Kind = "conversations"
	KindMessage      Kind = "messages"
	KindNotification Kind = "notifications"
	KindMember       Kind = "members"
	KindIntegration  Kind = "integrations"
)

// SyncMode selects how much of an integration's data a sync pulls.
type SyncMode string

const (
	SyncFull        SyncMode = "full"
	SyncIncremental SyncMode = "incremental"
)

// ErrKind classifies a gateway failure for the store-level error contract.
type ErrKind string

const (
	ErrValidation      ErrKind = "validation"
	ErrUnauthenticated ErrKind = "unauthenticated"
	ErrForbidden       ErrKind = "forbidden"
	ErrTransient       ErrKind = "transient"
	ErrNotFound        ErrKind = "not_found"
	ErrUnknown         ErrKind = "unknown"
)

// Error is a classified gateway failure.
type Error struct {
	Kind   ErrKind
	Status int // HTTP status when applicable, 0 otherwise
	Msg    string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway: %s (%d): %s", e.Kind, e.Status, e.Msg)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Kind, e.Msg)
}

// Classify returns the error kind of err, or ErrUnknown for anything that is
// not a gateway error. A nil err has no kind and returns "".
func Classify(err error) ErrKind {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ErrUnknown
}

// IsAuth reports whether err calls for re-authentication.
func IsAuth(err error) bool {
	k := Classify(err)
	return k == ErrUnauthenticated || k == ErrForbidden
}

// Client is the transport-agnostic backend contract. Entity payloads travel
// as raw JSON; each store decodes into its own type. Every call is a
// suspension point: stores release their lock around it and apply the result
// in completion order.
type Client interface {
	// List returns the full, optionally filtered collection as a JSON array.
	List(ctx context.Context, kind Kind, filters url.Values) (json.RawMessage, error)

	// Create persists a new entity and returns the server-confirmed value.
	Create(ctx context.Context, kind Kind, fields any) (json.RawMessage, error)

	// Update applies a partial update and returns the authoritative entity.
	Update(ctx context.Context, kind Kind, id string, fields any) (json.RawMessage, error)

	// Delete removes an entity. Deletion is only confirmed by a nil error.
	Delete(ctx context.Context, kind Kind, id string) error

	// ListIntegrationEvents returns one integration's synced events, as a
	// JSON array of calendar events. Failures affect only that integration.
	ListIntegrationEvents(ctx context.Context, integrationID string, from, to time.Time) (json.RawMessage, error)

	// SyncIntegration triggers a backend-side sync for one integration.
	SyncIntegration(ctx context.Context, integrationID string, mode SyncMode) error
}
