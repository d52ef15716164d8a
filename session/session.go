// Package session wires the per-family domain stores, the integration
// syncer, and the toast queue into one explicitly passed bundle. A Session
// is created once at daemon start and lives for the whole process; nothing
// in the tree reaches for global state.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tandemhq/tandem/calendar"
	"github.com/tandemhq/tandem/chat"
	"github.com/tandemhq/tandem/events"
	"github.com/tandemhq/tandem/gateway"
	"github.com/tandemhq/tandem/integration"
	"github.com/tandemhq/tandem/notify"
	"github.com/tandemhq/tandem/store"
	"github.com/tandemhq/tandem/task"
	"github.com/tandemhq/tandem/team"
)

// Session bundles the domain state for one client session.
type Session struct {
	Tasks         *store.Store[task.Task]
	Conversations *store.Store[chat.Conversation]
	Messages      *store.Store[chat.Message]
	Notifications *store.Store[notify.Notification]
	Members       *store.Store[team.Member]
	Integrations  *store.Store[integration.Integration]

	Sync   *integration.Syncer
	Toasts *notify.Queue
	Bus    *events.Bus

	logger *slog.Logger
}

// New creates a Session backed by the given gateway client.
func New(gw gateway.Client, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		Tasks: store.New(gateway.KindTask, gw, logger, store.Hooks[task.Task]{
			Validate:  task.Validate,
			Normalize: task.Normalize,
		}),
		Conversations: store.New(gateway.KindConversation, gw, logger, store.Hooks[chat.Conversation]{
			Validate: chat.ValidateConversation,
		}),
		Messages: store.New(gateway.KindMessage, gw, logger, store.Hooks[chat.Message]{
			Validate: chat.ValidateMessage,
		}),
		Notifications: store.New(gateway.KindNotification, gw, logger, store.Hooks[notify.Notification]{
			Validate: notify.Validate,
		}),
		Members: store.New(gateway.KindMember, gw, logger, store.Hooks[team.Member]{
			Validate: team.Validate,
		}),
		Integrations: store.New(gateway.KindIntegration, gw, logger, store.Hooks[integration.Integration]{
			Validate: integration.Validate,
		}),
		Toasts: notify.NewQueue(notify.DefaultToastDuration),
		Bus:    events.NewBus(),
		logger: logger,
	}
	s.Sync = integration.NewSyncer(gw, s.Integrations, logger)

	s.SetOnChange(func(kind gateway.Kind) {
		s.Bus.Publish(events.Event{Type: events.TypeCollectionChanged, Kind: string(kind)})
	})
	s.Sync.OnError = func(id string, err error) {
		s.Bus.Publish(events.Event{Type: events.TypeSyncFailed, Subject: id, Detail: err.Error()})
	}
	s.Toasts.OnExpire = func(n notify.Notice) {
		s.Bus.Publish(events.Event{Type: events.TypeToastExpired, Subject: n.ID})
	}
	return s
}

// FetchAll loads every collection from the backend. Each store keeps its
// last-known-good data on failure; the joined error reports every family
// that failed.
func (s *Session) FetchAll(ctx context.Context) error {
	errs := []error{
		s.Tasks.FetchAll(ctx, nil),
		s.Conversations.FetchAll(ctx, nil),
		s.Messages.FetchAll(ctx, nil),
		s.Notifications.FetchAll(ctx, nil),
		s.Members.FetchAll(ctx, nil),
		s.Integrations.FetchAll(ctx, nil),
	}
	return errors.Join(errs...)
}

// RefreshEvents re-pulls calendar events for all connected integrations in
// the given window.
func (s *Session) RefreshEvents(ctx context.Context, from, to time.Time) {
	s.Sync.Refresh(ctx, from, to)
}

// Agenda computes the merged task/event timeline from the current
// snapshots. It is recomputed from scratch on every call.
func (s *Session) Agenda(loc *time.Location) []calendar.Item {
	return calendar.Aggregate(s.Tasks.Items(), s.Sync.EventsBySource(), loc)
}

// AgendaByDay buckets the current timeline by local calendar date.
func (s *Session) AgendaByDay(loc *time.Location) map[string][]calendar.Item {
	return calendar.BucketByDay(s.Agenda(loc), loc)
}

// Directory builds the member display-name directory from the current
// member snapshot.
func (s *Session) Directory() team.Directory {
	return team.NewDirectory(s.Members.Items())
}

// SetOnChange installs one change hook across all stores. The default hook
// publishes to the session Bus; tests may replace it.
func (s *Session) SetOnChange(fn func(kind gateway.Kind)) {
	s.Tasks.OnChange = fn
	s.Conversations.OnChange = fn
	s.Messages.OnChange = fn
	s.Notifications.OnChange = fn
	s.Members.OnChange = fn
	s.Integrations.OnChange = fn
}

// Close releases session resources.
func (s *Session) Close() {
	s.Toasts.Close()
}
