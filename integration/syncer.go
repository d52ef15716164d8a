package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tandemhq/tandem/calendar"
	"github.com/tandemhq/tandem/gateway"
	"github.com/tandemhq/tandem/store"
)

// Syncer maintains the per-integration event collections consumed by the
// timeline aggregator. One integration's sync failure never fails a refresh
// pass: the failing integration simply contributes nothing until it
// recovers, and its error is recorded for the UI.
type Syncer struct {
	gw     gateway.Client
	st     *store.Store[Integration]
	logger *slog.Logger

	// OnError, when set, is notified of each per-integration sync failure.
	OnError func(integrationID string, err error)

	mu     sync.Mutex
	events map[string][]calendar.Event // by integration ID
	errs   map[string]error            // last sync failure by integration ID
}

// NewSyncer creates a Syncer over the integration store.
func NewSyncer(gw gateway.Client, st *store.Store[Integration], logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		gw:     gw,
		st:     st,
		logger: logger.With(slog.String("component", "syncer")),
		events: make(map[string][]calendar.Event),
		errs:   make(map[string]error),
	}
}

// Refresh re-pulls events in [from, to] for every connected integration.
// Failures are isolated per integration: the failing source's collection is
// emptied for this pass and the error recorded. Refresh itself never fails.
func (s *Syncer) Refresh(ctx context.Context, from, to time.Time) {
	for _, integ := range s.st.Items() {
		if integ.Status != StatusConnected {
			continue
		}
		s.refreshOne(ctx, integ.ID, from, to)
	}
}

func (s *Syncer) refreshOne(ctx context.Context, id string, from, to time.Time) {
	raw, err := s.gw.ListIntegrationEvents(ctx, id, from, to)
	if err != nil {
		s.logger.Warn("integration sync failed", slog.String("integration", id), slog.Any("err", err))
		s.recordFailure(id, err)
		return
	}
	var evs []calendar.Event
	if err := json.Unmarshal(raw, &evs); err != nil {
		s.recordFailure(id, fmt.Errorf("decode events for integration %s: %w", id, err))
		return
	}
	s.mu.Lock()
	s.events[id] = evs
	delete(s.errs, id)
	s.mu.Unlock()
}

func (s *Syncer) recordFailure(id string, err error) {
	s.mu.Lock()
	s.events[id] = nil
	s.errs[id] = err
	s.mu.Unlock()
	if s.OnError != nil {
		s.OnError(id, err)
	}
}

// Trigger asks the backend to sync one integration, then re-pulls its
// events for the given window.
func (s *Syncer) Trigger(ctx context.Context, id string, mode gateway.SyncMode, from, to time.Time) error {
	if err := s.gw.SyncIntegration(ctx, id, mode); err != nil {
		s.recordFailure(id, err)
		return err
	}
	s.refreshOne(ctx, id, from, to)
	s.mu.Lock()
	err := s.errs[id]
	s.mu.Unlock()
	return err
}

// EventsBySource returns the current event collections keyed by source tag,
// restricted to integrations that are both connected and healthy. An
// unhealthy source is fully excluded even when a prior sync left cached
// events. Two integrations of the same type merge into one source key;
// duplicate events across them pass through undeduplicated.
func (s *Syncer) EventsBySource() map[string][]calendar.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]calendar.Event)
	for _, integ := range s.st.Items() {
		if integ.Status != StatusConnected || !integ.Healthy {
			continue
		}
		evs, ok := s.events[integ.ID]
		if !ok || len(evs) == 0 {
			continue
		}
		out[integ.Type] = append(out[integ.Type], evs...)
	}
	return out
}

// SyncErr returns the last recorded sync failure for an integration, nil if
// its last sync succeeded.
func (s *Syncer) SyncErr(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs[id]
}
