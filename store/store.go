// Package store implements the shared domain-store pattern: an in-memory
// authoritative collection for one entity family, mutated optimistically and
// reconciled against the remote gateway.
//
// One generic Store is instantiated per family so the mutation/error
// contract is identical everywhere. The collection is newest-first: Create
// prepends the confirmed entity, and consumers rely on that ordering.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/tandemhq/tandem/gateway"
)

// Entity is any value the store can track by identity.
type Entity interface {
	EntityID() string
}

// Hooks customize per-family behavior of a Store.
type Hooks[T Entity] struct {
	// Validate runs before Create issues any gateway call.
	Validate func(T) error

	// Normalize repairs derived fields (e.g. completion timestamps) on
	// create inputs and optimistic merge results. Server-confirmed entities
	// are taken as-is.
	Normalize func(T, time.Time) T
}

// Store owns the in-memory collection for one entity family. Gateway calls
// happen outside the lock; their results are applied under the lock in
// completion order, so a slow mutation that finishes last wins
// (last-writer-by-completion).
type Store[T Entity] struct {
	kind   gateway.Kind
	gw     gateway.Client
	logger *slog.Logger
	hooks  Hooks[T]
	now    func() time.Time

	// OnChange, when set, is invoked after every successful mutation or
	// fetch, outside the store lock.
	OnChange func(kind gateway.Kind)

	mu      sync.Mutex
	items   []T
	loading bool
	lastErr error
}

// New creates a Store for one entity family.
func New[T Entity](kind gateway.Kind, gw gateway.Client, logger *slog.Logger, hooks Hooks[T]) *Store[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store[T]{
		kind:   kind,
		gw:     gw,
		logger: logger.With(slog.String("store", string(kind))),
		hooks:  hooks,
		now:    time.Now,
	}
}

// Kind returns the entity family this store owns.
func (s *Store[T]) Kind() gateway.Kind { return s.kind }

// FetchAll replaces the collection wholesale with the backend's current
// view. On failure the previous collection is preserved and the classified
// error is recorded; the UI keeps rendering last-known-good data.
func (s *Store[T]) FetchAll(ctx context.Context, filters url.Values) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	raw, err := s.gw.List(ctx, s.kind, filters)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Warn("fetch failed", slog.Any("err", err))
		return err
	}
	var fetched []T
	if err := json.Unmarshal(raw, &fetched); err != nil {
		derr := fmt.Errorf("decode %s collection: %w", s.kind, err)
		s.lastErr = derr
		s.mu.Unlock()
		return derr
	}
	s.items = fetched
	s.lastErr = nil
	s.mu.Unlock()

	s.notify()
	return nil
}

// Create validates input locally, sends it to the gateway, and on success
// prepends the server-confirmed entity. Nothing is inserted optimistically:
// the entity does not exist locally until the backend confirms it.
func (s *Store[T]) Create(ctx context.Context, input T) (T, error) {
	var zero T
	if s.hooks.Validate != nil {
		if err := s.hooks.Validate(input); err != nil {
			verr := &gateway.Error{Kind: gateway.ErrValidation, Msg: err.Error()}
			s.mu.Lock()
			s.lastErr = verr
			s.mu.Unlock()
			return zero, verr
		}
	}
	if s.hooks.Normalize != nil {
		input = s.hooks.Normalize(input, s.now())
	}

	raw, err := s.gw.Create(ctx, s.kind, input)
	if err != nil {
		s.setErr(err)
		return zero, err
	}
	var created T
	if err := json.Unmarshal(raw, &created); err != nil {
		err = fmt.Errorf("decode created %s: %w", s.kind, err)
		s.setErr(err)
		return zero, err
	}

	s.mu.Lock()
	s.items = append([]T{created}, s.items...)
	s.lastErr = nil
	s.mu.Unlock()

	s.notify()
	return created, nil
}

// Update applies fields optimistically to the matching entity, then
// reconciles with the backend: on success the server entity replaces the
// optimistic one; on failure the prior value is restored. An id with no
// matching entity is a no-op.
func (s *Store[T]) Update(ctx context.Context, id string, fields map[string]any) (T, error) {
	var zero T

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return zero, nil
	}
	prior := s.items[idx]
	merged, err := mergeFields(prior, fields)
	if err != nil {
		verr := &gateway.Error{Kind: gateway.ErrValidation, Msg: err.Error()}
		s.lastErr = verr
		s.mu.Unlock()
		return zero, verr
	}
	if s.hooks.Normalize != nil {
		merged = s.hooks.Normalize(merged, s.now())
	}
	s.items[idx] = merged
	s.mu.Unlock()
	s.notify()

	raw, gwErr := s.gw.Update(ctx, s.kind, id, fields)

	s.mu.Lock()
	if gwErr != nil {
		// Roll back the optimistic merge if the entity is still present.
		if i := s.indexOf(id); i >= 0 {
			s.items[i] = prior
		}
		s.lastErr = gwErr
		s.mu.Unlock()
		s.notify()
		return zero, gwErr
	}
	var confirmed T
	if err := json.Unmarshal(raw, &confirmed); err != nil {
		err = fmt.Errorf("decode updated %s: %w", s.kind, err)
		s.lastErr = err
		s.mu.Unlock()
		return zero, err
	}
	if i := s.indexOf(id); i >= 0 {
		s.items[i] = confirmed
	}
	s.lastErr = nil
	s.mu.Unlock()

	s.notify()
	return confirmed, nil
}

// Remove deletes an entity remotely and drops it from the collection only
// after the backend confirms. A delete that never reaches the backend must
// not make the entity vanish locally, or it resurrects on the next fetch.
func (s *Store[T]) Remove(ctx context.Context, id string) error {
	if err := s.gw.Delete(ctx, s.kind, id); err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	if idx := s.indexOf(id); idx >= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
	s.lastErr = nil
	s.mu.Unlock()

	s.notify()
	return nil
}

// Items returns a snapshot copy of the current collection.
func (s *Store[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// ByID returns the entity with the given id from the current snapshot.
func (s *Store[T]) ByID(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.items[idx], true
	}
	var zero T
	return zero, false
}

// Select returns the entities matching pred, preserving collection order.
func (s *Store[T]) Select(pred func(T) bool) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []T
	for _, it := range s.items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// Len returns the current collection size.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Err returns the error recorded by the most recent operation, nil after a
// success.
func (s *Store[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Loading reports whether a FetchAll is in flight.
func (s *Store[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Seed replaces the collection without a gateway round trip. Tests and the
// CLI's offline mode use it; production code paths go through FetchAll.
func (s *Store[T]) Seed(items []T) {
	s.mu.Lock()
	s.items = append([]T(nil), items...)
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
}

// indexOf must be called with the lock held.
func (s *Store[T]) indexOf(id string) int {
	for i, it := range s.items {
		if it.EntityID() == id {
			return i
		}
	}
	return -1
}

func (s *Store[T]) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Store[T]) notify() {
	if s.OnChange != nil {
		s.OnChange(s.kind)
	}
}

// mergeFields decodes fields over a copy of base, so only the named fields
// change and an explicit null clears a nullable field.
func mergeFields[T any](base T, fields map[string]any) (T, error) {
	out := base
	data, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("encode partial update: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("apply partial update: %w", err)
	}
	return out, nil
}
