// Package backend implements a SQLite-backed reference backend exposing the
// remote gateway wire API. The daemon's dev mode and the integration tests
// run against it in place of the production service.
package backend

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS events (
	integration_id TEXT NOT NULL,
	event_id       TEXT NOT NULL,
	data           TEXT NOT NULL,
	start_at       DATETIME,
	PRIMARY KEY (integration_id, event_id)
);
`

// Store persists entity documents and synced events in SQLite. Entities are
// stored as JSON documents keyed by kind and id, so every entity family
// shares one schema.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at dbPath and ensures the
// schema exists. The caller is responsible for calling Close.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// ErrNotFound is returned when the target entity does not exist.
var ErrNotFound = fmt.Errorf("not found")

// List returns all documents of a kind, newest-first.
func (s *Store) List(kind string) ([]json.RawMessage, error) {
	rows, err := s.db.Query(
		`SELECT data FROM entities WHERE kind=? ORDER BY created_at DESC, id DESC`, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, json.RawMessage(data))
	}
	return out, rows.Err()
}

// Get retrieves one document by kind and id.
func (s *Store) Get(kind, id string) (json.RawMessage, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT data FROM entities WHERE kind=? AND id=?`, kind, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return json.RawMessage(data), nil
}

// Create persists a new document, assigning id/created_at/updated_at fields
// into it, and returns the stored document.
func (s *Store) Create(kind string, doc map[string]any) (json.RawMessage, error) {
	now := time.Now().UTC()
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	doc["id"] = id
	doc["created_at"] = now.Format(time.RFC3339Nano)
	doc["updated_at"] = now.Format(time.RFC3339Nano)

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO entities (kind, id, data, created_at, updated_at) VALUES (?,?,?,?,?)`,
		kind, id, string(data), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", kind, err)
	}
	return data, nil
}

// Update merges fields into an existing document and returns the stored
// result.
func (s *Store) Update(kind, id string, fields map[string]any) (json.RawMessage, error) {
	existing, err := s.Get(kind, id)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(existing, &doc); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	now := time.Now().UTC()
	doc["id"] = id
	doc["updated_at"] = now.Format(time.RFC3339Nano)

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	res, err := s.db.Exec(
		`UPDATE entities SET data=?, updated_at=? WHERE kind=? AND id=?`,
		string(data), now, kind, id)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return data, nil
}

// Put replaces a document wholesale, preserving created_at.
func (s *Store) Put(kind, id string, doc map[string]any) (json.RawMessage, error) {
	existing, err := s.Get(kind, id)
	if err != nil {
		return nil, err
	}
	var prior map[string]any
	_ = json.Unmarshal(existing, &prior)
	if ca, ok := prior["created_at"]; ok {
		doc["created_at"] = ca
	}
	now := time.Now().UTC()
	doc["id"] = id
	doc["updated_at"] = now.Format(time.RFC3339Nano)

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	if _, err := s.db.Exec(
		`UPDATE entities SET data=?, updated_at=? WHERE kind=? AND id=?`,
		string(data), now, kind, id); err != nil {
		return nil, fmt.Errorf("put %s %s: %w", kind, id, err)
	}
	return data, nil
}

// Delete removes a document by kind and id.
func (s *Store) Delete(kind, id string) error {
	res, err := s.db.Exec(`DELETE FROM entities WHERE kind=? AND id=?`, kind, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// ReplaceEvents swaps one integration's synced events wholesale.
func (s *Store) ReplaceEvents(integrationID string, events []eventRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM events WHERE integration_id=?`, integrationID); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	for _, ev := range events {
		if _, err := tx.Exec(
			`INSERT INTO events (integration_id, event_id, data, start_at) VALUES (?,?,?,?)`,
			integrationID, ev.ID, ev.Data, ev.StartAt); err != nil {
			return fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
	}
	return tx.Commit()
}

// eventRow is the stored form of one synced event.
type eventRow struct {
	ID      string
	Data    string
	StartAt *time.Time
}

// ListEvents returns one integration's events, optionally bounded to
// [from, to] by start instant. Events without a resolvable start are always
// included and left to the client's defensive handling.
func (s *Store) ListEvents(integrationID string, from, to time.Time) ([]json.RawMessage, error) {
	rows, err := s.db.Query(
		`SELECT data, start_at FROM events WHERE integration_id=? ORDER BY start_at, event_id`,
		integrationID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var data string
		var startAt sql.NullTime
		if err := rows.Scan(&data, &startAt); err != nil {
			return nil, err
		}
		if startAt.Valid {
			if !from.IsZero() && startAt.Time.Before(from) {
				continue
			}
			if !to.IsZero() && startAt.Time.After(to) {
				continue
			}
		}
		out = append(out, json.RawMessage(data))
	}
	return out, rows.Err()
}
