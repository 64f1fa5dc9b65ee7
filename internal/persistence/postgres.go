// Package persistence provides optional alternative backends for the
// scheduler's item set, beyond the core file-based queue.xml (spec
// 4.9 names the minimal on-disk layout; everything in this package is
// an additional deployment option layered on the same
// queue.PersistedEntry shape).
package persistence

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"

	"github.com/forgeci/buildqueue/internal/queue"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store is satisfied by every alternative backend in this package, so
// callers can swap PostgresStore for another durable sink without
// touching cmd/scheduler's wiring beyond the selection switch itself.
type Store interface {
	Save(entries []queue.PersistedEntry) error
	Load() ([]queue.PersistedEntry, error)
}

var _ Store = (*PostgresStore)(nil)

// PostgresStore persists the queue item set to a Postgres table
// instead of a local queue.xml file, for controllers that already run
// with a database and want crash recovery without local disk state.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens connectionString and applies any pending
// migrations.
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("persistence: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("persistence: connect to database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.runMigrations(); err != nil {
		return nil, fmt.Errorf("persistence: run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) runMigrations() error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.Up(s.db, "migrations")
}

// Save replaces the stored item set with entries, inside a single
// transaction so a save is atomic even though it is a delete-then-
// insert under the hood. Each entry's Actions are not stored, so Load
// returns entries with no actions.
func (s *PostgresStore) Save(entries []queue.PersistedEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("persistence: begin save transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM queue_items"); err != nil {
		return fmt.Errorf("persistence: clear queue_items: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO queue_items (id, task_name, stage, in_queue_since, due_at, entered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("persistence: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		dueAt := toNullTime(e.DueAt)
		enteredAt := toNullTime(e.EnteredAt)
		if _, err := stmt.Exec(e.ID, e.TaskName, e.Stage, e.InQueueSince, dueAt, enteredAt); err != nil {
			return fmt.Errorf("persistence: insert queue item %d: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// Load returns every stored entry, ordered by id.
func (s *PostgresStore) Load() ([]queue.PersistedEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, task_name, stage, in_queue_since, due_at, entered_at
		FROM queue_items
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("persistence: query queue_items: %w", err)
	}
	defer rows.Close()

	var out []queue.PersistedEntry
	for rows.Next() {
		var e queue.PersistedEntry
		var dueAt, enteredAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.TaskName, &e.Stage, &e.InQueueSince, &dueAt, &enteredAt); err != nil {
			return nil, fmt.Errorf("persistence: scan queue item: %w", err)
		}
		if dueAt.Valid {
			e.DueAt = dueAt.Time
		}
		if enteredAt.Valid {
			e.EnteredAt = enteredAt.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
