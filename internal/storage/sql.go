package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"reminder-agent/internal/reminder"
)

// sqlDialect holds the statements that differ between SQL engines.
type sqlDialect struct {
	createTable string
	insert      string
}

// sqlStorage stores one row per reminder keyed by its position in the
// list. Ids are not a key: salvaged records may share an empty id.
type sqlStorage struct {
	db      *sql.DB
	dialect sqlDialect
	mu      sync.Mutex
}

func (s *sqlStorage) createTables() error {
	if _, err := s.db.Exec(s.dialect.createTable); err != nil {
		return fmt.Errorf("failed to execute query %q: %w", s.dialect.createTable, err)
	}
	return nil
}

func (s *sqlStorage) Load(ctx context.Context) ([]*reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, title, due_at, done, notified_at, created_at, updated_at
		FROM reminders ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	list := []*reminder.Reminder{}
	for rows.Next() {
		var r reminder.Reminder
		var dueAt, notifiedAt, createdAt, updatedAt sql.NullInt64

		if err := rows.Scan(&r.ID, &r.Title, &dueAt, &r.Done, &notifiedAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}

		// A NULL due_at is kept as a malformed record rather than dropped.
		r.DueAt = dueAt.Int64
		if notifiedAt.Valid {
			n := notifiedAt.Int64
			r.NotifiedAt = &n
		}
		r.CreatedAt = createdAt.Int64
		r.UpdatedAt = updatedAt.Int64

		list = append(list, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return list, nil
}

func (s *sqlStorage) Save(ctx context.Context, list []*reminder.Reminder) error {
	if err := checkUnique(list); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM reminders"); err != nil {
		return fmt.Errorf("failed to clear reminders: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range list {
		var dueAt, notifiedAt sql.NullInt64
		if r.DueAt > 0 {
			dueAt = sql.NullInt64{Int64: r.DueAt, Valid: true}
		}
		if r.NotifiedAt != nil {
			notifiedAt = sql.NullInt64{Int64: *r.NotifiedAt, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.ID, i, r.Title, dueAt, r.Done, notifiedAt, r.CreatedAt, r.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert reminder %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reminders: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *sqlStorage) Close() error {
	return s.db.Close()
}
