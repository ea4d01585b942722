package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type PostgresStorage struct {
	sqlStorage
}

// NewPostgresStorage connects to databaseURL and ensures the reminders table exists.
func NewPostgresStorage(databaseURL string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	s := &PostgresStorage{sqlStorage{
		db: db,
		dialect: sqlDialect{
			createTable: `CREATE TABLE IF NOT EXISTS reminders (
				position INTEGER PRIMARY KEY,
				id TEXT NOT NULL DEFAULT '', -- unique when set, checked before every save
				title TEXT NOT NULL DEFAULT '',
				due_at BIGINT,
				done BOOLEAN NOT NULL DEFAULT FALSE,
				notified_at BIGINT,
				created_at BIGINT,
				updated_at BIGINT
			)`,
			insert: `INSERT INTO reminders
				(id, position, title, due_at, done, notified_at, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		},
	}}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}
