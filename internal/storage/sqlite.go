package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStorage struct {
	sqlStorage
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	s := &SQLiteStorage{sqlStorage{
		db: db,
		dialect: sqlDialect{
			createTable: `CREATE TABLE IF NOT EXISTS reminders (
				position INTEGER PRIMARY KEY,
				id TEXT NOT NULL DEFAULT '', -- unique when set, checked before every save
				title TEXT NOT NULL DEFAULT '',
				due_at INTEGER, -- unix ms, NULL for malformed records
				done BOOLEAN NOT NULL DEFAULT 0,
				notified_at INTEGER,
				created_at INTEGER,
				updated_at INTEGER
			)`,
			insert: `INSERT INTO reminders
				(id, position, title, due_at, done, notified_at, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		},
	}}

	// Create tables if they don't exist
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}
