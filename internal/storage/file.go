package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"reminder-agent/internal/reminder"
)

// FileStorage keeps the collection in a JSON object file, keyed by Key,
// the same shape a browser's local key-value area would hold.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the backing file, e.g. for WatchFile.
func (fs *FileStorage) Path() string {
	return fs.path
}

func (fs *FileStorage) Load(_ context.Context) ([]*reminder.Reminder, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.loadReminders()
}

func (fs *FileStorage) loadReminders() ([]*reminder.Reminder, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return []*reminder.Reminder{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fs.path, err)
	}
	if len(data) == 0 {
		return []*reminder.Reminder{}, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fs.path, err)
	}
	return reminder.DecodeList(doc[Key])
}

func (fs *FileStorage) Save(_ context.Context, list []*reminder.Reminder) error {
	if err := checkUnique(list); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.saveReminders(list)
}

func (fs *FileStorage) saveReminders(list []*reminder.Reminder) error {
	encoded, err := reminder.EncodeList(list)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(map[string]json.RawMessage{Key: encoded}, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename so readers never observe a half-written file.
	tmp, err := os.CreateTemp(filepath.Dir(fs.path), filepath.Base(fs.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", fs.path, err)
	}
	return nil
}

func (fs *FileStorage) Close() error {
	return nil
}
