package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStorage(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "test_reminder.db")

	storage, err := NewSQLiteStorage(dbFile)
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	defer storage.Close()

	runStorageTests(t, storage)
}

func TestSQLiteStoragePersistence(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "test_persistence.db")
	ctx := context.Background()

	storage, err := NewSQLiteStorage(dbFile)
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	if err := storage.Save(ctx, testReminders()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	storage.Close()

	// Reload storage and check the list survived in order
	storage2, err := NewSQLiteStorage(dbFile)
	if err != nil {
		t.Fatalf("Failed to reload SQLite storage: %v", err)
	}
	defer storage2.Close()

	list, err := storage2.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := testReminders()
	if len(list) != len(want) {
		t.Fatalf("Load after reload: got %d, want %d", len(list), len(want))
	}
	for i := range want {
		if list[i].ID != want[i].ID {
			t.Errorf("position %d: got %s, want %s", i, list[i].ID, want[i].ID)
		}
	}
	if list[1].NotifiedAt == nil || *list[1].NotifiedAt != *want[1].NotifiedAt {
		t.Errorf("notifiedAt not preserved: %+v", list[1])
	}
}

func TestSQLiteStorageCreateTablesError(t *testing.T) {
	// Test with invalid database path to trigger error
	_, err := NewSQLiteStorage("/invalid/path/test.db")
	if err == nil {
		t.Error("Expected error when creating SQLite storage with invalid path")
	}
}
