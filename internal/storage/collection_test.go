package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reminder-agent/internal/reminder"
)

// flakyStorage fails the first failSaves writes.
type flakyStorage struct {
	*MemoryStorage
	mu        sync.Mutex
	failSaves int
	saves     int
}

func (f *flakyStorage) Save(ctx context.Context, list []*reminder.Reminder) error {
	f.mu.Lock()
	f.saves++
	fail := f.saves <= f.failSaves
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.MemoryStorage.Save(ctx, list)
}

func appendReminder(id string) UpdateFunc {
	return func(list []*reminder.Reminder) ([]*reminder.Reminder, bool, error) {
		return append(list, reminder.NewReminder(id, id, 1000, 1)), true, nil
	}
}

func TestCollectionUpdateSignalsSubscribers(t *testing.T) {
	c := NewCollection(NewMemoryStorage())
	changes := c.Subscribe()

	if err := c.Update(context.Background(), appendReminder("a")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}

	list, _ := c.List(context.Background())
	if len(list) != 1 || list[0].ID != "a" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestCollectionUnchangedUpdateDoesNotSave(t *testing.T) {
	c := NewCollection(NewMemoryStorage())
	changes := c.Subscribe()

	err := c.Update(context.Background(), func(list []*reminder.Reminder) ([]*reminder.Reminder, bool, error) {
		return list, false, nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	select {
	case <-changes:
		t.Fatal("no-op update should not signal")
	default:
	}
}

func TestCollectionRetriesSaveOnce(t *testing.T) {
	store := &flakyStorage{MemoryStorage: NewMemoryStorage(), failSaves: 1}
	c := NewCollection(store)

	if err := c.Update(context.Background(), appendReminder("a")); err != nil {
		t.Fatalf("Update should succeed on retry: %v", err)
	}
	if store.saves != 2 {
		t.Errorf("saves: got %d, want 2", store.saves)
	}
}

func TestCollectionGivesUpAfterOneRetry(t *testing.T) {
	store := &flakyStorage{MemoryStorage: NewMemoryStorage(), failSaves: 5}
	c := NewCollection(store)

	if err := c.Update(context.Background(), appendReminder("a")); err == nil {
		t.Fatal("expected error after retry is exhausted")
	}
	if store.saves != 2 {
		t.Errorf("saves: got %d, want 2", store.saves)
	}
}

func TestCollectionDoesNotRetryDuplicateIDs(t *testing.T) {
	c := NewCollection(NewMemoryStorage())
	err := c.Update(context.Background(), func(list []*reminder.Reminder) ([]*reminder.Reminder, bool, error) {
		return []*reminder.Reminder{{ID: "x"}, {ID: "x"}}, true, nil
	})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("got %v, want ErrDuplicateID", err)
	}
}

func TestCollectionSerializesUpdates(t *testing.T) {
	c := NewCollection(NewMemoryStorage())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Update(context.Background(), appendReminder(NewReminderID()))
		}(i)
	}
	wg.Wait()

	list, _ := c.List(context.Background())
	if len(list) != 20 {
		t.Errorf("lost updates: got %d reminders, want 20", len(list))
	}
}
