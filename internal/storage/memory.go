package storage

import (
	"context"
	"sync"

	"reminder-agent/internal/reminder"
)

type MemoryStorage struct {
	reminders []*reminder.Reminder
	mu        sync.Mutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		reminders: []*reminder.Reminder{},
	}
}

func (m *MemoryStorage) Load(_ context.Context) ([]*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return reminder.CloneList(m.reminders), nil
}

func (m *MemoryStorage) Save(_ context.Context, list []*reminder.Reminder) error {
	if err := checkUnique(list); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders = reminder.CloneList(list)
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
