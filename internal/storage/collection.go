package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"reminder-agent/internal/logger"
	"reminder-agent/internal/reminder"
)

const saveRetryDelay = 200 * time.Millisecond

// Collection serializes read-modify-write cycles over a Storage and
// signals subscribers after every committed write.
type Collection struct {
	store Storage
	mu    sync.Mutex

	subMu sync.Mutex
	subs  []chan struct{}
}

func NewCollection(store Storage) *Collection {
	return &Collection{store: store}
}

// List returns a snapshot of the collection.
func (c *Collection) List(ctx context.Context) ([]*reminder.Reminder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Load(ctx)
}

// UpdateFunc mutates list in place or returns a replacement. changed
// reports whether anything needs to be written back.
type UpdateFunc func(list []*reminder.Reminder) (out []*reminder.Reminder, changed bool, err error)

// Update loads the list, applies fn and persists the result. A failed
// write is retried once before the error is returned.
func (c *Collection) Update(ctx context.Context, fn UpdateFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	out, changed, err := fn(list)
	if err != nil || !changed {
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(saveRetryDelay), 1), ctx)
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		err := c.store.Save(ctx, out)
		if errors.Is(err, ErrDuplicateID) {
			return backoff.Permanent(err)
		}
		if err != nil {
			logger.Debug(ctx, "Save reminders failed", "attempt", attempt, "error", err)
		}
		return err
	}, policy)
	if err != nil {
		return err
	}

	c.Changed()
	return nil
}

// Subscribe returns a channel that receives a coalesced signal whenever
// the collection changes.
func (c *Collection) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.subMu.Lock()
	c.subs = append(c.subs, ch)
	c.subMu.Unlock()
	return ch
}

// Changed signals subscribers. Call it for edits made outside this process.
func (c *Collection) Changed() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Collection) Close() error {
	return c.store.Close()
}
