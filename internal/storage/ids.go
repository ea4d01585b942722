package storage

import "github.com/google/uuid"

// NewReminderID returns a fresh opaque id. Ids are random so a deleted
// reminder's id is never handed out again.
func NewReminderID() string {
	return uuid.NewString()
}
