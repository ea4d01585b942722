package reminder

import "time"

// Reminder is a user-created record with a title and a due timestamp.
// Timestamps are Unix milliseconds, matching the persisted JSON format.
type Reminder struct {
	ID         string `json:"id" bson:"id"`
	Title      string `json:"title" bson:"title"`
	DueAt      int64  `json:"dueAt" bson:"dueAt"`
	Done       bool   `json:"done" bson:"done"`
	NotifiedAt *int64 `json:"notifiedAt" bson:"notifiedAt"`
	CreatedAt  int64  `json:"createdAt" bson:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt" bson:"updatedAt"`
}

func NewReminder(id, title string, dueAt, now int64) *Reminder {
	return &Reminder{
		ID:        id,
		Title:     title,
		DueAt:     dueAt,
		Done:      false,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Millis converts t to the stored timestamp representation.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Due returns DueAt as a time.Time.
func (r *Reminder) Due() time.Time {
	return time.UnixMilli(r.DueAt)
}

// Valid reports whether the record can be scheduled. Malformed records
// stay in the collection so they can be corrected by hand.
func (r *Reminder) Valid() bool {
	return r.ID != "" && r.DueAt > 0
}

// Actionable reports whether the reminder still needs attention.
func (r *Reminder) Actionable() bool {
	return !r.Done
}

// IsDue reports whether an actionable reminder has crossed its due time.
func (r *Reminder) IsDue(now int64) bool {
	return r.Valid() && r.Actionable() && r.DueAt <= now
}

// Notified reports whether a notification was shown for the current DueAt.
func (r *Reminder) Notified() bool {
	return r.NotifiedAt != nil
}

// Update applies an edit. The reminder is reopened and may notify again.
func (r *Reminder) Update(title string, dueAt, now int64) {
	r.Title = title
	r.DueAt = dueAt
	r.Done = false
	r.NotifiedAt = nil
	r.UpdatedAt = now
}

// Reschedule moves the due time, e.g. on snooze.
func (r *Reminder) Reschedule(dueAt, now int64) {
	if dueAt != r.DueAt {
		r.NotifiedAt = nil
	}
	r.DueAt = dueAt
	r.Done = false
	r.UpdatedAt = now
}

func (r *Reminder) SetDone(done bool, now int64) {
	r.Done = done
	r.UpdatedAt = now
}

func (r *Reminder) MarkNotified(now int64) {
	r.NotifiedAt = &now
}

// Clone returns a deep copy.
func (r *Reminder) Clone() *Reminder {
	c := *r
	if r.NotifiedAt != nil {
		n := *r.NotifiedAt
		c.NotifiedAt = &n
	}
	return &c
}

// CloneList deep-copies a collection.
func CloneList(list []*Reminder) []*Reminder {
	out := make([]*Reminder, 0, len(list))
	for _, r := range list {
		out = append(out, r.Clone())
	}
	return out
}
