package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"reminder-agent/internal/logger"
	"reminder-agent/internal/notify"
	"reminder-agent/internal/reminder"
	"reminder-agent/internal/storage"
)

var (
	ErrTitleRequired = errors.New("title required")
	ErrOutOfRange    = errors.New("due time out of range")
)

// Manager is the user-facing side of the reminder collection. It writes
// through the Collection, whose change signal drives the scheduler, and
// clears live notifications for reminders it changes.
type Manager struct {
	coll       *storage.Collection
	notifier   notify.Notifier
	yearsAhead int
	loc        *time.Location
	now        func() time.Time
}

func New(coll *storage.Collection, notifier notify.Notifier, yearsAhead int) *Manager {
	if yearsAhead <= 0 {
		yearsAhead = 2
	}
	return &Manager{
		coll:       coll,
		notifier:   notifier,
		yearsAhead: yearsAhead,
		loc:        time.Local,
		now:        time.Now,
	}
}

// Groups splits open reminders the way the popup lists them.
type Groups struct {
	Overdue  []*reminder.Reminder `json:"overdue"`
	Today    []*reminder.Reminder `json:"today"`
	Upcoming []*reminder.Reminder `json:"upcoming"`
}

// Add creates a reminder. A due time in the past is moved to the start of
// the next minute.
func (m *Manager) Add(ctx context.Context, title string, due time.Time) (*reminder.Reminder, error) {
	now := m.now()
	title, dueAt, err := m.validate(title, due, now)
	if err != nil {
		return nil, err
	}

	r := reminder.NewReminder(storage.NewReminderID(), title, dueAt, reminder.Millis(now))
	err = m.coll.Update(ctx, func(list []*reminder.Reminder) ([]*reminder.Reminder, bool, error) {
		return append(list, r), true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add reminder: %w", err)
	}
	logger.Info(ctx, "Reminder added", "reminder_id", r.ID, "due", r.Due())
	return r.Clone(), nil
}

// Edit replaces title and due time. The reminder is reopened so it can
// notify again at the new time.
func (m *Manager) Edit(ctx context.Context, id, title string, due time.Time) (*reminder.Reminder, error) {
	now := m.now()
	title, dueAt, err := m.validate(title, due, now)
	if err != nil {
		return nil, err
	}

	var out *reminder.Reminder
	err = m.coll.Update(ctx, func(list []*reminder.Reminder) ([]*reminder.Reminder, bool, error) {
		i := storage.Find(list, id)
		if i < 0 {
			return nil, false, storage.ErrNotFound
		}
		list[i].Update(title, dueAt, reminder.Millis(now))
		out = list[i].Clone()
		return list, true, nil
	})
	if err != nil {
		return nil, err
	}
	m.dismiss(ctx, id)
	return out, nil
}

// SetDone marks a reminder done or reopens it.
func (m *Manager) SetDone(ctx context.Context, id string, done bool) (*reminder.Reminder, error) {
	return m.mutateDone(ctx, id, func(bool) bool { return done })
}

// ToggleDone flips the done flag.
func (m *Manager) ToggleDone(ctx context.Context, id string) (*reminder.Reminder, error) {
	return m.mutateDone(ctx, id, func(cur bool) bool { return !cur })
}

func (m *Manager) mutateDone(ctx context.Context, id string, next func(bool) bool) (*reminder.Reminder, error) {
	nowMs := reminder.Millis(m.now())
	var out *reminder.Reminder
	err := m.coll.Update(ctx, func(list []*reminder.Reminder) ([]*reminder.Reminder, bool, error) {
		i := storage.Find(list, id)
		if i < 0 {
			return nil, false, storage.ErrNotFound
		}
		list[i].SetDone(next(list[i].Done), nowMs)
		out = list[i].Clone()
		return list, true, nil
	})
	if err != nil {
		return nil, err
	}
	m.dismiss(ctx, id)
	return out, nil
}

// Delete removes a reminder. Its timer goes away on the next
// reconciliation; the live notification is cleared here.
func (m *Manager) Delete(ctx context.Context, id string) error {
	err := m.coll.Update(ctx, func(list []*reminder.Reminder) ([]*reminder.Reminder, bool, error) {
		i := storage.Find(list, id)
		if i < 0 {
			return nil, false, storage.ErrNotFound
		}
		return append(list[:i], list[i+1:]...), true, nil
	})
	if err != nil {
		return err
	}
	m.dismiss(ctx, id)
	logger.Info(ctx, "Reminder deleted", "reminder_id", id)
	return nil
}

func (m *Manager) Get(ctx context.Context, id string) (*reminder.Reminder, error) {
	list, err := m.coll.List(ctx)
	if err != nil {
		return nil, err
	}
	i := storage.Find(list, id)
	if i < 0 {
		return nil, storage.ErrNotFound
	}
	return list[i], nil
}

// List returns every reminder, malformed ones included, ordered by due time.
func (m *Manager) List(ctx context.Context) ([]*reminder.Reminder, error) {
	list, err := m.coll.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].DueAt < list[j].DueAt })
	return list, nil
}

// Due returns open reminders whose due time has passed.
func (m *Manager) Due(ctx context.Context) ([]*reminder.Reminder, error) {
	list, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	nowMs := reminder.Millis(m.now())
	out := []*reminder.Reminder{}
	for _, r := range list {
		if r.IsDue(nowMs) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Groups buckets open reminders into overdue, later today and upcoming.
func (m *Manager) Groups(ctx context.Context) (*Groups, error) {
	list, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now().In(m.loc)
	nowMs := reminder.Millis(now)
	g := &Groups{
		Overdue:  []*reminder.Reminder{},
		Today:    []*reminder.Reminder{},
		Upcoming: []*reminder.Reminder{},
	}
	for _, r := range list {
		if r.Done || !r.Valid() {
			continue
		}
		switch {
		case r.DueAt < nowMs:
			g.Overdue = append(g.Overdue, r)
		case sameDay(r.Due().In(m.loc), now):
			g.Today = append(g.Today, r)
		default:
			g.Upcoming = append(g.Upcoming, r)
		}
	}
	return g, nil
}

func (m *Manager) validate(title string, due time.Time, now time.Time) (string, int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", 0, ErrTitleRequired
	}
	if due.IsZero() {
		return "", 0, fmt.Errorf("%w: missing due time", ErrOutOfRange)
	}

	if earliest := nextMinute(now); due.Before(earliest) {
		due = earliest
	}
	if limit := m.latest(now); !due.Before(limit) {
		return "", 0, fmt.Errorf("%w: more than %d years ahead", ErrOutOfRange, m.yearsAhead)
	}
	return title, reminder.Millis(due), nil
}

// latest is the first instant no longer accepted: the day after today
// shifted yearsAhead years.
func (m *Manager) latest(now time.Time) time.Time {
	local := now.In(m.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.loc)
	return midnight.AddDate(m.yearsAhead, 0, 1)
}

func (m *Manager) dismiss(ctx context.Context, id string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Dismiss(ctx, reminder.NotificationID(id)); err != nil {
		logger.Debug(ctx, "Dismiss notification failed", "reminder_id", id, "error", err)
	}
}

func nextMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute).Add(time.Minute)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
