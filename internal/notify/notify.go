package notify

import (
	"context"
	"errors"
	"sort"
	"sync"

	"reminder-agent/internal/logger"
)

// BodyClick is the Interaction button index for a click on the
// notification itself rather than one of its buttons.
const BodyClick = -1

// Notification is what gets shown to the user. Actions are button labels;
// their indexes come back in Interaction.Button.
type Notification struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Actions    []string `json:"actions"`
	Persistent bool     `json:"persistent"`
}

// Notifier shows and dismisses notifications by id. Showing an id that is
// already live replaces it. Dismissing an unknown id is not an error.
type Notifier interface {
	Show(ctx context.Context, id string, n Notification) error
	Dismiss(ctx context.Context, id string) error
}

// Interaction is a user response to a live notification.
type Interaction struct {
	NotificationID string `json:"notificationId"`
	Button         int    `json:"button"`
}

// Local keeps live notifications in memory and logs them. The HTTP API
// exposes them and reports clicks back.
type Local struct {
	mu   sync.Mutex
	live map[string]Notification
}

func NewLocal() *Local {
	return &Local{live: make(map[string]Notification)}
}

func (l *Local) Show(ctx context.Context, id string, n Notification) error {
	l.mu.Lock()
	l.live[id] = n
	l.mu.Unlock()
	logger.Info(ctx, "Notification shown", "id", id, "title", n.Title, "body", n.Body, "actions", n.Actions)
	return nil
}

func (l *Local) Dismiss(ctx context.Context, id string) error {
	l.mu.Lock()
	_, ok := l.live[id]
	delete(l.live, id)
	l.mu.Unlock()
	if ok {
		logger.Debug(ctx, "Notification dismissed", "id", id)
	}
	return nil
}

// LiveNotification is a shown notification and its id.
type LiveNotification struct {
	ID string `json:"id"`
	Notification
}

// Live returns the currently shown notifications ordered by id.
func (l *Local) Live() []LiveNotification {
	l.mu.Lock()
	out := make([]LiveNotification, 0, len(l.live))
	for id, n := range l.live {
		out = append(out, LiveNotification{ID: id, Notification: n})
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsLive reports whether id is currently shown.
func (l *Local) IsLive(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.live[id]
	return ok
}

// Multi fans out to several notifiers. Show succeeds if at least one
// notifier delivered; partial failures are logged.
type Multi []Notifier

func (m Multi) Show(ctx context.Context, id string, n Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Show(ctx, id, n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) < len(m) {
		logger.Warn(ctx, "Notification partially delivered", "id", id, "error", errors.Join(errs...))
		return nil
	}
	return errors.Join(errs...)
}

func (m Multi) Dismiss(ctx context.Context, id string) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Dismiss(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
