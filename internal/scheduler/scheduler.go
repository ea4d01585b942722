package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"reminder-agent/internal/badge"
	"reminder-agent/internal/logger"
	"reminder-agent/internal/notify"
	"reminder-agent/internal/reminder"
	"reminder-agent/internal/storage"
	"reminder-agent/internal/timer"
)

const (
	DefaultTitle     = "Reminder"
	DefaultBody      = "It's time"
	DefaultDueColor  = "#f59e0b"
	DefaultIdleColor = "#666"
)

var ErrStopped = errors.New("scheduler stopped")

// Options tunes notification content and timing.
type Options struct {
	// LeadTime fires wake-up timers this much before the due time.
	LeadTime time.Duration
	// Snooze adds a snooze button when positive.
	Snooze        time.Duration
	Title         string
	HideZeroBadge bool
	DueColor      string
	IdleColor     string
	// UIURL is opened when a notification body is clicked.
	UIURL string
}

// Opener opens the management UI.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// LogOpener only logs the URL. A headless daemon has nothing to open.
type LogOpener struct{}

func (LogOpener) Open(ctx context.Context, url string) error {
	logger.Info(ctx, "Open management UI", "url", url)
	return nil
}

type action int

const (
	actionSnooze action = iota
	actionDone
)

type envelope struct {
	event Event
	done  chan struct{}
}

// Scheduler keeps wake-up timers, notifications and the badge consistent
// with the persisted reminder collection. Every trigger is handled on
// the Run goroutine, one at a time.
type Scheduler struct {
	coll     *storage.Collection
	timers   timer.Service
	notifier notify.Notifier
	badge    badge.Indicator
	opener   Opener
	opts     Options
	now      func() time.Time

	changes  <-chan struct{}
	events   chan envelope
	done     chan struct{}
	stopOnce sync.Once
}

func New(coll *storage.Collection, timers timer.Service, notifier notify.Notifier, indicator badge.Indicator, opener Opener, opts Options) *Scheduler {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.DueColor == "" {
		opts.DueColor = DefaultDueColor
	}
	if opts.IdleColor == "" {
		opts.IdleColor = DefaultIdleColor
	}
	if opener == nil {
		opener = LogOpener{}
	}
	return &Scheduler{
		coll:     coll,
		timers:   timers,
		notifier: notifier,
		badge:    indicator,
		opener:   opener,
		opts:     opts,
		now:      time.Now,
		changes:  coll.Subscribe(),
		events:   make(chan envelope, 64),
		done:     make(chan struct{}),
	}
}

// Run processes events until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.stop()
	logger.Info(ctx, "Scheduler started", "lead_time", s.opts.LeadTime.String(), "snooze", s.opts.Snooze.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Scheduler stopped")
			return nil
		case <-s.changes:
			s.Dispatch(ctx, StoreChanged{})
		case env := <-s.events:
			s.Dispatch(ctx, env.event)
			if env.done != nil {
				close(env.done)
			}
		}
	}
}

func (s *Scheduler) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Post queues ev without waiting for it to be handled.
func (s *Scheduler) Post(ev Event) {
	select {
	case s.events <- envelope{event: ev}:
	case <-s.done:
	}
}

// Send queues ev and waits until the loop has handled it.
func (s *Scheduler) Send(ctx context.Context, ev Event) error {
	done := make(chan struct{})
	select {
	case s.events <- envelope{event: ev, done: done}:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch handles a single event on the calling goroutine.
func (s *Scheduler) Dispatch(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case Startup, StoreChanged:
		s.Reconcile(ctx)
	case TimerFired:
		s.HandleTimer(ctx, e.Name)
	case ButtonClicked:
		s.HandleButton(ctx, e.NotificationID, e.Index)
	case BodyClicked:
		s.HandleBodyClick(ctx, e.NotificationID)
	case BadgeRefresh:
		s.RefreshBadge(ctx)
	default:
		logger.Debug(ctx, "Ignoring unknown event", "event", fmt.Sprintf("%T", ev))
	}
}

// Reconcile re-derives every wake-up timer from the stored collection,
// notifies reminders whose due time passed unnoticed and refreshes the
// badge. Running it again without a store change has no further effect.
func (s *Scheduler) Reconcile(ctx context.Context) {
	now := s.now()
	nowMs := reminder.Millis(now)

	list, err := s.coll.List(ctx)
	if err != nil {
		logger.Warn(ctx, "Reconcile: failed to load reminders, badge possibly stale", "error", err)
		return
	}

	// In-memory timer state is never trusted: drop all of ours, rebuild.
	if err := s.timers.CancelPrefix(reminder.NamePrefix); err != nil {
		logger.Debug(ctx, "Cancel reminder timers failed", "error", err)
	}

	shown := make(map[string]int64)
	scheduled, skipped := 0, 0
	for _, r := range list {
		if r.Done {
			continue
		}
		if !r.Valid() {
			skipped++
			logger.Debug(ctx, "Skipping malformed reminder", "id", r.ID, "title", r.Title)
			continue
		}
		switch {
		case r.DueAt > nowMs:
			s.schedule(ctx, r.ID, r.Due())
			scheduled++
		case !r.Notified():
			if err := s.show(ctx, r); err != nil {
				logger.Warn(ctx, "Notification failed, will retry on next pass", "reminder_id", r.ID, "error", err)
				continue
			}
			shown[r.ID] = r.DueAt
		}
	}

	s.markNotified(ctx, shown, nowMs)
	count := s.RefreshBadge(ctx)
	logger.Info(ctx, "Reconciled reminders",
		"reminders", len(list), "timers", scheduled, "notified", len(shown), "skipped", skipped, "badge", count)
}

// HandleTimer is the fast path for a single expired wake-up.
func (s *Scheduler) HandleTimer(ctx context.Context, name string) {
	if id, ok := reminder.ParseDueTimerName(name); ok {
		logger.Debug(ctx, "Due time reached", "reminder_id", id)
		s.RefreshBadge(ctx)
		return
	}
	id, ok := reminder.ParseName(name)
	if !ok {
		logger.Debug(ctx, "Ignoring foreign timer", "name", name)
		return
	}
	ctx = logger.With(ctx, "reminder_id", id)

	list, err := s.coll.List(ctx)
	if err != nil {
		logger.Warn(ctx, "Timer: failed to load reminders, badge possibly stale", "error", err)
		s.RefreshBadge(ctx)
		return
	}

	i := storage.Find(list, id)
	if i < 0 || list[i].Done {
		logger.Debug(ctx, "Stale timer ignored")
		s.RefreshBadge(ctx)
		return
	}
	r := list[i]
	if !r.Valid() || r.Notified() {
		s.RefreshBadge(ctx)
		return
	}
	// The fire was queued before an edit moved the due time later.
	if r.DueAt-s.opts.LeadTime.Milliseconds() > reminder.Millis(s.now()) {
		logger.Debug(ctx, "Early timer ignored", "due", r.Due())
		s.schedule(ctx, id, r.Due())
		s.RefreshBadge(ctx)
		return
	}

	if err := s.show(ctx, r); err != nil {
		logger.Warn(ctx, "Notification failed, will retry on next pass", "error", err)
		s.RefreshBadge(ctx)
		return
	}
	s.markNotified(ctx, map[string]int64{id: r.DueAt}, reminder.Millis(s.now()))
	s.RefreshBadge(ctx)
}

// HandleButton applies the action behind button index of a live notification.
func (s *Scheduler) HandleButton(ctx context.Context, notificationID string, index int) {
	id, ok := reminder.ParseName(notificationID)
	if !ok {
		logger.Debug(ctx, "Ignoring foreign notification", "notification_id", notificationID)
		return
	}
	ctx = logger.With(ctx, "reminder_id", id)

	acts := s.actions()
	if index < 0 || index >= len(acts) {
		logger.Debug(ctx, "Ignoring unknown button", "index", index)
		return
	}
	switch acts[index] {
	case actionDone:
		s.markDone(ctx, id)
	case actionSnooze:
		s.snooze(ctx, id)
	}
}

// HandleBodyClick dismisses the notification and opens the management UI.
// Reminder state is left alone.
func (s *Scheduler) HandleBodyClick(ctx context.Context, notificationID string) {
	id, ok := reminder.ParseName(notificationID)
	if !ok {
		logger.Debug(ctx, "Ignoring foreign notification", "notification_id", notificationID)
		return
	}
	s.dismiss(ctx, id)
	if err := s.opener.Open(ctx, s.opts.UIURL); err != nil {
		logger.Warn(ctx, "Failed to open management UI", "url", s.opts.UIURL, "error", err)
	}
}

// RefreshBadge publishes the number of actionable reminders that are due
// and returns it.
func (s *Scheduler) RefreshBadge(ctx context.Context) int {
	list, err := s.coll.List(ctx)
	if err != nil {
		logger.Warn(ctx, "Badge: failed to load reminders", "error", err)
		return 0
	}
	nowMs := reminder.Millis(s.now())
	count := 0
	for _, r := range list {
		if r.IsDue(nowMs) {
			count++
		}
	}

	text := strconv.Itoa(count)
	if count == 0 && s.opts.HideZeroBadge {
		text = ""
	}
	color := s.opts.IdleColor
	if count > 0 {
		color = s.opts.DueColor
	}
	if err := s.badge.SetColor(ctx, color); err != nil {
		logger.Debug(ctx, "Set badge color failed", "error", err)
	}
	if err := s.badge.SetText(ctx, text); err != nil {
		logger.Debug(ctx, "Set badge text failed", "error", err)
	}
	return count
}

func (s *Scheduler) markDone(ctx context.Context, id string) {
	nowMs := reminder.Millis(s.now())
	found := false
	err := s.coll.Update(ctx, func(list []*reminder.Reminder) ([]*reminder.Reminder, bool, error) {
		i := storage.Find(list, id)
		if i < 0 {
			return list, false, nil
		}
		found = true
		if list[i].Done {
			return list, false, nil
		}
		list[i].SetDone(true, nowMs)
		return list, true, nil
	})
	if err != nil {
		// Keep the notification so the user can retry.
		logger.Warn(ctx, "Mark done not persisted, badge possibly stale", "error", err)
		s.RefreshBadge(ctx)
		return
	}
	if !found {
		logger.Debug(ctx, "Mark done for unknown reminder")
	}

	s.cancelTimer(ctx, id)
	s.dismiss(ctx, id)
	s.RefreshBadge(ctx)
	logger.Info(ctx, "Reminder marked done")
}

func (s *Scheduler) snooze(ctx context.Context, id string) {
	now := s.now()
	due := now.Add(s.opts.Snooze)
	found := false
	err := s.coll.Update(ctx, func(list []*reminder.Reminder) ([]*reminder.Reminder, bool, error) {
		i := storage.Find(list, id)
		if i < 0 {
			return list, false, nil
		}
		found = true
		list[i].Reschedule(reminder.Millis(due), reminder.Millis(now))
		return list, true, nil
	})
	if err != nil {
		logger.Warn(ctx, "Snooze not persisted, badge possibly stale", "error", err)
		s.RefreshBadge(ctx)
		return
	}

	s.dismiss(ctx, id)
	if found {
		s.schedule(ctx, id, due)
		logger.Info(ctx, "Reminder snoozed", "due", due)
	} else {
		logger.Debug(ctx, "Snooze for unknown reminder")
	}
	s.RefreshBadge(ctx)
}

// markNotified records notifiedAt for reminders that were shown, unless
// they were edited or completed in the meantime.
func (s *Scheduler) markNotified(ctx context.Context, shown map[string]int64, nowMs int64) {
	if len(shown) == 0 {
		return
	}
	err := s.coll.Update(ctx, func(list []*reminder.Reminder) ([]*reminder.Reminder, bool, error) {
		changed := false
		for _, r := range list {
			dueAt, ok := shown[r.ID]
			if !ok || r.Done || r.DueAt != dueAt || r.Notified() {
				continue
			}
			r.MarkNotified(nowMs)
			changed = true
		}
		return list, changed, nil
	})
	if err != nil {
		logger.Warn(ctx, "Failed to persist notifiedAt, badge possibly stale", "error", err)
	}
}

// schedule registers the wake-up timer for id. With a lead time the
// notification comes early, so a second timer at the due time itself
// moves the badge.
func (s *Scheduler) schedule(ctx context.Context, id string, due time.Time) {
	if err := s.timers.Register(reminder.TimerName(id), due.Add(-s.opts.LeadTime)); err != nil {
		logger.Debug(ctx, "Register timer failed", "reminder_id", id, "error", err)
	}
	if s.opts.LeadTime <= 0 {
		return
	}
	if err := s.timers.Register(reminder.DueTimerName(id), due); err != nil {
		logger.Debug(ctx, "Register due timer failed", "reminder_id", id, "error", err)
	}
}

func (s *Scheduler) cancelTimer(ctx context.Context, id string) {
	for _, name := range []string{reminder.TimerName(id), reminder.DueTimerName(id)} {
		if err := s.timers.Cancel(name); err != nil {
			logger.Debug(ctx, "Cancel timer failed", "reminder_id", id, "name", name, "error", err)
		}
	}
}

func (s *Scheduler) dismiss(ctx context.Context, id string) {
	if err := s.notifier.Dismiss(ctx, reminder.NotificationID(id)); err != nil {
		logger.Debug(ctx, "Dismiss notification failed", "reminder_id", id, "error", err)
	}
}

func (s *Scheduler) show(ctx context.Context, r *reminder.Reminder) error {
	return s.notifier.Show(ctx, reminder.NotificationID(r.ID), s.notification(r))
}

func (s *Scheduler) notification(r *reminder.Reminder) notify.Notification {
	body := strings.TrimSpace(r.Title)
	if body == "" {
		body = DefaultBody
	}
	return notify.Notification{
		Title:      s.opts.Title,
		Body:       body,
		Actions:    s.ButtonLabels(),
		Persistent: true,
	}
}

func (s *Scheduler) actions() []action {
	if s.opts.Snooze > 0 {
		return []action{actionSnooze, actionDone}
	}
	return []action{actionDone}
}

// ButtonLabels returns the notification buttons in index order.
func (s *Scheduler) ButtonLabels() []string {
	acts := s.actions()
	labels := make([]string, 0, len(acts))
	for _, a := range acts {
		switch a {
		case actionSnooze:
			labels = append(labels, "Snooze "+shortDuration(s.opts.Snooze))
		case actionDone:
			labels = append(labels, "Mark done")
		}
	}
	return labels
}

// shortDuration renders 1h instead of 1h0m0s.
func shortDuration(d time.Duration) string {
	out := d.String()
	if strings.HasSuffix(out, "m0s") {
		out = out[:len(out)-2]
	}
	if strings.HasSuffix(out, "h0m") {
		out = out[:len(out)-2]
	}
	return out
}
