package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reminder-agent/internal/badge"
	"reminder-agent/internal/manager"
	"reminder-agent/internal/notify"
	"reminder-agent/internal/reminder"
	"reminder-agent/internal/scheduler"
	"reminder-agent/internal/storage"
	"reminder-agent/internal/timer"

	"github.com/gorilla/mux"
)

// setupRouter wires fresh in-memory state into the package globals and
// starts the scheduler loop for the duration of the test.
func setupRouter(t *testing.T) (*mux.Router, *storage.Collection) {
	t.Helper()
	coll := storage.NewCollection(storage.NewMemoryStorage())
	Notifications = notify.NewLocal()
	local := timer.NewLocal(nil)
	t.Cleanup(local.Stop)
	Timers = local
	Badge = badge.NewState()
	Scheduler = scheduler.New(coll, Timers, Notifications, Badge, nil, scheduler.Options{Snooze: 10 * time.Minute})
	Manager = manager.New(coll, Notifications, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Scheduler.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	r := mux.NewRouter()
	RegisterRoutes(r)
	return r, coll
}

func do(router *mux.Router, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func seed(t *testing.T, coll *storage.Collection, list ...*reminder.Reminder) {
	t.Helper()
	err := coll.Update(context.Background(), func([]*reminder.Reminder) ([]*reminder.Reminder, bool, error) {
		return list, true, nil
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestCreateReminderHandler(t *testing.T) {
	router, _ := setupRouter(t)
	due := time.Now().Add(2 * time.Hour).Truncate(time.Minute)
	body := []byte(fmt.Sprintf(`{"title":"Call the plumber","dueAt":%d}`, due.UnixMilli()))

	w := do(router, "POST", "/reminders", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var r reminder.Reminder
	if err := json.NewDecoder(w.Body).Decode(&r); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if r.ID == "" || r.Title != "Call the plumber" || r.DueAt != due.UnixMilli() || r.Done {
		t.Errorf("unexpected reminder: %+v", r)
	}
}

func TestCreateReminderHandlerRFC3339(t *testing.T) {
	router, _ := setupRouter(t)
	due := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Minute)
	body := []byte(fmt.Sprintf(`{"title":"Pay rent","due":%q}`, due.Format(time.RFC3339)))

	w := do(router, "POST", "/reminders", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var r reminder.Reminder
	json.NewDecoder(w.Body).Decode(&r)
	if r.DueAt != due.UnixMilli() {
		t.Errorf("dueAt: got %d, want %d", r.DueAt, due.UnixMilli())
	}
}

func TestCreateReminderHandlerBadRequest(t *testing.T) {
	router, _ := setupRouter(t)
	future := time.Now().Add(time.Hour).UnixMilli()
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"title":`},
		{"missing due", `{"title":"x"}`},
		{"bad due format", `{"title":"x","due":"tomorrow"}`},
		{"blank title", fmt.Sprintf(`{"title":"  ","dueAt":%d}`, future)},
		{"too far ahead", fmt.Sprintf(`{"title":"x","dueAt":%d}`, time.Now().AddDate(5, 0, 0).UnixMilli())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, "POST", "/reminders", []byte(tt.body))
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestGetReminderHandler(t *testing.T) {
	router, coll := setupRouter(t)
	nowMs := time.Now().UnixMilli()
	seed(t, coll, reminder.NewReminder("rem1", "Test", nowMs+3_600_000, nowMs))

	w := do(router, "GET", "/reminders/rem1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var r reminder.Reminder
	if err := json.NewDecoder(w.Body).Decode(&r); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if r.ID != "rem1" {
		t.Errorf("unexpected reminder: %+v", r)
	}

	if w := do(router, "GET", "/reminders/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestListAndGroupReminders(t *testing.T) {
	router, coll := setupRouter(t)
	nowMs := time.Now().UnixMilli()
	seed(t, coll,
		reminder.NewReminder("later", "later", nowMs+48*3_600_000, nowMs),
		reminder.NewReminder("overdue", "overdue", nowMs-60_000, nowMs),
	)

	w := do(router, "GET", "/reminders", nil)
	var list []reminder.Reminder
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 2 || list[0].ID != "overdue" || list[1].ID != "later" {
		t.Errorf("expected due-ordered list, got %+v", list)
	}

	w = do(router, "GET", "/reminders/groups", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var g manager.Groups
	json.NewDecoder(w.Body).Decode(&g)
	if len(g.Overdue) != 1 || g.Overdue[0].ID != "overdue" || len(g.Upcoming) != 1 {
		t.Errorf("unexpected groups: %+v", g)
	}

	w = do(router, "GET", "/reminders/due", nil)
	var due []reminder.Reminder
	json.NewDecoder(w.Body).Decode(&due)
	if len(due) != 1 || due[0].ID != "overdue" {
		t.Errorf("unexpected due list: %+v", due)
	}
}

func TestUpdateReminderHandler(t *testing.T) {
	router, coll := setupRouter(t)
	nowMs := time.Now().UnixMilli()
	r := reminder.NewReminder("rem1", "Old", nowMs+3_600_000, nowMs)
	r.MarkNotified(nowMs)
	seed(t, coll, r)

	w := do(router, "PATCH", "/reminders/rem1", []byte(`{"title":"New"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var got reminder.Reminder
	json.NewDecoder(w.Body).Decode(&got)
	if got.Title != "New" || got.DueAt != nowMs+3_600_000 || got.NotifiedAt != nil {
		t.Errorf("unexpected edited reminder: %+v", got)
	}

	w = do(router, "PATCH", "/reminders/rem1", []byte(`{"done":true}`))
	json.NewDecoder(w.Body).Decode(&got)
	if !got.Done || got.Title != "New" {
		t.Errorf("expected done reminder, got %+v", got)
	}

	if w := do(router, "PATCH", "/reminders/nope", []byte(`{"done":true}`)); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestToggleAndDeleteReminderHandler(t *testing.T) {
	router, coll := setupRouter(t)
	nowMs := time.Now().UnixMilli()
	seed(t, coll, reminder.NewReminder("rem1", "Test", nowMs+3_600_000, nowMs))

	w := do(router, "POST", "/reminders/rem1/toggle", nil)
	var got reminder.Reminder
	json.NewDecoder(w.Body).Decode(&got)
	if w.Code != http.StatusOK || !got.Done {
		t.Fatalf("toggle: status %d, reminder %+v", w.Code, got)
	}

	if w := do(router, "DELETE", "/reminders/rem1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if w := do(router, "DELETE", "/reminders/rem1", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestBadgeRefreshHandler(t *testing.T) {
	router, coll := setupRouter(t)
	nowMs := time.Now().UnixMilli()
	seed(t, coll,
		reminder.NewReminder("a", "a", nowMs-60_000, nowMs),
		reminder.NewReminder("b", "b", nowMs-120_000, nowMs),
	)

	w := do(router, "POST", "/badge/refresh", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var snap badge.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if snap.Text != "2" || snap.Color != scheduler.DefaultDueColor {
		t.Errorf("unexpected badge: %+v", snap)
	}

	w = do(router, "GET", "/badge", nil)
	json.NewDecoder(w.Body).Decode(&snap)
	if snap.Text != "2" {
		t.Errorf("GET /badge: got %+v", snap)
	}
}

func TestNotificationButtonMarksDone(t *testing.T) {
	router, coll := setupRouter(t)
	nowMs := time.Now().UnixMilli()
	seed(t, coll, reminder.NewReminder("rem1", "Stretch", nowMs-60_000, nowMs))
	Scheduler.Send(context.Background(), scheduler.Startup{})

	if !Notifications.IsLive(reminder.NotificationID("rem1")) {
		t.Fatal("expected a live notification after startup")
	}
	w := do(router, "GET", "/notifications", nil)
	var live []notify.LiveNotification
	json.NewDecoder(w.Body).Decode(&live)
	if len(live) != 1 || len(live[0].Notification.Actions) != 2 {
		t.Fatalf("unexpected live notifications: %+v", live)
	}

	// Index 1 is "Mark done" when snoozing is enabled.
	w = do(router, "POST", "/notifications/reminder:rem1/buttons/1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", w.Code, w.Body.String())
	}
	if Notifications.IsLive(reminder.NotificationID("rem1")) {
		t.Error("notification still live after mark done")
	}
	list, _ := coll.List(context.Background())
	if !list[0].Done {
		t.Errorf("reminder not done: %+v", list[0])
	}
	if Badge.Snapshot().Text != "0" {
		t.Errorf("badge: got %q, want 0", Badge.Snapshot().Text)
	}

	if w := do(router, "POST", "/notifications/reminder:rem1/buttons/x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestNotificationClickAndTimers(t *testing.T) {
	router, coll := setupRouter(t)
	nowMs := time.Now().UnixMilli()
	seed(t, coll,
		reminder.NewReminder("past", "Past", nowMs-60_000, nowMs),
		reminder.NewReminder("future", "Future", nowMs+3_600_000, nowMs),
	)
	Scheduler.Send(context.Background(), scheduler.Startup{})

	w := do(router, "GET", "/timers", nil)
	var timers []timer.Timer
	json.NewDecoder(w.Body).Decode(&timers)
	if len(timers) != 1 || timers[0].Name != reminder.TimerName("future") {
		t.Errorf("unexpected timers: %+v", timers)
	}

	if w := do(router, "POST", "/notifications/reminder:past/click", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if Notifications.IsLive(reminder.NotificationID("past")) {
		t.Error("body click should dismiss the notification")
	}
	list, _ := coll.List(context.Background())
	for _, r := range list {
		if r.Done {
			t.Errorf("body click changed reminder state: %+v", r)
		}
	}
}
