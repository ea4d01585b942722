package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"reminder-agent/internal/badge"
	"reminder-agent/internal/logger"
	"reminder-agent/internal/manager"
	"reminder-agent/internal/notify"
	"reminder-agent/internal/scheduler"
	"reminder-agent/internal/storage"
	"reminder-agent/internal/timer"

	"github.com/gorilla/mux"
)

var (
	Manager       *manager.Manager
	Scheduler     *scheduler.Scheduler
	Timers        timer.Service
	Badge         *badge.State
	Notifications *notify.Local
)

// RegisterRoutes adds the management API to r.
func RegisterRoutes(r *mux.Router) {
	// Reminder routes
	r.HandleFunc("/reminders", CreateReminderHandler).Methods("POST")
	r.HandleFunc("/reminders", ListRemindersHandler).Methods("GET")
	r.HandleFunc("/reminders/groups", GroupRemindersHandler).Methods("GET")
	r.HandleFunc("/reminders/due", DueRemindersHandler).Methods("GET")
	r.HandleFunc("/reminders/{id}", GetReminderHandler).Methods("GET")
	r.HandleFunc("/reminders/{id}", UpdateReminderHandler).Methods("PATCH")
	r.HandleFunc("/reminders/{id}", DeleteReminderHandler).Methods("DELETE")
	r.HandleFunc("/reminders/{id}/toggle", ToggleReminderHandler).Methods("POST")

	// Scheduler state
	r.HandleFunc("/badge", GetBadgeHandler).Methods("GET")
	r.HandleFunc("/badge/refresh", RefreshBadgeHandler).Methods("POST")
	r.HandleFunc("/timers", ListTimersHandler).Methods("GET")

	// Notification routes
	r.HandleFunc("/notifications", ListNotificationsHandler).Methods("GET")
	r.HandleFunc("/notifications/{id}/buttons/{index}", NotificationButtonHandler).Methods("POST")
	r.HandleFunc("/notifications/{id}/click", NotificationClickHandler).Methods("POST")
}

// reminderRequest is the body of create and update calls. The due time is
// either dueAt in Unix milliseconds or due as RFC3339.
type reminderRequest struct {
	Title *string `json:"title"`
	DueAt *int64  `json:"dueAt"`
	Due   *string `json:"due"`
	Done  *bool   `json:"done"`
}

func (req *reminderRequest) dueTime() (time.Time, bool, error) {
	switch {
	case req.DueAt != nil:
		return time.UnixMilli(*req.DueAt), true, nil
	case req.Due != nil:
		t, err := time.Parse(time.RFC3339, *req.Due)
		if err != nil {
			return time.Time{}, true, fmt.Errorf("invalid due format: %w", err)
		}
		return t, true, nil
	}
	return time.Time{}, false, nil
}

func CreateReminderHandler(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	due, ok, err := req.dueTime()
	if err != nil || !ok {
		if err == nil {
			err = errors.New("dueAt or due is required")
		}
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	title := ""
	if req.Title != nil {
		title = *req.Title
	}

	rem, err := Manager.Add(r.Context(), title, due)
	if err != nil {
		writeManagerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rem)
}

func GetReminderHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rem, err := Manager.Get(r.Context(), id)
	if err != nil {
		writeManagerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rem)
}

func ListRemindersHandler(w http.ResponseWriter, r *http.Request) {
	list, err := Manager.List(r.Context())
	if err != nil {
		writeManagerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

func GroupRemindersHandler(w http.ResponseWriter, r *http.Request) {
	groups, err := Manager.Groups(r.Context())
	if err != nil {
		writeManagerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, groups)
}

func DueRemindersHandler(w http.ResponseWriter, r *http.Request) {
	list, err := Manager.Due(r.Context())
	if err != nil {
		writeManagerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

func DeleteReminderHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := Manager.Delete(r.Context(), id); err != nil {
		writeManagerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logRequest(r, http.StatusNoContent)
}

// UpdateReminderHandler applies a partial update. Changing title or due
// time is an edit; done alone only flips the flag.
func UpdateReminderHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	current, err := Manager.Get(ctx, id)
	if err != nil {
		writeManagerError(w, r, err)
		return
	}

	var req reminderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	due, dueSet, err := req.dueTime()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	updated := current
	if req.Title != nil || dueSet {
		title := current.Title
		if req.Title != nil {
			title = *req.Title
		}
		if !dueSet {
			due = current.Due()
		}
		updated, err = Manager.Edit(ctx, id, title, due)
		if err != nil {
			writeManagerError(w, r, err)
			return
		}
	}
	if req.Done != nil {
		updated, err = Manager.SetDone(ctx, id, *req.Done)
		if err != nil {
			writeManagerError(w, r, err)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func ToggleReminderHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rem, err := Manager.ToggleDone(r.Context(), id)
	if err != nil {
		writeManagerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rem)
}

func GetBadgeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, Badge.Snapshot())
}

func RefreshBadgeHandler(w http.ResponseWriter, r *http.Request) {
	if !sendEvent(w, r, scheduler.BadgeRefresh{}) {
		return
	}
	writeJSON(w, r, http.StatusOK, Badge.Snapshot())
}

func ListTimersHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, Timers.List())
}

func ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, Notifications.Live())
}

func NotificationButtonHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil || index < 0 {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid button index %q", vars["index"]))
		return
	}
	if !sendEvent(w, r, scheduler.ButtonClicked{NotificationID: vars["id"], Index: index}) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logRequest(r, http.StatusNoContent)
}

func NotificationClickHandler(w http.ResponseWriter, r *http.Request) {
	if !sendEvent(w, r, scheduler.BodyClicked{NotificationID: mux.Vars(r)["id"]}) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logRequest(r, http.StatusNoContent)
}

// sendEvent hands ev to the scheduler loop and waits for it to be handled.
func sendEvent(w http.ResponseWriter, r *http.Request, ev scheduler.Event) bool {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := Scheduler.Send(ctx, ev); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, err)
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("failed to read request body: %w", err))
		return false
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body)) // Reset body for further reading

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		logRequest(r, http.StatusBadRequest, "error", err, "body", string(body))
		return false
	}
	return true
}

func writeManagerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, manager.ErrTitleRequired), errors.Is(err, manager.ErrOutOfRange):
		writeError(w, r, http.StatusBadRequest, err)
	default:
		writeError(w, r, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	http.Error(w, err.Error(), status)
	logRequest(r, status, "error", err)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
	logRequest(r, status)
}

func logRequest(r *http.Request, status int, args ...interface{}) {
	args = append([]interface{}{"method", r.Method, "path", r.URL.Path, "user_agent", r.UserAgent(), "status", status}, args...)
	if status >= http.StatusInternalServerError {
		logger.Error(r.Context(), "HTTP request", args...)
		return
	}
	logger.Info(r.Context(), "HTTP request", args...)
}
