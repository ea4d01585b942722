package notify

import (
	"context"
	"errors"
	"testing"
)

type failingNotifier struct{ err error }

func (f failingNotifier) Show(context.Context, string, Notification) error { return f.err }
func (f failingNotifier) Dismiss(context.Context, string) error            { return f.err }

func TestLocalShowAndDismiss(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	n := Notification{Title: "Reminder", Body: "Call mom", Actions: []string{"Mark done"}, Persistent: true}
	if err := l.Show(ctx, "reminder:a", n); err != nil {
		t.Fatalf("Show failed: %v", err)
	}
	if !l.IsLive("reminder:a") {
		t.Fatal("notification should be live")
	}

	// Same id replaces
	n.Body = "Call dad"
	l.Show(ctx, "reminder:a", n)
	live := l.Live()
	if len(live) != 1 || live[0].Body != "Call dad" {
		t.Errorf("unexpected live notifications: %+v", live)
	}

	if err := l.Dismiss(ctx, "reminder:a"); err != nil {
		t.Fatalf("Dismiss failed: %v", err)
	}
	if l.IsLive("reminder:a") {
		t.Error("notification should be gone")
	}
	if err := l.Dismiss(ctx, "reminder:missing"); err != nil {
		t.Errorf("dismissing unknown id should not fail: %v", err)
	}
}

func TestMultiShowSucceedsIfAnyDelivers(t *testing.T) {
	ctx := context.Background()
	local := NewLocal()
	m := Multi{failingNotifier{errors.New("telegram down")}, local}

	if err := m.Show(ctx, "reminder:a", Notification{Title: "Reminder"}); err != nil {
		t.Errorf("partial delivery should succeed, got %v", err)
	}
	if !local.IsLive("reminder:a") {
		t.Error("local notifier did not receive the notification")
	}
}

func TestMultiShowFailsIfAllFail(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{failingNotifier{boom}, failingNotifier{boom}}
	if err := m.Show(context.Background(), "reminder:a", Notification{}); !errors.Is(err, boom) {
		t.Errorf("got %v, want joined boom", err)
	}
}

func TestMultiDismissReachesEveryNotifier(t *testing.T) {
	ctx := context.Background()
	a, b := NewLocal(), NewLocal()
	m := Multi{a, b}
	m.Show(ctx, "reminder:a", Notification{})
	m.Dismiss(ctx, "reminder:a")
	if a.IsLive("reminder:a") || b.IsLive("reminder:a") {
		t.Error("dismiss did not reach every notifier")
	}
}
