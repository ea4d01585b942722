package reminder

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestUpdateClearsNotifiedAt(t *testing.T) {
	r := NewReminder("a", "Call", 1000, 10)
	r.MarkNotified(1200)
	r.SetDone(true, 1300)

	r.Update("Call back", 5000, 1400)

	if r.Notified() {
		t.Errorf("Update should clear notifiedAt")
	}
	if r.Done {
		t.Errorf("Update should reopen the reminder")
	}
	if r.Title != "Call back" || r.DueAt != 5000 || r.UpdatedAt != 1400 {
		t.Errorf("unexpected reminder after update: %+v", r)
	}
}

func TestRescheduleKeepsNotifiedAtWhenDueUnchanged(t *testing.T) {
	r := NewReminder("a", "Call", 1000, 10)
	r.MarkNotified(1200)

	r.Reschedule(1000, 1300)
	if !r.Notified() {
		t.Errorf("same due time should keep notifiedAt")
	}

	r.Reschedule(9000, 1400)
	if r.Notified() {
		t.Errorf("new due time should clear notifiedAt")
	}
}

func TestIsDue(t *testing.T) {
	tests := []struct {
		name string
		r    Reminder
		now  int64
		want bool
	}{
		{"past", Reminder{ID: "a", DueAt: 100}, 200, true},
		{"exactly now", Reminder{ID: "a", DueAt: 200}, 200, true},
		{"future", Reminder{ID: "a", DueAt: 300}, 200, false},
		{"done", Reminder{ID: "a", DueAt: 100, Done: true}, 200, false},
		{"missing due", Reminder{ID: "a"}, 200, false},
		{"missing id", Reminder{DueAt: 100}, 200, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.IsDue(tt.now); got != tt.want {
				t.Errorf("IsDue: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := NewReminder("a", "Call", 1000, 10)
	r.MarkNotified(1200)
	c := r.Clone()
	*c.NotifiedAt = 99
	if *r.NotifiedAt != 1200 {
		t.Errorf("clone shares notifiedAt with original")
	}
}

func TestParseName(t *testing.T) {
	if id, ok := ParseName(TimerName("abc")); !ok || id != "abc" {
		t.Errorf("ParseName(TimerName): got %q, %v", id, ok)
	}
	if _, ok := ParseName("other:abc"); ok {
		t.Errorf("foreign prefix should not parse")
	}
	if _, ok := ParseName(NamePrefix); ok {
		t.Errorf("empty id should not parse")
	}
}

func TestParseDueTimerName(t *testing.T) {
	name := DueTimerName("abc")
	if !strings.HasPrefix(name, NamePrefix) {
		t.Errorf("due timer %q outside the reminder namespace", name)
	}
	if id, ok := ParseDueTimerName(name); !ok || id != "abc" {
		t.Errorf("ParseDueTimerName(DueTimerName): got %q, %v", id, ok)
	}
	if _, ok := ParseDueTimerName(TimerName("abc")); ok {
		t.Errorf("wake-up timer parsed as due timer")
	}
	if _, ok := ParseDueTimerName(NamePrefix + dueSuffix); ok {
		t.Errorf("empty id should not parse")
	}
}

func TestDecodeListSalvagesMalformedRecords(t *testing.T) {
	data := []byte(`[
		{"id":"a","title":"ok","dueAt":1000,"done":false,"notifiedAt":null,"createdAt":1,"updatedAt":1},
		{"id":"b","title":"bad due","dueAt":"tomorrow","done":false},
		{"id":"c","title":"no due"}
	]`)
	list, err := DecodeList(data)
	if err != nil {
		t.Fatalf("DecodeList failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	if !list[0].Valid() {
		t.Errorf("first record should be valid: %+v", list[0])
	}
	if list[1].ID != "b" || list[1].Title != "bad due" || list[1].Valid() {
		t.Errorf("second record should be salvaged as invalid: %+v", list[1])
	}
	if list[2].ID != "c" || list[2].Valid() {
		t.Errorf("third record should be invalid: %+v", list[2])
	}
}

func TestEncodeListWritesNullNotifiedAt(t *testing.T) {
	data, err := EncodeList([]*Reminder{NewReminder("a", "t", 5, 1)})
	if err != nil {
		t.Fatalf("EncodeList failed: %v", err)
	}
	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	v, ok := raw[0]["notifiedAt"]
	if !ok || v != nil {
		t.Errorf("notifiedAt should be present and null, got %v (present=%v)", v, ok)
	}
}
