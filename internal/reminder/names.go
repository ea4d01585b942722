package reminder

import "strings"

// NamePrefix namespaces every wake-up timer and notification owned by the
// scheduler, so they can be bulk-cancelled and mapped back to a reminder.
const NamePrefix = "reminder:"

func TimerName(id string) string {
	return NamePrefix + id
}

func NotificationID(id string) string {
	return NamePrefix + id
}

// ParseName extracts the reminder id from a timer name or notification id.
func ParseName(name string) (string, bool) {
	if !strings.HasPrefix(name, NamePrefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, NamePrefix)
	return id, id != ""
}

// dueSuffix marks the badge-only timer registered at the due time itself
// when notifications are shown ahead of it.
const dueSuffix = "#due"

func DueTimerName(id string) string {
	return NamePrefix + id + dueSuffix
}

// ParseDueTimerName extracts the reminder id from a DueTimerName.
func ParseDueTimerName(name string) (string, bool) {
	id, ok := ParseName(name)
	if !ok || !strings.HasSuffix(id, dueSuffix) {
		return "", false
	}
	id = strings.TrimSuffix(id, dueSuffix)
	return id, id != ""
}
