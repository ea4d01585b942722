package scheduler

import "reminder-agent/internal/notify"

// Event is a discrete trigger for the scheduler loop.
type Event interface {
	event()
}

// Startup is posted once when the process starts.
type Startup struct{}

// StoreChanged is posted whenever the reminder collection was written.
type StoreChanged struct{}

// TimerFired carries the name of an expired wake-up timer.
type TimerFired struct {
	Name string
}

// ButtonClicked is a press on a notification button.
type ButtonClicked struct {
	NotificationID string
	Index          int
}

// BodyClicked is a click on the notification itself.
type BodyClicked struct {
	NotificationID string
}

// BadgeRefresh asks for the badge to be recomputed without a full pass.
type BadgeRefresh struct{}

func (Startup) event()       {}
func (StoreChanged) event()  {}
func (TimerFired) event()    {}
func (ButtonClicked) event() {}
func (BodyClicked) event()   {}
func (BadgeRefresh) event()  {}

// InteractionEvent maps a notifier interaction to the matching event.
func InteractionEvent(in notify.Interaction) Event {
	if in.Button == notify.BodyClick {
		return BodyClicked{NotificationID: in.NotificationID}
	}
	return ButtonClicked{NotificationID: in.NotificationID, Index: in.Button}
}
