package svc

import (
	"github.com/domotik/hubms/dispatch"
	"github.com/domotik/hubms/log"
)

// eventNotifier forwards failure notifications from the command dispatcher
// to the event publisher. Publishing failures are logged and swallowed: a
// lost notification must not fail the dispatch that produced it.
type eventNotifier struct {
	log log.Logger
	pub Publisher
}

// NewEventNotifier creates a dispatch.Notifier backed by the event publisher.
func NewEventNotifier(l log.Logger, pub Publisher) *eventNotifier { // nolint
	return &eventNotifier{log: l.With("component", "notifier"), pub: pub}
}

// Notify publishes the notification under its kind as the event type.
func (n *eventNotifier) Notify(notice dispatch.Notification) {
	if err := n.pub.Publish(string(notice.DeviceID), notice.Kind, notice); err != nil {
		n.log.Errorf("func Notify: func Publish: %s", err)
	}
}
