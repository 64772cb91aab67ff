// Package notify delivers aggregate user notifications from the sync
// pipeline. The sync engine emits at most one event per reconciled batch or
// completed upload - never one per checkout - so a device pulling a large
// event is not spammed.
package notify

import (
	"log/slog"

	"github.com/google/uuid"
)

// Event is one aggregate notification.
type Event struct {
	// ID is a unique token for deduplication by presentation layers.
	ID    string
	Title string
	Body  string
	// Count is the number of checkouts the event summarizes.
	Count int
}

// Notifier receives aggregate notification events. Implementations must be
// safe for concurrent use; the sync loop and manual tasks both emit.
type Notifier interface {
	Notify(Event)
}

// NewEvent builds an event with a fresh ID.
func NewEvent(title, body string, count int) Event {
	return Event{ID: uuid.NewString(), Title: title, Body: body, Count: count}
}

// LogNotifier writes events to the structured log. The default when no
// presentation layer is attached (headless agent, tests).
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(e Event) {
	slog.Info("notification",
		"id", e.ID,
		"title", e.Title,
		"body", e.Body,
		"count", e.Count,
	)
}

// Discard drops all events.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(Event) {}
