// Package notify queues user-facing notifications (the SPA's toasts) per browser
// session until the client drains them.
package notify

import (
	"context"
	"time"
)

// Variant selects how a notification is rendered.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a single toast.
type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier stores notifications keyed by audience (a browser session id).
type Notifier interface {
	Push(ctx context.Context, audience string, n Notification) error
	// Drain returns and removes the pending notifications, oldest first.
	Drain(ctx context.Context, audience string) ([]Notification, error)
}

// Sink delivers notifications to one audience.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// maxPending bounds how many notifications an audience keeps before the oldest are dropped.
const maxPending = 20

// Info builds a default notification.
func Info(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDefault}
}

// Failure builds a destructive notification.
func Failure(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDestructive}
}
