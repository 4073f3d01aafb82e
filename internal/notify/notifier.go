// Package notify defines the notification interface and implementations
// for item delivery.
package notify

import (
	"context"
	"time"

	domain "github.com/ncoulthurst/VintBot/pkg/types"
)

// ItemPayload contains the data needed to announce one listing.
type ItemPayload struct {
	SearchName string
	Item       domain.Item
}

// MessageRef identifies a delivered message so later edits can find it.
// MessageID is empty when the backend did not report one; such messages
// cannot be edited.
type MessageRef struct {
	WebhookURL string
	MessageID  string
}

// Notifier defines the interface for delivering item notifications.
// UpdateListedAge rewrites a previously delivered message so its
// listed-ago value stays current.
type Notifier interface {
	Dispatch(ctx context.Context, ch domain.Channel, payload ItemPayload) (*MessageRef, error)
	UpdateListedAge(ctx context.Context, ref MessageRef, payload ItemPayload, age time.Duration) error
}
