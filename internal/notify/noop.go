package notify

import (
	"context"
	"log/slog"
	"time"

	domain "github.com/ncoulthurst/VintBot/pkg/types"
)

// NoOpNotifier implements Notifier by logging discarded items. It is
// used when Discord (or another delivery backend) is not configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards items with a log
// message.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// Dispatch logs and discards a single item.
func (n *NoOpNotifier) Dispatch(
	_ context.Context,
	ch domain.Channel,
	payload ItemPayload,
) (*MessageRef, error) {
	n.log.Debug("dispatch discarded (no backend configured)",
		"channel", ch.Name,
		"item_id", payload.Item.ID,
		"title", payload.Item.Title,
	)
	return &MessageRef{}, nil
}

// UpdateListedAge logs and discards an age edit.
func (n *NoOpNotifier) UpdateListedAge(
	_ context.Context,
	_ MessageRef,
	payload ItemPayload,
	age time.Duration,
) error {
	n.log.Debug("age edit discarded (no backend configured)",
		"item_id", payload.Item.ID,
		"age", age,
	)
	return nil
}
