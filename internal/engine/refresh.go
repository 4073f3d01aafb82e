package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ncoulthurst/VintBot/internal/metrics"
	"github.com/ncoulthurst/VintBot/internal/notify"
)

const defaultRefreshWindow = time.Hour

// Refresher edits recently dispatched messages so their listed-age text
// stays current, until the item's age leaves the refresh window.
type Refresher struct {
	notifier notify.Notifier
	window   time.Duration
	log      *slog.Logger
	nowFunc  func() time.Time

	mu      sync.Mutex
	tracked []trackedMessage
}

type trackedMessage struct {
	ref     notify.MessageRef
	payload notify.ItemPayload
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithRefreshWindow sets how long after listing a message keeps
// receiving age edits.
func WithRefreshWindow(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithRefresherLogger sets a custom logger.
func WithRefresherLogger(l *slog.Logger) RefresherOption {
	return func(r *Refresher) {
		r.log = l
	}
}

// WithRefresherNowFunc overrides the time source for testing.
func WithRefresherNowFunc(f func() time.Time) RefresherOption {
	return func(r *Refresher) {
		r.nowFunc = f
	}
}

// NewRefresher creates a refresher that edits messages through the
// given notifier.
func NewRefresher(n notify.Notifier, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		notifier: n,
		window:   defaultRefreshWindow,
		log:      slog.Default(),
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Track registers a dispatched message for age edits. Messages without
// an ID or without a listing time have nothing to refresh and are
// ignored.
func (r *Refresher) Track(ref notify.MessageRef, payload notify.ItemPayload) {
	if ref.MessageID == "" || payload.Item.ListedAt.IsZero() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked = append(r.tracked, trackedMessage{ref: ref, payload: payload})
}

// Len returns how many messages are currently tracked.
func (r *Refresher) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tracked)
}

// RunOnce edits every tracked message once and drops those past the
// window. A failed edit keeps its message tracked; the window bounds
// how long that can go on.
func (r *Refresher) RunOnce(ctx context.Context) {
	now := r.nowFunc()

	r.mu.Lock()
	batch := make([]trackedMessage, len(r.tracked))
	copy(batch, r.tracked)
	r.mu.Unlock()

	kept := batch[:0]
	for _, tm := range batch {
		if ctx.Err() != nil {
			kept = append(kept, tm)
			continue
		}

		age := tm.payload.Item.Age(now)
		if age > r.window {
			r.log.Debug("message left refresh window",
				"item_id", tm.payload.Item.ID,
				"message_id", tm.ref.MessageID,
			)
			continue
		}

		if err := r.notifier.UpdateListedAge(ctx, tm.ref, tm.payload, age); err != nil {
			r.log.Warn("age edit failed",
				"item_id", tm.payload.Item.ID,
				"message_id", tm.ref.MessageID,
				"error", err,
			)
			kept = append(kept, tm)
			continue
		}

		metrics.AgeRefreshEditsTotal.Inc()
		kept = append(kept, tm)
	}

	r.mu.Lock()
	// Carry over messages tracked while the edits ran.
	added := r.tracked[len(batch):]
	r.tracked = append(kept, added...)
	r.mu.Unlock()
}
