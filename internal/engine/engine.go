// Package engine orchestrates poll cycles: collect new catalog items
// for each configured search, filter and route them, and dispatch
// notifications oldest first.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ncoulthurst/VintBot/internal/dedupe"
	"github.com/ncoulthurst/VintBot/internal/metrics"
	"github.com/ncoulthurst/VintBot/internal/notify"
	"github.com/ncoulthurst/VintBot/internal/route"
	"github.com/ncoulthurst/VintBot/internal/vinted"
	domain "github.com/ncoulthurst/VintBot/pkg/types"
)

const (
	defaultMaxPagesPerCycle = 50
	defaultDispatchStagger  = time.Second
)

// Collector runs one paging pass for a search. Satisfied by
// *vinted.Pager.
type Collector interface {
	Collect(ctx context.Context, req vinted.SearchRequest) (*vinted.PageResult, error)
}

// Search pairs a named catalog query with the filters applied to its
// results before dispatch.
type Search struct {
	Name    string
	Request vinted.SearchRequest
	Filters domain.Filters
}

// Engine orchestrates collection, filtering, routing, and dispatch.
type Engine struct {
	collector Collector
	seen      dedupe.SeenStore
	routes    *route.Table
	notifier  notify.Notifier
	log       *slog.Logger

	searches         []Search
	enricher         vinted.ItemEnricher
	refresher        *Refresher
	maxPagesPerCycle int
	dispatchStagger  time.Duration
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(
	c Collector,
	seen dedupe.SeenStore,
	routes *route.Table,
	n notify.Notifier,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		collector:        c,
		seen:             seen,
		routes:           routes,
		notifier:         n,
		log:              slog.Default(),
		maxPagesPerCycle: defaultMaxPagesPerCycle,
		dispatchStagger:  defaultDispatchStagger,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithSearches sets the searches polled each cycle.
func WithSearches(ss []Search) EngineOption {
	return func(e *Engine) {
		e.searches = ss
	}
}

// WithEnricher sets an optional detail client that fills description
// and seller feedback before dispatch.
func WithEnricher(en vinted.ItemEnricher) EngineOption {
	return func(e *Engine) {
		e.enricher = en
	}
}

// WithRefresher registers dispatched messages for listed-age edits.
func WithRefresher(r *Refresher) EngineOption {
	return func(e *Engine) {
		e.refresher = r
	}
}

// WithDispatchStagger sets the delay between webhook dispatches.
func WithDispatchStagger(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.dispatchStagger = d
	}
}

// WithMaxPagesPerCycle sets the maximum API pages per poll cycle.
func WithMaxPagesPerCycle(n int) EngineOption {
	return func(e *Engine) {
		e.maxPagesPerCycle = n
	}
}

// RunCycle executes one poll over all configured searches.
func (eng *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()
	metrics.PollCyclesTotal.Inc()

	log := eng.log.With("cycle", uuid.NewString()[:8])

	var totalPages int

	for i := range eng.searches {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if totalPages >= eng.maxPagesPerCycle {
			log.Warn("cycle budget exhausted",
				"total_pages", totalPages,
				"max_pages_per_cycle", eng.maxPagesPerCycle,
			)
			break
		}

		s := &eng.searches[i]
		log.Info("polling search", "search", s.Name)

		pagesUsed, processErr := eng.processSearch(ctx, log, s)
		totalPages += pagesUsed

		if processErr != nil {
			if errors.Is(processErr, vinted.ErrDailyLimitReached) {
				log.Warn("daily catalog limit reached, stopping cycle",
					"search", s.Name,
					"total_pages", totalPages,
				)
				break
			}
			log.Error("search poll failed", "search", s.Name, "error", processErr)
			metrics.PollErrorsTotal.WithLabelValues(s.Name).Inc()
			continue
		}
	}

	return nil
}

func (eng *Engine) processSearch(
	ctx context.Context,
	log *slog.Logger,
	s *Search,
) (int, error) {
	result, err := eng.collector.Collect(ctx, s.Request)
	if err != nil {
		return 0, fmt.Errorf("collecting items: %w", err)
	}

	metrics.ItemsFetchedTotal.Add(float64(result.TotalSeen))
	metrics.ItemsNewTotal.Add(float64(len(result.NewItems)))

	log.Info("collection complete",
		"search", s.Name,
		"pages_used", result.PagesUsed,
		"total_seen", result.TotalSeen,
		"new_items", len(result.NewItems),
		"stopped_at", result.StoppedAt,
	)

	// The collector returns items newest first. Dispatch oldest first so
	// channel history reads in listing order.
	items := result.NewItems
	for i := len(items) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return result.PagesUsed, ctx.Err()
		}

		eng.processItem(ctx, log, s, items[i])

		// Stagger between dispatches to avoid webhook bursts.
		if i > 0 && eng.dispatchStagger > 0 {
			select {
			case <-ctx.Done():
				return result.PagesUsed, ctx.Err()
			case <-time.After(eng.dispatchStagger):
			}
		}
	}

	return result.PagesUsed, nil
}

func (eng *Engine) processItem(
	ctx context.Context,
	log *slog.Logger,
	s *Search,
	item domain.Item,
) {
	// Newest-first pages shift whenever something is listed mid-pass, so
	// one batch can carry the same listing twice. The first copy marks it
	// seen; re-checking here skips the later copies. A failed check is
	// treated as new, same as in the pager.
	isNew, err := eng.seen.IsNew(ctx, item.SeenKey())
	if err != nil {
		log.Warn("seen re-check failed", "item_id", item.ID, "error", err)
	} else if !isNew {
		log.Debug("item already handled", "item_id", item.ID)
		return
	}

	if reason, rejected := s.Filters.Reject(&item); rejected {
		metrics.ItemsFilteredTotal.WithLabelValues(reason).Inc()
		log.Debug("item filtered", "item_id", item.ID, "reason", reason)
		eng.markSeen(ctx, log, &item)
		return
	}

	ch, ok := eng.routes.Resolve(item.Brand)
	if !ok {
		metrics.ItemsUnmappedTotal.Inc()
		log.Debug("no channel for brand", "item_id", item.ID, "brand", item.Brand)
		eng.markSeen(ctx, log, &item)
		return
	}

	if eng.enricher != nil {
		enriched, err := eng.enricher.Enrich(ctx, item)
		if err != nil {
			log.Warn("enrichment failed", "item_id", item.ID, "error", err)
		} else {
			item = enriched
		}
	}

	payload := notify.ItemPayload{SearchName: s.Name, Item: item}

	dispatchStart := time.Now()
	ref, err := eng.notifier.Dispatch(ctx, ch, payload)
	metrics.DispatchDuration.Observe(time.Since(dispatchStart).Seconds())

	if err != nil {
		// Leave unmarked so the item is retried next cycle.
		metrics.DispatchesTotal.WithLabelValues(ch.Name, "error").Inc()
		log.Error("dispatch failed",
			"item_id", item.ID,
			"channel", ch.Name,
			"error", err,
		)
		return
	}

	metrics.DispatchesTotal.WithLabelValues(ch.Name, "ok").Inc()
	log.Info("item dispatched",
		"item_id", item.ID,
		"channel", ch.Name,
		"title", item.Title,
	)

	eng.markSeen(ctx, log, &item)

	if eng.refresher != nil && ref != nil {
		eng.refresher.Track(*ref, payload)
	}
}

func (eng *Engine) markSeen(ctx context.Context, log *slog.Logger, item *domain.Item) {
	if err := eng.seen.MarkSeen(ctx, item.SeenKey()); err != nil {
		log.Error("marking item seen failed", "item_id", item.ID, "error", err)
		return
	}
	metrics.SeenMarksTotal.Inc()
}

// RunAgeRefresh edits recently dispatched messages so their listed-age
// text stays current. No-op when no refresher is configured.
func (eng *Engine) RunAgeRefresh(ctx context.Context) error {
	if eng.refresher == nil {
		return nil
	}
	eng.refresher.RunOnce(ctx)
	return nil
}
