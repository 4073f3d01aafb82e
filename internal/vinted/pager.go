package vinted

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ncoulthurst/VintBot/internal/metrics"
	domain "github.com/ncoulthurst/VintBot/pkg/types"
)

// SeenChecker reports whether an item ID is new. Satisfied by
// dedupe.SeenStore.
type SeenChecker interface {
	IsNew(ctx context.Context, id string) (bool, error)
}

// StopReason records why a paging pass ended.
type StopReason string

const (
	StopKnownItem     StopReason = "known_item"
	StopMaxPages      StopReason = "max_pages"
	StopNoMoreResults StopReason = "no_more_results"
)

// PageResult summarizes one paging pass over a search.
type PageResult struct {
	NewItems  []domain.Item
	TotalSeen int
	PagesUsed int
	StoppedAt StopReason
}

// Pager walks catalog pages newest-first and collects items until it
// reaches one already seen, runs out of results, or hits the page cap.
type Pager struct {
	client   CatalogClient
	checker  SeenChecker
	log      *slog.Logger
	pageSize int
	maxPages int
}

// PagerOption configures a Pager.
type PagerOption func(*Pager)

// WithPageSize sets how many items to request per page.
func WithPageSize(n int) PagerOption {
	return func(p *Pager) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithMaxPages caps how many pages a single pass may fetch.
func WithMaxPages(n int) PagerOption {
	return func(p *Pager) {
		if n > 0 {
			p.maxPages = n
		}
	}
}

// WithPagerLogger sets the logger used for per-item warnings.
func WithPagerLogger(log *slog.Logger) PagerOption {
	return func(p *Pager) {
		p.log = log
	}
}

// NewPager creates a pager over the given catalog client and seen
// checker.
func NewPager(client CatalogClient, checker SeenChecker, opts ...PagerOption) *Pager {
	p := &Pager{
		client:   client,
		checker:  checker,
		log:      slog.Default(),
		pageSize: defaultPerPage,
		maxPages: 3,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Collect runs one paging pass for the given search. Page on the
// request is managed by the pager; PerPage and MaxPages fall back to
// the pager defaults when unset. Items come back newest first, exactly
// as the API returned them.
func (p *Pager) Collect(ctx context.Context, req SearchRequest) (*PageResult, error) {
	result := &PageResult{}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = p.pageSize
	}
	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = p.maxPages
	}

	for page := range maxPages {
		req.Page = page + 1
		req.PerPage = perPage

		resp, err := p.client.Search(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", req.Page, err)
		}
		result.PagesUsed++
		metrics.PagesFetchedTotal.Inc()

		items := ToItems(resp.Items)
		for i := range items {
			result.TotalSeen++

			isNew, err := p.checker.IsNew(ctx, items[i].SeenKey())
			if err != nil {
				// Treat a failed check as new so store trouble never
				// drops listings.
				p.log.Warn("seen check failed", "item_id", items[i].ID, "error", err)
				isNew = true
			}
			if !isNew {
				result.StoppedAt = StopKnownItem
				return result, nil
			}
			result.NewItems = append(result.NewItems, items[i])
		}

		if !resp.HasMore || len(resp.Items) == 0 {
			result.StoppedAt = StopNoMoreResults
			return result, nil
		}
	}

	result.StoppedAt = StopMaxPages
	return result, nil
}
