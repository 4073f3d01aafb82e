// Package vinted provides a Vinted catalog API client abstracted behind
// interfaces for testability.
package vinted

import (
	"context"
)

// SearchRequest defines the parameters for one catalog search page.
// Page is managed by the pager during a paging pass; MaxPages caps that
// pass and is ignored by Search itself.
type SearchRequest struct {
	Query    string
	Page     int // 1-based
	PerPage  int
	MaxPages int
	PriceMax float64
	Currency string
	Order    string // "newest_first"
}

// SearchPage holds one page of catalog results, newest first.
type SearchPage struct {
	Items   []CatalogItem
	Page    int
	PerPage int
	HasMore bool
}

// CatalogClient defines the interface for the catalog search API.
type CatalogClient interface {
	Search(ctx context.Context, req SearchRequest) (*SearchPage, error)
}

// SessionProvider supplies the anonymous access token the catalog API
// expects. Invalidate discards the cached token so the next call fetches
// a fresh one, which the client uses after a 401.
type SessionProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}
