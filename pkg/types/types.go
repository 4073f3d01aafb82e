// Package domain defines the core business types for VintBot.
package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Seller identifies the user behind a listing, including the feedback
// data the enrichment API provides.
type Seller struct {
	ID            int64   `json:"id,omitempty"`
	Login         string  `json:"login,omitempty"`
	ProfileURL    string  `json:"profile_url,omitempty"`
	Rating        float64 `json:"rating,omitempty"`
	FeedbackCount int     `json:"feedback_count,omitempty"`
}

// Item represents a marketplace listing returned by the catalog search.
// Immutable once fetched; enrichment fills Description and the seller
// feedback fields after the fact.
type Item struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Brand    string `json:"brand,omitempty"`
	Size     string `json:"size,omitempty"`
	Status   string `json:"status,omitempty"`
	ItemURL  string `json:"item_url"`
	PhotoURL string `json:"photo_url,omitempty"`

	// Pricing
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`

	Seller      Seller `json:"seller"`
	Description string `json:"description,omitempty"`

	// ListedAt is resolved from the photo's high-resolution timestamp
	// when present, else the listing's created timestamp. Zero when the
	// source provided neither.
	ListedAt time.Time `json:"listed_at,omitempty"`
}

// SeenKey returns the identifier used by the seen-item store.
func (it *Item) SeenKey() string {
	return strconv.FormatInt(it.ID, 10)
}

// Age returns how long ago the item was listed, clamped at zero.
func (it *Item) Age(now time.Time) time.Duration {
	if it.ListedAt.IsZero() {
		return 0
	}
	d := now.Sub(it.ListedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Channel is a resolved notification destination.
type Channel struct {
	Name       string `json:"name"`
	WebhookURL string `json:"webhook_url"`
}

// Filters defines the item-level criteria applied before dispatch.
// Items that fail never reach a channel and are marked seen.
type Filters struct {
	PriceMax       *float64 `json:"price_max,omitempty"`
	SkipChildSizes bool     `json:"skip_child_sizes,omitempty"`
}

// Match reports whether an item passes all configured filters.
func (f *Filters) Match(it *Item) bool {
	_, rejected := f.Reject(it)
	return !rejected
}

// Reject returns the name of the first filter an item fails, with
// rejected set to false when the item passes all of them.
func (f *Filters) Reject(it *Item) (reason string, rejected bool) {
	if !f.matchPrice(it) {
		return "price", true
	}
	if !f.matchSize(it) {
		return "child_size", true
	}
	return "", false
}

func (f *Filters) matchPrice(it *Item) bool {
	if f.PriceMax != nil && it.Price > *f.PriceMax {
		return false
	}
	return true
}

func (f *Filters) matchSize(it *Item) bool {
	if !f.SkipChildSizes {
		return true
	}
	return !IsChildSize(it.Size)
}

// agePattern matches sizes expressed as an age range, e.g. "6-9 months"
// or "2 years".
var agePattern = regexp.MustCompile(`\b\d+(?:\s*-\s*\d+)?\s*(?:month|year)s?\b`)

var childWords = []string{"child", "kid", "baby"}

// IsChildSize reports whether a size label denotes a children's size.
func IsChildSize(size string) bool {
	s := strings.ToLower(strings.TrimSpace(size))
	if s == "" {
		return false
	}
	if agePattern.MatchString(s) {
		return true
	}
	for _, w := range childWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
