package vinted

import (
	"strconv"
	"time"

	domain "github.com/ncoulthurst/VintBot/pkg/types"
)

// ToItems converts catalog wire items into domain items, preserving the
// order the API returned them in.
func ToItems(items []CatalogItem) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for i := range items {
		out = append(out, toItem(&items[i]))
	}
	return out
}

func toItem(ci *CatalogItem) domain.Item {
	it := domain.Item{
		ID:       ci.ID,
		Title:    ci.Title,
		Brand:    ci.BrandTitle,
		Size:     ci.SizeTitle,
		Status:   ci.Status,
		ItemURL:  ci.URL,
		Currency: ci.Price.CurrencyCode,
	}

	// Price
	if v, err := strconv.ParseFloat(ci.Price.Amount, 64); err == nil {
		it.Price = v
	}

	// Photo
	if ci.Photo != nil {
		it.PhotoURL = ci.Photo.URL
		if ci.Photo.FullSizeURL != "" {
			it.PhotoURL = ci.Photo.FullSizeURL
		}
	}

	// Listed-at: the photo upload timestamp is the most reliable signal,
	// the item-level field the fallback. Either may be missing.
	switch {
	case ci.Photo != nil && ci.Photo.HighResolution != nil && ci.Photo.HighResolution.Timestamp > 0:
		it.ListedAt = time.Unix(ci.Photo.HighResolution.Timestamp, 0).UTC()
	case ci.CreatedAtTS > 0:
		it.ListedAt = time.Unix(ci.CreatedAtTS, 0).UTC()
	}

	// Seller
	if ci.User != nil {
		it.Seller = domain.Seller{
			ID:         ci.User.ID,
			Login:      ci.User.Login,
			ProfileURL: ci.User.ProfileURL,
		}
	}

	return it
}
