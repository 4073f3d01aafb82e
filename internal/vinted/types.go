package vinted

// CatalogItem is a single listing as returned by the catalog search API.
type CatalogItem struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Price       ItemPrice  `json:"price"`
	BrandTitle  string     `json:"brand_title"`
	SizeTitle   string     `json:"size_title"`
	Status      string     `json:"status"`
	URL         string     `json:"url"`
	Photo       *ItemPhoto `json:"photo,omitempty"`
	User        *ItemUser  `json:"user,omitempty"`
	CreatedAtTS int64      `json:"created_at_ts,omitempty"`
}

// ItemPrice is the listing price. The API sends the amount as a string.
type ItemPrice struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

// ItemPhoto is the primary listing photo. HighResolution carries the
// upload timestamp, which is the most reliable listed-at signal the
// search API exposes.
type ItemPhoto struct {
	URL            string          `json:"url"`
	FullSizeURL    string          `json:"full_size_url,omitempty"`
	HighResolution *HighResolution `json:"high_resolution,omitempty"`
}

// HighResolution holds metadata for the full-size photo variant.
type HighResolution struct {
	Timestamp int64 `json:"timestamp"`
}

// ItemUser identifies the seller on a listing.
type ItemUser struct {
	ID         int64  `json:"id"`
	Login      string `json:"login"`
	ProfileURL string `json:"profile_url"`
}

// pageInfo is the pagination block on catalog responses.
type pageInfo struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalEntries int `json:"total_entries"`
	PerPage      int `json:"per_page"`
}

// catalogResponse is the top-level catalog search response.
type catalogResponse struct {
	Items      []CatalogItem `json:"items"`
	Pagination *pageInfo     `json:"pagination,omitempty"`
}
