// Package main implements a mock Vinted site for local development.
// It hands out anonymous session cookies, serves a canned catalog and
// item details from a JSON fixture, and accepts Discord-style webhook
// posts, so the full poll loop can run without touching real services.
//
// New listings are revealed from the fixture over time so repeated
// polls keep finding fresh items.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ncoulthurst/VintBot/internal/vinted"
)

const sessionCookie = "access_token_web"

type config struct {
	Addr         string        `env:"MOCK_ADDR" envDefault:":8089"`
	Fixture      string        `env:"MOCK_FIXTURE" envDefault:"tools/mock-server/testdata/catalog_items.json"`
	InitialItems int           `env:"MOCK_INITIAL_ITEMS" envDefault:"5"`
	RevealEvery  time.Duration `env:"MOCK_REVEAL_EVERY" envDefault:"30s"`
	SessionTTL   time.Duration `env:"MOCK_SESSION_TTL" envDefault:"1h"`
}

// mockListing is one fixture record: the catalog payload plus the
// fields only the item detail endpoint exposes.
type mockListing struct {
	vinted.CatalogItem
	Description        string  `json:"description,omitempty"`
	FeedbackReputation float64 `json:"feedback_reputation,omitempty"`
	FeedbackCount      int     `json:"feedback_count,omitempty"`
}

type pageInfo struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalEntries int `json:"total_entries"`
	PerPage      int `json:"per_page"`
}

type catalogResponse struct {
	Items      []vinted.CatalogItem `json:"items"`
	Pagination pageInfo             `json:"pagination"`
}

type detailResponse struct {
	Item vinted.ItemDetail `json:"item"`
}

func main() {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "parsing environment:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	listings, err := loadFixture(cfg.Fixture)
	if err != nil {
		logger.Error("failed to load fixture", "path", cfg.Fixture, "error", err)
		os.Exit(1)
	}

	cat := newCatalog(listings, cfg.InitialItems, cfg.RevealEvery, time.Now)
	logger.Info("loaded fixture",
		"listings", len(listings),
		"visible", len(cat.visible()),
		"reveal_every", cfg.RevealEvery,
	)

	logger.Info("starting mock vinted server", "addr", cfg.Addr)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      requestLogger(logger, newMux(logger, cat, cfg.SessionTTL)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func loadFixture(path string) ([]mockListing, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted environment
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var listings []mockListing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return listings, nil
}

func newMux(logger *slog.Logger, cat *catalog, sessionTTL time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", sessionHandler(logger, sessionTTL))
	mux.HandleFunc("GET /api/v2/catalog/items", searchHandler(logger, cat))
	mux.HandleFunc("GET /api/v2/items/{id}", detailHandler(logger, cat))
	mux.HandleFunc("POST /webhooks/{id}/{token}", webhookHandler(logger))
	mux.HandleFunc("PATCH /webhooks/{id}/{token}/messages/{messageID}", webhookEditHandler(logger))
	return mux
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		next.ServeHTTP(w, r)
	})
}

// catalog holds the fixture listings, oldest first, and decides how
// many are visible at a given moment. Listed-at timestamps are
// rewritten relative to server start so ages look fresh.
type catalog struct {
	listings []mockListing
	initial  int
	every    time.Duration
	start    time.Time
	now      func() time.Time
}

func newCatalog(listings []mockListing, initial int, every time.Duration, now func() time.Time) *catalog {
	if initial < 0 {
		initial = 0
	}
	if initial > len(listings) {
		initial = len(listings)
	}
	return &catalog{
		listings: listings,
		initial:  initial,
		every:    every,
		start:    now(),
		now:      now,
	}
}

// visible returns the currently revealed listings, newest first.
func (c *catalog) visible() []mockListing {
	n := c.initial
	if c.every > 0 {
		n += int(c.now().Sub(c.start) / c.every)
	}
	if n > len(c.listings) {
		n = len(c.listings)
	}

	out := make([]mockListing, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, c.stamped(i))
	}
	return out
}

// stamped copies listing i with its listed-at timestamps rewritten to
// the moment it was (or would have been) revealed.
func (c *catalog) stamped(i int) mockListing {
	l := c.listings[i]
	if c.every <= 0 {
		return l
	}

	ts := c.start.Add(time.Duration(i-c.initial+1) * c.every).Unix()
	l.CreatedAtTS = ts
	if l.Photo != nil {
		photo := *l.Photo
		if photo.HighResolution != nil {
			hr := *photo.HighResolution
			hr.Timestamp = ts
			photo.HighResolution = &hr
		}
		l.Photo = &photo
	}
	return l
}

func requireSession(w http.ResponseWriter, r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(map[string]string{
			"message": "invalid or missing session",
		})
		return false
	}
	return true
}

func sessionHandler(logger *slog.Logger, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    "mock-session-" + strconv.FormatInt(time.Now().UnixNano(), 16),
			Path:     "/",
			Expires:  time.Now().Add(ttl),
			HttpOnly: true,
		})
		w.Header().Set("Content-Type", "text/html")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		io.WriteString(w, "<html><body>mock vinted</body></html>")
		logger.Info("issued mock session")
	}
}

func searchHandler(logger *slog.Logger, cat *catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}

		q := r.URL.Query()
		words := strings.Fields(strings.ToLower(q.Get("search_text")))

		page := 1
		if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
			page = v
		}
		perPage := 20
		if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 {
			perPage = v
		}
		priceTo := 0.0
		if v, err := strconv.ParseFloat(q.Get("price_to"), 64); err == nil && v > 0 {
			priceTo = v
		}

		var matched []vinted.CatalogItem
		for _, l := range cat.visible() {
			if !matchesQuery(l, words) {
				continue
			}
			if priceTo > 0 {
				if amount, err := strconv.ParseFloat(l.Price.Amount, 64); err == nil && amount > priceTo {
					continue
				}
			}
			matched = append(matched, l.CatalogItem)
		}

		total := len(matched)
		start := (page - 1) * perPage
		if start >= total {
			matched = nil
		} else {
			end := min(start+perPage, total)
			matched = matched[start:end]
		}

		resp := catalogResponse{
			Items: matched,
			Pagination: pageInfo{
				CurrentPage:  page,
				TotalPages:   (total + perPage - 1) / perPage,
				TotalEntries: total,
				PerPage:      perPage,
			},
		}

		// Return empty array instead of null when no results.
		if resp.Items == nil {
			resp.Items = []vinted.CatalogItem{}
		}

		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(resp)
		logger.Info("search",
			"query", q.Get("search_text"),
			"matched", total,
			"returned", len(resp.Items),
			"page", page,
			"per_page", perPage,
		)
	}
}

// matchesQuery reports whether every query word appears in the listing
// title or brand.
func matchesQuery(l mockListing, words []string) bool {
	if len(words) == 0 {
		return true
	}
	hay := strings.ToLower(l.Title + " " + l.BrandTitle)
	for _, word := range words {
		if !strings.Contains(hay, word) {
			return false
		}
	}
	return true
}

func detailHandler(logger *slog.Logger, cat *catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}

		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		for _, l := range cat.visible() {
			if l.ID != id {
				continue
			}
			detail := vinted.ItemDetail{
				ID:          l.ID,
				Description: l.Description,
			}
			if l.User != nil {
				detail.User = &vinted.DetailUser{
					ID:                 l.User.ID,
					Login:              l.User.Login,
					ProfileURL:         l.User.ProfileURL,
					FeedbackReputation: l.FeedbackReputation,
					FeedbackCount:      l.FeedbackCount,
				}
			}
			w.Header().Set("Content-Type", "application/json")
			//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
			json.NewEncoder(w).Encode(detailResponse{Item: detail})
			logger.Info("item detail", "id", id)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(map[string]string{"message": "item not found"})
	}
}

// messageCounter numbers the webhook messages this process accepts.
var messageCounter atomic.Int64

type webhookBody struct {
	Username string `json:"username"`
	Embeds   []struct {
		Title string `json:"title"`
	} `json:"embeds"`
}

func webhookHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body webhookBody
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		title := ""
		if len(body.Embeds) > 0 {
			title = body.Embeds[0].Title
		}
		logger.Info("webhook post", "webhook", r.PathValue("id"), "title", title)

		if r.URL.Query().Get("wait") != "true" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(map[string]string{
			"id":         strconv.FormatInt(messageCounter.Add(1), 10),
			"channel_id": r.PathValue("id"),
		})
	}
}

func webhookEditHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body webhookBody
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		logger.Info("webhook edit",
			"webhook", r.PathValue("id"),
			"message", r.PathValue("messageID"),
		)
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(map[string]string{
			"id":         r.PathValue("messageID"),
			"channel_id": r.PathValue("id"),
		})
	}
}
