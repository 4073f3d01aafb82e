package vinted

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ncoulthurst/VintBot/internal/metrics"
)

const (
	defaultBaseURL   = "https://www.vinted.co.uk"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	searchPath     = "/api/v2/catalog/items"
	defaultPerPage = 20
)

// APIClient implements CatalogClient against the public catalog API.
type APIClient struct {
	session   SessionProvider
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *RateLimiter
}

// APIOption configures an APIClient.
type APIOption func(*APIClient)

// WithBaseURL overrides the site base URL, e.g. for other country
// domains or tests.
func WithBaseURL(u string) APIOption {
	return func(c *APIClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent overrides the browser user agent sent on every request.
func WithUserAgent(ua string) APIOption {
	return func(c *APIClient) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) APIOption {
	return func(c *APIClient) {
		c.client = client
	}
}

// WithRateLimiter attaches a rate limiter to the client.
func WithRateLimiter(rl *RateLimiter) APIOption {
	return func(c *APIClient) {
		c.limiter = rl
	}
}

// NewAPIClient creates a catalog client using the given session provider.
func NewAPIClient(session SessionProvider, opts ...APIOption) *APIClient {
	c := &APIClient{
		session:   session,
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search executes a catalog search and returns one page of results.
// A 401 invalidates the cached session and the request is retried once
// with a fresh token.
func (c *APIClient) Search(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PerPage <= 0 {
		req.PerPage = defaultPerPage
	}
	if req.Order == "" {
		req.Order = "newest_first"
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if errors.Is(err, ErrDailyLimitReached) {
				metrics.CatalogDailyLimitHits.Inc()
			}
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		metrics.CatalogDailyUsage.Set(float64(c.limiter.DailyCount()))
	}

	metrics.CatalogCallsTotal.Inc()

	status, body, err := c.doSearch(ctx, req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.session.Invalidate()
		status, body, err = c.doSearch(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("catalog search failed with status %d: %s", status, string(body))
	}

	var parsed catalogResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding catalog response: %w", err)
	}

	page := &SearchPage{
		Items:   parsed.Items,
		Page:    req.Page,
		PerPage: req.PerPage,
	}
	if parsed.Pagination != nil {
		page.Page = parsed.Pagination.CurrentPage
		page.HasMore = parsed.Pagination.CurrentPage < parsed.Pagination.TotalPages
	} else {
		page.HasMore = req.PerPage > 0 && len(parsed.Items) == req.PerPage
	}
	return page, nil
}

func (c *APIClient) doSearch(ctx context.Context, req SearchRequest) (int, []byte, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("getting session token: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(req), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("executing search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *APIClient) searchURL(req SearchRequest) string {
	q := url.Values{}
	q.Set("search_text", req.Query)
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("per_page", strconv.Itoa(req.PerPage))
	q.Set("order", req.Order)

	if req.PriceMax > 0 {
		q.Set("price_to", strconv.FormatFloat(req.PriceMax, 'f', -1, 64))
	}
	if req.Currency != "" {
		q.Set("currency", req.Currency)
	}

	return c.baseURL + searchPath + "?" + q.Encode()
}
