package vinted

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/ncoulthurst/VintBot/internal/metrics"
	domain "github.com/ncoulthurst/VintBot/pkg/types"
)

// ItemEnricher fills in the fields the search payload omits: the full
// description and the seller's feedback standing.
type ItemEnricher interface {
	Enrich(ctx context.Context, item domain.Item) (domain.Item, error)
}

// ItemDetail is the subset of the per-item record the bot uses.
type ItemDetail struct {
	ID          int64       `json:"id"`
	Description string      `json:"description"`
	User        *DetailUser `json:"user,omitempty"`
}

// DetailUser carries the seller's feedback standing. FeedbackReputation
// is a 0..1 fraction of positive feedback.
type DetailUser struct {
	ID                 int64   `json:"id"`
	Login              string  `json:"login"`
	ProfileURL         string  `json:"profile_url"`
	FeedbackReputation float64 `json:"feedback_reputation"`
	FeedbackCount      int     `json:"feedback_count"`
}

type detailResponse struct {
	Item ItemDetail `json:"item"`
}

// DetailClient implements ItemEnricher against the item detail API.
// Rate-limited (429) and 5xx responses are retried with backoff.
type DetailClient struct {
	rc *resty.Client
}

// DetailOption configures a DetailClient.
type DetailOption func(*DetailClient)

// WithDetailTimeout sets the per-request timeout.
func WithDetailTimeout(d time.Duration) DetailOption {
	return func(c *DetailClient) {
		c.rc.SetTimeout(d)
	}
}

// WithDetailRetryCount sets how many times a failed request is retried.
func WithDetailRetryCount(n int) DetailOption {
	return func(c *DetailClient) {
		c.rc.SetRetryCount(n)
	}
}

// NewDetailClient creates an enrichment client for the given API.
func NewDetailClient(baseURL, apiKey string, opts ...DetailOption) *DetailClient {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("X-Api-Key", apiKey).
		SetHeader("Accept", "application/json").
		SetTimeout(10 * time.Second).
		SetLogger(nopRestyLogger{}).
		SetRetryCount(3).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			retry, _ := retryablehttp.DefaultRetryPolicy(r.Request.Context(), r.RawResponse, err)
			return retry
		})

	c := &DetailClient{rc: rc}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detail fetches the full listing record for one item.
func (c *DetailClient) Detail(ctx context.Context, itemID int64) (*ItemDetail, error) {
	metrics.EnrichCallsTotal.Inc()

	var parsed detailResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetResult(&parsed).
		SetPathParam("id", strconv.FormatInt(itemID, 10)).
		Get("/api/v2/items/{id}")
	if err != nil {
		metrics.EnrichFailuresTotal.Inc()
		return nil, fmt.Errorf("fetching item detail: %w", err)
	}
	if resp.IsError() {
		metrics.EnrichFailuresTotal.Inc()
		return nil, fmt.Errorf("item detail failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return &parsed.Item, nil
}

// Enrich implements ItemEnricher. The item is returned enriched; on
// error the original item comes back unchanged so callers can dispatch
// it anyway.
func (c *DetailClient) Enrich(ctx context.Context, item domain.Item) (domain.Item, error) {
	detail, err := c.Detail(ctx, item.ID)
	if err != nil {
		return item, err
	}

	item.Description = detail.Description
	if detail.User != nil {
		item.Seller.Rating = detail.User.FeedbackReputation * 5
		item.Seller.FeedbackCount = detail.User.FeedbackCount
		if item.Seller.ID == 0 {
			item.Seller.ID = detail.User.ID
			item.Seller.Login = detail.User.Login
			item.Seller.ProfileURL = detail.User.ProfileURL
		}
	}
	return item, nil
}

// nopRestyLogger silences resty's internal logging; failures surface as
// returned errors instead.
type nopRestyLogger struct{}

func (nopRestyLogger) Errorf(string, ...interface{}) {}
func (nopRestyLogger) Warnf(string, ...interface{})  {}
func (nopRestyLogger) Debugf(string, ...interface{}) {}
