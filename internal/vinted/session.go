package vinted

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ncoulthurst/VintBot/internal/metrics"
)

const (
	// sessionCookie is the cookie the site sets on anonymous visits. Its
	// value doubles as the bearer token the catalog API accepts.
	sessionCookie = "access_token_web"

	// refreshBuffer refreshes the session slightly before expiry so
	// in-flight searches never race an expiring token.
	refreshBuffer = 60 * time.Second
)

// CookieSessionProvider implements SessionProvider by visiting the site
// root as an anonymous browser and capturing the session cookie. Tokens
// are cached and refreshed refreshBuffer before expiry.
type CookieSessionProvider struct {
	baseURL   string
	userAgent string
	ttl       time.Duration
	client    *http.Client

	mu      sync.Mutex
	token   string
	expiry  time.Time
	nowFunc func() time.Time
}

// SessionOption configures a CookieSessionProvider.
type SessionOption func(*CookieSessionProvider)

// WithSessionHTTPClient sets a custom HTTP client.
func WithSessionHTTPClient(c *http.Client) SessionOption {
	return func(p *CookieSessionProvider) {
		p.client = c
	}
}

// WithSessionTTL sets the cached token lifetime used when the cookie
// carries no expiry of its own.
func WithSessionTTL(d time.Duration) SessionOption {
	return func(p *CookieSessionProvider) {
		p.ttl = d
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) SessionOption {
	return func(p *CookieSessionProvider) {
		p.nowFunc = f
	}
}

// NewCookieSessionProvider creates a session provider for the given site.
func NewCookieSessionProvider(baseURL, userAgent string, opts ...SessionOption) *CookieSessionProvider {
	p := &CookieSessionProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		ttl:       time.Hour,
		client: &http.Client{
			Timeout: 15 * time.Second,
			// The cookie is set on the first response; do not chase
			// redirects past it.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a valid session token, refreshing it if needed.
func (p *CookieSessionProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.nowFunc().Before(p.expiry.Add(-refreshBuffer)) {
		return p.token, nil
	}

	if err := p.refreshLocked(ctx); err != nil {
		return "", fmt.Errorf("refreshing session: %w", err)
	}
	return p.token, nil
}

// Invalidate discards the cached token. The next Token call fetches a
// fresh session.
func (p *CookieSessionProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.expiry = time.Time{}
}

func (p *CookieSessionProvider) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching site root: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("session request failed with status %d", resp.StatusCode)
	}

	for _, c := range resp.Cookies() {
		if c.Name != sessionCookie || c.Value == "" {
			continue
		}
		p.token = c.Value
		if !c.Expires.IsZero() {
			p.expiry = c.Expires
		} else {
			p.expiry = p.nowFunc().Add(p.ttl)
		}
		metrics.SessionRefreshesTotal.Inc()
		return nil
	}
	return fmt.Errorf("no %s cookie in response", sessionCookie)
}
