package vinted_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncoulthurst/VintBot/internal/vinted"
)

// sessionHandler returns a handler that sets the anonymous session
// cookie with the given value.
func sessionHandler(token string, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		http.SetCookie(w, &http.Cookie{Name: "access_token_web", Value: token, Path: "/"})
		_, _ = w.Write([]byte("<html></html>"))
	}
}

func TestCookieSessionProvider_Token(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantToken  string
		wantErr    bool
		errContain string
	}{
		{
			name:      "captures session cookie",
			handler:   sessionHandler("anon-token-123", nil),
			wantToken: "anon-token-123",
		},
		{
			name: "no session cookie in response",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html></html>"))
			},
			wantErr:    true,
			errContain: "access_token_web",
		},
		{
			name: "empty cookie value ignored",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.SetCookie(w, &http.Cookie{Name: "access_token_web", Value: ""})
			},
			wantErr:    true,
			errContain: "access_token_web",
		},
		{
			name: "server returns 503",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantErr:    true,
			errContain: "status 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			provider := vinted.NewCookieSessionProvider(srv.URL, "test-agent")

			token, err := provider.Token(context.Background())

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContain)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestCookieSessionProvider_TokenCaching(t *testing.T) {
	t.Parallel()

	var callCount atomic.Int32

	srv := httptest.NewServer(sessionHandler("cached-token", &callCount))
	defer srv.Close()

	provider := vinted.NewCookieSessionProvider(srv.URL, "test-agent")

	// First call should hit the server.
	token1, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-token", token1)
	assert.Equal(t, int32(1), callCount.Load())

	// Second call should return the cached token.
	token2, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-token", token2)
	assert.Equal(t, int32(1), callCount.Load())
}

func TestCookieSessionProvider_RefreshOnExpiry(t *testing.T) {
	t.Parallel()

	var callCount atomic.Int32
	now := time.Now()

	srv := httptest.NewServer(sessionHandler("refreshed-token", &callCount))
	defer srv.Close()

	currentTime := now
	var mu sync.Mutex

	provider := vinted.NewCookieSessionProvider(
		srv.URL,
		"test-agent",
		vinted.WithSessionTTL(time.Hour),
		vinted.WithNowFunc(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return currentTime
		}),
	)

	// First call fetches a session.
	_, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), callCount.Load())

	// Advance time past the TTL.
	mu.Lock()
	currentTime = now.Add(2 * time.Hour)
	mu.Unlock()

	// This call should refresh.
	_, err = provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), callCount.Load())
}

func TestCookieSessionProvider_CookieExpiryHonored(t *testing.T) {
	t.Parallel()

	var callCount atomic.Int32
	now := time.Now()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			callCount.Add(1)
			http.SetCookie(w, &http.Cookie{
				Name:    "access_token_web",
				Value:   "short-lived",
				Expires: now.Add(10 * time.Minute),
			})
		}),
	)
	defer srv.Close()

	currentTime := now
	var mu sync.Mutex

	provider := vinted.NewCookieSessionProvider(
		srv.URL,
		"test-agent",
		// TTL far longer than the cookie's own expiry.
		vinted.WithSessionTTL(24*time.Hour),
		vinted.WithNowFunc(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return currentTime
		}),
	)

	_, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), callCount.Load())

	// Still inside the cookie expiry minus the refresh buffer.
	_, err = provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), callCount.Load())

	// Advance past the cookie expiry; the long TTL must not keep the
	// token alive.
	mu.Lock()
	currentTime = now.Add(11 * time.Minute)
	mu.Unlock()

	_, err = provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), callCount.Load())
}

func TestCookieSessionProvider_Invalidate(t *testing.T) {
	t.Parallel()

	var callCount atomic.Int32

	srv := httptest.NewServer(sessionHandler("fresh-token", &callCount))
	defer srv.Close()

	provider := vinted.NewCookieSessionProvider(srv.URL, "test-agent")

	_, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), callCount.Load())

	provider.Invalidate()

	_, err = provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), callCount.Load())
}

func TestCookieSessionProvider_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	var callCount atomic.Int32

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			callCount.Add(1)
			time.Sleep(10 * time.Millisecond)
			http.SetCookie(w, &http.Cookie{Name: "access_token_web", Value: "concurrent-token"})
		}),
	)
	defer srv.Close()

	provider := vinted.NewCookieSessionProvider(srv.URL, "test-agent")

	const goroutines = 10

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			token, err := provider.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "concurrent-token", token)
		}()
	}

	wg.Wait()

	// With the mutex held across refresh, only the first caller fetches.
	assert.Less(t, callCount.Load(), int32(goroutines))
}

func TestCookieSessionProvider_RequestFormat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "browser-ua/1.0", r.Header.Get("User-Agent"))
			assert.Equal(t, "text/html", r.Header.Get("Accept"))
			http.SetCookie(w, &http.Cookie{Name: "access_token_web", Value: "format-token"})
		}),
	)
	defer srv.Close()

	provider := vinted.NewCookieSessionProvider(srv.URL, "browser-ua/1.0")

	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "format-token", token)
}

func TestCookieSessionProvider_RedirectNotFollowed(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "access_token_web", Value: "redirect-token"})
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	})
	mux.HandleFunc("/elsewhere", func(w http.ResponseWriter, _ *http.Request) {
		// No cookie here; following the redirect would lose it.
		_, _ = w.Write([]byte("<html></html>"))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	provider := vinted.NewCookieSessionProvider(srv.URL, "test-agent")

	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "redirect-token", token)
}
