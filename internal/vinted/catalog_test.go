package vinted_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncoulthurst/VintBot/internal/vinted"
)

// stubSession implements vinted.SessionProvider with a fixed token
// sequence, counting invalidations.
type stubSession struct {
	mu          sync.Mutex
	tokens      []string
	calls       int
	invalidated int
}

func (s *stubSession) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.tokens) {
		i = len(s.tokens) - 1
	}
	s.calls++
	return s.tokens[i], nil
}

func (s *stubSession) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated++
}

func (s *stubSession) invalidations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated
}

// catalogJSON builds a catalog response body. totalPages of 0 omits the
// pagination block entirely.
func catalogJSON(totalPages int, ids ...int64) string {
	items := ""
	for i, id := range ids {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(
			`{"id":%d,"title":"Item %d","price":{"amount":"25.00","currency_code":"GBP"},"brand_title":"Nike","url":"https://example.test/items/%d"}`,
			id, id, id,
		)
	}
	if totalPages > 0 {
		return fmt.Sprintf(
			`{"items":[%s],"pagination":{"current_page":1,"total_pages":%d,"total_entries":%d,"per_page":20}}`,
			items, totalPages, len(ids),
		)
	}
	return fmt.Sprintf(`{"items":[%s]}`, items)
}

func TestAPIClient_Search(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(catalogJSON(3, 101, 102)))
		}),
	)
	defer srv.Close()

	session := &stubSession{tokens: []string{"anon-token"}}
	client := vinted.NewAPIClient(session, vinted.WithBaseURL(srv.URL))

	page, err := client.Search(context.Background(), vinted.SearchRequest{Query: "nike"})
	require.NoError(t, err)
	require.NotNil(t, page)

	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(101), page.Items[0].ID)
	assert.Equal(t, "Item 101", page.Items[0].Title)
	assert.Equal(t, "25.00", page.Items[0].Price.Amount)
	assert.Equal(t, "GBP", page.Items[0].Price.CurrencyCode)
	assert.Equal(t, 1, page.Page)
	assert.True(t, page.HasMore)
}

func TestAPIClient_RequestFormat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v2/catalog/items", r.URL.Path)

			q := r.URL.Query()
			assert.Equal(t, "carhartt jacket", q.Get("search_text"))
			assert.Equal(t, "2", q.Get("page"))
			assert.Equal(t, "40", q.Get("per_page"))
			assert.Equal(t, "newest_first", q.Get("order"))
			assert.Equal(t, "50", q.Get("price_to"))
			assert.Equal(t, "GBP", q.Get("currency"))

			assert.Equal(t, "bot-ua/1.0", r.Header.Get("User-Agent"))
			cookie, err := r.Cookie("access_token_web")
			require.NoError(t, err)
			assert.Equal(t, "anon-token", cookie.Value)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(catalogJSON(1, 5)))
		}),
	)
	defer srv.Close()

	session := &stubSession{tokens: []string{"anon-token"}}
	client := vinted.NewAPIClient(
		session,
		vinted.WithBaseURL(srv.URL),
		vinted.WithUserAgent("bot-ua/1.0"),
	)

	_, err := client.Search(context.Background(), vinted.SearchRequest{
		Query:    "carhartt jacket",
		Page:     2,
		PerPage:  40,
		PriceMax: 50,
		Currency: "GBP",
	})
	require.NoError(t, err)
}

func TestAPIClient_HasMore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		perPage  int
		wantMore bool
	}{
		{
			name:     "pagination reports more pages",
			body:     catalogJSON(3, 1, 2),
			wantMore: true,
		},
		{
			name:     "pagination on last page",
			body:     catalogJSON(1, 1, 2),
			wantMore: false,
		},
		{
			name:     "no pagination, full page",
			body:     catalogJSON(0, 1, 2),
			perPage:  2,
			wantMore: true,
		},
		{
			name:     "no pagination, short page",
			body:     catalogJSON(0, 1),
			perPage:  2,
			wantMore: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(
				http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					_, _ = w.Write([]byte(tt.body))
				}),
			)
			defer srv.Close()

			session := &stubSession{tokens: []string{"anon-token"}}
			client := vinted.NewAPIClient(session, vinted.WithBaseURL(srv.URL))

			page, err := client.Search(context.Background(), vinted.SearchRequest{
				Query:   "test",
				PerPage: tt.perPage,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantMore, page.HasMore)
		})
	}
}

func TestAPIClient_SessionRetryOn401(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			// The retry must carry the fresh token.
			cookie, err := r.Cookie("access_token_web")
			require.NoError(t, err)
			assert.Equal(t, "token-2", cookie.Value)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(catalogJSON(1, 101)))
		}),
	)
	defer srv.Close()

	session := &stubSession{tokens: []string{"token-1", "token-2"}}
	client := vinted.NewAPIClient(session, vinted.WithBaseURL(srv.URL))

	page, err := client.Search(context.Background(), vinted.SearchRequest{Query: "nike"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, session.invalidations())
	assert.Equal(t, int32(2), calls.Load())
}

func TestAPIClient_PersistentUnauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}),
	)
	defer srv.Close()

	session := &stubSession{tokens: []string{"token-1"}}
	client := vinted.NewAPIClient(session, vinted.WithBaseURL(srv.URL))

	_, err := client.Search(context.Background(), vinted.SearchRequest{Query: "nike"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	// Retried once, not in a loop.
	assert.Equal(t, 1, session.invalidations())
}

func TestAPIClient_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"upstream broke"}`))
		}),
	)
	defer srv.Close()

	session := &stubSession{tokens: []string{"anon-token"}}
	client := vinted.NewAPIClient(session, vinted.WithBaseURL(srv.URL))

	_, err := client.Search(context.Background(), vinted.SearchRequest{Query: "nike"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "upstream broke")
}

func TestAPIClient_DailyLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(catalogJSON(1, 1)))
		}),
	)
	defer srv.Close()

	session := &stubSession{tokens: []string{"anon-token"}}
	client := vinted.NewAPIClient(
		session,
		vinted.WithBaseURL(srv.URL),
		vinted.WithRateLimiter(vinted.NewRateLimiter(100, 10, 1)),
	)

	_, err := client.Search(context.Background(), vinted.SearchRequest{Query: "nike"})
	require.NoError(t, err)

	_, err = client.Search(context.Background(), vinted.SearchRequest{Query: "nike"})
	require.Error(t, err)
	assert.ErrorIs(t, err, vinted.ErrDailyLimitReached)
}
