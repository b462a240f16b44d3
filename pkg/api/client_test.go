package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/winimarket/storefront-client/pkg/memo"
)

// fakeTokenStore is an in-memory TokenStore.
type fakeTokenStore struct {
	mu      sync.Mutex
	access  string
	refresh string
	sets    int
}

func (s *fakeTokenStore) SetTokens(_ context.Context, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	s.refresh = refresh
	s.sets++
	return nil
}

func (s *fakeTokenStore) Tokens(_ context.Context) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access, s.refresh, nil
}

// fastRetry keeps test retries sub-millisecond.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fastRetry()
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("Expected error for missing base URL")
	}

	client, err := New(Config{BaseURL: "http://localhost:8000/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.baseURL != "http://localhost:8000" {
		t.Errorf("Expected trailing slash trimmed, got %q", client.baseURL)
	}
}

func TestReadMemoization(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"name":"Shoes"}]`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, Memo: memo.New()})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.Categories(ctx); err != nil {
			t.Fatalf("Categories() error = %v", err)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("Expected 1 network fetch with memoization, got %d", got)
	}
}

func TestCartViewNeverMemoized(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"items":[],"total":"0.00"}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL, Memo: memo.New()})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.CartView(ctx); err != nil {
			t.Fatalf("CartView() error = %v", err)
		}
	}

	if got := hits.Load(); got != 2 {
		t.Errorf("Expected cart view to bypass the memo, got %d fetches", got)
	}
}

func TestReadRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	if _, err := client.Categories(context.Background()); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestReadDoesNotRetryAuthErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	_, err := client.Categories(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.ErrorClass != ErrorClassAuth {
		t.Errorf("Expected auth class, got %s", apiErr.ErrorClass)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("Auth failure should not be retried, got %d attempts", got)
	}
}

func TestReadRetryExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	_, err := client.Categories(context.Background())
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
}

func TestMutationCarriesCSRFToken(t *testing.T) {
	var gotToken, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-CSRFToken")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"is_in_cart":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{
		BaseURL:   server.URL,
		CSRFToken: func() string { return "csrf-abc123" },
	})

	inCart, err := client.CartAdd(context.Background(), AddToCartRequest{ProductID: 7, Quantity: 2})
	if err != nil {
		t.Fatalf("CartAdd() error = %v", err)
	}
	if !inCart {
		t.Error("Expected is_in_cart true")
	}
	if gotToken != "csrf-abc123" {
		t.Errorf("Expected CSRF header, got %q", gotToken)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", gotContentType)
	}
}

func TestMutationAuthRedirect(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(t, Config{
		BaseURL:  server.URL,
		Location: func() string { return "/products/?category=3" },
	})

	_, err := client.CartAdd(context.Background(), AddToCartRequest{ProductID: 7})
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected *AuthError, got %v", err)
	}
	if authErr.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", authErr.StatusCode)
	}

	want := "/account/login/?next=%2Fproducts%2F%3Fcategory%3D3"
	if got := authErr.Redirect(); got != want {
		t.Errorf("Redirect() = %q, want %q", got, want)
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("Mutations must never be retried, got %d attempts", got)
	}
}

func TestMutationValidationFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid request","errors":{"quantity":["must be positive"],"product_id":"unknown product"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	_, err := client.CartAdd(context.Background(), AddToCartRequest{ProductID: 7})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if valErr.Message != "invalid request" {
		t.Errorf("Expected message from error field, got %q", valErr.Message)
	}
	if got := valErr.Fields["quantity"]; len(got) != 1 || got[0] != "must be positive" {
		t.Errorf("Expected quantity field errors, got %v", got)
	}
	if got := valErr.Fields["product_id"]; len(got) != 1 || got[0] != "unknown product" {
		t.Errorf("Expected scalar field error wrapped in slice, got %v", got)
	}
}

func TestMutationServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	err := client.CartUpdateQuantity(context.Background(), 7, 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.ErrorClass != ErrorClassServer {
		t.Errorf("Expected server class, got %s", apiErr.ErrorClass)
	}
}

func TestCartAddServerDenies(t *testing.T) {
	// 200 with a negative flag is still an authoritative answer
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"is_in_cart":false,"message":"out of stock"}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	inCart, err := client.CartAdd(context.Background(), AddToCartRequest{ProductID: 7})
	if err != nil {
		t.Fatalf("CartAdd() error = %v", err)
	}
	if inCart {
		t.Error("Expected is_in_cart false from a 200 denial")
	}
}

func TestLoginPersistsTokensAndAttachesBearer(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/account/api/login/":
			w.Write([]byte(`{"access_token":"tok-access","refresh_token":"tok-refresh","next":"/products/"}`))
		default:
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`[]`))
		}
	}))
	defer server.Close()

	tokens := &fakeTokenStore{}
	client := newTestClient(t, Config{BaseURL: server.URL, Tokens: tokens})

	ctx := context.Background()
	result, err := client.Login(ctx, "user@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Next != "/products/" {
		t.Errorf("Expected next target, got %q", result.Next)
	}

	access, refresh, _ := tokens.Tokens(ctx)
	if access != "tok-access" || refresh != "tok-refresh" {
		t.Errorf("Expected token pair persisted, got %q/%q", access, refresh)
	}

	if _, err := client.Categories(ctx); err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	if gotAuth != "Bearer tok-access" {
		t.Errorf("Expected Bearer header on follow-up request, got %q", gotAuth)
	}
}

func TestLoginApplicationFailure(t *testing.T) {
	// A 200 without tokens is a failed login
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Invalid credentials"}`))
	}))
	defer server.Close()

	tokens := &fakeTokenStore{}
	client := newTestClient(t, Config{BaseURL: server.URL, Tokens: tokens})

	_, err := client.Login(context.Background(), "user@example.com", "wrong")
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if valErr.Message != "Invalid credentials" {
		t.Errorf("Expected server message, got %q", valErr.Message)
	}
	if tokens.sets != 0 {
		t.Error("Failed login must not persist tokens")
	}
}

func TestFeedFetcherPageQuery(t *testing.T) {
	var gotPage, gotCategory string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPage = r.URL.Query().Get("page")
		gotCategory = r.URL.Query().Get("category")
		w.Write([]byte(`{"results":[{"id":1},{"id":2}],"next":"?page=3","previous":"?page=1","count":42}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	page, err := client.ProductFeed().FetchPage(context.Background(),
		map[string][]string{"category": {"shoes"}}, 2)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if gotPage != "2" {
		t.Errorf("Expected page=2 query, got %q", gotPage)
	}
	if gotCategory != "shoes" {
		t.Errorf("Expected filters forwarded, got category=%q", gotCategory)
	}
	if len(page.Results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(page.Results))
	}
	if page.Next == nil || *page.Next != "?page=3" {
		t.Errorf("Expected next cursor, got %v", page.Next)
	}
	if page.Count != 42 {
		t.Errorf("Expected count 42, got %d", page.Count)
	}
}

func TestWishlistToggleFlag(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"is_favorited":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, Config{BaseURL: server.URL})

	favorited, err := client.WishlistToggle(context.Background(), 42)
	if err != nil {
		t.Fatalf("WishlistToggle() error = %v", err)
	}
	if !favorited {
		t.Error("Expected is_favorited true")
	}
	if gotPath != "/products/api/wishlist/42/" {
		t.Errorf("Expected id in path, got %q", gotPath)
	}
}
