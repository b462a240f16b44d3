package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/winimarket/storefront-client/pkg/feed"
)

// Endpoint paths for product reads.
const (
	productsPath      = "/products/api/products/"
	productDetailPath = "/products/api/products/%d/"
	categoriesPath    = "/products/api/categories/"
	searchPath        = "/product/api/search/"
	suggestionsPath   = "/product/api/search/suggestions/"
)

// Suggestion is one search suggestion.
type Suggestion struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// FeedFetcher adapts one paged endpoint to the feed controller.
type FeedFetcher struct {
	client *Client
	path   string
}

// ProductFeed returns a fetcher for the product listing feed.
func (c *Client) ProductFeed() *FeedFetcher {
	return &FeedFetcher{client: c, path: productsPath}
}

// SearchFeed returns a fetcher for the search results feed.
func (c *Client) SearchFeed() *FeedFetcher {
	return &FeedFetcher{client: c, path: searchPath}
}

// FetchPage fetches one page of the feed. Responses are memoized per
// logical query, so revisiting a page within the session is free.
func (f *FeedFetcher) FetchPage(ctx context.Context, filters url.Values, page int) (*feed.Page, error) {
	query := url.Values{}
	for key, values := range filters {
		query[key] = values
	}
	query.Set("page", fmt.Sprintf("%d", page))

	payload, err := f.client.getJSON(ctx, f.path, query, true)
	if err != nil {
		return nil, err
	}

	var result feed.Page
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, &APIError{ErrorClass: ErrorClassServer, Message: "malformed page payload", Err: err}
	}
	return &result, nil
}

// ProductDetail fetches one product by id.
func (c *Client) ProductDetail(ctx context.Context, productID int64) (json.RawMessage, error) {
	return c.getJSON(ctx, fmt.Sprintf(productDetailPath, productID), nil, true)
}

// Categories fetches the category list (memoized for the session).
func (c *Client) Categories(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, categoriesPath, nil, true)
}

// SearchSuggestions fetches type-ahead suggestions for a query.
func (c *Client) SearchSuggestions(ctx context.Context, q string) ([]Suggestion, error) {
	payload, err := c.getJSON(ctx, suggestionsPath, url.Values{"q": []string{q}}, true)
	if err != nil {
		return nil, err
	}

	var suggestions []Suggestion
	if err := json.Unmarshal(payload, &suggestions); err != nil {
		return nil, &APIError{ErrorClass: ErrorClassServer, Message: "malformed suggestions payload", Err: err}
	}
	return suggestions, nil
}
