package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Endpoint paths for wishlist operations.
const (
	wishlistViewPath   = "/products/api/wishlist/"
	wishlistTogglePath = "/products/api/wishlist/%d/"
)

// WishlistToggle flips a product's wishlist membership on the server and
// returns the authoritative is_favorited flag.
func (c *Client) WishlistToggle(ctx context.Context, productID int64) (bool, error) {
	result, err := c.mutate(ctx, http.MethodPost, fmt.Sprintf(wishlistTogglePath, productID), nil)
	if err != nil {
		return false, err
	}
	return result.Get("is_favorited").Bool(), nil
}

// WishlistView fetches the current wishlist product ids.
func (c *Client) WishlistView(ctx context.Context) ([]int64, error) {
	payload, err := c.getJSON(ctx, wishlistViewPath, nil, false)
	if err != nil {
		return nil, err
	}

	var items []struct {
		Product struct {
			ID int64 `json:"id"`
		} `json:"product"`
	}
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, &APIError{ErrorClass: ErrorClassServer, Message: "malformed wishlist payload", Err: err}
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Product.ID)
	}
	return ids, nil
}

// WishlistBackend adapts the wishlist endpoints to the entity store.
// The server exposes a single toggle endpoint, so both Add and Remove
// issue a toggle; the returned flag is authoritative either way.
type WishlistBackend struct {
	client *Client
}

// WishlistBackend returns the wishlist's entity-store backend.
func (c *Client) WishlistBackend() *WishlistBackend {
	return &WishlistBackend{client: c}
}

// Add requests wishlist membership for a product.
func (b *WishlistBackend) Add(ctx context.Context, id int64, _ int) (bool, error) {
	return b.client.WishlistToggle(ctx, id)
}

// Remove requests removal of a product from the wishlist.
func (b *WishlistBackend) Remove(ctx context.Context, id int64) (bool, error) {
	return b.client.WishlistToggle(ctx, id)
}

// Snapshot fetches the authoritative wishlist membership.
func (b *WishlistBackend) Snapshot(ctx context.Context) ([]int64, error) {
	return b.client.WishlistView(ctx)
}
