package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Endpoint paths for cart operations.
const (
	cartViewPath   = "/cart/api/view/"
	cartAddPath    = "/cart/api/add/"
	cartUpdatePath = "/cart/api/update/"
	cartRemovePath = "/cart/api/remove/"
)

// CartItem is one cart line item.
type CartItem struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
	Product  struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Price string `json:"price"`
	} `json:"product"`
}

// Cart is the server's cart view.
type Cart struct {
	Items []CartItem `json:"items"`
	Total string     `json:"total"`
}

// AddToCartRequest is the body of a cart add mutation.
type AddToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`

	// ChoicePrice is the buyer-selected price tier, when the product
	// offers one.
	ChoicePrice string `json:"choice_price,omitempty"`
}

// CartView fetches the current cart. Never memoized: cart contents are
// the reconciliation source after every mutation.
func (c *Client) CartView(ctx context.Context) (*Cart, error) {
	payload, err := c.getJSON(ctx, cartViewPath, nil, false)
	if err != nil {
		return nil, err
	}

	var cart Cart
	if err := json.Unmarshal(payload, &cart); err != nil {
		return nil, &APIError{ErrorClass: ErrorClassServer, Message: "malformed cart payload", Err: err}
	}
	return &cart, nil
}

// CartAdd adds a product to the cart. The returned flag is the server's
// authoritative is_in_cart, which may be false even on a 200.
func (c *Client) CartAdd(ctx context.Context, reqBody AddToCartRequest) (bool, error) {
	if reqBody.Quantity <= 0 {
		reqBody.Quantity = 1
	}

	result, err := c.mutate(ctx, http.MethodPost, cartAddPath, reqBody)
	if err != nil {
		return false, err
	}
	return result.Get("is_in_cart").Bool(), nil
}

// CartUpdateQuantity changes a line item's quantity. Callers re-fetch the
// whole cart afterwards rather than patching incrementally.
func (c *Client) CartUpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	body := map[string]any{"product_id": productID, "quantity": quantity}
	_, err := c.mutate(ctx, http.MethodPatch, cartUpdatePath, body)
	return err
}

// CartRemove removes a product from the cart.
func (c *Client) CartRemove(ctx context.Context, productID int64) (bool, error) {
	body := map[string]any{"product_id": productID}
	result, err := c.mutate(ctx, http.MethodDelete, cartRemovePath, body)
	if err != nil {
		return false, err
	}
	return result.Get("is_in_cart").Bool(), nil
}

// CartBackend adapts the cart endpoints to the entity store.
type CartBackend struct {
	client *Client
}

// CartBackend returns the cart's entity-store backend.
func (c *Client) CartBackend() *CartBackend {
	return &CartBackend{client: c}
}

// Add requests cart membership for a product.
func (b *CartBackend) Add(ctx context.Context, id int64, quantity int) (bool, error) {
	return b.client.CartAdd(ctx, AddToCartRequest{ProductID: id, Quantity: quantity})
}

// Remove requests removal of a product from the cart.
func (b *CartBackend) Remove(ctx context.Context, id int64) (bool, error) {
	return b.client.CartRemove(ctx, id)
}

// UpdateQuantity changes a line item's quantity.
func (b *CartBackend) UpdateQuantity(ctx context.Context, id int64, quantity int) error {
	return b.client.CartUpdateQuantity(ctx, id, quantity)
}

// Snapshot fetches the authoritative cart membership.
func (b *CartBackend) Snapshot(ctx context.Context) ([]int64, error) {
	cart, err := b.client.CartView(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.Product.ID)
	}
	return ids, nil
}
