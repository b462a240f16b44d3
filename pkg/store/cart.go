package store

import "context"

// QuantityBackend extends Backend with line-item quantity updates.
type QuantityBackend interface {
	Backend
	UpdateQuantity(ctx context.Context, id int64, quantity int) error
}

// CartStore is an EntityStore whose line items carry quantities.
// Quantity changes follow confirm-then-refetch: the mutation is sent,
// and on success the whole cart is re-fetched rather than patched
// incrementally, trading efficiency for consistency simplicity.
type CartStore struct {
	*EntityStore
	backend QuantityBackend
}

// NewCart creates a cart store.
func NewCart(backend QuantityBackend) *CartStore {
	return &CartStore{
		EntityStore: New("cart", backend),
		backend:     backend,
	}
}

// UpdateQuantity changes a line item's quantity and re-initializes the
// store from the server's authoritative cart view.
func (s *CartStore) UpdateQuantity(ctx context.Context, id int64, quantity int) error {
	if err := s.backend.UpdateQuantity(ctx, id, quantity); err != nil {
		return err
	}
	return s.Refresh(ctx)
}
