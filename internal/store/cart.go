package store

import (
	"context"
	"fmt"

	"github.com/roach88/offpos/internal/model"
)

// CartKey is the fixed key of the working cart record.
const CartKey = "current"

// cartRecord is the persisted cart shape: {id: "current", items: [...]}.
type cartRecord struct {
	ID    string           `json:"id"`
	Items []model.CartItem `json:"items"`
}

// SaveCart replaces the persisted cart with c (last write wins).
func (s *Store) SaveCart(ctx context.Context, c model.Cart) error {
	items := c.Items
	if items == nil {
		items = []model.CartItem{}
	}
	return s.Put(ctx, CollectionCart, CartKey, cartRecord{ID: CartKey, Items: items})
}

// LoadCart returns the persisted cart, or an empty cart if none was saved.
func (s *Store) LoadCart(ctx context.Context) (model.Cart, error) {
	var rec cartRecord
	err := s.Get(ctx, CollectionCart, CartKey, &rec)
	if model.IsNotFound(err) {
		return model.Cart{Items: []model.CartItem{}}, nil
	}
	if err != nil {
		return model.Cart{}, fmt.Errorf("load cart: %w", err)
	}
	if rec.Items == nil {
		rec.Items = []model.CartItem{}
	}
	return model.Cart{Items: rec.Items}, nil
}
