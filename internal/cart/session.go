// Package cart keeps the working cart durable across restarts.
//
// Every mutation is applied in memory and then the whole cart is written
// back to the store under a single key. If the write fails the in-memory
// cart is kept, the session is marked dirty and the error is returned; the
// next successful mutation or Flush brings the store back in line.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/offpos/internal/model"
)

// Store is the persistence the session needs.
type Store interface {
	LoadCart(ctx context.Context) (model.Cart, error)
	SaveCart(ctx context.Context, c model.Cart) error
}

// BarcodeLookup resolves a scanned code to a product.
type BarcodeLookup interface {
	ByBarcode(code string) (model.Product, bool)
}

// Session is the single working cart of a terminal.
//
// Thread-safety: mutations are serialized by an internal mutex.
type Session struct {
	mu     sync.Mutex
	store  Store
	cart   model.Cart
	dirty  bool
	logger *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Open rehydrates the persisted cart. It must complete before any other
// interaction with the cart.
func Open(ctx context.Context, store Store, opts ...Option) (*Session, error) {
	c, err := store.LoadCart(ctx)
	if err != nil {
		return nil, fmt.Errorf("open cart: %w", err)
	}
	s := &Session{store: store, cart: c.Clone(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Cart returns a copy of the current cart.
func (s *Session) Cart() model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Dirty reports whether the last write to the store failed.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Add puts one unit of p in the cart.
func (s *Session) Add(ctx context.Context, p model.Product) error {
	return s.Apply(ctx, Op{Kind: OpAdd, Product: p})
}

// AddByBarcode adds the product whose barcode is code.
func (s *Session) AddByBarcode(ctx context.Context, lookup BarcodeLookup, code string) (model.Product, error) {
	p, ok := lookup.ByBarcode(code)
	if !ok {
		return model.Product{}, model.NewNotFound("add by barcode", "products", code)
	}
	return p, s.Add(ctx, p)
}

// Remove deletes the line for productID.
func (s *Session) Remove(ctx context.Context, productID string) error {
	return s.Apply(ctx, Op{Kind: OpRemove, ProductID: productID})
}

// Adjust changes a line's quantity by delta, clamping at 1.
func (s *Session) Adjust(ctx context.Context, productID string, delta int) error {
	return s.Apply(ctx, Op{Kind: OpAdjust, ProductID: productID, Delta: delta})
}

// SetQuantity sets a line's quantity, clamping at 1.
func (s *Session) SetQuantity(ctx context.Context, productID string, qty int) error {
	return s.Apply(ctx, Op{Kind: OpSetQuantity, ProductID: productID, Quantity: qty})
}

// Clear empties the cart. The in-memory cart is empty afterwards even if
// the write fails.
func (s *Session) Clear(ctx context.Context) error {
	return s.Apply(ctx, Op{Kind: OpClear})
}

// Apply runs op and persists the result.
//
// An op naming a product that is not in the cart returns NotFound and
// changes nothing.
func (s *Session) Apply(ctx context.Context, op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cart.Clone()
	if err := op.apply(&next); err != nil {
		return err
	}
	s.cart = next
	return s.persistLocked(ctx, "cart "+string(op.Kind))
}

// Flush re-persists the cart if an earlier write failed.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked(ctx, "cart flush")
}

func (s *Session) persistLocked(ctx context.Context, op string) error {
	if err := s.store.SaveCart(ctx, s.cart); err != nil {
		s.dirty = true
		s.logger.Warn("cart not persisted", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	s.dirty = false
	return nil
}
