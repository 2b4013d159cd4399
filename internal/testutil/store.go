package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/store"
)

// StoreOp names a FaultyStore operation that can be made to fail.
type StoreOp string

const (
	OpSaveCart    StoreOp = "save cart"
	OpEnqueueSale StoreOp = "enqueue sale"
	OpDeleteSale  StoreOp = "delete pending sale"
	OpListPending StoreOp = "list pending sales"
	OpSaveCatalog StoreOp = "save catalog"
)

var errInjected = errors.New("injected storage failure")

// FaultyStore wraps a real store and fails selected operations with
// StorageUnavailable.
//
// Thread-safety: safe for concurrent use.
type FaultyStore struct {
	*store.Store

	mu     sync.Mutex
	faults map[StoreOp]int
}

// NewFaultyStore wraps s.
func NewFaultyStore(s *store.Store) *FaultyStore {
	return &FaultyStore{Store: s, faults: make(map[StoreOp]int)}
}

// OpenTestStore opens an in-memory store closed at test cleanup.
func OpenTestStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Fail makes the next times calls of op fail. A negative times fails every
// call until Heal.
func (s *FaultyStore) Fail(op StoreOp, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = times
}

// Heal clears every injected fault.
func (s *FaultyStore) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.faults)
}

func (s *FaultyStore) fault(op StoreOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.faults[op]
	if !ok || n == 0 {
		return nil
	}
	if n > 0 {
		s.faults[op] = n - 1
	}
	return model.NewStorageUnavailable(string(op), errInjected)
}

func (s *FaultyStore) SaveCart(ctx context.Context, c model.Cart) error {
	if err := s.fault(OpSaveCart); err != nil {
		return err
	}
	return s.Store.SaveCart(ctx, c)
}

func (s *FaultyStore) EnqueueSale(ctx context.Context, sale model.PendingSale) error {
	if err := s.fault(OpEnqueueSale); err != nil {
		return err
	}
	return s.Store.EnqueueSale(ctx, sale)
}

func (s *FaultyStore) DeletePendingSale(ctx context.Context, id string) error {
	if err := s.fault(OpDeleteSale); err != nil {
		return err
	}
	return s.Store.DeletePendingSale(ctx, id)
}

func (s *FaultyStore) PendingSales(ctx context.Context) ([]model.PendingSale, error) {
	if err := s.fault(OpListPending); err != nil {
		return nil, err
	}
	return s.Store.PendingSales(ctx)
}

func (s *FaultyStore) SaveCatalog(ctx context.Context, snap model.CatalogSnapshot) error {
	if err := s.fault(OpSaveCatalog); err != nil {
		return err
	}
	return s.Store.SaveCatalog(ctx, snap)
}
