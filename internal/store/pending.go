package store

import (
	"context"
	"fmt"

	"github.com/roach88/offpos/internal/model"
)

// EnqueueSale durably appends sale to the pending queue.
//
// The write is create-only: re-enqueueing the identical record is a no-op,
// and a different record under an existing id is a Conflict. A persisted
// PendingSale is therefore never overwritten.
func (s *Store) EnqueueSale(ctx context.Context, sale model.PendingSale) error {
	if sale.ID == "" {
		return fmt.Errorf("enqueue sale: empty id")
	}
	if _, err := s.Insert(ctx, CollectionPendingSales, sale.ID, sale); err != nil {
		return fmt.Errorf("enqueue sale: %w", err)
	}
	return nil
}

// PendingSales returns every queued sale in insertion (FIFO) order.
// Returns an empty slice (not nil) if the queue is empty.
func (s *Store) PendingSales(ctx context.Context) ([]model.PendingSale, error) {
	records, err := s.GetAll(ctx, CollectionPendingSales)
	if err != nil {
		return nil, fmt.Errorf("pending sales: %w", err)
	}

	sales := make([]model.PendingSale, 0, len(records))
	for _, rec := range records {
		var sale model.PendingSale
		if err := rec.Decode(&sale); err != nil {
			return nil, fmt.Errorf("pending sales: %w", err)
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

// DeletePendingSale removes a sale after its commit has been confirmed.
// Returns a NotFound error if no sale has that id.
func (s *Store) DeletePendingSale(ctx context.Context, id string) error {
	return s.Delete(ctx, CollectionPendingSales, id)
}

// PendingCount returns the number of sales awaiting sync.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	return s.Count(ctx, CollectionPendingSales)
}
