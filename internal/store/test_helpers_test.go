package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/offpos/internal/model"
)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSale creates a pending sale with one line.
func createTestSale(id, productID string, qty int) model.PendingSale {
	return model.PendingSale{
		ID:        id,
		Items:     []model.SaleLine{{ProductID: productID, Quantity: qty}},
		CreatedAt: time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC),
	}
}
