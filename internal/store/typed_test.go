package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offpos/internal/model"
)

func TestLoadCart_EmptyWhenNeverSaved(t *testing.T) {
	s := createTestStore(t)

	cart, err := s.LoadCart(context.Background())
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.NotNil(t, cart.Items)
}

func TestSaveCart_LastWriteWins(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var c model.Cart
	c.Add(model.Product{ID: "p1", Name: "Coffee", PriceMinor: 500})
	require.NoError(t, s.SaveCart(ctx, c))

	c.Adjust("p1", 2)
	require.NoError(t, s.SaveCart(ctx, c))

	got, err := s.LoadCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.Items, got.Items)

	require.NoError(t, s.SaveCart(ctx, model.Cart{}))
	got, err = s.LoadCart(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestPendingSales_FIFO(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Keys deliberately sort opposite to insertion order.
	for _, id := range []string{"c", "b", "a"} {
		require.NoError(t, s.EnqueueSale(ctx, createTestSale(id, "p1", 1)))
	}

	sales, err := s.PendingSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 3)
	assert.Equal(t, "c", sales[0].ID)
	assert.Equal(t, "b", sales[1].ID)
	assert.Equal(t, "a", sales[2].ID)

	n, err := s.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEnqueueSale_NeverOverwrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	original := createTestSale("sale-1", "p1", 1)
	require.NoError(t, s.EnqueueSale(ctx, original))
	require.NoError(t, s.EnqueueSale(ctx, original), "re-enqueue of the same record is idempotent")

	tampered := createTestSale("sale-1", "p1", 9)
	err := s.EnqueueSale(ctx, tampered)
	assert.True(t, model.IsConflict(err), "got %v", err)

	sales, err := s.PendingSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, 1, sales[0].Items[0].Quantity)
}

func TestEnqueueSale_RejectsEmptyID(t *testing.T) {
	s := createTestStore(t)
	err := s.EnqueueSale(context.Background(), model.PendingSale{})
	assert.Error(t, err)
}

func TestDeletePendingSale(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnqueueSale(ctx, createTestSale("a", "p1", 1)))
	require.NoError(t, s.EnqueueSale(ctx, createTestSale("b", "p2", 1)))
	require.NoError(t, s.DeletePendingSale(ctx, "a"))

	sales, err := s.PendingSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "b", sales[0].ID)

	assert.True(t, model.IsNotFound(s.DeletePendingSale(ctx, "a")))
}

func TestCatalog_SaveAndLoad(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	snap := model.CatalogSnapshot{
		Products: []model.Product{
			{ID: "p2", Name: "Bagel", PriceMinor: 250, Stock: 4, Barcode: "4006381333931"},
			{ID: "p1", Name: "Coffee", PriceMinor: 500, Stock: 10},
		},
		TodayRevenueMinor: 12345,
		FetchedAt:         time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC),
		Fingerprint:       "abc",
	}
	require.NoError(t, s.SaveCatalog(ctx, snap))

	got, ok, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, snap.Products, got.Products)
	assert.Equal(t, snap.TodayRevenueMinor, got.TodayRevenueMinor)
	assert.True(t, snap.FetchedAt.Equal(got.FetchedAt))
}
