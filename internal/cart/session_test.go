package cart

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/store"
	"github.com/roach88/offpos/internal/testutil"
)

var (
	coffee = model.Product{ID: "p1", Name: "Coffee", PriceMinor: 350, Barcode: "111"}
	bagel  = model.Product{ID: "p2", Name: "Bagel", PriceMinor: 275, Barcode: "222"}
)

type lookup map[string]model.Product

func (l lookup) ByBarcode(code string) (model.Product, bool) {
	p, ok := l[code]
	return p, ok
}

func TestSession_EveryMutationIsPersisted(t *testing.T) {
	st := testutil.OpenTestStore(t)
	ctx := context.Background()

	s, err := Open(ctx, st)
	require.NoError(t, err)

	steps := []func() error{
		func() error { return s.Add(ctx, coffee) },
		func() error { return s.Add(ctx, bagel) },
		func() error { return s.Add(ctx, coffee) },
		func() error { return s.Adjust(ctx, "p2", 3) },
		func() error { return s.SetQuantity(ctx, "p1", 5) },
		func() error { return s.Remove(ctx, "p2") },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		persisted, err := st.LoadCart(ctx)
		require.NoError(t, err)
		assert.Equal(t, s.Cart().Items, persisted.Items, "persisted cart diverged after step %d", i)
	}

	c := s.Cart()
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, int64(1750), c.TotalMinor())
}

func TestSession_RehydratesAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.db")
	ctx := context.Background()

	st1, err := store.Open(path)
	require.NoError(t, err)
	s1, err := Open(ctx, st1)
	require.NoError(t, err)
	require.NoError(t, s1.Add(ctx, coffee))
	require.NoError(t, s1.Add(ctx, coffee))
	require.NoError(t, st1.Close())

	st2, err := store.Open(path)
	require.NoError(t, err)
	defer st2.Close()
	s2, err := Open(ctx, st2)
	require.NoError(t, err)

	c := s2.Cart()
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p1", c.Items[0].ProductID)
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestSession_AdjustClampsAtOne(t *testing.T) {
	s, err := Open(context.Background(), testutil.OpenTestStore(t))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, coffee))
	require.NoError(t, s.Adjust(ctx, "p1", -10))
	assert.Equal(t, 1, s.Cart().Items[0].Quantity)
}

func TestSession_MissingProductIsNotFound(t *testing.T) {
	s, err := Open(context.Background(), testutil.OpenTestStore(t))
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, model.IsNotFound(s.Remove(ctx, "nope")))
	assert.True(t, model.IsNotFound(s.Adjust(ctx, "nope", 1)))
	assert.True(t, model.IsNotFound(s.SetQuantity(ctx, "nope", 2)))
	assert.Error(t, s.Apply(ctx, Op{Kind: "explode"}))
	assert.Error(t, s.Add(ctx, model.Product{}))
	assert.True(t, s.Cart().IsEmpty())
}

func TestSession_AddByBarcode(t *testing.T) {
	s, err := Open(context.Background(), testutil.OpenTestStore(t))
	require.NoError(t, err)
	ctx := context.Background()
	l := lookup{"111": coffee, "222": bagel}

	p, err := s.AddByBarcode(ctx, l, "222")
	require.NoError(t, err)
	assert.Equal(t, "Bagel", p.Name)

	_, err = s.AddByBarcode(ctx, l, "999")
	assert.True(t, model.IsNotFound(err), "got %v", err)
	assert.Len(t, s.Cart().Items, 1)
}

func TestSession_FailedWriteKeepsMemoryAndFlushRecovers(t *testing.T) {
	st := testutil.NewFaultyStore(testutil.OpenTestStore(t))
	ctx := context.Background()
	s, err := Open(ctx, st)
	require.NoError(t, err)

	st.Fail(testutil.OpSaveCart, 1)
	err = s.Add(ctx, coffee)
	require.Error(t, err)
	assert.True(t, model.IsStorageUnavailable(err), "got %v", err)
	assert.True(t, s.Dirty())
	assert.Len(t, s.Cart().Items, 1, "in-memory cart keeps the mutation")

	persisted, err := st.LoadCart(ctx)
	require.NoError(t, err)
	assert.True(t, persisted.IsEmpty())

	require.NoError(t, s.Flush(ctx))
	assert.False(t, s.Dirty())
	persisted, err = st.LoadCart(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted.Items, 1)

	require.NoError(t, s.Flush(ctx), "flush of a clean session is a no-op")
}

func TestSession_ClearEmptiesMemoryEvenWhenWriteFails(t *testing.T) {
	st := testutil.NewFaultyStore(testutil.OpenTestStore(t))
	ctx := context.Background()
	s, err := Open(ctx, st)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, coffee))

	st.Fail(testutil.OpSaveCart, 1)
	assert.Error(t, s.Clear(ctx))
	assert.True(t, s.Cart().IsEmpty())

	// The next mutation re-persists the whole cart.
	require.NoError(t, s.Add(ctx, bagel))
	persisted, err := st.LoadCart(ctx)
	require.NoError(t, err)
	require.Len(t, persisted.Items, 1)
	assert.Equal(t, "p2", persisted.Items[0].ProductID)
}

func TestSession_CartIsACopy(t *testing.T) {
	s, err := Open(context.Background(), testutil.OpenTestStore(t))
	require.NoError(t, err)
	require.NoError(t, s.Add(context.Background(), coffee))

	c := s.Cart()
	c.Items[0].Quantity = 99
	assert.Equal(t, 1, s.Cart().Items[0].Quantity)
}
