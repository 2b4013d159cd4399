package remote_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offpos/internal/devauthority"
	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/remote"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newAuthority(t *testing.T) (*devauthority.Server, *remote.Client) {
	t.Helper()
	srv := devauthority.New(
		devauthority.WithProducts([]model.Product{
			{ID: "p1", Name: "Coffee", PriceMinor: 350, Stock: 5},
			{ID: "p2", Name: "Bagel", PriceMinor: 275, Stock: 1, Barcode: "123"},
		}),
		devauthority.WithLogger(discard),
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})

	c, err := remote.NewClient(ts.URL,
		remote.WithLogger(discard),
		remote.WithResubscribeDelay(20*time.Millisecond),
	)
	require.NoError(t, err)
	return srv, c
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := remote.NewClient("ftp://example.com")
	assert.Error(t, err)
	_, err = remote.NewClient("://")
	assert.Error(t, err)
}

func TestSubmitSale_DuplicateIsSuccess(t *testing.T) {
	srv, c := newAuthority(t)
	ctx := context.Background()
	items := []model.SaleLine{{ProductID: "p1", Quantity: 2}}

	require.NoError(t, c.SubmitSale(ctx, "sale-1", items))
	require.NoError(t, c.SubmitSale(ctx, "sale-1", items))
	assert.Len(t, srv.Sales(), 1)
}

func TestSubmitSale_Rejected(t *testing.T) {
	srv, c := newAuthority(t)

	err := c.SubmitSale(context.Background(), "sale-1", []model.SaleLine{{ProductID: "p2", Quantity: 5}})
	require.Error(t, err)
	assert.True(t, model.IsRemoteRejected(err), "got %v", err)
	assert.Contains(t, err.Error(), "insufficient stock")
	assert.Empty(t, srv.Sales())
}

func TestSubmitSale_UnavailableWhenOffline(t *testing.T) {
	srv, c := newAuthority(t)
	srv.SetOffline(true)

	err := c.SubmitSale(context.Background(), "sale-1", []model.SaleLine{{ProductID: "p1", Quantity: 1}})
	assert.True(t, model.IsRemoteUnavailable(err), "got %v", err)
}

func TestSubmitSale_UnavailableWhenUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := remote.NewClient(url, remote.WithLogger(discard))
	require.NoError(t, err)

	err = c.SubmitSale(context.Background(), "sale-1", []model.SaleLine{{ProductID: "p1", Quantity: 1}})
	assert.True(t, model.IsRemoteUnavailable(err), "got %v", err)
	assert.True(t, model.IsRemoteUnavailable(c.Ping(context.Background())))
}

func TestSubmitSale_StatusMapping(t *testing.T) {
	tests := []struct {
		status      int
		unavailable bool
		rejected    bool
	}{
		{http.StatusCreated, false, false},
		{http.StatusOK, false, false},
		{http.StatusConflict, false, true},
		{http.StatusUnprocessableEntity, false, true},
		{http.StatusBadRequest, false, true},
		{http.StatusRequestTimeout, true, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusBadGateway, true, false},
		{http.StatusServiceUnavailable, true, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "sale-1", r.Header.Get(remote.IdempotencyHeader))
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			c, err := remote.NewClient(ts.URL)
			require.NoError(t, err)
			err = c.SubmitSale(context.Background(), "sale-1", []model.SaleLine{{ProductID: "p1", Quantity: 1}})
			assert.Equal(t, tt.unavailable, model.IsRemoteUnavailable(err), "unavailable: %v", err)
			assert.Equal(t, tt.rejected, model.IsRemoteRejected(err), "rejected: %v", err)
		})
	}
}

func TestFetchCatalog_AndRevenue(t *testing.T) {
	_, c := newAuthority(t)
	ctx := context.Background()

	products, err := c.FetchCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Bagel", products[0].Name)
	assert.Equal(t, "123", products[0].Barcode)

	require.NoError(t, c.SubmitSale(ctx, "sale-1", []model.SaleLine{{ProductID: "p1", Quantity: 2}}))
	total, err := c.FetchTodayRevenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(700), total)

	require.NoError(t, c.Ping(ctx))
}

func TestFetchCatalog_MalformedBodyIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"id":`))
	}))
	defer ts.Close()

	c, err := remote.NewClient(ts.URL)
	require.NoError(t, err)
	_, err = c.FetchCatalog(context.Background())
	assert.True(t, model.IsRemoteUnavailable(err), "got %v", err)
}

func TestSubscribe_DeliversAndResyncsAfterDrop(t *testing.T) {
	srv, c := newAuthority(t)

	events := make(chan remote.ChangeEvent, 16)
	sub, err := c.Subscribe(context.Background(), remote.ScopeProducts, func(ev remote.ChangeEvent) {
		events <- ev
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.Eventually(t, func() bool { return srv.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	srv.UpsertProduct(model.Product{ID: "p3", Name: "Tea", PriceMinor: 300, Stock: 9})
	select {
	case ev := <-events:
		assert.Equal(t, remote.ChangeEvent{Scope: remote.ScopeProducts, Kind: remote.ChangeInsert, Key: "p3"}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("no change event delivered")
	}

	srv.Close()
	select {
	case ev := <-events:
		assert.Equal(t, remote.ChangeResync, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no resync after reconnect")
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	srv, c := newAuthority(t)

	events := make(chan remote.ChangeEvent, 16)
	sub, err := c.Subscribe(context.Background(), remote.ScopeProducts, func(ev remote.ChangeEvent) {
		events <- ev
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	sub.Cancel()
	sub.Cancel()

	srv.UpsertProduct(model.Product{ID: "p3", Name: "Tea"})
	select {
	case ev := <-events:
		t.Fatalf("unexpected event after cancel: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_UnknownScope(t *testing.T) {
	_, c := newAuthority(t)
	_, err := c.Subscribe(context.Background(), remote.Scope("orders"), func(remote.ChangeEvent) {})
	assert.Error(t, err)
}
