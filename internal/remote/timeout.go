package remote

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/offpos/internal/model"
)

// WithTimeout bounds every request-shaped call on a with d. Subscribe is
// passed through unchanged. A deadline hit is reported as RemoteUnavailable
// even when a does not classify it itself.
func WithTimeout(a Authority, d time.Duration) Authority {
	if d <= 0 {
		return a
	}
	return &timeoutAuthority{inner: a, d: d}
}

type timeoutAuthority struct {
	inner Authority
	d     time.Duration
}

func (t *timeoutAuthority) SubmitSale(ctx context.Context, idempotencyID string, items []model.SaleLine) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return deadline(ctx, "submit sale", t.inner.SubmitSale(ctx, idempotencyID, items))
}

func (t *timeoutAuthority) FetchCatalog(ctx context.Context) ([]model.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	products, err := t.inner.FetchCatalog(ctx)
	return products, deadline(ctx, "fetch catalog", err)
}

func (t *timeoutAuthority) FetchTodayRevenue(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	total, err := t.inner.FetchTodayRevenue(ctx)
	return total, deadline(ctx, "fetch revenue", err)
}

func (t *timeoutAuthority) Subscribe(ctx context.Context, scope Scope, handler func(ChangeEvent)) (Subscription, error) {
	return t.inner.Subscribe(ctx, scope, handler)
}

func (t *timeoutAuthority) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return deadline(ctx, "ping", t.inner.Ping(ctx))
}

func deadline(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var me *model.Error
	if errors.As(err, &me) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.NewRemoteUnavailable(op, err)
	}
	return err
}
