package remote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/roach88/offpos/internal/model"
)

// BreakerSettings configure NewBreaker.
type BreakerSettings struct {
	// Failures is the number of consecutive unavailable outcomes that open
	// the circuit. Zero means 3.
	Failures uint32
	// Cooldown is how long the circuit stays open before a single trial
	// request is let through. Zero means 30s.
	Cooldown time.Duration
	Logger   *slog.Logger
}

// Breaker wraps an Authority with a circuit breaker so a dead authority
// fails fast instead of stalling every checkout for the full timeout.
//
// Only RemoteUnavailable outcomes count as failures. A rejection proves the
// authority is up. While the circuit is open every call returns
// RemoteUnavailable without touching the network, so callers queue exactly
// as they would on a timeout.
type Breaker struct {
	inner Authority
	cb    *gobreaker.CircuitBreaker[any]
}

var _ Authority = (*Breaker)(nil)

// NewBreaker wraps inner.
func NewBreaker(inner Authority, settings BreakerSettings) *Breaker {
	if settings.Failures == 0 {
		settings.Failures = 3
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	logger := settings.Logger
	if logger == nil {
		logger = slog.Default()
	}

	failures := settings.Failures
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "authority",
		MaxRequests: 1,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !model.IsRemoteUnavailable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Breaker{inner: inner, cb: cb}
}

// State reports the breaker state: "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) SubmitSale(ctx context.Context, idempotencyID string, items []model.SaleLine) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.SubmitSale(ctx, idempotencyID, items)
	})
	return b.translate("submit sale", err)
}

func (b *Breaker) FetchCatalog(ctx context.Context) ([]model.Product, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.inner.FetchCatalog(ctx)
	})
	if err != nil {
		return nil, b.translate("fetch catalog", err)
	}
	return v.([]model.Product), nil
}

func (b *Breaker) FetchTodayRevenue(ctx context.Context) (int64, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.inner.FetchTodayRevenue(ctx)
	})
	if err != nil {
		return 0, b.translate("fetch revenue", err)
	}
	return v.(int64), nil
}

// Subscribe bypasses the breaker; the stream has its own reconnect loop.
func (b *Breaker) Subscribe(ctx context.Context, scope Scope, handler func(ChangeEvent)) (Subscription, error) {
	return b.inner.Subscribe(ctx, scope, handler)
}

// Ping bypasses the breaker so connectivity probing sees the real state.
func (b *Breaker) Ping(ctx context.Context) error {
	return b.inner.Ping(ctx)
}

func (b *Breaker) translate(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return model.NewRemoteUnavailable(op, err)
	}
	return err
}
