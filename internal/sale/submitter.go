// Package sale turns the working cart into a recorded sale.
//
// A checkout ends in exactly one of three durable states: committed on the
// authority, held in the local pending queue, or (when both the authority
// and local storage fail) not recorded with the cart left intact so the
// cashier can try again. A sale is never both committed and queued as two
// different transactions: the queued copy carries the same id, and the
// authority ignores duplicates.
package sale

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/offpos/internal/drain"
	"github.com/roach88/offpos/internal/model"
)

// Outcome is how a checkout ended.
type Outcome string

const (
	OutcomeNoop        Outcome = "noop"
	OutcomeCommitted   Outcome = "committed"
	OutcomeQueued      Outcome = "queued"
	OutcomeRejected    Outcome = "rejected"
	OutcomeNotRecorded Outcome = "not_recorded"
)

// Result describes a checkout.
type Result struct {
	Outcome    Outcome          `json:"outcome"`
	SaleID     string           `json:"sale_id,omitempty"`
	Items      []model.SaleLine `json:"items,omitempty"`
	TotalMinor int64            `json:"total_minor"`
	// Drain is the report of the drain run after the checkout, if any.
	Drain *drain.Report `json:"drain,omitempty"`
	// Warning is set when the sale was recorded but the cleared cart could
	// not be persisted.
	Warning string `json:"warning,omitempty"`
}

// Cart is the working cart the submitter reads and clears.
type Cart interface {
	Cart() model.Cart
	Clear(ctx context.Context) error
}

// Queue durably holds sales the authority has not confirmed.
type Queue interface {
	EnqueueSale(ctx context.Context, sale model.PendingSale) error
}

// Drainer retries the queue.
type Drainer interface {
	Drain(ctx context.Context) (drain.Report, error)
}

// Submitter runs checkouts.
//
// Thread-safety: Record and Checkout are safe to call concurrently, but
// callers must serialize Record with cart mutations so the cart read and
// the cart clear see the same contents. Settle needs no such lock.
type Submitter struct {
	cart      Cart
	committer drain.Committer
	queue     Queue
	drainer   Drainer
	ids       IDGenerator
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithDrainer runs d after every checkout attempt.
func WithDrainer(d Drainer) Option {
	return func(s *Submitter) { s.drainer = d }
}

// WithIDGenerator sets the sale id source. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Submitter) { s.ids = g }
}

// WithClock sets the clock stamping queued sales.
func WithClock(now func() time.Time) Option {
	return func(s *Submitter) { s.now = now }
}

// WithLogger sets the submitter logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Submitter) { s.logger = l }
}

// New creates a Submitter.
func New(cart Cart, committer drain.Committer, queue Queue, opts ...Option) *Submitter {
	s := &Submitter{
		cart:      cart,
		committer: committer,
		queue:     queue,
		ids:       UUIDv7Generator{},
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout records the current cart as one sale and then runs the drainer
// once, whatever the outcome. It is Record followed by Settle.
//
// Errors:
//   - a RemoteRejected error with OutcomeRejected: not queued, cart kept
//   - model.ErrSaleNotRecorded (wrapping the storage error) with
//     OutcomeNotRecorded: neither committed nor queued, cart kept
func (s *Submitter) Checkout(ctx context.Context) (Result, error) {
	res, err := s.Record(ctx)
	s.Settle(ctx, &res)
	return res, err
}

// Record submits the current cart and, when the authority cannot confirm
// it, queues it. The cart is cleared once the sale is committed or queued.
// Record is the part of a checkout that must be serialized with cart
// mutations; Settle is not.
func (s *Submitter) Record(ctx context.Context) (Result, error) {
	c := s.cart.Cart()
	if c.IsEmpty() {
		return Result{Outcome: OutcomeNoop}, nil
	}

	res := Result{
		SaleID:     s.ids.Generate(),
		Items:      c.Lines(),
		TotalMinor: c.TotalMinor(),
	}
	logger := s.logger.With("sale_id", res.SaleID)

	// Local writes below must complete even if the caller gave up waiting.
	durable := context.WithoutCancel(ctx)

	err := s.committer.SubmitSale(ctx, res.SaleID, res.Items)
	switch {
	case err == nil:
		res.Outcome = OutcomeCommitted
		logger.Info("sale committed", "total_minor", res.TotalMinor)

	case model.IsRemoteRejected(err):
		res.Outcome = OutcomeRejected
		logger.Warn("sale rejected", "error", err)
		return res, err

	default:
		// Unknown outcome: the sale may or may not have been applied.
		// Queuing it under the same id is safe either way.
		pending := model.PendingSale{ID: res.SaleID, Items: res.Items, CreatedAt: s.now().UTC()}
		if qerr := s.queue.EnqueueSale(durable, pending); qerr != nil {
			res.Outcome = OutcomeNotRecorded
			logger.Error("sale not recorded", "remote_error", err, "error", qerr)
			return res, fmt.Errorf("checkout: %w: %w", model.ErrSaleNotRecorded, qerr)
		}
		res.Outcome = OutcomeQueued
		logger.Info("sale queued", "reason", err)
	}

	if cerr := s.cart.Clear(durable); cerr != nil {
		res.Warning = fmt.Sprintf("sale %s recorded but cart was not cleared in storage: %v", res.SaleID, cerr)
		logger.Warn("cart clear not persisted", "error", cerr)
	}
	return res, nil
}

// Settle runs the drainer once after a checkout attempt and attaches its
// report to res. Older queued sales are retried even when this sale could
// not be recorded. It does nothing for an empty cart or without a drainer.
func (s *Submitter) Settle(ctx context.Context, res *Result) {
	if s.drainer == nil || res.Outcome == OutcomeNoop {
		return
	}
	r, err := s.drainer.Drain(ctx)
	if err != nil {
		s.logger.Warn("post-checkout drain failed", "error", err)
	}
	res.Drain = &r
}
