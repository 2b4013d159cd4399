// Package drain retries queued sales against the authority.
//
// A pass walks the pending queue oldest first and submits each sale with
// the id it was queued under. A sale leaves the queue only after the
// authority confirms it; every other outcome leaves it in place for a
// later pass. Because the authority is idempotent by sale id, a sale that
// is resubmitted after a lost confirmation is still committed exactly once.
package drain

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/offpos/internal/model"
)

// Queue is the durable pending-sale queue.
type Queue interface {
	PendingSales(ctx context.Context) ([]model.PendingSale, error)
	DeletePendingSale(ctx context.Context, id string) error
}

// Committer submits a sale to the authority.
type Committer interface {
	SubmitSale(ctx context.Context, idempotencyID string, items []model.SaleLine) error
}

// Report summarizes one Drain call.
type Report struct {
	// Passes is the number of passes run, including trailing passes.
	Passes int `json:"passes"`
	// Attempted counts submit calls across all passes.
	Attempted int `json:"attempted"`
	// Committed counts sales the authority confirmed.
	Committed int `json:"committed"`
	// Failed counts submits with an unknown outcome.
	Failed int `json:"failed"`
	// Rejected counts submits the authority declined. Rejected sales stay
	// queued until discarded.
	Rejected int `json:"rejected"`
	// RejectedIDs lists the declined sales, oldest first.
	RejectedIDs []string `json:"rejected_ids,omitempty"`
	// Remaining is the queue length after the last pass.
	Remaining int `json:"remaining"`
	// Coalesced is set when the call joined a pass already in flight.
	Coalesced bool `json:"coalesced,omitempty"`
}

func (r *Report) add(o Report) {
	r.Passes += o.Passes
	r.Attempted += o.Attempted
	r.Committed += o.Committed
	r.Failed += o.Failed
	r.Rejected += o.Rejected
	for _, id := range o.RejectedIDs {
		if !slices.Contains(r.RejectedIDs, id) {
			r.RejectedIDs = append(r.RejectedIDs, id)
		}
	}
	r.Remaining = o.Remaining
}

// Drainer runs drain passes one at a time.
//
// Thread-safety: Drain may be called from any goroutine. Calls made while a
// pass is running return immediately and schedule one trailing pass.
type Drainer struct {
	queue     Queue
	committer Committer
	logger    *slog.Logger
	// base bounds trailing passes, which belong to callers that have
	// already returned.
	base context.Context

	mu       sync.Mutex
	running  bool
	trailing bool
}

// Option configures a Drainer.
type Option func(*Drainer)

// WithLogger sets the drainer logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Drainer) { d.logger = l }
}

// WithBaseContext sets the context trailing passes run on. Cancel it to
// stop a trailing pass at shutdown. Defaults to context.Background().
func WithBaseContext(ctx context.Context) Option {
	return func(d *Drainer) { d.base = ctx }
}

// New creates a Drainer.
func New(queue Queue, committer Committer, opts ...Option) *Drainer {
	d := &Drainer{queue: queue, committer: committer, logger: slog.Default(), base: context.Background()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Drain runs a pass over the queue, then one more pass for every call that
// arrived meanwhile (collapsed into a single trailing pass).
//
// The first pass runs on ctx. Trailing passes run on the base context, so a
// coalesced request survives cancellation of the caller that owned the pass.
//
// Per-sale failures are counted, not returned. The error is non-nil only
// when the queue could not be read or ctx was cancelled.
func (d *Drainer) Drain(ctx context.Context) (Report, error) {
	d.mu.Lock()
	if d.running {
		d.trailing = true
		d.mu.Unlock()
		return Report{Coalesced: true}, nil
	}
	d.running = true
	d.mu.Unlock()

	var (
		total   Report
		callErr error
	)
	passCtx := ctx
	for first := true; ; first = false {
		r, err := d.pass(passCtx)
		total.add(r)
		if first {
			callErr = err
		} else if err != nil {
			d.logger.Warn("trailing drain pass failed", "error", err)
		}

		d.mu.Lock()
		again := d.trailing && d.base.Err() == nil
		d.trailing = false
		if !again {
			d.running = false
		}
		d.mu.Unlock()

		if !again {
			return total, callErr
		}
		passCtx = d.base
	}
}

// Running reports whether a pass is in flight.
func (d *Drainer) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Drainer) pass(ctx context.Context) (Report, error) {
	pending, err := d.queue.PendingSales(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("drain: %w", err)
	}

	r := Report{Passes: 1, Remaining: len(pending)}
	if len(pending) == 0 {
		return r, nil
	}
	d.logger.Debug("drain pass started", "pending", len(pending))

	// Bounded by the snapshot taken above; sales queued during the pass
	// wait for the trailing pass.
	for _, sale := range pending {
		if err := ctx.Err(); err != nil {
			return r, err
		}

		r.Attempted++
		err := d.committer.SubmitSale(ctx, sale.ID, sale.Lines())
		switch {
		case err == nil:
			r.Committed++
			r.Remaining--
			d.remove(ctx, sale.ID)
		case model.IsRemoteRejected(err):
			r.Rejected++
			r.RejectedIDs = append(r.RejectedIDs, sale.ID)
			d.logger.Warn("queued sale rejected by authority", "sale_id", sale.ID, "error", err)
		default:
			r.Failed++
			d.logger.Warn("queued sale not committed", "sale_id", sale.ID, "error", err)
		}
	}

	d.logger.Info("drain pass finished",
		"attempted", r.Attempted, "committed", r.Committed,
		"failed", r.Failed, "rejected", r.Rejected, "pending", r.Remaining)
	return r, nil
}

// remove deletes a confirmed sale. A failed delete leaves the sale queued;
// the next pass resubmits it and the authority treats that as a duplicate.
func (d *Drainer) remove(ctx context.Context, id string) {
	err := d.queue.DeletePendingSale(ctx, id)
	switch {
	case err == nil:
	case model.IsNotFound(err):
		d.logger.Debug("confirmed sale already dequeued", "sale_id", id)
	default:
		d.logger.Warn("confirmed sale not dequeued", "sale_id", id, "error", err)
	}
}

// Resolution is how Discard settled a queued sale.
type Resolution string

const (
	// ResolvedCommitted means the authority accepted the sale (or already
	// had it) and it left the queue as a normal commit.
	ResolvedCommitted Resolution = "committed"
	// ResolvedDropped means the authority rejected the sale and it was
	// removed from the queue unrecorded.
	ResolvedDropped Resolution = "dropped"
)

// Discard removes the queued sale id on an operator's request.
//
// The sale is submitted once more first, so a sale the authority would now
// accept is committed rather than lost. Only a rejection drops it. When the
// authority cannot be reached the sale stays queued and the
// RemoteUnavailable error is returned: the authority may have applied it.
//
// Errors:
//   - model.NotFound if id is not queued
//   - RemoteUnavailable, sale kept
//   - StorageUnavailable if the queue could not be read or the rejected
//     sale could not be deleted
func (d *Drainer) Discard(ctx context.Context, id string) (Resolution, error) {
	const op = "discard sale"

	pending, err := d.queue.PendingSales(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	i := slices.IndexFunc(pending, func(s model.PendingSale) bool { return s.ID == id })
	if i < 0 {
		return "", model.NewNotFound(op, "pendingSales", id)
	}

	err = d.committer.SubmitSale(ctx, id, pending[i].Lines())
	switch {
	case err == nil:
		d.remove(ctx, id)
		d.logger.Info("queued sale committed on discard", "sale_id", id)
		return ResolvedCommitted, nil
	case model.IsRemoteRejected(err):
		if derr := d.queue.DeletePendingSale(ctx, id); derr != nil && !model.IsNotFound(derr) {
			return "", fmt.Errorf("%s: %w", op, derr)
		}
		d.logger.Warn("rejected sale discarded", "sale_id", id, "error", err)
		return ResolvedDropped, nil
	default:
		d.logger.Warn("queued sale kept: outcome unknown", "sale_id", id, "error", err)
		return "", fmt.Errorf("%s: %w", op, err)
	}
}
