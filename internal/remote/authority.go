// Package remote defines the contract offpos consumes from the remote
// authoritative store and provides an HTTP implementation of it.
//
// Every error returned across this contract is a *model.Error:
//   - RemoteUnavailable when the outcome is unknown (network, timeout, 5xx,
//     open circuit). Callers must treat the request as possibly applied and
//     retry it with the same idempotency id.
//   - RemoteRejected when the server validated and declined the request.
//     Retrying is pointless.
package remote

import (
	"context"

	"github.com/roach88/offpos/internal/model"
)

// Authority is the narrow contract consumed from the authoritative store.
type Authority interface {
	// SubmitSale commits a sale. It must be safe to call more than once with
	// the same idempotencyID: a duplicate is a no-op on the server and
	// reported as success.
	SubmitSale(ctx context.Context, idempotencyID string, items []model.SaleLine) error

	// FetchCatalog returns the full current catalog ordered by name.
	FetchCatalog(ctx context.Context) ([]model.Product, error)

	// FetchTodayRevenue returns the sum of today's recorded sales in minor units.
	FetchTodayRevenue(ctx context.Context) (int64, error)

	// Subscribe delivers change events for scope to handler until the
	// returned Subscription is cancelled. handler is called from a single
	// goroutine owned by the subscription.
	Subscribe(ctx context.Context, scope Scope, handler func(ChangeEvent)) (Subscription, error)

	// Ping reports whether the authority is reachable.
	Ping(ctx context.Context) error
}

// Scope selects which change notifications a subscription receives.
type Scope string

const (
	// ScopeProducts covers every insert, update and delete on the catalog.
	ScopeProducts Scope = "products"
	// ScopeSales covers newly recorded sales.
	ScopeSales Scope = "sales"
)

// ChangeKind is the kind of change a notification reports.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	// ChangeResync is synthesized after a change stream reconnects, since
	// notifications sent while disconnected are lost.
	ChangeResync ChangeKind = "resync"
)

// ChangeEvent is one notification from the change stream.
type ChangeEvent struct {
	Scope Scope      `json:"scope"`
	Kind  ChangeKind `json:"kind"`
	Key   string     `json:"key,omitempty"`
}

// Subscription is a cancellable change-stream registration.
type Subscription interface {
	// Cancel stops delivery and releases the subscription's resources.
	// After Cancel returns, handler is never called again. Safe to call
	// more than once.
	Cancel()
}

// SubscriptionFunc adapts a function to the Subscription interface.
type SubscriptionFunc func()

// Cancel calls f.
func (f SubscriptionFunc) Cancel() { f() }
