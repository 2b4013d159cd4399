// Package catalog keeps a local, read-only copy of the product catalog and
// today's revenue in step with the authority.
//
// The current Snapshot is swapped atomically, so readers never see a
// partially refreshed catalog. A failed refresh keeps the previous
// snapshot; the last persisted snapshot is served while offline.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/offpos/internal/canon"
	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/remote"
	"github.com/roach88/offpos/internal/trigger"
)

// Store persists the last fetched snapshot.
type Store interface {
	LoadCatalog(ctx context.Context) (model.CatalogSnapshot, bool, error)
	SaveCatalog(ctx context.Context, snap model.CatalogSnapshot) error
}

// Source is the part of the authority the synchronizer reads.
type Source interface {
	FetchCatalog(ctx context.Context) ([]model.Product, error)
	FetchTodayRevenue(ctx context.Context) (int64, error)
	Subscribe(ctx context.Context, scope remote.Scope, handler func(remote.ChangeEvent)) (remote.Subscription, error)
}

// Synchronizer owns the catalog snapshot.
//
// Thread-safety: Snapshot may be called from any goroutine. Refreshes are
// serialized.
type Synchronizer struct {
	store  Store
	source Source
	now    func() time.Time
	logger *slog.Logger

	current   atomic.Pointer[Snapshot]
	refreshMu sync.Mutex

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	subs    []remote.Subscription
	signal  *trigger.Signal
	wg      sync.WaitGroup
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithClock sets the clock stamping fetched snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// WithLogger sets the synchronizer logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// New creates a Synchronizer serving an empty, stale snapshot until Start
// or Refresh.
func New(store Store, source Source, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:  store,
		source: source,
		now:    time.Now,
		logger: slog.Default(),
		signal: trigger.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(newSnapshot(model.CatalogSnapshot{}, true))
	return s
}

// Snapshot returns the current snapshot.
func (s *Synchronizer) Snapshot() *Snapshot {
	return s.current.Load()
}

// Load replaces the current snapshot with the persisted one, if any.
func (s *Synchronizer) Load(ctx context.Context) error {
	snap, ok, err := s.store.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if ok {
		s.current.Store(newSnapshot(snap, true))
		s.logger.Debug("catalog loaded from cache", "products", len(snap.Products), "fetched_at", snap.FetchedAt)
	}
	return nil
}

// Start loads the cached snapshot, refreshes once, subscribes to product
// and sale changes and starts the refresh worker. A failed initial refresh
// is logged, not returned: the cached snapshot keeps serving.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("catalog: already started")
	}
	s.started = true
	s.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		s.logger.Warn("catalog cache unavailable", "error", err)
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial catalog refresh failed", "error", err)
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var subs []remote.Subscription
	for _, scope := range []remote.Scope{remote.ScopeProducts, remote.ScopeSales} {
		sub, err := s.source.Subscribe(workerCtx, scope, s.onChange)
		if err != nil {
			for _, prev := range subs {
				prev.Cancel()
			}
			cancel()
			return fmt.Errorf("catalog: subscribe %s: %w", scope, err)
		}
		subs = append(subs, sub)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.subs = subs
	s.mu.Unlock()

	s.wg.Add(1)
	go s.worker(workerCtx)
	return nil
}

// RequestRefresh asks the worker for a refresh. Requests that arrive while
// one is pending are absorbed.
func (s *Synchronizer) RequestRefresh() {
	s.signal.Notify()
}

func (s *Synchronizer) onChange(ev remote.ChangeEvent) {
	if ev.Scope == remote.ScopeSales && ev.Kind != remote.ChangeInsert && ev.Kind != remote.ChangeResync {
		return
	}
	s.logger.Debug("catalog change notified", "scope", string(ev.Scope), "kind", string(ev.Kind), "key", ev.Key)
	s.RequestRefresh()
}

func (s *Synchronizer) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-s.signal.C():
			if !ok {
				return
			}
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("background catalog refresh failed", "error", err)
			}
		}
	}
}

// Refresh fetches the catalog and today's revenue and swaps in a new
// snapshot.
//
// On a catalog fetch failure the previous snapshot is kept (marked stale)
// and the error returned. A revenue failure carries the previous figure
// over. A failure to persist the new snapshot is logged; the in-memory swap
// still happens.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	prev := s.current.Load()

	products, err := s.source.FetchCatalog(ctx)
	if err != nil {
		if !prev.stale {
			s.current.Store(prev.withStale())
		}
		return fmt.Errorf("refresh catalog: %w", err)
	}
	if products == nil {
		products = []model.Product{}
	}

	revenue, err := s.source.FetchTodayRevenue(ctx)
	if err != nil {
		s.logger.Warn("revenue refresh failed, keeping previous figure", "error", err)
		revenue = prev.revenue
	}

	fp, err := canon.Fingerprint(canon.DomainCatalog, products)
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}

	next := newSnapshot(model.CatalogSnapshot{
		Products:          products,
		TodayRevenueMinor: revenue,
		FetchedAt:         s.now().UTC(),
		Fingerprint:       fp,
	}, false)
	s.current.Store(next)

	if fp == prev.fingerprint {
		s.logger.Debug("catalog unchanged", "products", next.Len(), "today_revenue_minor", revenue)
	} else {
		s.logger.Info("catalog refreshed", "products", next.Len(), "today_revenue_minor", revenue)
	}

	if err := s.store.SaveCatalog(context.WithoutCancel(ctx), next.record()); err != nil {
		s.logger.Warn("catalog snapshot not persisted", "error", err)
	}
	return nil
}

// Close cancels every subscription and waits for the refresh worker.
// Safe to call more than once and before Start.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	subs, cancel := s.subs, s.cancel
	s.subs, s.cancel = nil, nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	s.signal.Close()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
