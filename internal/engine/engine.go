package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/offpos/internal/cart"
	"github.com/roach88/offpos/internal/catalog"
	"github.com/roach88/offpos/internal/connectivity"
	"github.com/roach88/offpos/internal/drain"
	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/remote"
	"github.com/roach88/offpos/internal/sale"
)

// Store is the local durable storage the engine runs on.
type Store interface {
	cart.Store
	catalog.Store
	drain.Queue
	sale.Queue
	PendingCount(ctx context.Context) (int, error)
}

var (
	// ErrNotOpen is returned by operations that need Open first.
	ErrNotOpen = errors.New("engine: not open")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine: closed")
)

// Engine is the offline-first sale pipeline of one terminal.
//
// Thread-safety model:
//   - Open, Start, Close: call once each, in that order
//   - everything else: safe from any goroutine after Open
type Engine struct {
	store     Store
	authority remote.Authority
	ids       sale.IDGenerator
	now       func() time.Time
	logger    *slog.Logger

	probeInterval time.Duration

	// life outlives individual calls; drain passes owed to callers that
	// already returned run on it until Close.
	life     context.Context
	stopLife context.CancelFunc

	monitor   *connectivity.Monitor
	drainer   *drain.Drainer
	scheduler *drain.Scheduler
	catalog   *catalog.Synchronizer

	// mu serializes cart mutations with checkout.
	mu        sync.Mutex
	cart      *cart.Session
	submitter *sale.Submitter

	lifeMu  sync.Mutex
	opened  bool
	started bool
	closed  bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	unsubs  []func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the sale id source. Default: sale.UUIDv7Generator.
func WithIDGenerator(g sale.IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithClock sets the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithProbeInterval enables the connectivity prober. Zero disables it.
func WithProbeInterval(d time.Duration) Option {
	return func(e *Engine) { e.probeInterval = d }
}

// New wires an engine. Nothing is read or started until Open.
func New(store Store, authority remote.Authority, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		authority: authority,
		ids:       sale.UUIDv7Generator{},
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.life, e.stopLife = context.WithCancel(context.Background())
	e.monitor = connectivity.NewMonitor(e.logger.With("component", "connectivity"))
	e.drainer = drain.New(store, authority,
		drain.WithBaseContext(e.life),
		drain.WithLogger(e.logger.With("component", "drain")),
	)
	e.scheduler = drain.NewScheduler(e.drainer, e.logger.With("component", "drain"))
	e.catalog = catalog.New(store, authority,
		catalog.WithClock(e.now),
		catalog.WithLogger(e.logger.With("component", "catalog")),
	)
	return e
}

// Open rehydrates the cart and the cached catalog snapshot. It does not
// touch the network.
func (e *Engine) Open(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.opened {
		return nil
	}

	session, err := cart.Open(ctx, e.store, cart.WithLogger(e.logger.With("component", "cart")))
	if err != nil {
		return fmt.Errorf("engine open: %w", err)
	}
	if err := e.catalog.Load(ctx); err != nil {
		// A missing or unreadable cache is not fatal; Refresh replaces it.
		e.logger.Warn("cached catalog unavailable", "error", err)
	}

	e.mu.Lock()
	e.cart = session
	e.submitter = sale.New(session, e.authority, e.store,
		sale.WithDrainer(e.drainer),
		sale.WithIDGenerator(e.ids),
		sale.WithClock(e.now),
		sale.WithLogger(e.logger.With("component", "sale")),
	)
	e.mu.Unlock()

	e.opened = true
	return nil
}

// Start begins background work and triggers the start-up drain. It
// returns once the initial catalog refresh has been attempted.
func (e *Engine) Start(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	switch {
	case e.closed:
		return ErrClosed
	case !e.opened:
		return ErrNotOpen
	case e.started:
		return errors.New("engine: already started")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { return e.scheduler.Run(gctx) })
	if e.probeInterval > 0 {
		prober := connectivity.NewProber(e.authority, e.monitor, e.probeInterval,
			e.logger.With("component", "connectivity"))
		g.Go(func() error { return prober.Run(gctx) })
	}

	e.unsubs = append(e.unsubs, e.monitor.OnOnline(func() {
		e.scheduler.Trigger()
		e.catalog.RequestRefresh()
	}))

	if err := e.catalog.Start(ctx); err != nil {
		cancel()
		e.scheduler.Stop()
		_ = g.Wait()
		for _, u := range e.unsubs {
			u()
		}
		e.unsubs = nil
		return fmt.Errorf("engine start: %w", err)
	}

	e.cancel = cancel
	e.group = g
	e.started = true

	e.scheduler.Trigger()
	e.logger.Info("engine started")
	return nil
}

// Close stops background work, cancels subscriptions and flushes the cart.
// Safe to call more than once.
func (e *Engine) Close() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	for _, u := range e.unsubs {
		u()
	}
	e.unsubs = nil

	e.catalog.Close()
	e.scheduler.Stop()
	e.stopLife()
	if e.cancel != nil {
		e.cancel()
	}
	var errs []error
	if e.group != nil {
		if err := e.group.Wait(); err != nil {
			errs = append(errs, err)
		}
	}

	if e.opened {
		e.mu.Lock()
		if err := e.cart.Flush(context.Background()); err != nil {
			errs = append(errs, err)
		}
		e.mu.Unlock()
	}

	if e.started {
		e.logger.Info("engine stopped")
	}
	return errors.Join(errs...)
}

// Cart returns a copy of the working cart.
func (e *Engine) Cart() model.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cart == nil {
		return model.Cart{Items: []model.CartItem{}}
	}
	return e.cart.Cart()
}

// MutateCart applies op and returns the resulting cart. On a storage error
// the returned cart still reflects op; the next mutation re-persists it.
func (e *Engine) MutateCart(ctx context.Context, op cart.Op) (model.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cart == nil {
		return model.Cart{}, ErrNotOpen
	}
	err := e.cart.Apply(ctx, op)
	return e.cart.Cart(), err
}

// AddProduct adds one unit of the catalog product with id.
func (e *Engine) AddProduct(ctx context.Context, productID string) (model.Cart, error) {
	p, ok := e.catalog.Snapshot().Lookup(productID)
	if !ok {
		return e.Cart(), model.NewNotFound("add product", "products", productID)
	}
	return e.MutateCart(ctx, cart.Op{Kind: cart.OpAdd, Product: p})
}

// ScanBarcode adds one unit of the product whose barcode is code.
func (e *Engine) ScanBarcode(ctx context.Context, code string) (model.Product, model.Cart, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cart == nil {
		return model.Product{}, model.Cart{}, ErrNotOpen
	}
	p, err := e.cart.AddByBarcode(ctx, e.catalog.Snapshot(), code)
	return p, e.cart.Cart(), err
}

// Checkout submits the working cart. See sale.Submitter.Checkout. The
// cart is locked only while the sale is recorded; the drain that follows
// runs without it so the cashier can start the next sale.
func (e *Engine) Checkout(ctx context.Context) (sale.Result, error) {
	e.mu.Lock()
	submitter := e.submitter
	if submitter == nil {
		e.mu.Unlock()
		return sale.Result{}, ErrNotOpen
	}
	res, err := submitter.Record(ctx)
	e.mu.Unlock()

	submitter.Settle(ctx, &res)

	// Checkout outcomes double as reachability observations.
	switch res.Outcome {
	case sale.OutcomeCommitted, sale.OutcomeRejected:
		e.monitor.NotifyOnline()
	case sale.OutcomeQueued, sale.OutcomeNotRecorded:
		e.monitor.NotifyOffline()
	}
	if res.Outcome == sale.OutcomeCommitted {
		e.catalog.RequestRefresh()
	}
	return res, err
}

// PendingCount returns the number of unconfirmed sales.
func (e *Engine) PendingCount(ctx context.Context) (int, error) {
	return e.store.PendingCount(ctx)
}

// PendingSales returns unconfirmed sales oldest first.
func (e *Engine) PendingSales(ctx context.Context) ([]model.PendingSale, error) {
	return e.store.PendingSales(ctx)
}

// Catalog returns the current catalog snapshot.
func (e *Engine) Catalog() *catalog.Snapshot {
	return e.catalog.Snapshot()
}

// RefreshCatalog fetches the catalog now.
func (e *Engine) RefreshCatalog(ctx context.Context) error {
	err := e.catalog.Refresh(ctx)
	switch {
	case err == nil:
		e.monitor.NotifyOnline()
	case model.IsRemoteUnavailable(err):
		e.monitor.NotifyOffline()
	}
	return err
}

// Drain runs a drain pass now, coalescing with one already in flight.
func (e *Engine) Drain(ctx context.Context) (drain.Report, error) {
	return e.drainer.Drain(ctx)
}

// DiscardPending resolves a queued sale the authority keeps rejecting. See
// drain.Drainer.Discard; a sale whose outcome cannot be learned stays
// queued.
func (e *Engine) DiscardPending(ctx context.Context, id string) (drain.Resolution, error) {
	res, err := e.drainer.Discard(ctx, id)
	switch {
	case err == nil:
		e.monitor.NotifyOnline()
	case model.IsRemoteUnavailable(err):
		e.monitor.NotifyOffline()
	}
	return res, err
}

// NotifyOnline records that connectivity was restored. On a transition
// this triggers a drain and a catalog refresh once the engine is started.
func (e *Engine) NotifyOnline() bool {
	return e.monitor.NotifyOnline()
}

// NotifyOffline records that connectivity was lost.
func (e *Engine) NotifyOffline() bool {
	return e.monitor.NotifyOffline()
}

// Connectivity returns the connectivity monitor, for subscribing to
// transitions.
func (e *Engine) Connectivity() *connectivity.Monitor {
	return e.monitor
}

// LastScheduledDrain returns the report of the most recent background
// drain and how many have run.
func (e *Engine) LastScheduledDrain() (drain.Report, int) {
	return e.scheduler.Last()
}
