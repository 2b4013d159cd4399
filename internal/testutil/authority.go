package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/remote"
)

var errOffline = errors.New("fake authority offline")

// FakeAuthority is an in-memory remote.Authority with programmable faults.
//
// Commits are idempotent by sale id, exactly like the real authority: a
// repeated SubmitSale for a committed id succeeds without a second commit.
//
// Change handlers are invoked synchronously on the goroutine that calls
// Emit or SetProducts.
//
// Thread-safety: safe for concurrent use.
type FakeAuthority struct {
	mu       sync.Mutex
	online   bool
	products []model.Product
	revenue  int64

	commits map[string][]model.SaleLine
	order   []string
	calls   []string

	failSubmits int
	loseAcks    int
	rejects     map[string]string
	rejectAll   string
	catalogErr  error

	gate    chan struct{}
	gated   map[string]bool
	entered chan string

	nextSub int
	subs    map[int]*fakeSub
}

type fakeSub struct {
	mu        sync.Mutex
	scope     remote.Scope
	handler   func(remote.ChangeEvent)
	cancelled bool
}

var _ remote.Authority = (*FakeAuthority)(nil)

// NewFakeAuthority creates an online authority serving products.
func NewFakeAuthority(products ...model.Product) *FakeAuthority {
	return &FakeAuthority{
		online:   true,
		products: slices.Clone(products),
		commits:  make(map[string][]model.SaleLine),
		rejects:  make(map[string]string),
		subs:     make(map[int]*fakeSub),
	}
}

// SetOnline toggles reachability. While offline every call except
// Subscribe returns RemoteUnavailable.
func (f *FakeAuthority) SetOnline(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = on
}

// FailNextSubmits makes the next n SubmitSale calls fail as unavailable
// without committing.
func (f *FakeAuthority) FailNextSubmits(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSubmits = n
}

// LoseNextAcks makes the next n SubmitSale calls commit but report
// unavailable, as when the response is lost on the way back.
func (f *FakeAuthority) LoseNextAcks(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loseAcks = n
}

// Reject makes every submit of saleID fail with RemoteRejected.
func (f *FakeAuthority) Reject(saleID, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejects[saleID] = reason
}

// RejectAll makes every submit fail with RemoteRejected. An empty reason
// turns it off.
func (f *FakeAuthority) RejectAll(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectAll = reason
}

// FailCatalog makes FetchCatalog return err until called with nil.
func (f *FakeAuthority) FailCatalog(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogErr = err
}

// Block holds every SubmitSale until the returned release func is called.
// Each held call reports its sale id on Entered first.
func (f *FakeAuthority) Block() (release func()) {
	return f.BlockSales()
}

// BlockSales is Block restricted to submits of the given sale ids. With no
// ids it holds every submit.
func (f *FakeAuthority) BlockSales(ids ...string) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	f.gated = nil
	if len(ids) > 0 {
		f.gated = make(map[string]bool, len(ids))
		for _, id := range ids {
			f.gated[id] = true
		}
	}
	f.entered = make(chan string, 64)
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.gate = nil
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Entered receives the sale id of each SubmitSale held by Block.
func (f *FakeAuthority) Entered() <-chan string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entered
}

// SetProducts replaces the catalog and emits an update for each product.
func (f *FakeAuthority) SetProducts(products ...model.Product) {
	f.mu.Lock()
	f.products = slices.Clone(products)
	f.mu.Unlock()
	for _, p := range products {
		f.Emit(remote.ChangeEvent{Scope: remote.ScopeProducts, Kind: remote.ChangeUpdate, Key: p.ID})
	}
}

// SetRevenue sets revenue recorded before any commit made through the fake.
func (f *FakeAuthority) SetRevenue(minor int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revenue = minor
}

// Committed returns committed sale ids in commit order.
func (f *FakeAuthority) Committed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.order)
}

// CommittedItems returns the lines committed for saleID.
func (f *FakeAuthority) CommittedItems(saleID string) ([]model.SaleLine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, ok := f.commits[saleID]
	return slices.Clone(items), ok
}

// SubmitCalls returns the sale id of every SubmitSale call, in call order.
func (f *FakeAuthority) SubmitCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Subscribers returns the number of live subscriptions.
func (f *FakeAuthority) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Emit delivers ev to every live subscription for its scope.
func (f *FakeAuthority) Emit(ev remote.ChangeEvent) {
	f.mu.Lock()
	subs := make([]*fakeSub, 0, len(f.subs))
	for _, s := range f.subs {
		if s.scope == ev.Scope {
			subs = append(subs, s)
		}
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.mu.Lock()
		if !s.cancelled {
			s.handler(ev)
		}
		s.mu.Unlock()
	}
}

func (f *FakeAuthority) SubmitSale(ctx context.Context, idempotencyID string, items []model.SaleLine) error {
	const op = "submit sale"

	f.mu.Lock()
	f.calls = append(f.calls, idempotencyID)
	gate, entered := f.gate, f.entered
	if f.gated != nil && !f.gated[idempotencyID] {
		gate = nil
	}
	f.mu.Unlock()

	if gate != nil {
		entered <- idempotencyID
		select {
		case <-gate:
		case <-ctx.Done():
			return model.NewRemoteUnavailable(op, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.online {
		return model.NewRemoteUnavailable(op, errOffline)
	}
	if f.failSubmits > 0 {
		f.failSubmits--
		return model.NewRemoteUnavailable(op, errors.New("injected failure"))
	}
	if reason, ok := f.rejects[idempotencyID]; ok {
		return model.NewRemoteRejected(op, reason)
	}
	if f.rejectAll != "" {
		return model.NewRemoteRejected(op, f.rejectAll)
	}

	if _, ok := f.commits[idempotencyID]; !ok {
		f.commits[idempotencyID] = slices.Clone(items)
		f.order = append(f.order, idempotencyID)
		for _, line := range items {
			for _, p := range f.products {
				if p.ID == line.ProductID {
					f.revenue += p.PriceMinor * int64(line.Quantity)
				}
			}
		}
	}

	if f.loseAcks > 0 {
		f.loseAcks--
		return model.NewRemoteUnavailable(op, errors.New("response lost"))
	}
	return nil
}

func (f *FakeAuthority) FetchCatalog(ctx context.Context) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online {
		return nil, model.NewRemoteUnavailable("fetch catalog", errOffline)
	}
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	out := slices.Clone(f.products)
	if out == nil {
		out = []model.Product{}
	}
	return out, nil
}

func (f *FakeAuthority) FetchTodayRevenue(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online {
		return 0, model.NewRemoteUnavailable("fetch revenue", errOffline)
	}
	return f.revenue, nil
}

func (f *FakeAuthority) Subscribe(ctx context.Context, scope remote.Scope, handler func(remote.ChangeEvent)) (remote.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	s := &fakeSub{scope: scope, handler: handler}
	f.subs[id] = s

	var once sync.Once
	return remote.SubscriptionFunc(func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			s.mu.Lock()
			s.cancelled = true
			s.mu.Unlock()
		})
	}), nil
}

func (f *FakeAuthority) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online {
		return model.NewRemoteUnavailable("ping", errOffline)
	}
	return nil
}
