package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/offpos/internal/engine"
	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/store"
	"github.com/roach88/offpos/internal/testutil"
)

// Notify outcomes recorded for notify_online steps.
const (
	OutcomeReconnected = "reconnected"
	OutcomeUnchanged   = "unchanged"
)

// Harness drives one terminal through a scenario.
type Harness struct {
	store     *testutil.FaultyStore
	authority *testutil.FakeAuthority
	ids       *testutil.SequenceIDGenerator
	clock     *testutil.StepClock
	logger    *slog.Logger
	engine    *engine.Engine
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the engine. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario against a fresh in-memory terminal and returns
// the trace and assertion results.
//
// Returns an error only when the harness itself cannot proceed (store
// unavailable, a setup step failed, restart failed). Step errors are part
// of the trace.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:     testutil.NewFaultyStore(st),
		authority: testutil.NewFakeAuthority(scenario.Products...),
		ids:       testutil.NewSequenceIDGenerator(""),
		clock:     testutil.NewStepClock(time.Time{}),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.open(ctx); err != nil {
		return nil, err
	}
	defer func() { h.engine.Close() }()

	for i, step := range scenario.Setup {
		if _, err := h.exec(ctx, step); err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Do, err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		ev, err := h.exec(ctx, step)
		if err != nil {
			var fatal *fatalError
			if errors.As(err, &fatal) {
				return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Do, fatal.err)
			}
			ev.Error = errorCode(err)
		}
		ev.Seq = i + 1
		ev.Step = step.Do
		if err := h.observe(ctx, &ev); err != nil {
			return nil, err
		}
		result.Trace = append(result.Trace, ev)

		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, ev) {
				result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Do, msg))
			}
		}
	}

	for i, a := range scenario.Assertions {
		if err := h.evaluate(ctx, a, result); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return result, nil
}

// fatalError marks a step failure that aborts the run.
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }

func (h *Harness) open(ctx context.Context) error {
	h.engine = engine.New(h.store, h.authority,
		engine.WithIDGenerator(h.ids),
		engine.WithClock(h.clock.Now),
		engine.WithLogger(h.logger),
		engine.WithProbeInterval(0),
	)
	if err := h.engine.Open(ctx); err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	return nil
}

// exec runs one step. The engine is opened but never started, so every
// drain happens on this goroutine and traces are deterministic.
func (h *Harness) exec(ctx context.Context, step Step) (TraceEvent, error) {
	var ev TraceEvent
	eng := h.engine

	switch step.Do {
	case StepAdd:
		for range max(1, step.Qty) {
			if _, err := eng.AddProduct(ctx, step.ProductID); err != nil {
				return ev, err
			}
		}

	case StepScan:
		_, _, err := eng.ScanBarcode(ctx, step.Barcode)
		return ev, err

	case StepCart:
		_, err := eng.MutateCart(ctx, *step.Op)
		return ev, err

	case StepCheckout:
		res, err := eng.Checkout(ctx)
		ev.Outcome = string(res.Outcome)
		ev.SaleID = res.SaleID
		ev.Drain = res.Drain
		return ev, err

	case StepDrain:
		r, err := eng.Drain(ctx)
		ev.Drain = &r
		return ev, err

	case StepRefreshCatalog:
		return ev, eng.RefreshCatalog(ctx)

	case StepAuthority:
		if step.Online != nil {
			h.authority.SetOnline(*step.Online)
		}
		if step.FailSubmits > 0 {
			h.authority.FailNextSubmits(step.FailSubmits)
		}
		if step.LoseAcks > 0 {
			h.authority.LoseNextAcks(step.LoseAcks)
		}
		if step.RejectAll != nil {
			h.authority.RejectAll(*step.RejectAll)
		}

	case StepStoreFault:
		h.store.Fail(step.Fault.Op, step.Fault.Times)

	case StepHealStore:
		h.store.Heal()

	case StepNotifyOnline:
		if !eng.NotifyOnline() {
			ev.Outcome = OutcomeUnchanged
			return ev, nil
		}
		ev.Outcome = OutcomeReconnected
		r, err := eng.Drain(ctx)
		ev.Drain = &r
		return ev, err

	case StepRestart:
		if err := eng.Close(); err != nil {
			return ev, &fatalError{err: fmt.Errorf("close engine: %w", err)}
		}
		if err := h.open(ctx); err != nil {
			return ev, &fatalError{err: err}
		}

	case StepSeedPending:
		sale := model.PendingSale{ID: step.Sale.ID, Items: step.Sale.Items, CreatedAt: h.clock.Now().UTC()}
		if err := h.store.Store.EnqueueSale(ctx, sale); err != nil {
			return ev, &fatalError{err: err}
		}

	case StepAdvance:
		d, _ := time.ParseDuration(step.By)
		h.clock.Advance(d)

	default:
		return ev, &fatalError{err: fmt.Errorf("unknown step %q", step.Do)}
	}
	return ev, nil
}

// observe fills the terminal state of ev. It reads the underlying store so
// injected faults never hide the queue.
func (h *Harness) observe(ctx context.Context, ev *TraceEvent) error {
	c := h.engine.Cart()
	ev.Cart = c.Lines()

	ids, err := h.pendingIDs(ctx)
	if err != nil {
		return err
	}
	ev.Pending = ids

	ev.Committed = h.authority.Committed()
	if ev.Committed == nil {
		ev.Committed = []string{}
	}
	return nil
}

func (h *Harness) pendingIDs(ctx context.Context) ([]string, error) {
	pending, err := h.store.Store.PendingSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}
	return ids, nil
}

// errorCode is the code recorded in the trace for a step error.
func errorCode(err error) string {
	if errors.Is(err, model.ErrSaleNotRecorded) {
		return "SALE_NOT_RECORDED"
	}
	if code := model.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

func checkExpect(want *Expect, ev TraceEvent) []string {
	var errs []string
	if want.Outcome != "" && want.Outcome != ev.Outcome {
		errs = append(errs, fmt.Sprintf("outcome: expected %q, got %q", want.Outcome, ev.Outcome))
	}
	switch {
	case want.Error == "":
	case want.Error == "none":
		if ev.Error != "" {
			errs = append(errs, fmt.Sprintf("error: expected none, got %s", ev.Error))
		}
	case want.Error != ev.Error:
		errs = append(errs, fmt.Sprintf("error: expected %s, got %q", want.Error, ev.Error))
	}
	if want.Committed != nil || want.Remaining != nil {
		if ev.Drain == nil {
			return append(errs, "drain: expected a drain report, got none")
		}
		if want.Committed != nil && *want.Committed != ev.Drain.Committed {
			errs = append(errs, fmt.Sprintf("drain committed: expected %d, got %d", *want.Committed, ev.Drain.Committed))
		}
		if want.Remaining != nil && *want.Remaining != ev.Drain.Remaining {
			errs = append(errs, fmt.Sprintf("drain remaining: expected %d, got %d", *want.Remaining, ev.Drain.Remaining))
		}
	}
	return errs
}
