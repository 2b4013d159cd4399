package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/sale"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s", event.Seq, event.Step)
		if event.Outcome != "" {
			fmt.Fprintf(&buf, " -> %s", event.Outcome)
		}
		if event.Error != "" {
			fmt.Fprintf(&buf, " (%s)", event.Error)
		}
		fmt.Fprintf(&buf, " pending=%v\n", event.Pending)
	}

	return buf.String()
}

func (h *Harness) evaluate(ctx context.Context, a Assertion, result *Result) error {
	switch a.Type {
	case AssertCart:
		c := h.engine.Cart()
		return assertLines(result.Trace, a.Lines, c.Lines())

	case AssertPending:
		ids, err := h.pendingIDs(ctx)
		if err != nil {
			return err
		}
		return assertIDs(result.Trace, AssertPending, a.IDs, ids)

	case AssertCommitted:
		return assertIDs(result.Trace, AssertCommitted, a.IDs, h.authority.Committed())

	case AssertSubmitCount:
		calls := h.authority.SubmitCalls()
		if len(calls) != a.Count {
			return &AssertionError{
				Type:     AssertSubmitCount,
				Expected: fmt.Sprintf("%d submit calls", a.Count),
				Actual:   fmt.Sprintf("%d submit calls %v", len(calls), calls),
				Trace:    result.Trace,
			}
		}
		return nil

	case AssertOutcomeOrder:
		return assertOutcomeOrder(result.Trace, a.Outcomes)

	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertIDs checks an id list exactly, order included. Nil and empty are
// equal.
func assertIDs(trace []TraceEvent, kind string, want, got []string) error {
	if len(want) == 0 && len(got) == 0 {
		return nil
	}
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    trace,
	}
}

func assertLines(trace []TraceEvent, want, got []model.SaleLine) error {
	if len(want) == 0 && len(got) == 0 {
		return nil
	}
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCart,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    trace,
	}
}

// assertOutcomeOrder checks checkout outcomes, in trace order.
func assertOutcomeOrder(trace []TraceEvent, want []string) error {
	var got []string
	for _, ev := range trace {
		if ev.Step == StepCheckout {
			got = append(got, ev.Outcome)
		}
	}
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutcomeOrder,
		Expected: strings.Join(want, ", "),
		Actual:   strings.Join(got, ", "),
		Trace:    trace,
	}
}

var checkoutOutcomes = []string{
	string(sale.OutcomeNoop), string(sale.OutcomeCommitted), string(sale.OutcomeQueued),
	string(sale.OutcomeRejected), string(sale.OutcomeNotRecorded),
}
