package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offpos/internal/model"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			if !result.Pass {
				t.Fatalf("scenario failed:\n%s", strings.Join(result.Errors, "\n"))
			}
			assert.Len(t, result.Trace, len(scenario.Flow))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/offline_queue.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	a, err := TraceSnapshot{ScenarioName: scenario.Name, Trace: first.Trace}.Canonical()
	require.NoError(t, err)
	b, err := TraceSnapshot{ScenarioName: scenario.Name, Trace: second.Trace}.Canonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expect
description: expects a commit while the authority is down
products:
  - {id: p-tea, name: Tea, price_minor: 250, stock: 5}
setup:
  - do: refresh_catalog
  - do: authority
    online: false
flow:
  - do: add
    product_id: p-tea
  - do: checkout
    expect: {outcome: committed, error: none, remaining: 0}
assertions:
  - type: pending
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, `outcome: expected "committed", got "queued"`)
	assert.Contains(t, joined, "drain remaining: expected 0, got 1")
	assert.Contains(t, joined, "Assertion failed: pending")
}

func TestRun_ExpectDrainReportMissing(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: no_drain
description: an empty checkout never drains
flow:
  - do: checkout
    expect: {outcome: noop, committed: 0}
assertions:
  - type: committed
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected a drain report, got none")
}

func TestRun_StepErrorIsTraced(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unknown_product
description: adding a product missing from the catalog is a traced error
flow:
  - do: add
    product_id: p-ghost
    expect: {error: NOT_FOUND}
  - do: scan
    barcode: "000"
    expect: {error: NOT_FOUND}
assertions:
  - type: cart
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	last, ok := result.Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.Seq)
	assert.Equal(t, "NOT_FOUND", last.Error)
	assert.Empty(t, last.Cart)
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: setup_fails
description: setup steps must succeed
setup:
  - do: add
    product_id: p-ghost
flow:
  - do: drain
assertions:
  - type: pending
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0] add")
	assert.True(t, model.IsNotFound(err))
}

func TestRun_RestartFailsWhenCartCannotFlush(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: restart_dirty_cart
description: a cart that cannot be saved blocks a clean restart
products:
  - {id: p-tea, name: Tea, price_minor: 250, stock: 5}
setup:
  - do: refresh_catalog
  - do: store_fault
    fault: {op: save cart, times: -1}
flow:
  - do: add
    product_id: p-tea
    expect: {error: STORAGE_UNAVAILABLE}
  - do: restart
assertions:
  - type: cart
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow[1] restart")
	assert.Contains(t, err.Error(), "close engine")
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("checkout: %w: %w", model.ErrSaleNotRecorded, model.NewStorageUnavailable("enqueue sale", errors.New("disk"))), "SALE_NOT_RECORDED"},
		{model.NewRemoteRejected("submit sale", "insufficient_stock"), "REMOTE_REJECTED"},
		{fmt.Errorf("refresh: %w", model.NewRemoteUnavailable("fetch catalog", errors.New("down"))), "REMOTE_UNAVAILABLE"},
		{errors.New("plain"), "ERROR"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorCode(tt.err), "%v", tt.err)
	}
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertPending,
		Expected: "[sale-0001]",
		Actual:   "[]",
		Trace: []TraceEvent{
			{Seq: 1, Step: StepCheckout, Outcome: "not_recorded", Error: "SALE_NOT_RECORDED", Pending: []string{}},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: pending")
	assert.Contains(t, msg, "Expected: [sale-0001]")
	assert.Contains(t, msg, "Actual: []")
	assert.Contains(t, msg, "[1] checkout -> not_recorded (SALE_NOT_RECORDED)")
}

func TestAssertOutcomeOrder(t *testing.T) {
	trace := []TraceEvent{
		{Step: StepAdd},
		{Step: StepCheckout, Outcome: "queued"},
		{Step: StepDrain},
		{Step: StepCheckout, Outcome: "committed"},
	}
	require.NoError(t, assertOutcomeOrder(trace, []string{"queued", "committed"}))

	err := assertOutcomeOrder(trace, []string{"committed", "queued"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "queued, committed", ae.Actual)
}

func TestAssertIDs_NilEqualsEmpty(t *testing.T) {
	require.NoError(t, assertIDs(nil, AssertCommitted, nil, []string{}))
	require.Error(t, assertIDs(nil, AssertCommitted, []string{"a", "b"}, []string{"b", "a"}))
}
