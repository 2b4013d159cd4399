// Package harness runs terminal scenarios and records deterministic traces.
//
// A scenario is a YAML file: the authority's catalog, untraced setup steps,
// a traced flow and final assertions. Each flow step produces one
// TraceEvent holding the step's outcome plus the terminal state after it
// (cart lines, pending sale ids, ids the authority has committed).
//
// The harness wires a real engine over an in-memory SQLite store wrapped in
// testutil.FaultyStore, a testutil.FakeAuthority, a sequence id generator
// and a step clock. The engine is opened but never started, so no
// background goroutine runs: a notify_online step that changes connectivity
// runs the drain inline. Traces are byte-identical across runs and are
// compared against golden files in testdata/golden.
//
// Example scenario:
//
//	name: offline_queue
//	description: sales taken offline are queued and committed in order
//	products:
//	  - {id: p-bagel, name: Bagel, price_minor: 275, stock: 10}
//	setup:
//	  - do: refresh_catalog
//	  - do: authority
//	    online: false
//	flow:
//	  - do: add
//	    product_id: p-bagel
//	  - do: checkout
//	    expect: {outcome: queued}
//	assertions:
//	  - type: pending
//	    ids: [sale-0001]
package harness
