// Package engine wires the offline-first sale pipeline together and owns
// its lifecycle.
//
// ARCHITECTURE:
//
// Components:
//   - cart.Session: the durable working cart
//   - sale.Submitter: checkout (commit, else queue)
//   - drain.Drainer + drain.Scheduler: retry of queued sales
//   - catalog.Synchronizer: cached catalog and today's revenue
//   - connectivity.Monitor (+ optional Prober): online/offline transitions
//
// Lifecycle:
//  1. New wires every component against one store and one authority.
//  2. Open rehydrates the cart and the cached catalog. After Open the
//     engine is fully usable offline, and one-shot callers need nothing more.
//  3. Start begins background work: the drain scheduler, the catalog
//     subscription worker and, when configured, the connectivity prober.
//     It triggers one drain for start-up.
//  4. Close stops background work, cancels every subscription and flushes
//     the cart. The store belongs to the caller and is not closed.
//
// Triggering:
// A drain runs on start-up, after every recorded checkout and on every
// transition to online. There is no timer-driven drain; the prober only
// observes reachability.
//
// Serialization:
// Cart mutations and checkouts are serialized by one engine mutex, so the
// cart a checkout reads is exactly the cart it clears.
package engine
