// Package store provides SQLite-backed durable local storage for offpos.
//
// The store holds three independent collections in one keyed table:
//   - cart: the working cart, singleton key "current"
//   - pendingSales: unconfirmed sale transactions keyed by idempotency id
//   - products: the cached catalog snapshot, singleton key "snapshot"
//
// # Guarantees
//
//   - Writes are durable across process restart (WAL, synchronous=FULL)
//   - A Get after a Put for the same key observes the new value
//   - Each Put/Insert/Delete is atomic on its own; no cross-collection
//     transactions exist or are needed
//   - GetAll returns records ORDER BY seq ASC, key ASC COLLATE BINARY, where
//     seq is assigned once at first insert (FIFO insertion order)
//   - Any SQLite failure surfaces as a StorageUnavailable model.Error;
//     missing keys surface as NotFound
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: Sale records are money-bearing, fsync every commit
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Record bodies are JSON. New fields are added as optional fields so older
// rows decode without a migration; schema_version records the shape each
// row was written with.
package store
