// Package store provides SQLite-backed storage for reconstructed runs.
//
// The store keeps:
//   - Runs: configuration snapshot, UID and the reported run totals
//   - Records: one coincidence record per emitting event
//   - Categories: scatter-order pairing tallies per run
//
// Store implements record.Sink and record.Reporter, so it can sit behind the
// engine directly or inside a record.MultiSink next to the CSV writer.
//
// # Ordering
//
// Every read orders by run id then event id, never by insertion order, so
// results are identical whatever the worker interleaving was.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - One open connection: Emit calls from all workers are serialised
package store
