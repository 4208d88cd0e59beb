// Package store provides the SQLite delivery journal.
//
// The journal is an append-only audit log with:
//   - Sessions: one row per playback session (document, ref, endpoint)
//   - Deliveries: every message handed to the delivery channel, scheduled
//     or manual
//
// # Ordering
//
// Rows are stamped with seq, a logical clock seeded from the highest seq on
// disk when the store opens. Every list query orders by seq ASC, id ASC
// COLLATE BINARY; wall-clock timestamps are kept for display only.
//
// A row in the journal records that a message was handed to the channel, not
// that the executor received it.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
