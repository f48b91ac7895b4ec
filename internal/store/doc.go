// Package store provides a SQLite-backed run log for compiled artifacts
// and their invocations.
//
// The log has two tables:
//   - artifacts: one row per module fingerprint, holding the source text,
//     the lowered text and the translated LLVM IR
//   - invocations: one row per packed call, holding the arguments, the
//     results or the trap message
//
// # Ordering
//
// Rows are stamped with a logical sequence number from a SeqSource, never
// with wall-clock time. Reads order by seq ASC, id ASC COLLATE BINARY, so
// two identical runs read back identically.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
