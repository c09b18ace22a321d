// Package store provides SQLite-backed durable storage for regen
// documents and their regeneration artifacts.
//
// The store keeps:
//   - Documents: applied cursor, base bodies, history hash
//   - Operations: records in history order, as canonical JSON
//   - Suppressions and sketches
//   - Identity maps: append-only canonical snapshots, content-addressed
//   - Regen runs: append-only log of regeneration outcomes
//
// # Critical Patterns
//
// Logical ordering: every ordered read uses a position or seq column,
// never wall-clock time, so two stores fed the same calls read back
// identically.
//
// Content addressing: identity-map snapshots carry ir.IdentityMapHash of
// their text; saving a map equal to the latest snapshot is a no-op.
//
// Float-free persistence: records and sketches are encoded in nano-units
// through internal/ir, so a round trip is bit-exact.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
