// Package store provides SQLite-backed storage for curated protein records
// and the side tables written during reconciliation.
//
// Tables:
//   - records: curated proteins, transcripts and chains (seq = creation order)
//   - xrefs: ordered cross-references per record
//   - parent_links: transcript/chain to primary relations
//   - participations: interaction memberships, payload stored as JSON
//   - audit_events: reconciliation outcomes, append-only
//   - range_reviews: feature ranges flagged after a sequence change
//
// # Units
//
// BeginUnit opens the transaction wrapping one reconciliation batch. While it
// is open every record read and write goes through it, so a batch sees its
// own changes and RollbackUnit discards all of them. Audit events and range
// reviews always use the database directly: they are written by the outcome
// dispatcher, possibly while the next batch's unit is open, and must survive
// a rollback.
//
// # Deterministic Ordering
//
// Record ids come back in creation order (ORDER BY seq). Participations keep
// their insertion order across owner changes.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
