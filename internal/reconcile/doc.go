// Package reconcile drives a reconciliation pass over the curated store.
//
// A pass walks every record id in creation order, in fixed-size batches.
// Each batch is one persistence unit:
//
//  1. Primary records are resolved against the registry, optionally
//     several at a time. A transient registry failure escapes the batch.
//  2. Records that resolved to the same registry entry are merged into a
//     canonical record chosen by the configured merge.Selector.
//  3. Surviving records are refreshed from their entry. A sequence change is
//     scored with the conservation scorer and carried on the outcome.
//  4. Transcripts and chains of each refreshed record are updated from the
//     entry's variants, and missing ones are created.
//
// Outcomes of a batch are buffered until the unit commits and are then
// pushed onto a queue. A Dispatcher drains that queue on its own goroutine
// and fans each outcome out to the Auditor and, for unblocked sequence
// changes, the RangeRepairer. When a batch rolls back, its outcomes are
// replaced by one record-skipped outcome per record.
//
// Every record reached in a pass receives exactly one terminal outcome and
// zero or more informational ones. A record is never processed twice in one
// pass, even when it is reached both directly and as a transcript of
// another record.
//
// RequestStop asks a running pass to stop after the current batch.
package reconcile
