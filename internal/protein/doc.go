// Package protein defines the value types shared by the reconciliation
// packages: registry entries, curated records with their participations,
// match outcomes, duplicate groups, merge reports and the tagged
// ReconciliationError.
//
// # Curated Records
//
// CuratedRecord keeps its cross-references, participations and parent links
// private. Callers mutate them through methods (AddXref, AddParticipation,
// ReplaceParent, ...) which enforce the structural invariants at the boundary:
//
//   - a participation id appears at most once per record
//   - only transcripts and chains carry parent links
//   - a primary record carries at most one uniprotkb identity xref
//
// Getters always return copies. Clone produces a deep copy so merges can run
// on snapshots without touching the loaded batch.
//
// # Canonical Keys
//
// Confidences and parameters are compared by value through a canonical
// string key: sorted-key JSON with NFC-normalized strings (see canonical.go).
package protein
