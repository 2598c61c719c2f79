// Package harness provides scenario testing for reconciliation passes.
//
// A scenario describes a registry, the curated records a pass starts from
// and assertions on the outcomes the pass emits and on the store it leaves
// behind. Each scenario runs against a fresh in-memory store.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config:
//	  batch_size: 1
//	  auto_fix_dead_accessions: true
//	registry:
//	  - primary_accession: P04637
//	    tax_id: 9606
//	    sequence: MEEPQSDPSV
//	failures:
//	  P04637: 2
//	records:
//	  - id: r1
//	    tax_id: 9606
//	    accession: P04637
//	    sequence: MEEPQSDPSA
//	assertions:
//	  - type: terminal
//	    record: r1
//	    kind: record-updated-sequence
//	  - type: final_state
//	    table: records
//	    where: { id: r1 }
//	    expect: { sequence: MEEPQSDPSV }
//
// Records use the seed file format of package fixture.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - outcome: an outcome of a kind was emitted for a record
//   - outcome_order: "record kind" pairs appear in the given order
//   - outcome_count: a kind was emitted exactly N times
//   - terminal: a record's single terminal outcome has the given kind
//   - final_state: queries a store table and verifies expected values
//   - absent: no row of a store table matches
//   - repairs: the pass ran exactly N range repairs
//
// # Deterministic Testing
//
// Passes run with sequential ids (the pass is id-1, created records id-2
// and up), a stepping clock and no wait between registry attempts, so the
// same scenario always produces the same trace. RunWithGolden compares that
// trace against testdata/golden/{name}.golden.
package harness
