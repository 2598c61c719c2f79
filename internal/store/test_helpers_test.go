package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/protrecon/internal/protein"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testCreatedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestRecord creates a primary record with an identity xref.
func createTestRecord(t *testing.T, id, accession string) *protein.CuratedRecord {
	t.Helper()
	r := protein.NewRecord(id, protein.KindPrimary)
	r.ShortLabel = id + "_human"
	r.TaxID = 9606
	r.Sequence = "MKTAYIAKQR"
	r.CreatedAt = testCreatedAt
	if _, err := r.AddXref(protein.IdentityXref(accession)); err != nil {
		t.Fatalf("AddXref() failed: %v", err)
	}
	return r
}

// createTestParticipation creates a participation with a feature range.
func createTestParticipation(id, interaction string) protein.Participation {
	return protein.Participation{
		ID:                id,
		InteractionID:     interaction,
		Stoichiometry:     1,
		BiologicalRole:    "enzyme",
		ExperimentalRoles: []string{"bait"},
		DetectionMethods:  []string{"MI:0018"},
		Confidences:       []protein.Confidence{{Type: "author-score", Value: "<0.5>"}},
		Features: []protein.Feature{{
			Type: "binding site",
			Ranges: []protein.Range{{
				StartStatus: "certain", EndStatus: "certain",
				FromStart: 2, ToStart: 2, FromEnd: 5, ToEnd: 5,
				Sequence: "KTAY",
			}},
		}},
	}
}
