package reconcile

import (
	"fmt"

	"github.com/roach88/protrecon/internal/conservation"
	"github.com/roach88/protrecon/internal/merge"
	"github.com/roach88/protrecon/internal/protein"
)

// DefaultBatchSize is the number of record ids per persistence unit.
const DefaultBatchSize = 50

// Config carries the pass settings. It is passed explicitly to the driver;
// nothing here is read from globals.
type Config struct {
	BatchSize             int
	ConservationThreshold float64

	// AutoFixDeadAccessions makes a no-match try the record's secondary
	// accessions before reporting a dead accession.
	AutoFixDeadAccessions bool

	// CreateMissingTranscripts creates transcript and chain records for
	// registry variants that have no local counterpart.
	CreateMissingTranscripts bool

	// BlockRepairOnSevere withholds range repair for changes scoring at or
	// below the threshold.
	BlockRepairOnSevere bool

	// ResolveConcurrency bounds concurrent registry resolutions inside a
	// batch. Values below 1 mean 1.
	ResolveConcurrency int

	// CanonicalPolicy names the merge.Selector used for duplicate groups.
	CanonicalPolicy string
}

// DefaultConfig returns the default pass settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:                DefaultBatchSize,
		ConservationThreshold:    conservation.DefaultThreshold,
		AutoFixDeadAccessions:    false,
		CreateMissingTranscripts: true,
		BlockRepairOnSevere:      true,
		ResolveConcurrency:       1,
		CanonicalPolicy:          merge.PolicyEarliestCreated,
	}
}

// check rejects settings that are programmer errors.
func (c Config) check() error {
	if c.BatchSize <= 0 {
		return protein.NewInvariantViolation(fmt.Sprintf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.ConservationThreshold < 0 || c.ConservationThreshold > 1 {
		return protein.NewInvariantViolation(fmt.Sprintf("conservation threshold %v outside [0,1]", c.ConservationThreshold))
	}
	return nil
}

func (c Config) concurrency() int {
	if c.ResolveConcurrency < 1 {
		return 1
	}
	return c.ResolveConcurrency
}
