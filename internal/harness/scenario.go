package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/protrecon/internal/fixture"
	"github.com/roach88/protrecon/internal/protein"
	"github.com/roach88/protrecon/internal/reconcile"
)

// Scenario defines a reconciliation test scenario: the registry the pass
// sees, the curated records it starts from and the assertions on the
// resulting outcomes and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides the driver defaults.
	Config *Settings `yaml:"config,omitempty"`

	// Registry lists the entries served by the static registry.
	Registry []protein.ExternalEntry `yaml:"registry,omitempty"`

	// Failures makes the registry fail transiently for an accession the
	// given number of times. A negative count fails every read.
	Failures map[string]int `yaml:"failures,omitempty"`

	// Records are saved in order before the pass runs.
	Records []fixture.Record `yaml:"records"`

	// Assertions validate the outcome trace and the final store.
	Assertions []Assertion `yaml:"assertions"`

	// ExpectError is a substring of the error the pass must return. Empty
	// means the pass must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Settings overrides reconcile.Config fields. Unset fields keep their
// defaults.
type Settings struct {
	BatchSize                *int     `yaml:"batch_size,omitempty"`
	ConservationThreshold    *float64 `yaml:"conservation_threshold,omitempty"`
	AutoFixDeadAccessions    *bool    `yaml:"auto_fix_dead_accessions,omitempty"`
	CreateMissingTranscripts *bool    `yaml:"create_missing_transcripts,omitempty"`
	BlockRepairOnSevere      *bool    `yaml:"block_repair_on_severe,omitempty"`
	CanonicalPolicy          string   `yaml:"canonical_policy,omitempty"`

	// MaxAttempts is the registry retry ceiling. Scenarios default to 3
	// with no wait between attempts.
	MaxAttempts int `yaml:"max_attempts,omitempty"`
}

// apply returns cfg with the overrides applied.
func (s *Settings) apply(cfg reconcile.Config) reconcile.Config {
	if s == nil {
		return cfg
	}
	if s.BatchSize != nil {
		cfg.BatchSize = *s.BatchSize
	}
	if s.ConservationThreshold != nil {
		cfg.ConservationThreshold = *s.ConservationThreshold
	}
	if s.AutoFixDeadAccessions != nil {
		cfg.AutoFixDeadAccessions = *s.AutoFixDeadAccessions
	}
	if s.CreateMissingTranscripts != nil {
		cfg.CreateMissingTranscripts = *s.CreateMissingTranscripts
	}
	if s.BlockRepairOnSevere != nil {
		cfg.BlockRepairOnSevere = *s.BlockRepairOnSevere
	}
	if s.CanonicalPolicy != "" {
		cfg.CanonicalPolicy = s.CanonicalPolicy
	}
	return cfg
}

func (s *Settings) maxAttempts() int {
	if s == nil || s.MaxAttempts <= 0 {
		return 3
	}
	return s.MaxAttempts
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "outcome": an outcome of Kind for Record exists (Accession optional)
	// - "outcome_order": the "record kind" pairs in Outcomes appear in order
	// - "outcome_count": Kind appears exactly Count times
	// - "terminal": Record has exactly one terminal outcome, of Kind
	// - "final_state": one row of Table matches Where and has Expect values
	// - "absent": no row of Table matches Where
	// - "repairs": the pass ran Count range repairs
	Type string `yaml:"type"`

	Record    string `yaml:"record,omitempty"`
	Kind      string `yaml:"kind,omitempty"`
	Accession string `yaml:"accession,omitempty"`

	// Outcomes are "record kind" pairs (used by outcome_order).
	Outcomes []string `yaml:"outcomes,omitempty"`

	// Count is the expected number of occurrences (used by outcome_count
	// and repairs).
	Count int `yaml:"count,omitempty"`

	// Table, Where and Expect are used by final_state and absent.
	Table  string                 `yaml:"table,omitempty"`
	Where  map[string]interface{} `yaml:"where,omitempty"`
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome      = "outcome"
	AssertOutcomeOrder = "outcome_order"
	AssertOutcomeCount = "outcome_count"
	AssertTerminal     = "terminal"
	AssertFinalState   = "final_state"
	AssertAbsent       = "absent"
	AssertRepairs      = "repairs"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Records) == 0 {
		return fmt.Errorf("records list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Records))
	for i, r := range s.Records {
		if r.ID == "" {
			return fmt.Errorf("records[%d]: id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("records[%d]: duplicate id %s", i, r.ID)
		}
		seen[r.ID] = true
	}

	for i, e := range s.Registry {
		if e.PrimaryAccession == "" {
			return fmt.Errorf("registry[%d]: primary_accession is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutcome, AssertTerminal:
		if a.Record == "" || a.Kind == "" {
			return fmt.Errorf("assertions[%d]: record and kind are required for %s", index, a.Type)
		}
	case AssertOutcomeOrder:
		if len(a.Outcomes) == 0 {
			return fmt.Errorf("assertions[%d]: outcomes list is required for outcome_order", index)
		}
		for _, o := range a.Outcomes {
			if _, _, err := splitOutcome(o); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertOutcomeCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for outcome_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	case AssertRepairs:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for repairs", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertAbsent:
		if a.Table == "" || len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: table and where are required for absent", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
