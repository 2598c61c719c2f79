package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/protrecon/internal/reconcile"
	"github.com/roach88/protrecon/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Record, event.Kind)
			if event.Accession != "" {
				fmt.Fprintf(&buf, " %s", event.Accession)
			}
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

// splitOutcome parses a "record kind" pair.
func splitOutcome(s string) (record, kind string, err error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("outcome %q must be \"record kind\"", s)
	}
	return fields[0], fields[1], nil
}

// assertOutcome checks that the trace holds an outcome of the given kind for
// the record, and for the accession when one is named.
func assertOutcome(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Record != assertion.Record || event.Kind != assertion.Kind {
			continue
		}
		if assertion.Accession == "" || event.Accession == assertion.Accession {
			return nil
		}
	}

	expected := fmt.Sprintf("%s for record %s", assertion.Kind, assertion.Record)
	if assertion.Accession != "" {
		expected += " with accession " + assertion.Accession
	}
	return &AssertionError{
		Type:     AssertOutcome,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertOutcomeOrder checks if outcomes appear in the specified order.
// Outcomes don't need to be consecutive (intervening outcomes are allowed).
func assertOutcomeOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected outcome
	positions := make(map[string]int)
	for i, event := range trace {
		label := event.Label()
		if positions[label] == 0 {
			positions[label] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all outcomes found
	for _, want := range assertion.Outcomes {
		label := strings.Join(strings.Fields(want), " ")
		if positions[label] == 0 {
			return &AssertionError{
				Type:     AssertOutcomeOrder,
				Expected: fmt.Sprintf("all outcomes present: %v", assertion.Outcomes),
				Actual:   fmt.Sprintf("missing outcome: %s", want),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Outcomes); i++ {
		prev := strings.Join(strings.Fields(assertion.Outcomes[i-1]), " ")
		curr := strings.Join(strings.Fields(assertion.Outcomes[i]), " ")

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertOutcomeOrder,
				Expected: fmt.Sprintf("outcomes in order: %v", assertion.Outcomes),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertOutcomeCount checks if the kind appears exactly the specified number
// of times. A record narrows the count to that record.
func assertOutcomeCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Kind != assertion.Kind {
			continue
		}
		if assertion.Record != "" && event.Record != assertion.Record {
			continue
		}
		count++
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertTerminal checks that the record has exactly one terminal outcome
// and that it has the expected kind.
func assertTerminal(trace []TraceEvent, assertion Assertion) error {
	var kinds []string
	for _, event := range trace {
		if event.Record == assertion.Record && reconcile.OutcomeKind(event.Kind).Terminal() {
			kinds = append(kinds, event.Kind)
		}
	}

	if len(kinds) != 1 || kinds[0] != assertion.Kind {
		actual := "no terminal outcome"
		if len(kinds) > 0 {
			actual = fmt.Sprintf("terminal outcomes %v", kinds)
		}
		return &AssertionError{
			Type:     AssertTerminal,
			Expected: fmt.Sprintf("single terminal %s for record %s", assertion.Kind, assertion.Record),
			Actual:   actual,
			Trace:    trace,
		}
	}
	return nil
}

// assertRepairs checks how many range repairs the pass ran.
func assertRepairs(summary *reconcile.PassSummary, assertion Assertion) error {
	if summary.Repairs != int64(assertion.Count) {
		return &AssertionError{
			Type:     AssertRepairs,
			Expected: fmt.Sprintf("%d range repairs", assertion.Count),
			Actual:   fmt.Sprintf("%d range repairs", summary.Repairs),
		}
	}
	return nil
}

// selectRows runs a parameterized SELECT over a validated table.
func selectRows(ctx context.Context, st *store.Store, assertion Assertion) (columns []string, rows []map[string]interface{}, err error) {
	if assertion.Table == "" {
		return nil, nil, fmt.Errorf("%s assertion requires table name", assertion.Type)
	}

	// Validate table name to prevent SQL injection (identifiers can't be parameterized)
	if !validIdentifier.MatchString(assertion.Table) {
		return nil, nil, fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	// Build WHERE clause with parameterized SQL (never interpolate values)
	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return nil, nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	result, err := st.DB().QueryContext(ctx, query, whereArgs...)
	if err != nil {
		return nil, nil, &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer result.Close()

	columns, err = result.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("get columns: %w", err)
	}

	for result.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := result.Scan(valuePtrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, rows, nil
}

// assertFinalState checks if the final state table contains expected values.
// Exactly one row may match Where; Expect is checked with subset semantics.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	columns, rows, err := selectRows(ctx, st, assertion)
	if err != nil {
		return err
	}

	whereDesc := formatWhereClause(assertion.Where)
	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(rows)),
		}
	}
	actualRow := rows[0]

	// Sort keys so the first reported mismatch is stable
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// assertAbsent checks that no row of the table matches Where.
func assertAbsent(ctx context.Context, st *store.Store, assertion Assertion) error {
	_, rows, err := selectRows(ctx, st, assertion)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("no row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d rows matched", len(rows)),
		}
	}
	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
//
// Security: Column names are validated against a whitelist pattern to prevent
// SQL injection via identifier interpolation.
func buildWhereClause(where map[string]interface{}) (string, []interface{}, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	// Sort keys for deterministic query generation
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML-decoded value to a SQL-compatible value.
func toSQLValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string, int, int64, float64:
		return val
	case bool:
		// SQLite stores booleans as integers
		if val {
			return int64(1)
		}
		return int64(0)
	default:
		// For other types, convert to string
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares expected and actual values from state tables.
// Handles type coercion for SQLite values which may be returned as different types.
func stateValuesEqual(expected, actual interface{}) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	// SQLite TEXT columns may come back as []byte
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		if actualStr, ok := actual.(string); ok {
			return exp == actualStr
		}
		return false
	case int:
		if actualInt, ok := actual.(int64); ok {
			return int64(exp) == actualInt
		}
		if actualInt, ok := actual.(int); ok {
			return exp == actualInt
		}
		return false
	case int64:
		if actualInt, ok := actual.(int64); ok {
			return exp == actualInt
		}
		return false
	case float64:
		if actualFloat, ok := actual.(float64); ok {
			return exp == actualFloat
		}
		if actualInt, ok := actual.(int64); ok {
			return exp == float64(actualInt)
		}
		return false
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		// SQLite stores booleans as integers
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		return false
	}

	// Fallback to DeepEqual for complex types
	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store   *store.Store
	Ctx     context.Context
	Summary *reconcile.PassSummary
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state and absent
// assertions and the pass summary for repairs.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOutcome:
			err = assertOutcome(result.Trace, assertion)
		case AssertOutcomeOrder:
			err = assertOutcomeOrder(result.Trace, assertion)
		case AssertOutcomeCount:
			err = assertOutcomeCount(result.Trace, assertion)
		case AssertTerminal:
			err = assertTerminal(result.Trace, assertion)
		case AssertRepairs:
			summary := result.Summary
			if summary == nil && actx != nil {
				summary = actx.Summary
			}
			if summary == nil {
				err = fmt.Errorf("assertion[%d]: repairs requires a pass summary", i)
			} else {
				err = assertRepairs(summary, assertion)
			}
		case AssertFinalState, AssertAbsent:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			} else {
				err = assertAbsent(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
