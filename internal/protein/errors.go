package protein

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes reconciliation errors.
type ErrorCode string

const (
	// ErrCodeTransientRemote indicates the registry stayed unreachable after
	// the retry ceiling.
	ErrCodeTransientRemote ErrorCode = "transient-remote"

	// ErrCodeAmbiguousIdentity indicates several candidates remain after
	// disambiguation.
	ErrCodeAmbiguousIdentity ErrorCode = "ambiguous-identity"

	// ErrCodeStructuralMergeConflict indicates a merge step could not be
	// applied without guessing.
	ErrCodeStructuralMergeConflict ErrorCode = "structural-merge-conflict"

	// ErrCodeInvariantViolation indicates a programmer error. It aborts a pass.
	ErrCodeInvariantViolation ErrorCode = "invariant-violation"

	// ErrCodeNoMatch indicates the accession resolves to nothing.
	ErrCodeNoMatch ErrorCode = "no-match"
)

// ReconciliationError is the tagged error raised by the reconciliation
// packages. Only the payload fields relevant to Code are set.
type ReconciliationError struct {
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	RecordID   string
	Accession  string
	Candidates []string
	Reason     AmbiguityReason

	// Attempts is set for transient-remote errors.
	Attempts int

	Err error
}

// Error formats the message from the tag and payload.
func (e *ReconciliationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	switch e.Code {
	case ErrCodeTransientRemote:
		fmt.Fprintf(&b, ": registry unreachable for %s after %d attempts", e.Accession, e.Attempts)
	case ErrCodeAmbiguousIdentity:
		fmt.Fprintf(&b, ": %s matches %s (%s)", e.Accession, strings.Join(e.Candidates, ", "), e.Reason)
	case ErrCodeNoMatch:
		fmt.Fprintf(&b, ": no registry entry for %s", e.Accession)
	default:
		if e.Message != "" {
			b.WriteString(": ")
			b.WriteString(e.Message)
		}
	}
	if e.RecordID != "" {
		fmt.Fprintf(&b, " (record=%s)", e.RecordID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// NewTransientError reports an exhausted retry ceiling.
func NewTransientError(accession string, attempts int, err error) *ReconciliationError {
	return &ReconciliationError{
		Code:      ErrCodeTransientRemote,
		Accession: accession,
		Attempts:  attempts,
		Err:       err,
	}
}

// NewAmbiguousError reports a decision-required ambiguity.
func NewAmbiguousError(recordID, accession string, candidates []string, reason AmbiguityReason) *ReconciliationError {
	return &ReconciliationError{
		Code:       ErrCodeAmbiguousIdentity,
		RecordID:   recordID,
		Accession:  accession,
		Candidates: candidates,
		Reason:     reason,
	}
}

// NewMergeConflictError reports a structural conflict on recordID.
func NewMergeConflictError(recordID, message string) *ReconciliationError {
	return &ReconciliationError{
		Code:     ErrCodeStructuralMergeConflict,
		Message:  message,
		RecordID: recordID,
	}
}

// NewInvariantViolation reports a programmer error.
func NewInvariantViolation(message string) *ReconciliationError {
	return &ReconciliationError{
		Code:    ErrCodeInvariantViolation,
		Message: message,
	}
}

// NewNoMatchError reports an accession missing from the registry.
func NewNoMatchError(recordID, accession string) *ReconciliationError {
	return &ReconciliationError{
		Code:      ErrCodeNoMatch,
		RecordID:  recordID,
		Accession: accession,
	}
}

// CodeOf returns the code of the first ReconciliationError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var re *ReconciliationError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return "", false
}

// IsCode reports whether err wraps a ReconciliationError with code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsTransient returns true for exhausted registry retries.
func IsTransient(err error) bool {
	return IsCode(err, ErrCodeTransientRemote)
}

// IsInvariantViolation returns true for pass-aborting programmer errors.
func IsInvariantViolation(err error) bool {
	return IsCode(err, ErrCodeInvariantViolation)
}

// IsMergeConflict returns true for structural merge conflicts.
func IsMergeConflict(err error) bool {
	return IsCode(err, ErrCodeStructuralMergeConflict)
}
