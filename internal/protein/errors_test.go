package protein

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconciliationError_Messages(t *testing.T) {
	tests := []struct {
		name string
		err  *ReconciliationError
		want string
	}{
		{
			name: "transient",
			err:  NewTransientError("P12345", 100, errors.New("dial tcp: refused")),
			want: "transient-remote: registry unreachable for P12345 after 100 attempts: dial tcp: refused",
		},
		{
			name: "ambiguous",
			err:  NewAmbiguousError("r1", "P12345", []string{"P1", "P2"}, SameOrganismMultiple),
			want: "ambiguous-identity: P12345 matches P1, P2 (same-organism-multiple) (record=r1)",
		},
		{
			name: "no match",
			err:  NewNoMatchError("r1", "P12345"),
			want: "no-match: no registry entry for P12345 (record=r1)",
		},
		{
			name: "invariant",
			err:  NewInvariantViolation("batch size must be positive"),
			want: "invariant-violation: batch size must be positive",
		},
		{
			name: "conflict",
			err:  NewMergeConflictError("t1", "2 isoform-parent links"),
			want: "structural-merge-conflict: 2 isoform-parent links (record=t1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("batch 3: %w", NewTransientError("P1", 2, nil))

	assert.True(t, IsTransient(err))
	assert.False(t, IsInvariantViolation(err))

	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeTransientRemote, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestReconciliationError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewTransientError("P1", 1, cause)
	assert.ErrorIs(t, err, cause)
}
