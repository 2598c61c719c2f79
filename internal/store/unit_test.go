package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnit_Commit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginUnit(ctx))
	assert.True(t, s.InUnit())
	require.NoError(t, s.Save(ctx, createTestRecord(t, "r1", "P1")))

	// Reads inside the unit see its writes.
	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)

	require.NoError(t, s.CommitUnit())
	assert.False(t, s.InUnit())

	ids, err := s.AllIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)
}

func TestUnit_Rollback(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, createTestRecord(t, "keep", "P1")))

	require.NoError(t, s.BeginUnit(ctx))
	require.NoError(t, s.Save(ctx, createTestRecord(t, "discard", "P2")))
	require.NoError(t, s.DeleteRecord(ctx, "keep"))
	require.NoError(t, s.RollbackUnit())

	ids, err := s.AllIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, ids)
}

func TestUnit_Misuse(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.CommitUnit(), ErrNoUnit)
	assert.ErrorIs(t, s.RollbackUnit(), ErrNoUnit)

	require.NoError(t, s.BeginUnit(ctx))
	assert.ErrorIs(t, s.BeginUnit(ctx), ErrUnitOpen)
	require.NoError(t, s.RollbackUnit())
}
