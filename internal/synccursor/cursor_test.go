package synccursor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_OpenMissingSeedsBaseline(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "cursor.json"), 1700000000)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), s.Get().LastSyncEndTimestamp)
}

// P5: cursor is non-decreasing, and unchanged on failure.
func TestStore_AdvanceAndFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	s, err := Open(path, 100)
	require.NoError(t, err)

	require.NoError(t, s.AdvanceSuccess(400, 5))
	got := s.Get()
	assert.Equal(t, int64(400), got.LastSyncEndTimestamp)
	assert.Equal(t, 1, got.SuccessfulSyncs)
	assert.Equal(t, 5, got.TotalSynced)

	require.NoError(t, s.RecordFailure())
	got = s.Get()
	assert.Equal(t, int64(400), got.LastSyncEndTimestamp, "cursor must not move on failure")
	assert.Equal(t, 1, got.FailedSyncs)
}

func TestStore_Reset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	s, err := Open(path, 100)
	require.NoError(t, err)
	require.NoError(t, s.AdvanceSuccess(500, 1))
	require.NoError(t, s.Reset(100))
	assert.Equal(t, int64(100), s.Get().LastSyncEndTimestamp)
	assert.Equal(t, 0, s.Get().SuccessfulSyncs)
}
