package activeindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
)

func TestStore_OpenMissingSeedsCutoff(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "active-index.json"), 1700000000)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), s.Cutoff())
	assert.Empty(t, s.Load().Approvals)
}

// P1 (active-index soundness, the non-status half): every entry with
// apply_time below cutoff is dropped on save.
func TestStore_SaveDropsBelowCutoff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active-index.json")
	s, err := Open(path, 1700000000)
	require.NoError(t, err)

	doc := s.Load()
	doc.Approvals["A1"] = &domain.ApprovalRecord{SpNo: "A1", ApplyTime: 1600000000, CurrentStatus: domain.StatusPending}
	doc.Approvals["A2"] = &domain.ApprovalRecord{SpNo: "A2", ApplyTime: 1800000000, CurrentStatus: domain.StatusPending}
	require.NoError(t, s.Save(doc))

	got := s.Load()
	_, hasA1 := got.Approvals["A1"]
	_, hasA2 := got.Approvals["A2"]
	assert.False(t, hasA1, "pre-cutoff approval must be dropped")
	assert.True(t, hasA2)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active-index.json")
	s, err := Open(path, 0)
	require.NoError(t, err)

	doc := s.Load()
	doc.Approvals["A1"] = &domain.ApprovalRecord{
		SpNo:          "A1",
		UserID:        "u1",
		CurrentStatus: domain.StatusPending,
		LeaveDates:    []string{"2026-2.14"},
	}
	require.NoError(t, s.Save(doc))

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	got := reopened.Load()
	require.Contains(t, got.Approvals, "A1")
	assert.Equal(t, []string{"2026-2.14"}, got.Approvals["A1"].LeaveDates)
}
