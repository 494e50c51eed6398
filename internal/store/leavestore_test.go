package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
)

func TestStore_OpenMissingFileStartsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "leave-store.json"))
	require.NoError(t, err)
	doc := s.Load()
	assert.Empty(t, doc.LeaveData)
	assert.Empty(t, doc.EmployeeInfo)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leave-store.json")
	s, err := Open(path)
	require.NoError(t, err)

	doc := domain.NewLeaveDocument()
	doc.LeaveData["u1"] = map[string]string{"2026-2.14": "Pending"}
	doc.EmployeeInfo["u1"] = domain.EmployeeInfo{Name: "Alice", Department: "Eng"}
	require.NoError(t, s.Save(doc))

	reopened, err := Open(path)
	require.NoError(t, err)
	got := reopened.Load()
	assert.Equal(t, "Pending", got.LeaveData["u1"]["2026-2.14"])
	assert.Equal(t, "Alice", got.EmployeeInfo["u1"].Name)
	assert.NotEmpty(t, got.UpdatedAt)
}

func TestStore_LoadReturnsIndependentCopy(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "leave-store.json"))
	require.NoError(t, err)

	doc := domain.NewLeaveDocument()
	doc.LeaveData["u1"] = map[string]string{"2026-2.14": "Pending"}
	require.NoError(t, s.Save(doc))

	copy1 := s.Load()
	copy1.LeaveData["u1"]["2026-2.14"] = "Approved"

	copy2 := s.Load()
	assert.Equal(t, "Pending", copy2.LeaveData["u1"]["2026-2.14"], "mutating one loaded copy must not affect another")
}
