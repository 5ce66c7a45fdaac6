package appstate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateDefaultsToZeroValue(t *testing.T) {
	s := New("")
	require.Equal(t, "", s.ActiveModel())
	require.Equal(t, int64(0), s.DocumentCount())
}

func TestStateSetAndReadBack(t *testing.T) {
	s := New("")
	s.SetActiveModel("llama3")
	s.SetDocumentCount(7)

	snap := s.Snapshot()
	require.Equal(t, "llama3", snap.ActiveModel)
	require.Equal(t, int64(7), snap.DocumentCount)
	require.False(t, snap.LastUpdated.IsZero())
}

func TestStatePersistsAndReloadsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s := New(path)
	s.SetActiveModel("mistral")
	s.SetDocumentCount(3)

	reloaded := New(path)
	require.Equal(t, "mistral", reloaded.ActiveModel())
	require.Equal(t, int64(3), reloaded.DocumentCount())
}
