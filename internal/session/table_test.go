package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableLifecycle(t *testing.T) {
	table := NewTable()
	imsi := "IMSI001010000000001"

	s := &Session{ID: GenerateID(imsi, table.NextGeneration(imsi)), IMSI: imsi}
	table.Add(s)
	require.Equal(t, 1, table.Len())

	live, ok := table.Live(imsi)
	require.True(t, ok)
	require.Equal(t, s.ID, live.ID)

	got, ok := table.Get(s.ID)
	require.True(t, ok)
	require.Equal(t, s, got)

	table.Remove(s.ID)
	require.Zero(t, table.Len())
	_, ok = table.Live(imsi)
	require.False(t, ok)
}

func TestTableMarkTerminatingAllowsReplacement(t *testing.T) {
	table := NewTable()
	imsi := "IMSI001010000000001"

	old := &Session{ID: GenerateID(imsi, table.NextGeneration(imsi)), IMSI: imsi}
	table.Add(old)

	table.MarkTerminating(old)
	require.True(t, old.Terminating)
	_, ok := table.Live(imsi)
	require.False(t, ok, "terminating session no longer counts as live")

	replacement := &Session{ID: GenerateID(imsi, table.NextGeneration(imsi)), IMSI: imsi}
	require.NotEqual(t, old.ID, replacement.ID)
	table.Add(replacement)
	require.Equal(t, 2, table.Len(), "old session tracked until its drain completes")

	live, ok := table.Live(imsi)
	require.True(t, ok)
	require.Equal(t, replacement.ID, live.ID)

	// Removing the drained old session must not disturb the live index.
	table.Remove(old.ID)
	live, ok = table.Live(imsi)
	require.True(t, ok)
	require.Equal(t, replacement.ID, live.ID)
}
