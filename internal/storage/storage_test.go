package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.Context(), filepath.Join(t.TempDir(), "persona.json"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStateCreatedOnFirstRead(t *testing.T) {
	s := newTestStorage(t)

	st, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, "neutral", st.Mood)
	assert.False(t, st.CreatedAt.IsZero())
}

func TestThoughtLogOrderAndCounter(t *testing.T) {
	s := newTestStorage(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendThought(Thought{ID: "a", Content: "first", At: at}))
	require.NoError(t, s.AppendThought(Thought{ID: "b", Content: "second", At: at.Add(time.Minute)}))

	recent, err := s.RecentThoughts(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ID, "most recent first")

	st, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalThoughts)
}

func TestMarkPublished(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.AppendThought(Thought{ID: "a", Content: "hello"}))

	require.NoError(t, s.MarkPublished("a", "ext-42"))
	recent, err := s.RecentThoughts(1)
	require.NoError(t, err)
	assert.Equal(t, "ext-42", recent[0].PublishedID)
}

func TestExpensesSince(t *testing.T) {
	s := newTestStorage(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendExpense(1.5, "old", now.Add(-48*time.Hour)))
	require.NoError(t, s.AppendExpense(0.5, "recent", now.Add(-time.Hour)))

	total, err := s.ExpensesSince(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, total, 1e-9)
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.json")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s, err := New(t.Context(), path)
	require.NoError(t, err)
	require.NoError(t, s.AppendThought(Thought{ID: "a", Content: "keep me", At: at}))
	require.NoError(t, s.AppendExpense(0.25, "llm", at))
	require.NoError(t, s.Close())

	s2, err := New(t.Context(), path)
	require.NoError(t, err)
	defer s2.Close()

	recent, err := s2.RecentThoughts(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "keep me", recent[0].Content)
	assert.True(t, recent[0].At.Equal(at), "timestamps survive the round trip")

	st, err := s2.State()
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalThoughts)

	total, err := s2.ExpensesSince(at.Add(-time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, total, 1e-9)
}
