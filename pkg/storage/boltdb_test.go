package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/whisker/pkg/types"
)

func newTestJournal(t *testing.T) *BoltJournal {
	t.Helper()
	j, err := NewBoltJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func move(mouseID string, x int) MoveEntry {
	return MoveEntry{
		MouseID:   mouseID,
		From:      types.Point{X: x, Y: 0},
		To:        types.Point{X: x + 1, Y: 0},
		Direction: types.East,
		Timestamp: time.Date(2026, 10, 19, 10, 0, x, 0, time.UTC),
	}
}

func TestJournalAppendAndList(t *testing.T) {
	j := newTestJournal(t)

	for i := 0; i < 5; i++ {
		entry, err := j.Append(move("mouse_1", i))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), entry.Seq)
	}

	all, err := j.List("mouse_1", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, e := range all {
		assert.Equal(t, i, e.From.X, "entries must be oldest first")
	}

	recent, err := j.List("mouse_1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 3, recent[0].From.X)
	assert.Equal(t, 4, recent[1].From.X)
	assert.Equal(t, types.East, recent[1].Direction)
}

func TestJournalSequenceOrderBeyondTen(t *testing.T) {
	j := newTestJournal(t)
	for i := 0; i < 300; i++ {
		_, err := j.Append(move("mouse_1", i))
		require.NoError(t, err)
	}

	entries, err := j.List("mouse_1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 300)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Seq, entries[i].Seq)
	}
}

func TestJournalMiceAreIsolated(t *testing.T) {
	j := newTestJournal(t)

	_, err := j.Append(move("mouse_1", 0))
	require.NoError(t, err)
	_, err = j.Append(move("mouse_2", 7))
	require.NoError(t, err)

	mice, err := j.Mice()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mouse_1", "mouse_2"}, mice)

	entries, err := j.List("mouse_2", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 7, entries[0].From.X)
	assert.Equal(t, uint64(1), entries[0].Seq, "sequence is per mouse")
}

func TestJournalUnknownMouse(t *testing.T) {
	j := newTestJournal(t)

	_, err := j.List("ghost", 10)
	assert.True(t, errors.Is(err, ErrMouseNotFound))

	err = j.Delete("ghost")
	assert.True(t, errors.Is(err, ErrMouseNotFound))
}

func TestJournalDelete(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.Append(move("mouse_1", 0))
	require.NoError(t, err)

	require.NoError(t, j.Delete("mouse_1"))

	mice, err := j.Mice()
	require.NoError(t, err)
	assert.Empty(t, mice)
}

func TestJournalRequiresMouseID(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.Append(MoveEntry{})
	assert.Error(t, err)
}

func TestJournalPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := NewBoltJournal(dir)
	require.NoError(t, err)
	goal := types.Point{X: 4, Y: 4}
	entry := move("mouse_3", 1)
	entry.Goal = &goal
	entry.Reasoning = "Moving east towards cheese at (4, 4) - distance: 7"
	_, err = j.Append(entry)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = NewBoltJournal(dir)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.List("mouse_3", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Goal)
	assert.Equal(t, goal, *entries[0].Goal)
	assert.Equal(t, entry.Reasoning, entries[0].Reasoning)
	assert.Equal(t, entry.Timestamp, entries[0].Timestamp.UTC())
}

func TestOpenJournalBadDir(t *testing.T) {
	_, err := NewBoltJournal(fmt.Sprintf("%s/missing/dir", t.TempDir()))
	assert.Error(t, err)
}
