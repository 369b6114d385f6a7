package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/reading-engine/curriculum"
)

func TestTodaysAssignment_FirstFourOfTen(t *testing.T) {
	// GIVEN: 10 chapters, window at index 0, 4 per day
	c := tenChapters()
	a := NewAdvancerAt(c, 4, 0)
	l := BuildLedger(c, nil)

	// WHEN: Reading today's assignment
	window := a.TodaysAssignment()

	// THEN: Entries 0..3
	assert.Equal(t, c.Slice(0, 4), window)
	assert.Equal(t, []curriculum.ChapterRef{ref("Ruth", 1), ref("Ruth", 2), ref("Ruth", 3), ref("Ruth", 4)}, window)

	// AND: Not complete until all four are read
	for i, r := range window {
		assert.False(t, a.AllAssignmentComplete(l), "after %d of 4", i)
		l.Set(r, true)
	}
	assert.True(t, a.AllAssignmentComplete(l))
}

func TestNewAdvancer_StartsAtFirstUnread(t *testing.T) {
	c := tenChapters()

	a := NewAdvancer(c, 4, readFirst(c, 5))

	assert.Equal(t, 5, a.StartIndex())
	assert.Equal(t, []curriculum.ChapterRef{ref("Jonah", 2), ref("Jonah", 3), ref("Jonah", 4), ref("Joel", 1)}, a.TodaysAssignment())
}

func TestNewAdvancer_GapBeforeReadChaptersWins(t *testing.T) {
	// GIVEN: Ruth 1 unread but everything after it read
	c := tenChapters()
	l := readFirst(c, 10)
	l.Set(ref("Ruth", 1), false)

	// WHEN: Initializing
	a := NewAdvancer(c, 4, l)

	// THEN: The window starts at the gap
	assert.Equal(t, 0, a.StartIndex())
}

func TestNewAdvancer_AllReadSitsOnLastChapter(t *testing.T) {
	c := tenChapters()
	l := readFirst(c, 10)

	a := NewAdvancer(c, 4, l)

	assert.Equal(t, 9, a.StartIndex())
	assert.Equal(t, []curriculum.ChapterRef{ref("Joel", 2)}, a.TodaysAssignment())
	assert.True(t, a.AllAssignmentComplete(l))

	_, ok := a.ReadAhead(l)
	assert.False(t, ok, "nothing left to read ahead")
}

func TestAdvancer_WindowClipsAtEnd(t *testing.T) {
	c := tenChapters()
	a := NewAdvancerAt(c, 4, 8)

	assert.Len(t, a.TodaysAssignment(), 2)
}

func TestAdvancer_EmptyWindowIsNeverComplete(t *testing.T) {
	// GIVEN: An empty curriculum
	c := curriculum.MustNew(nil)
	l := BuildLedger(c, nil)

	// WHEN: Initializing
	a := NewAdvancer(c, 4, l)

	// THEN: No window, and no completion to celebrate
	assert.Empty(t, a.TodaysAssignment())
	assert.False(t, a.AllAssignmentComplete(l))
}

func TestAdvancer_UncheckingEarlierChapterDoesNotMoveWindow(t *testing.T) {
	// GIVEN: Window fixed at index 4 after reading Ruth
	c := tenChapters()
	l := readFirst(c, 4)
	a := NewAdvancer(c, 4, l)
	require.Equal(t, 4, a.StartIndex())

	// WHEN: Ruth 2 is unchecked
	l.Set(ref("Ruth", 2), false)

	// THEN: The window stays where it was
	assert.Equal(t, 4, a.StartIndex())
	assert.Equal(t, ref("Jonah", 1), a.TodaysAssignment()[0])
}

func TestReadAhead_LockedUntilWindowComplete(t *testing.T) {
	c := tenChapters()
	a := NewAdvancerAt(c, 4, 0)
	l := readFirst(c, 3)

	_, ok := a.ReadAhead(l)
	assert.False(t, ok)

	l.Set(ref("Ruth", 4), true)
	next, ok := a.ReadAhead(l)
	require.True(t, ok)
	assert.Equal(t, ref("Jonah", 1), next)
}

func TestReadAhead_OneChapterAtATime(t *testing.T) {
	// GIVEN: Window complete and first read-ahead chapter marked
	c := tenChapters()
	a := NewAdvancerAt(c, 4, 0)
	l := readFirst(c, 5)

	// WHEN: Asking again
	next, ok := a.ReadAhead(l)

	// THEN: The next unread chapter after the window is offered
	require.True(t, ok)
	assert.Equal(t, ref("Jonah", 2), next)
}

func TestReadAhead_SkipsAlreadyReadChapters(t *testing.T) {
	c := tenChapters()
	a := NewAdvancerAt(c, 4, 0)
	l := readFirst(c, 4)
	l.Set(ref("Jonah", 1), true)
	l.Set(ref("Jonah", 2), true)
	l.Set(ref("Jonah", 4), true)

	next, ok := a.ReadAhead(l)

	require.True(t, ok)
	assert.Equal(t, ref("Jonah", 3), next)
}
