/*
schedule.go - Today's assignment and read-ahead

KEY INSIGHT:
  "Today" is not a calendar slot. The assignment window starts at the first
  unread chapter found when the session started, and holds there for the rest
  of the session. Unchecking an earlier chapter must not pull the window back.

WINDOW:
  [start, start + chaptersPerDay) in curriculum order, clipped at the end.

READ-AHEAD:
  Offered only once the whole window is read. It is the first unread chapter
  after the window, so a second read-ahead chapter appears only after the
  first one is marked.
*/
package progress

import "github.com/warp/reading-engine/curriculum"

// DefaultChaptersPerDay is the fixed daily assignment size.
const DefaultChaptersPerDay = 4

// Advancer carries the session-scoped window start.
type Advancer struct {
	curriculum       *curriculum.Curriculum
	chaptersPerDay   int
	activeStartIndex int
}

// NewAdvancer initializes the window at the first unread chapter. When every
// chapter is read it sits on the last chapter.
func NewAdvancer(c *curriculum.Curriculum, chaptersPerDay int, l *Ledger) *Advancer {
	start := 0
	if n := c.Len(); n > 0 {
		start = n - 1
		for i, ref := range c.Flatten() {
			if !l.IsRead(ref) {
				start = i
				break
			}
		}
	}
	return NewAdvancerAt(c, chaptersPerDay, start)
}

// NewAdvancerAt pins the window start explicitly.
func NewAdvancerAt(c *curriculum.Curriculum, chaptersPerDay, start int) *Advancer {
	if chaptersPerDay <= 0 {
		chaptersPerDay = DefaultChaptersPerDay
	}
	if start < 0 {
		start = 0
	}
	return &Advancer{curriculum: c, chaptersPerDay: chaptersPerDay, activeStartIndex: start}
}

func (a *Advancer) StartIndex() int     { return a.activeStartIndex }
func (a *Advancer) ChaptersPerDay() int { return a.chaptersPerDay }

// TodaysAssignment returns the window; fewer entries near the end, none past it.
func (a *Advancer) TodaysAssignment() []curriculum.ChapterRef {
	return a.curriculum.Slice(a.activeStartIndex, a.activeStartIndex+a.chaptersPerDay)
}

// AllAssignmentComplete is false for an empty window.
func (a *Advancer) AllAssignmentComplete(l *Ledger) bool {
	window := a.TodaysAssignment()
	if len(window) == 0 {
		return false
	}
	for _, ref := range window {
		if !l.IsRead(ref) {
			return false
		}
	}
	return true
}

// ReadAhead returns the next chapter to offer beyond the window.
func (a *Advancer) ReadAhead(l *Ledger) (curriculum.ChapterRef, bool) {
	if !a.AllAssignmentComplete(l) {
		return curriculum.ChapterRef{}, false
	}
	for i := a.activeStartIndex + a.chaptersPerDay; ; i++ {
		ref, ok := a.curriculum.At(i)
		if !ok {
			return curriculum.ChapterRef{}, false
		}
		if !l.IsRead(ref) {
			return ref, true
		}
	}
}
