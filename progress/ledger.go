/*
ledger.go - In-memory projection of completion records

PURPOSE:
  The Ledger is what every computation reads. It maps book → chapter → read
  flag for the WHOLE curriculum, not just the chapters that have records.

CRITICAL INVARIANTS:
  1. FULLY POPULATED: Len() == curriculum length regardless of record count
  2. CURRICULUM IS TRUTH: records for unknown books/chapters are ignored
  3. REBUILT, NOT PATCHED: after a bulk write the ledger is rebuilt from the
     store; only Toggle mutates it in place (and rolls back on failure)

SEE ALSO:
  - schedule.go: reads the ledger to find the assignment window
  - stats.go: completion rate
*/
package progress

import "github.com/warp/reading-engine/curriculum"

// Ledger is owned by one session and is not safe for concurrent mutation.
type Ledger struct {
	curriculum *curriculum.Curriculum
	read       map[string]map[int]bool
}

// BuildLedger initializes every curriculum chapter to false, then marks each
// completed record true.
func BuildLedger(c *curriculum.Curriculum, records []CompletionRecord) *Ledger {
	l := &Ledger{
		curriculum: c,
		read:       make(map[string]map[int]bool),
	}
	for _, b := range c.Books() {
		chapters := make(map[int]bool, b.Chapters)
		for ch := 1; ch <= b.Chapters; ch++ {
			chapters[ch] = false
		}
		l.read[b.Name] = chapters
	}

	for _, r := range records {
		if !r.Completed {
			continue
		}
		chapters, ok := l.read[r.Book]
		if !ok {
			continue
		}
		if _, ok := chapters[r.Chapter]; !ok {
			continue
		}
		chapters[r.Chapter] = true
	}
	return l
}

func (l *Ledger) Curriculum() *curriculum.Curriculum { return l.curriculum }

// IsRead reports whether ref is marked complete. Unknown refs are unread.
func (l *Ledger) IsRead(ref curriculum.ChapterRef) bool {
	return l.read[ref.Book][ref.Chapter]
}

// Set marks ref and returns its previous value. ok is false, and nothing
// changes, when ref is not in the curriculum.
func (l *Ledger) Set(ref curriculum.ChapterRef, read bool) (prev bool, ok bool) {
	chapters, found := l.read[ref.Book]
	if !found {
		return false, false
	}
	prev, found = chapters[ref.Chapter]
	if !found {
		return false, false
	}
	chapters[ref.Chapter] = read
	return prev, true
}

// Len counts ledger keys across all books.
func (l *Ledger) Len() int {
	n := 0
	for _, chapters := range l.read {
		n += len(chapters)
	}
	return n
}

func (l *Ledger) CompletedCount() int {
	n := 0
	for _, chapters := range l.read {
		for _, read := range chapters {
			if read {
				n++
			}
		}
	}
	return n
}

// Map returns a deep copy suitable for serialization.
func (l *Ledger) Map() map[string]map[int]bool {
	out := make(map[string]map[int]bool, len(l.read))
	for book, chapters := range l.read {
		cp := make(map[int]bool, len(chapters))
		for ch, read := range chapters {
			cp[ch] = read
		}
		out[book] = cp
	}
	return out
}

func (l *Ledger) Clone() *Ledger {
	return &Ledger{curriculum: l.curriculum, read: l.Map()}
}
