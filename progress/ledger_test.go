package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/reading-engine/curriculum"
)

func TestBuildLedger_NoRecords_AllUnread(t *testing.T) {
	// GIVEN: Curriculum [Genesis 3] and no records
	c := genesis3()

	// WHEN: Building the ledger
	l := BuildLedger(c, nil)

	// THEN: Every chapter is present and false
	assert.Equal(t, map[string]map[int]bool{"Genesis": {1: false, 2: false, 3: false}}, l.Map())
	assert.Equal(t, 0, CompletionRate(l))
}

func TestBuildLedger_SizeMatchesCurriculum(t *testing.T) {
	c := curriculum.Standard()

	cases := map[string][]CompletionRecord{
		"zero":    nil,
		"partial": {completedOn("Genesis", 1, "2024-01-01"), completedOn("Revelation", 22, "2024-01-02")},
		"full":    nil,
	}
	for _, r := range c.Flatten() {
		rec := completedOn(r.Book, r.Chapter, "2024-01-01")
		cases["full"] = append(cases["full"], rec)
	}

	for name, records := range cases {
		t.Run(name, func(t *testing.T) {
			l := BuildLedger(c, records)
			assert.Equal(t, curriculum.StandardChapterCount, l.Len())
		})
	}
	assert.Equal(t, 100, CompletionRate(BuildLedger(c, cases["full"])))
}

func TestBuildLedger_IgnoresUnknownAndIncomplete(t *testing.T) {
	// GIVEN: Records outside the curriculum, and one record that is not completed
	c := genesis3()
	records := []CompletionRecord{
		completedOn("Genesis", 2, "2024-01-01"),
		completedOn("Genesis", 4, "2024-01-01"),
		completedOn("Tobit", 1, "2024-01-01"),
		{UserID: "u1", Book: "Genesis", Chapter: 3, Completed: false},
	}

	// WHEN: Building the ledger
	l := BuildLedger(c, records)

	// THEN: Only Genesis 2 is read; nothing extra appears
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 1, l.CompletedCount())
	assert.True(t, l.IsRead(ref("Genesis", 2)))
	assert.False(t, l.IsRead(ref("Genesis", 3)))
	assert.False(t, l.IsRead(ref("Tobit", 1)))
}

func TestLedger_SetReturnsPriorValue(t *testing.T) {
	l := BuildLedger(genesis3(), nil)

	prev, ok := l.Set(ref("Genesis", 1), true)
	assert.True(t, ok)
	assert.False(t, prev)

	prev, ok = l.Set(ref("Genesis", 1), true)
	assert.True(t, ok)
	assert.True(t, prev)

	_, ok = l.Set(ref("Genesis", 9), true)
	assert.False(t, ok, "refs outside the curriculum are not added")
	assert.Equal(t, 3, l.Len())
}

func TestLedger_CloneIsIndependent(t *testing.T) {
	l := BuildLedger(genesis3(), nil)
	cp := l.Clone()

	cp.Set(ref("Genesis", 1), true)

	assert.False(t, l.IsRead(ref("Genesis", 1)))
	assert.True(t, cp.IsRead(ref("Genesis", 1)))
}

func TestCompletionRate_MonotonicAsChaptersAreMarked(t *testing.T) {
	// GIVEN: The standard curriculum, marked one chapter at a time
	c := curriculum.Standard()
	l := BuildLedger(c, nil)

	// THEN: The rate never decreases
	prev := CompletionRate(l)
	for _, r := range c.Flatten() {
		l.Set(r, true)
		rate := CompletionRate(l)
		if !assert.GreaterOrEqual(t, rate, prev, "after %s", r) {
			return
		}
		prev = rate
	}
	assert.Equal(t, 100, prev)
}

func TestPercentage_RoundsHalfUp(t *testing.T) {
	assert.Equal(t, 33, percentage(1, 3))
	assert.Equal(t, 67, percentage(2, 3))
	assert.Equal(t, 50, percentage(1, 2))
	assert.Equal(t, 1, percentage(1, 200), "0.5 rounds up")
	assert.Equal(t, 0, percentage(5, 0), "empty curriculum")
}
