package progress

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/reading-engine/curriculum"
)

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(NewDate(2024, 1, 1), NewDate(2024, 1, 1)))
	assert.Equal(t, 31, DaysBetween(NewDate(2024, 1, 1), NewDate(2024, 2, 1)))
	assert.Equal(t, -1, DaysBetween(NewDate(2024, 1, 2), NewDate(2024, 1, 1)))
	assert.Equal(t, 366, DaysBetween(NewDate(2024, 1, 1), NewDate(2025, 1, 1)), "leap year")
}

func TestScheduleStatus(t *testing.T) {
	start := NewDate(2024, 1, 1)

	// Day 0 expects 4 chapters
	assert.Equal(t, 0, ScheduleStatus(4, start, 4, start))
	assert.Equal(t, -4, ScheduleStatus(0, start, 4, start))

	// Day 9 expects 40
	assert.Equal(t, 2, ScheduleStatus(42, start, 4, NewDate(2024, 1, 10)))
	assert.Equal(t, -30, ScheduleStatus(10, start, 4, NewDate(2024, 1, 10)))

	// A future start is clamped to day 0
	assert.Equal(t, -4, ScheduleStatus(0, NewDate(2024, 2, 1), 4, start))
}

func TestWeeklyGrid_AnchoredToPlanStart(t *testing.T) {
	// GIVEN: Plan started 2024-01-01; day 0 and day 2 slices read, day 1 half read
	c := curriculum.Standard()
	start := NewDate(2024, 1, 1)
	var records []CompletionRecord
	for _, r := range c.Slice(0, 4) {
		records = append(records, completedOn(r.Book, r.Chapter, "2024-01-01"))
	}
	for _, r := range c.Slice(4, 6) {
		records = append(records, completedOn(r.Book, r.Chapter, "2024-01-02"))
	}
	for _, r := range c.Slice(8, 12) {
		records = append(records, completedOn(r.Book, r.Chapter, "2024-01-03"))
	}

	// WHEN: Viewing the grid on 2024-01-04
	grid := WeeklyGrid(c, records, start, 4, NewDate(2024, 1, 4), 7)

	// THEN: Seven days oldest first; pre-start days are incomplete
	require.Len(t, grid, 7)
	assert.Equal(t, NewDate(2023, 12, 29), grid[0].Date)
	assert.Equal(t, NewDate(2024, 1, 4), grid[6].Date)

	want := []bool{false, false, false, true, false, true, false}
	for i, day := range grid {
		assert.Equal(t, want[i], day.Complete, "day %s", day.Date)
	}
	assert.Equal(t, -3, grid[0].DayNumber)
	assert.Equal(t, 3, grid[6].DayNumber)
}

func TestWeeklyGrid_PastCurriculumEndIsIncomplete(t *testing.T) {
	c := genesis3()
	records := []CompletionRecord{
		completedOn("Genesis", 1, "2024-01-01"),
		completedOn("Genesis", 2, "2024-01-01"),
		completedOn("Genesis", 3, "2024-01-01"),
	}

	grid := WeeklyGrid(c, records, NewDate(2024, 1, 1), 4, NewDate(2024, 1, 2), 2)

	require.Len(t, grid, 2)
	assert.True(t, grid[0].Complete, "day 0 slice clipped to 3 chapters, all read")
	assert.False(t, grid[1].Complete, "day 1 has no chapters")
}

func TestComputeStats(t *testing.T) {
	// GIVEN: Genesis 1 and 2 read on consecutive days, plan started the first day
	c := genesis3()
	records := []CompletionRecord{
		completedOn("Genesis", 1, "2024-01-01"),
		completedOn("Genesis", 2, "2024-01-02"),
	}
	plan := Plan{UserID: "u1", StartDate: NewDate(2024, 1, 1)}
	now := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)

	// WHEN: Computing stats three days after the last reading
	s := ComputeStats(c, records, plan, 4, now, time.UTC)

	// THEN: Streak survives inactivity; days-since-last-read reports it
	assert.Equal(t, 2, s.TotalChaptersRead)
	assert.Equal(t, 2, s.StreakDays)
	assert.Equal(t, 67, s.CompletionRate)
	assert.Equal(t, 3, s.DaysSinceLastRead)
	require.NotNil(t, s.LastReadDate)
	assert.Equal(t, NewDate(2024, 1, 2), *s.LastReadDate)
	assert.Equal(t, 2-5*4, s.ScheduleStatus)
}

func TestComputeStats_NoRecords(t *testing.T) {
	s := ComputeStats(genesis3(), nil, Plan{StartDate: NewDate(2024, 1, 1)}, 4,
		time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), time.UTC)

	assert.Equal(t, Stats{ScheduleStatus: -4}, s)
}

func TestComputeStats_IgnoresChaptersOutsideCurriculum(t *testing.T) {
	// GIVEN: One curriculum chapter and two stray records on later days
	records := []CompletionRecord{
		completedOn("Genesis", 1, "2024-01-02"),
		completedOn("Genesis", 9, "2024-01-03"),
		completedOn("Tobit", 1, "2024-01-04"),
	}
	now := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)

	// WHEN: Computing stats
	s := ComputeStats(genesis3(), records, Plan{StartDate: NewDate(2024, 1, 2)}, 4, now, time.UTC)

	// THEN: Streak and last-read agree with the chapter total
	assert.Equal(t, 1, s.TotalChaptersRead)
	assert.Equal(t, 1, s.StreakDays)
	require.NotNil(t, s.LastReadDate)
	assert.Equal(t, NewDate(2024, 1, 2), *s.LastReadDate)
	assert.Equal(t, 3, s.DaysSinceLastRead)
}

func TestStats_JSON(t *testing.T) {
	last := NewDate(2024, 1, 2)
	b, err := json.Marshal(Stats{TotalChaptersRead: 2, LastReadDate: &last})
	require.NoError(t, err)

	assert.Contains(t, string(b), `"last_read_date":"2024-01-02"`)
	assert.Contains(t, string(b), `"total_chapters_read":2`)
}

func TestDefaultPlan(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	p := DefaultPlan(genesis3(), "u1", nil, now, time.UTC)
	assert.Equal(t, NewDate(2024, 3, 10), p.StartDate, "no history starts today")

	p = DefaultPlan(genesis3(), "u1", []CompletionRecord{
		completedOn("Genesis", 2, "2024-02-02"),
		completedOn("Genesis", 1, "2024-02-01"),
	}, now, time.UTC)
	assert.Equal(t, NewDate(2024, 2, 1), p.StartDate, "earliest completion day")

	p = DefaultPlan(genesis3(), "u1", []CompletionRecord{
		completedOn("Tobit", 1, "2024-01-15"),
		completedOn("Genesis", 1, "2024-02-01"),
	}, now, time.UTC)
	assert.Equal(t, NewDate(2024, 2, 1), p.StartDate, "stray chapters do not start the plan")
}

func TestDate_TextRoundTrip(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalText([]byte("2024-02-29")))
	assert.Equal(t, NewDate(2024, 2, 29), d)

	assert.Error(t, d.UnmarshalText([]byte("29/02/2024")))
}
