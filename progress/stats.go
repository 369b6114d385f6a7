/*
stats.go - Completion metrics derived from records

PURPOSE:
  Pure functions of (curriculum, records, plan, now). Nothing here is
  persisted; a Stats value is recomputed on every request.

METRICS:
  CompletionRate: round(100 * completed / total), integer percent
  ScheduleStatus: chapters read minus chapters expected by today
                  (positive = ahead of pace, negative = behind)
  WeeklyGrid:     for each of the last N days, whether that calendar day's
                  fixed slice of the curriculum is fully read

WEEKLY GRID vs ADVANCER:
  The grid is anchored to the plan start date (day n ↔ chapters
  [n*cpd, n*cpd+cpd)). It deliberately ignores the session's dynamic window
  in schedule.go.
*/
package progress

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/reading-engine/curriculum"
)

// DefaultWeeklyWindow is the number of days in the weekly grid.
const DefaultWeeklyWindow = 7

var hundred = decimal.NewFromInt(100)

// percentage rounds half up; 0 when total is 0.
func percentage(n, total int) int {
	if total <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(n)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(total))).
		Round(0).
		IntPart())
}

// CompletionRate is the integer percentage of the curriculum marked read.
func CompletionRate(l *Ledger) int {
	return percentage(l.CompletedCount(), l.Len())
}

// DaysSinceStart floors to whole days and clamps to zero for future starts.
func DaysSinceStart(start, today Date) int {
	d := DaysBetween(start, today)
	if d < 0 {
		return 0
	}
	return d
}

// ScheduleStatus compares chapters read against (days since start + 1) * cpd.
func ScheduleStatus(totalRead int, start Date, chaptersPerDay int, today Date) int {
	expected := (DaysSinceStart(start, today) + 1) * chaptersPerDay
	return totalRead - expected
}

// =============================================================================
// WEEKLY GRID
// =============================================================================

type DayStatus struct {
	Date      Date `json:"date"`
	DayNumber int  `json:"day_number"`
	Complete  bool `json:"complete"`
}

// WeeklyGrid returns window days ending today, oldest first.
func WeeklyGrid(c *curriculum.Curriculum, records []CompletionRecord, start Date, chaptersPerDay int, today Date, window int) []DayStatus {
	if window <= 0 {
		window = DefaultWeeklyWindow
	}
	if chaptersPerDay <= 0 {
		chaptersPerDay = DefaultChaptersPerDay
	}
	l := BuildLedger(c, records)

	grid := make([]DayStatus, 0, window)
	for i := window - 1; i >= 0; i-- {
		day := today.AddDays(-i)
		n := DaysBetween(start, day)
		grid = append(grid, DayStatus{
			Date:      day,
			DayNumber: n,
			Complete:  n >= 0 && sliceComplete(l, c.Slice(n*chaptersPerDay, n*chaptersPerDay+chaptersPerDay)),
		})
	}
	return grid
}

func sliceComplete(l *Ledger, refs []curriculum.ChapterRef) bool {
	if len(refs) == 0 {
		return false
	}
	for _, ref := range refs {
		if !l.IsRead(ref) {
			return false
		}
	}
	return true
}

// =============================================================================
// STATS SNAPSHOT
// =============================================================================

type Stats struct {
	TotalChaptersRead int   `json:"total_chapters_read"`
	StreakDays        int   `json:"streak_days"`
	LastReadDate      *Date `json:"last_read_date,omitempty"`
	DaysSinceLastRead int   `json:"days_since_last_read"`
	CompletionRate    int   `json:"completion_rate"`
	ScheduleStatus    int   `json:"schedule_status"`
}

// ComputeStats builds the snapshot for one user.
func ComputeStats(c *curriculum.Curriculum, records []CompletionRecord, plan Plan, chaptersPerDay int, now time.Time, loc *time.Location) Stats {
	if chaptersPerDay <= 0 {
		chaptersPerDay = DefaultChaptersPerDay
	}
	records = inCurriculum(c, records)
	l := BuildLedger(c, records)
	today := DateOf(now, loc)
	total := l.CompletedCount()

	s := Stats{
		TotalChaptersRead: total,
		StreakDays:        ComputeStreak(records, loc),
		CompletionRate:    CompletionRate(l),
		ScheduleStatus:    ScheduleStatus(total, plan.StartDate, chaptersPerDay, today),
	}
	if dates := CompletionDates(records, loc); len(dates) > 0 {
		last := dates[0]
		s.LastReadDate = &last
		s.DaysSinceLastRead = DaysSinceStart(last, today)
	}
	return s
}

// DefaultPlan starts the plan on the earliest completion day, or today when
// nothing has been read.
func DefaultPlan(c *curriculum.Curriculum, userID UserID, records []CompletionRecord, now time.Time, loc *time.Location) Plan {
	dates := CompletionDates(inCurriculum(c, records), loc)
	if len(dates) == 0 {
		return Plan{UserID: userID, StartDate: DateOf(now, loc)}
	}
	return Plan{UserID: userID, StartDate: dates[len(dates)-1]}
}

// inCurriculum drops records for chapters the curriculum does not contain,
// the same records BuildLedger ignores.
func inCurriculum(c *curriculum.Curriculum, records []CompletionRecord) []CompletionRecord {
	out := make([]CompletionRecord, 0, len(records))
	for _, r := range records {
		if c.Contains(r.Ref()) {
			out = append(out, r)
		}
	}
	return out
}
