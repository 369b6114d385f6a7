package progress

import (
	"sort"
	"time"
)

// CompletionDates returns the distinct calendar days (in loc) on which any
// record was completed, newest first.
func CompletionDates(records []CompletionRecord, loc *time.Location) []Date {
	seen := make(map[Date]bool)
	var dates []Date
	for _, r := range records {
		if !r.Completed || r.CompletedAt == nil {
			continue
		}
		d := DateOf(*r.CompletedAt, loc)
		if seen[d] {
			continue
		}
		seen[d] = true
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	return dates
}

// ComputeStreak counts consecutive days walking back from the most recent
// completion day. The most recent day counts as day one even if it is not
// today; inactivity is reported separately as Stats.DaysSinceLastRead.
func ComputeStreak(records []CompletionRecord, loc *time.Location) int {
	dates := CompletionDates(records, loc)
	if len(dates) == 0 {
		return 0
	}

	streak := 1
	for i := 1; i < len(dates); i++ {
		if DaysBetween(dates[i], dates[i-1]) != 1 {
			break
		}
		streak++
	}
	return streak
}
