package progress

import (
	"sort"
	"time"

	"github.com/warp/reading-engine/curriculum"
)

// =============================================================================
// ADMIN AGGREGATES - Cross-user grouping, no special algorithm
// =============================================================================

type UserRecords struct {
	UserID  UserID
	Records []CompletionRecord
}

type DistributionOptions struct {
	// RecentDays bounds the weekday histogram. Default 30.
	RecentDays int
	// BucketWidth is the width of the per-user completed-chapter histogram. Default 100.
	BucketWidth int
}

type BookCount struct {
	Book  string `json:"book"`
	Count int    `json:"count"`
}

// Bucket counts users whose completed total falls in [From, To].
type Bucket struct {
	From  int `json:"from"`
	To    int `json:"to"`
	Users int `json:"users"`
}

type Distribution struct {
	Users    int         `json:"users"`
	Books    []BookCount `json:"books"`
	Weekdays [7]int      `json:"weekdays"`
	Buckets  []Bucket    `json:"buckets"`
}

// ComputeDistribution groups every user's completed records. Books appear in
// first-seen order across the input.
func ComputeDistribution(c *curriculum.Curriculum, users []UserRecords, now time.Time, loc *time.Location, opts DistributionOptions) Distribution {
	if opts.RecentDays <= 0 {
		opts.RecentDays = 30
	}
	if opts.BucketWidth <= 0 {
		opts.BucketWidth = 100
	}
	today := DateOf(now, loc)

	d := Distribution{Users: len(users)}
	for from := 0; from <= c.Len(); from += opts.BucketWidth {
		to := from + opts.BucketWidth - 1
		if to > c.Len() {
			to = c.Len()
		}
		d.Buckets = append(d.Buckets, Bucket{From: from, To: to})
	}

	bookPos := make(map[string]int)
	for _, u := range users {
		for _, r := range u.Records {
			if !r.Completed || !c.Contains(r.Ref()) {
				continue
			}
			i, ok := bookPos[r.Book]
			if !ok {
				i = len(d.Books)
				bookPos[r.Book] = i
				d.Books = append(d.Books, BookCount{Book: r.Book})
			}
			d.Books[i].Count++

			if r.CompletedAt != nil {
				day := DateOf(*r.CompletedAt, loc)
				if ago := DaysBetween(day, today); ago >= 0 && ago < opts.RecentDays {
					d.Weekdays[day.Weekday()]++
				}
			}
		}

		if len(d.Buckets) > 0 {
			completed := BuildLedger(c, u.Records).CompletedCount()
			d.Buckets[completed/opts.BucketWidth].Users++
		}
	}
	return d
}

// TopBooks returns the n most-read books, ties kept in first-seen order.
func (d Distribution) TopBooks(n int) []BookCount {
	top := make([]BookCount, len(d.Books))
	copy(top, d.Books)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	if n >= 0 && n < len(top) {
		top = top[:n]
	}
	return top
}
