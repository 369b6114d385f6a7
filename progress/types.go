/*
Package progress is the reading-plan engine: it projects a user's completion
records into a ledger and derives schedule, streak and completion metrics.

PURPOSE:
  A record store (sqlite, badger, memory, or any remote collaborator) holds
  one CompletionRecord per user per touched chapter. Everything the user sees
  is derived from those records on read. The engine owns the write paths that
  keep them consistent: single-chapter toggles and bulk advance-sync.

KEY CONCEPTS IN THIS FILE (types.go):
  - CompletionRecord: one (user, book, chapter) row with a completion flag
  - RecordUpdate: the mutable fields of a record
  - Plan: per-user plan settings (start date)

INVARIANTS:
  1. CompletedAt is non-nil iff Completed is true
  2. At most one record per (UserID, Book, Chapter); stores upsert on that key
  3. A missing record means "not read yet", never "unknown"

SEE ALSO:
  - ledger.go: record → ledger projection
  - schedule.go: today's assignment and read-ahead
  - reconcile.go: advance-sync
  - toggle.go: single-chapter mutation with rollback
*/
package progress

import (
	"time"

	"github.com/warp/reading-engine/curriculum"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type RecordID string

// =============================================================================
// COMPLETION RECORD - Owned by the record store
// =============================================================================

type CompletionRecord struct {
	ID          RecordID
	UserID      UserID
	Book        string
	Chapter     int
	Completed   bool
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r CompletionRecord) Ref() curriculum.ChapterRef {
	return curriculum.ChapterRef{Book: r.Book, Chapter: r.Chapter}
}

// Normalize enforces the CompletedAt/Completed invariant on records read back
// from a store. A completed record with no timestamp keeps a nil timestamp.
func (r CompletionRecord) Normalize() CompletionRecord {
	if !r.Completed {
		r.CompletedAt = nil
	}
	return r
}

// RecordUpdate holds the fields a toggle or sync may change.
type RecordUpdate struct {
	Completed   bool
	CompletedAt *time.Time
}

// completionUpdate stamps now when completed, nil otherwise.
func completionUpdate(completed bool, now time.Time) RecordUpdate {
	if !completed {
		return RecordUpdate{Completed: false}
	}
	at := now.UTC()
	return RecordUpdate{Completed: true, CompletedAt: &at}
}

func (r CompletionRecord) apply(u RecordUpdate) CompletionRecord {
	r.Completed = u.Completed
	r.CompletedAt = u.CompletedAt
	return r
}

func newRecord(userID UserID, ref curriculum.ChapterRef, u RecordUpdate) CompletionRecord {
	return CompletionRecord{
		UserID:      userID,
		Book:        ref.Book,
		Chapter:     ref.Chapter,
		Completed:   u.Completed,
		CompletedAt: u.CompletedAt,
	}
}

// =============================================================================
// PLAN - Per-user plan settings
// =============================================================================

type Plan struct {
	UserID    UserID
	StartDate Date
}
