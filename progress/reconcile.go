/*
reconcile.go - Advance-Sync: bulk reconciliation to a target position

PURPOSE:
  "I'm actually at Ruth 2": mark every chapter up to and including the
  target read, and every chapter strictly after it unread, with the fewest
  writes possible.

DECISION TABLE (per chapter, in curriculum order):
  existing?  desired   action
  no         read      insert
  no         unread    nothing (absence already means unread)
  yes        differs   update
  yes        same      nothing

BATCHING:
  Inserts then updates are sent in BatchSize chunks only to respect store
  payload limits. Every batch is attempted even after a failure; failures
  are folded into one SyncError and the ledger is re-fetched either way so
  the session reflects what the store actually holds.

NOT DONE HERE:
  The Advancer window is left where it is. It moves the next time a session
  opens.
*/
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/warp/reading-engine/curriculum"
)

// SyncPlan is the minimal write set for a bulk operation.
type SyncPlan struct {
	Inserts   []CompletionRecord
	Updates   []CompletionRecord
	Unchanged int
}

func (p SyncPlan) Writes() int { return len(p.Inserts) + len(p.Updates) }

// SyncResult reports what a bulk operation wrote.
type SyncResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

func indexRecords(records []CompletionRecord) map[curriculum.ChapterRef]CompletionRecord {
	m := make(map[curriculum.ChapterRef]CompletionRecord, len(records))
	for _, r := range records {
		m[r.Ref()] = r.Normalize()
	}
	return m
}

// planChapters applies the decision table to refs.
func planChapters(userID UserID, refs []curriculum.ChapterRef, existing map[curriculum.ChapterRef]CompletionRecord, desired func(curriculum.ChapterRef) bool, now time.Time) SyncPlan {
	var plan SyncPlan
	for _, ref := range refs {
		markAsRead := desired(ref)
		rec, ok := existing[ref]
		switch {
		case !ok && markAsRead:
			plan.Inserts = append(plan.Inserts, newRecord(userID, ref, completionUpdate(true, now)))
		case !ok:
			plan.Unchanged++
		case rec.Completed != markAsRead:
			plan.Updates = append(plan.Updates, rec.apply(completionUpdate(markAsRead, now)))
		default:
			plan.Unchanged++
		}
	}
	return plan
}

// PlanAdvanceSync computes the writes that make the curriculum prefix ending
// at target read and everything after it unread.
func PlanAdvanceSync(c *curriculum.Curriculum, userID UserID, existing []CompletionRecord, target curriculum.ChapterRef, now time.Time) (SyncPlan, error) {
	if !c.Contains(target) {
		return SyncPlan{}, &InvalidTargetError{Ref: target}
	}

	passedTarget := false
	desired := func(ref curriculum.ChapterRef) bool {
		markAsRead := !passedTarget
		if ref == target {
			passedTarget = true
		}
		return markAsRead
	}
	return planChapters(userID, c.Flatten(), indexRecords(existing), desired, now), nil
}

// PlanBookMark computes the writes that set every chapter of one book.
func PlanBookMark(c *curriculum.Curriculum, userID UserID, existing []CompletionRecord, book string, completed bool, now time.Time) (SyncPlan, error) {
	refs := c.BookChapters(book)
	if len(refs) == 0 {
		return SyncPlan{}, &InvalidTargetError{Ref: curriculum.ChapterRef{Book: book, Chapter: 1}}
	}
	desired := func(curriculum.ChapterRef) bool { return completed }
	return planChapters(userID, refs, indexRecords(existing), desired, now), nil
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

// AdvanceSync reconciles the user's records against target.
func (s *Session) AdvanceSync(ctx context.Context, target curriculum.ChapterRef) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.curriculum.Contains(target) {
		return SyncResult{}, &InvalidTargetError{Ref: target}
	}
	existing, err := s.store.FetchRecords(ctx, s.userID, false)
	if err != nil {
		return SyncResult{}, &StoreError{Op: "advance-sync", Err: err}
	}
	plan, err := PlanAdvanceSync(s.curriculum, s.userID, existing, target, s.now())
	if err != nil {
		return SyncResult{}, err
	}

	s.logger.Info("advance-sync", "target", target.String(),
		"inserts", len(plan.Inserts), "updates", len(plan.Updates))
	return s.applyPlan(ctx, "advance-sync", plan)
}

// BulkMarkBook sets every chapter of book to completed.
func (s *Session) BulkMarkBook(ctx context.Context, book string, completed bool) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.curriculum.ChapterCount(book); !ok {
		return SyncResult{}, &InvalidTargetError{Ref: curriculum.ChapterRef{Book: book, Chapter: 1}}
	}
	existing, err := s.store.FetchRecords(ctx, s.userID, false)
	if err != nil {
		return SyncResult{}, &StoreError{Op: "mark book", Err: err}
	}
	plan, err := PlanBookMark(s.curriculum, s.userID, existing, book, completed, s.now())
	if err != nil {
		return SyncResult{}, err
	}

	s.logger.Info("mark book", "book", book, "completed", completed,
		"inserts", len(plan.Inserts), "updates", len(plan.Updates))
	return s.applyPlan(ctx, "mark book", plan)
}

// applyPlan issues every batch, then rebuilds the ledger from the store.
// Caller holds mu.
func (s *Session) applyPlan(ctx context.Context, op string, plan SyncPlan) (SyncResult, error) {
	start := time.Now()
	defer func() { syncDuration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()

	result := SyncResult{Unchanged: plan.Unchanged}
	var (
		errs    []error
		batches int
		failed  int
	)
	send := func(recs []CompletionRecord, kind string, written *int) {
		for _, batch := range chunk(recs, s.batchSize) {
			batches++
			err := s.store.BatchUpsert(ctx, batch)
			storeWrites.WithLabelValues("batch_"+kind, outcome(err)).Inc()
			if err != nil {
				failed++
				errs = append(errs, err)
				s.logger.Warn("sync batch failed", "op", op, "kind", kind, "size", len(batch), "error", err)
				continue
			}
			*written += len(batch)
		}
	}
	send(plan.Inserts, "insert", &result.Inserted)
	send(plan.Updates, "update", &result.Updated)
	syncRecords.Observe(float64(result.Inserted + result.Updated))

	reloadErr := s.reload(ctx)

	if failed > 0 {
		return result, &SyncError{
			Op:            op,
			Batches:       batches,
			FailedBatches: failed,
			Written:       result.Inserted + result.Updated,
			Err:           errors.Join(errs...),
		}
	}
	if reloadErr != nil {
		return result, reloadErr
	}
	return result, nil
}

func chunk(recs []CompletionRecord, size int) [][]CompletionRecord {
	var out [][]CompletionRecord
	for len(recs) > 0 {
		n := size
		if n > len(recs) {
			n = len(recs)
		}
		out = append(out, recs[:n])
		recs = recs[n:]
	}
	return out
}
