/*
toggle.go - Single-chapter completion with optimistic update

FLOW:
  1. Reject refs outside the curriculum (no state touched)
  2. Note whether the assignment window was complete
  3. Apply the new value to the ledger (tentative state)
  4. Write through: UpdateRecord for a known record, UpsertRecord otherwise.
     A record that vanished (ErrNotFound) is re-inserted.
  5. On failure, put the prior value back and return a StoreError
  6. DayJustCompleted = window went from incomplete to complete

The rollback is a compensating write to the in-memory ledger, not an
exception path: the store either acknowledged the write or it did not.
*/
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/warp/reading-engine/curriculum"
)

type ToggleResult struct {
	Ref              curriculum.ChapterRef
	Completed        bool
	DayJustCompleted bool
}

// Toggle sets one chapter's completion state.
func (s *Session) Toggle(ctx context.Context, ref curriculum.ChapterRef, completed bool) (ToggleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.curriculum.Contains(ref) {
		toggles.WithLabelValues("rejected").Inc()
		return ToggleResult{}, &InvalidTargetError{Ref: ref}
	}

	wasComplete := s.advancer.AllAssignmentComplete(s.ledger)
	prior, _ := s.ledger.Set(ref, completed)
	nowComplete := s.advancer.AllAssignmentComplete(s.ledger)

	rec, err := s.writeThrough(ctx, ref, completed, s.now())
	if err != nil {
		s.ledger.Set(ref, prior)
		toggles.WithLabelValues("rolled_back").Inc()
		s.logger.Warn("toggle rolled back", "ref", ref.String(), "completed", completed, "error", err)
		return ToggleResult{}, &StoreError{Op: "toggle " + ref.String(), Err: err}
	}
	s.records[ref] = rec

	result := ToggleResult{
		Ref:              ref,
		Completed:        completed,
		DayJustCompleted: !wasComplete && nowComplete,
	}
	toggles.WithLabelValues("ok").Inc()
	if result.DayJustCompleted {
		daysCompleted.Inc()
		s.logger.Info("assignment completed", "start_index", s.advancer.StartIndex())
	}
	return result, nil
}

func (s *Session) writeThrough(ctx context.Context, ref curriculum.ChapterRef, completed bool, now time.Time) (CompletionRecord, error) {
	upd := completionUpdate(completed, now)

	if existing, ok := s.records[ref]; ok && existing.ID != "" {
		err := s.store.UpdateRecord(ctx, existing.ID, upd)
		storeWrites.WithLabelValues("update", outcome(err)).Inc()
		if err == nil {
			existing = existing.apply(upd)
			existing.UpdatedAt = now.UTC()
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return CompletionRecord{}, err
		}
		s.logger.Debug("record vanished, inserting", "ref", ref.String(), "record_id", string(existing.ID))
	}

	rec, err := s.store.UpsertRecord(ctx, newRecord(s.userID, ref, upd))
	storeWrites.WithLabelValues("upsert", outcome(err)).Inc()
	return rec, err
}
