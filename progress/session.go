/*
session.go - Per-user session state

PURPOSE:
  A Session owns one user's ledger, the records it was built from, and the
  Advancer whose window start was fixed when the session opened.

LIFECYCLE:
  1. OpenSession fetches records, builds the ledger, initializes the Advancer
  2. Toggle patches the ledger in place (rollback on failure)
  3. AdvanceSync / BulkMarkBook / Refresh rebuild the ledger from the store
  4. The Advancer is never re-initialized; open a new session for that

CONCURRENCY:
  One mutation at a time per session (mu is held across the store call).
  Different sessions never share state.
*/
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/reading-engine/curriculum"
)

// DefaultBatchSize bounds records per BatchUpsert call.
const DefaultBatchSize = 100

type SessionOptions struct {
	ChaptersPerDay int
	BatchSize      int
	Now            func() time.Time
	Logger         *slog.Logger
}

type Session struct {
	mu sync.Mutex

	userID     UserID
	curriculum *curriculum.Curriculum
	store      Store
	batchSize  int
	now        func() time.Time
	logger     *slog.Logger

	ledger   *Ledger
	records  map[curriculum.ChapterRef]CompletionRecord
	advancer *Advancer
}

// OpenSession loads the user's records and fixes the assignment window.
func OpenSession(ctx context.Context, c *curriculum.Curriculum, store Store, userID UserID, opts SessionOptions) (*Session, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		userID:     userID,
		curriculum: c,
		store:      store,
		batchSize:  opts.BatchSize,
		now:        opts.Now,
		logger:     opts.Logger.With("user_id", string(userID)),
	}
	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	s.advancer = NewAdvancer(c, opts.ChaptersPerDay, s.ledger)

	s.logger.Debug("session opened",
		"start_index", s.advancer.StartIndex(),
		"completed", s.ledger.CompletedCount())
	return s, nil
}

// reload rebuilds ledger and record index from the store. Caller holds mu
// (or has exclusive access during open).
func (s *Session) reload(ctx context.Context) error {
	recs, err := s.store.FetchRecords(ctx, s.userID, false)
	if err != nil {
		return &StoreError{Op: "fetch records", Err: err}
	}

	index := make(map[curriculum.ChapterRef]CompletionRecord, len(recs))
	for i := range recs {
		recs[i] = recs[i].Normalize()
		index[recs[i].Ref()] = recs[i]
	}
	s.records = index
	s.ledger = BuildLedger(s.curriculum, recs)
	return nil
}

// Refresh re-fetches ground truth from the store. The window start is kept.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reload(ctx)
}

func (s *Session) UserID() UserID { return s.userID }

// Ledger returns a copy of the current ledger.
func (s *Session) Ledger() *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Clone()
}

// Records returns the records the ledger was built from.
func (s *Session) Records() []CompletionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CompletionRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

// Assignment is today's window plus its read-ahead state.
type Assignment struct {
	Chapters    []curriculum.ChapterRef
	AllComplete bool
	ReadAhead   *curriculum.ChapterRef
	StartIndex  int
}

func (s *Session) Assignment() Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := Assignment{
		Chapters:    s.advancer.TodaysAssignment(),
		AllComplete: s.advancer.AllAssignmentComplete(s.ledger),
		StartIndex:  s.advancer.StartIndex(),
	}
	if ref, ok := s.advancer.ReadAhead(s.ledger); ok {
		a.ReadAhead = &ref
	}
	return a
}
