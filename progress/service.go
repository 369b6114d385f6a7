/*
service.go - Engine facade used by the HTTP layer and admin views

PURPOSE:
  Holds one Session per user for the life of the process and exposes the
  engine operations by user ID:

    GetProgressLedger   rebuild the ledger from the store
    GetStats            derived stats snapshot
    ToggleChapter       single chapter, reports dayJustCompleted
    BulkMarkBook        every chapter of one book
    AdvanceSync         reconcile to a target chapter
    GetTodaysAssignment window + read-ahead
    GetWeeklyGrid       last 7 calendar days
    Distribution        cross-user aggregates (needs UserLister)
    Seed                import records with their own timestamps

SESSIONS:
  A session opens on first use and fixes the assignment window. EndSession
  drops it so the window re-initializes on the next request. SweepIdle drops
  every session unused for longer than a given duration.
*/
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/reading-engine/curriculum"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type Options struct {
	ChaptersPerDay int
	BatchSize      int
	Location       *time.Location
	Now            func() time.Time
	Logger         *slog.Logger
	// AdminFetchConcurrency bounds parallel per-user fetches in Distribution.
	AdminFetchConcurrency int
}

type Service struct {
	curriculum *curriculum.Curriculum
	store      Store
	opts       Options
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[UserID]*sessionEntry
	opening  singleflight.Group
}

type sessionEntry struct {
	session  *Session
	lastUsed time.Time
}

func NewService(c *curriculum.Curriculum, store Store, opts Options) *Service {
	if opts.ChaptersPerDay <= 0 {
		opts.ChaptersPerDay = DefaultChaptersPerDay
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AdminFetchConcurrency <= 0 {
		opts.AdminFetchConcurrency = 8
	}
	return &Service{
		curriculum: c,
		store:      store,
		opts:       opts,
		logger:     opts.Logger,
		sessions:   make(map[UserID]*sessionEntry),
	}
}

func (s *Service) Curriculum() *curriculum.Curriculum { return s.curriculum }
func (s *Service) ChaptersPerDay() int                { return s.opts.ChaptersPerDay }
func (s *Service) Now() time.Time                     { return s.opts.Now() }

// Session returns the user's session, opening it on first use. The store
// fetch runs outside mu so a slow open for one user does not block others;
// concurrent opens for the same user share one fetch.
func (s *Service) Session(ctx context.Context, userID UserID) (*Session, error) {
	if sess, ok := s.touch(userID); ok {
		return sess, nil
	}
	v, err, _ := s.opening.Do(string(userID), func() (any, error) {
		if sess, ok := s.touch(userID); ok {
			return sess, nil
		}
		sess, err := OpenSession(ctx, s.curriculum, s.store, userID, SessionOptions{
			ChaptersPerDay: s.opts.ChaptersPerDay,
			BatchSize:      s.opts.BatchSize,
			Now:            s.opts.Now,
			Logger:         s.logger,
		})
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if e, ok := s.sessions[userID]; ok {
			e.lastUsed = s.opts.Now()
			return e.session, nil
		}
		s.sessions[userID] = &sessionEntry{session: sess, lastUsed: s.opts.Now()}
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// touch returns an open session and marks it used.
func (s *Service) touch(userID UserID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	e.lastUsed = s.opts.Now()
	return e.session, true
}

// EndSession forgets the user's session. Returns false if none was open.
func (s *Service) EndSession(userID UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[userID]
	delete(s.sessions, userID)
	return ok
}

// SweepIdle ends sessions not used within maxIdle and returns how many.
func (s *Service) SweepIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.opts.Now().Add(-maxIdle)
	n := 0
	for id, e := range s.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// OpenSessions reports how many sessions are held.
func (s *Service) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// =============================================================================
// READS
// =============================================================================

// GetProgressLedger re-fetches the user's records and returns the rebuilt ledger.
func (s *Service) GetProgressLedger(ctx context.Context, userID UserID) (*Ledger, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sess.Refresh(ctx); err != nil {
		return nil, err
	}
	return sess.Ledger(), nil
}

func (s *Service) GetStats(ctx context.Context, userID UserID) (Stats, error) {
	records, err := s.store.FetchRecords(ctx, userID, true)
	if err != nil {
		return Stats{}, &StoreError{Op: "stats", Err: err}
	}
	plan, err := s.planFor(ctx, userID, records)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(s.curriculum, records, plan, s.opts.ChaptersPerDay, s.opts.Now(), s.opts.Location), nil
}

func (s *Service) GetTodaysAssignment(ctx context.Context, userID UserID) (Assignment, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return Assignment{}, err
	}
	return sess.Assignment(), nil
}

// GetReadAhead returns nil when read-ahead is locked or the curriculum is done.
func (s *Service) GetReadAhead(ctx context.Context, userID UserID) (*curriculum.ChapterRef, error) {
	a, err := s.GetTodaysAssignment(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.ReadAhead, nil
}

func (s *Service) GetWeeklyGrid(ctx context.Context, userID UserID) ([]DayStatus, error) {
	records, err := s.store.FetchRecords(ctx, userID, true)
	if err != nil {
		return nil, &StoreError{Op: "weekly grid", Err: err}
	}
	plan, err := s.planFor(ctx, userID, records)
	if err != nil {
		return nil, err
	}
	today := DateOf(s.opts.Now(), s.opts.Location)
	return WeeklyGrid(s.curriculum, records, plan.StartDate, s.opts.ChaptersPerDay, today, DefaultWeeklyWindow), nil
}

// =============================================================================
// WRITES
// =============================================================================

// ToggleChapter returns whether this toggle completed the assignment window.
func (s *Service) ToggleChapter(ctx context.Context, userID UserID, book string, chapter int, completed bool) (bool, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return false, err
	}
	res, err := sess.Toggle(ctx, curriculum.ChapterRef{Book: book, Chapter: chapter}, completed)
	if err != nil {
		return false, err
	}
	return res.DayJustCompleted, nil
}

func (s *Service) BulkMarkBook(ctx context.Context, userID UserID, book string, completed bool) (SyncResult, error) {
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return SyncResult{}, err
	}
	return sess.BulkMarkBook(ctx, book, completed)
}

func (s *Service) AdvanceSync(ctx context.Context, userID UserID, book string, chapter int) (SyncResult, error) {
	target := curriculum.ChapterRef{Book: book, Chapter: chapter}
	if !s.curriculum.Contains(target) {
		return SyncResult{}, &InvalidTargetError{Ref: target}
	}
	sess, err := s.Session(ctx, userID)
	if err != nil {
		return SyncResult{}, err
	}
	return sess.AdvanceSync(ctx, target)
}

// Seed writes records as given, keeping their CompletedAt, and ends the
// user's session so the next read starts from the seeded state. Every record
// must belong to userID and name a curriculum chapter.
func (s *Service) Seed(ctx context.Context, userID UserID, recs []CompletionRecord) error {
	for i := range recs {
		if recs[i].UserID == "" {
			recs[i].UserID = userID
		}
		if recs[i].UserID != userID {
			return fmt.Errorf("seed %s: record for user %s", userID, recs[i].UserID)
		}
		if !s.curriculum.Contains(recs[i].Ref()) {
			return &InvalidTargetError{Ref: recs[i].Ref()}
		}
		recs[i] = recs[i].Normalize()
	}
	for _, batch := range chunk(recs, s.opts.BatchSize) {
		err := s.store.BatchUpsert(ctx, batch)
		storeWrites.WithLabelValues("batch_seed", outcome(err)).Inc()
		if err != nil {
			return &StoreError{Op: "seed", Err: err}
		}
	}
	s.EndSession(userID)
	return nil
}

// =============================================================================
// PLAN
// =============================================================================

// GetPlan returns the saved plan, or the default derived from records.
func (s *Service) GetPlan(ctx context.Context, userID UserID) (Plan, error) {
	records, err := s.store.FetchRecords(ctx, userID, true)
	if err != nil {
		return Plan{}, &StoreError{Op: "plan", Err: err}
	}
	return s.planFor(ctx, userID, records)
}

func (s *Service) SavePlan(ctx context.Context, plan Plan) error {
	ps, ok := s.store.(PlanStore)
	if !ok {
		return ErrStoreRequired
	}
	if err := ps.SavePlan(ctx, plan); err != nil {
		return &StoreError{Op: "save plan", Err: err}
	}
	return nil
}

func (s *Service) planFor(ctx context.Context, userID UserID, records []CompletionRecord) (Plan, error) {
	if ps, ok := s.store.(PlanStore); ok {
		p, err := ps.GetPlan(ctx, userID)
		if err != nil {
			return Plan{}, &StoreError{Op: "get plan", Err: err}
		}
		if p != nil {
			return *p, nil
		}
	}
	return DefaultPlan(s.curriculum, userID, records, s.opts.Now(), s.opts.Location), nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Distribution fetches every user's completed records concurrently and
// aggregates them.
func (s *Service) Distribution(ctx context.Context, opts DistributionOptions) (Distribution, error) {
	lister, ok := s.store.(UserLister)
	if !ok {
		return Distribution{}, ErrStoreRequired
	}
	ids, err := lister.ListUserIDs(ctx)
	if err != nil {
		return Distribution{}, &StoreError{Op: "list users", Err: err}
	}

	users := make([]UserRecords, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.AdminFetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			recs, err := s.store.FetchRecords(gctx, id, true)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", id, err)
			}
			users[i] = UserRecords{UserID: id, Records: recs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Distribution{}, &StoreError{Op: "distribution", Err: err}
	}
	return ComputeDistribution(s.curriculum, users, s.opts.Now(), s.opts.Location, opts), nil
}
