package progress

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/reading-engine/curriculum"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// genesis3 is the one-book curriculum used by the worked examples.
func genesis3() *curriculum.Curriculum {
	return curriculum.MustNew([]curriculum.Book{{Name: "Genesis", Chapters: 3}})
}

// tenChapters flattens to exactly 10 entries across three books.
func tenChapters() *curriculum.Curriculum {
	return curriculum.MustNew([]curriculum.Book{
		{Name: "Ruth", Chapters: 4},
		{Name: "Jonah", Chapters: 4},
		{Name: "Joel", Chapters: 2},
	})
}

func ref(book string, chapter int) curriculum.ChapterRef {
	return curriculum.ChapterRef{Book: book, Chapter: chapter}
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

// completedOn builds a completed record stamped at noon UTC on day.
func completedOn(book string, chapter int, day string) CompletionRecord {
	d, err := ParseDate(day)
	if err != nil {
		panic(err)
	}
	at := d.Time.Add(12 * time.Hour)
	return CompletionRecord{
		UserID:      "u1",
		Book:        book,
		Chapter:     chapter,
		Completed:   true,
		CompletedAt: &at,
	}
}

// readFirst marks the first n chapters of c read in a fresh ledger.
func readFirst(c *curriculum.Curriculum, n int) *Ledger {
	l := BuildLedger(c, nil)
	for _, r := range c.Slice(0, n) {
		l.Set(r, true)
	}
	return l
}

func fixedNow(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

// =============================================================================
// FAKE STORE - counts calls and injects failures
// =============================================================================

type fakeKey struct {
	user UserID
	ref  curriculum.ChapterRef
}

type fakeStore struct {
	mu      sync.Mutex
	records map[fakeKey]CompletionRecord
	nextID  int

	fetches      int
	updates      int
	upserts      int
	batches      int
	batchRecords int

	failFetch  error
	failUpdate error
	failUpsert error
	// failBatch, when set, is consulted with the 1-based BatchUpsert call number.
	failBatch func(call int) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[fakeKey]CompletionRecord)}
}

func (f *fakeStore) FetchRecords(_ context.Context, userID UserID, completedOnly bool) ([]CompletionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetches++
	if f.failFetch != nil {
		return nil, f.failFetch
	}
	var out []CompletionRecord
	for k, r := range f.records {
		if k.user != userID || (completedOnly && !r.Completed) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) upsertLocked(rec CompletionRecord) CompletionRecord {
	k := fakeKey{user: rec.UserID, ref: rec.Ref()}
	if existing, ok := f.records[k]; ok {
		existing.Completed = rec.Completed
		existing.CompletedAt = rec.CompletedAt
		f.records[k] = existing.Normalize()
		return f.records[k]
	}
	f.nextID++
	rec.ID = RecordID(fmt.Sprintf("rec-%d", f.nextID))
	f.records[k] = rec.Normalize()
	return f.records[k]
}

func (f *fakeStore) UpsertRecord(_ context.Context, rec CompletionRecord) (CompletionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upserts++
	if f.failUpsert != nil {
		return CompletionRecord{}, f.failUpsert
	}
	return f.upsertLocked(rec), nil
}

func (f *fakeStore) BatchUpsert(_ context.Context, recs []CompletionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches++
	if f.failBatch != nil {
		if err := f.failBatch(f.batches); err != nil {
			return err
		}
	}
	for _, r := range recs {
		f.upsertLocked(r)
	}
	f.batchRecords += len(recs)
	return nil
}

func (f *fakeStore) UpdateRecord(_ context.Context, id RecordID, upd RecordUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates++
	if f.failUpdate != nil {
		return f.failUpdate
	}
	for k, r := range f.records {
		if r.ID == id {
			f.records[k] = r.apply(upd).Normalize()
			return nil
		}
	}
	return ErrNotFound
}

// count returns the number of stored records for userID.
func (f *fakeStore) count(userID UserID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.records {
		if k.user == userID {
			n++
		}
	}
	return n
}

// remove deletes a record behind the session's back.
func (f *fakeStore) remove(userID UserID, r curriculum.ChapterRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, fakeKey{user: userID, ref: r})
}

func (f *fakeStore) resetCounters() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches, f.updates, f.upserts, f.batches, f.batchRecords = 0, 0, 0, 0, 0
}

func openTestSession(t *testing.T, c *curriculum.Curriculum, store Store) *Session {
	t.Helper()
	s, err := OpenSession(context.Background(), c, store, "u1", SessionOptions{
		ChaptersPerDay: DefaultChaptersPerDay,
		Now:            fixedNow("2024-03-10T09:00:00Z"),
	})
	require.NoError(t, err)
	return s
}
