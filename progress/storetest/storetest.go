// Package storetest is a conformance suite for progress.Store implementations.
//
// Each store package calls Run from its own tests with a constructor that
// returns an empty store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/reading-engine/progress"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) progress.Store

// Run exercises the Store contract and, when implemented, PlanStore and
// UserLister.
func Run(t *testing.T, newStore Factory) {
	t.Run("UpsertInsertsThenUpdatesInPlace", func(t *testing.T) { testUpsert(t, newStore(t)) })
	t.Run("FetchFiltersByUserAndCompletion", func(t *testing.T) { testFetch(t, newStore(t)) })
	t.Run("BatchUpsert", func(t *testing.T) { testBatch(t, newStore(t)) })
	t.Run("UpdateRecord", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("Plans", func(t *testing.T) { testPlans(t, newStore(t)) })
	t.Run("ListUserIDs", func(t *testing.T) { testListUsers(t, newStore(t)) })
}

func at(day int) *time.Time {
	t := time.Date(2024, 1, day, 7, 30, 0, 0, time.UTC)
	return &t
}

func record(user progress.UserID, book string, chapter int, completedDay int) progress.CompletionRecord {
	r := progress.CompletionRecord{UserID: user, Book: book, Chapter: chapter}
	if completedDay > 0 {
		r.Completed = true
		r.CompletedAt = at(completedDay)
	}
	return r
}

func testUpsert(t *testing.T, s progress.Store) {
	ctx := context.Background()

	// GIVEN: A new record
	first, err := s.UpsertRecord(ctx, record("u1", "1 Samuel", 3, 2))
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.True(t, first.Completed)
	require.NotNil(t, first.CompletedAt)
	assert.True(t, at(2).Equal(*first.CompletedAt))

	// WHEN: Upserting the same key unchecked
	second, err := s.UpsertRecord(ctx, record("u1", "1 Samuel", 3, 0))
	require.NoError(t, err)

	// THEN: Same row, completion cleared
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Completed)
	assert.Nil(t, second.CompletedAt)

	recs, err := s.FetchRecords(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1 Samuel", recs[0].Book)
}

func testFetch(t *testing.T, s progress.Store) {
	ctx := context.Background()
	for _, r := range []progress.CompletionRecord{
		record("u1", "Genesis", 1, 1),
		record("u1", "Genesis", 2, 0),
		record("u2", "Genesis", 1, 1),
	} {
		_, err := s.UpsertRecord(ctx, r)
		require.NoError(t, err)
	}

	all, err := s.FetchRecords(ctx, "u1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	done, err := s.FetchRecords(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, 1, done[0].Chapter)

	none, err := s.FetchRecords(ctx, "nobody", false)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testBatch(t *testing.T, s progress.Store) {
	ctx := context.Background()
	existing, err := s.UpsertRecord(ctx, record("u1", "Ruth", 1, 0))
	require.NoError(t, err)

	// WHEN: One batch mixes an update of an existing key with inserts
	err = s.BatchUpsert(ctx, []progress.CompletionRecord{
		record("u1", "Ruth", 1, 3),
		record("u1", "Ruth", 2, 3),
		record("u1", "Ruth", 3, 4),
	})
	require.NoError(t, err)

	// THEN: Three rows, the first keeping its id
	recs, err := s.FetchRecords(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	byChapter := map[int]progress.CompletionRecord{}
	for _, r := range recs {
		byChapter[r.Chapter] = r
	}
	assert.Equal(t, existing.ID, byChapter[1].ID)
	require.NotNil(t, byChapter[3].CompletedAt)
	assert.True(t, at(4).Equal(*byChapter[3].CompletedAt))

	assert.NoError(t, s.BatchUpsert(ctx, nil), "empty batch")
}

func testUpdate(t *testing.T, s progress.Store) {
	ctx := context.Background()
	rec, err := s.UpsertRecord(ctx, record("u1", "Jonah", 1, 0))
	require.NoError(t, err)

	err = s.UpdateRecord(ctx, rec.ID, progress.RecordUpdate{Completed: true, CompletedAt: at(5)})
	require.NoError(t, err)

	recs, err := s.FetchRecords(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].CompletedAt)
	assert.True(t, at(5).Equal(*recs[0].CompletedAt))

	// Unchecking drops the timestamp even if one is passed
	err = s.UpdateRecord(ctx, rec.ID, progress.RecordUpdate{Completed: false, CompletedAt: at(6)})
	require.NoError(t, err)
	recs, err = s.FetchRecords(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].CompletedAt)

	err = s.UpdateRecord(ctx, "does-not-exist", progress.RecordUpdate{Completed: true, CompletedAt: at(1)})
	assert.ErrorIs(t, err, progress.ErrNotFound)
}

func testPlans(t *testing.T, s progress.Store) {
	ps, ok := s.(progress.PlanStore)
	if !ok {
		t.Skip("store has no plans")
	}
	ctx := context.Background()

	p, err := ps.GetPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, ps.SavePlan(ctx, progress.Plan{UserID: "u1", StartDate: progress.NewDate(2024, 1, 1)}))
	require.NoError(t, ps.SavePlan(ctx, progress.Plan{UserID: "u1", StartDate: progress.NewDate(2024, 2, 1)}))

	p, err = ps.GetPlan(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, progress.UserID("u1"), p.UserID)
	assert.Equal(t, "2024-02-01", p.StartDate.String())
}

func testListUsers(t *testing.T, s progress.Store) {
	ul, ok := s.(progress.UserLister)
	if !ok {
		t.Skip("store cannot list users")
	}
	ctx := context.Background()
	require.NoError(t, s.BatchUpsert(ctx, []progress.CompletionRecord{
		record("bob", "Genesis", 1, 1),
		record("alice", "Genesis", 1, 1),
		record("alice", "Genesis", 2, 1),
		record("al", "Genesis", 1, 1),
	}))

	ids, err := ul.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []progress.UserID{"al", "alice", "bob"}, ids)
}
