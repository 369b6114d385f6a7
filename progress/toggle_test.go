package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggle_WorkedExample(t *testing.T) {
	// GIVEN: [Genesis 3], nothing read
	store := newFakeStore()
	s := openTestSession(t, genesis3(), store)

	// WHEN: toggle(Genesis 1, true)
	res, err := s.Toggle(context.Background(), ref("Genesis", 1), true)

	// THEN: Genesis 1 read, rate 33
	require.NoError(t, err)
	assert.True(t, res.Completed)
	l := s.Ledger()
	assert.True(t, l.IsRead(ref("Genesis", 1)))
	assert.Equal(t, 33, CompletionRate(l))
}

func TestToggle_SameValueTwiceUpdatesInsteadOfInserting(t *testing.T) {
	// GIVEN: Genesis 1 toggled on once
	store := newFakeStore()
	s := openTestSession(t, genesis3(), store)
	ctx := context.Background()

	_, err := s.Toggle(ctx, ref("Genesis", 1), true)
	require.NoError(t, err)
	before := s.Ledger().Map()
	assert.Equal(t, 1, store.upserts)

	// WHEN: Toggling it on again
	_, err = s.Toggle(ctx, ref("Genesis", 1), true)
	require.NoError(t, err)

	// THEN: Same ledger, an update was issued, still one record
	assert.Equal(t, before, s.Ledger().Map())
	assert.Equal(t, 1, store.upserts)
	assert.Equal(t, 1, store.updates)
	assert.Equal(t, 1, store.count("u1"))
}

func TestToggle_UncheckClearsCompletedAt(t *testing.T) {
	store := newFakeStore()
	s := openTestSession(t, genesis3(), store)
	ctx := context.Background()

	_, err := s.Toggle(ctx, ref("Genesis", 2), true)
	require.NoError(t, err)
	_, err = s.Toggle(ctx, ref("Genesis", 2), false)
	require.NoError(t, err)

	recs, err := store.FetchRecords(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Completed)
	assert.Nil(t, recs[0].CompletedAt)
	assert.False(t, s.Ledger().IsRead(ref("Genesis", 2)))
}

func TestToggle_StoreFailureRollsBack(t *testing.T) {
	// GIVEN: Genesis 1 read, and a store that now rejects writes
	store := newFakeStore()
	s := openTestSession(t, genesis3(), store)
	ctx := context.Background()
	_, err := s.Toggle(ctx, ref("Genesis", 1), true)
	require.NoError(t, err)

	store.failUpdate = errors.New("503 from upstream")
	store.failUpsert = errors.New("503 from upstream")
	rolledBack := testutil.ToFloat64(toggles.WithLabelValues("rolled_back"))

	// WHEN: Unchecking Genesis 1 and checking Genesis 2
	_, err1 := s.Toggle(ctx, ref("Genesis", 1), false)
	_, err2 := s.Toggle(ctx, ref("Genesis", 2), true)

	// THEN: Both fail as unavailable and the ledger is unchanged
	for _, err := range []error{err1, err2} {
		require.Error(t, err)
		assert.True(t, IsUnavailable(err))
		var se *StoreError
		assert.ErrorAs(t, err, &se)
	}
	l := s.Ledger()
	assert.True(t, l.IsRead(ref("Genesis", 1)))
	assert.False(t, l.IsRead(ref("Genesis", 2)))
	assert.Equal(t, rolledBack+2, testutil.ToFloat64(toggles.WithLabelValues("rolled_back")))
}

func TestToggle_InvalidTargetRejectedWithoutWrites(t *testing.T) {
	store := newFakeStore()
	s := openTestSession(t, genesis3(), store)

	_, err := s.Toggle(context.Background(), ref("Genesis", 4), true)

	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.Equal(t, 0, store.upserts+store.updates)
	assert.Equal(t, 3, s.Ledger().Len())
}

func TestToggle_VanishedRecordIsReinserted(t *testing.T) {
	// GIVEN: Genesis 1 has a record the session knows about, then it disappears
	store := newFakeStore()
	s := openTestSession(t, genesis3(), store)
	ctx := context.Background()
	_, err := s.Toggle(ctx, ref("Genesis", 1), true)
	require.NoError(t, err)
	store.remove("u1", ref("Genesis", 1))

	// WHEN: Toggling it again
	_, err = s.Toggle(ctx, ref("Genesis", 1), false)

	// THEN: The update reports not found and the engine inserts instead
	require.NoError(t, err)
	assert.Equal(t, 1, store.updates)
	assert.Equal(t, 2, store.upserts)
	assert.Equal(t, 1, store.count("u1"))
}

func TestToggle_DayJustCompletedFiresOnceOnTransition(t *testing.T) {
	// GIVEN: Window Ruth 1-4
	store := newFakeStore()
	s := openTestSession(t, tenChapters(), store)
	ctx := context.Background()

	// WHEN: Reading the first three
	for ch := 1; ch <= 3; ch++ {
		res, err := s.Toggle(ctx, ref("Ruth", ch), true)
		require.NoError(t, err)
		assert.False(t, res.DayJustCompleted)
	}

	// THEN: The fourth completes the day
	res, err := s.Toggle(ctx, ref("Ruth", 4), true)
	require.NoError(t, err)
	assert.True(t, res.DayJustCompleted)

	// AND: Re-marking or reading ahead does not fire again
	res, err = s.Toggle(ctx, ref("Ruth", 4), true)
	require.NoError(t, err)
	assert.False(t, res.DayJustCompleted)
	res, err = s.Toggle(ctx, ref("Jonah", 1), true)
	require.NoError(t, err)
	assert.False(t, res.DayJustCompleted)

	// AND: Unchecking then re-checking fires again
	_, err = s.Toggle(ctx, ref("Ruth", 2), false)
	require.NoError(t, err)
	res, err = s.Toggle(ctx, ref("Ruth", 2), true)
	require.NoError(t, err)
	assert.True(t, res.DayJustCompleted)
}

func TestToggle_FailedCompletionDoesNotFire(t *testing.T) {
	store := newFakeStore()
	s := openTestSession(t, tenChapters(), store)
	ctx := context.Background()
	for ch := 1; ch <= 3; ch++ {
		_, err := s.Toggle(ctx, ref("Ruth", ch), true)
		require.NoError(t, err)
	}
	store.failUpsert = errors.New("down")

	res, err := s.Toggle(ctx, ref("Ruth", 4), true)

	require.Error(t, err)
	assert.False(t, res.DayJustCompleted)
	assert.False(t, s.Assignment().AllComplete)
}

func TestSession_WindowHoldsAcrossToggles(t *testing.T) {
	// GIVEN: Ruth fully read before the session opens
	store := newFakeStore()
	ctx := context.Background()
	for ch := 1; ch <= 4; ch++ {
		_, err := store.UpsertRecord(ctx, completedOn("Ruth", ch, "2024-03-09"))
		require.NoError(t, err)
	}
	s := openTestSession(t, tenChapters(), store)
	require.Equal(t, 4, s.Assignment().StartIndex)

	// WHEN: Unchecking Ruth 1, and refreshing from the store
	_, err := s.Toggle(ctx, ref("Ruth", 1), false)
	require.NoError(t, err)
	require.NoError(t, s.Refresh(ctx))

	// THEN: The window does not jump back
	a := s.Assignment()
	assert.Equal(t, 4, a.StartIndex)
	assert.Equal(t, ref("Jonah", 1), a.Chapters[0])
}

func TestOpenSession_FetchFailure(t *testing.T) {
	store := newFakeStore()
	store.failFetch = errors.New("no route to host")

	_, err := OpenSession(context.Background(), genesis3(), store, "u1", SessionOptions{})

	assert.True(t, IsUnavailable(err))
	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "fetch records", se.Op)
}

func TestErrorHelpers(t *testing.T) {
	inv := &InvalidTargetError{Ref: ref("Genesis", 51)}
	assert.True(t, IsClientError(inv))
	assert.False(t, IsUnavailable(inv))
	assert.Contains(t, inv.Error(), "Genesis")

	se := &StoreError{Op: "toggle", Err: ErrNotFound}
	assert.True(t, IsUnavailable(se))
	assert.True(t, IsNotFound(se))
	assert.False(t, IsClientError(se))

	sync := &SyncError{Op: "advance-sync", Batches: 2, FailedBatches: 1, Err: errors.New("x")}
	assert.True(t, IsUnavailable(sync))
	assert.Contains(t, sync.Error(), "1 of 2 batches failed")
}
