// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/reading-engine/progress"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[key]progress.CompletionRecord
	byID    map[progress.RecordID]key
	plans   map[progress.UserID]progress.Plan
}

type key struct {
	UserID  progress.UserID
	Book    string
	Chapter int
}

func keyOf(r progress.CompletionRecord) key {
	return key{UserID: r.UserID, Book: r.Book, Chapter: r.Chapter}
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[key]progress.CompletionRecord),
		byID:    make(map[progress.RecordID]key),
		plans:   make(map[progress.UserID]progress.Plan),
	}
}

// Close is a no-op so Memory can stand in wherever a store is closed.
func (m *Memory) Close() error { return nil }

func (m *Memory) FetchRecords(_ context.Context, userID progress.UserID, completedOnly bool) ([]progress.CompletionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []progress.CompletionRecord
	for k, r := range m.records {
		if k.UserID != userID || (completedOnly && !r.Completed) {
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Book != b.Book {
			return a.Book < b.Book
		}
		return a.Chapter < b.Chapter
	})
	return result, nil
}

func (m *Memory) UpsertRecord(_ context.Context, rec progress.CompletionRecord) (progress.CompletionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(rec, time.Now().UTC()), nil
}

// BatchUpsert applies all records under one lock.
func (m *Memory) BatchUpsert(_ context.Context, recs []progress.CompletionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, r := range recs {
		m.upsertLocked(r, now)
	}
	return nil
}

func (m *Memory) upsertLocked(rec progress.CompletionRecord, now time.Time) progress.CompletionRecord {
	rec = rec.Normalize()
	k := keyOf(rec)
	if existing, ok := m.records[k]; ok {
		existing.Completed = rec.Completed
		existing.CompletedAt = rec.CompletedAt
		existing.UpdatedAt = now
		m.records[k] = existing
		return existing
	}

	if rec.ID == "" {
		rec.ID = progress.RecordID(uuid.NewString())
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.records[k] = rec
	m.byID[rec.ID] = k
	return rec
}

func (m *Memory) UpdateRecord(_ context.Context, id progress.RecordID, upd progress.RecordUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.byID[id]
	if !ok {
		return progress.ErrNotFound
	}
	r := m.records[k]
	r.Completed = upd.Completed
	r.CompletedAt = upd.CompletedAt
	r.UpdatedAt = time.Now().UTC()
	m.records[k] = r.Normalize()
	return nil
}

// Delete removes a record by id. Used to simulate account-level removal.
func (m *Memory) Delete(id progress.RecordID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k, ok := m.byID[id]; ok {
		delete(m.records, k)
		delete(m.byID, id)
	}
}

// =============================================================================
// PLANS & USERS
// =============================================================================

func (m *Memory) GetPlan(_ context.Context, userID progress.UserID) (*progress.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plans[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) SavePlan(_ context.Context, plan progress.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.UserID] = plan
	return nil
}

func (m *Memory) ListUserIDs(_ context.Context) ([]progress.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[progress.UserID]bool)
	var ids []progress.UserID
	for k := range m.records {
		if !seen[k.UserID] {
			seen[k.UserID] = true
			ids = append(ids, k.UserID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
