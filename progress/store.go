/*
store.go - Persistence interface for completion records

PURPOSE:
  Defines the boundary between the engine and whatever durably holds
  completion records. The engine treats the store as a key-value store
  keyed on (UserID, Book, Chapter) with read, upsert and batch-upsert.

KEY INTERFACES:
  Store:      Core record persistence (fetch, upsert, batch upsert, update)
  PlanStore:  Per-user plan settings (start date)
  UserLister: Enumerates users for admin aggregates

UPSERT CONTRACT:
  UpsertRecord and BatchUpsert insert when no record exists for the key and
  update Completed/CompletedAt otherwise. The record ID and CreatedAt of an
  existing row are preserved. Last write wins; no conflict detection.

IMPLEMENTATIONS:
  - progress/store/memory.go: In-memory for tests and dev
  - store/sqlite/sqlite.go:   SQLite
  - store/badger/badger.go:   BadgerDB embedded KV

SEE ALSO:
  - errors.go: ErrNotFound returned by UpdateRecord
*/
package progress

import "context"

// =============================================================================
// STORE - Interface for record persistence
// =============================================================================

type Store interface {
	// FetchRecords returns every record for a user. completedOnly filters to
	// Completed = true.
	FetchRecords(ctx context.Context, userID UserID, completedOnly bool) ([]CompletionRecord, error)

	// UpsertRecord inserts or updates the record keyed by (UserID, Book, Chapter)
	// and returns it as stored, with its ID assigned.
	UpsertRecord(ctx context.Context, rec CompletionRecord) (CompletionRecord, error)

	// BatchUpsert upserts many records. A batch is applied atomically where
	// the backend supports it.
	BatchUpsert(ctx context.Context, recs []CompletionRecord) error

	// UpdateRecord changes the completion fields of an existing record.
	// Returns ErrNotFound when id does not exist.
	UpdateRecord(ctx context.Context, id RecordID, upd RecordUpdate) error
}

// PlanStore extends Store with plan settings.
type PlanStore interface {
	// GetPlan returns nil, nil when the user has no saved plan.
	GetPlan(ctx context.Context, userID UserID) (*Plan, error)
	SavePlan(ctx context.Context, plan Plan) error
}

// UserLister extends Store with user enumeration for admin views.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]UserID, error)
}
