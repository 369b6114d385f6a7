/*
errors.go - Centralized error types for the progress engine

ERROR CATEGORIES:
  1. StoreUnavailable - the record store failed; optimistic state is rolled back
  2. NotFound         - a record vanished between read and write; callers insert instead
  3. InvalidTarget    - a chapter reference outside the curriculum; rejected before any write

Every operation boundary (Toggle, AdvanceSync, BulkMarkBook) converts store
failures into one of these. Nothing is fatal: retry, or re-fetch the ledger.

USAGE:
  if errors.Is(err, progress.ErrStoreUnavailable) {
      // re-fetch the ledger; the in-memory copy may be stale
  }

SEE ALSO:
  - toggle.go: StoreError on write-through failure
  - reconcile.go: SyncError for partial batch failure
*/
package progress

import (
	"errors"
	"fmt"

	"github.com/warp/reading-engine/curriculum"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStoreUnavailable is returned when the record store cannot complete a read or write.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrNotFound is returned by stores when a record id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTarget is returned when a chapter reference is not in the curriculum.
	ErrInvalidTarget = errors.New("chapter not in curriculum")

	// ErrStoreRequired is returned when an operation needs an optional store capability.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTargetError names the rejected reference.
type InvalidTargetError struct {
	Ref curriculum.ChapterRef
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target %q chapter %d: not in curriculum", e.Ref.Book, e.Ref.Chapter)
}

func (e *InvalidTargetError) Unwrap() error { return ErrInvalidTarget }

// StoreError wraps a store failure at an operation boundary.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// SyncError reports a partially failed bulk operation as one aggregate failure.
// Written counts are what the store acknowledged; the ledger has already been
// re-fetched when this is returned, if the store allowed it.
type SyncError struct {
	Op            string
	Batches       int
	FailedBatches int
	Written       int
	Err           error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %d of %d batches failed (%d records written): %v",
		e.Op, e.FailedBatches, e.Batches, e.Written, e.Err)
}

func (e *SyncError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTarget)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable returns true if the store failed and the caller may retry.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
