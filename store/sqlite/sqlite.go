/*
Package sqlite provides a SQLite-backed implementation of the record store.

PURPOSE:
  Implements progress.Store, progress.PlanStore and progress.UserLister.
  The same schema works on PostgreSQL with minor dialect changes.

KEY TABLES:
  reading_records: one row per (user_id, book, chapter), upserted in place
  reading_plans:   per-user plan start date

UPSERT:
  Uniqueness of (user_id, book, chapter) is enforced by a UNIQUE constraint;
  writes use INSERT ... ON CONFLICT DO UPDATE so the row id and created_at of
  an existing record are kept.

TIMESTAMPS:
  Stored as fixed-width RFC3339 TEXT in UTC with nine fractional digits, so
  text order is time order. completed_at is NULL iff completed = 0.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/reading.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := progress.NewService(curriculum.Standard(), store, progress.Options{})

SEE ALSO:
  - progress/store.go: Interface definitions
  - progress/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/reading-engine/progress"
)

// Store implements the progress storage interfaces using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// timeLayout is fixed width, so text order on a timestamp column is time
// order. time.RFC3339Nano trims trailing zeros.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reading_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		book TEXT NOT NULL,
		chapter INTEGER NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, book, chapter)
	);

	-- Hot path: fetch a user's ledger
	CREATE INDEX IF NOT EXISTS idx_reading_records_user
		ON reading_records(user_id, completed);

	CREATE TABLE IF NOT EXISTS reading_plans (
		user_id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (progress.Store interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertQuery = `
	INSERT INTO reading_records
		(id, user_id, book, chapter, completed, completed_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, book, chapter) DO UPDATE SET
		completed = excluded.completed,
		completed_at = excluded.completed_at,
		updated_at = excluded.updated_at
`

func (s *Store) upsertTx(ctx context.Context, db execer, rec progress.CompletionRecord, now time.Time) error {
	rec = rec.Normalize()
	if rec.ID == "" {
		rec.ID = progress.RecordID(uuid.NewString())
	}

	_, err := db.ExecContext(ctx, upsertQuery,
		rec.ID,
		rec.UserID,
		rec.Book,
		rec.Chapter,
		rec.Completed,
		formatNullTime(rec.CompletedAt),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

// UpsertRecord inserts or updates one record and returns the stored row.
func (s *Store) UpsertRecord(ctx context.Context, rec progress.CompletionRecord) (progress.CompletionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.upsertTx(ctx, s.db, rec, s.now()); err != nil {
		return progress.CompletionRecord{}, err
	}

	row := s.db.QueryRowContext(ctx, selectRecords+` WHERE user_id = ? AND book = ? AND chapter = ?`,
		rec.UserID, rec.Book, rec.Chapter)
	stored, err := scanRecord(row)
	if err != nil {
		return progress.CompletionRecord{}, err
	}
	return stored, nil
}

// BatchUpsert writes all records in one database transaction.
func (s *Store) BatchUpsert(ctx context.Context, recs []progress.CompletionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := s.now()
	for _, rec := range recs {
		if err := s.upsertTx(ctx, sqlTx, rec, now); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// UpdateRecord changes completion fields by record id.
func (s *Store) UpdateRecord(ctx context.Context, id progress.RecordID, upd progress.RecordUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !upd.Completed {
		upd.CompletedAt = nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reading_records SET completed = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		upd.Completed, formatNullTime(upd.CompletedAt),
		formatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return progress.ErrNotFound
	}
	return nil
}

const selectRecords = `
	SELECT id, user_id, book, chapter, completed, completed_at, created_at, updated_at
	FROM reading_records
`

// FetchRecords returns a user's records in insertion order.
func (s *Store) FetchRecords(ctx context.Context, userID progress.UserID, completedOnly bool) ([]progress.CompletionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectRecords + ` WHERE user_id = ?`
	if completedOnly {
		query += ` AND completed = 1`
	}
	query += ` ORDER BY created_at ASC, book ASC, chapter ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []progress.CompletionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (progress.CompletionRecord, error) {
	var (
		rec         progress.CompletionRecord
		completedAt sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(&rec.ID, &rec.UserID, &rec.Book, &rec.Chapter, &rec.Completed,
		&completedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return rec, progress.ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	if completedAt.Valid && completedAt.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			rec.CompletedAt = &t
		}
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return rec.Normalize(), nil
}

// =============================================================================
// PLAN STORE (progress.PlanStore interface)
// =============================================================================

func (s *Store) GetPlan(ctx context.Context, userID progress.UserID) (*progress.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var startDate string
	err := s.db.QueryRowContext(ctx,
		"SELECT start_date FROM reading_plans WHERE user_id = ?", userID,
	).Scan(&startDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	d, err := progress.ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	return &progress.Plan{UserID: userID, StartDate: d}, nil
}

func (s *Store) SavePlan(ctx context.Context, plan progress.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO reading_plans (user_id, start_date, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			start_date = excluded.start_date,
			updated_at = excluded.updated_at
	`
	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx, query, plan.UserID, plan.StartDate.String(), now, now)
	return err
}

// =============================================================================
// USER LISTER (progress.UserLister interface)
// =============================================================================

func (s *Store) ListUserIDs(ctx context.Context) ([]progress.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT user_id FROM reading_records ORDER BY user_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []progress.UserID
	for rows.Next() {
		var id progress.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
