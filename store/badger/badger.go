/*
Package badger provides a BadgerDB-backed record store.

BadgerDB is an embedded key-value store. It suits single-node deployments
that want durability without running a database server.

KEY LAYOUT (\x00-separated so book names may contain spaces and slashes):
  rec\x00{user}\x00{book}\x00{chapter}  → JSON record
  rid\x00{record id}                    → record key
  plan\x00{user}                        → JSON plan

Each BatchUpsert runs in one read-write transaction.

USAGE:
  store, err := badger.Open(badger.Config{Path: "./data/badger", SyncWrites: true})
  defer store.Close()
*/
package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/warp/reading-engine/progress"
)

// Config holds configuration for a BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store implements progress.Store, progress.PlanStore and progress.UserLister.
type Store struct {
	db *badgerdb.DB
}

// Open creates and opens the store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badgerdb.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// KEYS & ENCODING
// =============================================================================

const sep = "\x00"

var (
	recPrefix  = []byte("rec" + sep)
	ridPrefix  = []byte("rid" + sep)
	planPrefix = []byte("plan" + sep)
)

func userPrefix(userID progress.UserID) []byte {
	return []byte("rec" + sep + string(userID) + sep)
}

func recordKey(userID progress.UserID, book string, chapter int) []byte {
	return []byte("rec" + sep + string(userID) + sep + book + sep + strconv.Itoa(chapter))
}

func idKey(id progress.RecordID) []byte { return append(append([]byte{}, ridPrefix...), string(id)...) }
func planKey(userID progress.UserID) []byte {
	return append(append([]byte{}, planPrefix...), string(userID)...)
}

type recordJSON struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Book        string     `json:"book"`
	Chapter     int        `json:"chapter"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func encodeRecord(r progress.CompletionRecord) ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:          string(r.ID),
		UserID:      string(r.UserID),
		Book:        r.Book,
		Chapter:     r.Chapter,
		Completed:   r.Completed,
		CompletedAt: r.CompletedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	})
}

func decodeRecord(b []byte) (progress.CompletionRecord, error) {
	var j recordJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return progress.CompletionRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return progress.CompletionRecord{
		ID:          progress.RecordID(j.ID),
		UserID:      progress.UserID(j.UserID),
		Book:        j.Book,
		Chapter:     j.Chapter,
		Completed:   j.Completed,
		CompletedAt: j.CompletedAt,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}.Normalize(), nil
}

func getRecord(txn *badgerdb.Txn, key []byte) (progress.CompletionRecord, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return progress.CompletionRecord{}, progress.ErrNotFound
	}
	if err != nil {
		return progress.CompletionRecord{}, err
	}
	var rec progress.CompletionRecord
	err = item.Value(func(val []byte) error {
		rec, err = decodeRecord(val)
		return err
	})
	return rec, err
}

func putRecord(txn *badgerdb.Txn, rec progress.CompletionRecord) error {
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := txn.Set(recordKey(rec.UserID, rec.Book, rec.Chapter), b); err != nil {
		return err
	}
	return txn.Set(idKey(rec.ID), recordKey(rec.UserID, rec.Book, rec.Chapter))
}

// upsertTxn merges rec into any existing record for its key.
func upsertTxn(txn *badgerdb.Txn, rec progress.CompletionRecord, now time.Time) (progress.CompletionRecord, error) {
	rec = rec.Normalize()
	existing, err := getRecord(txn, recordKey(rec.UserID, rec.Book, rec.Chapter))
	switch {
	case err == nil:
		existing.Completed = rec.Completed
		existing.CompletedAt = rec.CompletedAt
		existing.UpdatedAt = now
		rec = existing
	case errors.Is(err, progress.ErrNotFound):
		if rec.ID == "" {
			rec.ID = progress.RecordID(uuid.NewString())
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
	default:
		return progress.CompletionRecord{}, err
	}
	return rec, putRecord(txn, rec)
}

// =============================================================================
// RECORD STORE
// =============================================================================

func (s *Store) FetchRecords(_ context.Context, userID progress.UserID, completedOnly bool) ([]progress.CompletionRecord, error) {
	var records []progress.CompletionRecord
	prefix := userPrefix(userID)

	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decodeRecord(val)
			if err != nil {
				return err
			}
			if completedOnly && !rec.Completed {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return records, nil
}

func (s *Store) UpsertRecord(_ context.Context, rec progress.CompletionRecord) (progress.CompletionRecord, error) {
	var stored progress.CompletionRecord
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		var err error
		stored, err = upsertTxn(txn, rec, time.Now().UTC())
		return err
	})
	if err != nil {
		return progress.CompletionRecord{}, fmt.Errorf("upsert record: %w", err)
	}
	return stored, nil
}

func (s *Store) BatchUpsert(_ context.Context, recs []progress.CompletionRecord) error {
	now := time.Now().UTC()
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		for _, rec := range recs {
			if _, err := upsertTxn(txn, rec, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch upsert: %w", err)
	}
	return nil
}

func (s *Store) UpdateRecord(_ context.Context, id progress.RecordID, upd progress.RecordUpdate) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(idKey(id))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return progress.ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		rec, err := getRecord(txn, key)
		if err != nil {
			return err
		}
		rec.Completed = upd.Completed
		rec.CompletedAt = upd.CompletedAt
		rec.UpdatedAt = time.Now().UTC()
		return putRecord(txn, rec.Normalize())
	})
}

// =============================================================================
// PLANS & USERS
// =============================================================================

type planJSON struct {
	StartDate string `json:"start_date"`
}

func (s *Store) GetPlan(_ context.Context, userID progress.UserID) (*progress.Plan, error) {
	var plan *progress.Plan
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(planKey(userID))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var p planJSON
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			d, err := progress.ParseDate(p.StartDate)
			if err != nil {
				return err
			}
			plan = &progress.Plan{UserID: userID, StartDate: d}
			return nil
		})
	})
	return plan, err
}

func (s *Store) SavePlan(_ context.Context, plan progress.Plan) error {
	b, err := json.Marshal(planJSON{StartDate: plan.StartDate.String()})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(planKey(plan.UserID), b)
	})
}

func (s *Store) ListUserIDs(_ context.Context) ([]progress.UserID, error) {
	var ids []progress.UserID
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var last []byte
		for it.Seek(recPrefix); it.ValidForPrefix(recPrefix); it.Next() {
			rest := it.Item().Key()[len(recPrefix):]
			end := bytes.IndexByte(rest, 0)
			if end < 0 {
				continue
			}
			user := rest[:end]
			if last != nil && bytes.Equal(user, last) {
				continue
			}
			last = append(last[:0], user...)
			ids = append(ids, progress.UserID(user))
		}
		return nil
	})
	return ids, err
}
