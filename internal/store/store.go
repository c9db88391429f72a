// Package store implements the primary store: a local SQLite database holding
// each collection as one serialized value, plus a small metadata namespace.
// Every put replaces the whole collection atomically, so readers never see a
// torn collection.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/crewbook/crewbook/internal/common"
	"github.com/crewbook/crewbook/internal/dbx"
	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/models"
	"github.com/crewbook/crewbook/internal/store/migrations"

	_ "modernc.org/sqlite"
)

// Collection names. Each is a single row in the collections table.
const (
	CollectionWorkers  = "workers"
	CollectionProjects = "projects"
	CollectionEntries  = "entries"
)

// Metadata keys.
const (
	MetaSchemaVersion  = "schema_version"
	MetaLastBackupAt   = "last_backup_at"
	MetaLastVacuumAt   = "last_vacuum_at"
	MetaLegacyMigrated = "legacy_migrated"
	MetaUserFilePath   = "userfile_path"
)

// Store is the single constructed handle to the primary database. Callers
// hold a reference; there is no ambient global.
type Store struct {
	db  *sql.DB
	log logging.Logger
}

// Open opens (or creates) the database at dsn, waits out transient lock
// contention, and applies pending schema migrations. Safe to call with a dsn
// that was already opened and closed before; the result is always a live
// handle or an error.
func Open(ctx context.Context, dsn string, log logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open database", err)
	}

	// SQLite allows one writer; a single pooled connection also keeps
	// ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)

	// SQLITE_BUSY from a concurrent process is transient; give it a moment.
	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(50*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, storageErr("ping database", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, storageErr("migrate database", err)
	}

	log.Debug(ctx, "store opened", "dsn", dsn)
	return &Store{db: db, log: log}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for test seeding.
func (s *Store) DB() *sql.DB { return s.db }

// GetRaw returns the serialized collection value, or nil if it was never
// written. Absence is not an error.
func (s *Store) GetRaw(ctx context.Context, name string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM collections WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(fmt.Sprintf("get collection %q", name), err)
	}
	return value, nil
}

// PutRaw atomically replaces the entire stored collection value.
func (s *Store) PutRaw(ctx context.Context, name string, value []byte) error {
	return putRaw(ctx, s.db, name, value)
}

func putRaw(ctx context.Context, q dbx.DBTX, name string, value []byte) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO collections (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, name, value)
	if err != nil {
		return storageErr(fmt.Sprintf("put collection %q", name), err)
	}
	return nil
}

// ReplaceAll writes all three collections inside one transaction, so a
// multi-collection import either lands completely or not at all.
func (s *Store) ReplaceAll(ctx context.Context, workers []models.Worker, projects []models.Project, entries []models.Entry) error {
	payload := make(map[string][]byte, 3)
	for name, items := range map[string]any{
		CollectionWorkers:  orEmptyWorkers(workers),
		CollectionProjects: orEmptyProjects(projects),
		CollectionEntries:  orEmptyEntries(entries),
	} {
		raw, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("encode collection %q: %w", name, err)
		}
		payload[name] = raw
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, name := range []string{CollectionWorkers, CollectionProjects, CollectionEntries} {
			if err := putRaw(ctx, tx, name, payload[name]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("replace collections", err)
	}
	return nil
}

func orEmptyWorkers(v []models.Worker) []models.Worker {
	if v == nil {
		return []models.Worker{}
	}
	return v
}

func orEmptyProjects(v []models.Project) []models.Project {
	if v == nil {
		return []models.Project{}
	}
	return v
}

func orEmptyEntries(v []models.Entry) []models.Entry {
	if v == nil {
		return []models.Entry{}
	}
	return v
}

// GetCollection decodes the named collection. A never-written collection
// decodes to an empty (non-nil) slice.
func GetCollection[T any](ctx context.Context, s *Store, name string) ([]T, error) {
	raw, err := s.GetRaw(ctx, name)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode collection %q: %w", name, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// PutCollection encodes and atomically replaces the named collection.
func PutCollection[T any](ctx context.Context, s *Store, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode collection %q: %w", name, err)
	}
	return s.PutRaw(ctx, name, raw)
}

func (s *Store) Workers(ctx context.Context) ([]models.Worker, error) {
	return GetCollection[models.Worker](ctx, s, CollectionWorkers)
}

func (s *Store) PutWorkers(ctx context.Context, workers []models.Worker) error {
	return PutCollection(ctx, s, CollectionWorkers, workers)
}

func (s *Store) Projects(ctx context.Context) ([]models.Project, error) {
	return GetCollection[models.Project](ctx, s, CollectionProjects)
}

func (s *Store) PutProjects(ctx context.Context, projects []models.Project) error {
	return PutCollection(ctx, s, CollectionProjects, projects)
}

func (s *Store) Entries(ctx context.Context) ([]models.Entry, error) {
	return GetCollection[models.Entry](ctx, s, CollectionEntries)
}

func (s *Store) PutEntries(ctx context.Context, entries []models.Entry) error {
	return PutCollection(ctx, s, CollectionEntries, entries)
}

// GetMeta returns the metadata value for key, or "" if absent.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageErr(fmt.Sprintf("get metadata[%s]", key), err)
	}
	return value, nil
}

// SetMeta upserts a metadata value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return storageErr(fmt.Sprintf("set metadata[%s]", key), err)
	}
	return nil
}

// DeleteMeta removes a metadata key. Removing an absent key is a no-op.
func (s *Store) DeleteMeta(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	if err != nil {
		return storageErr(fmt.Sprintf("delete metadata[%s]", key), err)
	}
	return nil
}

// GetMetaTime parses the metadata value for key as a timestamp, nil if unset.
func (s *Store) GetMetaTime(ctx context.Context, key string) (*time.Time, error) {
	raw, err := s.GetMeta(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse metadata[%s]=%q: %w", key, raw, err)
	}
	return &t, nil
}

// SetMetaTime stores a timestamp under key in RFC 3339 form.
func (s *Store) SetMetaTime(ctx context.Context, key string, t time.Time) error {
	return s.SetMeta(ctx, key, t.UTC().Format(time.RFC3339Nano))
}

// SchemaVersion returns the stored schema generation.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	raw, err := s.GetMeta(ctx, MetaSchemaVersion)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return models.SchemaVersion, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", raw, err)
	}
	return v, nil
}

// Meta assembles the metadata record exposed to snapshots and status views.
func (s *Store) Meta(ctx context.Context) (models.Meta, error) {
	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return models.Meta{}, err
	}
	lastBackup, err := s.GetMetaTime(ctx, MetaLastBackupAt)
	if err != nil {
		return models.Meta{}, err
	}
	lastVacuum, err := s.GetMetaTime(ctx, MetaLastVacuumAt)
	if err != nil {
		return models.Meta{}, err
	}
	return models.Meta{
		SchemaVersion: version,
		LastBackupAt:  lastBackup,
		LastVacuumAt:  lastVacuum,
	}, nil
}

// storageErr tags low-level database failures with ErrStorageUnavailable so
// callers can distinguish "storage down" from logic errors with errors.Is.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(common.ErrStorageUnavailable, err))
}
