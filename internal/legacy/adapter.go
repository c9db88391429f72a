// Package legacy lifts data out of the old flat-file store into the primary
// store. The old format is a single JSON object with one array per
// collection. Migration runs once, gated by a persisted completion flag, and
// never deletes the legacy file itself.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/models"
	"github.com/crewbook/crewbook/internal/store"
)

const migratedFlag = "1"

// Adapter imports records from the legacy file at path.
type Adapter struct {
	store *store.Store
	path  string
	log   logging.Logger
}

// CollectionReport counts the outcome for one collection.
type CollectionReport struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
}

// Report summarizes a migration run.
type Report struct {
	Workers  CollectionReport `json:"workers"`
	Projects CollectionReport `json:"projects"`
	Entries  CollectionReport `json:"entries"`
}

// legacyFile mirrors the v1 on-disk shape.
type legacyFile struct {
	Workers  []models.Worker  `json:"workers"`
	Projects []models.Project `json:"projects"`
	Entries  []models.Entry   `json:"entries"`
}

func New(st *store.Store, path string, log logging.Logger) *Adapter {
	return &Adapter{store: st, path: path, log: log}
}

// NeedsMigration is true iff the legacy file exists and the completion flag
// has not been persisted yet.
func (a *Adapter) NeedsMigration(ctx context.Context) (bool, error) {
	if _, err := os.Stat(a.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat legacy file: %w", err)
	}

	flag, err := a.store.GetMeta(ctx, store.MetaLegacyMigrated)
	if err != nil {
		return false, err
	}
	return flag != migratedFlag, nil
}

// Migrate appends net-new legacy records (by id) to each collection and sets
// the completion flag. Idempotent: a second run is a no-op with zero migrated
// counts, as is a run with no legacy file present.
func (a *Adapter) Migrate(ctx context.Context) (*Report, error) {
	report := &Report{}

	needed, err := a.NeedsMigration(ctx)
	if err != nil {
		return nil, err
	}
	if !needed {
		return report, nil
	}

	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("read legacy file: %w", err)
	}

	var old legacyFile
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, fmt.Errorf("decode legacy file: %w", err)
	}

	workers, err := a.store.Workers(ctx)
	if err != nil {
		return nil, err
	}
	workers, report.Workers = appendNew(workers, old.Workers)

	projects, err := a.store.Projects(ctx)
	if err != nil {
		return nil, err
	}
	projects, report.Projects = appendNew(projects, old.Projects)

	entries, err := a.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	entries, report.Entries = appendNew(entries, old.Entries)

	if err := a.store.ReplaceAll(ctx, workers, projects, entries); err != nil {
		return nil, err
	}

	if err := a.store.SetMeta(ctx, store.MetaLegacyMigrated, migratedFlag); err != nil {
		return nil, err
	}

	a.log.Info(ctx, "legacy data migrated",
		"workers", report.Workers.Migrated,
		"projects", report.Projects.Migrated,
		"entries", report.Entries.Migrated)
	return report, nil
}

// Cleanup renames the legacy file aside. Separate from Migrate on purpose:
// the source data survives until the user explicitly discards it.
func (a *Adapter) Cleanup() error {
	if _, err := os.Stat(a.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat legacy file: %w", err)
	}
	if err := os.Rename(a.path, a.path+".imported"); err != nil {
		return fmt.Errorf("rename legacy file: %w", err)
	}
	return nil
}

// appendNew returns live plus the incoming records whose ids are not already
// present, with per-collection counts.
func appendNew[T models.Record](live, incoming []T) ([]T, CollectionReport) {
	seen := make(map[string]struct{}, len(live))
	for _, item := range live {
		seen[item.RecordID()] = struct{}{}
	}

	report := CollectionReport{}
	for _, item := range incoming {
		if _, ok := seen[item.RecordID()]; ok {
			report.Skipped++
			continue
		}
		live = append(live, item)
		report.Migrated++
	}
	return live, report
}
