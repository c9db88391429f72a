// Package vacuum purges tombstoned records once their retention window has
// lapsed. This is the only place a user record is removed irreversibly, so
// the sweep is deliberately conservative: no deletion marker, no purge.
package vacuum

import (
	"context"
	"time"

	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/models"
	"github.com/crewbook/crewbook/internal/store"
	"github.com/crewbook/crewbook/internal/timex"
)

const (
	// Retention is how long a tombstoned record survives before the sweep
	// removes it. Long enough for any stale backup tier to merge its copy
	// back as a tombstone instead of resurrecting it.
	Retention = 90 * 24 * time.Hour

	// Cadence bounds how often a full sweep actually runs.
	Cadence = 24 * time.Hour
)

// Report counts purged records per collection.
type Report struct {
	Workers  int  `json:"workers"`
	Projects int  `json:"projects"`
	Entries  int  `json:"entries"`
	Skipped  bool `json:"skipped"`
}

// Total returns the purged record count across all collections.
func (r *Report) Total() int { return r.Workers + r.Projects + r.Entries }

// Vacuum sweeps the three collections on a daily cadence.
type Vacuum struct {
	store     *store.Store
	clock     timex.Clock
	retention time.Duration
	log       logging.Logger
}

func New(st *store.Store, clock timex.Clock, log logging.Logger) *Vacuum {
	return &Vacuum{store: st, clock: clock, retention: Retention, log: log}
}

// Run sweeps unless a sweep already ran within the cadence window. Safe to
// call on every startup and on a timer; the lastVacuumAt check makes extra
// invocations no-ops.
func (v *Vacuum) Run(ctx context.Context) (*Report, error) {
	last, err := v.store.GetMetaTime(ctx, store.MetaLastVacuumAt)
	if err != nil {
		return nil, err
	}
	if last != nil && v.clock.Now().Sub(*last) < Cadence {
		return &Report{Skipped: true}, nil
	}
	return v.Force(ctx)
}

// Force sweeps immediately, ignoring the cadence check.
func (v *Vacuum) Force(ctx context.Context) (*Report, error) {
	now := v.clock.Now()
	var report Report

	workers, err := v.store.Workers(ctx)
	if err != nil {
		return nil, err
	}
	kept, purged := sweep(workers, now, v.retention)
	if purged > 0 {
		if err := v.store.PutWorkers(ctx, kept); err != nil {
			return nil, err
		}
	}
	report.Workers = purged

	projects, err := v.store.Projects(ctx)
	if err != nil {
		return nil, err
	}
	keptP, purged := sweep(projects, now, v.retention)
	if purged > 0 {
		if err := v.store.PutProjects(ctx, keptP); err != nil {
			return nil, err
		}
	}
	report.Projects = purged

	entries, err := v.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	keptE, purged := sweep(entries, now, v.retention)
	if purged > 0 {
		if err := v.store.PutEntries(ctx, keptE); err != nil {
			return nil, err
		}
	}
	report.Entries = purged

	if err := v.store.SetMetaTime(ctx, store.MetaLastVacuumAt, now); err != nil {
		return nil, err
	}

	if report.Total() > 0 {
		v.log.Info(ctx, "vacuum purged expired tombstones",
			"workers", report.Workers, "projects", report.Projects, "entries", report.Entries)
	}
	return &report, nil
}

// sweep keeps every record except tombstones whose recorded deletion time is
// older than the retention window. A tombstone without a recorded deletion
// time is kept forever rather than guessed at.
func sweep[T models.Record](records []T, now time.Time, retention time.Duration) ([]T, int) {
	kept := records[:0:0]
	purged := 0
	for _, rec := range records {
		if expired(rec, now, retention) {
			purged++
			continue
		}
		kept = append(kept, rec)
	}
	if kept == nil {
		kept = []T{}
	}
	return kept, purged
}

func expired(rec models.Record, now time.Time, retention time.Duration) bool {
	if !rec.Tombstoned() {
		return false
	}
	deletedAt, ok := rec.TombstonedAt()
	if !ok {
		return false
	}
	return now.Sub(deletedAt) > retention
}
