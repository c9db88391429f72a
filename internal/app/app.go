// Package app assembles the persistence stack and exposes the operations the
// UI layer calls: bulk load/save, manual export/import, backup management and
// retention cleanup.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/crewbook/crewbook/internal/backup"
	"github.com/crewbook/crewbook/internal/common"
	"github.com/crewbook/crewbook/internal/config"
	"github.com/crewbook/crewbook/internal/export"
	"github.com/crewbook/crewbook/internal/filex"
	"github.com/crewbook/crewbook/internal/legacy"
	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/merge"
	"github.com/crewbook/crewbook/internal/models"
	"github.com/crewbook/crewbook/internal/snapshot"
	"github.com/crewbook/crewbook/internal/store"
	"github.com/crewbook/crewbook/internal/timex"
	"github.com/crewbook/crewbook/internal/vacuum"
)

// Collections is the bulk load/save unit exchanged with the UI layer.
// Tombstoned records are included; display filtering is the UI's concern.
type Collections struct {
	Workers  []models.Worker
	Projects []models.Project
	Entries  []models.Entry
}

// App owns the store and every subsystem built on top of it.
type App struct {
	cfg       *config.Config
	store     *store.Store
	ser       *snapshot.Serializer
	adapter   *legacy.Adapter
	slots     *backup.SlotTier
	userFile  *backup.UserFileTier
	scheduler *backup.Scheduler
	engine    *merge.Engine
	vacuum    *vacuum.Vacuum
	exporter  *export.Exporter
	clock     timex.Clock
	log       logging.Logger
}

// New opens the store, runs the legacy migration if pending, probes the
// backup tiers and wires the scheduler. The returned App is ready for UI
// traffic; call Run to start the background triggers and Close on shutdown.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("%w: data directory: %w", common.ErrStorageUnavailable, err)
	}

	st, err := store.Open(ctx, cfg.DatabasePath(), log)
	if err != nil {
		return nil, err
	}

	adapter := legacy.New(st, cfg.LegacyPath, log)
	if _, err := adapter.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("legacy migration: %w", err)
	}

	clock := timex.RealClock{}

	slots, err := backup.OpenSlotTier(cfg.SlotDir, log)
	if err != nil {
		log.Warn(ctx, "slot backup tier unavailable", "dir", cfg.SlotDir, "error", err)
		slots = backup.NewSlotTier(nil, log)
	}
	private := backup.NewPrivateTier(cfg.PrivateDir, clock, log)
	userFile := backup.NewUserFileTier(ctx, st, cfg.DebounceInterval, log)

	ser := snapshot.NewSerializer(st, clock)
	tiers := []backup.Tier{slots, private, userFile}
	scheduler := backup.NewScheduler(ser, st, tiers, clock, cfg.ChangeThreshold, cfg.BackupInterval, log)

	return &App{
		cfg:       cfg,
		store:     st,
		ser:       ser,
		adapter:   adapter,
		slots:     slots,
		userFile:  userFile,
		scheduler: scheduler,
		engine:    merge.NewEngine(st, log),
		vacuum:    vacuum.New(st, clock, log),
		exporter:  export.NewExporter(st),
		clock:     clock,
		log:       log,
	}, nil
}

// Run drives the background triggers until ctx is cancelled: the scheduler's
// wall-clock backup check and the daily vacuum sweep.
func (a *App) Run(ctx context.Context) {
	if _, err := a.vacuum.Run(ctx); err != nil {
		a.log.Error(ctx, "startup vacuum", "error", err)
	}

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := a.vacuum.Run(ctx); err != nil {
					a.log.Error(ctx, "vacuum sweep", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	a.scheduler.Run(ctx)
}

// Close releases the store and the slot database.
func (a *App) Close() error {
	err := a.slots.Close()
	if serr := a.store.Close(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// LoadAll reads the three collections in one call.
func (a *App) LoadAll(ctx context.Context) (*Collections, error) {
	workers, err := a.store.Workers(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := a.store.Projects(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := a.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return &Collections{Workers: workers, Projects: projects, Entries: entries}, nil
}

// SaveAll replaces the three collections with the UI's state and feeds the
// mutation count into the backup scheduler. Records present in the store but
// absent from the input are kept as tombstones instead of being dropped, so a
// later merge with a stale backup cannot resurrect them.
func (a *App) SaveAll(ctx context.Context, c *Collections) error {
	now := a.clock.Now().UTC()
	changed := 0

	liveW, err := a.store.Workers(ctx)
	if err != nil {
		return err
	}
	workers, n := reconcile(liveW, c.Workers, now, func(w models.Worker, at time.Time) models.Worker {
		w.Deleted = true
		w.DeletedAt = &at
		w.UpdatedAt = at
		return w
	})
	changed += n
	if err := a.store.PutWorkers(ctx, workers); err != nil {
		return err
	}

	liveP, err := a.store.Projects(ctx)
	if err != nil {
		return err
	}
	projects, n := reconcile(liveP, c.Projects, now, func(p models.Project, at time.Time) models.Project {
		p.Deleted = true
		p.DeletedAt = &at
		p.UpdatedAt = at
		return p
	})
	changed += n
	if err := a.store.PutProjects(ctx, projects); err != nil {
		return err
	}

	liveE, err := a.store.Entries(ctx)
	if err != nil {
		return err
	}
	entries, n := reconcile(liveE, c.Entries, now, func(e models.Entry, at time.Time) models.Entry {
		e.Deleted = true
		e.DeletedAt = &at
		e.UpdatedAt = at
		return e
	})
	changed += n
	if err := a.store.PutEntries(ctx, entries); err != nil {
		return err
	}

	a.scheduler.TrackChange(ctx, changed)
	return nil
}

// reconcile merges the UI's next state over the live collection. Incoming
// records replace their live versions; live records missing from the input
// are tombstoned via mark. Returns the merged collection and the number of
// records that actually changed.
func reconcile[T models.Record](live, next []T, now time.Time, mark func(T, time.Time) T) ([]T, int) {
	prev := make(map[string]T, len(live))
	for _, rec := range live {
		prev[rec.RecordID()] = rec
	}

	changed := 0
	seen := make(map[string]struct{}, len(next))
	merged := make([]T, 0, len(live)+len(next))
	for _, rec := range next {
		seen[rec.RecordID()] = struct{}{}
		old, ok := prev[rec.RecordID()]
		if !ok || !old.LastModified().Equal(rec.LastModified()) {
			changed++
		}
		merged = append(merged, rec)
	}

	for _, rec := range live {
		if _, ok := seen[rec.RecordID()]; ok {
			continue
		}
		if rec.Tombstoned() {
			// already a tombstone the UI simply no longer shows
			merged = append(merged, rec)
			continue
		}
		merged = append(merged, mark(rec, now))
		changed++
	}
	return merged, changed
}

// TrackChange forwards a mutation count from the UI to the scheduler. For
// callers doing their own targeted writes rather than SaveAll.
func (a *App) TrackChange(ctx context.Context, n int) {
	a.scheduler.TrackChange(ctx, n)
}

// ExportSnapshot renders the current store state as the manual export file.
func (a *App) ExportSnapshot(ctx context.Context) ([]byte, error) {
	doc, err := a.ser.Build(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Encode(doc)
}

// AnalyzeSnapshot previews what importing data would do, without writing.
func (a *App) AnalyzeSnapshot(ctx context.Context, data []byte) (*merge.Report, error) {
	doc, err := snapshot.Parse(data)
	if err != nil {
		return nil, err
	}
	return a.engine.Analyze(ctx, doc)
}

// ImportSnapshot validates and applies an uploaded document. The resulting
// mutations count toward the backup trigger like any other write.
func (a *App) ImportSnapshot(ctx context.Context, data []byte, hard bool) (*merge.Report, error) {
	doc, err := snapshot.Parse(data)
	if err != nil {
		return nil, err
	}
	report, err := a.engine.Import(ctx, doc, hard)
	if err != nil {
		return nil, err
	}
	total := report.Total()
	a.scheduler.TrackChange(ctx, total.Added+total.Updated)
	return report, nil
}

// BackupStatus reports scheduler and per-tier state for status displays.
func (a *App) BackupStatus(ctx context.Context) (*backup.Status, error) {
	return a.scheduler.Status(ctx)
}

// ForceBackup snapshots and fans out to all available tiers immediately.
func (a *App) ForceBackup(ctx context.Context) error {
	return a.scheduler.ForceBackup(ctx)
}

// ListTierContents lists the snapshots held by one tier.
func (a *App) ListTierContents(ctx context.Context, tierName string) ([]backup.Item, error) {
	tier, err := a.tier(tierName)
	if err != nil {
		return nil, err
	}
	return tier.List(ctx)
}

// RestoreFromTier reads one stored snapshot and applies it through the merge
// engine. All tier restores go through the same validation and LWW logic as
// a manual upload.
func (a *App) RestoreFromTier(ctx context.Context, tierName, id string, hard bool) (*merge.Report, error) {
	tier, err := a.tier(tierName)
	if err != nil {
		return nil, err
	}
	doc, err := tier.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err := a.engine.Import(ctx, doc, hard)
	if err != nil {
		return nil, err
	}
	total := report.Total()
	a.scheduler.TrackChange(ctx, total.Added+total.Updated)
	return report, nil
}

func (a *App) tier(name string) (backup.Tier, error) {
	for _, t := range a.scheduler.Tiers() {
		if t.Name() == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: backup tier %q", common.ErrNotFound, name)
}

// ActivateUserFile grants the user-file tier a backup destination.
func (a *App) ActivateUserFile(ctx context.Context, path string) error {
	return a.userFile.Activate(ctx, path)
}

// DeactivateUserFile revokes the user-file grant.
func (a *App) DeactivateUserFile(ctx context.Context) error {
	return a.userFile.Deactivate(ctx)
}

// CleanupLegacy renames the migrated legacy file aside. Optional and
// explicit; migration itself never touches the source data.
func (a *App) CleanupLegacy() error {
	return a.adapter.Cleanup()
}

// RunVacuum forces a retention sweep regardless of cadence.
func (a *App) RunVacuum(ctx context.Context) (*vacuum.Report, error) {
	return a.vacuum.Force(ctx)
}

// ExportCSV streams the entries collection as CSV.
func (a *App) ExportCSV(ctx context.Context, w io.Writer) error {
	return a.exporter.WriteCSV(ctx, w)
}

// AdminPassword returns the configured admin password, empty when restores
// need no confirmation secret.
func (a *App) AdminPassword() string { return a.cfg.AdminPassword }
