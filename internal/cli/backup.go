package cli

import (
	"context"
	"fmt"
)

// Backup snapshots and fans out to every available tier immediately.
func (a *App) Backup(ctx context.Context) error {
	if err := a.core.ForceBackup(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Backup completed.")
	return nil
}

// Vacuum runs the retention sweep, ignoring the daily cadence.
func (a *App) Vacuum(ctx context.Context) error {
	report, err := a.core.RunVacuum(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Purged %d expired records (workers %d, projects %d, entries %d).\n",
		report.Total(), report.Workers, report.Projects, report.Entries)
	return nil
}

// Cleanup moves the already-migrated legacy file aside.
func (a *App) Cleanup(ctx context.Context) error {
	if err := a.core.CleanupLegacy(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Legacy file moved aside.")
	return nil
}
