package cli

import (
	"context"
	"errors"
	"fmt"
)

// Tiers lists the backup tiers, or the stored snapshots of one tier.
func (a *App) Tiers(ctx context.Context, args []string) error {
	if len(args) == 0 {
		status, err := a.core.BackupStatus(ctx)
		if err != nil {
			return err
		}
		for _, tier := range status.Tiers {
			state := "available"
			if !tier.Available {
				state = "disabled"
			}
			fmt.Fprintf(a.out, "%-10s %s\n", tier.Name, state)
		}
		return nil
	}

	items, err := a.core.ListTierContents(ctx, args[0])
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No snapshots stored.")
		return nil
	}
	for _, item := range items {
		fmt.Fprintf(a.out, "%-22s %s  %d bytes\n",
			item.ID, item.CreatedAt.Local().Format("2006-01-02 15:04:05"), item.Size)
	}
	return nil
}

// Restore applies one stored snapshot through the merge engine. Soft merge by
// default; "hard" replaces all live data and is password-gated when an admin
// password is configured.
func (a *App) Restore(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: restore <tier> <id> [hard]")
	}
	hard := len(args) == 3 && args[2] == "hard"

	if hard {
		fmt.Fprintln(a.out, "Hard restore replaces ALL live data with the stored snapshot.")
	}
	ok, err := Confirm(a.reader, fmt.Sprintf("Restore %s from %s?", args[1], args[0]), a.out)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Restore cancelled.")
		return nil
	}
	if hard {
		if err := a.checkAdminPassword(); err != nil {
			return err
		}
	}

	report, err := a.core.RestoreFromTier(ctx, args[0], args[1], hard)
	if err != nil {
		return err
	}
	a.printReport("Restored", report)
	return nil
}
