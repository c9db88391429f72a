package cli

import (
	"context"
	"fmt"
	"time"
)

// Status prints the scheduler counters and per-tier availability.
func (a *App) Status(ctx context.Context) error {
	status, err := a.core.BackupStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Pending changes: %d\n", status.ChangeCount)
	fmt.Fprintf(a.out, "Last backup:     %s\n", formatTime(status.LastBackupAt))
	fmt.Fprintf(a.out, "Last vacuum:     %s\n", formatTime(status.LastVacuumAt))
	fmt.Fprintln(a.out, "Tiers:")
	for _, tier := range status.Tiers {
		state := "available"
		if !tier.Available {
			state = "disabled"
		}
		fmt.Fprintf(a.out, "  %-10s %s", tier.Name, state)
		if tier.LastError != "" {
			fmt.Fprintf(a.out, " (last error: %s)", tier.LastError)
		}
		fmt.Fprintln(a.out)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
