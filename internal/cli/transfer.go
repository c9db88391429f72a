package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/crewbook/crewbook/internal/merge"
)

// Export writes the current store state as a snapshot document.
func (a *App) Export(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: export <file>")
	}

	data, err := a.core.ExportSnapshot(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	fmt.Fprintf(a.out, "Exported %d bytes to %s\n", len(data), args[0])
	return nil
}

// Import previews an uploaded snapshot and applies it after confirmation.
// With the "hard" argument the live collections are replaced wholesale,
// otherwise records merge by last-write-wins.
func (a *App) Import(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: import <file> [hard]")
	}
	hard := len(args) == 2 && args[1] == "hard"

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	if hard {
		fmt.Fprintln(a.out, "Hard restore replaces ALL live data with the file contents.")
	} else {
		preview, err := a.core.AnalyzeSnapshot(ctx, data)
		if err != nil {
			return err
		}
		a.printReport("Preview", preview)
	}

	ok, err := Confirm(a.reader, "Apply this import?", a.out)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Import cancelled.")
		return nil
	}
	if hard {
		if err := a.checkAdminPassword(); err != nil {
			return err
		}
	}

	report, err := a.core.ImportSnapshot(ctx, data, hard)
	if err != nil {
		return err
	}
	a.printReport("Applied", report)
	return nil
}

// CSV exports the entries collection as a spreadsheet file.
func (a *App) CSV(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: csv <file>")
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if err := a.core.ExportCSV(ctx, f); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Entries exported to %s\n", args[0])
	return nil
}

func (a *App) printReport(label string, r *merge.Report) {
	fmt.Fprintf(a.out, "%s:\n", label)
	fmt.Fprintf(a.out, "  workers:  %s\n", r.Workers)
	fmt.Fprintf(a.out, "  projects: %s\n", r.Projects)
	fmt.Fprintf(a.out, "  entries:  %s\n", r.Entries)
	fmt.Fprintf(a.out, "  conflicts resolved: %d\n", r.ConflictsResolved)
}

// checkAdminPassword gates destructive operations when a password is
// configured. With no password configured the check passes silently.
func (a *App) checkAdminPassword() error {
	if a.config.AdminPassword == "" {
		return nil
	}
	pw, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	if string(pw) != a.config.AdminPassword {
		return errors.New("wrong admin password")
	}
	return nil
}
