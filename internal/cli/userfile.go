package cli

import (
	"context"
	"fmt"
)

// Grant activates the user backup file at a path the user types in.
func (a *App) Grant(ctx context.Context) error {
	path, err := GetSimpleText(a.reader, "Path for the backup file:", a.out)
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	if err := a.core.ActivateUserFile(ctx, path); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Backups will be mirrored to %s\n", path)
	return nil
}

// Revoke deactivates the user backup file.
func (a *App) Revoke(ctx context.Context) error {
	if err := a.core.DeactivateUserFile(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "User backup file deactivated.")
	return nil
}
