package config

import (
	"flag"
	"os"
	"time"

	"github.com/crewbook/crewbook/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   data directory (database, slot ring, private backups)
//	-l string   legacy export file picked up by the migration adapter
//	-t int      change-count backup threshold
//	-i int      backup interval in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-l", "-t", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.LegacyPath, "l", cfg.LegacyPath, "legacy export file to migrate")
	fs.IntVar(&cfg.ChangeThreshold, "t", cfg.ChangeThreshold, "backup change threshold")
	backupInterval := fs.Int("i", int(cfg.BackupInterval.Seconds()), "backup interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.BackupInterval = time.Duration(*backupInterval) * time.Second
}
