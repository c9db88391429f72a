package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/crewbook/crewbook/internal/backup"
)

// Config holds runtime settings for the CrewBook CLI.
//
// Paths: DataDir is the root for everything the application persists; the
// store database, the slot ring and the private backup area all default to
// subpaths of it. LegacyPath points at a pre-database export file picked up
// once by the migration adapter.
//
// Units: the intervals are time.Durations.
type Config struct {
	DataDir          string
	LegacyPath       string
	SlotDir          string
	PrivateDir       string
	ChangeThreshold  int
	BackupInterval   time.Duration
	DebounceInterval time.Duration
	AdminPassword    string
}

// LoadDefaults populates c with sensible defaults under the user home.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.DataDir = filepath.Join(home, ".crewbook")
	c.LegacyPath = filepath.Join(c.DataDir, "legacy.json")
	c.SlotDir = filepath.Join(c.DataDir, "slots")
	c.PrivateDir = filepath.Join(c.DataDir, "backups")
	c.ChangeThreshold = backup.DefaultChangeThreshold
	c.BackupInterval = backup.DefaultInterval
	c.DebounceInterval = backup.DefaultDebounce
	c.AdminPassword = ""
}

// DatabasePath returns the sqlite file location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "crewbook.db")
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
