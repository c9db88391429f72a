package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/crewbook/crewbook/internal/flagx"
	"github.com/crewbook/crewbook/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "60s"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config.
type JsonConfig struct {
	DataDir          string         `json:"data_dir"`
	LegacyPath       string         `json:"legacy_path"`
	SlotDir          string         `json:"slot_dir"`
	PrivateDir       string         `json:"private_dir"`
	ChangeThreshold  int            `json:"change_threshold"`
	BackupInterval   timex.Duration `json:"backup_interval"`
	DebounceInterval timex.Duration `json:"debounce_interval"`
	AdminPassword    string         `json:"admin_password"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c/-config flags via flagx.JsonConfigFlags; with no
// path the function is a no-op. Only fields present in the file override the
// defaults. Panics on read or unmarshal errors (caller should recover if
// desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.LegacyPath != "" {
		cfg.LegacyPath = jc.LegacyPath
	}
	if jc.SlotDir != "" {
		cfg.SlotDir = jc.SlotDir
	}
	if jc.PrivateDir != "" {
		cfg.PrivateDir = jc.PrivateDir
	}
	if jc.ChangeThreshold > 0 {
		cfg.ChangeThreshold = jc.ChangeThreshold
	}
	if jc.BackupInterval.Duration > 0 {
		cfg.BackupInterval = time.Duration(jc.BackupInterval.Duration)
	}
	if jc.DebounceInterval.Duration > 0 {
		cfg.DebounceInterval = time.Duration(jc.DebounceInterval.Duration)
	}
	if jc.AdminPassword != "" {
		cfg.AdminPassword = jc.AdminPassword
	}
}
