package models

import "time"

// SnapshotVersion is the wire-format version of the snapshot document.
const SnapshotVersion = "1.0.0"

// SchemaVersion is the current store schema generation, bumped only by an
// explicit migration.
const SchemaVersion = 1

// Meta is the process-wide metadata record carried inside snapshots and
// exposed to status displays.
type Meta struct {
	SchemaVersion int        `json:"schemaVersion"`
	LastBackupAt  *time.Time `json:"lastBackupAt"`
	LastVacuumAt  *time.Time `json:"lastVacuumAt"`
}

// Snapshot is the self-describing backup document: the unit exchanged
// between all backup tiers, manual export/import and the merge engine.
// Immutable once created.
type Snapshot struct {
	Version       string    `json:"version"`
	SchemaVersion int       `json:"schemaVersion"`
	CreatedAt     time.Time `json:"createdAt"`
	Workers       []Worker  `json:"workers"`
	Projects      []Project `json:"projects"`
	Entries       []Entry   `json:"entries"`
	Meta          Meta      `json:"meta"`
}
