// Package models defines the business records persisted by the store and the
// snapshot document exchanged between backup tiers and export/import.
package models

import "time"

// Record is the behavior shared by Worker, Project and Entry that the merge
// and vacuum layers rely on: a stable identity, a last-modified timestamp for
// last-write-wins comparison, and an optional tombstone.
type Record interface {
	// RecordID returns the stable, never-reused identifier.
	RecordID() string

	// LastModified returns UpdatedAt, falling back to CreatedAt when the
	// record has never been mutated after creation.
	LastModified() time.Time

	// Tombstoned reports whether the record carries a soft-delete marker.
	Tombstoned() bool

	// TombstonedAt returns the deletion time if the record is tombstoned and
	// the timestamp was recorded.
	TombstonedAt() (time.Time, bool)
}

// lastModified implements the UpdatedAt-with-CreatedAt-fallback rule shared
// by all records.
func lastModified(createdAt, updatedAt time.Time) time.Time {
	if updatedAt.IsZero() {
		return createdAt
	}
	return updatedAt
}

func tombstonedAt(deleted bool, deletedAt *time.Time) (time.Time, bool) {
	if !deleted || deletedAt == nil {
		return time.Time{}, false
	}
	return *deletedAt, true
}
