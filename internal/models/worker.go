package models

import (
	"time"

	"github.com/google/uuid"
)

// Worker is a person earning against projects. WorkerCode is unique
// (case-insensitive) among non-deleted workers; the UI enforces that before
// writing, the store does not.
type Worker struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	WorkerCode string     `json:"workerCode"`
	HourlyRate float64    `json:"hourlyRate"`
	Color      string     `json:"color"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Deleted    bool       `json:"deleted,omitempty"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
}

// NewWorker returns a Worker with a fresh id and both timestamps set to now.
func NewWorker(name, code string, hourlyRate float64, color string) Worker {
	now := time.Now().UTC()
	return Worker{
		ID:         uuid.NewString(),
		Name:       name,
		WorkerCode: code,
		HourlyRate: hourlyRate,
		Color:      color,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (w Worker) RecordID() string { return w.ID }

func (w Worker) LastModified() time.Time { return lastModified(w.CreatedAt, w.UpdatedAt) }

func (w Worker) Tombstoned() bool { return w.Deleted }

func (w Worker) TombstonedAt() (time.Time, bool) { return tombstonedAt(w.Deleted, w.DeletedAt) }
