package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ProjectStatus classifies the lifecycle stage of a project.
type ProjectStatus string

const (
	ProjectPlanned   ProjectStatus = "planned"
	ProjectActive    ProjectStatus = "active"
	ProjectPaused    ProjectStatus = "paused"
	ProjectCompleted ProjectStatus = "completed"
)

var ErrEndBeforeStart = errors.New("project end date before start date")

// Project is a job site entries are booked against. Name is unique
// (case-insensitive) among non-deleted projects.
type Project struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Location  string        `json:"location"`
	Status    ProjectStatus `json:"status"`
	StartDate *time.Time    `json:"startDate,omitempty"`
	EndDate   *time.Time    `json:"endDate,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Deleted   bool          `json:"deleted,omitempty"`
	DeletedAt *time.Time    `json:"deletedAt,omitempty"`
}

// NewProject returns a Project with a fresh id and both timestamps set to now.
func NewProject(name, location string, status ProjectStatus) Project {
	now := time.Now().UTC()
	return Project{
		ID:        uuid.NewString(),
		Name:      name,
		Location:  location,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CheckDates reports ErrEndBeforeStart when both dates are present and the
// end precedes the start.
func (p Project) CheckDates() error {
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return ErrEndBeforeStart
	}
	return nil
}

func (p Project) RecordID() string { return p.ID }

func (p Project) LastModified() time.Time { return lastModified(p.CreatedAt, p.UpdatedAt) }

func (p Project) Tombstoned() bool { return p.Deleted }

func (p Project) TombstonedAt() (time.Time, bool) { return tombstonedAt(p.Deleted, p.DeletedAt) }
