package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntryKind tags the two entry variants.
type EntryKind string

const (
	EntryKindTask   EntryKind = "task"
	EntryKindHourly EntryKind = "hourly"
)

// TaskDetails is the payload of a task entry: a flat reward paid to each of
// one or more workers for a unit of work.
type TaskDetails struct {
	WorkerIDs       []string
	TableNumber     string
	RewardPerWorker float64
}

// HourlyDetails is the payload of an hourly entry: a single worker paid by
// the hour. TotalEarned is computed at creation from the worker's rate and
// stored, so later rate changes do not rewrite history.
type HourlyDetails struct {
	WorkerID    string
	TotalHours  float64
	TotalEarned float64
}

// Entry is a time/earnings booking against a project. Exactly one of Task or
// Hourly is set, matching Kind. Project/worker references are advisory:
// consumers must tolerate dangling ids.
type Entry struct {
	ID        string
	Kind      EntryKind
	ProjectID string
	Timestamp time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	Deleted   bool
	DeletedAt *time.Time

	Task   *TaskDetails
	Hourly *HourlyDetails
}

// NewTaskEntry books a flat per-worker reward against a project.
func NewTaskEntry(projectID string, workerIDs []string, tableNumber string, rewardPerWorker float64, at time.Time) Entry {
	now := time.Now().UTC()
	return Entry{
		ID:        uuid.NewString(),
		Kind:      EntryKindTask,
		ProjectID: projectID,
		Timestamp: at,
		CreatedAt: now,
		UpdatedAt: now,
		Task: &TaskDetails{
			WorkerIDs:       workerIDs,
			TableNumber:     tableNumber,
			RewardPerWorker: rewardPerWorker,
		},
	}
}

// NewHourlyEntry books hours for one worker; total earned is hours × rate at
// the time of entry.
func NewHourlyEntry(projectID, workerID string, hours, hourlyRate float64, at time.Time) Entry {
	now := time.Now().UTC()
	return Entry{
		ID:        uuid.NewString(),
		Kind:      EntryKindHourly,
		ProjectID: projectID,
		Timestamp: at,
		CreatedAt: now,
		UpdatedAt: now,
		Hourly: &HourlyDetails{
			WorkerID:    workerID,
			TotalHours:  hours,
			TotalEarned: hours * hourlyRate,
		},
	}
}

// TotalAmount returns the full payout of the entry: reward × worker count for
// task entries, the stored total for hourly ones.
func (e Entry) TotalAmount() float64 {
	switch e.Kind {
	case EntryKindTask:
		if e.Task == nil {
			return 0
		}
		return e.Task.RewardPerWorker * float64(len(e.Task.WorkerIDs))
	case EntryKindHourly:
		if e.Hourly == nil {
			return 0
		}
		return e.Hourly.TotalEarned
	default:
		return 0
	}
}

// WorkerRefs returns the worker ids the entry references, regardless of kind.
func (e Entry) WorkerRefs() []string {
	switch e.Kind {
	case EntryKindTask:
		if e.Task == nil {
			return nil
		}
		return e.Task.WorkerIDs
	case EntryKindHourly:
		if e.Hourly == nil {
			return nil
		}
		return []string{e.Hourly.WorkerID}
	default:
		return nil
	}
}

func (e Entry) RecordID() string { return e.ID }

func (e Entry) LastModified() time.Time { return lastModified(e.CreatedAt, e.UpdatedAt) }

func (e Entry) Tombstoned() bool { return e.Deleted }

func (e Entry) TombstonedAt() (time.Time, bool) { return tombstonedAt(e.Deleted, e.DeletedAt) }

// entryJSON is the flat wire shape shared by snapshots, export files and the
// legacy store. Variant fields are pointers so absent and zero are distinct.
type entryJSON struct {
	ID              string     `json:"id"`
	Type            EntryKind  `json:"type"`
	ProjectID       string     `json:"projectId"`
	Workers         []string   `json:"workers,omitempty"`
	WorkerID        string     `json:"workerId,omitempty"`
	TableNumber     string     `json:"tableNumber,omitempty"`
	TotalHours      *float64   `json:"totalHours,omitempty"`
	RewardPerWorker *float64   `json:"rewardPerWorker,omitempty"`
	TotalEarned     *float64   `json:"totalEarned,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Deleted         bool       `json:"deleted,omitempty"`
	DeletedAt       *time.Time `json:"deletedAt,omitempty"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{
		ID:        e.ID,
		Type:      e.Kind,
		ProjectID: e.ProjectID,
		Timestamp: e.Timestamp,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		Deleted:   e.Deleted,
		DeletedAt: e.DeletedAt,
	}

	switch e.Kind {
	case EntryKindTask:
		if e.Task == nil {
			return nil, fmt.Errorf("task entry %s has no task details", e.ID)
		}
		out.Workers = e.Task.WorkerIDs
		out.TableNumber = e.Task.TableNumber
		reward := e.Task.RewardPerWorker
		out.RewardPerWorker = &reward
	case EntryKindHourly:
		if e.Hourly == nil {
			return nil, fmt.Errorf("hourly entry %s has no hourly details", e.ID)
		}
		out.WorkerID = e.Hourly.WorkerID
		hours := e.Hourly.TotalHours
		earned := e.Hourly.TotalEarned
		out.TotalHours = &hours
		out.TotalEarned = &earned
	default:
		return nil, fmt.Errorf("entry %s has unknown kind %q", e.ID, e.Kind)
	}

	return json.Marshal(out)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*e = Entry{
		ID:        in.ID,
		Kind:      in.Type,
		ProjectID: in.ProjectID,
		Timestamp: in.Timestamp,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
		Deleted:   in.Deleted,
		DeletedAt: in.DeletedAt,
	}

	switch in.Type {
	case EntryKindTask:
		d := &TaskDetails{
			WorkerIDs:   in.Workers,
			TableNumber: in.TableNumber,
		}
		if in.RewardPerWorker != nil {
			d.RewardPerWorker = *in.RewardPerWorker
		}
		e.Task = d
	case EntryKindHourly:
		d := &HourlyDetails{WorkerID: in.WorkerID}
		if in.TotalHours != nil {
			d.TotalHours = *in.TotalHours
		}
		if in.TotalEarned != nil {
			d.TotalEarned = *in.TotalEarned
		}
		e.Hourly = d
	default:
		return fmt.Errorf("entry %s: unknown type %q", in.ID, in.Type)
	}

	return nil
}
