// Package export renders the entries collection as CSV for spreadsheet use.
// One-way: there is no CSV import path.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/crewbook/crewbook/internal/models"
	"github.com/crewbook/crewbook/internal/store"
)

var csvHeader = []string{
	"ID", "Type", "Date", "Time", "Project", "Worker/Workers",
	"Table Number", "Hours", "Reward Per Worker", "Total Amount",
}

// Exporter renders entries against the worker/project collections so ids can
// be resolved to display names.
type Exporter struct {
	store *store.Store
}

func NewExporter(st *store.Store) *Exporter {
	return &Exporter{store: st}
}

// WriteCSV streams all non-deleted entries to w, newest first. References to
// workers or projects that no longer exist fall back to the raw id instead of
// failing the export.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer) error {
	workers, err := e.store.Workers(ctx)
	if err != nil {
		return err
	}
	projects, err := e.store.Projects(ctx)
	if err != nil {
		return err
	}
	entries, err := e.store.Entries(ctx)
	if err != nil {
		return err
	}

	workerNames := make(map[string]string, len(workers))
	for _, wk := range workers {
		workerNames[wk.ID] = wk.Name
	}
	projectNames := make(map[string]string, len(projects))
	for _, p := range projects {
		projectNames[p.ID] = p.Name
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Deleted {
			continue
		}
		if err := cw.Write(row(entry, workerNames, projectNames)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(entry models.Entry, workerNames, projectNames map[string]string) []string {
	var tableNumber, hours, reward string
	switch entry.Kind {
	case models.EntryKindTask:
		if entry.Task != nil {
			tableNumber = entry.Task.TableNumber
			reward = amount(entry.Task.RewardPerWorker)
		}
	case models.EntryKindHourly:
		if entry.Hourly != nil {
			hours = amount(entry.Hourly.TotalHours)
		}
	}

	return []string{
		entry.ID,
		string(entry.Kind),
		entry.Timestamp.Format("2006-01-02"),
		entry.Timestamp.Format("15:04"),
		displayName(projectNames, entry.ProjectID),
		workerList(workerNames, entry.WorkerRefs()),
		tableNumber,
		hours,
		reward,
		amount(entry.TotalAmount()),
	}
}

func workerList(names map[string]string, ids []string) string {
	resolved := make([]string, 0, len(ids))
	for _, id := range ids {
		resolved = append(resolved, displayName(names, id))
	}
	return strings.Join(resolved, ", ")
}

// displayName resolves an id to its record's name, falling back to the raw id
// for dangling references.
func displayName(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

func amount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
