// Package merge reconciles an incoming snapshot document against the live
// store using per-record last-write-wins. Analyze and Import run the same
// comparator, so the preview a user confirms is exactly what the import does.
package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/crewbook/crewbook/internal/common"
	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/models"
	"github.com/crewbook/crewbook/internal/snapshot"
	"github.com/crewbook/crewbook/internal/store"
)

// Summary counts the outcome of merging one collection.
type Summary struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Report is the per-collection outcome of an analyze or import run.
// ConflictsResolved counts the id collisions whose timestamps diverged, so
// the comparator had to pick a side; ties are skips, not conflicts.
type Report struct {
	Workers           Summary `json:"workers"`
	Projects          Summary `json:"projects"`
	Entries           Summary `json:"entries"`
	ConflictsResolved int     `json:"conflictsResolved"`
}

// Total returns the summed counts across all three collections.
func (r *Report) Total() Summary {
	return Summary{
		Added:   r.Workers.Added + r.Projects.Added + r.Entries.Added,
		Updated: r.Workers.Updated + r.Projects.Updated + r.Entries.Updated,
		Skipped: r.Workers.Skipped + r.Projects.Skipped + r.Entries.Skipped,
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("added %d, updated %d, skipped %d", s.Added, s.Updated, s.Skipped)
}

// Engine performs snapshot imports against the primary store.
type Engine struct {
	store *store.Store
	log   logging.Logger
}

func NewEngine(st *store.Store, log logging.Logger) *Engine {
	return &Engine{store: st, log: log}
}

// mergeRecords runs the LWW comparison of incoming against live and returns
// the merged collection. Incoming records with an unknown id are appended;
// on an id collision the record with the strictly newer LastModified wins,
// ties keep live. Live order is preserved, net-new records land at the end
// in incoming order. conflicts counts the collisions whose timestamps
// actually diverged.
func mergeRecords[T models.Record](live, incoming []T) ([]T, Summary, int) {
	byID := make(map[string]int, len(live))
	for i, rec := range live {
		byID[rec.RecordID()] = i
	}

	merged := make([]T, len(live))
	copy(merged, live)

	var sum Summary
	conflicts := 0
	for _, in := range incoming {
		i, ok := byID[in.RecordID()]
		if !ok {
			merged = append(merged, in)
			byID[in.RecordID()] = len(merged) - 1
			sum.Added++
			continue
		}
		if !in.LastModified().Equal(merged[i].LastModified()) {
			conflicts++
		}
		if in.LastModified().After(merged[i].LastModified()) {
			merged[i] = in
			sum.Updated++
			continue
		}
		sum.Skipped++
	}
	return merged, sum, conflicts
}

type mergedState struct {
	workers  []models.Worker
	projects []models.Project
	entries  []models.Entry
	report   Report
}

// compute runs the comparator over all three collections without writing.
// Both Analyze and Import call through here, which is what keeps the preview
// honest.
func (e *Engine) compute(ctx context.Context, doc *models.Snapshot) (*mergedState, error) {
	if errs := snapshot.Validate(doc); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrMalformedSnapshot, strings.Join(errs, "; "))
	}

	workers, err := e.store.Workers(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := e.store.Projects(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.Entries(ctx)
	if err != nil {
		return nil, err
	}

	var st mergedState
	var cw, cp, ce int
	st.workers, st.report.Workers, cw = mergeRecords(workers, doc.Workers)
	st.projects, st.report.Projects, cp = mergeRecords(projects, doc.Projects)
	st.entries, st.report.Entries, ce = mergeRecords(entries, doc.Entries)
	st.report.ConflictsResolved = cw + cp + ce
	return &st, nil
}

// Analyze runs the soft-merge comparison without touching the store and
// returns the counts Import would produce.
func (e *Engine) Analyze(ctx context.Context, doc *models.Snapshot) (*Report, error) {
	st, err := e.compute(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &st.report, nil
}

// Import applies a snapshot document to the live store. With hard set, all
// three collections are replaced by the document's wholesale; otherwise the
// soft LWW merge is applied. All three collections land in one transaction,
// so a failed import never leaves a partially applied document behind.
func (e *Engine) Import(ctx context.Context, doc *models.Snapshot, hard bool) (*Report, error) {
	if hard {
		return e.restore(ctx, doc)
	}

	st, err := e.compute(ctx, doc)
	if err != nil {
		return nil, err
	}

	if err := e.store.ReplaceAll(ctx, st.workers, st.projects, st.entries); err != nil {
		return nil, err
	}

	e.log.Info(ctx, "soft merge applied",
		"workers", st.report.Workers.String(),
		"projects", st.report.Projects.String(),
		"entries", st.report.Entries.String(),
		"conflicts", st.report.ConflictsResolved,
	)
	return &st.report, nil
}

// restore replaces the live collections with the document's. Destructive,
// only reached on explicit confirmation upstream.
func (e *Engine) restore(ctx context.Context, doc *models.Snapshot) (*Report, error) {
	if errs := snapshot.Validate(doc); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrMalformedSnapshot, strings.Join(errs, "; "))
	}

	if err := e.store.ReplaceAll(ctx, doc.Workers, doc.Projects, doc.Entries); err != nil {
		return nil, err
	}

	report := &Report{
		Workers:  Summary{Added: len(doc.Workers)},
		Projects: Summary{Added: len(doc.Projects)},
		Entries:  Summary{Added: len(doc.Entries)},
	}
	e.log.Info(ctx, "hard restore applied",
		"workers", len(doc.Workers), "projects", len(doc.Projects), "entries", len(doc.Entries))
	return report, nil
}
