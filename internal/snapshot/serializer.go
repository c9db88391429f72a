// Package snapshot builds and validates the versioned backup document. Every
// import path — tier restore or manual upload — goes through the same
// structural gate before the merge engine ever sees the document.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crewbook/crewbook/internal/common"
	"github.com/crewbook/crewbook/internal/models"
	"github.com/crewbook/crewbook/internal/store"
	"github.com/crewbook/crewbook/internal/timex"
)

// Serializer assembles snapshot documents from the primary store. Pure with
// respect to its inputs: the same store state yields the same document modulo
// CreatedAt.
type Serializer struct {
	store *store.Store
	clock timex.Clock
}

func NewSerializer(st *store.Store, clock timex.Clock) *Serializer {
	return &Serializer{store: st, clock: clock}
}

// Build reads all three collections plus metadata and assembles the document.
func (s *Serializer) Build(ctx context.Context) (*models.Snapshot, error) {
	workers, err := s.store.Workers(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.store.Projects(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	meta, err := s.store.Meta(ctx)
	if err != nil {
		return nil, err
	}

	return &models.Snapshot{
		Version:       models.SnapshotVersion,
		SchemaVersion: meta.SchemaVersion,
		CreatedAt:     s.clock.Now().UTC(),
		Workers:       workers,
		Projects:      projects,
		Entries:       entries,
		Meta:          meta,
	}, nil
}

// Encode renders a document as indented JSON, the manual export format.
func Encode(doc *models.Snapshot) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// rawDocument checks field presence and shapes without committing to the
// full decode.
type rawDocument struct {
	Version       *string         `json:"version"`
	SchemaVersion *int            `json:"schemaVersion"`
	CreatedAt     *string         `json:"createdAt"`
	Workers       json.RawMessage `json:"workers"`
	Projects      json.RawMessage `json:"projects"`
	Entries       json.RawMessage `json:"entries"`
	Meta          json.RawMessage `json:"meta"`
}

// Parse decodes and structurally validates an imported document. Any defect
// is reported as ErrMalformedSnapshot; the live store is never touched here.
func Parse(data []byte) (*models.Snapshot, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed("not a JSON object: %v", err)
	}

	var problems []string
	if raw.Version == nil || *raw.Version == "" {
		problems = append(problems, "missing version")
	}
	if raw.SchemaVersion == nil {
		problems = append(problems, "missing schemaVersion")
	}
	if raw.CreatedAt == nil {
		problems = append(problems, "missing createdAt")
	}
	for _, c := range []struct {
		name string
		raw  json.RawMessage
	}{
		{"workers", raw.Workers},
		{"projects", raw.Projects},
		{"entries", raw.Entries},
	} {
		if c.raw == nil {
			problems = append(problems, fmt.Sprintf("missing collection %q", c.name))
			continue
		}
		if !isJSONArray(c.raw) {
			problems = append(problems, fmt.Sprintf("collection %q is not an array", c.name))
		}
	}
	if len(problems) > 0 {
		return nil, malformed("%s", strings.Join(problems, "; "))
	}

	var doc models.Snapshot
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed("decode: %v", err)
	}
	if errs := Validate(&doc); len(errs) > 0 {
		return nil, malformed("%s", strings.Join(errs, "; "))
	}
	return &doc, nil
}

// Validate checks an already-decoded document. Returns an empty slice when
// the document is well-formed.
func Validate(doc *models.Snapshot) []string {
	var errs []string
	if doc == nil {
		return []string{"document is nil"}
	}
	if doc.Version == "" {
		errs = append(errs, "missing version")
	}
	if doc.SchemaVersion < 1 {
		errs = append(errs, fmt.Sprintf("schemaVersion %d out of range", doc.SchemaVersion))
	}
	if doc.CreatedAt.IsZero() {
		errs = append(errs, "missing createdAt")
	}
	if doc.Workers == nil {
		errs = append(errs, "workers collection is nil")
	}
	if doc.Projects == nil {
		errs = append(errs, "projects collection is nil")
	}
	if doc.Entries == nil {
		errs = append(errs, "entries collection is nil")
	}
	return errs
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrMalformedSnapshot, fmt.Sprintf(format, args...))
}
