package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbook/crewbook/internal/common"
	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/models"
	"github.com/crewbook/crewbook/internal/store"
	"github.com/crewbook/crewbook/internal/timex"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:", logging.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBuild_AssemblesAllCollectionsAndMeta(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	at := time.Date(2025, 5, 20, 7, 0, 0, 0, time.UTC)

	require.NoError(t, s.PutWorkers(ctx, []models.Worker{{ID: "w1", Name: "Ana", CreatedAt: at, UpdatedAt: at}}))
	require.NoError(t, s.PutProjects(ctx, []models.Project{{ID: "p1", Name: "Dock", Status: models.ProjectActive, CreatedAt: at, UpdatedAt: at}}))
	require.NoError(t, s.PutEntries(ctx, []models.Entry{models.NewHourlyEntry("p1", "w1", 4, 20, at)}))
	require.NoError(t, s.SetMetaTime(ctx, store.MetaLastBackupAt, at))

	clock := timex.NewFakeClock(at.Add(time.Hour))
	doc, err := NewSerializer(s, clock).Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.SnapshotVersion, doc.Version)
	assert.Equal(t, models.SchemaVersion, doc.SchemaVersion)
	assert.Equal(t, at.Add(time.Hour), doc.CreatedAt)
	assert.Len(t, doc.Workers, 1)
	assert.Len(t, doc.Projects, 1)
	assert.Len(t, doc.Entries, 1)
	require.NotNil(t, doc.Meta.LastBackupAt)
	assert.True(t, doc.Meta.LastBackupAt.Equal(at))
	assert.Nil(t, doc.Meta.LastVacuumAt)
}

func TestBuild_EmptyStoreYieldsEmptyArrays(t *testing.T) {
	s := setupStore(t)
	clock := timex.NewFakeClock(time.Now())

	doc, err := NewSerializer(s, clock).Build(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, doc.Workers)
	assert.NotNil(t, doc.Projects)
	assert.NotNil(t, doc.Entries)
	assert.Empty(t, Validate(doc))
}

func TestParse_RoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	at := time.Date(2025, 5, 20, 7, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutWorkers(ctx, []models.Worker{{ID: "w1", Name: "Ana", CreatedAt: at, UpdatedAt: at}}))

	doc, err := NewSerializer(s, timex.NewFakeClock(at)).Build(ctx)
	require.NoError(t, err)

	data, err := Encode(doc)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Workers, parsed.Workers)
	assert.Equal(t, doc.Version, parsed.Version)
}

func TestParse_RejectsMalformedDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"workers not an array", `{"version":"1.0.0","schemaVersion":1,"createdAt":"2025-01-01T00:00:00Z","workers":{},"projects":[],"entries":[],"meta":{}}`},
		{"missing version", `{"schemaVersion":1,"createdAt":"2025-01-01T00:00:00Z","workers":[],"projects":[],"entries":[],"meta":{}}`},
		{"missing entries", `{"version":"1.0.0","schemaVersion":1,"createdAt":"2025-01-01T00:00:00Z","workers":[],"projects":[],"meta":{}}`},
		{"bad entry type", `{"version":"1.0.0","schemaVersion":1,"createdAt":"2025-01-01T00:00:00Z","workers":[],"projects":[],"entries":[{"id":"e1","type":"weird"}],"meta":{}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			assert.ErrorIs(t, err, common.ErrMalformedSnapshot)
		})
	}
}

func TestValidate_FlagsNilCollections(t *testing.T) {
	doc := &models.Snapshot{
		Version:       models.SnapshotVersion,
		SchemaVersion: 1,
		CreatedAt:     time.Now(),
		Workers:       []models.Worker{},
		Projects:      []models.Project{},
	}
	errs := Validate(doc)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "entries")
}
