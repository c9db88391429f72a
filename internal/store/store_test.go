package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbook/crewbook/internal/common"
	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", logging.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_IsIdempotentOnSameFile(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "crewbook.db")

	s1, err := Open(ctx, dsn, logging.NewDiscard())
	require.NoError(t, err)
	require.NoError(t, s1.PutWorkers(ctx, []models.Worker{{ID: "w1", Name: "Ana"}}))
	require.NoError(t, s1.Close())

	// reopening runs migrations again; they must be no-ops
	s2, err := Open(ctx, dsn, logging.NewDiscard())
	require.NoError(t, err)
	defer s2.Close()

	workers, err := s2.Workers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, "Ana", workers[0].Name)
}

func TestGetCollection_EmptyWhenNeverWritten(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	workers, err := s.Workers(ctx)
	require.NoError(t, err)
	assert.NotNil(t, workers)
	assert.Empty(t, workers)
}

func TestPutCollection_ReplacesWholeValue(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutProjects(ctx, []models.Project{
		{ID: "p1", Name: "Dock"},
		{ID: "p2", Name: "Yard"},
	}))
	require.NoError(t, s.PutProjects(ctx, []models.Project{{ID: "p3", Name: "Pier"}}))

	projects, err := s.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "p3", projects[0].ID)
}

func TestEntries_RoundTripTaggedUnion(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	at := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

	in := []models.Entry{
		models.NewTaskEntry("p1", []string{"w1", "w2"}, "T-1", 40, at),
		models.NewHourlyEntry("p1", "w1", 6, 15, at),
	}
	require.NoError(t, s.PutEntries(ctx, in))

	out, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NotNil(t, out[0].Task)
	require.NotNil(t, out[1].Hourly)
	assert.Equal(t, 90.0, out[1].Hourly.TotalEarned)
}

func TestMeta_GetSetAndTime(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	v, err := s.GetMeta(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	ts, err := s.GetMetaTime(ctx, MetaLastBackupAt)
	require.NoError(t, err)
	assert.Nil(t, ts)

	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetMetaTime(ctx, MetaLastBackupAt, now))

	ts, err = s.GetMetaTime(ctx, MetaLastBackupAt)
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.True(t, ts.Equal(now))
}

func TestSchemaVersion_SeededByMigration(t *testing.T) {
	s := setupStore(t)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SchemaVersion, v)
}

func TestStorageErr_MatchesSentinel(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Close())

	_, err := s.Workers(ctx)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)

	err = s.PutWorkers(ctx, []models.Worker{{ID: "w1"}})
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
}

func TestReplaceAll_WritesAllThreeCollections(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	ts := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	workers := []models.Worker{{ID: "w1", Name: "Ana", CreatedAt: ts, UpdatedAt: ts}}
	projects := []models.Project{{ID: "p1", Name: "site", CreatedAt: ts, UpdatedAt: ts}}

	require.NoError(t, s.ReplaceAll(ctx, workers, projects, nil))

	gotW, err := s.Workers(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers, gotW)

	gotP, err := s.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, projects, gotP)

	// nil normalizes to an empty collection
	gotE, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Entry{}, gotE)
}

func TestReplaceAll_ClosedStore(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Close())

	err := s.ReplaceAll(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
}
