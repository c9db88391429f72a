package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbook/crewbook/internal/common"
	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/timex"
)

func setupPrivateTier(t *testing.T, clock timex.Clock) (*PrivateTier, string) {
	t.Helper()
	dir := t.TempDir()
	tier := NewPrivateTier(dir, clock, logging.NewDiscard())
	require.True(t, tier.Available())
	return tier, dir
}

func touchDated(t *testing.T, dir string, date time.Time) string {
	t.Helper()
	name := privatePrefix + date.UTC().Format(privateDateFmt) + privateSuffix
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`{}`), 0o660))
	return name
}

func TestPrivateTier_WriteCreatesDailyFile(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	clock := timex.NewFakeClock(now)
	tier, dir := setupPrivateTier(t, clock)
	ctx := context.Background()

	require.NoError(t, tier.Write(ctx, testDoc(1)))
	_, err := os.Stat(filepath.Join(dir, "auto-2025-06-15.json"))
	require.NoError(t, err)

	// same day again: overwritten, still one file
	require.NoError(t, tier.Write(ctx, testDoc(2)))
	items, err := tier.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	doc, err := tier.Read(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "w2", doc.Workers[0].ID)
}

func TestPrivateTier_RetentionBands(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	clock := timex.NewFakeClock(now)
	tier, dir := setupPrivateTier(t, clock)
	ctx := context.Background()

	young := touchDated(t, dir, now.AddDate(0, 0, -3))
	mid1 := touchDated(t, dir, now.AddDate(0, 0, -8))
	mid2 := touchDated(t, dir, now.AddDate(0, 0, -12))
	mid3 := touchDated(t, dir, now.AddDate(0, 0, -16))
	mid4 := touchDated(t, dir, now.AddDate(0, 0, -20))
	ancient := touchDated(t, dir, now.AddDate(0, 0, -45))

	require.NoError(t, tier.Write(ctx, testDoc(1)))

	surviving := func(name string) bool {
		_, err := os.Stat(filepath.Join(dir, name))
		return err == nil
	}

	assert.True(t, surviving(young), "younger than 7 days must be kept")
	assert.True(t, surviving(mid1))
	assert.True(t, surviving(mid2))
	assert.True(t, surviving(mid3), "most recent 3 in the 7-30 day band survive")
	assert.False(t, surviving(mid4), "4th file in the 7-30 day band is pruned")
	assert.False(t, surviving(ancient), "older than 30 days removed unconditionally")
}

func TestPrivateTier_ListNewestFirst(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	clock := timex.NewFakeClock(now)
	tier, dir := setupPrivateTier(t, clock)

	touchDated(t, dir, now.AddDate(0, 0, -2))
	touchDated(t, dir, now)
	touchDated(t, dir, now.AddDate(0, 0, -1))
	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o660))

	items, err := tier.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "auto-2025-06-15.json", items[0].ID)
	assert.Equal(t, "auto-2025-06-13.json", items[2].ID)
}

func TestPrivateTier_ReadValidatesDocument(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	tier, dir := setupPrivateTier(t, timex.NewFakeClock(now))
	ctx := context.Background()

	name := touchDated(t, dir, now) // "{}" is not a valid snapshot
	_, err := tier.Read(ctx, name)
	assert.ErrorIs(t, err, common.ErrMalformedSnapshot)

	_, err = tier.Read(ctx, "auto-2030-01-01.json")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = tier.Read(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPrivateTier_UnavailableDirDisablesTier(t *testing.T) {
	// a path that cannot be created: below an existing file
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	tier := NewPrivateTier(filepath.Join(blocker, "sub"), timex.RealClock{}, logging.NewDiscard())
	assert.False(t, tier.Available())
	assert.ErrorIs(t, tier.Write(context.Background(), testDoc(1)), common.ErrCapabilityUnavailable)
	_, err := tier.List(context.Background())
	assert.ErrorIs(t, err, common.ErrCapabilityUnavailable)
}
