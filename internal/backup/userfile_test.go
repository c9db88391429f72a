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
	"github.com/crewbook/crewbook/internal/store"
)

func setupUserFileTier(t *testing.T, debounce time.Duration) (*UserFileTier, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", logging.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewUserFileTier(context.Background(), st, debounce, logging.NewDiscard()), st
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	require.Eventually(t, func() bool {
		// Activate's writability probe creates the file empty, so wait for
		// the flushed content rather than mere existence.
		info, err := os.Stat(path)
		return err == nil && info.Size() > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUserFileTier_InactiveUntilActivated(t *testing.T) {
	tier, _ := setupUserFileTier(t, time.Millisecond)
	ctx := context.Background()

	assert.False(t, tier.Available())
	assert.ErrorIs(t, tier.Write(ctx, testDoc(1)), common.ErrCapabilityUnavailable)
}

func TestUserFileTier_ActivatePersistsGrant(t *testing.T) {
	tier, st := setupUserFileTier(t, time.Millisecond)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "crewbook-backup.json")

	require.NoError(t, tier.Activate(ctx, path))
	assert.True(t, tier.Available())

	stored, err := st.GetMeta(ctx, store.MetaUserFilePath)
	require.NoError(t, err)
	assert.Equal(t, path, stored)

	// a fresh tier against the same store re-adopts the grant
	again := NewUserFileTier(ctx, st, time.Millisecond, logging.NewDiscard())
	assert.True(t, again.Available())
}

func TestUserFileTier_DebouncedWriteCoalesces(t *testing.T) {
	tier, _ := setupUserFileTier(t, 50*time.Millisecond)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, tier.Activate(ctx, path))

	// two rapid writes: only the latest document lands
	require.NoError(t, tier.Write(ctx, testDoc(1)))
	require.NoError(t, tier.Write(ctx, testDoc(2)))

	waitForFile(t, path)
	doc, err := tier.Read(ctx, "current")
	require.NoError(t, err)
	require.Len(t, doc.Workers, 1)
	assert.Equal(t, "w2", doc.Workers[0].ID)
}

func TestUserFileTier_DeactivateCancelsPendingWrite(t *testing.T) {
	tier, st := setupUserFileTier(t, 50*time.Millisecond)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, tier.Activate(ctx, path))

	require.NoError(t, tier.Write(ctx, testDoc(1)))
	require.NoError(t, tier.Deactivate(ctx))

	time.Sleep(150 * time.Millisecond)
	// activation probe created the file; the snapshot must not have landed
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)

	stored, err := st.GetMeta(ctx, store.MetaUserFilePath)
	require.NoError(t, err)
	assert.Equal(t, "", stored)
}

func TestUserFileTier_SelfDeactivatesOnWriteFailure(t *testing.T) {
	tier, _ := setupUserFileTier(t, 20*time.Millisecond)
	ctx := context.Background()

	dir := filepath.Join(t.TempDir(), "grant")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "backup.json")
	require.NoError(t, tier.Activate(ctx, path))

	// simulate external revocation: the granted location disappears
	require.NoError(t, os.RemoveAll(dir))

	require.NoError(t, tier.Write(ctx, testDoc(1)))
	require.Eventually(t, func() bool {
		return !tier.Available()
	}, 2*time.Second, 10*time.Millisecond)

	// subsequent triggers see a disabled tier, no error loop
	assert.ErrorIs(t, tier.Write(ctx, testDoc(2)), common.ErrCapabilityUnavailable)
}
