package backup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/models"
	"github.com/crewbook/crewbook/internal/snapshot"
	"github.com/crewbook/crewbook/internal/store"
	"github.com/crewbook/crewbook/internal/timex"
)

// fakeTier records written documents and can be told to fail.
type fakeTier struct {
	mu        sync.Mutex
	name      string
	available bool
	fail      bool
	docs      []*models.Snapshot
}

func (f *fakeTier) Name() string    { return f.name }
func (f *fakeTier) Available() bool { return f.available }

func (f *fakeTier) Write(ctx context.Context, doc *models.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("tier broken")
	}
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeTier) List(ctx context.Context) ([]Item, error)                 { return nil, nil }
func (f *fakeTier) Read(ctx context.Context, id string) (*models.Snapshot, error) {
	return nil, nil
}
func (f *fakeTier) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeTier) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

func setupScheduler(t *testing.T, clock timex.Clock, tiers ...Tier) (*Scheduler, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", logging.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ser := snapshot.NewSerializer(st, clock)
	s := NewScheduler(ser, st, tiers, clock, DefaultChangeThreshold, DefaultInterval, logging.NewDiscard())
	return s, st
}

func TestScheduler_ThresholdFiresExactlyOnce(t *testing.T) {
	clock := timex.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tier := &fakeTier{name: "a", available: true}
	s, _ := setupScheduler(t, clock, tier)
	ctx := context.Background()

	s.TrackChange(ctx, 24)
	assert.Equal(t, 24, s.ChangeCount())
	assert.Equal(t, 0, tier.writeCount())

	s.TrackChange(ctx, 1)
	require.Eventually(t, func() bool { return tier.writeCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.ChangeCount())
}

func TestScheduler_BulkIncrementCrossesThreshold(t *testing.T) {
	clock := timex.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tier := &fakeTier{name: "a", available: true}
	s, _ := setupScheduler(t, clock, tier)

	s.TrackChange(context.Background(), 40)
	require.Eventually(t, func() bool { return tier.writeCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.ChangeCount())
}

func TestScheduler_TimerTriggerNeedsPendingChanges(t *testing.T) {
	clock := timex.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tier := &fakeTier{name: "a", available: true}
	s, _ := setupScheduler(t, clock, tier)
	ctx := context.Background()

	// interval elapsed, nothing changed: no backup
	clock.Advance(2 * time.Minute)
	s.CheckTimer(ctx)
	assert.Equal(t, 0, tier.writeCount())

	// a single change plus elapsed interval fires
	s.TrackChange(ctx, 1)
	s.CheckTimer(ctx)
	require.Eventually(t, func() bool { return tier.writeCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	// immediately after, the timer is reset
	s.TrackChange(ctx, 1)
	s.CheckTimer(ctx)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, tier.writeCount())
}

func TestScheduler_FailingTierDoesNotBlockSiblings(t *testing.T) {
	clock := timex.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	broken := &fakeTier{name: "broken", available: true, fail: true}
	healthy := &fakeTier{name: "healthy", available: true}
	s, _ := setupScheduler(t, clock, broken, healthy)
	ctx := context.Background()

	require.NoError(t, s.ForceBackup(ctx))
	assert.Equal(t, 1, healthy.writeCount())

	// the failure shows up in status, not as an error
	st, err := s.Status(ctx)
	require.NoError(t, err)
	require.Len(t, st.Tiers, 2)
	assert.NotEmpty(t, st.Tiers[0].LastError)
	assert.Empty(t, st.Tiers[1].LastError)
}

func TestScheduler_UnavailableTierIsSkipped(t *testing.T) {
	clock := timex.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	disabled := &fakeTier{name: "disabled"}
	healthy := &fakeTier{name: "healthy", available: true}
	s, _ := setupScheduler(t, clock, disabled, healthy)

	require.NoError(t, s.ForceBackup(context.Background()))
	assert.Equal(t, 0, disabled.writeCount())
	assert.Equal(t, 1, healthy.writeCount())
}

func TestScheduler_ForceBackupRecordsMetadata(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := timex.NewFakeClock(now)
	tier := &fakeTier{name: "a", available: true}
	s, st := setupScheduler(t, clock, tier)
	ctx := context.Background()

	require.NoError(t, s.ForceBackup(ctx))

	last, err := st.GetMetaTime(ctx, store.MetaLastBackupAt)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(now))
}

func TestScheduler_AllTiersDownStillResets(t *testing.T) {
	clock := timex.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	broken := &fakeTier{name: "broken", available: true, fail: true}
	s, _ := setupScheduler(t, clock, broken)
	ctx := context.Background()

	s.TrackChange(ctx, 30)
	require.Eventually(t, func() bool { return s.ChangeCount() == 0 }, 2*time.Second, 5*time.Millisecond)

	// no retry storm: the counter stays reset even though the tier failed
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, s.ChangeCount())
}
