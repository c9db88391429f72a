package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/crewbook/crewbook/internal/common"
	"github.com/crewbook/crewbook/internal/filex"
	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/models"
	"github.com/crewbook/crewbook/internal/snapshot"
	"github.com/crewbook/crewbook/internal/store"
)

// DefaultDebounce is how long the user-file tier waits for writes to stop
// before actually touching the external file.
const DefaultDebounce = 30 * time.Second

// userFileItemID is the single item the tier exposes via List/Read/Delete.
const userFileItemID = "current"

// UserFileTier mirrors snapshots into one external file the user explicitly
// granted. Writes are debounced: bursts of rapid changes coalesce into one
// disk write. A failed write self-deactivates the tier instead of
// error-looping on every subsequent trigger.
type UserFileTier struct {
	mu       sync.Mutex
	path     string
	active   bool
	debounce time.Duration
	pending  *time.Timer
	latest   *models.Snapshot

	store *store.Store
	log   logging.Logger

	// afterFunc is a test seam for time.AfterFunc.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewUserFileTier restores a previously granted path from store metadata and
// re-probes it. A failed probe leaves the tier deactivated, like a browser
// handle whose permission was not re-granted.
func NewUserFileTier(ctx context.Context, st *store.Store, debounce time.Duration, log logging.Logger) *UserFileTier {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	t := &UserFileTier{
		debounce:  debounce,
		store:     st,
		log:       log,
		afterFunc: time.AfterFunc,
	}

	path, err := st.GetMeta(ctx, store.MetaUserFilePath)
	if err != nil || path == "" {
		return t
	}
	if err := probeWritable(path); err != nil {
		log.Warn(ctx, "user backup file no longer writable, staying deactivated",
			"path", path, "error", err)
		return t
	}
	t.path = path
	t.active = true
	return t
}

func (t *UserFileTier) Name() string { return TierUserFile }

func (t *UserFileTier) Available() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Activate grants the tier a writable file path and persists the grant.
func (t *UserFileTier) Activate(ctx context.Context, path string) error {
	if err := probeWritable(path); err != nil {
		return fmt.Errorf("%w: %s: %w", common.ErrCapabilityUnavailable, path, err)
	}
	if err := t.store.SetMeta(ctx, store.MetaUserFilePath, path); err != nil {
		return err
	}

	t.mu.Lock()
	t.path = path
	t.active = true
	t.mu.Unlock()

	t.log.Info(ctx, "user backup file activated", "path", path)
	return nil
}

// Deactivate drops the grant and cancels any pending debounced write.
func (t *UserFileTier) Deactivate(ctx context.Context) error {
	t.mu.Lock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.latest = nil
	t.path = ""
	t.active = false
	t.mu.Unlock()

	return t.store.DeleteMeta(ctx, store.MetaUserFilePath)
}

// Write schedules a debounced write of doc. Each call cancels a pending,
// not-yet-fired timer; only the latest document is ever flushed.
func (t *UserFileTier) Write(ctx context.Context, doc *models.Snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return common.ErrCapabilityUnavailable
	}

	t.latest = doc
	if t.pending != nil {
		t.pending.Stop()
	}
	t.pending = t.afterFunc(t.debounce, t.flush)
	return nil
}

// flush performs the real disk write. Runs on the timer goroutine, so it
// carries its own context.
func (t *UserFileTier) flush() {
	ctx := context.Background()

	t.mu.Lock()
	doc := t.latest
	path := t.path
	active := t.active
	t.pending = nil
	t.latest = nil
	t.mu.Unlock()

	if !active || doc == nil {
		return
	}

	data, err := snapshot.Encode(doc)
	if err != nil {
		t.log.Error(ctx, "encode snapshot for user file", "error", err)
		return
	}

	if err := filex.WriteFileAtomic(path, data, 0o644); err != nil {
		// permission revoked externally: disable rather than retry-storm
		t.log.Warn(ctx, "user backup file write failed, deactivating",
			"path", path, "error", fmt.Errorf("%w: %w", common.ErrPermissionRevoked, err))
		if derr := t.Deactivate(ctx); derr != nil {
			t.log.Error(ctx, "deactivate user backup file", "error", derr)
		}
		return
	}

	t.log.Debug(ctx, "user backup file written", "path", path, "bytes", len(data))
}

// List exposes the single current file, if present.
func (t *UserFileTier) List(ctx context.Context) ([]Item, error) {
	t.mu.Lock()
	path := t.path
	active := t.active
	t.mu.Unlock()

	if !active {
		return nil, common.ErrCapabilityUnavailable
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Item{}, nil
		}
		return nil, fmt.Errorf("stat user file: %w", err)
	}
	return []Item{{ID: userFileItemID, CreatedAt: info.ModTime(), Size: info.Size()}}, nil
}

// Read loads and validates the external file.
func (t *UserFileTier) Read(ctx context.Context, id string) (*models.Snapshot, error) {
	t.mu.Lock()
	path := t.path
	active := t.active
	t.mu.Unlock()

	if !active {
		return nil, common.ErrCapabilityUnavailable
	}
	if id != userFileItemID {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, id)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: user file", common.ErrNotFound)
		}
		return nil, fmt.Errorf("read user file: %w", err)
	}
	return snapshot.Parse(data)
}

// Delete truncates nothing and revokes nothing by itself; the single item is
// removed from disk, the grant stays.
func (t *UserFileTier) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	path := t.path
	active := t.active
	t.mu.Unlock()

	if !active {
		return common.ErrCapabilityUnavailable
	}
	if id != userFileItemID {
		return fmt.Errorf("%w: %s", common.ErrNotFound, id)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete user file: %w", err)
	}
	return nil
}

// probeWritable checks that path can be opened for writing without
// truncating existing content.
func probeWritable(path string) error {
	if dir := filepath.Dir(path); !filex.IsWritableDir(dir) {
		return fmt.Errorf("directory %s not writable", dir)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
