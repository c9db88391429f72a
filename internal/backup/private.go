package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/crewbook/crewbook/internal/common"
	"github.com/crewbook/crewbook/internal/filex"
	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/models"
	"github.com/crewbook/crewbook/internal/snapshot"
	"github.com/crewbook/crewbook/internal/timex"
)

// Retention policy of the private area: everything younger than 7 days is
// kept, at most 3 files survive in the 7–30 day band, nothing older than 30
// days survives at all.
const (
	privateKeepAllWindow = 7 * 24 * time.Hour
	privateMaxAge        = 30 * 24 * time.Hour
	privateMidBandKeep   = 3
)

const (
	privatePrefix  = "auto-"
	privateSuffix  = ".json"
	privateDateFmt = "2006-01-02"
)

// PrivateTier writes one snapshot file per calendar day into a private
// directory and prunes old files on every write. Availability is probed once
// at construction: a directory that cannot be created or written disables the
// tier rather than erroring.
type PrivateTier struct {
	dir       string
	available bool
	clock     timex.Clock
	log       logging.Logger
}

func NewPrivateTier(dir string, clock timex.Clock, log logging.Logger) *PrivateTier {
	t := &PrivateTier{clock: clock, log: log}

	abs, err := filex.EnsureDir(dir)
	if err != nil || !filex.IsWritableDir(abs) {
		log.Warn(context.Background(), "private backup area unavailable", "dir", dir)
		return t
	}
	t.dir = abs
	t.available = true
	return t
}

func (t *PrivateTier) Name() string { return TierPrivate }

func (t *PrivateTier) Available() bool { return t.available }

// Write creates or overwrites today's file, then applies retention.
func (t *PrivateTier) Write(ctx context.Context, doc *models.Snapshot) error {
	if !t.available {
		return common.ErrCapabilityUnavailable
	}

	data, err := snapshot.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	name := privatePrefix + t.clock.Now().UTC().Format(privateDateFmt) + privateSuffix
	if err := filex.WriteFileAtomic(filepath.Join(t.dir, name), data, 0o660); err != nil {
		return fmt.Errorf("write daily snapshot: %w", err)
	}
	t.log.Debug(ctx, "daily snapshot written", "file", name, "bytes", len(data))

	t.applyRetention(ctx)
	return nil
}

// applyRetention deletes expired files. Failures here are logged, not
// propagated: a prune problem must not fail the backup that triggered it.
func (t *PrivateTier) applyRetention(ctx context.Context) {
	files, err := t.datedFiles()
	if err != nil {
		t.log.Warn(ctx, "retention scan failed", "error", err)
		return
	}

	now := t.clock.Now().UTC()
	var midBand []datedFile

	for _, f := range files {
		age := now.Sub(f.date)
		switch {
		case age >= privateMaxAge:
			t.remove(ctx, f.name)
		case age >= privateKeepAllWindow:
			midBand = append(midBand, f)
		}
	}

	// most recent 3 in the 7–30 day band survive, the rest go
	sort.Slice(midBand, func(i, j int) bool { return midBand[i].date.After(midBand[j].date) })
	for _, f := range midBand[min(privateMidBandKeep, len(midBand)):] {
		t.remove(ctx, f.name)
	}
}

func (t *PrivateTier) remove(ctx context.Context, name string) {
	if err := os.Remove(filepath.Join(t.dir, name)); err != nil {
		t.log.Warn(ctx, "retention delete failed", "file", name, "error", err)
		return
	}
	t.log.Debug(ctx, "expired snapshot removed", "file", name)
}

// List returns the dated files newest-first.
func (t *PrivateTier) List(ctx context.Context) ([]Item, error) {
	if !t.available {
		return nil, common.ErrCapabilityUnavailable
	}

	files, err := t.datedFiles()
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].date.After(files[j].date) })
	items := make([]Item, 0, len(files))
	for _, f := range files {
		items = append(items, Item{ID: f.name, CreatedAt: f.date, Size: f.size})
	}
	return items, nil
}

// Read loads and validates one stored file by name.
func (t *PrivateTier) Read(ctx context.Context, id string) (*models.Snapshot, error) {
	if !t.available {
		return nil, common.ErrCapabilityUnavailable
	}
	if _, ok := parsePrivateName(id); !ok {
		return nil, fmt.Errorf("%w: bad snapshot name %q", common.ErrNotFound, id)
	}

	data, err := os.ReadFile(filepath.Join(t.dir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("read snapshot %s: %w", id, err)
	}
	return snapshot.Parse(data)
}

// Delete removes one stored file by name.
func (t *PrivateTier) Delete(ctx context.Context, id string) error {
	if !t.available {
		return common.ErrCapabilityUnavailable
	}
	if _, ok := parsePrivateName(id); !ok {
		return fmt.Errorf("%w: bad snapshot name %q", common.ErrNotFound, id)
	}
	if err := os.Remove(filepath.Join(t.dir, id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", common.ErrNotFound, id)
		}
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}

type datedFile struct {
	name string
	date time.Time
	size int64
}

func (t *PrivateTier) datedFiles() ([]datedFile, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("read private area: %w", err)
	}

	var files []datedFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		date, ok := parsePrivateName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, datedFile{name: e.Name(), date: date, size: info.Size()})
	}
	return files, nil
}

func parsePrivateName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, privatePrefix) || !strings.HasSuffix(name, privateSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, privatePrefix), privateSuffix)
	date, err := time.Parse(privateDateFmt, raw)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
