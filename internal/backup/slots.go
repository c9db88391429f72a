package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/crewbook/crewbook/internal/common"
	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/models"
)

// SlotCount is the fixed size of the rotating ring.
const SlotCount = 5

const (
	slotKeyPrefix = "slots/"
	slotIndexKey  = "slots/index"
)

// slotMeta is the per-slot index entry.
type slotMeta struct {
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
}

// slotIndex tracks the ring position and the occupied slots.
type slotIndex struct {
	Current int                  `json:"current"`
	Slots   [SlotCount]*slotMeta `json:"slots"`
}

// SlotTier keeps the last SlotCount snapshots in a BadgerDB ring. Bounded
// space regardless of backup frequency: one more write always evicts the
// oldest slot.
type SlotTier struct {
	db  *badger.DB
	log logging.Logger
}

// OpenSlotTier opens (or creates) the badger database backing the ring. A nil
// error with a nil tier is never returned; an open failure means the tier is
// unavailable and the caller should construct a disabled tier instead.
func OpenSlotTier(dir string, log logging.Logger) (*SlotTier, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{log: slog.Default()}).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open slot storage: %w", common.ErrCapabilityUnavailable, err)
	}
	return NewSlotTier(db, log), nil
}

// NewSlotTier wraps an already-open badger handle. Tests pass an in-memory
// database.
func NewSlotTier(db *badger.DB, log logging.Logger) *SlotTier {
	return &SlotTier{db: db, log: log}
}

func (t *SlotTier) Name() string { return TierSlots }

func (t *SlotTier) Available() bool { return t != nil && t.db != nil }

// Close releases the underlying database.
func (t *SlotTier) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

// Write stores doc in the slot after the current one, advancing the ring.
func (t *SlotTier) Write(ctx context.Context, doc *models.Snapshot) error {
	if !t.Available() {
		return common.ErrCapabilityUnavailable
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	err = t.db.Update(func(txn *badger.Txn) error {
		idx, err := readIndex(txn)
		if err != nil {
			return err
		}

		next := (idx.Current + 1) % SlotCount
		if err := txn.Set(slotKey(next), data); err != nil {
			return err
		}

		idx.Current = next
		idx.Slots[next] = &slotMeta{CreatedAt: doc.CreatedAt, Size: int64(len(data))}
		return writeIndex(txn, idx)
	})
	if err != nil {
		return fmt.Errorf("write slot: %w", err)
	}

	t.log.Debug(ctx, "slot written", "bytes", len(data))
	return nil
}

// List returns occupied slots sorted newest-first.
func (t *SlotTier) List(ctx context.Context) ([]Item, error) {
	if !t.Available() {
		return nil, common.ErrCapabilityUnavailable
	}

	var items []Item
	err := t.db.View(func(txn *badger.Txn) error {
		idx, err := readIndex(txn)
		if err != nil {
			return err
		}
		for slot, meta := range idx.Slots {
			if meta == nil {
				continue
			}
			items = append(items, Item{
				ID:        slotID(slot),
				CreatedAt: meta.CreatedAt,
				Size:      meta.Size,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Read loads one slot by its item id ("slot-N").
func (t *SlotTier) Read(ctx context.Context, id string) (*models.Snapshot, error) {
	if !t.Available() {
		return nil, common.ErrCapabilityUnavailable
	}

	slot, err := parseSlotID(id)
	if err != nil {
		return nil, err
	}

	var doc models.Snapshot
	err = t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(slotKey(slot))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return common.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read slot %s: %w", id, err)
	}
	return &doc, nil
}

// Delete removes one slot and its index entry.
func (t *SlotTier) Delete(ctx context.Context, id string) error {
	if !t.Available() {
		return common.ErrCapabilityUnavailable
	}

	slot, err := parseSlotID(id)
	if err != nil {
		return err
	}

	err = t.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(slotKey(slot)); err != nil {
			return err
		}
		idx, err := readIndex(txn)
		if err != nil {
			return err
		}
		idx.Slots[slot] = nil
		return writeIndex(txn, idx)
	})
	if err != nil {
		return fmt.Errorf("delete slot %s: %w", id, err)
	}
	return nil
}

func slotKey(slot int) []byte {
	return []byte(slotKeyPrefix + strconv.Itoa(slot))
}

func slotID(slot int) string {
	return "slot-" + strconv.Itoa(slot)
}

func parseSlotID(id string) (int, error) {
	raw, ok := strings.CutPrefix(id, "slot-")
	if !ok {
		return 0, fmt.Errorf("%w: bad slot id %q", common.ErrNotFound, id)
	}
	slot, err := strconv.Atoi(raw)
	if err != nil || slot < 0 || slot >= SlotCount {
		return 0, fmt.Errorf("%w: bad slot id %q", common.ErrNotFound, id)
	}
	return slot, nil
}

func readIndex(txn *badger.Txn) (*slotIndex, error) {
	// Current starts at -1 so the first write lands in slot 0.
	idx := &slotIndex{Current: -1}
	item, err := txn.Get([]byte(slotIndexKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, idx)
	})
	return idx, err
}

func writeIndex(txn *badger.Txn, idx *slotIndex) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return txn.Set([]byte(slotIndexKey), data)
}

// badgerLogger adapts slog to badger's Logger interface.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
