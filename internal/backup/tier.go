// Package backup implements the change-triggered backup scheduler and the
// three snapshot tiers it fans out to: a fixed ring of slots in fast local
// KV storage, calendar-dated files in a private area, and a single external
// file the user grants access to.
package backup

import (
	"context"
	"time"

	"github.com/crewbook/crewbook/internal/models"
)

// Tier names used by status displays and the tier-management API.
const (
	TierSlots    = "slots"
	TierPrivate  = "private"
	TierUserFile = "userfile"
)

// Item describes one stored snapshot inside a tier.
type Item struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
}

// Tier is a snapshot sink/source. Tiers never mutate live state; restoration
// always goes through the merge engine. Available is probed once at startup
// and cached — an unavailable tier is a disabled feature, not an error.
type Tier interface {
	Name() string
	Available() bool

	// Write persists the already-frozen document. Failures are reported to
	// the caller and must not affect sibling tiers.
	Write(ctx context.Context, doc *models.Snapshot) error

	// List returns stored snapshots, newest first.
	List(ctx context.Context) ([]Item, error)

	// Read loads one stored snapshot by item id.
	Read(ctx context.Context, id string) (*models.Snapshot, error)

	// Delete removes one stored snapshot by item id.
	Delete(ctx context.Context, id string) error
}
