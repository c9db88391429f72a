package backup

import (
	"context"
	"sync"
	"time"

	"github.com/crewbook/crewbook/internal/logging"
	"github.com/crewbook/crewbook/internal/snapshot"
	"github.com/crewbook/crewbook/internal/store"
	"github.com/crewbook/crewbook/internal/timex"
)

// Trigger thresholds: a backup fires when either 25 records have changed or
// 60 seconds have passed since the last backup with changes still pending.
const (
	DefaultChangeThreshold = 25
	DefaultInterval        = 60 * time.Second
)

// TierStatus is the per-tier state exposed to status displays.
type TierStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	LastError string `json:"lastError,omitempty"`
}

// Status is the scheduler state exposed to status displays.
type Status struct {
	ChangeCount  int          `json:"changeCount"`
	LastBackupAt *time.Time   `json:"lastBackupAt"`
	LastVacuumAt *time.Time   `json:"lastVacuumAt"`
	Tiers        []TierStatus `json:"tiers"`
}

// Scheduler owns the change counter and backup timer and fans snapshots out
// to every available tier. One instance per process; state is explicit, not
// package-level.
type Scheduler struct {
	serializer *snapshot.Serializer
	store      *store.Store
	tiers      []Tier
	clock      timex.Clock
	threshold  int
	interval   time.Duration
	log        logging.Logger

	mu           sync.Mutex
	changeCount  int
	lastBackupAt time.Time
	inFlight     bool
	lastErrs     map[string]string
}

// NewScheduler wires the fan-out targets. Tiers missing their capability
// stay registered for status display but are skipped at write time; the
// probe itself happened once inside each tier's constructor.
func NewScheduler(ser *snapshot.Serializer, st *store.Store, tiers []Tier, clock timex.Clock, threshold int, interval time.Duration, log logging.Logger) *Scheduler {
	if threshold <= 0 {
		threshold = DefaultChangeThreshold
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	for _, t := range tiers {
		if !t.Available() {
			log.Info(context.Background(), "backup tier disabled", "tier", t.Name())
		}
	}

	return &Scheduler{
		serializer:   ser,
		store:        st,
		tiers:        tiers,
		clock:        clock,
		threshold:    threshold,
		interval:     interval,
		log:          log,
		lastBackupAt: clock.Now(),
		lastErrs:     make(map[string]string),
	}
}

// TrackChange records n mutated records. Crossing the threshold triggers a
// backup exactly once; the fan-out runs without blocking the caller.
func (s *Scheduler) TrackChange(ctx context.Context, n int) {
	if n <= 0 {
		return
	}

	s.mu.Lock()
	s.changeCount += n
	fire := s.changeCount >= s.threshold && !s.inFlight
	if fire {
		s.inFlight = true
	}
	s.mu.Unlock()

	if fire {
		s.triggerBackup(ctx, false)
	}
}

// ChangeCount returns the pending mutation count.
func (s *Scheduler) ChangeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changeCount
}

// Run drives the wall-clock trigger until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CheckTimer(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckTimer fires a backup when the interval has elapsed and changes are
// pending. Split out from Run so tests can drive it with a fake clock.
func (s *Scheduler) CheckTimer(ctx context.Context) {
	s.mu.Lock()
	due := s.changeCount > 0 &&
		s.clock.Now().Sub(s.lastBackupAt) >= s.interval &&
		!s.inFlight
	if due {
		s.inFlight = true
	}
	s.mu.Unlock()

	if due {
		s.triggerBackup(ctx, false)
	}
}

// ForceBackup runs the same snapshot/fan-out synchronously, bypassing the
// thresholds. Used for user-initiated "backup now".
func (s *Scheduler) ForceBackup(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil
	}
	s.inFlight = true
	s.mu.Unlock()

	return s.triggerBackup(ctx, true)
}

// triggerBackup freezes one snapshot, hands it to every enabled tier
// concurrently, and resets the counter/timer unconditionally once the
// fan-out has been initiated. Individual tier failures are logged at the
// tier boundary and never reach siblings or the caller.
func (s *Scheduler) triggerBackup(ctx context.Context, wait bool) error {
	doc, err := s.serializer.Build(ctx)
	if err != nil {
		// storage unavailable: skip this cycle cleanly
		s.log.Error(ctx, "snapshot build failed, skipping backup cycle", "error", err)
		s.mu.Lock()
		s.lastBackupAt = s.clock.Now()
		s.inFlight = false
		s.mu.Unlock()
		return err
	}

	var wg sync.WaitGroup
	for _, tier := range s.tiers {
		// the user-file tier toggles at runtime; everything else cached its
		// capability probe at construction
		if !tier.Available() {
			continue
		}
		wg.Add(1)
		go func(tier Tier) {
			defer wg.Done()
			if err := tier.Write(ctx, doc); err != nil {
				s.log.Warn(ctx, "backup tier write failed", "tier", tier.Name(), "error", err)
				s.setTierErr(tier.Name(), err.Error())
				return
			}
			s.setTierErr(tier.Name(), "")
		}(tier)
	}

	// reset after initiation, regardless of tier outcomes
	now := s.clock.Now()
	s.mu.Lock()
	s.changeCount = 0
	s.lastBackupAt = now
	s.inFlight = false
	s.mu.Unlock()

	if err := s.store.SetMetaTime(ctx, store.MetaLastBackupAt, now); err != nil {
		s.log.Error(ctx, "record last backup time", "error", err)
	}

	if wait {
		wg.Wait()
	}
	return nil
}

func (s *Scheduler) setTierErr(name, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg == "" {
		delete(s.lastErrs, name)
		return
	}
	s.lastErrs[name] = msg
}

// Tiers returns the enabled tiers, for the tier-management API.
func (s *Scheduler) Tiers() []Tier { return s.tiers }

// Status assembles the scheduler view for status displays.
func (s *Scheduler) Status(ctx context.Context) (*Status, error) {
	meta, err := s.store.Meta(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Status{
		ChangeCount:  s.changeCount,
		LastBackupAt: meta.LastBackupAt,
		LastVacuumAt: meta.LastVacuumAt,
	}
	for _, t := range s.tiers {
		st.Tiers = append(st.Tiers, TierStatus{
			Name:      t.Name(),
			Available: t.Available(),
			LastError: s.lastErrs[t.Name()],
		})
	}
	return st, nil
}
