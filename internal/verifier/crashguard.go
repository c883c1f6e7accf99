package verifier

import (
	"context"
	"sync"
)

// CrashMarkerStore persists the fact that the verifier has latched shut after
// an integrity fault, and lets an operator find it again after a restart. It
// is the fatal-band analogue of nullifier.Store and tree.Store: a narrow
// persistence seam rather than a general logging sink.
type CrashMarkerStore interface {
	PersistCrashMarker(ctx context.Context, reason string) error
	HasCrashMarker(ctx context.Context) (bool, error)
	ClearCrashMarker(ctx context.Context) error
}

// CrashGuard latches the verifier shut the first time an integrity fault is
// observed, and keeps it shut across every subsequent call, matching spec §7
// band 3: "the process MUST stop writing... and refuse further transactions
// until an operator replays from logs." Grounded on the teacher's
// SlashingManager evidence bookkeeping (internal/reputation/slashing.go) —
// the same "record once, never re-process" shape, applied to halting instead
// of economic slashing.
type CrashGuard struct {
	mu      sync.RWMutex
	tripped bool
	reason  string
	store   CrashMarkerStore
}

// NewCrashGuard wraps store in a CrashGuard. store may be nil, in which case
// the latch is held only in memory for the life of the process.
func NewCrashGuard(store CrashMarkerStore) *CrashGuard {
	return &CrashGuard{store: store}
}

// Restore loads a previously persisted crash marker, so a restarted process
// comes back up already latched rather than silently resuming.
func (g *CrashGuard) Restore(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	tripped, err := g.store.HasCrashMarker(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.tripped = tripped
	g.mu.Unlock()
	return nil
}

// Trip latches the guard shut. Idempotent: tripping an already-tripped guard
// keeps the first recorded reason.
func (g *CrashGuard) Trip(ctx context.Context, fault *IntegrityFault) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tripped {
		return nil
	}
	g.tripped = true
	g.reason = fault.Error()

	if g.store != nil {
		return g.store.PersistCrashMarker(ctx, g.reason)
	}
	return nil
}

// Resume clears the latch after an operator has replayed the integrity
// fault from logs and confirmed the underlying corruption is fixed (spec §7
// band 3: "...until an operator replays from logs"). There is no automatic
// path to this state — only an explicit call clears it, and a restarted
// process still comes back up tripped via Restore until this is called.
func (g *CrashGuard) Resume(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.store != nil {
		if err := g.store.ClearCrashMarker(ctx); err != nil {
			return err
		}
	}
	g.tripped = false
	g.reason = ""
	return nil
}

// Tripped reports whether the guard has latched, and why.
func (g *CrashGuard) Tripped() (bool, string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tripped, g.reason
}

// ErrHalted is returned by Verify when the pool has already latched shut
// from a prior integrity fault.
var ErrHalted = &IntegrityFault{Reason: "verifier halted by a prior integrity fault"}
