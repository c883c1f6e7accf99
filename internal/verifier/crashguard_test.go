package verifier

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeCrashMarkerStore is an in-memory CrashMarkerStore stand-in.
type fakeCrashMarkerStore struct {
	mu     sync.Mutex
	marked bool
	reason string
}

func (s *fakeCrashMarkerStore) PersistCrashMarker(_ context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = true
	s.reason = reason
	return nil
}

func (s *fakeCrashMarkerStore) HasCrashMarker(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marked, nil
}

func (s *fakeCrashMarkerStore) ClearCrashMarker(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = false
	s.reason = ""
	return nil
}

func TestCrashGuardTripLatchesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	g := NewCrashGuard(nil)

	if tripped, _ := g.Tripped(); tripped {
		t.Fatal("fresh guard should not be tripped")
	}

	first := &IntegrityFault{Reason: "first fault"}
	if err := g.Trip(ctx, first); err != nil {
		t.Fatalf("Trip: %v", err)
	}
	tripped, reason := g.Tripped()
	if !tripped {
		t.Fatal("expected tripped after first fault")
	}
	if reason == "" {
		t.Fatal("expected a non-empty reason")
	}

	second := &IntegrityFault{Reason: "second fault, should be ignored"}
	if err := g.Trip(ctx, second); err != nil {
		t.Fatalf("Trip (second): %v", err)
	}
	_, reasonAfter := g.Tripped()
	if reasonAfter != reason {
		t.Fatalf("reason changed on second trip: got %q, want %q", reasonAfter, reason)
	}
}

func TestCrashGuardPersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	store := &fakeCrashMarkerStore{}
	g := NewCrashGuard(store)

	if err := g.Trip(ctx, &IntegrityFault{Reason: "boom"}); err != nil {
		t.Fatalf("Trip: %v", err)
	}
	if !store.marked {
		t.Fatal("expected the store to record a crash marker")
	}

	restarted := NewCrashGuard(store)
	if tripped, _ := restarted.Tripped(); tripped {
		t.Fatal("a fresh guard instance should not be tripped before Restore")
	}
	if err := restarted.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if tripped, _ := restarted.Tripped(); !tripped {
		t.Fatal("expected Restore to load the persisted crash marker")
	}
}

func TestCrashGuardResumeClearsLatch(t *testing.T) {
	ctx := context.Background()
	store := &fakeCrashMarkerStore{}
	g := NewCrashGuard(store)

	if err := g.Trip(ctx, &IntegrityFault{Reason: "boom"}); err != nil {
		t.Fatalf("Trip: %v", err)
	}
	if err := g.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if tripped, _ := g.Tripped(); tripped {
		t.Fatal("expected Resume to clear the latch")
	}
	if store.marked {
		t.Fatal("expected Resume to clear the persisted marker too")
	}

	restarted := NewCrashGuard(store)
	if err := restarted.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if tripped, _ := restarted.Tripped(); tripped {
		t.Fatal("a resumed guard should stay clear across a restart")
	}
}

func TestIntegrityFaultUnwrap(t *testing.T) {
	cause := errors.New("underlying corruption")
	fault := &IntegrityFault{Reason: "tree invariant broken", Cause: cause}

	if !errors.Is(fault, cause) {
		t.Fatal("expected errors.Is to see through IntegrityFault.Unwrap")
	}
	if got := fault.Error(); got == "" {
		t.Fatal("expected a non-empty error string")
	}
}
