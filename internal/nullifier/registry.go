package nullifier

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"

	"github.com/ccoin/shieldpool/pkg/types"
)

// ErrAlreadySpent is returned when a nullifier is inserted twice.
var ErrAlreadySpent = errors.New("nullifier: already spent")

// Store is the persistence collaborator for the registry (spec §4.6: "the
// concrete container is free to be a hash set, a sparse Merkle tree, or the
// host ledger's set"). Grounded on the teacher's NullifierStore interface in
// internal/zkp/nullifier.go.
type Store interface {
	Has(ctx context.Context, n types.Hash) (bool, error)
	Insert(ctx context.Context, n types.Hash) error
}

// Registry tracks spent nullifiers for double-spend prevention. It is
// append-only: nullifiers are never removed (spec §4.6 "Monotonic
// (insert-only)").
type Registry struct {
	mu     sync.RWMutex
	store  Store
	digest types.Hash // incremental chain over insertion order
}

// NewRegistry wraps store in a Registry.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Contains reports whether n has already been spent. O(1) given the store's
// own lookup cost.
func (r *Registry) Contains(ctx context.Context, n types.Hash) (bool, error) {
	return r.store.Has(ctx, n)
}

// Insert marks n as spent. Returns ErrAlreadySpent if n is already present;
// the caller (internal/verifier) is responsible for rejecting the
// transaction in that case rather than treating it as a storage error.
func (r *Registry) Insert(ctx context.Context, n types.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	spent, err := r.store.Has(ctx, n)
	if err != nil {
		return err
	}
	if spent {
		return ErrAlreadySpent
	}

	if err := r.store.Insert(ctx, n); err != nil {
		return err
	}
	r.digest = chainDigest(r.digest, n)
	return nil
}

// Digest returns the registry's running commitment to everything inserted so
// far, exposed by the pool-state snapshot (spec §3 "the digest form allows
// running the verifier inside a proof system without the full set").
func (r *Registry) Digest() types.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.digest
}

// chainDigest folds n into prev. This bookkeeping hash is not part of the
// commitment/nullifier/Merkle domain-separated primitive set (spec §4.1) —
// it never enters a circuit, so a plain SHA-256 chain is sufficient.
func chainDigest(prev, n types.Hash) types.Hash {
	h := sha256.New()
	h.Write(prev[:])
	h.Write(n[:])
	return types.HashFromBytes(h.Sum(nil))
}

// InMemoryStore is a map-backed Store, used by tests and by a relayer
// running without a database. Grounded on the teacher's
// InMemoryNullifierStore.
type InMemoryStore struct {
	mu sync.RWMutex
	m  map[types.Hash]struct{}
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{m: make(map[types.Hash]struct{})}
}

// Has implements Store.
func (s *InMemoryStore) Has(_ context.Context, n types.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[n]
	return ok, nil
}

// Insert implements Store.
func (s *InMemoryStore) Insert(_ context.Context, n types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[n] = struct{}{}
	return nil
}

// Size returns the number of nullifiers currently stored.
func (s *InMemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
