package tree

import (
	"context"
	"errors"
	"sync"

	"github.com/ccoin/shieldpool/pkg/types"
)

// ErrNodeNotFound is returned by a Store when a node has never been written;
// the tree falls back to the precomputed zero subtree at that level.
var ErrNodeNotFound = errors.New("tree: node not found")

// Store is the persistence collaborator for CommitmentTree. Grounded on the
// teacher's TreeStore interface in internal/zkp/merkle.go, extended with
// root-version tracking (spec §4.5 "Update root and increment root_version").
type Store interface {
	GetNode(ctx context.Context, level, index uint64) (types.Hash, error)
	SetNode(ctx context.Context, level, index uint64, hash types.Hash) error

	GetRoot(ctx context.Context) (types.Hash, error)
	SetRoot(ctx context.Context, root types.Hash) error

	GetSize(ctx context.Context) (uint64, error)
	SetSize(ctx context.Context, size uint64) error

	GetRootVersion(ctx context.Context) (uint64, error)
	SetRootVersion(ctx context.Context, version uint64) error
}

// InMemoryStore is a map-backed Store for tests and single-process relayers.
// Grounded on the teacher's InMemoryTreeStore.
type InMemoryStore struct {
	mu          sync.RWMutex
	nodes       map[uint64]map[uint64]types.Hash
	root        types.Hash
	size        uint64
	rootVersion uint64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nodes: make(map[uint64]map[uint64]types.Hash)}
}

func (s *InMemoryStore) GetNode(_ context.Context, level, index uint64) (types.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	levelMap, ok := s.nodes[level]
	if !ok {
		return types.EmptyHash, ErrNodeNotFound
	}
	h, ok := levelMap[index]
	if !ok {
		return types.EmptyHash, ErrNodeNotFound
	}
	return h, nil
}

func (s *InMemoryStore) SetNode(_ context.Context, level, index uint64, hash types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nodes[level] == nil {
		s.nodes[level] = make(map[uint64]types.Hash)
	}
	s.nodes[level][index] = hash
	return nil
}

func (s *InMemoryStore) GetRoot(_ context.Context) (types.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root, nil
}

func (s *InMemoryStore) SetRoot(_ context.Context, root types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	return nil
}

func (s *InMemoryStore) GetSize(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size, nil
}

func (s *InMemoryStore) SetSize(_ context.Context, size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
	return nil
}

func (s *InMemoryStore) GetRootVersion(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootVersion, nil
}

func (s *InMemoryStore) SetRootVersion(_ context.Context, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootVersion = version
	return nil
}
