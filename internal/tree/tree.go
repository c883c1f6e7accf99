// Package tree implements the fixed-depth, append-only commitment
// accumulator (spec §4.5). It is grounded on the teacher's
// internal/zkp/merkle.go CommitmentTree, adapted from a SHA-256 hashPair to
// the field hasher with DOM_LEAF_V1/DOM_NODE_V1 domain separation, and
// extended with root-version tracking and commitment-duplicate suppression.
package tree

import (
	"context"
	"errors"
	"sync"

	"github.com/ccoin/shieldpool/internal/hashing"
	"github.com/ccoin/shieldpool/pkg/types"
)

// DefaultDepth is used when a pool is created without an explicit depth.
const DefaultDepth = 32

var (
	// ErrTreeFull is returned when Insert is attempted on a tree already at
	// its 2^depth capacity.
	ErrTreeFull = errors.New("tree: full")

	// ErrInvalidPosition is returned when Proof is asked for a leaf position
	// beyond the tree's current size.
	ErrInvalidPosition = errors.New("tree: invalid leaf position")
)

var fieldHasher hashing.FieldHasher

// CommitmentTree is the append-only Merkle accumulator over note
// commitments. Its depth is fixed at construction (spec §4.5 "Parameters:
// depth d chosen once at pool creation").
type CommitmentTree struct {
	mu sync.RWMutex

	depth int
	store Store

	size        uint64
	root        types.Hash
	rootVersion uint64

	zero []types.Hash // zero[k]: the value of an empty subtree of height k

	indexByCommitment map[types.Hash]uint64
}

// New constructs a CommitmentTree of the given depth backed by store. If
// depth is 0, DefaultDepth is used.
func New(store Store, depth int) *CommitmentTree {
	if depth == 0 {
		depth = DefaultDepth
	}
	zero := precomputeZeroSubtrees(depth)
	return &CommitmentTree{
		depth:             depth,
		store:             store,
		zero:              zero,
		root:              zero[depth],
		indexByCommitment: make(map[types.Hash]uint64),
	}
}

// precomputeZeroSubtrees derives the empty-subtree digests once, per spec
// §4.5: "zero[0] = field_hash(DOM_LEAF_V1, 0); zero[k+1] =
// field_hash(DOM_NODE_V1, zero[k], zero[k]). Precomputed once; never
// re-derived at query time."
func precomputeZeroSubtrees(depth int) []types.Hash {
	zero := make([]types.Hash, depth+1)
	zero[0] = fieldHasher.HashField(hashing.DomainLeaf, hashing.ReduceUint64(0))
	for k := 1; k <= depth; k++ {
		prev := hashing.HashFieldOfHash(zero[k-1])
		zero[k] = fieldHasher.HashField(hashing.DomainNode, prev, prev)
	}
	return zero
}

// Initialize loads persisted root/size/version from the store, for a tree
// resuming from a non-empty backing store.
func (t *CommitmentTree) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if root, err := t.store.GetRoot(ctx); err == nil {
		t.root = root
	}
	if size, err := t.store.GetSize(ctx); err == nil {
		t.size = size
	}
	if version, err := t.store.GetRootVersion(ctx); err == nil {
		t.rootVersion = version
	}
	return nil
}

// leafHash wraps a commitment for insertion at level 0 (spec §4.5: "Leaf
// wrapping leaf_hash = field_hash(DOM_LEAF_V1, commitment) to prevent
// second-preimage between leaf values and internal nodes").
func leafHash(commitment types.Hash) types.Hash {
	return fieldHasher.HashField(hashing.DomainLeaf, hashing.HashFieldOfHash(commitment))
}

// nodeHash combines a left and right child (spec §4.5: "node =
// field_hash(DOM_NODE_V1, left, right)").
func nodeHash(left, right types.Hash) types.Hash {
	return fieldHasher.HashField(hashing.DomainNode, hashing.HashFieldOfHash(left), hashing.HashFieldOfHash(right))
}

// Insert appends commitment to the tree and returns its leaf index (spec
// §4.5 Insert). Re-inserting a commitment already present is idempotent and
// returns the existing index rather than an error.
func (t *CommitmentTree) Insert(ctx context.Context, commitment types.Hash) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if idx, ok := t.indexByCommitment[commitment]; ok {
		return idx, nil
	}

	maxLeaves := uint64(1) << uint(t.depth)
	if t.size >= maxLeaves {
		return 0, ErrTreeFull
	}

	position := t.size
	leaf := leafHash(commitment)
	if err := t.store.SetNode(ctx, 0, position, leaf); err != nil {
		return 0, err
	}

	current := leaf
	idx := position
	for level := 0; level < t.depth; level++ {
		siblingIdx := idx ^ 1
		sibling, err := t.store.GetNode(ctx, uint64(level), siblingIdx)
		if err != nil {
			sibling = t.zero[level]
		}

		if idx%2 == 0 {
			current = nodeHash(current, sibling)
		} else {
			current = nodeHash(sibling, current)
		}

		idx /= 2
		if err := t.store.SetNode(ctx, uint64(level+1), idx, current); err != nil {
			return 0, err
		}
	}

	t.size++
	t.root = current
	t.rootVersion++
	t.indexByCommitment[commitment] = position

	if err := t.store.SetRoot(ctx, t.root); err != nil {
		return 0, err
	}
	if err := t.store.SetSize(ctx, t.size); err != nil {
		return 0, err
	}
	if err := t.store.SetRootVersion(ctx, t.rootVersion); err != nil {
		return 0, err
	}

	return position, nil
}

// Root returns the tree's current root.
func (t *CommitmentTree) Root() types.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// RootVersion returns the number of inserts the tree has ever accepted.
func (t *CommitmentTree) RootVersion() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootVersion
}

// Size returns the current leaf count.
func (t *CommitmentTree) Size() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Depth returns the tree's fixed depth.
func (t *CommitmentTree) Depth() int {
	return t.depth
}

// IndexOf returns the leaf position of commitment, if present.
func (t *CommitmentTree) IndexOf(commitment types.Hash) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.indexByCommitment[commitment]
	return idx, ok
}
