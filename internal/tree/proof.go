package tree

import (
	"context"

	"github.com/ccoin/shieldpool/pkg/types"
)

// Proof returns the membership proof for the leaf at position (spec §4.5
// Proof): exactly Depth() sibling digests, real node if present, zero
// subtree otherwise.
func (t *CommitmentTree) Proof(ctx context.Context, position uint64) (*types.MembershipProof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if position >= t.size {
		return nil, ErrInvalidPosition
	}

	siblings := make([]types.Hash, t.depth)
	idx := position
	for level := 0; level < t.depth; level++ {
		siblingIdx := idx ^ 1
		sibling, err := t.store.GetNode(ctx, uint64(level), siblingIdx)
		if err != nil {
			sibling = t.zero[level]
		}
		siblings[level] = sibling
		idx /= 2
	}

	return &types.MembershipProof{
		LeafPosition:    position,
		Siblings:        siblings,
		RootAtProofTime: t.root,
	}, nil
}

// VerifyProof recomputes the leaf hash for commitment and folds it with
// proof's siblings, checking the result against expectedRoot (spec §4.5
// Verify). The ordering rule is LSB-first: bit k of LeafPosition selects
// which side the running hash is on at level k — 0 keeps it on the left,
// 1 moves it to the right. This must match Insert's convention exactly.
func VerifyProof(commitment types.Hash, proof *types.MembershipProof, expectedRoot types.Hash) bool {
	if proof == nil || len(proof.Siblings) == 0 {
		return false
	}

	current := leafHash(commitment)
	idx := proof.LeafPosition
	for _, sibling := range proof.Siblings {
		if idx&1 == 0 {
			current = nodeHash(current, sibling)
		} else {
			current = nodeHash(sibling, current)
		}
		idx >>= 1
	}

	return current == expectedRoot
}
