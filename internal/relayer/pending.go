package relayer

import (
	"errors"
	"sync"

	"github.com/ccoin/shieldpool/pkg/types"
)

// ErrAlreadyPending is returned when a transaction's nullifiers conflict
// with one already staged by another in-flight transaction.
var ErrAlreadyPending = errors.New("relayer: nullifier already pending")

// PendingSet stages the nullifiers of transactions the relayer has accepted
// for verification but not yet committed, so two conflicting transactions
// submitted concurrently are rejected before either reaches the verifier's
// write path. Grounded on the teacher's internal/mempool/mempool.go
// nullifier index map (Mempool.nullifiers), trimmed to the claim/release
// pair spec §4.8 actually needs — there is no fee-priority queue here,
// since the verifier (not the relayer) decides acceptance order.
type PendingSet struct {
	mu     sync.Mutex
	claims map[types.Hash]struct{}
}

// NewPendingSet returns an empty PendingSet.
func NewPendingSet() *PendingSet {
	return &PendingSet{claims: make(map[types.Hash]struct{})}
}

// Claim reserves every nullifier in nullifiers. Either all of them are free
// and all get claimed, or none are claimed — a transaction never holds a
// partial claim while waiting on a conflicting one to resolve.
func (p *PendingSet) Claim(nullifiers []types.Hash) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, n := range nullifiers {
		if _, ok := p.claims[n]; ok {
			return ErrAlreadyPending
		}
	}
	for _, n := range nullifiers {
		p.claims[n] = struct{}{}
	}
	return nil
}

// Release frees nullifiers after the verifier has committed or rejected the
// transaction that claimed them. Safe to call even if some nullifiers were
// never claimed.
func (p *PendingSet) Release(nullifiers []types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range nullifiers {
		delete(p.claims, n)
	}
}

// IsPending reports whether n is currently claimed by an in-flight
// transaction.
func (p *PendingSet) IsPending(n types.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.claims[n]
	return ok
}

// Size returns the number of nullifiers currently staged.
func (p *PendingSet) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.claims)
}
