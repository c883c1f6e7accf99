// Package relayer implements the relayer/indexer façade (spec §4.8): it
// bridges external deposit events into the commitment tree, serves
// membership proofs, and stores encrypted envelopes. Grounded on the
// teacher's internal/zkp/transaction.go ShieldedPool for the
// tree+nullifier-registry composition pattern, and on
// internal/mempool/mempool.go for the nullifier pre-check staging adapted
// into pending.go.
package relayer

import (
	"context"
	"errors"
	"sync"

	"github.com/ccoin/shieldpool/internal/envelope"
	"github.com/ccoin/shieldpool/internal/tree"
	"github.com/ccoin/shieldpool/pkg/types"
)

// ErrNotFound is returned when a proof or envelope cursor lookup has nothing
// to return, matching relayerstore.ErrNotFound.
var ErrNotFound = errors.New("relayer: not found")

// ErrNoVerifier is returned by SubmitTransaction when the relayer was built
// without a TransactionVerifier collaborator.
var ErrNoVerifier = errors.New("relayer: no verifier configured")

// EventStore is the subset of relayerstore.Store the relayer needs: the
// deposit-event idempotency log and the envelope append-log (spec §4.8).
// Declared here, rather than depending on relayerstore.Store directly, so a
// test or an alternate backend can satisfy it without pulling in pgx.
type EventStore interface {
	HasDepositEvent(ctx context.Context, key types.DepositEventKey) (bool, error)
	RecordDepositEvent(ctx context.Context, ev *types.DepositEvent, leafIndex uint64) error
	AppendEnvelope(ctx context.Context, wire []byte, anchorCommitment types.Hash) (int64, error)
	ListEnvelopesSince(ctx context.Context, after int64, limit int) ([][]byte, int64, error)
}

// TransactionVerifier is the subset of verifier.Verifier the relayer needs
// to run a submitted transaction's state transition. Declared here, rather
// than depending on the verifier package's concrete type, for the same
// reason as EventStore: a test can satisfy it without building a real
// Groth16 circuit.
type TransactionVerifier interface {
	Verify(ctx context.Context, old *types.PoolStateSnapshot, tx *types.Transaction) (*types.PoolStateSnapshot, error)
}

// Relayer implements the spec §4.8 façade operations.
type Relayer struct {
	// mu serializes Ingest against itself: spec §5 "the tree writer lock is
	// the only global lock", and §5's ingestion invariant ("MUST either
	// commit fully... or not at all") requires the event-store write and
	// the tree insert to appear atomic to any concurrent Ingest call.
	mu sync.Mutex

	Tree     *tree.CommitmentTree
	Store    EventStore
	Pending  *PendingSet
	Verifier TransactionVerifier
}

// New constructs a Relayer over tr and store. Verifier is left nil; set it
// directly (or via NewWithVerifier) before calling SubmitTransaction.
func New(tr *tree.CommitmentTree, store EventStore) *Relayer {
	return &Relayer{Tree: tr, Store: store, Pending: NewPendingSet()}
}

// NewWithVerifier constructs a Relayer that can also accept submitted
// transactions via SubmitTransaction.
func NewWithVerifier(tr *tree.CommitmentTree, store EventStore, v TransactionVerifier) *Relayer {
	r := New(tr, store)
	r.Verifier = v
	return r
}

// SubmitTransaction implements the relayer-side half of transaction
// submission (spec §4.8, mempool-shaped staging adapted from the teacher's
// internal/mempool/mempool.go nullifier index): tx's nullifiers are staged
// in Pending before Verifier ever runs, so a second transaction racing to
// spend the same nullifier is rejected here instead of wasting a verifier
// pass, and the claim is released once verification completes — whether it
// accepted or rejected tx.
func (r *Relayer) SubmitTransaction(ctx context.Context, old *types.PoolStateSnapshot, tx *types.Transaction) (*types.PoolStateSnapshot, error) {
	if r.Verifier == nil {
		return nil, ErrNoVerifier
	}

	nullifiers := tx.AllNullifiers()
	if len(nullifiers) > 0 {
		if err := r.Pending.Claim(nullifiers); err != nil {
			return nil, err
		}
		defer r.Pending.Release(nullifiers)
	}

	return r.Verifier.Verify(ctx, old, tx)
}

// Ingest implements spec §4.8 ingest(deposit_event) → leaf_index, idempotent
// on (tx_hash, log_index). Reingestion of the same event is a no-op: it
// returns the leaf index already assigned, without touching the tree again.
func (r *Relayer) Ingest(ctx context.Context, ev *types.DepositEvent) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ev.Key()
	already, err := r.Store.HasDepositEvent(ctx, key)
	if err != nil {
		return 0, err
	}
	if already {
		if idx, ok := r.Tree.IndexOf(ev.Commitment); ok {
			return idx, nil
		}
		return 0, ErrNotFound
	}

	leafIndex, err := r.Tree.Insert(ctx, ev.Commitment)
	if err != nil {
		return 0, err
	}
	if err := r.Store.RecordDepositEvent(ctx, ev, leafIndex); err != nil {
		return 0, err
	}
	return leafIndex, nil
}

// GetRoot implements spec §4.8 get_root() → (root, version).
func (r *Relayer) GetRoot() (types.Hash, uint64) {
	return r.Tree.Root(), r.Tree.RootVersion()
}

// GetProof implements spec §4.8 get_proof(commitment) → membership_proof |
// NotFound.
func (r *Relayer) GetProof(ctx context.Context, commitment types.Hash) (*types.MembershipProof, error) {
	idx, ok := r.Tree.IndexOf(commitment)
	if !ok {
		return nil, ErrNotFound
	}
	return r.Tree.Proof(ctx, idx)
}

// GetEnvelopes implements spec §4.8 get_envelopes(cursor) → (envelopes,
// next_cursor).
func (r *Relayer) GetEnvelopes(ctx context.Context, cursor int64, limit int) ([]*types.Envelope, int64, error) {
	wires, next, err := r.Store.ListEnvelopesSince(ctx, cursor, limit)
	if err != nil {
		return nil, cursor, err
	}
	envs := make([]*types.Envelope, 0, len(wires))
	for _, w := range wires {
		e, err := envelope.Deserialize(w)
		if err != nil {
			return nil, cursor, err
		}
		envs = append(envs, e)
	}
	return envs, next, nil
}

// AttachEnvelope implements spec §4.8 attach_envelope(envelope,
// deposit_event_ref), associating an off-chain envelope with an already-
// ingested on-chain commitment. It rejects an envelope referencing a deposit
// event that was never ingested, per the §4.8 invariant that an envelope is
// only ever indexed alongside a committed deposit.
func (r *Relayer) AttachEnvelope(ctx context.Context, env *types.Envelope, depositRef types.DepositEventKey) (int64, error) {
	exists, err := r.Store.HasDepositEvent(ctx, depositRef)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}
	return r.Store.AppendEnvelope(ctx, envelope.Serialize(env), env.AnchorCommitment)
}
