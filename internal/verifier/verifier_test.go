package verifier

import (
	"context"
	"math/big"
	"testing"

	"github.com/ccoin/shieldpool/internal/disclosure"
	"github.com/ccoin/shieldpool/internal/note"
	"github.com/ccoin/shieldpool/internal/nullifier"
	"github.com/ccoin/shieldpool/internal/tree"
	"github.com/ccoin/shieldpool/pkg/types"
)

// fakeAuth is a scriptable AuthProofVerifier stand-in: the real
// GnarkAuthProofVerifier is exercised directly by authproof_test.go, but
// verifier_test.go only needs to control whether a spend
// "proves", not run an actual BN254 Groth16 circuit per test case.
type fakeAuth struct {
	ok  bool
	err error
}

func (f fakeAuth) VerifyAuthProof(AuthStatement, []byte) (bool, error) {
	return f.ok, f.err
}

func newHarness(t *testing.T, auth AuthProofVerifier, approved disclosure.ApprovedSetChecker) (*Verifier, *tree.CommitmentTree) {
	t.Helper()
	tr := tree.New(tree.NewInMemoryStore(), 4)
	reg := nullifier.NewRegistry(nullifier.NewInMemoryStore())
	cfg := &GenesisConfig{Version: 1, TreeDepth: 4, FeeCeiling: 1000, MaxEnvelopeSize: 4096}
	return New(tr, reg, auth, approved, cfg, nil), tr
}

func fill32(v byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = v
	}
	return out
}

func fillEncKey(v byte) types.EncKey {
	var out types.EncKey
	for i := range out {
		out[i] = v
	}
	return out
}

func fillHash(v byte) types.Hash {
	var out types.Hash
	for i := range out {
		out[i] = v
	}
	return out
}

// sampleDeposit builds a DepositData whose Commitment is a genuine
// recomputation of its declared fields, as verifyDeposit requires.
func sampleDeposit(value int64, assetByte byte) *types.DepositData {
	asset := types.Address{}
	asset[0] = assetByte

	d := &types.DepositData{
		Asset:           asset,
		Value:           big.NewInt(value),
		RecipientEncKey: fillEncKey(0x11),
		Secret:          fill32(0x22),
		Blinding:        fill32(0x33),
	}
	n := &types.Note{
		Version:     types.NoteVersion,
		Asset:       d.Asset,
		Value:       d.Value,
		OwnerEncKey: d.RecipientEncKey,
		Secret:      d.Secret,
		Blinding:    d.Blinding,
	}
	d.Commitment = note.Commit(n)
	return d
}

func genesisSnapshot(tr *tree.CommitmentTree) *types.PoolStateSnapshot {
	return types.NewPoolStateSnapshot(tr.Root())
}

func depositTx(d *types.DepositData) *types.Transaction {
	return &types.Transaction{Kind: types.TxDeposit, Version: 1, Deposit: d}
}

func TestVerifyDepositAccepted(t *testing.T) {
	ctx := context.Background()
	v, tr := newHarness(t, fakeAuth{ok: true}, nil)
	old := genesisSnapshot(tr)
	d := sampleDeposit(100, 0x01)

	next, err := v.Verify(ctx, old, depositTx(d))
	if err != nil {
		t.Fatalf("expected deposit to be accepted, got %v", err)
	}
	if next.RootVersion != 1 {
		t.Fatalf("expected root version 1, got %d", next.RootVersion)
	}
	if next.BalanceOf(d.Asset).Cmp(d.Value) != 0 {
		t.Fatalf("expected pool balance to reflect the deposit")
	}
	if next.Root == old.Root {
		t.Fatalf("expected root to change after a deposit")
	}
}

func TestVerifyDepositRejectsBadCommitment(t *testing.T) {
	ctx := context.Background()
	v, tr := newHarness(t, fakeAuth{ok: true}, nil)
	old := genesisSnapshot(tr)

	d := sampleDeposit(100, 0x01)
	d.Commitment = fillHash(0xff) // tamper: no longer matches the declared fields

	if _, err := v.Verify(ctx, old, depositTx(d)); err != ErrInvalidNote {
		t.Fatalf("expected ErrInvalidNote, got %v", err)
	}
}

func TestVerifyDepositRejectsDuplicateCommitment(t *testing.T) {
	ctx := context.Background()
	v, tr := newHarness(t, fakeAuth{ok: true}, nil)
	old := genesisSnapshot(tr)
	d := sampleDeposit(100, 0x01)

	next, err := v.Verify(ctx, old, depositTx(d))
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}

	// Re-submitting the identical deposit against the advanced snapshot:
	// the commitment is already in the tree at a position strictly less
	// than next.RootVersion, so the advertised-position requirement can
	// never hold (spec §4.7 Tie-breaks).
	if _, err := v.Verify(ctx, next, depositTx(d)); err != ErrDuplicateCommitment {
		t.Fatalf("expected ErrDuplicateCommitment, got %v", err)
	}
	_ = tr
}

func TestVerifyDepositRejectsTreeFull(t *testing.T) {
	ctx := context.Background()
	tr := tree.New(tree.NewInMemoryStore(), 2) // capacity 4
	reg := nullifier.NewRegistry(nullifier.NewInMemoryStore())
	cfg := &GenesisConfig{Version: 1, TreeDepth: 2, FeeCeiling: 1000}
	v := New(tr, reg, fakeAuth{ok: true}, nil, cfg, nil)

	state := genesisSnapshot(tr)
	for i := byte(0); i < 4; i++ {
		d := sampleDeposit(1, i+1)
		next, err := v.Verify(ctx, state, depositTx(d))
		if err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
		state = next
	}

	d := sampleDeposit(1, 0xfe)
	if _, err := v.Verify(ctx, state, depositTx(d)); err != ErrTreeFull {
		t.Fatalf("expected ErrTreeFull, got %v", err)
	}
}

// withdrawSetup deposits one note and returns a harness plus a Withdraw
// transaction shaped to pass the verifier's structural membership check: a
// proof captured against the post-deposit root, regardless of which
// commitment it nominally covers, since the verifier never recomputes the
// Merkle path itself for a spend (that binding lives inside auth_proof).
func withdrawSetup(t *testing.T, auth AuthProofVerifier, approved disclosure.ApprovedSetChecker, value int64) (*Verifier, *types.PoolStateSnapshot, *types.Transaction) {
	t.Helper()
	ctx := context.Background()
	v, tr := newHarness(t, auth, approved)
	genesis := genesisSnapshot(tr)

	d := sampleDeposit(value, 0x01)
	afterDeposit, err := v.Verify(ctx, genesis, depositTx(d))
	if err != nil {
		t.Fatalf("setup deposit: %v", err)
	}

	proof, err := tr.Proof(ctx, 0)
	if err != nil {
		t.Fatalf("setup proof: %v", err)
	}

	w := &types.WithdrawData{
		Nullifier:       fillHash(0x77),
		MembershipProof: *proof,
		AuthProof:       []byte("proof"),
		RecipientAddr:   types.Address{0x09},
		Value:           big.NewInt(40),
		Asset:           d.Asset,
	}
	tx := &types.Transaction{Kind: types.TxWithdraw, Version: 1, Fee: 5, Withdraw: w}
	return v, afterDeposit, tx
}

func TestVerifyWithdrawAccepted(t *testing.T) {
	ctx := context.Background()
	v, state, tx := withdrawSetup(t, fakeAuth{ok: true}, nil, 100)

	next, err := v.Verify(ctx, state, tx)
	if err != nil {
		t.Fatalf("expected withdraw to be accepted, got %v", err)
	}
	want := new(big.Int).Sub(big.NewInt(100), big.NewInt(40))
	if next.BalanceOf(tx.Withdraw.Asset).Cmp(want) != 0 {
		t.Fatalf("expected pool balance to decrease by the withdrawn value")
	}
	if next.NullifierSetDigest == state.NullifierSetDigest {
		t.Fatalf("expected the nullifier set digest to change")
	}
}

func TestVerifyWithdrawRejectsDoubleSpend(t *testing.T) {
	ctx := context.Background()
	v, state, tx := withdrawSetup(t, fakeAuth{ok: true}, nil, 100)

	next, err := v.Verify(ctx, state, tx)
	if err != nil {
		t.Fatalf("first withdraw: %v", err)
	}

	if _, err := v.Verify(ctx, next, tx); err != ErrDuplicateNullifier {
		t.Fatalf("expected ErrDuplicateNullifier on replay, got %v", err)
	}
}

func TestVerifyWithdrawRejectsStaleRoot(t *testing.T) {
	ctx := context.Background()
	v, state, tx := withdrawSetup(t, fakeAuth{ok: true}, nil, 100)

	// A second, unrelated deposit advances root_version; the withdraw's
	// membership proof was captured against the prior root and must now be
	// rejected (spec §8 property 7).
	extra := sampleDeposit(1, 0x02)
	advanced, err := v.Verify(ctx, state, depositTx(extra))
	if err != nil {
		t.Fatalf("advancing deposit: %v", err)
	}

	if _, err := v.Verify(ctx, advanced, tx); err != ErrStaleRoot {
		t.Fatalf("expected ErrStaleRoot, got %v", err)
	}
}

func TestVerifyWithdrawRejectsBadAuthProof(t *testing.T) {
	ctx := context.Background()
	v, state, tx := withdrawSetup(t, fakeAuth{ok: false}, nil, 100)

	if _, err := v.Verify(ctx, state, tx); err != ErrBadAuthProof {
		t.Fatalf("expected ErrBadAuthProof, got %v", err)
	}
}

func TestVerifyWithdrawRejectsInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	v, state, tx := withdrawSetup(t, fakeAuth{ok: true}, nil, 10) // pool only holds 10
	tx.Withdraw.Value = big.NewInt(40)

	if _, err := v.Verify(ctx, state, tx); err != ErrValueConservationFailed {
		t.Fatalf("expected ErrValueConservationFailed, got %v", err)
	}
}

func TestVerifyWithdrawRejectsUnapprovedRecipient(t *testing.T) {
	ctx := context.Background()
	approved := disclosure.NewStaticSet(nil) // nobody approved
	v, state, tx := withdrawSetup(t, fakeAuth{ok: true}, approved, 100)

	if _, err := v.Verify(ctx, state, tx); err != disclosure.ErrNotApproved {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}

	spent, err := v.Registry.Contains(ctx, tx.Withdraw.Nullifier)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if spent {
		t.Fatalf("a compliance rejection must not mark the nullifier spent")
	}
}

func TestVerifyTransferAccepted(t *testing.T) {
	ctx := context.Background()
	v, tr := newHarness(t, fakeAuth{ok: true}, nil)
	genesis := genesisSnapshot(tr)

	d := sampleDeposit(100, 0x01)
	afterDeposit, err := v.Verify(ctx, genesis, depositTx(d))
	if err != nil {
		t.Fatalf("setup deposit: %v", err)
	}

	proof, err := tr.Proof(ctx, 0)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}

	transferTx := &types.Transaction{
		Kind:    types.TxTransfer,
		Version: 1,
		Fee:     1,
		Transfer: &types.TransferData{
			Inputs: []types.SpendInput{
				{Nullifier: fillHash(0x55), MembershipProof: *proof, AuthProof: []byte("proof")},
			},
			Outputs: []types.Hash{fillHash(0x66), fillHash(0x67)},
		},
	}

	next, err := v.Verify(ctx, afterDeposit, transferTx)
	if err != nil {
		t.Fatalf("expected transfer to be accepted, got %v", err)
	}
	if next.RootVersion != afterDeposit.RootVersion+2 {
		t.Fatalf("expected root version to advance by the number of outputs")
	}
}

func TestVerifyTransferRejectsDuplicateInputNullifiers(t *testing.T) {
	ctx := context.Background()
	v, tr := newHarness(t, fakeAuth{ok: true}, nil)
	genesis := genesisSnapshot(tr)

	n := fillHash(0x99)
	transferTx := &types.Transaction{
		Kind:    types.TxTransfer,
		Version: 1,
		Transfer: &types.TransferData{
			Inputs: []types.SpendInput{
				{Nullifier: n, MembershipProof: types.MembershipProof{RootAtProofTime: genesis.Root, Siblings: make([]types.Hash, tr.Depth())}, AuthProof: []byte("proof")},
				{Nullifier: n, MembershipProof: types.MembershipProof{RootAtProofTime: genesis.Root, Siblings: make([]types.Hash, tr.Depth())}, AuthProof: []byte("proof")},
			},
			Outputs: []types.Hash{fillHash(0x11)},
		},
	}

	if _, err := v.Verify(ctx, genesis, transferTx); err != ErrDuplicateNullifier {
		t.Fatalf("expected ErrDuplicateNullifier, got %v", err)
	}
}

func TestVerifyRejectsVersionMismatch(t *testing.T) {
	ctx := context.Background()
	v, tr := newHarness(t, fakeAuth{ok: true}, nil)
	genesis := genesisSnapshot(tr)

	d := sampleDeposit(10, 0x01)
	tx := depositTx(d)
	tx.Version = 2

	if _, err := v.Verify(ctx, genesis, tx); err != ErrVersionMismatch {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestVerifyRejectsFeeOverCeiling(t *testing.T) {
	ctx := context.Background()
	v, state, tx := withdrawSetup(t, fakeAuth{ok: true}, nil, 100)
	tx.Fee = 10_000 // above the harness's FeeCeiling of 1000

	if _, err := v.Verify(ctx, state, tx); err != ErrFeePolicyViolation {
		t.Fatalf("expected ErrFeePolicyViolation, got %v", err)
	}
}

func TestVerifyRejectsWhenHalted(t *testing.T) {
	ctx := context.Background()
	v, tr := newHarness(t, fakeAuth{ok: true}, nil)
	genesis := genesisSnapshot(tr)

	if err := v.Guard.Trip(ctx, &IntegrityFault{Reason: "test-induced halt"}); err != nil {
		t.Fatalf("trip: %v", err)
	}

	d := sampleDeposit(10, 0x01)
	if _, err := v.Verify(ctx, genesis, depositTx(d)); err != ErrHalted {
		t.Fatalf("expected ErrHalted, got %v", err)
	}
}
