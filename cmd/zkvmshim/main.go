// zkvmshim is the zkVM entrypoint adapter (spec §4.9): a thin, side-effect-
// free wrapper that reads a serialized (state_snapshot, txn) pair from
// stdin, runs the verifier, and writes a fixed-shape output record to
// stdout. The host (the zkVM guest runtime) supplies the input tape and
// reads the output tape; apart from diagnostics on stderr, this binary has
// no other I/O.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/ccoin/shieldpool/internal/disclosure"
	"github.com/ccoin/shieldpool/internal/nullifier"
	"github.com/ccoin/shieldpool/internal/tree"
	"github.com/ccoin/shieldpool/internal/verifier"
	"github.com/ccoin/shieldpool/pkg/types"
)

const (
	exitAccepted  = 0
	exitRejected  = 1
	exitMalformed = 2
)

// parseInputBlob splits the shim's input tape into a snapshot and a
// transaction: snapshot_len(u32 LE) || snapshot_bytes || txn_bytes. Neither
// wire format is self-delimiting on its own (spec §6 gives the snapshot
// format; pkg/types/transaction.go gives the txn format), so the shim needs
// a length prefix to split the two out of one input blob.
func parseInputBlob(blob []byte) (*types.PoolStateSnapshot, *types.Transaction, error) {
	if len(blob) < 4 {
		return nil, nil, fmt.Errorf("zkvmshim: input too short for snapshot length prefix")
	}
	snapLen := binary.LittleEndian.Uint32(blob[:4])
	rest := blob[4:]
	if uint64(len(rest)) < uint64(snapLen) {
		return nil, nil, fmt.Errorf("zkvmshim: truncated snapshot")
	}

	snapshot, err := types.DeserializeSnapshot(rest[:snapLen])
	if err != nil {
		return nil, nil, fmt.Errorf("zkvmshim: bad snapshot: %w", err)
	}

	txn, err := types.DeserializeTransaction(rest[snapLen:])
	if err != nil {
		return nil, nil, fmt.Errorf("zkvmshim: bad transaction: %w", err)
	}
	return snapshot, txn, nil
}

// errCode assigns the stable numeric codes the output record's err_code
// field carries. 0 is reserved for acceptance; codes are otherwise ordered
// to match errors.go, with the fatal band folded into its own code since an
// IntegrityFault is never an expected outcome for a well-formed input.
func errCode(err error) uint32 {
	switch err {
	case nil:
		return 0
	case verifier.ErrTreeFull:
		return 1
	case verifier.ErrDuplicateNullifier:
		return 2
	case verifier.ErrStaleRoot:
		return 3
	case verifier.ErrBadMembershipProof:
		return 4
	case verifier.ErrBadAuthProof:
		return 5
	case verifier.ErrValueConservationFailed:
		return 6
	case verifier.ErrInvalidNote:
		return 7
	case verifier.ErrVersionMismatch:
		return 8
	case verifier.ErrFeePolicyViolation:
		return 9
	case verifier.ErrDuplicateCommitment:
		return 10
	case verifier.ErrMalformedTransaction:
		return 11
	case disclosure.ErrNotApproved:
		return 12
	case verifier.ErrHalted:
		return 13
	}
	if _, ok := err.(*verifier.IntegrityFault); ok {
		return 255
	}
	return 254
}

// txAsset returns the asset whose pool balance the output record reports.
// Deposits and withdrawals move exactly one asset; a transfer's value stays
// hidden behind its auth_proof, so there is no single asset to report and
// the native asset's balance (unaffected by the transfer) is returned
// instead — new_pool_balance is informational only for that case.
func txAsset(tx *types.Transaction) types.Address {
	switch tx.Kind {
	case types.TxDeposit:
		if tx.Deposit != nil {
			return tx.Deposit.Asset
		}
	case types.TxWithdraw:
		if tx.Withdraw != nil {
			return tx.Withdraw.Asset
		}
	}
	return types.EmptyAddress
}

// buildVerifier constructs a Verifier whose Tree and Registry are seeded
// from old's public fields rather than a persisted backing store. The
// version, fee-ceiling, within-transaction duplicate-nullifier, stale-root,
// auth-proof, balance and compliance-gate checks only consult old.Root,
// old.Balances and the transaction itself, so they behave as they would
// against the real pool. The nullifier registry and the tree's commitment
// index start empty: a nullifier spent by an earlier transaction is not
// reported as ErrDuplicateNullifier, and a commitment inserted before this
// snapshot is not reported as ErrDuplicateCommitment. Sibling lookups during
// a Deposit or Transfer-output Insert find no persisted node data and fall
// back to the tree's precomputed zero subtrees, so new_root is exact only
// when the pool is at genesis (old.RootVersion == 0). At genesis every field
// of the output record is exact; past genesis, accepted, err_code and
// new_root can differ from what the relayer daemon's persisted state would
// give. txn_hash is exact regardless.
func buildVerifier(ctx context.Context, old *types.PoolStateSnapshot, cfg *verifier.GenesisConfig, auth verifier.AuthProofVerifier) (*verifier.Verifier, error) {
	store := tree.NewInMemoryStore()
	if err := store.SetRoot(ctx, old.Root); err != nil {
		return nil, err
	}
	if err := store.SetSize(ctx, old.RootVersion); err != nil {
		return nil, err
	}
	if err := store.SetRootVersion(ctx, old.RootVersion); err != nil {
		return nil, err
	}

	tr := tree.New(store, cfg.TreeDepth)
	if err := tr.Initialize(ctx); err != nil {
		return nil, err
	}

	reg := nullifier.NewRegistry(nullifier.NewInMemoryStore())
	guard := verifier.NewCrashGuard(nil)

	return verifier.New(tr, reg, auth, disclosure.AllowAll{}, cfg, guard), nil
}

// writeOutput encodes the fixed-shape output record (spec §4.9):
// accepted(bool, 1 byte) || err_code(u32 LE) || new_root(32) ||
// new_pool_balance(u64 LE) || txn_hash(32).
func writeOutput(w io.Writer, accepted bool, code uint32, root types.Hash, balance uint64, txnHash types.Hash) error {
	buf := make([]byte, 0, 1+4+32+8+32)
	if accepted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	var codeLE [4]byte
	binary.LittleEndian.PutUint32(codeLE[:], code)
	buf = append(buf, codeLE[:]...)

	buf = append(buf, root[:]...)

	var balLE [8]byte
	binary.LittleEndian.PutUint64(balLE[:], balance)
	buf = append(buf, balLE[:]...)

	buf = append(buf, txnHash[:]...)

	_, err := w.Write(buf)
	return err
}

// hashTransaction returns the digest the output record's txn_hash field
// carries, computed over the transaction's own wire encoding so a caller
// can correlate the shim's verdict with the exact bytes it verified.
func hashTransaction(tx *types.Transaction) []byte {
	sum := sha256.Sum256(tx.Serialize())
	return sum[:]
}

// clampToUint64 saturates v to uint64's range rather than wrapping, so a
// balance that has grown past 2^64 (legitimate for a u128 protocol value)
// reports as "as large as this field can say" instead of a misleadingly
// small wrapped number.
func clampToUint64(v *big.Int) uint64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	if v.BitLen() > 64 {
		return ^uint64(0)
	}
	return v.Uint64()
}

func main() {
	treeDepth := flag.Int("tree-depth", 0, "commitment tree depth (0 uses the pool default)")
	feeCeiling := flag.Uint64("fee-ceiling", 0, "maximum fee a transaction may declare (0 uses the pool default)")
	flag.Parse()

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zkvmshim: read stdin: %v\n", err)
		os.Exit(exitMalformed)
	}

	old, txn, err := parseInputBlob(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(exitMalformed)
	}

	cfg := verifier.DefaultGenesisConfig()
	if *treeDepth > 0 {
		cfg.TreeDepth = *treeDepth
	}
	if *feeCeiling > 0 {
		cfg.FeeCeiling = *feeCeiling
	}

	auth, err := verifier.NewGnarkAuthProofVerifier()
	if err != nil {
		fmt.Fprintf(os.Stderr, "zkvmshim: auth circuit setup: %v\n", err)
		os.Exit(exitMalformed)
	}

	ctx := context.Background()
	v, err := buildVerifier(ctx, old, cfg, auth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zkvmshim: build verifier: %v\n", err)
		os.Exit(exitMalformed)
	}

	txnHash := types.HashFromBytes(hashTransaction(txn))

	next, verifyErr := v.Verify(ctx, old, txn)

	if verifyErr != nil {
		if err := writeOutput(os.Stdout, false, errCode(verifyErr), old.Root, clampToUint64(old.BalanceOf(txAsset(txn))), txnHash); err != nil {
			fmt.Fprintf(os.Stderr, "zkvmshim: write output: %v\n", err)
			os.Exit(exitMalformed)
		}
		os.Exit(exitRejected)
	}

	if err := writeOutput(os.Stdout, true, 0, next.Root, clampToUint64(next.BalanceOf(txAsset(txn))), txnHash); err != nil {
		fmt.Fprintf(os.Stderr, "zkvmshim: write output: %v\n", err)
		os.Exit(exitMalformed)
	}
	os.Exit(exitAccepted)
}
