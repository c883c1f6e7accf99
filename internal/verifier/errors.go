package verifier

import "errors"

// Caller errors and policy rejections (spec §7 bands 1 and 2): surfaced with
// a stable error code, no state change. Recovery is local — reject the
// transaction, continue.
var (
	// ErrTreeFull is returned when a Deposit would push the commitment tree
	// past its fixed 2^depth capacity.
	ErrTreeFull = errors.New("verifier: tree full")

	// ErrDuplicateNullifier is returned when a Withdraw or Transfer reveals a
	// nullifier already present in the registry (spec §8 property 6).
	ErrDuplicateNullifier = errors.New("verifier: duplicate nullifier")

	// ErrStaleRoot is returned when a membership proof's RootAtProofTime does
	// not match the root the proof was checked against (spec §8 property 7).
	ErrStaleRoot = errors.New("verifier: stale root")

	// ErrBadMembershipProof is returned when a membership proof does not
	// carry exactly one sibling digest per tree level. The Merkle path itself
	// is not recomputed by the verifier (see checkSpend).
	ErrBadMembershipProof = errors.New("verifier: bad membership proof")

	// ErrBadAuthProof is returned when the opaque auth proof fails external
	// ZK verification.
	ErrBadAuthProof = errors.New("verifier: bad auth proof")

	// ErrValueConservationFailed is returned when a Withdraw's value exceeds
	// the pool's balance of its asset, or its fee exceeds its value.
	ErrValueConservationFailed = errors.New("verifier: value conservation failed")

	// ErrInvalidNote is returned when a Deposit's declared note fields don't
	// recompute to its declared commitment.
	ErrInvalidNote = errors.New("verifier: invalid note")

	// ErrVersionMismatch is returned when a transaction declares a pool
	// version other than the one it was built against.
	ErrVersionMismatch = errors.New("verifier: version mismatch")

	// ErrFeePolicyViolation is returned when a transaction's fee exceeds the
	// pool's genesis fee ceiling.
	ErrFeePolicyViolation = errors.New("verifier: fee policy violation")

	// ErrDuplicateCommitment is returned when a Transfer or Deposit declares
	// an output commitment already present in the tree at a different leaf
	// position than the one it would idempotently resolve to — the Tie-break
	// case from spec §4.7 where the "advertised position" (the leaf index
	// the transaction was built against) no longer matches the position the
	// tree would actually assign. Not one of the two labeled spec Open
	// Questions; a taxonomy completion needed to make that Tie-break
	// observable rather than silently accepted.
	ErrDuplicateCommitment = errors.New("verifier: commitment already present at a different position")

	// ErrMalformedTransaction is returned when a transaction's Kind doesn't
	// match its populated payload, or a required payload is nil.
	ErrMalformedTransaction = errors.New("verifier: malformed transaction")
)

// IntegrityFault is the fatal third band (spec §7 band 3): tree invariant
// broken, registry non-monotonic, or snapshot digest mismatch. Its presence
// indicates a bug or storage corruption, never a valid or adversarial input.
// Unlike the two bands above, an IntegrityFault latches the verifier: see
// crashguard.go.
type IntegrityFault struct {
	Reason string
	Cause  error
}

func (f *IntegrityFault) Error() string {
	if f.Cause != nil {
		return "verifier: integrity fault: " + f.Reason + ": " + f.Cause.Error()
	}
	return "verifier: integrity fault: " + f.Reason
}

func (f *IntegrityFault) Unwrap() error { return f.Cause }
