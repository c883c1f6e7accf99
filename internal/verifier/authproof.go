package verifier

import (
	"errors"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/ccoin/shieldpool/internal/hashing"
	"github.com/ccoin/shieldpool/pkg/types"
)

// ErrAuthCircuitNotReady mirrors the teacher's ErrCircuitNotCompiled: the
// skeleton circuit hasn't been set up yet.
var ErrAuthCircuitNotReady = errors.New("verifier: auth circuit not ready")

// AuthProofVerifier checks a SpendInput's opaque auth_proof against the
// public statement it must attest to (spec §3, §9 Open Question "signature
// primitive is unspecified"). The verifier package treats auth_proof as
// fully opaque bytes and never inspects its internal structure — it only
// calls this collaborator. Resolved Open Question: keep auth_proof opaque
// rather than fixing a specific circuit shape, since the spec deliberately
// leaves the membership/spend-authority proof system unspecified.
type AuthProofVerifier interface {
	VerifyAuthProof(statement AuthStatement, proof []byte) (bool, error)
}

// AuthStatement is the public input an auth proof attests to: that the
// caller knows a secret binding nullifier to root under pool rules, without
// revealing which leaf or secret.
type AuthStatement struct {
	Root       types.Hash
	Nullifier  types.Hash
	ExtraBytes []byte // e.g. recipient address, fee, bound into the statement
}

// spendCircuit is a Groth16 skeleton shaped like the teacher's
// TransactionCircuit (internal/zkp/circuits.go): public root/nullifier,
// private spending key and blinding, with a placeholder sum constraint. It
// exists so GnarkAuthProofVerifier has something real to compile and run
// against in tests; it is not a production spend-authority circuit — the
// spec deliberately leaves that circuit's shape as an external collaborator
// (see AuthProofVerifier's doc comment).
type spendCircuit struct {
	Root      frontend.Variable `gnark:",public"`
	Nullifier frontend.Variable `gnark:",public"`
	ExtraHash frontend.Variable `gnark:",public"`

	SpendingKey frontend.Variable
	Blinding    frontend.Variable
}

func (c *spendCircuit) Define(api frontend.API) error {
	bound := api.Add(c.SpendingKey, c.Blinding)
	bound = api.Add(bound, c.ExtraHash)
	api.AssertIsDifferent(bound, 0)
	return nil
}

// statementAssignment builds the spendCircuit assignment a statement's
// public inputs map to: Root and Nullifier reduced directly (both are
// already-canonical field hasher outputs), and ExtraBytes folded in as a
// single domain-tagged field hash so recipient/value/output bindings
// (spec §4.7/§8) can't be swapped out from under a proof without changing
// ExtraHash. SpendingKey/Blinding are left nil — callers that only need the
// public witness never populate them.
func statementAssignment(statement AuthStatement) *spendCircuit {
	extraHash := hashing.FieldHasher{}.HashField(hashing.DomainAuthBinding, hashing.ReduceBytesLE(statement.ExtraBytes))

	return &spendCircuit{
		Root:      new(big.Int).SetBytes(hashing.HashFieldOfHash(statement.Root).Bytes()),
		Nullifier: new(big.Int).SetBytes(hashing.HashFieldOfHash(statement.Nullifier).Bytes()),
		ExtraHash: new(big.Int).SetBytes(extraHash[:]),
	}
}

// GnarkAuthProofVerifier is a Groth16-backed AuthProofVerifier over BN254,
// grounded on the teacher's CircuitManager (compile once, keep proving/
// verifying keys, verify by unmarshalling proof bytes). Only the verifying
// half is exercised by the verifier package; proving lives with the wallet
// that builds transactions, outside this module's scope.
type GnarkAuthProofVerifier struct {
	mu       sync.RWMutex
	vk       groth16.VerifyingKey
	compiled bool
}

// NewGnarkAuthProofVerifier compiles the skeleton circuit and derives a
// verifying key. Call once at pool genesis.
func NewGnarkAuthProofVerifier() (*GnarkAuthProofVerifier, error) {
	circuit := &spendCircuit{}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, err
	}
	_, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, err
	}
	return &GnarkAuthProofVerifier{vk: vk, compiled: true}, nil
}

// VerifyAuthProof implements AuthProofVerifier. proof is expected to be
// exactly a Groth16 proof marshalled with gnark's binary encoding — nothing
// else. The public witness it is checked against is never taken from proof;
// it is rebuilt here from statement (root, nullifier, extra bytes) via
// statementAssignment, so a proof only verifies against the exact statement
// the caller is asking about, never against whatever public values happen to
// accompany it on the wire.
func (v *GnarkAuthProofVerifier) VerifyAuthProof(statement AuthStatement, proof []byte) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.compiled {
		return false, ErrAuthCircuitNotReady
	}

	p := groth16.NewProof(ecc.BN254)
	if err := p.UnmarshalBinary(proof); err != nil {
		return false, nil
	}

	publicWitness, err := frontend.NewWitness(statementAssignment(statement), ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, err
	}

	if err := groth16.Verify(p, v.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}
