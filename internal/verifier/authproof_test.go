package verifier

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/ccoin/shieldpool/pkg/types"
)

// setupSpendCircuit compiles spendCircuit and runs a trusted setup once for
// the test file, returning the keys GnarkAuthProofVerifier normally keeps
// split across compile time (pk stays with the prover, vk with the
// verifier) — the test needs both to mint a real proof and check it.
func setupSpendCircuit(t *testing.T) (groth16.ProvingKey, *GnarkAuthProofVerifier) {
	t.Helper()

	circuit := &spendCircuit{}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return pk, &GnarkAuthProofVerifier{vk: vk, compiled: true}
}

// proveStatement mints a real Groth16 proof satisfying spendCircuit for the
// given statement, using arbitrary (but constraint-satisfying) private
// inputs, and returns it marshalled the way VerifyAuthProof expects: just
// the proof bytes, nothing else appended.
func proveStatement(t *testing.T, pk groth16.ProvingKey, statement AuthStatement) []byte {
	t.Helper()

	assignment := statementAssignment(statement)
	assignment.SpendingKey = big.NewInt(1)
	assignment.Blinding = big.NewInt(1)

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &spendCircuit{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("witness: %v", err)
	}
	proof, err := groth16.Prove(ccs, pk, fullWitness)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	return proof.MarshalBinary()
}

func TestGnarkAuthProofVerifierAcceptsMatchingStatement(t *testing.T) {
	pk, v := setupSpendCircuit(t)

	statement := AuthStatement{
		Root:       fill32(0x11),
		Nullifier:  fill32(0x22),
		ExtraBytes: []byte("recipient-addr|value=100"),
	}
	proof := proveStatement(t, pk, statement)

	ok, err := v.VerifyAuthProof(statement, proof)
	if err != nil {
		t.Fatalf("VerifyAuthProof: %v", err)
	}
	if !ok {
		t.Fatal("expected a proof minted for this exact statement to verify")
	}
}

func TestGnarkAuthProofVerifierRejectsReplayedProofAgainstDifferentStatement(t *testing.T) {
	pk, v := setupSpendCircuit(t)

	original := AuthStatement{
		Root:       fill32(0x11),
		Nullifier:  fill32(0x22),
		ExtraBytes: []byte("recipient-addr|value=100"),
	}
	proof := proveStatement(t, pk, original)

	differentNullifier := AuthStatement{
		Root:       original.Root,
		Nullifier:  fill32(0x33),
		ExtraBytes: original.ExtraBytes,
	}
	if ok, _ := v.VerifyAuthProof(differentNullifier, proof); ok {
		t.Fatal("replaying a proof against a different nullifier must not verify")
	}

	differentRoot := AuthStatement{
		Root:       fill32(0x99),
		Nullifier:  original.Nullifier,
		ExtraBytes: original.ExtraBytes,
	}
	if ok, _ := v.VerifyAuthProof(differentRoot, proof); ok {
		t.Fatal("replaying a proof against a different root must not verify")
	}

	differentExtra := AuthStatement{
		Root:       original.Root,
		Nullifier:  original.Nullifier,
		ExtraBytes: []byte("attacker-addr|value=999999"),
	}
	if ok, _ := v.VerifyAuthProof(differentExtra, proof); ok {
		t.Fatal("replaying a proof against different extra-bound payout terms must not verify")
	}

	// The original statement must still verify against the same proof bytes.
	ok, err := v.VerifyAuthProof(original, proof)
	if err != nil {
		t.Fatalf("VerifyAuthProof: %v", err)
	}
	if !ok {
		t.Fatal("the untouched original statement should still verify")
	}
}
