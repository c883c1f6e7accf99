package note

import (
	"math/big"
	"testing"

	"github.com/ccoin/shieldpool/pkg/types"
)

func sampleNote() *types.Note {
	n := &types.Note{
		Version: types.NoteVersion,
		ChainID: 1,
		Value:   big.NewInt(1_000_000_000_000_000_000),
	}
	fill(n.OwnerEncKey[:], 0x02)
	fill(n.OwnerSpendKey[:], 0x11)
	fill(n.Secret[:], 0x22)
	fill(n.Blinding[:], 0x33)
	return n
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

func TestCommitmentDeterministic(t *testing.T) {
	n1 := sampleNote()
	n2 := sampleNote()

	if Commit(n1) != Commit(n2) {
		t.Fatalf("expected identical notes to produce identical commitments")
	}
}

func TestCommitmentChangesWithEachInput(t *testing.T) {
	base := Commit(sampleNote())

	withDifferentValue := sampleNote()
	withDifferentValue.Value = big.NewInt(2)
	if Commit(withDifferentValue) == base {
		t.Fatalf("expected changing value to change commitment")
	}

	withDifferentSecret := sampleNote()
	withDifferentSecret.Secret[0] ^= 0xff
	if Commit(withDifferentSecret) == base {
		t.Fatalf("expected changing secret to change commitment")
	}

	withDifferentBlinding := sampleNote()
	withDifferentBlinding.Blinding[0] ^= 0xff
	if Commit(withDifferentBlinding) == base {
		t.Fatalf("expected changing blinding to change commitment")
	}

	withDifferentAsset := sampleNote()
	withDifferentAsset.Asset[0] = 0x01
	if Commit(withDifferentAsset) == base {
		t.Fatalf("expected changing asset to change commitment")
	}

	withDifferentOwner := sampleNote()
	withDifferentOwner.OwnerEncKey[0] ^= 0xff
	if Commit(withDifferentOwner) == base {
		t.Fatalf("expected changing owner_enc_key to change commitment")
	}
}

func TestFinalizeRejectsZeroValue(t *testing.T) {
	n := sampleNote()
	n.Value = big.NewInt(0)
	if err := Finalize(n); err == nil {
		t.Fatalf("expected zero value to be rejected")
	}
}

func TestFinalizeRejectsZeroVersion(t *testing.T) {
	n := sampleNote()
	n.Version = 0
	if err := Finalize(n); err == nil {
		t.Fatalf("expected zero version to be rejected")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	n := sampleNote()
	if err := Finalize(n); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := Verify(n, n.Commitment); err != nil {
		t.Fatalf("verify: %v", err)
	}

	tampered := sampleNote()
	tampered.Secret[0] ^= 0xff
	if err := Verify(tampered, n.Commitment); err == nil {
		t.Fatalf("expected verify to fail against a tampered note")
	}
}
