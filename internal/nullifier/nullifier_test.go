package nullifier

import "testing"

func TestDeriveDeterministic(t *testing.T) {
	var secret [32]byte
	fill(secret[:], 0x42)

	a := Derive(secret, 7)
	b := Derive(secret, 7)
	if a != b {
		t.Fatalf("expected deterministic derivation")
	}
}

func TestDeriveBindsLeafIndex(t *testing.T) {
	var secret [32]byte
	fill(secret[:], 0x42)

	a := Derive(secret, 7)
	b := Derive(secret, 8)
	if a == b {
		t.Fatalf("expected different leaf indices to produce different nullifiers")
	}
}

func TestDeriveBindsSecret(t *testing.T) {
	var s1, s2 [32]byte
	fill(s1[:], 0x01)
	fill(s2[:], 0x02)

	if Derive(s1, 0) == Derive(s2, 0) {
		t.Fatalf("expected different secrets to produce different nullifiers")
	}
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
