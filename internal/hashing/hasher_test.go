package hashing

import "testing"

func TestFastHasherDeterministic(t *testing.T) {
	var fh FastHasher
	a := fh.HashBytes(DomainNote, []byte("hello"), []byte("world"))
	b := fh.HashBytes(DomainNote, []byte("hello"), []byte("world"))
	if a != b {
		t.Fatalf("expected deterministic hash, got %s != %s", a, b)
	}
}

func TestFastHasherDomainSeparation(t *testing.T) {
	var fh FastHasher
	a := fh.HashBytes(DomainNote, []byte("x"))
	b := fh.HashBytes(DomainECIES, []byte("x"))
	if a == b {
		t.Fatalf("expected different domains to produce different hashes")
	}
}

func TestFieldHasherDeterministic(t *testing.T) {
	var fh FieldHasher
	e1 := ReduceUint64(42)
	e2 := ReduceBytesLE([]byte{1, 2, 3})

	a := fh.HashField(DomainCommit, e1, e2)
	b := fh.HashField(DomainCommit, e1, e2)
	if a != b {
		t.Fatalf("expected deterministic field hash, got %s != %s", a, b)
	}
}

func TestFieldHasherSensitiveToInputs(t *testing.T) {
	var fh FieldHasher
	a := fh.HashField(DomainNullifier, ReduceUint64(1), ReduceUint64(0))
	b := fh.HashField(DomainNullifier, ReduceUint64(1), ReduceUint64(1))
	if a == b {
		t.Fatalf("expected different leaf indices to produce different hashes")
	}
}

func TestReduceBytesLECanonical(t *testing.T) {
	e1 := ReduceBytesLE([]byte{0x01, 0x02, 0x03})
	e2 := ReduceBytesLE([]byte{0x01, 0x02, 0x03})
	if string(e1.Bytes()) != string(e2.Bytes()) {
		t.Fatalf("expected canonical reduction to be stable")
	}
}
