package nullifier

import (
	"context"
	"testing"

	"github.com/ccoin/shieldpool/pkg/types"
)

func TestRegistryInsertAndContains(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewInMemoryStore())

	var n types.Hash
	fill(n[:], 0x01)

	ok, err := r.Contains(ctx, n)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if ok {
		t.Fatalf("expected fresh nullifier to be unspent")
	}

	if err := r.Insert(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}

	ok, err = r.Contains(ctx, n)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Fatalf("expected inserted nullifier to be spent")
	}
}

func TestRegistryRejectsDoubleInsert(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewInMemoryStore())

	var n types.Hash
	fill(n[:], 0x02)

	if err := r.Insert(ctx, n); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := r.Insert(ctx, n); err != ErrAlreadySpent {
		t.Fatalf("expected ErrAlreadySpent, got %v", err)
	}
}

func TestRegistryDigestChangesOnInsert(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewInMemoryStore())

	before := r.Digest()

	var n types.Hash
	fill(n[:], 0x03)
	if err := r.Insert(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}

	after := r.Digest()
	if before == after {
		t.Fatalf("expected digest to change after insert")
	}
}

func TestRegistryDigestIsOrderSensitive(t *testing.T) {
	ctx := context.Background()
	var a, b types.Hash
	fill(a[:], 0x0a)
	fill(b[:], 0x0b)

	r1 := NewRegistry(NewInMemoryStore())
	r1.Insert(ctx, a)
	r1.Insert(ctx, b)

	r2 := NewRegistry(NewInMemoryStore())
	r2.Insert(ctx, b)
	r2.Insert(ctx, a)

	if r1.Digest() == r2.Digest() {
		t.Fatalf("expected insertion order to affect the digest")
	}
}

func TestInMemoryStoreSize(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	var n types.Hash
	fill(n[:], 0x05)
	if err := s.Insert(ctx, n); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if s.Size() != 1 {
		t.Fatalf("expected size 1, got %d", s.Size())
	}
}
