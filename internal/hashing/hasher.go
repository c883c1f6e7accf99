package hashing

import (
	"crypto/sha256"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/ccoin/shieldpool/pkg/types"
)

// FieldElement is a canonical representative of the BN254 scalar field
// (spec §3 "Field element"). It is only ever produced by the Reduce* helpers
// and HashFieldOfHash, so a FieldElement is always already reduced — never
// silently re-reduced.
type FieldElement struct {
	inner fr.Element
}

// ReduceBytesLE performs the fixed little-endian reduction spec §4.2
// requires at the boundary between non-field inputs and the field hasher.
func ReduceBytesLE(b []byte) FieldElement {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	var e fr.Element
	e.SetBytes(be)
	return FieldElement{inner: e}
}

// ReduceUint64 reduces a u64 (e.g. a leaf index) into the scalar field.
func ReduceUint64(v uint64) FieldElement {
	var e fr.Element
	e.SetUint64(v)
	return FieldElement{inner: e}
}

// ReduceBigInt reduces an arbitrary non-negative integer (e.g. a u128 note
// value) into the scalar field.
func ReduceBigInt(v *big.Int) FieldElement {
	var e fr.Element
	e.SetBigInt(v)
	return FieldElement{inner: e}
}

// Bytes returns the canonical big-endian encoding of the field element.
func (f FieldElement) Bytes() []byte {
	b := f.inner.Bytes()
	return b[:]
}

// ByteHasher is the capability of hashing byte strings with a domain tag.
// Implemented by FastHasher.
type ByteHasher interface {
	HashBytes(domain Domain, parts ...[]byte) types.Hash
}

// ScalarHasher is the capability of hashing field elements with a domain
// tag, returning another field element (wrapped as a types.Hash). Implemented
// by FieldHasher.
type ScalarHasher interface {
	HashField(domain Domain, elems ...FieldElement) types.Hash
}

// FastHasher is the SHA-256-backed byte hasher: used for note-id, ECIES key
// derivation, envelope integrity, and any boundary that leaves the ZK
// circuit (spec §4.1).
type FastHasher struct{}

// HashBytes returns SHA256(domain || parts...).
func (FastHasher) HashBytes(domain Domain, parts ...[]byte) types.Hash {
	h := sha256.New()
	h.Write(domain.Bytes())
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// FieldHasher is the ZK-friendly field hasher: an MiMC sponge over the
// BN254 scalar field, used everywhere the value will be constrained inside a
// proof (commitments, nullifiers, Merkle nodes), per spec §4.1.
type FieldHasher struct{}

// HashField returns MiMC(domain || elems...) as a field element, already
// canonical because the MiMC sponge's output is itself a scalar-field
// element.
func (FieldHasher) HashField(domain Domain, elems ...FieldElement) types.Hash {
	h := mimc.NewMiMC()
	h.Write(domain.Bytes())
	for _, e := range elems {
		b := e.Bytes()
		h.Write(b[:])
	}
	return types.HashFromBytes(h.Sum(nil))
}

// HashFieldOfHash treats a types.Hash as an already-canonical field element
// (its 32 bytes interpreted big-endian) without re-reducing it. Used when
// folding prior field-hash outputs (e.g. Merkle siblings) back into the
// sponge, since a Hash produced by HashField is already < p.
func HashFieldOfHash(h types.Hash) FieldElement {
	var e fr.Element
	e.SetBytes(h[:])
	return FieldElement{inner: e}
}
