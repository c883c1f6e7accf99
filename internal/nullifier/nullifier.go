// Package nullifier implements nullifier derivation and the spent-nullifier
// registry (spec §4.3, §4.6). It is grounded on the teacher's
// internal/zkp/nullifier.go, adapted from a SHA-256 derivation to the field
// hasher the spec requires so the same derivation can be constrained inside
// a circuit.
package nullifier

import (
	"github.com/ccoin/shieldpool/internal/hashing"
	"github.com/ccoin/shieldpool/pkg/types"
)

var fieldHasher hashing.FieldHasher

// Derive computes nullifier = field_hash(DOM_NULL_V1, secret, leaf_index)
// (spec §4.3). Binding the leaf index is mandatory: two deposits of the same
// note material at different tree positions MUST produce different
// nullifiers.
func Derive(secret [32]byte, leafIndex uint64) types.Hash {
	return fieldHasher.HashField(
		hashing.DomainNullifier,
		hashing.ReduceBytesLE(secret[:]),
		hashing.ReduceUint64(leafIndex),
	)
}
