// Package note implements the note commitment scheme and note-id derivation
// (spec §4.2). It is grounded on the teacher's Pedersen-commitment package
// (internal/zkp/pedersen.go) but follows the spec's field-hash construction
// rather than an elliptic-curve Pedersen commitment, since the spec fixes
// commitment = field_hash(DOM_COMMIT_V1, owner_enc_key, asset, value, secret,
// blinding), not an EC point.
package note

import (
	"errors"

	"github.com/ccoin/shieldpool/internal/hashing"
	"github.com/ccoin/shieldpool/pkg/types"
)

// ErrInvalidNote is returned when a note fails one of the structural or
// commitment checks in spec §4.2's failure modes.
var ErrInvalidNote = errors.New("note: invalid note")

var fieldHasher hashing.FieldHasher
var fastHasher hashing.FastHasher

// Commit computes the note's commitment per spec §4.2:
//
//	commitment = field_hash(DOM_COMMIT_V1,
//	                        owner_enc_key, asset, value, secret, blinding)
//
// All non-field inputs are reduced to field elements with a fixed
// little-endian reduction, performed once at this boundary.
func Commit(n *types.Note) types.Hash {
	elems := []hashing.FieldElement{
		hashing.ReduceBytesLE(n.OwnerEncKey[:]),
		hashing.ReduceBytesLE(n.Asset[:]),
		hashing.ReduceBigInt(n.Value),
		hashing.ReduceBytesLE(n.Secret[:]),
		hashing.ReduceBytesLE(n.Blinding[:]),
	}
	return fieldHasher.HashField(hashing.DomainCommit, elems...)
}

// NoteID derives the note's envelope index (spec §4.2):
//
//	note_id = SHA256(DOM_NOTE_V1 || commitment || secret)
//
// NoteID is never consumed by the ZK verifier; it exists only so a wallet
// can index decrypted envelopes.
func NoteID(n *types.Note) types.Hash {
	return fastHasher.HashBytes(hashing.DomainNote, n.Commitment[:], n.Secret[:])
}

// Finalize computes and fills in n's derived Commitment and NoteID fields,
// validating the note's structural invariants first.
func Finalize(n *types.Note) error {
	if err := Validate(n); err != nil {
		return err
	}
	n.Commitment = Commit(n)
	n.NoteID = NoteID(n)
	return nil
}

// Validate checks the structural failure modes from spec §4.2: value == 0,
// version == 0, or any fixed-width field having the wrong length.
func Validate(n *types.Note) error {
	if n == nil {
		return ErrInvalidNote
	}
	if !n.HasStructuralValidity() {
		return ErrInvalidNote
	}
	if n.Value.BitLen() > 128 {
		return ErrInvalidNote
	}
	return nil
}

// Verify recomputes n's commitment from its fields and checks it against the
// commitment the caller expects (e.g. a declared transaction commitment).
func Verify(n *types.Note, expected types.Hash) error {
	if err := Validate(n); err != nil {
		return err
	}
	if Commit(n) != expected {
		return ErrInvalidNote
	}
	return nil
}
