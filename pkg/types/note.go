package types

import (
	"encoding/binary"
	"errors"
	"math/big"
)

var errInvalidNoteWireLen = errors.New("note: invalid wire length")

// NoteVersion is the only note format version this pool currently accepts.
const NoteVersion = 1

// Note is the canonical plaintext record behind every commitment (spec §3).
// Deriving Commitment and NoteID is the responsibility of internal/note; this
// struct only carries the fields and the structural invariants that don't
// need a hasher.
type Note struct {
	Version uint8

	ChainID uint64

	// PoolID identifies the pool this note belongs to; changing the genesis
	// parameters of a pool changes PoolID (spec §6).
	PoolID Address

	// Asset is the asset identifier; the zero address denotes the native asset.
	Asset Address

	// Value is the note's value in minimal asset units. Represented as
	// *big.Int because the protocol value is a u128 and Go has no native
	// 128-bit integer type.
	Value *big.Int

	OwnerEncKey   EncKey
	OwnerSpendKey SpendKey

	// Secret is 32 random bytes; spend authority over the note.
	Secret [32]byte

	// Blinding is 32 random bytes; hides the note inside its commitment.
	Blinding [32]byte

	// Commitment and NoteID are derived fields, filled in by internal/note.
	// They are part of the record so a Note can be passed around whole once
	// computed, but they are never trusted as input without recomputation.
	Commitment Hash
	NoteID     Hash
}

// Equal reports whether two notes are the same note, per spec §3: notes are
// equal iff their commitments are.
func (n *Note) Equal(other *Note) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.Commitment == other.Commitment
}

// HasStructuralValidity performs the cheap, hasher-independent checks from
// spec §4.2's failure modes. It does not verify the commitment matches the
// fields; callers that need that must go through internal/note.Verify.
func (n *Note) HasStructuralValidity() bool {
	if n == nil {
		return false
	}
	if n.Version == 0 {
		return false
	}
	if n.Value == nil || n.Value.Sign() <= 0 {
		return false
	}
	return true
}

// Serialize encodes the note's plaintext fields for sealing inside an
// envelope (spec §4.4 step 4: "Serialize the note to canonical bytes").
// Commitment and NoteID are omitted — they are re-derived by the recipient
// rather than trusted from the wire.
func (n *Note) Serialize() []byte {
	buf := make([]byte, 0, 1+8+AddressSize+AddressSize+16+EncKeySize+SpendKeySize+32+32)
	buf = append(buf, n.Version)
	buf = le64(n.ChainID, buf)
	buf = append(buf, n.PoolID[:]...)
	buf = append(buf, n.Asset[:]...)
	buf = appendU128LE(buf, n.Value)
	buf = append(buf, n.OwnerEncKey[:]...)
	buf = append(buf, n.OwnerSpendKey[:]...)
	buf = append(buf, n.Secret[:]...)
	buf = append(buf, n.Blinding[:]...)
	return buf
}

// DeserializeNote decodes the wire form produced by Note.Serialize. The
// caller is responsible for recomputing and checking Commitment/NoteID.
func DeserializeNote(data []byte) (*Note, error) {
	const wantLen = 1 + 8 + AddressSize + AddressSize + 16 + EncKeySize + SpendKeySize + 32 + 32
	if len(data) != wantLen {
		return nil, errInvalidNoteWireLen
	}

	n := &Note{}
	off := 0

	n.Version = data[off]
	off++

	n.ChainID = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8

	copy(n.PoolID[:], data[off:off+AddressSize])
	off += AddressSize

	copy(n.Asset[:], data[off:off+AddressSize])
	off += AddressSize

	n.Value = u128LEToBig(data[off : off+16])
	off += 16

	copy(n.OwnerEncKey[:], data[off:off+EncKeySize])
	off += EncKeySize

	copy(n.OwnerSpendKey[:], data[off:off+SpendKeySize])
	off += SpendKeySize

	copy(n.Secret[:], data[off:off+32])
	off += 32

	copy(n.Blinding[:], data[off:off+32])
	off += 32

	return n, nil
}
