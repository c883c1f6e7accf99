package types

import (
	"encoding/binary"
	"fmt"
)

// EnvelopeVersion is the only envelope wire format version this pool
// currently emits or accepts.
const EnvelopeVersion = 1

// EnvelopeNonceSize is the nonce size for the envelope's AEAD (XChaCha20-
// Poly1305), per spec §6.
const EnvelopeNonceSize = 24

// Envelope is the wire form of a sealed note (spec §4.4, §6):
//
//	v(1) || ephemeral_pubkey(33) || nonce(24) || anchor_commitment(32)
//	   || ciphertext_len(u32 LE) || ciphertext
type Envelope struct {
	Version          uint8
	EphemeralPubKey  EncKey
	Nonce            [EnvelopeNonceSize]byte
	AnchorCommitment Hash
	Ciphertext       []byte
}

// Serialize encodes the envelope in its canonical wire form.
func (e *Envelope) Serialize() []byte {
	buf := make([]byte, 0, 1+EncKeySize+EnvelopeNonceSize+HashSize+4+len(e.Ciphertext))
	buf = append(buf, e.Version)
	buf = append(buf, e.EphemeralPubKey[:]...)
	buf = append(buf, e.Nonce[:]...)
	buf = append(buf, e.AnchorCommitment[:]...)
	buf = le32(uint32(len(e.Ciphertext)), buf)
	buf = append(buf, e.Ciphertext...)
	return buf
}

// DeserializeEnvelope decodes the wire form produced by Serialize.
func DeserializeEnvelope(data []byte) (*Envelope, error) {
	const headerLen = 1 + EncKeySize + EnvelopeNonceSize + HashSize + 4
	if len(data) < headerLen {
		return nil, fmt.Errorf("envelope: truncated header")
	}

	e := &Envelope{}
	off := 0

	e.Version = data[off]
	off++

	copy(e.EphemeralPubKey[:], data[off:off+EncKeySize])
	off += EncKeySize

	copy(e.Nonce[:], data[off:off+EnvelopeNonceSize])
	off += EnvelopeNonceSize

	copy(e.AnchorCommitment[:], data[off:off+HashSize])
	off += HashSize

	ctLen := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4

	if uint32(len(data)-off) < ctLen {
		return nil, fmt.Errorf("envelope: truncated ciphertext")
	}
	e.Ciphertext = append([]byte(nil), data[off:off+int(ctLen)]...)

	return e, nil
}
