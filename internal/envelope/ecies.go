// Package envelope implements the ECIES-style sealed note envelope (spec
// §4.4): an ephemeral secp256k1 keypair, an ECDH shared secret, HKDF-SHA256
// key derivation, and an AEAD seal over the canonical note bytes. It is
// grounded on the pack's zerocash-style ECDH+AEAD envelope
// (HamzaZF-PPEM/internal/zerocash/tx.go's encryptNoteForAuctioneer /
// DecryptNoteFromAuctioneer) and on the pack's secp256k1 compressed-key
// convention (Alex110709-obsidian-core/crypto/signature.go).
package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/ccoin/shieldpool/internal/hashing"
	"github.com/ccoin/shieldpool/pkg/types"
)

// ErrNotMine is returned by Open for every failure mode — wrong recipient,
// tampered ciphertext, mismatched anchor — per spec §4.4: "Any failure ...
// returns 'not mine' rather than an error that leaks information."
var ErrNotMine = errors.New("envelope: not mine")

const hkdfInfoLen = len("DOM_ECIES_V1") + 1 // DOM_ECIES_V1 domain tag || version

// Seal produces a sealed envelope for recipientEncKey (the recipient's
// 33-byte compressed secp256k1 public key, spec §4.4 steps 1-5). plaintext is
// the canonical note byte serialization the caller is responsible for
// producing.
func Seal(recipientEncKey types.EncKey, anchorCommitment types.Hash, plaintext []byte) (*types.Envelope, error) {
	pub, err := btcec.ParsePubKey(recipientEncKey[:])
	if err != nil {
		return nil, ErrNotMine
	}

	ephemeralPriv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}

	shared := ecdh(ephemeralPriv, pub)
	encKey, err := deriveEncKey(shared, anchorCommitment, types.EnvelopeVersion)
	if err != nil {
		return nil, err
	}

	var nonce [types.EnvelopeNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce[:], plaintext, anchorCommitment[:])

	var ephemeralPubKey types.EncKey
	copy(ephemeralPubKey[:], ephemeralPriv.PubKey().SerializeCompressed())

	return &types.Envelope{
		Version:          types.EnvelopeVersion,
		EphemeralPubKey:  ephemeralPubKey,
		Nonce:            nonce,
		AnchorCommitment: anchorCommitment,
		Ciphertext:       ciphertext,
	}, nil
}

// Open attempts to decrypt env with the recipient's secret scalar
// (owner_spend_key interpreted as the ECIES private key). Every failure
// collapses to ErrNotMine (spec §4.4).
func Open(env *types.Envelope, recipientSecret types.SpendKey) ([]byte, error) {
	if env == nil || env.Version != types.EnvelopeVersion {
		return nil, ErrNotMine
	}

	priv, pub := btcec.PrivKeyFromBytes(recipientSecret[:])
	_ = pub

	ephemeralPub, err := btcec.ParsePubKey(env.EphemeralPubKey[:])
	if err != nil {
		return nil, ErrNotMine
	}

	shared := ecdh(priv, ephemeralPub)
	encKey, err := deriveEncKey(shared, env.AnchorCommitment, env.Version)
	if err != nil {
		return nil, ErrNotMine
	}

	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, ErrNotMine
	}
	plaintext, err := aead.Open(nil, env.Nonce[:], env.Ciphertext, env.AnchorCommitment[:])
	if err != nil {
		return nil, ErrNotMine
	}
	return plaintext, nil
}

// ecdh computes the x-coordinate of priv*pub, matching the ECDH shape the
// pack's zerocash envelope uses (scalar multiplication of the counterparty's
// point).
func ecdh(priv *btcec.PrivateKey, pub *btcec.PublicKey) []byte {
	var point btcec.JacobianPoint
	pub.AsJacobian(&point)

	var result btcec.JacobianPoint
	btcec.ScalarMultNonConst(&priv.Key, &point, &result)
	result.ToAffine()

	x := result.X.Bytes()
	return x[:]
}

// deriveEncKey implements spec §4.4 step 3:
//
//	(enc_key, mac_key) = HKDF-SHA256(shared, salt=anchor_commitment,
//	                                  info=DOM_ECIES_V1 || version)
//
// The AEAD used here is authenticated, so a single derived key doubles as
// both enc_key and mac_key; chacha20poly1305.KeySize is 32 bytes.
func deriveEncKey(shared []byte, anchorCommitment types.Hash, version uint8) ([]byte, error) {
	info := make([]byte, 0, hkdfInfoLen)
	info = append(info, hashing.DomainECIES.Bytes()...)
	info = append(info, version)

	reader := hkdf.New(sha256.New, shared, anchorCommitment[:], info)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}
