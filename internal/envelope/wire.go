package envelope

import "github.com/ccoin/shieldpool/pkg/types"

// Serialize produces the canonical wire encoding for env (spec §6):
//
//	v(1) || ephemeral_pubkey(33) || nonce(24) || anchor_commitment(32)
//	       || ciphertext_len(u32 LE) || ciphertext
//
// This is a thin re-export of types.Envelope.Serialize, kept here so callers
// of this package never need to import pkg/types directly for envelope wire
// handling.
func Serialize(env *types.Envelope) []byte {
	return env.Serialize()
}

// Deserialize parses the canonical wire encoding back into an Envelope.
func Deserialize(b []byte) (*types.Envelope, error) {
	return types.DeserializeEnvelope(b)
}
