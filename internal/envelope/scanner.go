package envelope

import "github.com/ccoin/shieldpool/pkg/types"

// ScanResult pairs a decrypted note with the envelope it came from, so a
// wallet can track provenance (e.g. for re-broadcast or audit).
type ScanResult struct {
	Envelope *types.Envelope
	Note     *types.Note
}

// Scan implements the wallet scanning contract (spec §4.4: "given a stream
// of envelopes, a wallet produces the sub-list it can decrypt. This must be
// the only way the wallet learns of its own notes."). Envelopes that fail to
// open are silently skipped — they are not the caller's, not evidence of an
// error.
func Scan(envelopes []*types.Envelope, recipientSecret types.SpendKey) ([]ScanResult, error) {
	var results []ScanResult
	for _, env := range envelopes {
		plaintext, err := Open(env, recipientSecret)
		if err != nil {
			continue
		}
		n, err := types.DeserializeNote(plaintext)
		if err != nil {
			continue
		}
		results = append(results, ScanResult{Envelope: env, Note: n})
	}
	return results, nil
}
