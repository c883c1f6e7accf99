package types

import (
	"encoding/binary"
	"errors"
	"math/big"
)

var errInvalidTransactionWireLen = errors.New("transaction: invalid wire length")

// TxKind tags which variant of the transaction union a Transaction carries.
type TxKind uint8

const (
	TxDeposit TxKind = iota + 1
	TxWithdraw
	TxTransfer
)

// MembershipProof is the wire form of a Merkle membership proof (spec §3,
// §6): a leaf position, one sibling digest per tree level, and the root the
// proof was generated against.
type MembershipProof struct {
	LeafPosition    uint64
	Siblings        []Hash
	RootAtProofTime Hash
}

// Depth returns the number of sibling digests in the proof, i.e. the tree
// depth it was generated for.
func (p *MembershipProof) Depth() int {
	if p == nil {
		return 0
	}
	return len(p.Siblings)
}

// SpendInput is one note being consumed by a Withdraw or Transfer.
type SpendInput struct {
	Nullifier       Hash
	MembershipProof MembershipProof

	// AuthProof is an opaque blob handed to the external ZK verifier
	// collaborator (spec §3, §9 "signature primitive" Open Question). The
	// verifier never inspects its contents directly.
	AuthProof []byte
}

// DepositData is the Deposit variant's payload. Secret and Blinding are the
// note-opening fields the depositor reveals so the verifier can recompute
// commitment' = commit(recipient_enc_key, asset, value, secret, blinding) and check it against
// Commitment (spec §4.7 Deposit check) — the bare {asset, value,
// recipient_enc_key, commitment} tuple in spec §3 has no way to reproduce the
// commitment formula, so these two fields complete the wire payload.
type DepositData struct {
	Asset           Address
	Value           *big.Int
	RecipientEncKey EncKey
	Commitment      Hash
	Secret          [32]byte
	Blinding        [32]byte
}

// WithdrawData is the Withdraw variant's payload.
type WithdrawData struct {
	Nullifier       Hash
	MembershipProof MembershipProof
	AuthProof       []byte
	RecipientAddr   Address
	Value           *big.Int
	Asset           Address
}

// TransferData is the Transfer variant's payload: input notes are consumed,
// output commitments are created, values stay hidden behind the AuthProof's
// attestation of conservation.
type TransferData struct {
	Inputs  []SpendInput
	Outputs []Hash
}

// Transaction is the tagged union accepted by the verifier (spec §3). Exactly
// one of Deposit, Withdraw, Transfer is non-nil, matching Kind.
type Transaction struct {
	Kind    TxKind
	Version uint8
	Fee     uint64

	Deposit  *DepositData
	Withdraw *WithdrawData
	Transfer *TransferData
}

// AllNullifiers returns every nullifier this transaction reveals, in
// transaction order. Deposits reveal none.
func (tx *Transaction) AllNullifiers() []Hash {
	switch tx.Kind {
	case TxWithdraw:
		if tx.Withdraw == nil {
			return nil
		}
		return []Hash{tx.Withdraw.Nullifier}
	case TxTransfer:
		if tx.Transfer == nil {
			return nil
		}
		out := make([]Hash, len(tx.Transfer.Inputs))
		for i, in := range tx.Transfer.Inputs {
			out[i] = in.Nullifier
		}
		return out
	default:
		return nil
	}
}

// HasDuplicateNullifiers reports whether tx reveals the same nullifier twice.
func (tx *Transaction) HasDuplicateNullifiers() bool {
	seen := make(map[Hash]struct{})
	for _, n := range tx.AllNullifiers() {
		if _, ok := seen[n]; ok {
			return true
		}
		seen[n] = struct{}{}
	}
	return false
}

// Serialize encodes p in the spec §6 membership-proof wire format:
// depth(u8) || leaf_position(u64 LE) || root(32) || siblings(depth × 32).
func (p *MembershipProof) Serialize() []byte {
	buf := make([]byte, 0, 1+8+HashSize+len(p.Siblings)*HashSize)
	buf = append(buf, byte(len(p.Siblings)))
	buf = le64(p.LeafPosition, buf)
	buf = append(buf, p.RootAtProofTime[:]...)
	for _, s := range p.Siblings {
		buf = append(buf, s[:]...)
	}
	return buf
}

// DeserializeMembershipProof parses the wire format Serialize produces,
// returning the proof and the number of bytes consumed from data so a
// caller embedding a proof inside a larger message (a SpendInput, a
// Transaction) can continue parsing right after it.
func DeserializeMembershipProof(data []byte) (*MembershipProof, int, error) {
	const headerLen = 1 + 8 + HashSize
	if len(data) < headerLen {
		return nil, 0, errInvalidTransactionWireLen
	}
	depth := int(data[0])
	off := 1

	leafPosition := binary.LittleEndian.Uint64(data[off : off+8])
	off += 8

	var root Hash
	copy(root[:], data[off:off+HashSize])
	off += HashSize

	if len(data)-off < depth*HashSize {
		return nil, 0, errInvalidTransactionWireLen
	}
	siblings := make([]Hash, depth)
	for i := 0; i < depth; i++ {
		copy(siblings[i][:], data[off:off+HashSize])
		off += HashSize
	}

	return &MembershipProof{LeafPosition: leafPosition, Siblings: siblings, RootAtProofTime: root}, off, nil
}

// Serialize encodes tx in a flat, variant-tagged wire format: kind(u8) ||
// version(u8) || fee(u64 LE), followed by the payload for tx.Kind. Used by
// cmd/zkvmshim to read the (state_snapshot, txn) blob the spec §4.9
// zkVM shim adapter consumes.
func (tx *Transaction) Serialize() []byte {
	buf := make([]byte, 0, 96)
	buf = append(buf, byte(tx.Kind))
	buf = append(buf, tx.Version)
	buf = le64(tx.Fee, buf)

	switch tx.Kind {
	case TxDeposit:
		d := tx.Deposit
		buf = append(buf, d.Asset[:]...)
		buf = appendU128LE(buf, d.Value)
		buf = append(buf, d.RecipientEncKey[:]...)
		buf = append(buf, d.Commitment[:]...)
		buf = append(buf, d.Secret[:]...)
		buf = append(buf, d.Blinding[:]...)

	case TxWithdraw:
		w := tx.Withdraw
		buf = append(buf, w.Nullifier[:]...)
		buf = append(buf, w.MembershipProof.Serialize()...)
		buf = le32(uint32(len(w.AuthProof)), buf)
		buf = append(buf, w.AuthProof...)
		buf = append(buf, w.RecipientAddr[:]...)
		buf = appendU128LE(buf, w.Value)
		buf = append(buf, w.Asset[:]...)

	case TxTransfer:
		t := tx.Transfer
		buf = le32(uint32(len(t.Inputs)), buf)
		for _, in := range t.Inputs {
			buf = append(buf, in.Nullifier[:]...)
			buf = append(buf, in.MembershipProof.Serialize()...)
			buf = le32(uint32(len(in.AuthProof)), buf)
			buf = append(buf, in.AuthProof...)
		}
		buf = le32(uint32(len(t.Outputs)), buf)
		for _, out := range t.Outputs {
			buf = append(buf, out[:]...)
		}
	}

	return buf
}

// DeserializeTransaction parses the wire format Serialize produces.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	if len(data) < 1+1+8 {
		return nil, errInvalidTransactionWireLen
	}
	tx := &Transaction{Kind: TxKind(data[0]), Version: data[1]}
	off := 2
	tx.Fee = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8

	switch tx.Kind {
	case TxDeposit:
		const want = AddressSize + 16 + EncKeySize + HashSize + 32 + 32
		if len(data)-off < want {
			return nil, errInvalidTransactionWireLen
		}
		d := &DepositData{}
		copy(d.Asset[:], data[off:off+AddressSize])
		off += AddressSize
		d.Value = u128LEToBig(data[off : off+16])
		off += 16
		copy(d.RecipientEncKey[:], data[off:off+EncKeySize])
		off += EncKeySize
		copy(d.Commitment[:], data[off:off+HashSize])
		off += HashSize
		copy(d.Secret[:], data[off:off+32])
		off += 32
		copy(d.Blinding[:], data[off:off+32])
		off += 32
		tx.Deposit = d

	case TxWithdraw:
		if len(data)-off < HashSize {
			return nil, errInvalidTransactionWireLen
		}
		w := &WithdrawData{}
		copy(w.Nullifier[:], data[off:off+HashSize])
		off += HashSize

		proof, consumed, err := DeserializeMembershipProof(data[off:])
		if err != nil {
			return nil, err
		}
		w.MembershipProof = *proof
		off += consumed

		if len(data)-off < 4 {
			return nil, errInvalidTransactionWireLen
		}
		authLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		if len(data)-off < authLen {
			return nil, errInvalidTransactionWireLen
		}
		w.AuthProof = append([]byte(nil), data[off:off+authLen]...)
		off += authLen

		if len(data)-off < AddressSize+16+AddressSize {
			return nil, errInvalidTransactionWireLen
		}
		copy(w.RecipientAddr[:], data[off:off+AddressSize])
		off += AddressSize
		w.Value = u128LEToBig(data[off : off+16])
		off += 16
		copy(w.Asset[:], data[off:off+AddressSize])
		off += AddressSize
		tx.Withdraw = w

	case TxTransfer:
		if len(data)-off < 4 {
			return nil, errInvalidTransactionWireLen
		}
		numInputs := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		// minSpendInputWireLen is the smallest a single SpendInput can ever
		// be on the wire: nullifier + a zero-depth membership proof header
		// + an auth_proof length prefix. Bounding numInputs against it
		// before allocating keeps a malicious count near 0xFFFFFFFF from
		// forcing a multi-GB (or panicking) make([]SpendInput, ...) off a
		// handful of input bytes — the per-iteration checks below only run
		// after that allocation already happened.
		const minSpendInputWireLen = HashSize + 1 + 8 + HashSize + 4
		if numInputs < 0 || numInputs > (len(data)-off)/minSpendInputWireLen {
			return nil, errInvalidTransactionWireLen
		}

		t := &TransferData{Inputs: make([]SpendInput, numInputs)}
		for i := 0; i < numInputs; i++ {
			if len(data)-off < HashSize {
				return nil, errInvalidTransactionWireLen
			}
			var n Hash
			copy(n[:], data[off:off+HashSize])
			off += HashSize

			proof, consumed, err := DeserializeMembershipProof(data[off:])
			if err != nil {
				return nil, err
			}
			off += consumed

			if len(data)-off < 4 {
				return nil, errInvalidTransactionWireLen
			}
			authLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
			if len(data)-off < authLen {
				return nil, errInvalidTransactionWireLen
			}
			auth := append([]byte(nil), data[off:off+authLen]...)
			off += authLen

			t.Inputs[i] = SpendInput{Nullifier: n, MembershipProof: *proof, AuthProof: auth}
		}

		if len(data)-off < 4 {
			return nil, errInvalidTransactionWireLen
		}
		numOutputs := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		if numOutputs < 0 || numOutputs > (len(data)-off)/HashSize {
			return nil, errInvalidTransactionWireLen
		}
		t.Outputs = make([]Hash, numOutputs)
		for i := 0; i < numOutputs; i++ {
			copy(t.Outputs[i][:], data[off:off+HashSize])
			off += HashSize
		}
		tx.Transfer = t

	default:
		return nil, errInvalidTransactionWireLen
	}

	return tx, nil
}
