package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
)

// PoolStateSnapshot is what the verifier consumes and produces (spec §3):
// the tree root and version, a digest of the nullifier set, and the running
// per-asset pool balance. The digest form lets the verifier run inside a
// proof system without carrying the full nullifier set around.
type PoolStateSnapshot struct {
	Root               Hash
	RootVersion        uint64
	NullifierSetDigest Hash
	Balances           map[Address]*big.Int
}

// NewPoolStateSnapshot returns an empty snapshot at the given genesis root.
func NewPoolStateSnapshot(genesisRoot Hash) *PoolStateSnapshot {
	return &PoolStateSnapshot{
		Root:               genesisRoot,
		RootVersion:        0,
		NullifierSetDigest: EmptyHash,
		Balances:           make(map[Address]*big.Int),
	}
}

// Clone returns a deep copy of the snapshot, used by the verifier to build a
// new-state delta without mutating the snapshot it was handed.
func (s *PoolStateSnapshot) Clone() *PoolStateSnapshot {
	out := &PoolStateSnapshot{
		Root:               s.Root,
		RootVersion:        s.RootVersion,
		NullifierSetDigest: s.NullifierSetDigest,
		Balances:           make(map[Address]*big.Int, len(s.Balances)),
	}
	for asset, bal := range s.Balances {
		out.Balances[asset] = new(big.Int).Set(bal)
	}
	return out
}

// BalanceOf returns the pool's balance for asset, defaulting to zero.
func (s *PoolStateSnapshot) BalanceOf(asset Address) *big.Int {
	if bal, ok := s.Balances[asset]; ok {
		return bal
	}
	return big.NewInt(0)
}

// AddBalance adds delta (which may be negative) to asset's pool balance.
func (s *PoolStateSnapshot) AddBalance(asset Address, delta *big.Int) {
	cur := s.BalanceOf(asset)
	s.Balances[asset] = new(big.Int).Add(cur, delta)
}

// sortedAssets returns the snapshot's asset keys in canonical (byte) order,
// so wire serialization is deterministic regardless of map iteration order.
func (s *PoolStateSnapshot) sortedAssets() []Address {
	assets := make([]Address, 0, len(s.Balances))
	for a := range s.Balances {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool {
		return bytes.Compare(assets[i][:], assets[j][:]) < 0
	})
	return assets
}

// Serialize encodes the snapshot per spec §6:
//
//	root(32) || root_version(u64 LE) || nullifier_set_digest(32)
//	   || asset_count(u32 LE) || (asset(20) || balance(u128 LE))*
func (s *PoolStateSnapshot) Serialize() []byte {
	assets := s.sortedAssets()

	buf := make([]byte, 0, HashSize+8+HashSize+4+len(assets)*(AddressSize+16))
	buf = append(buf, s.Root[:]...)
	buf = le64(s.RootVersion, buf)
	buf = append(buf, s.NullifierSetDigest[:]...)
	buf = le32(uint32(len(assets)), buf)

	for _, asset := range assets {
		buf = append(buf, asset[:]...)
		buf = appendU128LE(buf, s.BalanceOf(asset))
	}
	return buf
}

// DeserializeSnapshot decodes the wire form produced by Serialize.
func DeserializeSnapshot(data []byte) (*PoolStateSnapshot, error) {
	if len(data) < HashSize+8+HashSize+4 {
		return nil, fmt.Errorf("snapshot: truncated header")
	}

	s := &PoolStateSnapshot{Balances: make(map[Address]*big.Int)}
	off := 0

	copy(s.Root[:], data[off:off+HashSize])
	off += HashSize

	s.RootVersion = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8

	copy(s.NullifierSetDigest[:], data[off:off+HashSize])
	off += HashSize

	assetCount := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4

	for i := uint32(0); i < assetCount; i++ {
		if len(data) < off+AddressSize+16 {
			return nil, fmt.Errorf("snapshot: truncated asset entry %d", i)
		}
		var asset Address
		copy(asset[:], data[off:off+AddressSize])
		off += AddressSize

		bal := u128LEToBig(data[off : off+16])
		off += 16

		s.Balances[asset] = bal
	}

	return s, nil
}

// DepositEvent is the canonical form of a deposit observed from the chain
// listener (spec §6). Two events are the same iff (TxHash, LogIndex) match.
type DepositEvent struct {
	Depositor   Address
	Asset       Address
	Value       *big.Int
	Commitment  Hash
	BlockNumber uint64
	TxHash      Hash
	LogIndex    uint32
}

// DepositEventKey uniquely identifies a deposit event for idempotent
// ingestion.
type DepositEventKey struct {
	TxHash   Hash
	LogIndex uint32
}

// Key returns the event's idempotency key.
func (e *DepositEvent) Key() DepositEventKey {
	return DepositEventKey{TxHash: e.TxHash, LogIndex: e.LogIndex}
}

func le64(v uint64, buf []byte) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func le32(v uint32, buf []byte) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// appendU128LE appends v as 16 little-endian bytes, truncating silently if v
// does not fit (callers are expected to keep values within u128 range).
func appendU128LE(buf []byte, v *big.Int) []byte {
	var tmp [16]byte
	if v != nil {
		b := v.Bytes() // big-endian, no leading zeros
		for i := 0; i < len(b) && i < 16; i++ {
			tmp[i] = b[len(b)-1-i]
		}
	}
	return append(buf, tmp[:]...)
}

// u128LEToBig parses 16 little-endian bytes into a big.Int.
func u128LEToBig(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	return new(big.Int).SetBytes(be)
}
