package core

// Ledger record types (spec §3) and their RLP encoding. Non-block table
// rows are not wire/hash-relevant, so — unlike the block codecs in
// blockcodec.go — they are free to use a generic codec; this repo reuses
// github.com/ethereum/go-ethereum/rlp, the same dependency synnergy-network's
// (synnergy-network) core/ledger.go already imports for its WAL.

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// Epoch tags an account/pending entry's generation, gating which table
// generation (epoch_0/epoch_1) it lives in.
type Epoch uint8

const (
	Epoch0 Epoch = 0
	Epoch1 Epoch = 1
)

// AccountRecord is the per-account head state spec §3 defines.
type AccountRecord struct {
	Head               U256
	RepBlock           U256
	OpenBlock          U256
	Balance            U128
	Modified           int64
	BlockCount         uint64
	Epoch              Epoch
	ConfirmationHeight uint64 // supplemented feature, SPEC_FULL.md §5
}

type accountRecordWire struct {
	Head               []byte
	RepBlock           []byte
	OpenBlock          []byte
	Balance            []byte
	Modified           uint64
	BlockCount         uint64
	Epoch              uint8
	ConfirmationHeight uint64
}

func encodeAccountRecord(r AccountRecord) []byte {
	w := accountRecordWire{
		Head: r.Head[:], RepBlock: r.RepBlock[:], OpenBlock: r.OpenBlock[:],
		Balance: r.Balance[:], Modified: uint64(r.Modified), BlockCount: r.BlockCount,
		Epoch: uint8(r.Epoch), ConfirmationHeight: r.ConfirmationHeight,
	}
	b, err := rlp.EncodeToBytes(w)
	if err != nil {
		panic(err)
	}
	return b
}

func decodeAccountRecord(b []byte) (AccountRecord, error) {
	var w accountRecordWire
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return AccountRecord{}, err
	}
	var r AccountRecord
	copy(r.Head[:], w.Head)
	copy(r.RepBlock[:], w.RepBlock)
	copy(r.OpenBlock[:], w.OpenBlock)
	copy(r.Balance[:], w.Balance)
	r.Modified = int64(w.Modified)
	r.BlockCount = w.BlockCount
	r.Epoch = Epoch(w.Epoch)
	r.ConfirmationHeight = w.ConfirmationHeight
	return r, nil
}

// PendingEntry is keyed by (destination, send_block_hash); spec §3.
type PendingEntry struct {
	Source Account
	Amount U128
	Epoch  Epoch
}

type pendingEntryWire struct {
	Source []byte
	Amount []byte
	Epoch  uint8
}

func encodePendingEntry(p PendingEntry) []byte {
	w := pendingEntryWire{Source: p.Source[:], Amount: p.Amount[:], Epoch: uint8(p.Epoch)}
	b, err := rlp.EncodeToBytes(w)
	if err != nil {
		panic(err)
	}
	return b
}

func decodePendingEntry(b []byte) (PendingEntry, error) {
	var w pendingEntryWire
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return PendingEntry{}, err
	}
	var p PendingEntry
	copy(p.Source[:], w.Source)
	copy(p.Amount[:], w.Amount)
	p.Epoch = Epoch(w.Epoch)
	return p, nil
}

func pendingKey(destination, sendHash U256) []byte {
	k := make([]byte, 64)
	copy(k[:32], destination[:])
	copy(k[32:], sendHash[:])
	return k
}

// BlockInfo is the (account, balance) sideband commit writes for every
// block, read by rollback and by signer and balance lookups.
type BlockInfo struct {
	Account Account
	Balance U128
}

type blockInfoWire struct {
	Account []byte
	Balance []byte
}

func encodeBlockInfo(bi BlockInfo) []byte {
	w := blockInfoWire{Account: bi.Account[:], Balance: bi.Balance[:]}
	b, err := rlp.EncodeToBytes(w)
	if err != nil {
		panic(err)
	}
	return b
}

func decodeBlockInfo(b []byte) (BlockInfo, error) {
	var w blockInfoWire
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return BlockInfo{}, err
	}
	var bi BlockInfo
	copy(bi.Account[:], w.Account)
	copy(bi.Balance[:], w.Balance)
	return bi, nil
}

// encodeWeight/decodeWeight store a representative's aggregate delegated
// balance (spec §3, "Representative weight").
func encodeWeight(w U128) []byte { return append([]byte(nil), w[:]...) }
func decodeWeight(b []byte) U128 {
	var w U128
	copy(w[:], b)
	return w
}
