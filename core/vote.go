package core

// Vote is a representative's signed statement about which block(s) occupy
// one or more roots. Grounded on original_source/btcb/secure/common.cpp's
// `vote` class for the hash-domain and `full_hash` formula — deliberately
// distinct from a block's FullHash (spec §3): a vote's full_hash folds in
// the voting account, not work, since votes carry no proof-of-work.

import (
	"crypto/ed25519"
	"errors"
	"sync"
)

// maxVoteHashes bounds a multi-vote envelope (spec §4.G, §4.E).
const maxVoteHashes = 12

// ErrInvalidVotePayload is returned by Generate for an empty or
// over-long hash list.
var ErrInvalidVotePayload = errors.New("core: vote payload must carry 1..12 hashes")

// Vote is a representative's endorsement of one or more block hashes at a
// given sequence number.
type Vote struct {
	Account  Account
	Sequence uint64
	Hashes   []U256 // 1..maxVoteHashes
	// Embedded records whether a single-hash vote carried a full block
	// object (the wire's "block" variant) rather than a bare 32-byte hash
	// (the "hash" variant) — the two decode to the same Hashes slice but
	// sign under different domains (original_source/btcb/secure/common.cpp
	// vote::hash(), blocks[0].which()). Irrelevant when len(Hashes) != 1:
	// the multi-hash envelope always includes the "vote " prefix.
	Embedded  bool
	Signature Signature
}

// Hash computes the vote's signing digest: an optional "vote " ASCII
// prefix followed by each block hash in order and the little-endian
// sequence number. The prefix is present whenever the envelope carries
// more than one hash (the not_a_block multi-vote case) or, for a
// single-hash envelope, whenever that hash was carried as an embedded
// block object rather than a bare hash (spec §4.G; original_source's
// blocks[0].which() discriminator).
func (v *Vote) Hash() U256 {
	parts := make([][]byte, 0, len(v.Hashes)+2)
	if len(v.Hashes) != 1 || v.Embedded {
		parts = append(parts, []byte("vote "))
	}
	for _, h := range v.Hashes {
		parts = append(parts, h[:])
	}
	parts = append(parts, le64(v.Sequence))
	return blake2b256(parts...)
}

// FullHash is the uniquer's interning key: blake2b(hash() || account ||
// signature). Distinct from Block.FullHash, which folds in work instead of
// an account, since blocks carry proof-of-work and votes don't.
func (v *Vote) FullHash() U256 {
	h := v.Hash()
	return blake2b256(h[:], v.Account[:], v.Signature[:])
}

// Sign signs the vote's hash with priv, setting Signature.
func (v *Vote) Sign(priv ed25519.PrivateKey) {
	v.Signature = Sign(priv, v.Hash())
}

// Verify reports whether the vote's signature is valid for its account.
func (v *Vote) Verify() bool {
	if len(v.Hashes) == 0 || len(v.Hashes) > maxVoteHashes {
		return false
	}
	return Verify(v.Account, v.Hash(), v.Signature)
}

// SequenceResult is the outcome of comparing a candidate vote's sequence
// number against what this node has stored for the representative (spec
// §4.E "Verification").
type SequenceResult int

const (
	// SeqVote: sequence is strictly greater; the vote replaces storage and
	// should be dispatched to elections.
	SeqVote SequenceResult = iota
	// SeqReplay: sequence is equal or lower; a replayed/stale vote.
	SeqReplay
)

// SequenceCache is the two-tier write-through sequence store spec §4.E
// names: an L1 map of dirty (not-yet-flushed) entries and an L2 map
// mirroring the vote table, flushed periodically by FlushL1.
//
// Grounded on synnergy-network's connection_pool.go write-through map pattern
// (a mutex-guarded map with a periodic flush loop), generalized from
// per-connection state to per-representative vote sequence state.
type SequenceCache struct {
	mu sync.RWMutex
	l1 map[Account]uint64
	l2 map[Account]uint64
}

// NewSequenceCache returns an empty cache.
func NewSequenceCache() *SequenceCache {
	return &SequenceCache{l1: make(map[Account]uint64), l2: make(map[Account]uint64)}
}

// Check compares seq for rep against the cache (preferring a dirty L1
// entry over the flushed L2 one) and returns the sequence result; on
// SeqVote, seq becomes the dirty L1 value for rep.
func (c *SequenceCache) Check(rep Account, seq uint64) SequenceResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, ok := c.l1[rep]
	if !ok {
		stored, ok = c.l2[rep]
	}
	if ok && seq <= stored {
		return SeqReplay
	}
	c.l1[rep] = seq
	return SeqVote
}

// FlushL1 moves every dirty L1 entry into L2 (simulating the periodic
// write-through to the vote table) and returns the flushed entries so the
// caller can persist them.
func (c *SequenceCache) FlushL1() map[Account]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	flushed := make(map[Account]uint64, len(c.l1))
	for a, s := range c.l1 {
		c.l2[a] = s
		flushed[a] = s
	}
	c.l1 = make(map[Account]uint64)
	return flushed
}

// Generate builds, caches, and signs a new vote for account over payload,
// reading and advancing the persisted sequence via seqCache.
func Generate(seqCache *SequenceCache, priv ed25519.PrivateKey, account Account, payload []U256) (*Vote, error) {
	if len(payload) == 0 || len(payload) > maxVoteHashes {
		return nil, ErrInvalidVotePayload
	}
	seqCache.mu.Lock()
	next := seqCache.l1[account] + 1
	if l2, ok := seqCache.l2[account]; ok && l2+1 > next {
		next = l2 + 1
	}
	seqCache.l1[account] = next
	seqCache.mu.Unlock()

	v := &Vote{Account: account, Sequence: next, Hashes: append([]U256(nil), payload...)}
	v.Sign(priv)
	return v, nil
}
