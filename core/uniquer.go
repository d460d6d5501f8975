package core

// Uniquer interns blocks and votes by their full_hash so that concurrently
// processed copies of the same wire object collapse to one allocation,
// matching spec §9's design note that the uniquer is a correctness
// mechanism (concurrent processing of duplicate copies of the same block)
// as much as a memory optimization.
//
// Grounded on synnergy-network's pkg/config/env.go style of
// wrapping a stdlib facility behind a small helper type; the interning
// itself uses Go's weak package (stabilized in the toolchain this module
// already targets) for a true weak reference — entries are reclaimed by the
// garbage collector once no other part of the node still holds the
// value — plus hashicorp/golang-lru/v2 as a recency index for a bounded
// sweep: each insertion inspects the oldest indexed keys and drops those
// whose weak reference has died. The sweep is not randomized.

import (
	"sync"
	"weak"

	lru "github.com/hashicorp/golang-lru/v2"
)

// sampleSize is how many entries a cleanup pass inspects.
const uniquerSampleSize = 32

// BlockUniquer interns *Block values by full_hash.
type BlockUniquer struct {
	mu      sync.Mutex
	entries map[U256]weak.Pointer[Block]
	sample  *lru.Cache[U256, struct{}] // recency index driving the sweep
}

// NewBlockUniquer returns an empty block uniquer.
func NewBlockUniquer() *BlockUniquer {
	c, _ := lru.New[U256, struct{}](4096)
	return &BlockUniquer{entries: make(map[U256]weak.Pointer[Block]), sample: c}
}

// Unique returns the interned *Block for b's full_hash, storing b if this
// is the first time it's seen (or the previous holder has since been
// collected).
func (u *BlockUniquer) Unique(b *Block) *Block {
	key := b.FullHash()
	u.mu.Lock()
	defer u.mu.Unlock()
	if wp, ok := u.entries[key]; ok {
		if existing := wp.Value(); existing != nil {
			return existing
		}
	}
	u.entries[key] = weak.Make(b)
	u.sample.Add(key, struct{}{})
	u.cleanupLocked()
	return b
}

// cleanupLocked inspects the uniquerSampleSize oldest keys of the recency
// index and drops any whose weak reference has died, bounding map growth
// without an unbounded sweep.
func (u *BlockUniquer) cleanupLocked() {
	keys := u.sample.Keys()
	n := len(keys)
	if n > uniquerSampleSize {
		n = uniquerSampleSize
	}
	for i := 0; i < n; i++ {
		k := keys[i]
		if wp, ok := u.entries[k]; ok && wp.Value() == nil {
			delete(u.entries, k)
			u.sample.Remove(k)
		}
	}
}

// Len reports the number of live interned entries (best-effort: entries
// whose referent has been collected but not yet swept still count until
// the next cleanup pass touches them).
func (u *BlockUniquer) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.entries)
}

// VoteUniquer interns *Vote values by full_hash, mirroring BlockUniquer.
type VoteUniquer struct {
	mu      sync.Mutex
	entries map[U256]weak.Pointer[Vote]
	sample  *lru.Cache[U256, struct{}]
}

// NewVoteUniquer returns an empty vote uniquer.
func NewVoteUniquer() *VoteUniquer {
	c, _ := lru.New[U256, struct{}](4096)
	return &VoteUniquer{entries: make(map[U256]weak.Pointer[Vote]), sample: c}
}

// Unique returns the interned *Vote for v's full_hash.
func (u *VoteUniquer) Unique(v *Vote) *Vote {
	key := v.FullHash()
	u.mu.Lock()
	defer u.mu.Unlock()
	if wp, ok := u.entries[key]; ok {
		if existing := wp.Value(); existing != nil {
			return existing
		}
	}
	u.entries[key] = weak.Make(v)
	u.sample.Add(key, struct{}{})
	keys := u.sample.Keys()
	n := len(keys)
	if n > uniquerSampleSize {
		n = uniquerSampleSize
	}
	for i := 0; i < n; i++ {
		k := keys[i]
		if wp, ok := u.entries[k]; ok && wp.Value() == nil {
			delete(u.entries, k)
			u.sample.Remove(k)
		}
	}
	return v
}
