package core

// GapCache tracks block hashes referenced as a dependency (previous or
// link) that this node doesn't yet have, along with which voters have
// vouched for the block behind the gap — once enough voting weight backs
// an orphan, it crosses a threshold that should trigger a bootstrap (spec
// §4.F "Gap cache").
//
// Grounded on synnergy-network's now-absorbed
// connection_pool.go bounded-map-with-eviction shape, generalized from
// connections to orphan hashes.

import "sync"

// gapCacheCapacity bounds the number of distinct orphan hashes tracked at
// once (spec §4.F).
const gapCacheCapacity = 256

type gapEntry struct {
	voters map[Account]struct{}
	order  int // insertion sequence, used to evict the oldest entry
}

// GapCache is the bounded orphan-hash tracker.
type GapCache struct {
	mu      sync.Mutex
	entries map[U256]*gapEntry
	seq     int

	// bootstrapFractionNum is the online_stake fraction (expressed as
	// numerator/16) that must back an orphan before it should trigger a
	// bootstrap attempt.
	bootstrapFractionNum int64
}

// NewGapCache returns an empty cache using numerator/16 as the bootstrap
// trigger fraction (spec §4.F, node config bootstrap_fraction_numerator).
func NewGapCache(bootstrapFractionNumerator int64) *GapCache {
	return &GapCache{entries: make(map[U256]*gapEntry), bootstrapFractionNum: bootstrapFractionNumerator}
}

// Add records that voter backs the block behind missing hash h.
func (c *GapCache) Add(h U256, voter Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[h]
	if !ok {
		if len(c.entries) >= gapCacheCapacity {
			c.evictOldestLocked()
		}
		e = &gapEntry{voters: make(map[Account]struct{}), order: c.seq}
		c.seq++
		c.entries[h] = e
	}
	e.voters[voter] = struct{}{}
}

func (c *GapCache) evictOldestLocked() {
	var oldestHash U256
	oldestOrder := -1
	for h, e := range c.entries {
		if oldestOrder == -1 || e.order < oldestOrder {
			oldestOrder = e.order
			oldestHash = h
		}
	}
	if oldestOrder != -1 {
		delete(c.entries, oldestHash)
	}
}

// Resolve drops h once it's no longer a gap (the dependency arrived).
func (c *GapCache) Resolve(h U256) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, h)
}

// ShouldBootstrap reports whether the voting weight backing h (summed via
// weightOf) has crossed bootstrapFractionNum/16 of onlineStake.
func (c *GapCache) ShouldBootstrap(h U256, weightOf func(Account) U128, onlineStake U128) bool {
	c.mu.Lock()
	e, ok := c.entries[h]
	var voters []Account
	if ok {
		voters = make([]Account, 0, len(e.voters))
		for v := range e.voters {
			voters = append(voters, v)
		}
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	backing := ZeroAmount
	for _, v := range voters {
		backing = backing.Add(weightOf(v))
	}
	threshold := onlineStake.MulDivSmall(c.bootstrapFractionNum, 16)
	return backing.Cmp(threshold) >= 0
}

// Len reports the number of tracked orphan hashes.
func (c *GapCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
