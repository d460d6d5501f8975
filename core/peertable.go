package core

// PeerTable is the node's multi-index view of known peers: by endpoint, by
// last contact, by last attempt, and by descending representative weight,
// plus the reachout rate limiter and syn-cookie handshake bookkeeping spec
// §4.H describes.
//
// Grounded on synnergy-network's now-absorbed
// connection_pool.go, which kept a mutex-guarded map of live connections
// plus small per-entry bookkeeping (last-seen, attempt counters) and a
// periodic sweep for stale entries — generalized here into the several
// indices and filtering rules spec §4.H names.

import (
	"net"
	"sort"
	"strconv"
	"sync"
	"time"
)

// PeerEntry is one row of the peer table.
type PeerEntry struct {
	Endpoint           Endpoint
	LastContact        time.Time
	LastAttempt        time.Time
	LastBootstrapTry    time.Time
	LastRepRequest      time.Time
	Weight             U128
}

func peerKey(e Endpoint) string {
	ip16 := e.IP.To16()
	if ip16 == nil {
		ip16 = net.IPv6zero
	}
	return string(ip16) + ":" + strconv.Itoa(int(e.Port))
}

// perIPCap bounds how many distinct peers this table keeps from the same
// IP address (spec §4.H).
const perIPCap = 10

// PeerTable holds the set of known peers and the rate-limiting state for
// outbound reach-out attempts.
type PeerTable struct {
	mu   sync.Mutex
	self Endpoint

	peers  map[string]*PeerEntry
	byIP   map[string]int

	cookies map[string]cookieEntry

	// reachoutMin is the minimum interval between two reach-out attempts
	// to the same endpoint.
	reachoutMin time.Duration
}

type cookieEntry struct {
	cookie   [32]byte
	issued   time.Time
}

// reservedRanges lists the IPv4 ranges spec §4.H excludes from the peer
// table (documentation/test/broadcast ranges plus 0.0.0.0/8).
var reservedRanges = []*net.IPNet{
	mustCIDR("0.0.0.0/8"),
	mustCIDR("192.0.2.0/24"),
	mustCIDR("198.51.100.0/24"),
	mustCIDR("203.0.113.0/24"),
	mustCIDR("233.252.0.0/16"),
	mustCIDR("240.0.0.0/4"),
	mustCIDR("255.255.255.255/32"),
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

func isReserved(ip net.IP) bool {
	for _, n := range reservedRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// NewPeerTable returns an empty table; self is excluded from insertion.
func NewPeerTable(self Endpoint) *PeerTable {
	return &PeerTable{
		self:        self,
		peers:       make(map[string]*PeerEntry),
		byIP:        make(map[string]int),
		cookies:     make(map[string]cookieEntry),
		reachoutMin: 5 * time.Second,
	}
}

// Insert adds or refreshes a peer, applying the self-filter, reserved-range
// filter, and per-IP cap spec §4.H requires. Returns false if the peer was
// rejected.
func (t *PeerTable) Insert(e Endpoint, now time.Time) bool {
	if e.IP.Equal(t.self.IP) && e.Port == t.self.Port {
		return false
	}
	if isReserved(e.IP) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	k := peerKey(e)
	ipKey := e.IP.String()
	if _, exists := t.peers[k]; !exists {
		if t.byIP[ipKey] >= perIPCap {
			return false
		}
		t.byIP[ipKey]++
	}
	ent, ok := t.peers[k]
	if !ok {
		ent = &PeerEntry{Endpoint: e}
		t.peers[k] = ent
	}
	ent.LastContact = now
	return true
}

// Contacted records a successful exchange with e, refreshing LastContact
// without re-applying the insertion filters (the peer must already be
// known).
func (t *PeerTable) Contacted(e Endpoint, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ent, ok := t.peers[peerKey(e)]; ok {
		ent.LastContact = now
	}
}

// Reachout reports whether an outbound attempt to e is currently allowed
// under the rate limiter, and if so records the attempt.
func (t *PeerTable) Reachout(e Endpoint, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ent, ok := t.peers[peerKey(e)]
	if !ok {
		ent = &PeerEntry{Endpoint: e}
		t.peers[peerKey(e)] = ent
	}
	if now.Sub(ent.LastAttempt) < t.reachoutMin {
		return false
	}
	ent.LastAttempt = now
	return true
}

// SetWeight updates the cached representative weight for ep's peer entry,
// used by the weight-descending index Representatives reads.
func (t *PeerTable) SetWeight(e Endpoint, w U128) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ent, ok := t.peers[peerKey(e)]; ok {
		ent.Weight = w
	}
}

// Representatives returns the n peers with the highest cached
// representative weight, descending.
func (t *PeerTable) Representatives(n int) []PeerEntry {
	t.mu.Lock()
	all := make([]PeerEntry, 0, len(t.peers))
	for _, ent := range t.peers {
		all = append(all, *ent)
	}
	t.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Weight.Cmp(all[j].Weight) > 0 })
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// ListFanout returns a random subset of known peers sized sqrt(n), the
// gossip fan-out spec §4.H names for rebroadcast.
func (t *PeerTable) ListFanout() []PeerEntry {
	t.mu.Lock()
	all := make([]PeerEntry, 0, len(t.peers))
	for _, ent := range t.peers {
		all = append(all, *ent)
	}
	t.mu.Unlock()

	fanout := isqrt(len(all))
	if fanout >= len(all) {
		return all
	}
	shuffled := append([]PeerEntry(nil), all...)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := deterministicShuffleIndex(shuffled[i].Endpoint, i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:fanout]
}

func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	r := 0
	for r*r <= n {
		r++
	}
	return r - 1
}

// deterministicShuffleIndex derives a pseudo-random index in [0, i] from
// the endpoint's bytes, avoiding a dependency on math/rand's global state
// for something that only needs rough fan-out diversity.
func deterministicShuffleIndex(e Endpoint, i int) int {
	h := uint32(i + 1)
	for _, b := range e.IP {
		h = h*31 + uint32(b)
	}
	h = h*31 + uint32(e.Port)
	return int(h) % (i + 1)
}

// AssignSynCookie issues (or returns the existing) syn cookie for e, used
// by node_id_handshake. At most one cookie is outstanding per endpoint;
// there is no limit on how many endpoints sharing one IP hold cookies.
func (t *PeerTable) AssignSynCookie(e Endpoint, now time.Time, random func() [32]byte) [32]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := peerKey(e)
	if c, ok := t.cookies[k]; ok {
		return c.cookie
	}
	c := cookieEntry{cookie: random(), issued: now}
	t.cookies[k] = c
	return c.cookie
}

// ValidateSynCookie reports whether cookie matches the outstanding one
// issued to e, consuming it on success.
func (t *PeerTable) ValidateSynCookie(e Endpoint, cookie [32]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := peerKey(e)
	c, ok := t.cookies[k]
	if !ok || c.cookie != cookie {
		return false
	}
	delete(t.cookies, k)
	return true
}

// PurgeList drops peers not contacted since cutoff and cookies issued
// before cutoff, the periodic maintenance sweep spec §4.H names.
func (t *PeerTable) PurgeList(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, ent := range t.peers {
		if ent.LastContact.Before(cutoff) {
			delete(t.peers, k)
			ipKey := ent.Endpoint.IP.String()
			if t.byIP[ipKey] > 0 {
				t.byIP[ipKey]--
			}
		}
	}
	for k, c := range t.cookies {
		if c.issued.Before(cutoff) {
			delete(t.cookies, k)
		}
	}
}

// Len reports the number of known peers.
func (t *PeerTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.peers)
}
