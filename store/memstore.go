package store

import (
	"sort"
	"sync"
)

// memStore is the in-process Store implementation. It holds one map per
// table (keys are sorted when iterated) guarded by a single RWMutex, matching synnergy-network's
// (synnergy-network core/ledger.go) map-backed table pattern generalized to
// the multi-table, transactional interface spec §4.B requires. A read-write
// transaction is exclusive (mu.Lock); read transactions share mu.RLock,
// matching spec §4.B/§5's "many read transactions, one writer" contract.
type memStore struct {
	mu     sync.RWMutex
	tables map[Table]map[string][]byte
}

// New returns a fresh, empty in-process store.
func New() Store {
	return &memStore{tables: make(map[Table]map[string][]byte)}
}

func (s *memStore) table(t Table) map[string][]byte {
	m, ok := s.tables[t]
	if !ok {
		m = make(map[string][]byte)
		s.tables[t] = m
	}
	return m
}

func (s *memStore) View(fn func(Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTxn{s: s, writable: false})
}

func (s *memStore) Update(fn func(Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTxn{s: s, writable: true})
}

func (s *memStore) Close() error { return nil }

type memTxn struct {
	s        *memStore
	writable bool
}

func (t *memTxn) Writable() bool { return t.writable }

func (t *memTxn) Put(table Table, key, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	v := make([]byte, len(value))
	copy(v, value)
	t.s.table(table)[string(key)] = v
	return nil
}

func (t *memTxn) Get(table Table, key []byte) ([]byte, error) {
	v, ok := t.s.table(table)[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *memTxn) Del(table Table, key []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	delete(t.s.table(table), string(key))
	return nil
}

func (t *memTxn) Exists(table Table, key []byte) (bool, error) {
	_, ok := t.s.table(table)[string(key)]
	return ok, nil
}

func (t *memTxn) Count(table Table) (int, error) {
	return len(t.s.table(table)), nil
}

// sortedKeys returns a table's keys in ascending byte order.
func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type memIterator struct {
	keys  []string
	vals  map[string][]byte
	pos   int
	end   []byte
	ended bool
}

func (it *memIterator) Next() bool {
	if it.ended || it.pos >= len(it.keys) {
		return false
	}
	k := it.keys[it.pos]
	if it.end != nil && !bytesLess([]byte(k), it.end) {
		it.ended = true
		return false
	}
	it.pos++
	return true
}

func (it *memIterator) Key() []byte   { return []byte(it.keys[it.pos-1]) }
func (it *memIterator) Value() []byte { return it.vals[it.keys[it.pos-1]] }
func (it *memIterator) Close()        {}

func (t *memTxn) Iterate(table Table, start, end []byte) Iterator {
	m := t.s.table(table)
	keys := sortedKeys(m)
	from := 0
	if start != nil {
		from = sort.Search(len(keys), func(i int) bool { return !bytesLess([]byte(keys[i]), start) })
	}
	return &memIterator{keys: keys[from:], vals: m, end: end}
}

func (t *memTxn) SeekRandom(table Table, rnd func(n int) int) (key, value []byte, ok bool, err error) {
	m := t.s.table(table)
	keys := sortedKeys(m)
	if len(keys) == 0 {
		return nil, nil, false, nil
	}
	idx := rnd(len(keys))
	if idx < 0 || idx >= len(keys) {
		idx = 0
	}
	k := keys[idx]
	return []byte(k), m[k], true, nil
}
