// Package store defines the abstract transactional key-value interface
// spec §4.B describes and ships the single in-process implementation this
// repo needs to exercise it (a production deployment would swap in
// LMDB/Bolt/Badger behind the same interface; the on-disk engine itself is
// out of scope per spec §1).
//
// Grounded on synnergy-network's `StateIterator`/`StateRW`
// interfaces in core/common_structs.go, which already separate read
// iteration from read-write mutation; extended here with the table set,
// two-generation merge iterator, and schema-migration harness spec §4.B
// names.
package store

import "errors"

// ErrNotFound is the expected-value sentinel for a missing key; spec §7
// treats it as an ordinary outcome, never a fatal store error.
var ErrNotFound = errors.New("store: not found")

// ErrReadOnly is returned by any mutating call made against a read
// transaction.
var ErrReadOnly = errors.New("store: transaction is read-only")

// Table names every keyed table spec §4.B lists. Accounts, pending, and
// state blocks are split across two generations (epoch_0/epoch_1) per the
// schema migrations (§4.B); the other tables are single-generation.
type Table string

const (
	TableAccountsEpoch0 Table = "accounts_epoch0"
	TableAccountsEpoch1 Table = "accounts_epoch1"
	TableSend           Table = "send"
	TableReceive        Table = "receive"
	TableOpen           Table = "open"
	TableChange         Table = "change"
	TableStateEpoch0    Table = "state_epoch0"
	TableStateEpoch1    Table = "state_epoch1"
	TablePendingEpoch0  Table = "pending_epoch0"
	TablePendingEpoch1  Table = "pending_epoch1"
	TableBlockInfo      Table = "block_info"
	TableRepresentation Table = "representation"
	TableUnchecked      Table = "unchecked"
	TableChecksum       Table = "checksum"
	TableVote           Table = "vote"
	TableMeta           Table = "meta"
	// TableFrontier maps a block hash to the account it is the current
	// head of, used by §4.C step 7's "frontier mapping".
	TableFrontier Table = "frontier"
	// TableSuccessor holds the trailing-32-bytes successor pointer for
	// each block hash, keyed the same as the owning block table's key
	// (spec §4.B, block `put`).
	TableSuccessor Table = "successor"
)

// BlockTables lists every table holding a block row, in the fixed order the
// random-block-retrieval range mapping (spec §4.B) walks them.
var BlockTables = []Table{TableSend, TableReceive, TableOpen, TableChange, TableStateEpoch0, TableStateEpoch1}

// VersionKey is the distinguished meta-table key the schema version cell is
// stored under.
var VersionKey = []byte("version")

// Iterator walks a table's keys in ascending order starting from a given
// key (inclusive) or the beginning of the table.
type Iterator interface {
	// Next advances the iterator; returns false when exhausted.
	Next() bool
	Key() []byte
	Value() []byte
	Close()
}

// Txn is a single transaction, read-only or read-write. Read-write
// transactions are exclusive across the process (spec §4.B, §5): the Store
// implementation must not hand out two concurrent Update transactions.
type Txn interface {
	Writable() bool

	Put(table Table, key, value []byte) error
	Get(table Table, key []byte) ([]byte, error) // ErrNotFound if absent
	Del(table Table, key []byte) error
	Exists(table Table, key []byte) (bool, error)

	// Iterate returns entries from start (or the table's first key if start
	// is nil) onward. end, if non-nil, is an exclusive sentinel.
	Iterate(table Table, start, end []byte) Iterator

	// Count returns the number of entries in a table, used by random block
	// retrieval's range mapping.
	Count(table Table) (int, error)

	// SeekRandom returns the key at or after a randomly chosen position in
	// the table, wrapping to the first key if the position falls past the
	// end (spec §4.B, random block retrieval).
	SeekRandom(table Table, rnd func(n int) int) (key, value []byte, ok bool, err error)
}

// Store is the transactional handle the ledger exclusively owns (spec §3,
// "Ownership").
type Store interface {
	// View opens a read-only transaction; many may run concurrently.
	View(fn func(Txn) error) error
	// Update opens a read-write transaction; at most one runs at a time.
	Update(fn func(Txn) error) error
	Close() error
}

// MergeIterator yields entries from two tables (typically an epoch_0 and
// epoch_1 generation of the same logical table) in combined ascending key
// order, restartable from any key (spec §9 design note). Ties prefer the
// first iterator.
type MergeIterator struct {
	a, b       Iterator
	aOK, bOK   bool
	key, value []byte
}

// NewMergeIterator wraps two already-positioned-or-fresh iterators.
func NewMergeIterator(a, b Iterator) *MergeIterator {
	m := &MergeIterator{a: a, b: b}
	m.aOK = a.Next()
	m.bOK = b.Next()
	return m
}

func bytesLess(x, y []byte) bool {
	for i := 0; i < len(x) && i < len(y); i++ {
		if x[i] != y[i] {
			return x[i] < y[i]
		}
	}
	return len(x) < len(y)
}

// Next advances the merge, picking whichever source has the smaller next
// key (the first iterator on ties, with the second iterator's duplicate
// advanced past so a key present in both generations surfaces once).
func (m *MergeIterator) Next() bool {
	if !m.aOK && !m.bOK {
		return false
	}
	if !m.bOK || (m.aOK && bytesLess(m.a.Key(), m.b.Key())) {
		m.key, m.value = m.a.Key(), m.a.Value()
		m.aOK = m.a.Next()
		return true
	}
	if !m.aOK || bytesLess(m.b.Key(), m.a.Key()) {
		m.key, m.value = m.b.Key(), m.b.Value()
		m.bOK = m.b.Next()
		return true
	}
	// equal keys: a wins, advance both.
	m.key, m.value = m.a.Key(), m.a.Value()
	m.aOK = m.a.Next()
	m.bOK = m.b.Next()
	return true
}

func bytesEqual(x, y []byte) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func (m *MergeIterator) Key() []byte   { return m.key }
func (m *MergeIterator) Value() []byte { return m.value }
func (m *MergeIterator) Close() {
	m.a.Close()
	m.b.Close()
}
