package core

// Ledger applies blocks against account chains, maintaining heads,
// representative weights, pending receives, and balances (spec §4.C).
//
// Grounded on synnergy-network's core/ledger.go lifecycle —
// NewLedger's constructor shape, logrus progress logging on genesis load —
// generalized from its UTXO+account-balance hybrid model to the pure
// account-chain state machine spec §4.C describes; the per-variant process
// dispatch and rollback walk are new, grounded directly on spec.md §4.C and
// original_source/btcb/secure/ledger.hpp.

import (
	"sync"

	"github.com/sirupsen/logrus"

	"btcb/store"
)

// Code is the closed result enum spec §7 names; `Progress` is the only
// success.
type Code int

const (
	Progress Code = iota
	Old
	BadSignature
	NegativeSpend
	Fork
	Unreceivable
	GapPrevious
	GapSource
	OpenedBurnAccount
	BalanceMismatch
	RepresentativeMismatch
	BlockPosition
)

func (c Code) String() string {
	switch c {
	case Progress:
		return "progress"
	case Old:
		return "old"
	case BadSignature:
		return "bad_signature"
	case NegativeSpend:
		return "negative_spend"
	case Fork:
		return "fork"
	case Unreceivable:
		return "unreceivable"
	case GapPrevious:
		return "gap_previous"
	case GapSource:
		return "gap_source"
	case OpenedBurnAccount:
		return "opened_burn_account"
	case BalanceMismatch:
		return "balance_mismatch"
	case RepresentativeMismatch:
		return "representative_mismatch"
	case BlockPosition:
		return "block_position"
	default:
		return "unknown"
	}
}

// ProcessReturn is the structural result of Ledger.Process (spec §4.C).
type ProcessReturn struct {
	Code           Code
	Account        Account
	Amount         U128
	PendingAccount Account
	StateIsSend    bool
}

// Ledger is the sole owner of the store handle (spec §3, "Ownership").
type Ledger struct {
	mu     sync.Mutex
	store  store.Store
	params *NetworkParams
	log    *logrus.Logger

	// ConfirmationCallback fires whenever a block commits, letting the
	// active-election scheduler (component F) react. Wired by whoever
	// assembles the node.
	ConfirmationCallback func(block *Block, ret ProcessReturn)
}

// NewLedger opens (or initializes) s against params, running schema
// migrations and inserting the genesis block on a brand-new store (spec
// §4.B). The genesis open block is trusted and inserted directly rather
// than run through Process's normal signature-verification path, matching
// every account-chain implementation's bootstrap: there is no predecessor
// to derive a signer from, and the genesis keypair is a network constant,
// not network input.
func NewLedger(s store.Store, params *NetworkParams, log *logrus.Logger) (*Ledger, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := &Ledger{store: s, params: params, log: log}
	err := store.Open(s, func(t store.Txn) error {
		return l.insertGenesis(t)
	})
	if err != nil {
		return nil, err
	}
	log.Infof("ledger ready, genesis account %s", params.GenesisAccount.Hex())
	return l, nil
}

func (l *Ledger) insertGenesis(t store.Txn) error {
	g := l.params.GenesisOpen
	hash := g.Hash()
	if err := t.Put(store.TableOpen, hash[:], g.SerializeUntyped()); err != nil {
		return err
	}
	rec := AccountRecord{
		Head: hash, RepBlock: hash, OpenBlock: hash,
		Balance: l.params.MaxSupply, BlockCount: 1, Epoch: Epoch0,
		ConfirmationHeight: 1,
	}
	if err := t.Put(store.TableAccountsEpoch0, l.params.GenesisAccount[:], encodeAccountRecord(rec)); err != nil {
		return err
	}
	if err := t.Put(store.TableRepresentation, l.params.GenesisAccount[:], encodeWeight(l.params.MaxSupply)); err != nil {
		return err
	}
	if err := t.Put(store.TableBlockInfo, hash[:], encodeBlockInfo(BlockInfo{Account: l.params.GenesisAccount, Balance: l.params.MaxSupply})); err != nil {
		return err
	}
	return t.Put(store.TableFrontier, hash[:], l.params.GenesisAccount[:])
}

// Store exposes the underlying store for components (block processor,
// scheduler) that need their own transactions against the same handle.
func (l *Ledger) Store() store.Store { return l.store }

// Params exposes the network parameters the ledger was constructed with.
func (l *Ledger) Params() *NetworkParams { return l.params }

// table2 names a logical table that exists in two epoch generations.
type table2 struct{ epoch0, epoch1 store.Table }

var (
	accountsTable = table2{store.TableAccountsEpoch0, store.TableAccountsEpoch1}
	stateTable    = table2{store.TableStateEpoch0, store.TableStateEpoch1}
	pendingTable  = table2{store.TablePendingEpoch0, store.TablePendingEpoch1}
)

func tableForEpoch(base table2, e Epoch) store.Table {
	if e == Epoch1 {
		return base.epoch1
	}
	return base.epoch0
}

// getAccount loads an account record by checking both epoch generations —
// the point-lookup equivalent of the merge iterator.
func getAccount(t store.Txn, account Account) (AccountRecord, bool, error) {
	for _, tbl := range []store.Table{accountsTable.epoch0, accountsTable.epoch1} {
		b, err := t.Get(tbl, account[:])
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return AccountRecord{}, false, err
		}
		rec, err := decodeAccountRecord(b)
		return rec, true, err
	}
	return AccountRecord{}, false, nil
}

func putAccount(t store.Txn, account Account, rec AccountRecord) error {
	return t.Put(tableForEpoch(accountsTable, rec.Epoch), account[:], encodeAccountRecord(rec))
}

func getPending(t store.Txn, destination, sendHash U256) (PendingEntry, bool, error) {
	key := pendingKey(destination, sendHash)
	for _, tbl := range []store.Table{pendingTable.epoch0, pendingTable.epoch1} {
		b, err := t.Get(tbl, key)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return PendingEntry{}, false, err
		}
		p, err := decodePendingEntry(b)
		return p, true, err
	}
	return PendingEntry{}, false, nil
}

func putPending(t store.Txn, destination, sendHash U256, p PendingEntry) error {
	return t.Put(tableForEpoch(pendingTable, p.Epoch), pendingKey(destination, sendHash), encodePendingEntry(p))
}

func delPending(t store.Txn, destination, sendHash U256) error {
	key := pendingKey(destination, sendHash)
	_ = t.Del(pendingTable.epoch0, key)
	return t.Del(pendingTable.epoch1, key)
}

// blockTableFor returns the table a block of the given kind (and, for
// state blocks, epoch) lives in.
func blockTableFor(kind Kind, epoch Epoch) store.Table {
	switch kind {
	case KindSend:
		return store.TableSend
	case KindReceive:
		return store.TableReceive
	case KindOpen:
		return store.TableOpen
	case KindChange:
		return store.TableChange
	case KindState:
		return tableForEpoch(stateTable, epoch)
	default:
		return ""
	}
}

// findBlock looks a block up across every block table by hash, returning
// its decoded form. Used by rollback and predecessor-type checks.
func findBlock(t store.Txn, hash U256) (*Block, bool, error) {
	for _, kind := range []Kind{KindSend, KindReceive, KindOpen, KindChange} {
		b, err := t.Get(blockTableFor(kind, Epoch0), hash[:])
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		blk, err := DeserializeUntyped(kind, b)
		return blk, true, err
	}
	for _, tbl := range []store.Table{store.TableStateEpoch0, store.TableStateEpoch1} {
		b, err := t.Get(tbl, hash[:])
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		blk, err := DeserializeUntyped(KindState, b)
		return blk, true, err
	}
	return nil, false, nil
}

func blockExists(t store.Txn, hash U256) (bool, error) {
	_, ok, err := findBlock(t, hash)
	return ok, err
}

// accountOfHead resolves the account owning a chain head hash via the
// frontier table (spec §4.C step 7, "frontier mapping: head -> account").
func accountOfHead(t store.Txn, head U256) (Account, bool, error) {
	b, err := t.Get(store.TableFrontier, head[:])
	if err == store.ErrNotFound {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	var a Account
	copy(a[:], b)
	return a, true, nil
}
