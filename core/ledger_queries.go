package core

// Read-only ledger queries spec §4.C names. Grounded on
// original_source/btcb/secure/ledger.cpp's query methods of the same name;
// the per-block (account, balance) sideband this ledger writes on every
// commit (see ledger_process.go) makes every one of these an O(1) or
// O(pending-count) lookup rather than the iterative stack-based chain walk
// the source needs for legacy (non-sideband) chains — recorded as an Open
// Question resolution in DESIGN.md.

import "btcb/store"

// AccountBalance returns an account's current balance, or ZeroAmount for an
// account with no chain.
func AccountBalance(t store.Txn, account Account) (U128, error) {
	rec, ok, err := getAccount(t, account)
	if err != nil || !ok {
		return ZeroAmount, err
	}
	return rec.Balance, nil
}

// AccountPending returns the amount pending at (destination, sendHash), and
// whether an entry exists at all.
func AccountPending(t store.Txn, destination, sendHash U256) (U128, bool, error) {
	p, ok, err := getPending(t, destination, sendHash)
	if err != nil || !ok {
		return ZeroAmount, ok, err
	}
	return p.Amount, true, nil
}

// Weight returns a representative's total delegated balance.
func Weight(t store.Txn, representative Account) (U128, error) {
	return getWeight(t, representative)
}

// Latest returns an account's current chain head.
func Latest(t store.Txn, account Account) (U256, bool, error) {
	rec, ok, err := getAccount(t, account)
	if err != nil || !ok {
		return U256{}, false, err
	}
	return rec.Head, true, nil
}

// Representative returns the representative an account currently has on
// file.
func Representative(t store.Txn, account Account) (Account, error) {
	rec, ok, err := getAccount(t, account)
	if err != nil || !ok {
		return Account{}, err
	}
	return representativeOfRecord(t, rec), nil
}

// BlockDestination returns the account a legacy send block paid, if blk is
// one (see IsSend); it reports false for every other variant, state blocks
// included.
func BlockDestination(blk *Block) (Account, bool) {
	if !IsSend(blk) {
		return Account{}, false
	}
	return sendDestination(blk), true
}

// BlockSource returns the source hash of a legacy receive or open block,
// or the link of any state block whose link is non-zero. The state case
// does not classify the block, so a state send's destination or an epoch
// block's sentinel link is returned too.
func BlockSource(blk *Block) (U256, bool) {
	switch blk.Kind {
	case KindReceive, KindOpen:
		return blk.Source, true
	case KindState:
		if blk.StateLink.IsZero() {
			return U256{}, false
		}
		return blk.StateLink, true
	default:
		return U256{}, false
	}
}

// IsSend reports whether blk is a legacy send block. It checks only the
// block kind and reports false for every state block; IsSendInChain
// classifies state blocks.
func IsSend(blk *Block) bool {
	return blk.Kind == KindSend
}

// IsSendInChain reports the same as IsSend but additionally classifies a
// state block with a non-zero link as a send when its balance is below its
// predecessor's sideband balance.
func IsSendInChain(t store.Txn, blk *Block) (bool, error) {
	if blk.Kind == KindSend {
		return true, nil
	}
	if blk.Kind != KindState {
		return false, nil
	}
	if blk.StateLink.IsZero() {
		return false, nil
	}
	prevBalance, err := sidebandBalance(t, blk.PreviousHash())
	if err != nil {
		return false, err
	}
	return blk.Balance.Cmp(prevBalance) < 0, nil
}

// CouldBeEpoch reports whether blk is a state block with a non-zero link,
// the shape an epoch upgrade has. It does not look at the balance; actual
// epoch status additionally requires the configured epoch-link sentinel,
// checked by IsEpochLink.
func CouldBeEpoch(blk *Block) bool {
	return blk.Kind == KindState && !blk.StateLink.IsZero()
}

// IsEpochLink reports whether link is the network's configured epoch-link
// sentinel (spec §4.C step 5).
func (l *Ledger) IsEpochLink(link U256) bool {
	return l.isEpochLink(link)
}

// CouldFit reports whether block could be accepted onto the ledger right
// now without consulting signatures: its previous must already be known,
// ruling out an immediate gap. Open and state-open blocks always report
// true; nothing about their source or account is checked.
func CouldFit(t store.Txn, block *Block) (bool, error) {
	if block.Kind == KindOpen {
		return true, nil
	}
	if block.Kind == KindState && block.Previous.IsZero() {
		return true, nil
	}
	return blockExists(t, block.Previous)
}
