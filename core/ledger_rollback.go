package core

// Rollback undoes a block and every descendant on its account chain, spec
// §4.C: "walks from the requested hash back to the account head, reversing
// each step... idempotent on an already-rolled-back hash." Grounded on
// original_source/btcb/secure/ledger.cpp's `rollback`, which performs the
// same head-to-target walk; this repo has no fork-choice-driven rollback
// queue of its own (that lives in the election/confirmation component), so
// Rollback here is the mechanical primitive those callers invoke.
//
// Every variant's balance effect is reconstructed from the per-block
// (account, balance) sideband commit writes unconditionally (see
// ledger_process.go): the balance immediately before a block is simply the
// sideband entry of its previous hash (zero for an open block, which has
// none). A block that raised the balance was a receive; one that lowered
// it was a send; an unchanged balance was a change or an epoch upgrade.
// That single rule replaces five separate per-variant reversal paths.

import "btcb/store"

// Rollback removes target and every block after it on target's account
// chain, restoring the account record, pending entries, and representative
// weights to their state immediately before target was committed. Blocks
// are removed head-first, walking backward, so by the time target itself
// is reached every one of its successors is already gone.
func (l *Ledger) Rollback(t store.Txn, target U256) error {
	account, found, err := sidebandAccount(t, target)
	if err != nil {
		return err
	}
	if !found {
		// already rolled back, or never existed: idempotent no-op.
		return nil
	}

	for {
		rec, hasAccount, err := getAccount(t, account)
		if err != nil {
			return err
		}
		if !hasAccount {
			return nil
		}
		headWasTarget := rec.Head == target
		if err := l.rollbackOne(t, account, &rec); err != nil {
			return err
		}
		if headWasTarget {
			return nil
		}
	}
}

// sidebandAccount resolves the account owning hash via its sideband, if the
// block is still present.
func sidebandAccount(t store.Txn, hash U256) (Account, bool, error) {
	b, err := t.Get(store.TableBlockInfo, hash[:])
	if err == store.ErrNotFound {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	bi, err := decodeBlockInfo(b)
	if err != nil {
		return Account{}, false, err
	}
	return bi.Account, true, nil
}

// sidebandBalance resolves the balance recorded immediately after hash
// committed, or ZeroAmount if hash is zero (there is no balance "before"
// an account's open block).
func sidebandBalance(t store.Txn, hash U256) (U128, error) {
	if hash.IsZero() {
		return ZeroAmount, nil
	}
	b, err := t.Get(store.TableBlockInfo, hash[:])
	if err == store.ErrNotFound {
		return ZeroAmount, nil
	}
	if err != nil {
		return U128{}, err
	}
	bi, err := decodeBlockInfo(b)
	if err != nil {
		return U128{}, err
	}
	return bi.Balance, nil
}

// rollbackOne removes rec.Head (the chain's current tip), reverses its
// send/receive/change/open/epoch effect, and steps rec back to its
// predecessor (or deletes the account entirely when the open block itself
// is rolled back).
func (l *Ledger) rollbackOne(t store.Txn, account Account, rec *AccountRecord) error {
	head := rec.Head
	blk, ok, err := findBlock(t, head)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	preBalance, err := sidebandBalance(t, blk.PreviousHash())
	if err != nil {
		return err
	}
	postBalance := rec.Balance

	repAccount := representativeOf(blk)
	if repAccount == (Account{}) {
		repAccount = representativeOfRecord(t, *rec)
	}
	if repAccount != (Account{}) {
		if err := subWeight(t, repAccount, postBalance); err != nil {
			return err
		}
	}

	blockTable := blockTableFor(blk.Kind, rec.Epoch)
	switch {
	case postBalance.Cmp(preBalance) > 0:
		// was a receive (or an account-opening receive): restore the
		// pending entry it consumed.
		amount := postBalance.Sub(preBalance)
		link := blk.LinkOrSource()
		src, _, err := sidebandAccount(t, link)
		if err != nil {
			return err
		}
		if err := putPending(t, account, link, PendingEntry{Source: src, Amount: amount, Epoch: rec.Epoch}); err != nil {
			return err
		}

	case postBalance.Cmp(preBalance) < 0:
		// was a send: drop the pending entry it created.
		dest := sendDestination(blk)
		if err := delPending(t, dest, head); err != nil {
			return err
		}

	default:
		// change or epoch upgrade: no balance/pending effect. An epoch
		// upgrade also needs its epoch tag rolled back.
		if blk.Kind == KindState && l.isEpochLink(blk.StateLink) {
			if err := t.Del(tableForEpoch(accountsTable, rec.Epoch), account[:]); err != nil {
				return err
			}
			rec.Epoch = Epoch0
		}
	}

	if err := t.Del(blockTable, head[:]); err != nil {
		return err
	}
	if err := t.Del(store.TableFrontier, head[:]); err != nil {
		return err
	}
	if err := t.Del(store.TableBlockInfo, head[:]); err != nil {
		return err
	}

	prev := blk.PreviousHash()
	if prev.IsZero() {
		return deleteAccount(t, account, rec.Epoch)
	}
	if err := t.Del(store.TableSuccessor, prev[:]); err != nil {
		return err
	}

	rec.Head = prev
	rec.BlockCount--
	rec.Balance = preBalance
	if rec.RepBlock == head {
		rec.RepBlock = prev
	}
	if rec.OpenBlock == head {
		// unreachable: open blocks never roll back without the account
		// being deleted above.
		rec.OpenBlock = prev
	}

	if err := t.Put(store.TableFrontier, prev[:], account[:]); err != nil {
		return err
	}
	newRepAccount := representativeOfRecord(t, *rec)
	if newRepAccount != (Account{}) {
		if err := addWeight(t, newRepAccount, rec.Balance); err != nil {
			return err
		}
	}
	return putAccount(t, account, *rec)
}

func deleteAccount(t store.Txn, account Account, epoch Epoch) error {
	return t.Del(tableForEpoch(accountsTable, epoch), account[:])
}

// sendDestination returns the account a send-type block (legacy send, or a
// state block classified as a send) paid to.
func sendDestination(blk *Block) Account {
	if blk.Kind == KindState {
		return Account(blk.StateLink)
	}
	return blk.Destination
}
