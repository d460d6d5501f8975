package core

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"btcb/store"
)

func testProcessor(t *testing.T) (*BlockProcessor, *Ledger, *NetworkParams, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	ledger, params, pub, priv := testLedger(t)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	p := NewBlockProcessor(ledger, SequentialVerifier{}, log)
	return p, ledger, params, pub, priv
}

func TestBlockProcessorForcedBypassesVerification(t *testing.T) {
	p, ledger, params, _, genesisPriv := testProcessor(t)
	destPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var destAccount Account
	copy(destAccount[:], destPub)

	send := sendBlock(params.GenesisOpen.Hash(), destAccount, params.MaxSupply.Sub(U128FromUint64(1)), genesisPriv)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	p.Force(send)
	p.Flush()
	cancel()

	err = ledger.Store().View(func(txn store.Txn) error {
		amount, found, verr := AccountPending(txn, destAccount, send.Hash())
		if verr != nil {
			return verr
		}
		if !found || amount.DecimalString() != U128FromUint64(1).DecimalString() {
			t.Fatalf("expected a pending entry of 1 raw for the destination, found=%v amount=%s", found, amount.DecimalString())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	err = ledger.Store().View(func(txn store.Txn) error {
		head, found, verr := Latest(txn, params.GenesisAccount)
		if verr != nil {
			return verr
		}
		if !found || head != send.Hash() {
			t.Fatalf("expected genesis head to advance to the forced send")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

// forceSendTo drives a genesis send to destAccount directly through the
// ledger, bypassing the processor, so a test can set up a pending entry for
// an Open block without relying on the forced lane under test.
func forceSendTo(t *testing.T, ledger *Ledger, params *NetworkParams, genesisPriv ed25519.PrivateKey, destAccount Account, amount U128) *Block {
	t.Helper()
	remaining := params.MaxSupply.Sub(amount)
	send := sendBlock(params.GenesisOpen.Hash(), destAccount, remaining, genesisPriv)
	err := ledger.Store().Update(func(txn store.Txn) error {
		ret, perr := ledger.Process(txn, send)
		if perr != nil {
			return perr
		}
		if ret.Code != Progress {
			t.Fatalf("setup send did not progress: %s", ret.Code)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	return send
}

func TestBlockProcessorAddGoesThroughBatchVerification(t *testing.T) {
	p, ledger, params, _, genesisPriv := testProcessor(t)
	destPub, destPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var destAccount Account
	copy(destAccount[:], destPub)

	send := forceSendTo(t, ledger, params, genesisPriv, destAccount, U128FromUint64(5))
	open := openBlock(send.Hash(), params.GenesisAccount, destAccount, destPriv)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	p.Add(open, time.Now())
	p.Flush()
	cancel()

	err = ledger.Store().View(func(txn store.Txn) error {
		head, found, verr := Latest(txn, destAccount)
		if verr != nil {
			return verr
		}
		if !found || head != open.Hash() {
			t.Fatalf("expected the batch-verified open block to commit")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestBlockProcessorDropsBadSignatureInBatch(t *testing.T) {
	p, ledger, params, _, genesisPriv := testProcessor(t)
	destPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var destAccount Account
	copy(destAccount[:], destPub)

	_, wrongPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	send := forceSendTo(t, ledger, params, genesisPriv, destAccount, U128FromUint64(1))
	bad := openBlock(send.Hash(), params.GenesisAccount, destAccount, wrongPriv)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	p.Add(bad, time.Now())
	p.Flush()
	cancel()

	err = ledger.Store().View(func(txn store.Txn) error {
		_, found, verr := Latest(txn, destAccount)
		if verr != nil {
			return verr
		}
		if found {
			t.Fatalf("a batch-verification failure must never reach the ledger")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestBlockProcessorFullReportsBackpressure(t *testing.T) {
	p, _, params, _, genesisPriv := testProcessor(t)
	p.FullThreshold = 0
	send := sendBlock(params.GenesisOpen.Hash(), Account{1}, params.MaxSupply.Sub(U128FromUint64(1)), genesisPriv)
	if p.Full() {
		t.Fatalf("expected an empty processor not to report full")
	}
	p.Add(send, time.Now())
	if !p.Full() {
		t.Fatalf("expected processor to report full once queue depth exceeds FullThreshold")
	}
}

func TestBlockProcessorForkStartsElection(t *testing.T) {
	p, ledger, params, _, genesisPriv := testProcessor(t)
	online := NewOnlineReps(time.Hour, ZeroAmount)
	scheduler := NewScheduler(ledger, p, online, p.log)
	p.SetScheduler(scheduler)

	first := sendBlock(params.GenesisOpen.Hash(), Account{1}, params.MaxSupply.Sub(U128FromUint64(1)), genesisPriv)
	second := sendBlock(params.GenesisOpen.Hash(), Account{2}, params.MaxSupply.Sub(U128FromUint64(2)), genesisPriv)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	p.Force(first)
	p.Flush()
	p.Force(second)
	p.Flush()
	cancel()

	if !scheduler.Active(second.Root()) {
		t.Fatalf("expected a Fork result to start an election at the losing block's root")
	}
}

func TestBlockProcessorGapHookFires(t *testing.T) {
	p, _, _, _, genesisPriv := testProcessor(t)
	var gapHash U256
	var called bool
	p.SetUncheckedHooks(func(missing U256, blk *Block) {
		called = true
		gapHash = missing
	}, nil)

	missingPrev := U256{0xaa}
	orphan := sendBlock(missingPrev, Account{1}, U128FromUint64(1), genesisPriv)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	p.Force(orphan)
	p.Flush()
	cancel()

	if !called {
		t.Fatalf("expected the gap-previous hook to fire for an orphaned block")
	}
	if gapHash != missingPrev {
		t.Fatalf("expected gap hook to report the missing previous hash")
	}
}
