package core

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testScheduler(t *testing.T) (*Scheduler, *Ledger, *NetworkParams, *OnlineReps) {
	t.Helper()
	ledger, params, _, _ := testLedger(t)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	processor := NewBlockProcessor(ledger, SequentialVerifier{}, log)
	online := NewOnlineReps(time.Hour, ZeroAmount)
	s := NewScheduler(ledger, processor, online, log)
	return s, ledger, params, online
}

func TestSchedulerStartTracksActiveElection(t *testing.T) {
	s, _, params, _ := testScheduler(t)
	candidate := &Block{Kind: KindChange, Previous: params.GenesisOpen.Hash(), Representative: Account{1}}
	s.Start(candidate)

	if !s.Active(candidate.Root()) {
		t.Fatalf("expected an election to be active at the candidate's root")
	}
	if s.Count() != 1 {
		t.Fatalf("expected exactly one active election, got %d", s.Count())
	}
}

func TestSchedulerConfirmsOnQuorum(t *testing.T) {
	s, _, params, online := testScheduler(t)
	candidate := &Block{Kind: KindChange, Previous: params.GenesisOpen.Hash(), Representative: Account{1}}
	s.Start(candidate)
	online.Observe(params.GenesisAccount, time.Now())

	vote := &Vote{Account: params.GenesisAccount, Sequence: 1, Hashes: []U256{candidate.Hash()}}
	s.Tally(vote, params.MaxSupply)

	if s.Active(candidate.Root()) {
		t.Fatalf("expected the election to retire once it confirms")
	}
	history := s.History()
	if len(history) != 1 {
		t.Fatalf("expected one confirmed election recorded, got %d", len(history))
	}
	if history[0].Winner != candidate.Hash() {
		t.Fatalf("expected the sole candidate to win")
	}
}

func TestSchedulerDoesNotConfirmBelowQuorum(t *testing.T) {
	s, _, params, online := testScheduler(t)
	candidate := &Block{Kind: KindChange, Previous: params.GenesisOpen.Hash(), Representative: Account{1}}
	s.Start(candidate)

	var smallRep Account
	smallRep[0] = 0xee
	online.Observe(params.GenesisAccount, time.Now())

	vote := &Vote{Account: smallRep, Sequence: 1, Hashes: []U256{candidate.Hash()}}
	s.Tally(vote, U128FromUint64(1))

	if !s.Active(candidate.Root()) {
		t.Fatalf("expected the election to remain active below quorum")
	}
	if len(s.History()) != 0 {
		t.Fatalf("expected no confirmed elections below quorum")
	}
}

func TestSchedulerTallyIgnoresVotesForUnknownRoot(t *testing.T) {
	s, _, _, online := testScheduler(t)
	online.Observe(Account{1}, time.Now())
	vote := &Vote{Account: Account{1}, Sequence: 1, Hashes: []U256{{0xff}}}
	s.Tally(vote, U128FromUint64(100))
	if s.Count() != 0 {
		t.Fatalf("a vote for an unknown hash must not create an election")
	}
}

func TestSchedulerVoterSwitchingCandidateMovesWeight(t *testing.T) {
	s, _, params, online := testScheduler(t)
	a := &Block{Kind: KindChange, Previous: params.GenesisOpen.Hash(), Representative: Account{1}}
	b := &Block{Kind: KindChange, Previous: params.GenesisOpen.Hash(), Representative: Account{2}}
	e := s.Start(a)
	s.Start(b)
	online.Observe(params.GenesisAccount, time.Now())

	rep := Account{0x77}
	s.Tally(&Vote{Account: rep, Sequence: 1, Hashes: []U256{a.Hash()}}, U128FromUint64(10))
	s.Tally(&Vote{Account: rep, Sequence: 2, Hashes: []U256{b.Hash()}}, U128FromUint64(10))

	if e.Tally[a.Hash()].Cmp(ZeroAmount) != 0 {
		t.Fatalf("expected the switched-away candidate's tally to drop back to zero")
	}
	if e.Tally[b.Hash()].DecimalString() != "10" {
		t.Fatalf("expected the new candidate to carry the switched weight, got %s", e.Tally[b.Hash()].DecimalString())
	}
}

func TestSchedulerRetireDropsElectionWithoutConfirming(t *testing.T) {
	s, _, params, _ := testScheduler(t)
	candidate := &Block{Kind: KindChange, Previous: params.GenesisOpen.Hash(), Representative: Account{1}}
	s.Start(candidate)
	s.Retire(candidate.Root())
	if s.Active(candidate.Root()) {
		t.Fatalf("expected Retire to drop the election")
	}
	if len(s.History()) != 0 {
		t.Fatalf("a retired election must not appear in the confirmed history")
	}
}

func TestRootsByDifficultyOrdersByWork(t *testing.T) {
	s, _, params, online := testScheduler(t)
	low := &Block{Kind: KindChange, Previous: U256{1}, Representative: Account{1}, Work: Work(1)}
	high := &Block{Kind: KindChange, Previous: U256{2}, Representative: Account{1}, Work: Work(0xffff)}
	s.Start(low)
	s.Start(high)

	// observing the heavily-weighted genesis account keeps the quorum delta
	// well above the tiny test votes below, so neither election confirms
	// before RootsByDifficulty is read.
	online.Observe(params.GenesisAccount, time.Now())

	// a candidate only becomes its election's leader once it carries some
	// tally; vote for each so RootsByDifficulty has a leader to read work
	// from (an untallied election's leader is the zero hash).
	s.Tally(&Vote{Account: Account{0xa}, Sequence: 1, Hashes: []U256{low.Hash()}}, U128FromUint64(1))
	s.Tally(&Vote{Account: Account{0xb}, Sequence: 1, Hashes: []U256{high.Hash()}}, U128FromUint64(1))

	roots := s.RootsByDifficulty()
	if len(roots) != 2 {
		t.Fatalf("expected two roots, got %d", len(roots))
	}
	if roots[0] != high.Root() {
		t.Fatalf("expected the higher-work candidate's root first")
	}
}
