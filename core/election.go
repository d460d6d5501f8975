package core

// Election is the per-root voting contest spec §4.E describes: one
// election per outstanding fork root, tallying representative weight
// behind each competing block until one candidate's tally crosses the
// quorum delta, at which point it is forced through the block processor
// and the election retires.
//
// Grounded on synnergy-network's now-absorbed consensus.go
// lifecycle (mutex-guarded map keyed by an identifying hash, a
// context.Context-driven background loop, start/stop semantics)
// generalized from single-candidate block proposals to the
// multi-candidate tally-and-confirm model spec §4.E requires, plus its
// bounded-history-for-introspection pattern reused here for the RPC-facing
// election log.

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"btcb/store"
)

// electionHistoryCap bounds the confirmed-election log kept for RPC
// introspection (spec §4.E).
const electionHistoryCap = 2048

// Election is one in-progress contest over a single root.
type Election struct {
	Root       U256
	Candidates map[U256]*Block // block hash -> block, every competing variant at this root
	Tally      map[U256]U128   // block hash -> summed representative weight
	Voters     map[Account]U256 // representative -> which candidate it last backed
	Started    time.Time
	Confirmed  bool
	Winner     U256
}

func newElection(root U256) *Election {
	return &Election{
		Root:       root,
		Candidates: make(map[U256]*Block),
		Tally:      make(map[U256]U128),
		Voters:     make(map[Account]U256),
		Started:    time.Now(),
	}
}

// leadingHash returns the candidate with the highest tally, tie-broken by
// hash for determinism.
func (e *Election) leadingHash() U256 {
	var best U256
	var bestWeight U128
	first := true
	for h, w := range e.Tally {
		if first || w.Cmp(bestWeight) > 0 || (w.Cmp(bestWeight) == 0 && lessHash(h, best)) {
			best, bestWeight, first = h, w, false
		}
	}
	return best
}

func lessHash(a, b U256) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Scheduler owns the set of active elections, spec §4.E/§4.F's
// difficulty-ordered announcement queue, and confirmation dispatch.
type Scheduler struct {
	ledger    *Ledger
	processor *BlockProcessor
	online    *OnlineReps
	log       *logrus.Logger

	mu        sync.Mutex
	elections map[U256]*Election // root -> election
	history   []ConfirmedElection

	// QuorumPercent is the percentage of online stake an election needs
	// to confirm (spec §4.E, node config online_weight_quorum).
	QuorumPercent int

	// OnConfirmed fires once per confirmed block, in addition to
	// the ledger's own callback, so the scheduler can drive rebroadcast
	// and retirement (spec §4.E, §6).
	OnConfirmed func(block *Block)

	// OnUnknownVote fires when a verified vote names a hash that isn't any
	// active election's candidate — a representative vouching for a block
	// this node doesn't have, the gap cache's bootstrap-eligibility signal
	// (spec §4.F "Gap cache").
	OnUnknownVote func(hash U256, rep Account)
}

// ConfirmedElection is a completed election's RPC-facing summary.
type ConfirmedElection struct {
	Root      U256
	Winner    U256
	Confirmed time.Time
}

// NewScheduler wires an election scheduler against ledger and processor,
// using online for the quorum delta calculation.
func NewScheduler(ledger *Ledger, processor *BlockProcessor, online *OnlineReps, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		ledger: ledger, processor: processor, online: online, log: log,
		elections: make(map[U256]*Election), QuorumPercent: 67,
	}
}

// Start begins (or returns the existing) election for block's root, adding
// block as a candidate.
func (s *Scheduler) Start(block *Block) *Election {
	root := block.Root()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[root]
	if !ok {
		e = newElection(root)
		s.elections[root] = e
	}
	e.Candidates[block.Hash()] = block
	return e
}

// Active reports whether root currently has a live election.
func (s *Scheduler) Active(root U256) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.elections[root]
	return ok
}

// Count reports how many elections are currently active.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.elections)
}

// Tally applies a verified vote to its target election(s), updating each
// referenced candidate's weight and checking for quorum. Votes for roots
// with no active election are ignored (spec §4.E: an election must exist
// before a vote can move its tally).
func (s *Scheduler) Tally(v *Vote, weight U128) {
	for _, h := range v.Hashes {
		s.tallyOne(h, v.Account, weight)
	}
}

func (s *Scheduler) tallyOne(hash U256, rep Account, weight U128) {
	s.mu.Lock()
	var target *Election
	for _, e := range s.elections {
		if _, ok := e.Candidates[hash]; ok {
			target = e
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		if s.OnUnknownVote != nil {
			s.OnUnknownVote(hash, rep)
		}
		return
	}
	if prev, ok := target.Voters[rep]; ok {
		target.Tally[prev] = target.Tally[prev].Sub(weight)
	}
	target.Voters[rep] = hash
	target.Tally[hash] = target.Tally[hash].Add(weight)
	confirmed := target.Confirmed
	s.mu.Unlock()

	if !confirmed {
		s.maybeConfirm(target)
	}
}

// maybeConfirm checks target's leading candidate against the quorum delta
// and, if it clears it, forces the winning block through the processor and
// retires the election.
func (s *Scheduler) maybeConfirm(target *Election) {
	s.mu.Lock()
	if target.Confirmed {
		s.mu.Unlock()
		return
	}
	leader := target.leadingHash()
	leaderWeight := target.Tally[leader]
	blk := target.Candidates[leader]
	s.mu.Unlock()
	if blk == nil {
		return
	}

	delta := s.online.QuorumDelta(func(a Account) U128 {
		w := ZeroAmount
		_ = s.ledger.Store().View(func(t store.Txn) error {
			v, err := Weight(t, a)
			if err == nil {
				w = v
			}
			return nil
		})
		return w
	}, s.QuorumPercent)

	if leaderWeight.Cmp(delta) < 0 {
		return
	}

	s.mu.Lock()
	if target.Confirmed {
		s.mu.Unlock()
		return
	}
	target.Confirmed = true
	target.Winner = leader
	delete(s.elections, target.Root)
	s.history = append(s.history, ConfirmedElection{Root: target.Root, Winner: leader, Confirmed: time.Now()})
	if len(s.history) > electionHistoryCap {
		s.history = s.history[len(s.history)-electionHistoryCap:]
	}
	s.mu.Unlock()

	s.processor.Force(blk)
	if s.OnConfirmed != nil {
		s.OnConfirmed(blk)
	}
}

// Retire removes root's election without confirming anything, used when a
// rollback or external event has made the contest moot.
func (s *Scheduler) Retire(root U256) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.elections, root)
}

// History returns the confirmed-election log, most recent last.
func (s *Scheduler) History() []ConfirmedElection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConfirmedElection, len(s.history))
	copy(out, s.history)
	return out
}

// RootsByDifficulty returns every active election's root along with its
// leading candidate's declared PoW difficulty proxy (the work value
// itself, since both are drawn from the same threshold space), ordered
// highest-difficulty first and tie-broken by root hash — the order the
// announcement ticker walks (spec §4.F).
func (s *Scheduler) RootsByDifficulty() []U256 {
	s.mu.Lock()
	defer s.mu.Unlock()
	type row struct {
		root U256
		work Work
	}
	rows := make([]row, 0, len(s.elections))
	for root, e := range s.elections {
		leader := e.leadingHash()
		blk := e.Candidates[leader]
		w := Work(0)
		if blk != nil {
			w = blk.Work
		}
		rows = append(rows, row{root, w})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].work != rows[j].work {
			return rows[i].work > rows[j].work
		}
		return lessHash(rows[i].root, rows[j].root)
	})
	out := make([]U256, len(rows))
	for i, r := range rows {
		out[i] = r.root
	}
	return out
}
