package core

// BlockProcessor is the single background worker that serializes every
// ledger write, spec §4.D. Grounded on synnergy-network's
// core/consensus.go lifecycle shape (`Start`/`Stop` with context.Context,
// an internal ticker-driven loop) generalized from block-production to
// block-application, and on its `networkAdapter`-style small-interface
// pattern for the pluggable batch signature verifier spec §4.D calls for
// ("an interface designed so a vectorized backend can accelerate it").

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"btcb/store"
)

// SignatureBatchVerifier checks a batch of (account, hash, signature)
// triples in one pass, returning which indices verified. The only
// implementation this repo ships is sequential ed25519 verification; the
// interface exists so a vectorized/accelerated backend can be swapped in
// without touching the processor (spec §4.D).
type SignatureBatchVerifier interface {
	VerifyBatch(accounts []Account, hashes []U256, sigs []Signature) []bool
}

// SequentialVerifier is the baseline SignatureBatchVerifier: plain
// crypto/ed25519 calls, one per entry. Real vectorized backends (AVX2
// batch ed25519) are out of scope per spec §1/§6.
type SequentialVerifier struct{}

func (SequentialVerifier) VerifyBatch(accounts []Account, hashes []U256, sigs []Signature) []bool {
	out := make([]bool, len(accounts))
	for i := range accounts {
		out[i] = Verify(accounts[i], hashes[i], sigs[i])
	}
	return out
}

// pending couples a block with its gossip arrival time, needed for liveness
// bookkeeping downstream (spec §4.I).
type pending struct {
	block   *Block
	arrival time.Time
}

// BlockProcessor owns the three-lane queue (forced, verified, state blocks
// awaiting batch verification) and drains it on a single goroutine, per
// spec §4.D / §5 ("exactly one" block-processing worker; "all ledger
// writes originate here").
type BlockProcessor struct {
	ledger   *Ledger
	verifier SignatureBatchVerifier
	log      *logrus.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	forced   []pending
	verified []pending
	awaiting []pending
	stopped  bool

	// FullThreshold is the queue depth (summed across lanes) above which
	// Full() reports true, signalling callers to drop network ingest
	// while still admitting forced (locally originated / fork-resolution)
	// blocks (spec §4.D "Backpressure").
	FullThreshold int

	// BatchSize is how many state-lane blocks are promoted to the
	// verifier per pass (spec §4.D: "N (N >= 256)").
	BatchSize int

	// BatchMaxTime holds the configured `block_processor_batch_max_time`.
	// process does not consult it: every block is applied in its own write
	// transaction, and no transaction spans more than one block.
	BatchMaxTime time.Duration

	// onUnchecked fires when process reports GapPrevious or GapSource,
	// with the missing dependency's hash, letting the caller insert into
	// the unchecked table keyed by that hash (spec §4.D).
	onUnchecked func(missing U256, blk *Block)
	// onProgress fires after a block commits, letting the caller look up
	// and re-enqueue anything unchecked against its hash.
	onProgress func(hash U256)

	// scheduler receives every losing/competing block Process reports as a
	// Fork, starting (or joining) that root's election so representative
	// votes have a contest to tally against (spec §4.E/§4.F).
	scheduler *Scheduler

	// arrivals gates which Fork blocks are live-gossip (and so immediately
	// eligible to start an election) versus catch-up traffic (spec §4.I). A
	// nil arrivals buffer disables the gate, so every Fork starts an
	// election.
	arrivals *ArrivalBuffer
}

// NewBlockProcessor wires a processor against ledger, using verifier for
// batch signature checks (SequentialVerifier{} if nil).
func NewBlockProcessor(ledger *Ledger, verifier SignatureBatchVerifier, log *logrus.Logger) *BlockProcessor {
	if verifier == nil {
		verifier = SequentialVerifier{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &BlockProcessor{
		ledger: ledger, verifier: verifier, log: log,
		FullThreshold: 65536, BatchSize: 256, BatchMaxTime: 250 * time.Millisecond,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// SetUncheckedHooks wires the callbacks the unchecked-table integration
// needs (kept separate from the constructor so tests can exercise the
// processor without a full unchecked table).
func (p *BlockProcessor) SetUncheckedHooks(onUnchecked func(missing U256, blk *Block), onProgress func(hash U256)) {
	p.onUnchecked = onUnchecked
	p.onProgress = onProgress
}

// SetScheduler wires the election scheduler a Fork result dispatches to
// (kept separate from the constructor for the same reason as
// SetUncheckedHooks: tests can exercise the processor without a scheduler).
func (p *BlockProcessor) SetScheduler(scheduler *Scheduler) {
	p.scheduler = scheduler
}

// SetArrivalBuffer wires the gossip-liveness gate a Fork result consults
// before starting an election (kept separate from the constructor for the
// same reason as SetUncheckedHooks).
func (p *BlockProcessor) SetArrivalBuffer(arrivals *ArrivalBuffer) {
	p.arrivals = arrivals
}

// Add enqueues a network-originated block for batch verification (spec
// §4.D: state blocks awaiting batch verification lane).
func (p *BlockProcessor) Add(blk *Block, arrival time.Time) {
	if p.arrivals != nil {
		p.arrivals.Record(blk.Hash(), arrival)
	}
	p.mu.Lock()
	p.awaiting = append(p.awaiting, pending{blk, arrival})
	p.cond.Signal()
	p.mu.Unlock()
}

// Force enqueues blk directly to the front of the processing order,
// bypassing batch verification — used for rollback-and-replace during
// fork resolution (spec §4.D).
func (p *BlockProcessor) Force(blk *Block) {
	p.mu.Lock()
	p.forced = append(p.forced, pending{blk, time.Now()})
	p.cond.Signal()
	p.mu.Unlock()
}

// Full reports whether total queue depth exceeds FullThreshold.
func (p *BlockProcessor) Full() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.forced)+len(p.verified)+len(p.awaiting) > p.FullThreshold
}

// Flush blocks until every lane is empty.
func (p *BlockProcessor) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.forced) > 0 || len(p.verified) > 0 || len(p.awaiting) > 0 {
		p.cond.Wait()
	}
}

// Run drains the queue until ctx is cancelled or Stop is called. It is
// meant to run on exactly one goroutine (spec §5).
func (p *BlockProcessor) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	for {
		item, ok := p.next()
		if !ok {
			return
		}
		p.process(item.block)
	}
}

// Stop wakes the worker and causes it to return from Run/next.
func (p *BlockProcessor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// next pops the highest-priority item: forced first, then verified, then
// (after promoting a batch through the verifier) newly verified entries.
func (p *BlockProcessor) next() (pending, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.stopped {
			return pending{}, false
		}
		if len(p.forced) > 0 {
			item := p.forced[0]
			p.forced = p.forced[1:]
			return item, true
		}
		if len(p.verified) > 0 {
			item := p.verified[0]
			p.verified = p.verified[1:]
			return item, true
		}
		if len(p.awaiting) > 0 {
			p.promoteLocked()
			continue
		}
		p.cond.Wait()
	}
}

// promoteLocked hands up to BatchSize awaiting blocks to the verifier in
// one pass and moves the successes into the verified lane. Must be called
// with p.mu held.
func (p *BlockProcessor) promoteLocked() {
	n := len(p.awaiting)
	if n > p.BatchSize {
		n = p.BatchSize
	}
	batch := p.awaiting[:n]
	p.awaiting = p.awaiting[n:]

	batchID := uuid.New().String()
	accounts := make([]Account, n)
	hashes := make([]U256, n)
	sigs := make([]Signature, n)
	for i, item := range batch {
		acc, _ := item.block.Account()
		if item.block.Kind == KindState && p.ledger.isEpochLink(item.block.StateLink) {
			acc = p.ledger.params.EpochSigner
		}
		accounts[i] = acc
		hashes[i] = item.block.Hash()
		sigs[i] = item.block.Signature
	}
	ok := p.verifier.VerifyBatch(accounts, hashes, sigs)
	p.log.WithFields(logrus.Fields{"batch_id": batchID, "size": n}).Debug("block processor: batch verified")
	for i, item := range batch {
		if i < len(ok) && ok[i] {
			p.verified = append(p.verified, item)
		}
		// failures are simply dropped: Process would reject them with
		// bad_signature too, but verifying account resolution for
		// non-state/open blocks here would need a store lookup this lane
		// deliberately avoids; unresolved-account blocks fall through with
		// a zero account, fail VerifyBatch, and are dropped the same way
		// a bad signature is.
	}
}

// process applies one block through the ledger and handles the resulting
// code per spec §4.D.
func (p *BlockProcessor) process(blk *Block) {
	deadline := time.Now().Add(p.BatchMaxTime)
	_ = deadline // unused: this path opens and commits one transaction for
	// this one block, and Run calls it once per dequeued block, so no
	// transaction groups several blocks.

	var ret ProcessReturn
	err := p.ledger.Store().Update(func(t store.Txn) error {
		r, err := p.ledger.Process(t, blk)
		ret = r
		return err
	})
	if err != nil {
		p.log.WithError(err).Error("block processor: store update failed")
		return
	}

	switch ret.Code {
	case Progress:
		p.log.WithField("hash", blk.Hash().Hex()).Debug("block processor: progress")
		if p.onProgress != nil {
			p.onProgress(blk.Hash())
		}
	case GapPrevious:
		if p.onUnchecked != nil {
			p.onUnchecked(blk.Previous, blk)
		}
	case GapSource:
		if p.onUnchecked != nil {
			p.onUnchecked(blk.LinkOrSource(), blk)
		}
	case Fork:
		if p.scheduler != nil && (p.arrivals == nil || p.arrivals.IsLive(blk.Hash(), time.Now())) {
			p.scheduler.Start(blk)
		}
	default:
		p.log.WithFields(logrus.Fields{"hash": blk.Hash().Hex(), "code": ret.Code.String()}).Debug("block processor: rejected")
	}

	p.mu.Lock()
	if len(p.forced) == 0 && len(p.verified) == 0 && len(p.awaiting) == 0 {
		p.cond.Broadcast()
	}
	p.mu.Unlock()
}
