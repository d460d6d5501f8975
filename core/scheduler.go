package core

// Announcer drives the periodic confirm_req rebroadcast spec §4.F
// describes: every tick it walks the active elections in difficulty
// order, takes the first N, and rebroadcasts a confirm_req for each's
// leading candidate to a random peer fan-out, flagging elections that have
// sat unconfirmed past the "stuck" threshold.
//
// Grounded on synnergy-network's now-absorbed consensus.go
// ticker loop (context.Context-driven, fixed interval, single goroutine).

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// announcementBatch is how many roots a single tick rebroadcasts (spec
// §4.F).
const announcementBatch = 32

// announcementMin is the tick count after which an unconfirmed election is
// logged at info level (spec §4.F).
const announcementMin = 2

// announcementLong is the tick count after which an unconfirmed election
// is logged as stuck (spec §4.F).
const announcementLong = 20

// AnnounceInterval returns the announcement period for a test network
// (10ms) versus live/beta (16s), spec §4.F.
func AnnounceInterval(test bool) time.Duration {
	if test {
		return 10 * time.Millisecond
	}
	return 16 * time.Second
}

// Announcer ticks the election scheduler, rebroadcasting confirm_req for
// the highest-difficulty outstanding roots.
type Announcer struct {
	scheduler *Scheduler
	peers     *PeerTable
	log       *logrus.Logger
	interval  time.Duration

	ticks map[U256]int // root -> tick count since it first appeared, for stuck detection

	// Rebroadcast sends a confirm_req for blk to the given peer. Supplied
	// by the caller since the wire send itself belongs to the transport
	// layer.
	Rebroadcast func(peer PeerEntry, blk *Block)
}

// NewAnnouncer wires an announcer against scheduler and peers, ticking
// every interval.
func NewAnnouncer(scheduler *Scheduler, peers *PeerTable, interval time.Duration, log *logrus.Logger) *Announcer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Announcer{scheduler: scheduler, peers: peers, log: log, interval: interval, ticks: make(map[U256]int)}
}

// Run ticks until ctx is cancelled.
func (a *Announcer) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

// tick performs one announcement round.
func (a *Announcer) tick() {
	roots := a.scheduler.RootsByDifficulty()
	seen := make(map[U256]struct{}, len(roots))
	for _, root := range roots {
		seen[root] = struct{}{}
	}
	for root := range a.ticks {
		if _, ok := seen[root]; !ok {
			delete(a.ticks, root)
		}
	}

	if len(roots) > announcementBatch {
		roots = roots[:announcementBatch]
	}

	fanout := a.peers.ListFanout()
	for _, root := range roots {
		a.ticks[root]++
		count := a.ticks[root]

		switch {
		case count == announcementLong:
			a.log.WithField("root", root.Hex()).Warn("election stuck: no confirmation after repeated announcements")
		case count == announcementMin:
			a.log.WithField("root", root.Hex()).Info("election still unconfirmed after minimum announcement count")
		}

		blk := a.leaderBlock(root)
		if blk == nil || a.Rebroadcast == nil {
			continue
		}
		for _, peer := range fanout {
			a.Rebroadcast(peer, blk)
		}
	}
}

func (a *Announcer) leaderBlock(root U256) *Block {
	a.scheduler.mu.Lock()
	defer a.scheduler.mu.Unlock()
	e, ok := a.scheduler.elections[root]
	if !ok {
		return nil
	}
	leader := e.leadingHash()
	return e.Candidates[leader]
}
