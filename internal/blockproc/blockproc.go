// Package blockproc implements the serial block processor (spec component
// C6): a single worker draining a queue of inbound blocks, routing each
// through decode/signature checks into the ledger, and dispatching the
// ledger's verdict to the unchecked pool or the election arena.
package blockproc

import (
	"context"
	"sync"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/election"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/ledger"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/metrics"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/store"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/unchecked"
	"github.com/FutureHeadCoin/futurehead-node-sub000/pkg/logging"
)

// Processor is the single serial worker that owns block ingestion. It
// must not be called from more than one goroutine concurrently; callers
// wanting concurrent submission should use Submit, which queues onto the
// worker loop.
type Processor struct {
	store     *store.Store
	ledger    *ledger.Ledger
	unchecked *unchecked.Pool
	arena     *election.Arena
	metrics   *metrics.Registry
	log       *logging.Logger

	queue chan job
	wg    sync.WaitGroup
}

type job struct {
	blk   blocks.Block
	done  chan result
	flush bool // true for the no-op sentinel Flush queues behind pending work
}

type result struct {
	res ledger.ProcessResult
	err error
}

func New(st *store.Store, l *ledger.Ledger, u *unchecked.Pool, arena *election.Arena, m *metrics.Registry, log *logging.Logger) *Processor {
	return &Processor{
		store:     st,
		ledger:    l,
		unchecked: u,
		arena:     arena,
		metrics:   m,
		log:       log,
		queue:     make(chan job, 1024),
	}
}

// Run drains the queue until ctx is cancelled or Close is called, whichever
// comes first. It is meant to be launched once in its own goroutine.
func (p *Processor) Run(ctx context.Context) {
	p.wg.Add(1)
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			var res ledger.ProcessResult
			var err error
			if !j.flush {
				res, err = p.processOne(j.blk)
			}
			if j.done != nil {
				j.done <- result{res: res, err: err}
			}
		}
	}
}

// Close stops accepting new work and waits for Run to drain what is
// already queued.
func (p *Processor) Close() {
	close(p.queue)
	p.wg.Wait()
}

// Submit enqueues blk and returns immediately; the caller does not learn
// the outcome.
func (p *Processor) Submit(blk blocks.Block) {
	p.queue <- job{blk: blk}
}

// SubmitSync enqueues blk and blocks until it has been processed,
// returning its outcome. This is the "blocking" path tests and bootstrap
// code use instead of polling Flush.
func (p *Processor) SubmitSync(blk blocks.Block) (ledger.ProcessResult, error) {
	done := make(chan result, 1)
	p.queue <- job{blk: blk, done: done}
	r := <-done
	return r.res, r.err
}

// Flush blocks until every block queued before this call has been
// processed, by queueing a no-op sentinel behind them and waiting for it
// to drain.
func (p *Processor) Flush() {
	done := make(chan result, 1)
	p.queue <- job{done: done, flush: true}
	<-done
}

// processOne runs the decode/verify/dispatch pipeline for one block.
func (p *Processor) processOne(blk blocks.Block) (ledger.ProcessResult, error) {
	hash, err := blk.Hash()
	if err != nil {
		if p.log != nil {
			p.log.Warn("blockproc: malformed block rejected", logging.Field{Key: "error", Value: err.Error()})
		}
		return ledger.BadSignature, nil
	}

	wtx := p.store.BeginWrite(store.RoleBlockProcessor)
	res, err := p.ledger.Process(wtx, &blk)
	if err != nil {
		wtx.Abort()
		return res, err
	}

	switch res {
	case ledger.Progress:
		p.onAccepted(wtx, hash, &blk)
		if err := wtx.Commit(); err != nil {
			return res, err
		}
	case ledger.GapPrevious:
		wtx.Abort()
		p.park(blk.Previous, blk, unchecked.TagUnknown)
	case ledger.GapSource:
		wtx.Abort()
		p.park(sourceOf(&blk), blk, unchecked.TagUnknown)
	case ledger.GapEpochOpenPending:
		wtx.Abort()
		p.park(sourceOf(&blk), blk, unchecked.TagValidEpoch)
	case ledger.Fork:
		wtx.Abort()
		if err := p.arena.Insert(blk); err != nil {
			return res, err
		}
	case ledger.Old:
		wtx.Abort()
	default:
		wtx.Abort()
	}

	if p.metrics != nil {
		p.metrics.ObserveProcessResult(res)
	}
	return res, nil
}

// onAccepted probes the unchecked pool twice for a block that just landed,
// as spec'd: once by the block's own hash (blocks parked waiting for it as
// their previous/source dependency), and, if it was a send, once more by
// its destination account. The second probe exists because an
// epoch-labelled open block gapped on GapEpochOpenPending is parked keyed
// by the epoch sentinel (sourceOf returns blk.Link, not a real pending
// source), a value no send's hash will ever equal — the only way such an
// entry is ever retried is by account once its pending entry appears.
func (p *Processor) onAccepted(wtx *store.WriteTxn, hash blocks.BlockHash, blk *blocks.Block) {
	p.drainUnchecked(wtx, hash)

	sb, err := wtx.BlockInTxn(hash)
	if err != nil || !sb.Sideband.Details.IsSend {
		return
	}
	p.drainByAccount(wtx, destinationOf(blk))
}

// drainUnchecked retries every block parked on hash now that it has just
// been processed successfully, recursing into the same write transaction
// so a chain of previously-gapped blocks lands atomically with the block
// that unblocked it.
func (p *Processor) drainUnchecked(wtx *store.WriteTxn, hash blocks.BlockHash) {
	if p.unchecked == nil {
		return
	}
	for _, entry := range p.unchecked.TakeByDependency(wtx, hash) {
		res, err := p.ledger.Process(wtx, &entry.Block)
		if err != nil || !res.Accepted() {
			continue
		}
		retryHash, err := entry.Block.Hash()
		if err != nil {
			continue
		}
		p.onAccepted(wtx, retryHash, &entry.Block)
	}
}

// drainByAccount retries every block parked under account's destination
// probe, removing each from both pool indices as it is resubmitted since
// it did not arrive through TakeByDependency.
func (p *Processor) drainByAccount(wtx *store.WriteTxn, account blocks.Account) {
	if p.unchecked == nil {
		return
	}
	for _, entry := range p.unchecked.ByAccount(account) {
		res, err := p.ledger.Process(wtx, &entry.Block)
		if err != nil || !res.Accepted() {
			continue
		}
		retryHash, err := entry.Block.Hash()
		if err != nil {
			continue
		}
		p.unchecked.Remove(wtx, sourceOf(&entry.Block), account, retryHash)
		p.onAccepted(wtx, retryHash, &entry.Block)
	}
}

func (p *Processor) park(dependency blocks.BlockHash, blk blocks.Block, tag unchecked.Tag) {
	if p.unchecked == nil {
		return
	}
	wtx := p.store.BeginWrite(store.RoleBlockProcessor)
	defer wtx.Abort()
	if err := p.unchecked.Put(wtx, dependency, blk, tag); err != nil {
		if p.log != nil {
			p.log.Warn("blockproc: failed to park block", logging.Field{Key: "error", Value: err.Error()})
		}
		return
	}
	if err := wtx.Commit(); err != nil && p.log != nil {
		p.log.Warn("blockproc: failed to commit parked block", logging.Field{Key: "error", Value: err.Error()})
	}
}

// sourceOf returns the dependency hash a receive/open block names: Link
// for a state block, Source for a legacy receive/open block.
func sourceOf(blk *blocks.Block) blocks.BlockHash {
	if blk.Kind == blocks.KindState {
		return blocks.BlockHash(blk.Link)
	}
	return blk.Source
}

// destinationOf returns the account a send block names: Link for a state
// block, Destination for a legacy send block.
func destinationOf(blk *blocks.Block) blocks.Account {
	if blk.Kind == blocks.KindState {
		return blocks.Account(blk.Link)
	}
	return blk.Destination
}
