// Package election implements the per-qualified-root election arena (spec
// component C7): a tally of votes over competing candidate blocks sharing
// one chain position, promoting the top-tallied candidate as winner when
// ConfirmOnce is called and rolling back every losing candidate through the
// ledger. The arena applies no quorum threshold of its own.
package election

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/ledger"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/store"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/weights"
	"github.com/FutureHeadCoin/futurehead-node-sub000/pkg/logging"
)

// Class is the outcome of applying a single vote to an election.
type Class int

const (
	ClassVote Class = iota
	ClassReplay
	ClassIndeterminate
)

func (c Class) String() string {
	switch c {
	case ClassVote:
		return "vote"
	case ClassReplay:
		return "replay"
	case ClassIndeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

type voterRecord struct {
	hash      blocks.BlockHash
	sequence  uint64
	timestamp time.Time
}

type bufferedVote struct {
	voter     blocks.Account
	sequence  uint64
	timestamp time.Time
}

// Result is reported to an Arena's observer once confirm_once commits a
// winner.
type Result struct {
	Root   blocks.QualifiedRoot
	Winner blocks.BlockHash
	Losers []blocks.BlockHash
}

// election is one root's in-progress contest. All state is guarded by the
// owning Arena's per-election mutex.
type election struct {
	mu sync.Mutex

	// id has no semantic role in tallying; it only correlates this
	// election's log lines across Insert, Vote and ConfirmOnce calls.
	id         uuid.UUID
	root       blocks.QualifiedRoot
	candidates map[blocks.BlockHash]blocks.Block
	voters     map[blocks.Account]voterRecord
	// buffered holds votes for hashes not yet inserted as candidates, so a
	// vote arriving slightly ahead of its block is not lost.
	buffered map[blocks.BlockHash][]bufferedVote

	confirmed bool
	winner    blocks.BlockHash
	createdAt time.Time
	expiresAt time.Time
}

// Arena owns every open election, keyed by qualified root.
type Arena struct {
	mu       sync.Mutex
	byRoot   map[blocks.QualifiedRoot]*election
	byHash   map[blocks.BlockHash]blocks.QualifiedRoot // candidate hash -> its root, for vote routing
	cooldown time.Duration
	expiry   time.Duration

	weights  *weights.Cache
	ledger   *ledger.Ledger
	store    *store.Store
	log      *logging.Logger
	now      func() time.Time
	observer func(Result)
}

func New(w *weights.Cache, l *ledger.Ledger, st *store.Store, log *logging.Logger, cooldown, expiry time.Duration, now func() time.Time) *Arena {
	return &Arena{
		byRoot:   map[blocks.QualifiedRoot]*election{},
		byHash:   map[blocks.BlockHash]blocks.QualifiedRoot{},
		cooldown: cooldown,
		expiry:   expiry,
		weights:  w,
		ledger:   l,
		store:    st,
		log:      log,
		now:      now,
	}
}

// RootForCandidate reports the qualified root of the election currently
// holding hash as a candidate, if any. The vote processor uses this to
// route an inbound vote without knowing the root in advance.
func (a *Arena) RootForCandidate(hash blocks.BlockHash) (blocks.QualifiedRoot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	root, ok := a.byHash[hash]
	return root, ok
}

// OnConfirm registers the callback invoked after confirm_once commits a
// winner. Only one observer is supported; the daemon wiring is the sole
// caller.
func (a *Arena) OnConfirm(fn func(Result)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observer = fn
}

// Active reports how many elections are currently open, for the
// elections_active gauge.
func (a *Arena) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byRoot)
}

// electionFor returns the election for root, creating one if absent.
func (a *Arena) electionFor(root blocks.QualifiedRoot) *election {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.byRoot[root]
	if ok {
		return e
	}
	now := a.now()
	e = &election{
		id:         uuid.New(),
		root:       root,
		candidates: map[blocks.BlockHash]blocks.Block{},
		voters:     map[blocks.Account]voterRecord{},
		buffered:   map[blocks.BlockHash][]bufferedVote{},
		createdAt:  now,
		expiresAt:  now.Add(a.expiry),
	}
	a.byRoot[root] = e
	if a.log != nil {
		a.log.Debug("election opened", logging.Field{Key: "election_id", Value: e.id}, logging.Field{Key: "root", Value: root})
	}
	return e
}

// Insert adds blk as a candidate on its qualified root, creating the
// election if this is the first block seen for that root. Any votes
// buffered for this hash ahead of the block's arrival are replayed.
func (a *Arena) Insert(blk blocks.Block) error {
	hash, err := blk.Hash()
	if err != nil {
		return err
	}
	root := blk.QualifiedRoot()
	e := a.electionFor(root)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.candidates[hash]; exists {
		return nil
	}
	e.candidates[hash] = blk

	a.mu.Lock()
	a.byHash[hash] = root
	a.mu.Unlock()

	for _, bv := range e.buffered[hash] {
		a.applyVoteLocked(e, bv.voter, hash, bv.sequence, bv.timestamp)
	}
	delete(e.buffered, hash)
	return nil
}

// Vote applies one voter's ballot for hash within root's election,
// buffering it if hash has not yet been inserted as a candidate.
func (a *Arena) Vote(root blocks.QualifiedRoot, voter blocks.Account, hash blocks.BlockHash, sequence uint64, timestamp time.Time) Class {
	e := a.electionFor(root)

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.candidates[hash]; !ok {
		e.buffered[hash] = append(e.buffered[hash], bufferedVote{voter: voter, sequence: sequence, timestamp: timestamp})
		return ClassIndeterminate
	}
	return a.applyVoteLocked(e, voter, hash, sequence, timestamp)
}

// applyVoteLocked implements the vote/replay/indeterminate classification.
// Caller must hold e.mu.
func (a *Arena) applyVoteLocked(e *election, voter blocks.Account, hash blocks.BlockHash, sequence uint64, timestamp time.Time) Class {
	prior, ok := e.voters[voter]
	if !ok {
		e.voters[voter] = voterRecord{hash: hash, sequence: sequence, timestamp: timestamp}
		return ClassVote
	}
	if sequence <= prior.sequence {
		return ClassReplay
	}
	if timestamp.Sub(prior.timestamp) < a.cooldown {
		return ClassIndeterminate
	}
	e.voters[voter] = voterRecord{hash: hash, sequence: sequence, timestamp: timestamp}
	return ClassVote
}

// Tally sums the weight of current voters per candidate hash, returning
// hashes sorted by weight descending with hash-value as the tiebreak.
func (a *Arena) Tally(root blocks.QualifiedRoot) []blocks.BlockHash {
	a.mu.Lock()
	e, ok := a.byRoot[root]
	a.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	weight := make(map[blocks.BlockHash]blocks.Amount, len(e.candidates))
	for hash := range e.candidates {
		weight[hash] = blocks.ZeroAmount
	}
	for voter, v := range e.voters {
		weight[v.hash] = weight[v.hash].Add(a.weights.Weight(voter))
	}
	hashes := make([]blocks.BlockHash, 0, len(e.candidates))
	for hash := range e.candidates {
		hashes = append(hashes, hash)
	}
	e.mu.Unlock()

	sortByWeightDesc(hashes, weight)
	return hashes
}

func sortByWeightDesc(hashes []blocks.BlockHash, weight map[blocks.BlockHash]blocks.Amount) {
	for i := 1; i < len(hashes); i++ {
		for j := i; j > 0; j-- {
			a, b := hashes[j-1], hashes[j]
			cmp := weight[a].Cmp(weight[b])
			if cmp > 0 || (cmp == 0 && lessHash(a, b)) {
				break
			}
			hashes[j-1], hashes[j] = hashes[j], hashes[j-1]
		}
	}
}

func lessHash(a, b blocks.BlockHash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ConfirmOnce promotes the highest-weight candidate to winner, rolls back
// every other candidate currently applied to the ledger, applies the
// winner if it lost its original fork race and was never itself applied,
// commits the winner's height into confirmation-height, and notifies the
// observer. It is a no-op if root has no election or is already confirmed.
//
// At most one candidate on a root can be applied at any time (a qualified
// root names an exact chain position, and the ledger only ever holds one
// block at that position), so "roll back every losing candidate" reduces
// to: find whichever candidate is currently stored and is not the winner,
// and roll it back; then apply the winner if it is not that same stored
// block.
func (a *Arena) ConfirmOnce(root blocks.QualifiedRoot) error {
	a.mu.Lock()
	e, ok := a.byRoot[root]
	a.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	if e.confirmed || len(e.candidates) == 0 {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	ranked := a.Tally(root)
	if len(ranked) == 0 {
		return nil
	}
	winner := ranked[0]

	e.mu.Lock()
	winnerBlock := e.candidates[winner]
	losers := ranked[1:]
	e.mu.Unlock()

	wtx := a.store.BeginWrite(store.RoleRollback)
	defer wtx.Abort() // no-op once Commit has succeeded

	for _, loser := range losers {
		if _, err := wtx.BlockInTxn(loser); err != nil {
			continue // this candidate was never the applied block; nothing to roll back
		}
		if err := a.ledger.Rollback(wtx, loser); err != nil {
			return err
		}
	}

	sb, err := wtx.BlockInTxn(winner)
	if err != nil {
		// The winner lost its original fork race and was never applied;
		// apply it now that its competitors have been rolled back.
		result, processErr := a.ledger.Process(wtx, &winnerBlock)
		if processErr != nil {
			return processErr
		}
		if !result.Accepted() {
			return fmt.Errorf("election: winner %s did not apply cleanly: %s", winner, result)
		}
		sb, err = wtx.BlockInTxn(winner)
		if err != nil {
			return err
		}
	}
	if err := wtx.PutConfirmationHeight(sb.Sideband.Account, &blocks.ConfirmationHeight{
		Height:   sb.Sideband.Height,
		Frontier: winner,
	}); err != nil {
		return err
	}

	if err := wtx.Commit(); err != nil {
		return err
	}

	e.mu.Lock()
	e.confirmed = true
	e.winner = winner
	id := e.id
	e.mu.Unlock()

	if a.log != nil {
		a.log.Info("election confirmed", logging.Field{Key: "election_id", Value: id}, logging.Field{Key: "root", Value: root}, logging.Field{Key: "winner", Value: winner})
	}

	e.mu.Lock()
	allHashes := make([]blocks.BlockHash, 0, len(e.candidates))
	for h := range e.candidates {
		allHashes = append(allHashes, h)
	}
	e.mu.Unlock()

	a.mu.Lock()
	delete(a.byRoot, root)
	for _, h := range allHashes {
		delete(a.byHash, h)
	}
	observer := a.observer
	a.mu.Unlock()

	if observer != nil {
		observer(Result{Root: root, Winner: winner, Losers: losers})
	}
	return nil
}

// ExpireStale removes every election past its wall-clock expiry, returning
// their roots so callers can fall back to the normal fork-resolution path
// on next arrival.
func (a *Arena) ExpireStale() []blocks.QualifiedRoot {
	now := a.now()
	a.mu.Lock()
	defer a.mu.Unlock()

	var expired []blocks.QualifiedRoot
	for root, e := range a.byRoot {
		e.mu.Lock()
		stale := !e.confirmed && now.After(e.expiresAt)
		e.mu.Unlock()
		if stale {
			expired = append(expired, root)
			delete(a.byRoot, root)
			e.mu.Lock()
			for h := range e.candidates {
				delete(a.byHash, h)
			}
			e.mu.Unlock()
		}
	}
	return expired
}
