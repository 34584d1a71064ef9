// Package unchecked implements the dependency-hash-keyed orphan pool: blocks the ledger could not yet place because they name a
// previous, source, or epoch-open dependency it has not seen, parked for a
// retry once that dependency arrives.
package unchecked

import (
	"encoding/json"
	"sync"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/store"
)

// Tag records why a parked block could not be verified immediately: most
// blocks are simply unknown until their dependency resolves, but a block
// whose dependency is itself known to be an epoch block gets a narrower
// retry path.
type Tag int

const (
	TagUnknown Tag = iota
	TagValid
	TagValidEpoch
	TagInvalid
)

// Entry is one parked block together with the tag explaining why.
type Entry struct {
	Block blocks.Block
	Tag   Tag
}

// Pool is the in-memory working set; entries are mirrored to the store so
// a cold start can rebuild the pool without losing parked blocks.
type Pool struct {
	mu       sync.Mutex
	store    *store.Store
	capacity int

	byDependency map[blocks.BlockHash]map[blocks.BlockHash]Entry
	byAccount    map[blocks.Account]map[blocks.BlockHash]Entry
	size         int
}

func New(st *store.Store, capacity int) *Pool {
	return &Pool{
		store:        st,
		capacity:     capacity,
		byDependency: map[blocks.BlockHash]map[blocks.BlockHash]Entry{},
		byAccount:    map[blocks.Account]map[blocks.BlockHash]Entry{},
	}
}

// Put parks blk under dependency, evicting one entry if the pool is at
// capacity. The evicted entry is an arbitrary one, not necessarily the
// oldest.
func (p *Pool) Put(wtx *store.WriteTxn, dependency blocks.BlockHash, blk blocks.Block, tag Tag) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash, err := blk.Hash()
	if err != nil {
		return err
	}

	if p.capacity > 0 && p.size >= p.capacity {
		p.evictOneLocked(wtx)
	}

	if p.byDependency[dependency] == nil {
		p.byDependency[dependency] = map[blocks.BlockHash]Entry{}
	}
	entry := Entry{Block: blk, Tag: tag}
	if _, exists := p.byDependency[dependency][hash]; !exists {
		p.size++
	}
	p.byDependency[dependency][hash] = entry

	if p.byAccount[blk.Account] == nil {
		p.byAccount[blk.Account] = map[blocks.BlockHash]Entry{}
	}
	p.byAccount[blk.Account][hash] = entry

	if wtx != nil {
		value, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		wtx.PutUnchecked(dependency, hash, value)
	}
	return nil
}

// evictOneLocked drops one arbitrary entry; map iteration order is
// already randomized by the runtime, so the first entry visited is an
// adequate cheap approximation of random eviction.
func (p *Pool) evictOneLocked(wtx *store.WriteTxn) {
	for dep, entries := range p.byDependency {
		for hash, entry := range entries {
			delete(entries, hash)
			if len(entries) == 0 {
				delete(p.byDependency, dep)
			}
			if acctEntries, ok := p.byAccount[entry.Block.Account]; ok {
				delete(acctEntries, hash)
				if len(acctEntries) == 0 {
					delete(p.byAccount, entry.Block.Account)
				}
			}
			p.size--
			if wtx != nil {
				wtx.DeleteUnchecked(dep, hash)
			}
			return
		}
	}
}

// TakeByDependency removes and returns every block parked on dependency,
// called once that dependency has just been processed.
func (p *Pool) TakeByDependency(wtx *store.WriteTxn, dependency blocks.BlockHash) []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	bucket, ok := p.byDependency[dependency]
	if !ok {
		return nil
	}
	out := make([]Entry, 0, len(bucket))
	for hash, entry := range bucket {
		out = append(out, entry)
		if acctEntries, ok := p.byAccount[entry.Block.Account]; ok {
			delete(acctEntries, hash)
			if len(acctEntries) == 0 {
				delete(p.byAccount, entry.Block.Account)
			}
		}
		if wtx != nil {
			wtx.DeleteUnchecked(dependency, hash)
		}
		p.size--
	}
	delete(p.byDependency, dependency)
	return out
}

// ByAccount supports a dual-probe lookup: a parked
// block can be resubmitted either by its dependency hash resolving, or by
// its destination account being queried directly (e.g. a wallet asking
// "do I have anything pending, even unchecked?").
func (p *Pool) ByAccount(a blocks.Account) []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	bucket := p.byAccount[a]
	out := make([]Entry, 0, len(bucket))
	for _, entry := range bucket {
		out = append(out, entry)
	}
	return out
}

// Remove drops a single parked entry, found via the account probe rather
// than TakeByDependency, from both indices and the persisted table. The
// caller supplies dependency since it is not recoverable from account
// alone (an epoch-open block's dependency is the epoch sentinel, not a
// real block hash a later TakeByDependency call could ever match).
func (p *Pool) Remove(wtx *store.WriteTxn, dependency blocks.BlockHash, account blocks.Account, hash blocks.BlockHash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if bucket, ok := p.byDependency[dependency]; ok {
		if _, exists := bucket[hash]; exists {
			delete(bucket, hash)
			if len(bucket) == 0 {
				delete(p.byDependency, dependency)
			}
			p.size--
		}
	}
	if bucket, ok := p.byAccount[account]; ok {
		delete(bucket, hash)
		if len(bucket) == 0 {
			delete(p.byAccount, account)
		}
	}
	if wtx != nil {
		wtx.DeleteUnchecked(dependency, hash)
	}
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Rebuild reconstructs the in-memory index from the store's unchecked
// table; call once on cold start.
func (p *Pool) Rebuild(r *store.ReadTxn, allDependencies []blocks.BlockHash) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byDependency = map[blocks.BlockHash]map[blocks.BlockHash]Entry{}
	p.byAccount = map[blocks.Account]map[blocks.BlockHash]Entry{}
	p.size = 0

	for _, dep := range allDependencies {
		raw, err := p.store.UncheckedByDependency(r, dep)
		if err != nil {
			return err
		}
		for hash, value := range raw {
			var entry Entry
			if err := json.Unmarshal(value, &entry); err != nil {
				return err
			}
			if p.byDependency[dep] == nil {
				p.byDependency[dep] = map[blocks.BlockHash]Entry{}
			}
			p.byDependency[dep][hash] = entry
			if p.byAccount[entry.Block.Account] == nil {
				p.byAccount[entry.Block.Account] = map[blocks.BlockHash]Entry{}
			}
			p.byAccount[entry.Block.Account][hash] = entry
			p.size++
		}
	}
	return nil
}
