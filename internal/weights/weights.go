// Package weights maintains the live representative weight cache: the sum of account balances delegating to each
// representative, with a hard bootstrap-weights cutover below a configured
// block-count threshold rather than a blended estimate.
package weights

import (
	"sync"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
)

// Cache is the single owner of representative weight state; no package
// level mutable state is used anywhere in this module.
type Cache struct {
	mu sync.RWMutex

	// seed holds the bootstrap weights loaded from a trusted snapshot, used
	// verbatim below threshold.
	seed map[blocks.Account]blocks.Amount

	// live holds the weight this process has itself aggregated by walking
	// every account's delegated balance.
	live map[blocks.Account]blocks.Amount

	// blockCount is the running total of processed blocks across the
	// ledger; it is the sole input to the bootstrap cutover decision.
	blockCount     uint64
	bootstrapLimit uint64
}

// New builds an empty cache. Call LoadSeed once during startup with the
// bootstrap snapshot (if any) before the ledger begins processing blocks.
func New(bootstrapLimit uint64) *Cache {
	return &Cache{
		seed:           map[blocks.Account]blocks.Amount{},
		live:           map[blocks.Account]blocks.Amount{},
		bootstrapLimit: bootstrapLimit,
	}
}

// LoadSeed installs the bootstrap weight snapshot. It must be called before
// any block is processed through SetBlockCount/Add/Subtract.
func (c *Cache) LoadSeed(seed map[blocks.Account]blocks.Amount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seed = make(map[blocks.Account]blocks.Amount, len(seed))
	for k, v := range seed {
		c.seed[k] = v
	}
}

// SetBlockCount records the ledger's current total block count; it drives
// the bootstrap/live cutover decision in Weight.
func (c *Cache) SetBlockCount(n uint64) {
	c.mu.Lock()
	c.blockCount = n
	c.mu.Unlock()
}

// usingBootstrap reports whether the cache is still below the threshold
// that switches it from seed weights to live-aggregated weights. This is a
// hard switch, never a blend: below threshold the live side is still being
// populated from a cold or partial ledger and is not yet trustworthy.
func (c *Cache) usingBootstrap() bool {
	return c.blockCount < c.bootstrapLimit
}

// Weight returns the representative's current weight.
func (c *Cache) Weight(rep blocks.Account) blocks.Amount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.usingBootstrap() {
		return c.seed[rep]
	}
	return c.live[rep]
}

// Add increases rep's live weight by delta. Callers (the ledger) call this
// on every block that establishes or increases a delegation.
func (c *Cache) Add(rep blocks.Account, delta blocks.Amount) {
	if delta.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live[rep] = c.live[rep].Add(delta)
}

// Subtract decreases rep's live weight by delta, used on rollback and on
// representative change away from rep. It is a logic error for delta to
// exceed the account's tracked weight; that is the ledger's invariant to
// maintain, not this cache's to re-derive.
func (c *Cache) Subtract(rep blocks.Account, delta blocks.Amount) {
	if delta.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live[rep] = c.live[rep].Sub(delta)
}

// Snapshot returns a copy of the currently active weight table (bootstrap
// or live, whichever Weight would read from), for RPC/election consumers
// that need a full ranked list rather than a single lookup.
func (c *Cache) Snapshot() map[blocks.Account]blocks.Amount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.live
	if c.usingBootstrap() {
		src = c.seed
	}
	out := make(map[blocks.Account]blocks.Amount, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// RebuildFromAccounts recomputes the live table from scratch by walking
// every known account's balance and current representative. This is the
// cold-start recovery path: the weight cache is a derived structure and
// must be fully reconstructible from the store alone.
func RebuildFromAccounts(accounts map[blocks.Account]*blocks.AccountInfo) map[blocks.Account]blocks.Amount {
	live := map[blocks.Account]blocks.Amount{}
	for _, info := range accounts {
		if info.Balance.IsZero() {
			continue
		}
		live[info.Representative] = live[info.Representative].Add(info.Balance)
	}
	return live
}

// Rebuild replaces the live table wholesale, used after RebuildFromAccounts
// on cold start.
func (c *Cache) Rebuild(live map[blocks.Account]blocks.Amount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live = live
}
