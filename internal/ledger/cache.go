package ledger

import "sync"

// Cache is the ledger's single owner of derived, in-memory counters: values
// that could always be recomputed from the store but are kept hot to avoid
// a full scan on every query.
type Cache struct {
	mu sync.RWMutex

	accountCount uint64
	blockCount   uint64
	cementedCount uint64

	// epoch2Started is derived, never authoritative: it is true once any
	// epoch-2 block has been observed, and exists only to answer queries
	// cheaply. Losing it costs nothing but a rebuild scan (Open Question:
	// resolved as derived-only, recomputed by Rebuild on cold start).
	epoch2Started bool
}

func NewCache() *Cache { return &Cache{} }

func (c *Cache) AccountCount() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accountCount
}

func (c *Cache) BlockCount() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blockCount
}

func (c *Cache) CementedCount() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cementedCount
}

func (c *Cache) Epoch2Started() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch2Started
}

func (c *Cache) addAccount(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountCount = addSigned(c.accountCount, delta)
}

func (c *Cache) addBlock(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockCount = addSigned(c.blockCount, delta)
}

func (c *Cache) addCemented(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cementedCount = addSigned(c.cementedCount, delta)
}

func (c *Cache) observeEpoch(epoch uint32) {
	if epoch < 2 {
		return
	}
	c.mu.Lock()
	c.epoch2Started = true
	c.mu.Unlock()
}

// Rebuild replaces every counter wholesale, used on cold start once the
// store has been scanned.
func (c *Cache) Rebuild(accountCount, blockCount, cementedCount uint64, epoch2Started bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accountCount = accountCount
	c.blockCount = blockCount
	c.cementedCount = cementedCount
	c.epoch2Started = epoch2Started
}

func addSigned(v uint64, delta int64) uint64 {
	if delta < 0 {
		d := uint64(-delta)
		if d > v {
			return 0
		}
		return v - d
	}
	return v + uint64(delta)
}
