// Package kvdb wraps CometBFT's dbm.DB so the ledger store (internal/store)
// can sit on top of an ordered key-value engine without depending on
// cometbft-db directly, widened from a bare Get/Set pair to the
// range-iteration and delete surface the ledger store's tables need.
package kvdb

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KV is the ordered key-value contract the ledger store is built on.
type KV interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Iterator ranges over [start, end) in ascending key order; a nil end
	// means "to the end of the keyspace". Callers must Close the iterator.
	Iterator(start, end []byte) (Iterator, error)
	Close() error
}

// Iterator walks a key range. It mirrors dbm.Iterator so callers never
// import cometbft-db themselves.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}

// Adapter wraps a CometBFT dbm.DB and exposes KV.
type Adapter struct {
	db dbm.DB
}

// NewAdapter wraps an already-open dbm.DB.
func NewAdapter(db dbm.DB) *Adapter { return &Adapter{db: db} }

// NewMemory opens an in-memory engine: the default for tests and for the
// "bootstrap from genesis" path before a data directory exists.
func NewMemory() *Adapter { return NewAdapter(dbm.NewMemDB()) }

// NewGoLevelDB opens a durable on-disk engine rooted at dir/name.db.
func NewGoLevelDB(name, dir string) (*Adapter, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, err
	}
	return NewAdapter(db), nil
}

func (a *Adapter) Get(key []byte) ([]byte, error) { return a.db.Get(key) }

func (a *Adapter) Has(key []byte) (bool, error) { return a.db.Has(key) }

// Set writes durably: the ledger is the sole writer and every write must
// survive a crash immediately after the commit that produced it.
func (a *Adapter) Set(key, value []byte) error { return a.db.SetSync(key, value) }

func (a *Adapter) Delete(key []byte) error { return a.db.DeleteSync(key) }

func (a *Adapter) Close() error { return a.db.Close() }

func (a *Adapter) Iterator(start, end []byte) (Iterator, error) {
	it, err := a.db.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	return it, nil
}
