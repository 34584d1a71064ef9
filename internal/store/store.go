// Package store implements the account-indexed persistent tables: accounts, blocks+sideband, pending, frontiers,
// confirmation heights, representation-overrides, peers, online-weight
// samples, unchecked and meta, all sitting on one ordered key-value engine.
package store

import (
	"errors"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/pkg/kvdb"
)

const schemaVersion = 1

// ErrNotFound is returned by point lookups with no matching record; the
// store never returns (nil, nil) for "missing".
var ErrNotFound = errors.New("store: not found")

// Store owns one kvdb.KV engine and arbitrates the single active writer.
type Store struct {
	kv    kvdb.KV
	write *writeQueue
}

func New(kv kvdb.KV) *Store {
	return &Store{kv: kv, write: newWriteQueue()}
}

func (s *Store) Close() error { return s.kv.Close() }

// BeginRead opens a read-only snapshot transaction.
func (s *Store) BeginRead() *ReadTxn { return &ReadTxn{s: s} }

// BeginWrite blocks until this role holds the single write ticket, then
// returns a transaction whose mutations are invisible until Commit.
func (s *Store) BeginWrite(role Role) *WriteTxn {
	s.write.acquire(role)
	return &WriteTxn{s: s, role: role, overlay: map[string][]byte{}, deleted: map[string]bool{}}
}

// Commit flushes the transaction and releases the write ticket. Callers
// must call either Commit or Abort exactly once.
func (t *WriteTxn) Commit() error {
	if t.released {
		return errors.New("store: transaction already closed")
	}
	err := t.commit()
	t.released = true
	t.s.write.release()
	return err
}

// Abort discards the buffered writes and releases the write ticket without
// touching the underlying store.
func (t *WriteTxn) Abort() {
	if t.released {
		return
	}
	t.released = true
	t.s.write.release()
}

// ---- accounts ----

func (s *Store) Account(r *ReadTxn, a blocks.Account) (*blocks.AccountInfo, error) {
	v, err := r.get(accountKey(a))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return blocks.DecodeAccountInfo(v)
}

func (t *WriteTxn) PutAccount(a blocks.Account, info *blocks.AccountInfo) error {
	v, err := blocks.EncodeAccountInfo(info)
	if err != nil {
		return err
	}
	t.Set(accountKey(a), v)
	return nil
}

func (t *WriteTxn) DeleteAccount(a blocks.Account) { t.Delete(accountKey(a)) }

func (t *WriteTxn) AccountInTxn(a blocks.Account) (*blocks.AccountInfo, error) {
	v, err := t.Get(accountKey(a))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return blocks.DecodeAccountInfo(v)
}

// AccountCount returns the number of opened accounts.
func (s *Store) AccountCount(r *ReadTxn) (uint64, error) {
	it, err := r.iterate(prefixAccount, prefixUpperBound(prefixAccount))
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var n uint64
	for ; it.Valid(); it.Next() {
		n++
	}
	return n, nil
}

// ---- blocks ----

func (s *Store) Block(r *ReadTxn, h blocks.BlockHash) (*blocks.StoredBlock, error) {
	v, err := r.get(blockKey(h))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return blocks.DecodeStoredBlock(v)
}

func (t *WriteTxn) BlockInTxn(h blocks.BlockHash) (*blocks.StoredBlock, error) {
	v, err := t.Get(blockKey(h))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return blocks.DecodeStoredBlock(v)
}

func (t *WriteTxn) PutBlock(h blocks.BlockHash, sb *blocks.StoredBlock) error {
	v, err := blocks.EncodeStoredBlock(sb)
	if err != nil {
		return err
	}
	t.Set(blockKey(h), v)
	return nil
}

func (t *WriteTxn) DeleteBlock(h blocks.BlockHash) { t.Delete(blockKey(h)) }

func (s *Store) BlockCount(r *ReadTxn) (uint64, error) {
	it, err := r.iterate(prefixBlock, prefixUpperBound(prefixBlock))
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var n uint64
	for ; it.Valid(); it.Next() {
		n++
	}
	return n, nil
}

// ---- pending ----

func (s *Store) Pending(r *ReadTxn, k blocks.PendingKey) (*blocks.PendingEntry, error) {
	v, err := r.get(pendingKey(k))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return blocks.DecodePendingEntry(v)
}

func (t *WriteTxn) PendingInTxn(k blocks.PendingKey) (*blocks.PendingEntry, error) {
	v, err := t.Get(pendingKey(k))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return blocks.DecodePendingEntry(v)
}

func (t *WriteTxn) PutPending(k blocks.PendingKey, e *blocks.PendingEntry) error {
	v, err := blocks.EncodePendingEntry(e)
	if err != nil {
		return err
	}
	t.Set(pendingKey(k), v)
	return nil
}

func (t *WriteTxn) DeletePending(k blocks.PendingKey) { t.Delete(pendingKey(k)) }

// AccountPending lists every pending entry receivable by a, keyed by send
// hash; the map carries no order.
func (s *Store) AccountPending(r *ReadTxn, a blocks.Account) (map[blocks.BlockHash]blocks.PendingEntry, error) {
	prefix := pendingPrefixForAccount(a)
	it, err := r.iterate(prefix, prefixUpperBound(prefix))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	out := map[blocks.BlockHash]blocks.PendingEntry{}
	for ; it.Valid(); it.Next() {
		key := it.Key()
		var hash blocks.BlockHash
		copy(hash[:], key[len(key)-32:])
		entry, err := blocks.DecodePendingEntry(it.Value())
		if err != nil {
			return nil, err
		}
		out[hash] = *entry
	}
	return out, nil
}

// ---- pending consumed-by index ----
//
// A receive/open block deletes the Pending entry it consumes, but rollback
// of the originating send must still be able to find and cascade into
// whichever block consumed it. This index survives independently of the Pending record itself.

func (t *WriteTxn) PutPendingConsumedBy(k blocks.PendingKey, consumer blocks.BlockHash) {
	t.Set(pendingConsumedByKey(k), consumer.Bytes())
}

func (t *WriteTxn) DeletePendingConsumedBy(k blocks.PendingKey) {
	t.Delete(pendingConsumedByKey(k))
}

func (t *WriteTxn) PendingConsumedBy(k blocks.PendingKey) (blocks.BlockHash, bool, error) {
	v, err := t.Get(pendingConsumedByKey(k))
	if err != nil {
		return blocks.BlockHash{}, false, err
	}
	if v == nil {
		return blocks.BlockHash{}, false, nil
	}
	var h blocks.BlockHash
	copy(h[:], v)
	return h, true, nil
}

// HasPendingForAccount reports whether any receivable entry still targets
// a, seeing this transaction's own buffered writes. Used by the ledger to
// park an epoch-open until something is pending for the account.
func (t *WriteTxn) HasPendingForAccount(a blocks.Account) (bool, error) {
	prefix := pendingPrefixForAccount(a)
	rows, err := t.iterate(prefix, prefixUpperBound(prefix))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// ---- frontiers (legacy hash -> account index) ----

func (t *WriteTxn) PutFrontier(h blocks.BlockHash, a blocks.Account) {
	t.Set(frontierKey(h), a.Bytes())
}

func (t *WriteTxn) DeleteFrontier(h blocks.BlockHash) { t.Delete(frontierKey(h)) }

func (s *Store) Frontier(r *ReadTxn, h blocks.BlockHash) (blocks.Account, error) {
	v, err := r.get(frontierKey(h))
	if err != nil {
		return blocks.Account{}, err
	}
	if v == nil {
		return blocks.Account{}, ErrNotFound
	}
	var a blocks.Account
	copy(a[:], v)
	return a, nil
}

// ---- confirmation height ----

func (s *Store) ConfirmationHeight(r *ReadTxn, a blocks.Account) (*blocks.ConfirmationHeight, error) {
	v, err := r.get(confirmationHeightKey(a))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return &blocks.ConfirmationHeight{}, nil
	}
	return blocks.DecodeConfirmationHeight(v)
}

func (t *WriteTxn) ConfirmationHeightInTxn(a blocks.Account) (*blocks.ConfirmationHeight, error) {
	v, err := t.Get(confirmationHeightKey(a))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return &blocks.ConfirmationHeight{}, nil
	}
	return blocks.DecodeConfirmationHeight(v)
}

func (t *WriteTxn) PutConfirmationHeight(a blocks.Account, c *blocks.ConfirmationHeight) error {
	v, err := blocks.EncodeConfirmationHeight(c)
	if err != nil {
		return err
	}
	t.Set(confirmationHeightKey(a), v)
	return nil
}

// ClearConfirmationHeight is used by tests and recovery paths.
func (t *WriteTxn) ClearConfirmationHeight(a blocks.Account) {
	t.Delete(confirmationHeightKey(a))
}

// ---- representation-override seed (bootstrap weights) ----

func (t *WriteTxn) PutRepresentationSeed(a blocks.Account, weight blocks.Amount) {
	t.Set(representationSeedKey(a), weight[:])
}

func (s *Store) RepresentationSeeds(r *ReadTxn) (map[blocks.Account]blocks.Amount, error) {
	it, err := r.iterate(prefixRepresentationSeed, prefixUpperBound(prefixRepresentationSeed))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	out := map[blocks.Account]blocks.Amount{}
	for ; it.Valid(); it.Next() {
		key := it.Key()
		var a blocks.Account
		copy(a[:], key[len(prefixRepresentationSeed):])
		var amt blocks.Amount
		copy(amt[:], it.Value())
		out[a] = amt
	}
	return out, nil
}

// ---- peers ----

func (t *WriteTxn) PutPeer(id string, addr []byte) { t.Set(peerKey(id), addr) }
func (t *WriteTxn) DeletePeer(id string)            { t.Delete(peerKey(id)) }

// ---- online weight samples ----

func (t *WriteTxn) PutOnlineWeightSample(seq uint64, weight blocks.Amount) {
	t.Set(onlineWeightSampleKey(seq), weight[:])
}

// ---- unchecked (C5 uses these through store so its pool is itself
// recoverable from the store on cold start,'s "derived caches
// must be reconstructible") ----

func (t *WriteTxn) PutUnchecked(dependency, blockHash blocks.BlockHash, value []byte) {
	t.Set(uncheckedKey(dependency, blockHash), value)
}

func (t *WriteTxn) DeleteUnchecked(dependency, blockHash blocks.BlockHash) {
	t.Delete(uncheckedKey(dependency, blockHash))
}

func (s *Store) UncheckedByDependency(r *ReadTxn, dependency blocks.BlockHash) (map[blocks.BlockHash][]byte, error) {
	prefix := uncheckedPrefixForDependency(dependency)
	it, err := r.iterate(prefix, prefixUpperBound(prefix))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	out := map[blocks.BlockHash][]byte{}
	for ; it.Valid(); it.Next() {
		key := it.Key()
		var h blocks.BlockHash
		copy(h[:], key[len(key)-32:])
		out[h] = append([]byte{}, it.Value()...)
	}
	return out, nil
}

func (s *Store) UncheckedCount(r *ReadTxn) (uint64, error) {
	it, err := r.iterate(prefixUnchecked, prefixUpperBound(prefixUnchecked))
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var n uint64
	for ; it.Valid(); it.Next() {
		n++
	}
	return n, nil
}

// ---- meta ----

func (s *Store) SchemaVersion(r *ReadTxn) (int, error) {
	v, err := r.get(keyMeta)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return int(v[0]), nil
}

func (t *WriteTxn) SetSchemaVersion(v int) { t.Set(keyMeta, []byte{byte(v)}) }
