package store

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/pkg/kvdb"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(kvdb.NewMemory())
}

func mustAmount(t *testing.T, n int64) blocks.Amount {
	t.Helper()
	a, err := blocks.NewAmount(big.NewInt(n))
	require.NoError(t, err)
	return a
}

func TestAccountPutGet(t *testing.T) {
	s := newTestStore(t)
	var acct blocks.Account
	acct[0] = 0x01

	wtx := s.BeginWrite(RoleTesting)
	info := &blocks.AccountInfo{Balance: mustAmount(t, 100), BlockCount: 1}
	require.NoError(t, wtx.PutAccount(acct, info))
	require.NoError(t, wtx.Commit())

	got, err := s.Account(s.BeginRead(), acct)
	require.NoError(t, err)
	require.Equal(t, info.BlockCount, got.BlockCount)
	require.Equal(t, 0, info.Balance.Cmp(got.Balance))
}

func TestAccountNotFound(t *testing.T) {
	s := newTestStore(t)
	var acct blocks.Account
	_, err := s.Account(s.BeginRead(), acct)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWriteTxnSeesOwnWrites(t *testing.T) {
	s := newTestStore(t)
	var acct blocks.Account
	acct[1] = 0x02

	wtx := s.BeginWrite(RoleTesting)
	info := &blocks.AccountInfo{Balance: mustAmount(t, 5), BlockCount: 1}
	require.NoError(t, wtx.PutAccount(acct, info))

	got, err := wtx.AccountInTxn(acct)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.BlockCount)
	wtx.Abort()

	_, err = s.Account(s.BeginRead(), acct)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAccountPendingRangeByDestination(t *testing.T) {
	s := newTestStore(t)
	var dest blocks.Account
	dest[0] = 0x09
	var h1, h2 blocks.BlockHash
	h1[31] = 1
	h2[31] = 2

	wtx := s.BeginWrite(RoleTesting)
	require.NoError(t, wtx.PutPending(blocks.PendingKey{Destination: dest, Hash: h1}, &blocks.PendingEntry{Amount: mustAmount(t, 1)}))
	require.NoError(t, wtx.PutPending(blocks.PendingKey{Destination: dest, Hash: h2}, &blocks.PendingEntry{Amount: mustAmount(t, 2)}))
	require.NoError(t, wtx.Commit())

	all, err := s.AccountPending(s.BeginRead(), dest)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestConfirmationHeightDefaultsToZero(t *testing.T) {
	s := newTestStore(t)
	var acct blocks.Account
	c, err := s.ConfirmationHeight(s.BeginRead(), acct)
	require.NoError(t, err)
	require.Equal(t, uint64(0), c.Height)
}

func TestWriteQueuePrioritizesRollbackOverBlockProcessor(t *testing.T) {
	q := newWriteQueue()
	q.acquire(RoleTesting)

	order := make(chan Role, 2)
	bpWaiting := make(chan struct{})
	rbWaiting := make(chan struct{})

	go func() {
		q.mu.Lock()
		q.waiting[RoleBlockProcessor]++
		q.mu.Unlock()
		close(bpWaiting)
		q.mu.Lock()
		for q.held || q.higherPriorityWaiting(RoleBlockProcessor) {
			q.cond.Wait()
		}
		q.waiting[RoleBlockProcessor]--
		q.held = true
		q.mu.Unlock()
		order <- RoleBlockProcessor
		q.release()
	}()
	<-bpWaiting

	go func() {
		q.mu.Lock()
		q.waiting[RoleRollback]++
		q.mu.Unlock()
		close(rbWaiting)
		q.mu.Lock()
		for q.held || q.higherPriorityWaiting(RoleRollback) {
			q.cond.Wait()
		}
		q.waiting[RoleRollback]--
		q.held = true
		q.mu.Unlock()
		order <- RoleRollback
		q.release()
	}()
	<-rbWaiting

	q.release()

	first := <-order
	second := <-order
	require.Equal(t, RoleRollback, first)
	require.Equal(t, RoleBlockProcessor, second)
}
