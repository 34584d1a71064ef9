package unchecked

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/store"
	"github.com/FutureHeadCoin/futurehead-node-sub000/pkg/kvdb"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(kvdb.NewMemory())
}

func TestPutAndTakeByDependency(t *testing.T) {
	st := newTestStore(t)
	p := New(st, 0)

	var dep blocks.BlockHash
	dep[0] = 1
	var acct blocks.Account
	acct[0] = 9

	blk := blocks.Block{Kind: blocks.KindState, Account: acct, Previous: dep}

	wtx := st.BeginWrite(store.RoleTesting)
	require.NoError(t, p.Put(wtx, dep, blk, TagUnknown))
	require.NoError(t, wtx.Commit())

	require.Equal(t, 1, p.Len())

	entries := p.TakeByDependency(nil, dep)
	require.Len(t, entries, 1)
	require.Equal(t, acct, entries[0].Block.Account)
	require.Equal(t, 0, p.Len())
}

func TestByAccountDualProbe(t *testing.T) {
	st := newTestStore(t)
	p := New(st, 0)

	var dep blocks.BlockHash
	dep[0] = 2
	var acct blocks.Account
	acct[0] = 5

	blk := blocks.Block{Kind: blocks.KindState, Account: acct, Previous: dep}
	wtx := st.BeginWrite(store.RoleTesting)
	require.NoError(t, p.Put(wtx, dep, blk, TagValid))
	require.NoError(t, wtx.Commit())

	byAcct := p.ByAccount(acct)
	require.Len(t, byAcct, 1)
	require.Equal(t, TagValid, byAcct[0].Tag)

	byDep := p.TakeByDependency(nil, dep)
	require.Len(t, byDep, 1)
	require.Empty(t, p.ByAccount(acct), "taking by dependency must also clear the account index")
}

func TestRemoveClearsBothIndicesAndStore(t *testing.T) {
	st := newTestStore(t)
	p := New(st, 0)

	var dep blocks.BlockHash
	dep[0] = 3
	var acct blocks.Account
	acct[0] = 6

	blk := blocks.Block{Kind: blocks.KindState, Account: acct, Previous: dep}
	wtx := st.BeginWrite(store.RoleTesting)
	require.NoError(t, p.Put(wtx, dep, blk, TagValidEpoch))
	require.NoError(t, wtx.Commit())

	hash, err := blk.Hash()
	require.NoError(t, err)

	wtx = st.BeginWrite(store.RoleTesting)
	p.Remove(wtx, dep, acct, hash)
	require.NoError(t, wtx.Commit())

	require.Equal(t, 0, p.Len())
	require.Empty(t, p.ByAccount(acct))
	require.Empty(t, p.TakeByDependency(nil, dep))

	r := st.BeginRead()
	rows, err := st.UncheckedByDependency(r, dep)
	require.NoError(t, err)
	require.Empty(t, rows, "Remove must also delete the persisted row")
}

func TestCapacityEvictsOldestBucket(t *testing.T) {
	st := newTestStore(t)
	p := New(st, 1)

	var dep1, dep2 blocks.BlockHash
	dep1[0] = 1
	dep2[0] = 2

	wtx := st.BeginWrite(store.RoleTesting)
	require.NoError(t, p.Put(wtx, dep1, blocks.Block{Kind: blocks.KindState}, TagUnknown))
	require.NoError(t, p.Put(wtx, dep2, blocks.Block{Kind: blocks.KindState}, TagUnknown))
	require.NoError(t, wtx.Commit())

	require.Equal(t, 1, p.Len(), "capacity of 1 must evict before admitting the second entry")
}
