package blockproc

import (
	"context"
	"crypto/ed25519"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/election"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/ledger"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/store"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/unchecked"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/weights"
	"github.com/FutureHeadCoin/futurehead-node-sub000/pkg/kvdb"
)

func noWorkThreshold(uint32) uint64 { return 0 }

type testKey struct {
	account blocks.Account
	priv    ed25519.PrivateKey
}

func newTestKeyForProc(t *testing.T) testKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var a blocks.Account
	copy(a[:], pub)
	return testKey{account: a, priv: priv}
}

func seedGenesis(t *testing.T, st *store.Store, account blocks.Account, balance blocks.Amount) blocks.BlockHash {
	t.Helper()
	var head blocks.BlockHash
	head[0] = 0xAA

	wtx := st.BeginWrite(store.RoleTesting)
	require.NoError(t, wtx.PutAccount(account, &blocks.AccountInfo{
		Head: head, Representative: account, OpenBlock: head, Balance: balance, BlockCount: 1,
	}))
	require.NoError(t, wtx.PutBlock(head, &blocks.StoredBlock{
		Block:    blocks.Block{Kind: blocks.KindState, Account: account, Representative: account, Balance: balance},
		Sideband: blocks.Sideband{Account: account, Height: 1, Balance: balance},
	}))
	wtx.PutFrontier(head, account)
	require.NoError(t, wtx.Commit())
	return head
}

func amt(t *testing.T, n int64) blocks.Amount {
	t.Helper()
	a, err := blocks.NewAmount(big.NewInt(n))
	require.NoError(t, err)
	return a
}

func newTestProcessor(t *testing.T) (*Processor, *ledger.Ledger, *store.Store, *election.Arena, *weights.Cache) {
	t.Helper()
	st := store.New(kvdb.NewMemory())
	w := weights.New(0)
	cfg := &ledger.Config{WorkThreshold: noWorkThreshold}
	l := ledger.New(st, w, ledger.NewCache(), cfg, func() uint64 { return 1 })
	u := unchecked.New(st, 1024)
	arena := election.New(w, l, st, nil, 15*time.Second, 5*time.Minute, func() time.Time { return time.Unix(1000, 0) })
	p := New(st, l, u, arena, nil, nil)
	go p.Run(context.Background())
	t.Cleanup(p.Close)
	return p, l, st, arena, w
}

func TestGapSourceIsParkedThenDrainedOnArrival(t *testing.T) {
	p, _, st, _, w := newTestProcessor(t)
	genesis := newTestKeyForProc(t)
	dest := newTestKeyForProc(t)

	head := seedGenesis(t, st, genesis.account, amt(t, 1000))
	w.Add(genesis.account, amt(t, 1000))

	send := blocks.Block{
		Kind: blocks.KindState, Account: genesis.account, Previous: head,
		Balance: amt(t, 900), Representative: genesis.account, Link: blocks.Hash32(dest.account),
	}
	require.NoError(t, send.Sign(genesis.priv))
	sendHash, err := send.Hash()
	require.NoError(t, err)

	// The receive arrives first, naming sendHash as its source: it must
	// gap and wait in the unchecked pool rather than being rejected.
	recv := blocks.Block{
		Kind: blocks.KindState, Account: dest.account, Previous: blocks.BlockHash{},
		Balance: amt(t, 100), Representative: dest.account, Link: blocks.Hash32(sendHash),
	}
	require.NoError(t, recv.Sign(dest.priv))

	res, err := p.SubmitSync(recv)
	require.NoError(t, err)
	require.Equal(t, ledger.GapSource, res)

	res, err = p.SubmitSync(send)
	require.NoError(t, err)
	require.Equal(t, ledger.Progress, res)

	p.Flush()

	r := st.BeginRead()
	recvHash, err := recv.Hash()
	require.NoError(t, err)
	_, err = st.Block(r, recvHash)
	require.NoError(t, err, "the parked receive must have been replayed once its source landed")
}

func TestAccountProbeDrainsEntryParkedUnderUnmatchedDependency(t *testing.T) {
	p, _, st, _, w := newTestProcessor(t)
	genesis := newTestKeyForProc(t)
	head := seedGenesis(t, st, genesis.account, amt(t, 1000))
	w.Add(genesis.account, amt(t, 1000))
	dest := newTestKeyForProc(t)

	send := blocks.Block{
		Kind: blocks.KindState, Account: genesis.account, Previous: head,
		Balance: amt(t, 900), Representative: genesis.account, Link: blocks.Hash32(dest.account),
	}
	require.NoError(t, send.Sign(genesis.priv))
	sendHash, err := send.Hash()
	require.NoError(t, err)

	recv := blocks.Block{
		Kind: blocks.KindState, Account: dest.account, Previous: blocks.BlockHash{},
		Balance: amt(t, 100), Representative: dest.account, Link: blocks.Hash32(sendHash),
	}
	require.NoError(t, recv.Sign(dest.priv))

	// Park recv under a dependency no real block will ever hash to, the way
	// an epoch-open block gapped on GapEpochOpenPending is parked keyed by
	// the epoch sentinel rather than a pending source: TakeByDependency
	// alone can never find this entry again, only the account probe can.
	unmatched := blocks.BlockHash{0xFF, 0xFF, 0xFF}
	wtx := st.BeginWrite(store.RoleTesting)
	require.NoError(t, p.unchecked.Put(wtx, unmatched, recv, unchecked.TagValidEpoch))
	require.NoError(t, wtx.Commit())

	res, err := p.SubmitSync(send)
	require.NoError(t, err)
	require.Equal(t, ledger.Progress, res)

	p.Flush()

	recvHash, err := recv.Hash()
	require.NoError(t, err)
	r := st.BeginRead()
	_, err = st.Block(r, recvHash)
	require.NoError(t, err, "a block parked under a dependency no landed block will ever match must still be retried, via the account probe, once its destination's send lands")
	require.Empty(t, p.unchecked.ByAccount(dest.account), "the drained entry must be removed from the account index")
}

func TestForkIsRoutedToElectionArena(t *testing.T) {
	p, _, st, arena, w := newTestProcessor(t)
	genesis := newTestKeyForProc(t)
	head := seedGenesis(t, st, genesis.account, amt(t, 1000))
	w.Add(genesis.account, amt(t, 1000))

	sendA := blocks.Block{
		Kind: blocks.KindState, Account: genesis.account, Previous: head,
		Balance: amt(t, 900), Representative: genesis.account, Link: blocks.Hash32(blocks.Account{1}),
	}
	require.NoError(t, sendA.Sign(genesis.priv))
	sendB := blocks.Block{
		Kind: blocks.KindState, Account: genesis.account, Previous: head,
		Balance: amt(t, 800), Representative: genesis.account, Link: blocks.Hash32(blocks.Account{2}),
	}
	require.NoError(t, sendB.Sign(genesis.priv))

	res, err := p.SubmitSync(sendA)
	require.NoError(t, err)
	require.Equal(t, ledger.Progress, res)

	res, err = p.SubmitSync(sendB)
	require.NoError(t, err)
	require.Equal(t, ledger.Fork, res)

	hashB, err := sendB.Hash()
	require.NoError(t, err)
	root, ok := arena.RootForCandidate(hashB)
	require.True(t, ok, "the losing fork candidate must have been inserted into the election arena")
	require.Equal(t, sendA.QualifiedRoot(), root)
}
