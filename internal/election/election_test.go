package election

import (
	"crypto/ed25519"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/ledger"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/store"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/weights"
	"github.com/FutureHeadCoin/futurehead-node-sub000/pkg/kvdb"
)

type testKey struct {
	account blocks.Account
	priv    ed25519.PrivateKey
}

func newTestKey(t *testing.T) testKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var a blocks.Account
	copy(a[:], pub)
	return testKey{account: a, priv: priv}
}

func amt(t *testing.T, n int64) blocks.Amount {
	t.Helper()
	a, err := blocks.NewAmount(big.NewInt(n))
	require.NoError(t, err)
	return a
}

func noWorkThreshold(uint32) uint64 { return 0 }

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

func newTestArena(t *testing.T) (*Arena, *ledger.Ledger, *store.Store, *weights.Cache) {
	t.Helper()
	st := store.New(kvdb.NewMemory())
	w := weights.New(0)
	cfg := &ledger.Config{WorkThreshold: noWorkThreshold}
	l := ledger.New(st, w, ledger.NewCache(), cfg, func() uint64 { return 1 })
	a := New(w, l, st, nil, 15*time.Second, 5*time.Minute, func() time.Time { return time.Unix(1000, 0) })
	return a, l, st, w
}

func TestVoteClassificationFirstVoteThenReplay(t *testing.T) {
	a, _, _, w := newTestArena(t)
	genesis := newTestKey(t)
	rep := newTestKey(t)
	w.Add(rep.account, amt(t, 100))

	blk := blocks.Block{Kind: blocks.KindState, Account: genesis.account}
	require.NoError(t, a.Insert(blk))
	root := blk.QualifiedRoot()
	hash, err := blk.Hash()
	require.NoError(t, err)

	class := a.Vote(root, rep.account, hash, 1, time.Unix(1000, 0))
	require.Equal(t, ClassVote, class)

	class = a.Vote(root, rep.account, hash, 1, time.Unix(1001, 0))
	require.Equal(t, ClassReplay, class, "equal sequence must replay, not re-accept")

	class = a.Vote(root, rep.account, hash, 0, time.Unix(1002, 0))
	require.Equal(t, ClassReplay, class, "lower sequence must replay")
}

func TestVoteCooldownBlocksFastResubmission(t *testing.T) {
	a, _, _, w := newTestArena(t)
	genesis := newTestKey(t)
	rep := newTestKey(t)
	w.Add(rep.account, amt(t, 100))

	blk := blocks.Block{Kind: blocks.KindState, Account: genesis.account}
	require.NoError(t, a.Insert(blk))
	root := blk.QualifiedRoot()

	hash, err := blk.Hash()
	require.NoError(t, err)

	require.Equal(t, ClassVote, a.Vote(root, rep.account, hash, 1, time.Unix(1000, 0)))
	require.Equal(t, ClassIndeterminate, a.Vote(root, rep.account, hash, 2, time.Unix(1005, 0)), "within cooldown must be indeterminate")
	require.Equal(t, ClassVote, a.Vote(root, rep.account, hash, 2, time.Unix(1020, 0)), "past cooldown must accept")
}

func TestTallySortsByWeightDescendingThenHash(t *testing.T) {
	a, _, _, w := newTestArena(t)
	genesis := newTestKey(t)
	repHeavy := newTestKey(t)
	repLight := newTestKey(t)
	w.Add(repHeavy.account, amt(t, 1000))
	w.Add(repLight.account, amt(t, 10))

	blk := blocks.Block{Kind: blocks.KindState, Account: genesis.account}
	root := blk.QualifiedRoot()
	require.NoError(t, a.Insert(blk))

	var hashA, hashB blocks.BlockHash
	hashA[0], hashB[0] = 1, 2
	blkA := blk
	blkA.Representative = blocks.Account{1}
	blkB := blk
	blkB.Representative = blocks.Account{2}
	require.NoError(t, a.Insert(blkA))
	require.NoError(t, a.Insert(blkB))

	hA, err := blkA.Hash()
	require.NoError(t, err)
	hB, err := blkB.Hash()
	require.NoError(t, err)

	a.Vote(root, repHeavy.account, hA, 1, time.Unix(1000, 0))
	a.Vote(root, repLight.account, hB, 1, time.Unix(1000, 0))

	ranked := a.Tally(root)
	require.NotEmpty(t, ranked)
	require.Equal(t, hA, ranked[0], "the heavier-weight candidate must rank first")
}

func TestVoteBuffersAheadOfCandidateInsert(t *testing.T) {
	a, _, _, w := newTestArena(t)
	genesis := newTestKey(t)
	rep := newTestKey(t)
	w.Add(rep.account, amt(t, 50))

	blk := blocks.Block{Kind: blocks.KindState, Account: genesis.account}
	root := blk.QualifiedRoot()
	hash, err := blk.Hash()
	require.NoError(t, err)

	class := a.Vote(root, rep.account, hash, 1, time.Unix(1000, 0))
	require.Equal(t, ClassIndeterminate, class, "a vote for an unseen hash must buffer, not reject outright")

	require.NoError(t, a.Insert(blk))

	ranked := a.Tally(root)
	require.Equal(t, []blocks.BlockHash{hash}, ranked)

	// A second vote for the same hash from the same rep must now classify
	// as a genuine replay, proving the buffered vote above was recorded as
	// this voter's first ballot rather than silently dropped.
	require.Equal(t, ClassReplay, a.Vote(root, rep.account, hash, 1, time.Unix(1001, 0)))
}

// TestConfirmOnceRollsBackAppliedLoserAndAppliesWinner exercises the case
// the spec calls out explicitly: two send blocks race for the same chain
// position, the first lands and advances the account head, the second
// loses that race and is only ever a tallied candidate. If votes later
// favor the second, confirm_once must undo the first and apply the
// second.
func TestConfirmOnceRollsBackAppliedLoserAndAppliesWinner(t *testing.T) {
	a, l, st, w := newTestArena(t)
	genesis := newTestKey(t)
	destA := newTestKey(t)
	destB := newTestKey(t)
	repHeavy := newTestKey(t)
	repLight := newTestKey(t)
	w.Add(repHeavy.account, amt(t, 1000))
	w.Add(repLight.account, amt(t, 10))

	head := seedGenesis(t, st, genesis.account, amt(t, 1000))
	w.Add(genesis.account, amt(t, 1000))

	sendA := blocks.Block{
		Kind: blocks.KindState, Account: genesis.account, Previous: head,
		Balance: amt(t, 900), Representative: genesis.account, Link: blocks.Hash32(destA.account),
	}
	require.NoError(t, sendA.Sign(genesis.priv))

	sendB := blocks.Block{
		Kind: blocks.KindState, Account: genesis.account, Previous: head,
		Balance: amt(t, 800), Representative: genesis.account, Link: blocks.Hash32(destB.account),
	}
	require.NoError(t, sendB.Sign(genesis.priv))

	wtx := st.BeginWrite(store.RoleBlockProcessor)
	resultA, err := l.Process(wtx, &sendA)
	require.NoError(t, err)
	require.Equal(t, ledger.Progress, resultA)
	require.NoError(t, wtx.Commit())

	wtx = st.BeginWrite(store.RoleBlockProcessor)
	resultB, err := l.Process(wtx, &sendB)
	require.NoError(t, err)
	require.Equal(t, ledger.Fork, resultB, "sendB must lose the race for the same chain position")
	require.NoError(t, wtx.Commit())

	root := sendA.QualifiedRoot()
	require.NoError(t, a.Insert(sendA))
	require.NoError(t, a.Insert(sendB))

	hashA, err := sendA.Hash()
	require.NoError(t, err)
	hashB, err := sendB.Hash()
	require.NoError(t, err)

	a.Vote(root, repLight.account, hashA, 1, time.Unix(1000, 0))
	a.Vote(root, repHeavy.account, hashB, 1, time.Unix(1000, 0))

	require.NoError(t, a.ConfirmOnce(root))

	r := st.BeginRead()
	_, err = st.Block(r, hashA)
	require.ErrorIs(t, err, store.ErrNotFound, "the rolled-back loser must no longer be stored")

	storedB, err := st.Block(r, hashB)
	require.NoError(t, err)
	require.Equal(t, genesis.account, storedB.Sideband.Account)

	info, err := st.Account(r, genesis.account)
	require.NoError(t, err)
	require.Equal(t, hashB, info.Head, "the winner must now be the account's head")

	ch, err := st.ConfirmationHeight(r, genesis.account)
	require.NoError(t, err)
	require.Equal(t, hashB, ch.Frontier)
}
