package weights

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
)

func amt(t *testing.T, n int64) blocks.Amount {
	t.Helper()
	a, err := blocks.NewAmount(big.NewInt(n))
	require.NoError(t, err)
	return a
}

func TestBootstrapCutoverIsHardSwitch(t *testing.T) {
	var rep blocks.Account
	rep[0] = 7

	c := New(100)
	c.LoadSeed(map[blocks.Account]blocks.Amount{rep: amt(t, 1000)})
	c.Add(rep, amt(t, 1)) // live starts accumulating even while below threshold

	c.SetBlockCount(50)
	require.Equal(t, 0, amt(t, 1000).Cmp(c.Weight(rep)), "below threshold must read the seed verbatim, not a blend")

	c.SetBlockCount(100)
	require.Equal(t, 0, amt(t, 1).Cmp(c.Weight(rep)), "at threshold must read live only, not seed")
}

func TestAddSubtractRoundTrip(t *testing.T) {
	var rep blocks.Account
	rep[0] = 1
	c := New(0)

	c.Add(rep, amt(t, 50))
	c.Add(rep, amt(t, 25))
	require.Equal(t, 0, amt(t, 75).Cmp(c.Weight(rep)))

	c.Subtract(rep, amt(t, 30))
	require.Equal(t, 0, amt(t, 45).Cmp(c.Weight(rep)))
}

func TestRebuildFromAccounts(t *testing.T) {
	var repA, repB blocks.Account
	repA[0], repB[0] = 1, 2

	accounts := map[blocks.Account]*blocks.AccountInfo{
		{3}: {Representative: repA, Balance: amt(t, 10)},
		{4}: {Representative: repA, Balance: amt(t, 5)},
		{5}: {Representative: repB, Balance: amt(t, 1)},
	}
	live := RebuildFromAccounts(accounts)
	require.Equal(t, 0, amt(t, 15).Cmp(live[repA]))
	require.Equal(t, 0, amt(t, 1).Cmp(live[repB]))
}
