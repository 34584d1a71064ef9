package ledger

import "github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"

// EpochLink identifies one epoch-upgrade sentinel: a fixed Link value that
// marks a state block as an epoch upgrade rather than a send/receive/change.
type EpochLink struct {
	Link  blocks.Hash32
	Epoch uint32
}

// Config is the ledger's genesis and epoch configuration. It has no
// behavior of its own; Ledger reads it on every Process/rollback call
// instead of caching a copy, so a single Config can be shared read-only
// across every component.
type Config struct {
	GenesisAccount blocks.Account
	GenesisBalance blocks.Amount

	// EpochSigner is the account whose key must sign every epoch-upgrade
	// state block, regardless of whose chain it appears on.
	EpochSigner blocks.Account

	// Epochs lists every recognised epoch sentinel, in no particular
	// order; lookups scan the whole list.
	Epochs []EpochLink

	// WorkThreshold returns the minimum accepted work digest value for a
	// block at the given epoch; higher epochs may raise the difficulty.
	WorkThreshold func(epoch uint32) uint64

	// BootstrapWeightBlockCount records the ledger block-count threshold
	// below which representative weight queries answer from the bootstrap
	// seed snapshot rather than live aggregation. The cutover is applied by
	// the weights cache, which is built with the same threshold; Ledger
	// itself does not read this field.
	BootstrapWeightBlockCount uint64
}

// epochLinkOf adapts Config.Epochs into the function shape
// blocks.Block.InferSubtype expects.
func (c *Config) epochLinkOf(link blocks.Hash32) (uint32, bool) {
	for _, e := range c.Epochs {
		if e.Link == link {
			return e.Epoch, true
		}
	}
	return 0, false
}

// epochLinkFor returns the sentinel Link for a given epoch number, used
// when constructing an epoch-upgrade block.
func (c *Config) epochLinkFor(epoch uint32) (blocks.Hash32, bool) {
	for _, e := range c.Epochs {
		if e.Epoch == epoch {
			return e.Link, true
		}
	}
	return blocks.Hash32{}, false
}

func (c *Config) maxEpoch() uint32 {
	var max uint32
	for _, e := range c.Epochs {
		if e.Epoch > max {
			max = e.Epoch
		}
	}
	return max
}
