package ledger

import (
	"errors"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/store"
)

// AccountBalance returns the account's current confirmed-and-unconfirmed
// balance.
func (l *Ledger) AccountBalance(r *store.ReadTxn, a blocks.Account) (blocks.Amount, error) {
	info, err := l.store.Account(r, a)
	if errors.Is(err, store.ErrNotFound) {
		return blocks.ZeroAmount, nil
	}
	if err != nil {
		return blocks.ZeroAmount, err
	}
	return info.Balance, nil
}

// AccountPending lists every entry receivable by a (query API: account_pending).
func (l *Ledger) AccountPending(r *store.ReadTxn, a blocks.Account) (map[blocks.BlockHash]blocks.PendingEntry, error) {
	return l.store.AccountPending(r, a)
}

// Weight returns rep's current representative weight (query API: weight).
func (l *Ledger) Weight(rep blocks.Account) blocks.Amount {
	return l.weights.Weight(rep)
}

// Amount returns the size of the change a block made to its account's
// balance (query API: amount): the amount received for a receive/open, the
// amount sent for a send. Only the magnitude is returned, not the direction.
func (l *Ledger) Amount(r *store.ReadTxn, hash blocks.BlockHash) (blocks.Amount, error) {
	sb, err := l.store.Block(r, hash)
	if err != nil {
		return blocks.ZeroAmount, err
	}
	if sb.Block.Previous.IsZero() {
		return sb.Sideband.Balance, nil
	}
	pred, err := l.store.Block(r, sb.Block.Previous)
	if err != nil {
		return blocks.ZeroAmount, err
	}
	if sb.Sideband.Balance.Cmp(pred.Sideband.Balance) >= 0 {
		return sb.Sideband.Balance.Sub(pred.Sideband.Balance), nil
	}
	return pred.Sideband.Balance.Sub(sb.Sideband.Balance), nil
}

// Latest returns the account's current chain head (query API: latest).
func (l *Ledger) Latest(r *store.ReadTxn, a blocks.Account) (blocks.BlockHash, error) {
	info, err := l.store.Account(r, a)
	if err != nil {
		return blocks.BlockHash{}, err
	}
	return info.Head, nil
}

// LatestRoot returns the account's current election root (query API: latest_root).
func (l *Ledger) LatestRoot(r *store.ReadTxn, a blocks.Account) (blocks.Root, error) {
	info, err := l.store.Account(r, a)
	if errors.Is(err, store.ErrNotFound) {
		return blocks.RootFromAccount(a), nil
	}
	if err != nil {
		return blocks.Root{}, err
	}
	return blocks.RootFromHash(info.Head), nil
}

// Successor returns the block chained directly after hash, if any (query
// API: successor).
func (l *Ledger) Successor(r *store.ReadTxn, hash blocks.BlockHash) (blocks.BlockHash, bool, error) {
	sb, err := l.store.Block(r, hash)
	if err != nil {
		return blocks.BlockHash{}, false, err
	}
	if sb.Sideband.Successor.IsZero() {
		return blocks.BlockHash{}, false, nil
	}
	return sb.Sideband.Successor, true, nil
}

// BlockDestination returns the destination account of a send block, if
// hash names one (query API: block_destination).
func (l *Ledger) BlockDestination(r *store.ReadTxn, hash blocks.BlockHash) (blocks.Account, bool, error) {
	sb, err := l.store.Block(r, hash)
	if err != nil {
		return blocks.Account{}, false, err
	}
	if !sb.Sideband.Details.IsSend {
		return blocks.Account{}, false, nil
	}
	return sendDestination(&sb.Block), true, nil
}

// BlockSource returns the source block a receive/open block claims, if any
// (query API: block_source).
func (l *Ledger) BlockSource(r *store.ReadTxn, hash blocks.BlockHash) (blocks.BlockHash, bool, error) {
	sb, err := l.store.Block(r, hash)
	if err != nil {
		return blocks.BlockHash{}, false, err
	}
	if !sb.Sideband.Details.IsReceive {
		return blocks.BlockHash{}, false, nil
	}
	return receiveSource(&sb.Block), true, nil
}

// EpochLink returns the sentinel Link value for epoch n, if configured
// (query API: epoch_link(N)).
func (l *Ledger) EpochLink(n uint32) (blocks.Hash32, bool) {
	return l.config.epochLinkFor(n)
}

// CouldFit reports whether blk could be applied on top of the store's
// current state without yet running signature/work checks: its Previous is
// either zero for an unopened account or matches the account's head (query
// API: could_fit).
func (l *Ledger) CouldFit(r *store.ReadTxn, blk *blocks.Block) (bool, error) {
	var account blocks.Account
	switch blk.Kind {
	case blocks.KindState, blocks.KindOpen:
		account = blk.Account
	default:
		if blk.Previous.IsZero() {
			return false, nil
		}
		owner, err := l.store.Frontier(r, blk.Previous)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		account = owner
	}
	info, err := l.store.Account(r, account)
	if errors.Is(err, store.ErrNotFound) {
		return blk.Previous.IsZero(), nil
	}
	if err != nil {
		return false, err
	}
	return blk.Previous == info.Head, nil
}

// CanVote reports whether rep currently carries enough weight to matter to
// an election (query API: can_vote): any nonzero weight can vote, it is the
// election's tally that decides whether it matters.
func (l *Ledger) CanVote(rep blocks.Account) bool {
	return !l.weights.Weight(rep).IsZero()
}

// Backtrack walks from hash toward the account's open block, returning up
// to limit hashes (hash itself, then its ancestors), most recent first (query API: backtrack, used
// to find a common ancestor across a fork).
func (l *Ledger) Backtrack(r *store.ReadTxn, hash blocks.BlockHash, limit int) ([]blocks.BlockHash, error) {
	var out []blocks.BlockHash
	cur := hash
	for i := 0; i < limit; i++ {
		sb, err := l.store.Block(r, cur)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, cur)
		if sb.Block.Previous.IsZero() {
			break
		}
		cur = sb.Block.Previous
	}
	return out, nil
}

func (l *Ledger) Cache() *Cache { return l.cache }
