// Package ledger implements the block process/rollback state machine and
// query API: the single place that decides whether a block is accepted,
// and the only place allowed to mutate account balances, pending entries
// and representative weights.
package ledger

import (
	"errors"
	"fmt"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/store"
	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/weights"
)

// ErrUnexpectedKind is returned for a block whose Kind is not one of the
// four legacy kinds or the state kind; the caller (block processor) should
// have rejected it before it ever reached Process.
var ErrUnexpectedKind = errors.New("ledger: unexpected block kind")

// ErrRollbackConfirmed is returned when a rollback is requested through a
// hash at or below the account's confirmed height. A rollback never
// crosses a confirmed block.
var ErrRollbackConfirmed = errors.New("ledger: cannot roll back a confirmed block")

// Ledger ties the store, the weight cache and the genesis/epoch config
// together. It holds no block-level state of its own beyond Cache's
// counters; every durable fact lives in the store.
type Ledger struct {
	store   *store.Store
	weights *weights.Cache
	cache   *Cache
	config  *Config
	now     func() uint64
}

func New(st *store.Store, w *weights.Cache, cache *Cache, cfg *Config, now func() uint64) *Ledger {
	return &Ledger{store: st, weights: w, cache: cache, config: cfg, now: now}
}

// Process applies one block under an already-open write transaction. The
// caller (block processor) commits or aborts wtx; Process never commits.
func (l *Ledger) Process(wtx *store.WriteTxn, blk *blocks.Block) (ProcessResult, error) {
	hash, err := blk.Hash()
	if err != nil {
		return BlockPosition, err
	}

	if _, err := wtx.BlockInTxn(hash); err == nil {
		return Old, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return Progress, err
	}

	account, res, err := l.resolveAccount(wtx, blk)
	if err != nil || res != Progress {
		return res, err
	}

	info, err := wtx.AccountInTxn(account)
	opened := true
	if errors.Is(err, store.ErrNotFound) {
		opened = false
		info = &blocks.AccountInfo{}
	} else if err != nil {
		return Progress, err
	}

	res, err = l.checkPosition(wtx, blk, account, opened, info)
	if err != nil {
		return Progress, err
	}
	if res != Progress {
		return res, nil
	}

	if account == blocks.BurnAccount && !opened {
		return OpenedBurnAccount, nil
	}

	ok, err := blk.VerifySignature(l.signerFor(blk, account))
	if err != nil {
		return Progress, err
	}
	if !ok {
		return BadSignature, nil
	}

	epochForWork := info.Epoch
	threshold := l.config.WorkThreshold(epochForWork)
	if !blocks.ValidateWork(blk.Root(), blk.Work, threshold) {
		return InsufficientWork, nil
	}

	subtype, epoch, res, err := l.classify(blk, opened, info)
	if err != nil || res != Progress {
		return res, err
	}

	return l.apply(wtx, blk, hash, account, opened, info, subtype, epoch)
}

// resolveAccount determines which account's chain this block belongs to.
// State and legacy open blocks name their account explicitly; the other
// legacy kinds are positional and must be resolved from Previous via the
// owner index.
func (l *Ledger) resolveAccount(wtx *store.WriteTxn, blk *blocks.Block) (blocks.Account, ProcessResult, error) {
	switch blk.Kind {
	case blocks.KindState, blocks.KindOpen:
		return blk.Account, Progress, nil
	case blocks.KindSend, blocks.KindReceive, blocks.KindChange:
		if blk.Previous.IsZero() {
			return blocks.Account{}, GapPrevious, nil
		}
		a, ok, err := ownerOf(wtx, blk.Previous)
		if err != nil {
			return blocks.Account{}, Progress, err
		}
		if !ok {
			return blocks.Account{}, GapPrevious, nil
		}
		return a, Progress, nil
	default:
		return blocks.Account{}, Progress, ErrUnexpectedKind
	}
}

func ownerOf(wtx *store.WriteTxn, hash blocks.BlockHash) (blocks.Account, bool, error) {
	sb, err := wtx.BlockInTxn(hash)
	if errors.Is(err, store.ErrNotFound) {
		return blocks.Account{}, false, nil
	}
	if err != nil {
		return blocks.Account{}, false, err
	}
	return sb.Sideband.Account, true, nil
}

// checkPosition enforces that blk extends the account's current head
// exactly once: gap_previous if the claimed predecessor is unknown or (for
// an unopened account) non-zero, fork if a different block already
// occupies that position, block_position if a legacy-kind block is being
// appended to a chain whose head is already a state block.
func (l *Ledger) checkPosition(wtx *store.WriteTxn, blk *blocks.Block, account blocks.Account, opened bool, info *blocks.AccountInfo) (ProcessResult, error) {
	if !opened {
		if !blk.Previous.IsZero() {
			return GapPrevious, nil
		}
		return Progress, nil
	}
	if blk.Previous.IsZero() {
		return BlockPosition, nil
	}
	if blk.Previous != info.Head {
		// Previous is not the chain's current head: if it names a stored
		// block (a buried ancestor that a second block is now built on)
		// this is a fork; if no stored block has that hash, a gap.
		if _, ok, _ := ownerOf(wtx, blk.Previous); ok {
			return Fork, nil
		}
		return GapPrevious, nil
	}
	if blk.Kind != blocks.KindState {
		// Once any state block exists on a chain, no further legacy-kind
		// block may be appended to it.
		head, err := wtx.BlockInTxn(info.Head)
		if err != nil {
			return Progress, err
		}
		if head.Block.Kind == blocks.KindState {
			return BlockPosition, nil
		}
	}
	return Progress, nil
}

// signerFor picks the key an incoming block must be signed by. Only a
// state block can ever be an epoch upgrade (legacy kinds have no epoch
// form), and every epoch-upgrade block, opened or not, is signed by the
// network epoch key rather than the account's own key.
func (l *Ledger) signerFor(blk *blocks.Block, account blocks.Account) blocks.Account {
	if blk.Kind == blocks.KindState {
		if _, ok := l.config.epochLinkOf(blk.Link); ok {
			return l.config.EpochSigner
		}
	}
	return account
}

// classify infers the subtype and epoch, and runs the subtype-specific
// static invariants that do not require mutating the store.
func (l *Ledger) classify(blk *blocks.Block, opened bool, info *blocks.AccountInfo) (blocks.Subtype, uint32, ProcessResult, error) {
	switch blk.Kind {
	case blocks.KindSend:
		return blocks.SubtypeSend, info.Epoch, Progress, nil
	case blocks.KindReceive:
		return blocks.SubtypeReceive, info.Epoch, Progress, nil
	case blocks.KindOpen:
		return blocks.SubtypeOpen, 0, Progress, nil
	case blocks.KindChange:
		return blocks.SubtypeChange, info.Epoch, Progress, nil
	case blocks.KindState:
		previousBalance := blocks.ZeroAmount
		if opened {
			previousBalance = info.Balance
		}
		subtype, epoch, err := blk.InferSubtype(previousBalance, l.config.epochLinkOf)
		if err != nil {
			return subtype, epoch, BlockPosition, nil
		}
		// InferSubtype only reports a nonzero epoch for the two subtypes
		// that actually carry one (open-at-epoch and epoch upgrade); every
		// other subtype carries the account's already-established epoch
		// forward unchanged.
		if subtype == blocks.SubtypeSend || subtype == blocks.SubtypeReceive || subtype == blocks.SubtypeChange {
			epoch = info.Epoch
		}
		return subtype, epoch, Progress, nil
	default:
		return blocks.SubtypeInvalid, 0, Progress, ErrUnexpectedKind
	}
}

// apply performs every store mutation for an accepted block: pending
// table, account info, sideband, predecessor successor link, weight cache
// and ledger-wide counters. It is the sole place account state changes.
func (l *Ledger) apply(wtx *store.WriteTxn, blk *blocks.Block, hash blocks.BlockHash, account blocks.Account, opened bool, info *blocks.AccountInfo, subtype blocks.Subtype, epoch uint32) (ProcessResult, error) {
	newBalance := info.Balance
	newRepresentative := info.Representative
	isSend, isReceive, isEpoch := false, false, false

	switch subtype {
	case blocks.SubtypeSend:
		amount, dest, res, err := l.prepareSend(blk, info)
		if err != nil || res != Progress {
			return res, err
		}
		newBalance = info.Balance.Sub(amount)
		if blk.Kind == blocks.KindState {
			newBalance = blk.Balance
		}
		key := blocks.PendingKey{Destination: dest, Hash: hash}
		if err := wtx.PutPending(key, &blocks.PendingEntry{Source: account, Amount: amount, Epoch: epoch}); err != nil {
			return Progress, err
		}
		isSend = true

	case blocks.SubtypeOpen:
		if blk.Representative.IsZero() {
			return RepresentativeMismatch, nil
		}
		if blk.Kind == blocks.KindState && epoch > 0 {
			// Epoch-open: the account is being created directly at a given
			// epoch with no receive, so Link is the epoch sentinel, not a
			// pending source. It is accepted only once something is pending
			// for the account; until then it is parked so the block
			// processor can retry it when a send to the account lands.
			if blk.Balance.Cmp(blocks.ZeroAmount) != 0 {
				return BalanceMismatch, nil
			}
			hasPending, err := wtx.HasPendingForAccount(account)
			if err != nil {
				return Progress, err
			}
			if !hasPending {
				return GapEpochOpenPending, nil
			}
			newBalance = blocks.ZeroAmount
			newRepresentative = blk.Representative
			isEpoch = true
			break
		}
		fallthrough

	case blocks.SubtypeReceive:
		source := receiveSource(blk)
		key := blocks.PendingKey{Destination: account, Hash: source}
		pending, err := wtx.PendingInTxn(key)
		if errors.Is(err, store.ErrNotFound) {
			if _, err := wtx.BlockInTxn(source); errors.Is(err, store.ErrNotFound) {
				return GapSource, nil
			}
			return Unreceivable, nil
		}
		if err != nil {
			return Progress, err
		}
		newBalance = info.Balance.Add(pending.Amount)
		if blk.Kind == blocks.KindState && newBalance.Cmp(blk.Balance) != 0 {
			return BalanceMismatch, nil
		}
		if subtype == blocks.SubtypeOpen {
			newRepresentative = blk.Representative
			if epoch < pending.Epoch {
				epoch = pending.Epoch
			}
		}
		wtx.DeletePending(key)
		wtx.PutPendingConsumedBy(key, hash)
		isReceive = true

	case blocks.SubtypeChange:
		if blk.Representative.IsZero() {
			return RepresentativeMismatch, nil
		}
		if blk.Kind == blocks.KindState && blk.Balance.Cmp(info.Balance) != 0 {
			return BalanceMismatch, nil
		}
		newRepresentative = blk.Representative

	case blocks.SubtypeEpoch:
		if blk.Balance.Cmp(info.Balance) != 0 {
			return BalanceMismatch, nil
		}
		if epoch <= info.Epoch {
			return BlockPosition, nil
		}
		isEpoch = true

	default:
		return BlockPosition, nil
	}

	if opened {
		l.weights.Subtract(info.Representative, info.Balance)
	}
	l.weights.Add(newRepresentative, newBalance)

	newInfo := &blocks.AccountInfo{
		Head:           hash,
		Representative: newRepresentative,
		OpenBlock:      info.OpenBlock,
		Balance:        newBalance,
		ModifiedTime:   l.now(),
		BlockCount:     info.BlockCount + 1,
		Epoch:          epoch,
	}
	if !opened {
		newInfo.OpenBlock = hash
	}
	if err := wtx.PutAccount(account, newInfo); err != nil {
		return Progress, err
	}

	sb := &blocks.StoredBlock{
		Block: *blk,
		Sideband: blocks.Sideband{
			Account:   account,
			Height:    newInfo.BlockCount,
			Timestamp: l.now(),
			Balance:   newBalance,
			Details:   blocks.Details{Epoch: epoch, IsSend: isSend, IsReceive: isReceive, IsEpoch: isEpoch},
		},
	}
	if err := wtx.PutBlock(hash, sb); err != nil {
		return Progress, err
	}
	wtx.PutFrontier(hash, account)

	if !blk.Previous.IsZero() {
		if predecessor, err := wtx.BlockInTxn(blk.Previous); err == nil {
			predecessor.Sideband.Successor = hash
			if err := wtx.PutBlock(blk.Previous, predecessor); err != nil {
				return Progress, err
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return Progress, err
		}
	}

	l.cache.addBlock(1)
	if !opened {
		l.cache.addAccount(1)
	}
	l.cache.observeEpoch(epoch)
	l.weights.SetBlockCount(l.cache.BlockCount())

	return Progress, nil
}

func (l *Ledger) prepareSend(blk *blocks.Block, info *blocks.AccountInfo) (blocks.Amount, blocks.Account, ProcessResult, error) {
	dest := sendDestination(blk)
	if blk.Kind == blocks.KindState {
		if blk.Balance.Cmp(info.Balance) >= 0 {
			return blocks.ZeroAmount, dest, NegativeSpend, nil
		}
		return info.Balance.Sub(blk.Balance), dest, Progress, nil
	}
	if blk.Balance.Cmp(info.Balance) >= 0 {
		return blocks.ZeroAmount, dest, NegativeSpend, nil
	}
	return info.Balance.Sub(blk.Balance), dest, Progress, nil
}

func sendDestination(blk *blocks.Block) blocks.Account {
	if blk.Kind == blocks.KindState {
		return blocks.Account(blk.Link)
	}
	return blk.Destination
}

func receiveSource(blk *blocks.Block) blocks.BlockHash {
	if blk.Kind == blocks.KindState {
		return blocks.BlockHash(blk.Link)
	}
	return blk.Source
}

// Rollback undoes hash and everything built on top of it, cascading across
// chains when a send's receiver has already processed its receive.
func (l *Ledger) Rollback(wtx *store.WriteTxn, hash blocks.BlockHash) error {
	return l.rollbackOne(wtx, hash, map[blocks.BlockHash]bool{})
}

func (l *Ledger) rollbackOne(wtx *store.WriteTxn, hash blocks.BlockHash, visited map[blocks.BlockHash]bool) error {
	if visited[hash] {
		return nil
	}
	visited[hash] = true

	sb, err := wtx.BlockInTxn(hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	account := sb.Sideband.Account
	info, err := wtx.AccountInTxn(account)
	if err != nil {
		return err
	}

	confirmed, err := wtx.ConfirmationHeightInTxn(account)
	if err != nil {
		return err
	}
	if confirmed.Height > 0 && sb.Sideband.Height <= confirmed.Height {
		return ErrRollbackConfirmed
	}

	if info.Head != hash && !sb.Sideband.Successor.IsZero() {
		if err := l.rollbackOne(wtx, sb.Sideband.Successor, visited); err != nil {
			return err
		}
		info, err = wtx.AccountInTxn(account)
		if err != nil {
			return err
		}
	}

	if sb.Sideband.Details.IsSend {
		dest := sendDestination(&sb.Block)
		key := blocks.PendingKey{Destination: dest, Hash: hash}
		if consumer, ok, err := wtx.PendingConsumedBy(key); err != nil {
			return err
		} else if ok {
			if err := l.rollbackOne(wtx, consumer, visited); err != nil {
				return err
			}
		}
		wtx.DeletePending(key)
		wtx.DeletePendingConsumedBy(key)
	}

	if sb.Sideband.Details.IsReceive {
		source := receiveSource(&sb.Block)
		key := blocks.PendingKey{Destination: account, Hash: source}
		entry, err := reconstructPendingEntry(wtx, source)
		if err != nil {
			return err
		}
		if err := wtx.PutPending(key, entry); err != nil {
			return err
		}
		wtx.DeletePendingConsumedBy(key)
	}

	l.weights.Subtract(info.Representative, info.Balance)

	if sb.Block.Previous.IsZero() {
		wtx.DeleteAccount(account)
		l.cache.addAccount(-1)
	} else {
		predecessor, err := wtx.BlockInTxn(sb.Block.Previous)
		if err != nil {
			return err
		}
		// Legacy send/receive blocks carry no representative, so walk back
		// to the nearest block that names one.
		rep := predecessor.Block.Representative
		for cur := predecessor; rep.IsZero() && !cur.Block.Previous.IsZero(); {
			if cur, err = wtx.BlockInTxn(cur.Block.Previous); err != nil {
				return err
			}
			rep = cur.Block.Representative
		}
		restored := &blocks.AccountInfo{
			Head:           sb.Block.Previous,
			Representative: rep,
			OpenBlock:      info.OpenBlock,
			Balance:        predecessor.Sideband.Balance,
			ModifiedTime:   l.now(),
			BlockCount:     info.BlockCount - 1,
			Epoch:          predecessor.Sideband.Details.Epoch,
		}
		if err := wtx.PutAccount(account, restored); err != nil {
			return err
		}
		l.weights.Add(restored.Representative, restored.Balance)
		predecessor.Sideband.Successor = blocks.BlockHash{}
		if err := wtx.PutBlock(sb.Block.Previous, predecessor); err != nil {
			return err
		}
	}

	wtx.DeleteBlock(hash)
	wtx.DeleteFrontier(hash)
	l.cache.addBlock(-1)

	return nil
}

// reconstructPendingEntry rebuilds the PendingEntry a send produced, read
// back from the send block's own stored sideband rather than from a
// separately persisted copy (the send's amount is the delta between its
// balance and its predecessor's balance, both already on disk).
func reconstructPendingEntry(wtx *store.WriteTxn, sendHash blocks.BlockHash) (*blocks.PendingEntry, error) {
	sendStored, err := wtx.BlockInTxn(sendHash)
	if err != nil {
		return nil, fmt.Errorf("ledger: reconstruct pending for %s: %w", sendHash, err)
	}
	previousBalance := blocks.ZeroAmount
	if !sendStored.Block.Previous.IsZero() {
		pred, err := wtx.BlockInTxn(sendStored.Block.Previous)
		if err != nil {
			return nil, err
		}
		previousBalance = pred.Sideband.Balance
	}
	amount := previousBalance.Sub(sendStored.Sideband.Balance)
	return &blocks.PendingEntry{
		Source: sendStored.Sideband.Account,
		Amount: amount,
		Epoch:  sendStored.Sideband.Details.Epoch,
	}, nil
}
