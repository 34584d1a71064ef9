package blocks

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Kind is the tagged discriminant of a Block. Four legacy kinds exist for
// historical compatibility; KindState is the unified current kind.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindSend
	KindReceive
	KindOpen
	KindChange
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindReceive:
		return "receive"
	case KindOpen:
		return "open"
	case KindChange:
		return "change"
	case KindState:
		return "state"
	default:
		return "invalid"
	}
}

// Subtype is the semantics a state block carries, inferred from
// (previous balance, new balance, link).
type Subtype uint8

const (
	SubtypeInvalid Subtype = iota
	SubtypeSend
	SubtypeReceive
	SubtypeOpen
	SubtypeChange
	SubtypeEpoch
)

func (s Subtype) String() string {
	switch s {
	case SubtypeSend:
		return "send"
	case SubtypeReceive:
		return "receive"
	case SubtypeOpen:
		return "open"
	case SubtypeChange:
		return "change"
	case SubtypeEpoch:
		return "epoch"
	default:
		return "invalid"
	}
}

// Block is a single tagged variant holding every field any of the four
// legacy kinds or the unified state kind may need. Unused fields for a
// given Kind are left at their zero value. A single Visit-style switch over
// Kind (see Process in the ledger package) replaces runtime dispatch over a
// block-kind hierarchy.
type Block struct {
	Kind      Kind
	Signature Signature
	Work      Work

	// Account chain position. Account is explicit on state/open blocks; for
	// the remaining legacy kinds it is supplied out-of-band by whichever
	// chain the block is being applied to (legacy wire blocks do not self-
	// describe their account).
	Account  Account
	Previous BlockHash // zero on open/state-open

	// send (legacy): new balance after the send, explicit.
	// state: unified balance field for every subtype.
	Balance Amount

	Destination    Account   // legacy send: destination account
	Source         BlockHash // legacy receive/open, and state-receive convenience: the send block being received
	Representative Account   // legacy open/change, state: representative

	// Link carries the state block's subtype-dependent payload: a
	// destination account (send), a source block hash (receive), an epoch
	// sentinel (epoch upgrade), or zero (change).
	Link Hash32
}

// Root is the election/frontier key for this block: its previous hash if
// any, otherwise its account (first block of a chain).
func (b *Block) Root() Root {
	if b.Previous.IsZero() {
		return RootFromAccount(b.Account)
	}
	return RootFromHash(b.Previous)
}

func (b *Block) QualifiedRoot() QualifiedRoot {
	return QualifiedRoot{Root: b.Root(), Previous: b.Previous}
}

// canonicalFields returns the byte sequence hashed to produce the block
// hash, ordered and scoped per kind so that two blocks of different kinds
// can never collide even if their shared fields match.
func (b *Block) canonicalFields() ([]byte, error) {
	var buf []byte
	switch b.Kind {
	case KindSend:
		buf = append(buf, []byte("send")...)
		buf = append(buf, b.Previous.Bytes()...)
		buf = append(buf, b.Destination.Bytes()...)
		buf = append(buf, b.Balance[:]...)
	case KindReceive:
		buf = append(buf, []byte("receive")...)
		buf = append(buf, b.Previous.Bytes()...)
		buf = append(buf, b.Source.Bytes()...)
	case KindOpen:
		buf = append(buf, []byte("open")...)
		buf = append(buf, b.Source.Bytes()...)
		buf = append(buf, b.Representative.Bytes()...)
		buf = append(buf, b.Account.Bytes()...)
	case KindChange:
		buf = append(buf, []byte("change")...)
		buf = append(buf, b.Previous.Bytes()...)
		buf = append(buf, b.Representative.Bytes()...)
	case KindState:
		buf = append(buf, []byte("state")...)
		buf = append(buf, b.Account.Bytes()...)
		buf = append(buf, b.Previous.Bytes()...)
		buf = append(buf, b.Representative.Bytes()...)
		buf = append(buf, b.Balance[:]...)
		buf = append(buf, b.Link.Bytes()...)
	default:
		return nil, fmt.Errorf("blocks: cannot hash kind %v", b.Kind)
	}
	return buf, nil
}

// Hash computes the canonical block hash: blake2b-256 over the kind-scoped
// field sequence.
func (b *Block) Hash() (BlockHash, error) {
	fields, err := b.canonicalFields()
	if err != nil {
		return BlockHash{}, err
	}
	digest := blake2b.Sum256(fields)
	return BlockHash(digest), nil
}

// SigningAccount is the account whose key must produce Signature: the
// block's own account, except for epoch-upgrade state blocks, which are
// signed by the configured epoch signer instead.
func (b *Block) SigningAccount(epochSigner Account, isEpoch bool) Account {
	if isEpoch {
		return epochSigner
	}
	return b.Account
}

// Sign computes Hash and signs it with priv, storing the result on b.
func (b *Block) Sign(priv ed25519.PrivateKey) error {
	h, err := b.Hash()
	if err != nil {
		return err
	}
	sig := ed25519.Sign(priv, h.Bytes())
	copy(b.Signature[:], sig)
	return nil
}

// VerifySignature checks Signature against signer's declared public key.
func (b *Block) VerifySignature(signer Account) (bool, error) {
	h, err := b.Hash()
	if err != nil {
		return false, err
	}
	pub := ed25519.PublicKey(signer.Bytes())
	return ed25519.Verify(pub, h.Bytes(), b.Signature.Bytes()), nil
}

// WorkDigest returns the digest validated against the work threshold: a
// blake2b hash of (root || work), work encoded little-endian.
func WorkDigest(root Root, work Work) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write(root[:])
	h.Write(work.Bytes())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// WorkValue interprets the last 8 bytes of a work digest as a big-endian
// uint64 for comparison against a threshold: the higher the value, the more work was
// done, matching the nano/futurehead convention of "digest >= threshold".
func WorkValue(digest [32]byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(digest[len(digest)-1-i]) << (8 * i)
	}
	return v
}

// ValidateWork reports whether work meets threshold for root.
func ValidateWork(root Root, work Work, threshold uint64) bool {
	return WorkValue(WorkDigest(root, work)) >= threshold
}

var errNoLink = errors.New("blocks: state block with zero previous and zero link")

// InferSubtype implements the state-block subtype inference rules.
// previousBalance is the sender/receiver's balance before this block (zero
// for an unopened account); epochLinkOf is supplied by the caller (the
// ledger) since only it knows the configured epoch link table. The epoch
// signer is not checked here.
func (b *Block) InferSubtype(previousBalance Amount, epochLinkOf func(Hash32) (epoch uint32, ok bool)) (Subtype, uint32, error) {
	if b.Kind != KindState {
		return SubtypeInvalid, 0, fmt.Errorf("blocks: InferSubtype called on kind %v", b.Kind)
	}
	opened := !b.Previous.IsZero()
	if !opened {
		if b.Link.IsZero() {
			return SubtypeInvalid, 0, errNoLink
		}
		// An unopened account may be opened directly at any epoch: the
		// link is the epoch sentinel instead of a pending source hash.
		if epoch, ok := epochLinkOf(b.Link); ok {
			return SubtypeOpen, epoch, nil
		}
		return SubtypeOpen, 0, nil
	}
	switch b.Balance.Cmp(previousBalance) {
	case -1:
		return SubtypeSend, 0, nil
	case 1:
		return SubtypeReceive, 0, nil
	default:
		if b.Link.IsZero() {
			return SubtypeChange, 0, nil
		}
		if epoch, ok := epochLinkOf(b.Link); ok {
			return SubtypeEpoch, epoch, nil
		}
		return SubtypeInvalid, 0, fmt.Errorf("blocks: state block balance unchanged with non-epoch, non-zero link")
	}
}
