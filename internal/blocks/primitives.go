// Package blocks implements the block model: the four legacy block kinds
// plus the unified state block, canonical hashing, signing and the work
// threshold contract.
package blocks

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math/big"
)

// Hash32 is the shared 32-byte representation behind Account, BlockHash and
// Root: all three are the same wire shape and only differ by what they mean
// in context.
type Hash32 [32]byte

func (h Hash32) IsZero() bool { return h == Hash32{} }

func (h Hash32) Bytes() []byte { return h[:] }

func (h Hash32) String() string { return hex.EncodeToString(h[:]) }

func HashFromHex(s string) (Hash32, error) {
	var h Hash32
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, errors.New("blocks: wrong hash length")
	}
	copy(h[:], b)
	return h, nil
}

// Account is a 256-bit ed25519 public key. It doubles as the "link" field
// destination in state-block sends and as a representative identifier.
type Account Hash32

func (a Account) String() string { return Hash32(a).String() }
func (a Account) IsZero() bool   { return Hash32(a).IsZero() }

// BurnAccount is the all-zero account; it may never be opened.
var BurnAccount Account

// BlockHash is the 256-bit digest over a block's canonical fields.
type BlockHash Hash32

func (h BlockHash) String() string { return Hash32(h).String() }
func (h BlockHash) IsZero() bool   { return Hash32(h).IsZero() }

// Root identifies a chain position: the previous block hash on an opened
// chain, or the account itself for the first block of a chain.
type Root Hash32

func (r Root) String() string { return Hash32(r).String() }

func RootFromAccount(a Account) Root    { return Root(a) }
func RootFromHash(h BlockHash) Root     { return Root(h) }

// QualifiedRoot is (root, previous); it is unique per chain position and is
// used as the election key so forks at the same height share a root.
type QualifiedRoot struct {
	Root     Root
	Previous BlockHash
}

// Signature is a 512-bit ed25519 signature.
type Signature [64]byte

func (s Signature) Bytes() []byte { return s[:] }

// Work is the 64-bit proof-of-work nonce.
type Work uint64

func (w Work) Bytes() []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(w))
	return b[:]
}

// Amount is a 128-bit unsigned integer; the total supply fits within it.
type Amount [16]byte

var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// NewAmount builds an Amount from a big.Int, rejecting negative values and
// values that overflow 128 bits.
func NewAmount(v *big.Int) (Amount, error) {
	var a Amount
	if v.Sign() < 0 {
		return a, errors.New("blocks: negative amount")
	}
	if v.Cmp(maxAmount) > 0 {
		return a, errors.New("blocks: amount overflows 128 bits")
	}
	b := v.Bytes()
	copy(a[16-len(b):], b)
	return a, nil
}

func (a Amount) BigInt() *big.Int {
	return new(big.Int).SetBytes(a[:])
}

func (a Amount) IsZero() bool { return a == Amount{} }

// Cmp compares two amounts the way big.Int.Cmp does.
func (a Amount) Cmp(b Amount) int {
	return a.BigInt().Cmp(b.BigInt())
}

// Sub returns a-b; the caller must already know a >= b (callers in ledger
// check that before calling, since an underflow here is always a logic
// error, never user input).
func (a Amount) Sub(b Amount) Amount {
	out, err := NewAmount(new(big.Int).Sub(a.BigInt(), b.BigInt()))
	if err != nil {
		panic("blocks: amount underflow: " + err.Error())
	}
	return out
}

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	out, err := NewAmount(new(big.Int).Add(a.BigInt(), b.BigInt()))
	if err != nil {
		panic("blocks: amount overflow: " + err.Error())
	}
	return out
}

// ZeroAmount is the zero-value Amount; defined for readability at call
// sites instead of spelling out Amount{}.
var ZeroAmount Amount
