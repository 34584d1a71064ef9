package store

import (
	"encoding/binary"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/blocks"
)

// Key layout: one flat keyspace, partitioned by a short ASCII prefix per
// table, using byte-prefixed keys with big-endian numeric suffixes so
// range scans stay in key order.
var (
	prefixAccount            = []byte("a:")
	prefixBlock               = []byte("b:")
	prefixPending             = []byte("p:")
	prefixFrontier            = []byte("f:") // legacy hash -> account index
	prefixConfirmationHeight  = []byte("c:")
	prefixRepresentationSeed  = []byte("r:") // bootstrap seed weights
	prefixPeer                = []byte("n:")
	prefixOnlineWeightSample  = []byte("w:")
	prefixUnchecked           = []byte("u:")
	prefixPendingConsumedBy   = []byte("k:") // (destination,hash) -> consumer block hash
	keyMeta                   = []byte("meta:version")
)

func accountKey(a blocks.Account) []byte { return append(append([]byte{}, prefixAccount...), a.Bytes()...) }

func blockKey(h blocks.BlockHash) []byte { return append(append([]byte{}, prefixBlock...), h.Bytes()...) }

func pendingKey(k blocks.PendingKey) []byte {
	out := append([]byte{}, prefixPending...)
	out = append(out, k.Destination.Bytes()...)
	out = append(out, k.Hash.Bytes()...)
	return out
}

func pendingPrefixForAccount(a blocks.Account) []byte {
	return append(append([]byte{}, prefixPending...), a.Bytes()...)
}

func frontierKey(h blocks.BlockHash) []byte {
	return append(append([]byte{}, prefixFrontier...), h.Bytes()...)
}

func confirmationHeightKey(a blocks.Account) []byte {
	return append(append([]byte{}, prefixConfirmationHeight...), a.Bytes()...)
}

func representationSeedKey(a blocks.Account) []byte {
	return append(append([]byte{}, prefixRepresentationSeed...), a.Bytes()...)
}

func peerKey(id string) []byte { return append(append([]byte{}, prefixPeer...), []byte(id)...) }

func onlineWeightSampleKey(seq uint64) []byte {
	out := append([]byte{}, prefixOnlineWeightSample...)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return append(out, b[:]...)
}

func uncheckedKey(dependency blocks.BlockHash, blockHash blocks.BlockHash) []byte {
	out := append([]byte{}, prefixUnchecked...)
	out = append(out, dependency.Bytes()...)
	out = append(out, blockHash.Bytes()...)
	return out
}

func uncheckedPrefixForDependency(dependency blocks.BlockHash) []byte {
	return append(append([]byte{}, prefixUnchecked...), dependency.Bytes()...)
}

func pendingConsumedByKey(k blocks.PendingKey) []byte {
	out := append([]byte{}, prefixPendingConsumedBy...)
	out = append(out, k.Destination.Bytes()...)
	out = append(out, k.Hash.Bytes()...)
	return out
}

// prefixUpperBound returns the smallest key strictly greater than every key
// sharing prefix, for use as the exclusive end of a range scan.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff: unbounded
}
