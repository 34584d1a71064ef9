package blocks

// Details is the subtype tag computed once at process-time and stored in
// the sideband so callers never re-infer it (design note: "polymorphic
// block dispatch").
type Details struct {
	Epoch     uint32
	IsSend    bool
	IsReceive bool
	IsEpoch   bool
}

// Sideband is derived per-block metadata, computed at process-time and
// stored alongside the block so queries never need to re-derive it.
// Every block kind, legacy or state, has all of these fields populated.
type Sideband struct {
	Account      Account
	Height       uint64
	Timestamp    uint64 // seconds since epoch, from the Clock collaborator
	Successor    BlockHash
	Balance      Amount
	Details      Details
}

// AccountInfo is the per-account chain head record.
type AccountInfo struct {
	Head           BlockHash
	Representative Account
	OpenBlock      BlockHash
	Balance        Amount
	ModifiedTime   uint64
	BlockCount     uint64
	Epoch          uint32
}

// PendingKey is (destination account, send-hash).
type PendingKey struct {
	Destination Account
	Hash        BlockHash
}

// PendingEntry is the value of a pending (receivable) record.
type PendingEntry struct {
	Source Account
	Amount Amount
	Epoch  uint32
}

// ConfirmationHeight is the per-account confirmed-block count.
type ConfirmationHeight struct {
	Height   uint64
	Frontier BlockHash
}

// StoredBlock pairs a block with its sideband, the unit the store persists.
type StoredBlock struct {
	Block    Block
	Sideband Sideband
}
