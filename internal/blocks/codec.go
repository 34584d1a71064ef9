package blocks

import "encoding/json"

// EncodeStoredBlock and DecodeStoredBlock are the store's wire format for a
// block+sideband pair. See json.go for why JSON-with-hex was chosen over a
// byte-exact scheme.

func EncodeStoredBlock(sb *StoredBlock) ([]byte, error) { return json.Marshal(sb) }

func DecodeStoredBlock(data []byte) (*StoredBlock, error) {
	var sb StoredBlock
	if err := json.Unmarshal(data, &sb); err != nil {
		return nil, err
	}
	return &sb, nil
}

func EncodeAccountInfo(a *AccountInfo) ([]byte, error) { return json.Marshal(a) }

func DecodeAccountInfo(data []byte) (*AccountInfo, error) {
	var a AccountInfo
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func EncodePendingEntry(p *PendingEntry) ([]byte, error) { return json.Marshal(p) }

func DecodePendingEntry(data []byte) (*PendingEntry, error) {
	var p PendingEntry
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func EncodeConfirmationHeight(c *ConfirmationHeight) ([]byte, error) { return json.Marshal(c) }

func DecodeConfirmationHeight(data []byte) (*ConfirmationHeight, error) {
	var c ConfirmationHeight
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
