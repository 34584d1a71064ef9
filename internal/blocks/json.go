package blocks

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// The wire/store types below are 32 or 64 byte arrays; without a custom
// codec encoding/json would render them as arrays of small integers, which
// is neither human-legible nor what any collaborator expects on the query
// surface.

func marshalHex(b []byte) ([]byte, error) { return json.Marshal(hex.EncodeToString(b)) }

func unmarshalHex(data []byte, out []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(out) {
		return fmt.Errorf("blocks: expected %d bytes, got %d", len(out), len(b))
	}
	copy(out, b)
	return nil
}

func (h Hash32) MarshalJSON() ([]byte, error)     { return marshalHex(h[:]) }
func (h *Hash32) UnmarshalJSON(d []byte) error     { return unmarshalHex(d, h[:]) }
func (a Account) MarshalJSON() ([]byte, error)     { return marshalHex(a[:]) }
func (a *Account) UnmarshalJSON(d []byte) error    { return unmarshalHex(d, a[:]) }
func (h BlockHash) MarshalJSON() ([]byte, error)   { return marshalHex(h[:]) }
func (h *BlockHash) UnmarshalJSON(d []byte) error  { return unmarshalHex(d, h[:]) }
func (r Root) MarshalJSON() ([]byte, error)        { return marshalHex(r[:]) }
func (r *Root) UnmarshalJSON(d []byte) error       { return unmarshalHex(d, r[:]) }
func (s Signature) MarshalJSON() ([]byte, error)   { return marshalHex(s[:]) }
func (s *Signature) UnmarshalJSON(d []byte) error  { return unmarshalHex(d, s[:]) }
func (a Amount) MarshalJSON() ([]byte, error)      { return marshalHex(a[:]) }
func (a *Amount) UnmarshalJSON(d []byte) error      { return unmarshalHex(d, a[:]) }

func (k Kind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }
func (k *Kind) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return err
	}
	for _, c := range []Kind{KindSend, KindReceive, KindOpen, KindChange, KindState} {
		if c.String() == s {
			*k = c
			return nil
		}
	}
	*k = KindInvalid
	return nil
}
