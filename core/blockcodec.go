package core

// Two binary forms per spec §4.A: "typed" (1-byte kind tag precedes the
// body) and "untyped" (no tag, used once the wire envelope or the per-kind
// block table already conveys the kind; the store keeps block rows in this
// form). JSON mirrors the field set with hex hashes and decimal balances.

import (
	"encoding/json"
	"errors"
)

// ErrShortBuffer is returned by any binary decoder fed too few bytes.
var ErrShortBuffer = errors.New("core: short buffer")

// ErrUnknownKind is returned when a typed decode encounters an
// unrecognised leading kind byte.
var ErrUnknownKind = errors.New("core: unknown block kind")

// SerializeUntyped writes the variant-specific body, signature, and work —
// no leading kind byte.
func (b *Block) SerializeUntyped() []byte {
	switch b.Kind {
	case KindSend:
		out := make([]byte, 0, 152)
		out = append(out, b.Previous[:]...)
		out = append(out, b.Destination[:]...)
		out = append(out, b.Balance[:]...)
		out = append(out, b.Signature[:]...)
		return append(out, be64(uint64(b.Work))...)
	case KindReceive:
		out := make([]byte, 0, 136)
		out = append(out, b.Previous[:]...)
		out = append(out, b.Source[:]...)
		out = append(out, b.Signature[:]...)
		return append(out, be64(uint64(b.Work))...)
	case KindOpen:
		out := make([]byte, 0, 168)
		out = append(out, b.Source[:]...)
		out = append(out, b.Representative[:]...)
		out = append(out, b.OpenAccount[:]...)
		out = append(out, b.Signature[:]...)
		return append(out, be64(uint64(b.Work))...)
	case KindChange:
		out := make([]byte, 0, 136)
		out = append(out, b.Previous[:]...)
		out = append(out, b.Representative[:]...)
		out = append(out, b.Signature[:]...)
		return append(out, be64(uint64(b.Work))...)
	case KindState:
		out := make([]byte, 0, 216)
		out = append(out, b.StateAccount[:]...)
		out = append(out, b.Previous[:]...)
		out = append(out, b.Representative[:]...)
		out = append(out, b.Balance[:]...)
		out = append(out, b.StateLink[:]...)
		out = append(out, b.Signature[:]...)
		return append(out, be64(uint64(b.Work))...)
	default:
		return nil
	}
}

// SerializeTyped prepends the 1-byte kind tag to the untyped form, for
// contexts where nothing else conveys the kind.
func (b *Block) SerializeTyped() []byte {
	return append([]byte{byte(b.Kind)}, b.SerializeUntyped()...)
}

// DeserializeUntyped parses a body of the given kind with no leading tag
// byte, the form used when the envelope (wire header or store table)
// already conveys the kind.
func DeserializeUntyped(kind Kind, buf []byte) (*Block, error) {
	b := &Block{Kind: kind}
	read := func(n int) ([]byte, error) {
		if len(buf) < n {
			return nil, ErrShortBuffer
		}
		out := buf[:n]
		buf = buf[n:]
		return out, nil
	}
	switch kind {
	case KindSend:
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.Previous[:], f)
		}
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.Destination[:], f)
		}
		if f, err := read(16); err != nil {
			return nil, err
		} else {
			copy(b.Balance[:], f)
		}
	case KindReceive:
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.Previous[:], f)
		}
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.Source[:], f)
		}
	case KindOpen:
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.Source[:], f)
		}
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.Representative[:], f)
		}
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.OpenAccount[:], f)
		}
	case KindChange:
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.Previous[:], f)
		}
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.Representative[:], f)
		}
	case KindState:
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.StateAccount[:], f)
		}
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.Previous[:], f)
		}
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.Representative[:], f)
		}
		if f, err := read(16); err != nil {
			return nil, err
		} else {
			copy(b.Balance[:], f)
		}
		if f, err := read(32); err != nil {
			return nil, err
		} else {
			copy(b.StateLink[:], f)
		}
	default:
		return nil, ErrUnknownKind
	}
	if f, err := read(64); err != nil {
		return nil, err
	} else {
		copy(b.Signature[:], f)
	}
	if f, err := read(8); err != nil {
		return nil, err
	} else {
		var v uint64
		for i := 0; i < 8; i++ {
			v = v<<8 | uint64(f[i])
		}
		b.Work = Work(v)
	}
	return b, nil
}

// DeserializeTyped reads the leading kind byte then delegates to
// DeserializeUntyped.
func DeserializeTyped(buf []byte) (*Block, error) {
	if len(buf) < 1 {
		return nil, ErrShortBuffer
	}
	return DeserializeUntyped(Kind(buf[0]), buf[1:])
}

// blockJSON mirrors the field set for JSON display; hashes are hex, amounts
// decimal, and state blocks additionally emit `link_as_account`.
type blockJSON struct {
	Type           string `json:"type"`
	Previous       string `json:"previous,omitempty"`
	Destination    string `json:"destination,omitempty"`
	Balance        string `json:"balance,omitempty"`
	Source         string `json:"source,omitempty"`
	Representative string `json:"representative,omitempty"`
	Account        string `json:"account,omitempty"`
	Link           string `json:"link,omitempty"`
	LinkAsAccount  string `json:"link_as_account,omitempty"`
	Signature      string `json:"signature"`
	Work           string `json:"work"`
}

// MarshalJSON implements json.Marshaler using the hex/decimal display form.
func (b *Block) MarshalJSON() ([]byte, error) {
	j := blockJSON{
		Type:      b.Kind.String(),
		Signature: b.Signature.Hex(),
		Work:      b.Work.Hex(),
	}
	switch b.Kind {
	case KindSend:
		j.Previous = b.Previous.Hex()
		j.Destination = EncodeAccount("btcb", b.Destination)
		j.Balance = b.Balance.DecimalString()
	case KindReceive:
		j.Previous = b.Previous.Hex()
		j.Source = b.Source.Hex()
	case KindOpen:
		j.Source = b.Source.Hex()
		j.Representative = EncodeAccount("btcb", b.Representative)
		j.Account = EncodeAccount("btcb", b.OpenAccount)
	case KindChange:
		j.Previous = b.Previous.Hex()
		j.Representative = EncodeAccount("btcb", b.Representative)
	case KindState:
		j.Account = EncodeAccount("btcb", b.StateAccount)
		j.Previous = b.Previous.Hex()
		j.Representative = EncodeAccount("btcb", b.Representative)
		j.Balance = b.Balance.DecimalString()
		j.Link = b.StateLink.Hex()
		j.LinkAsAccount = EncodeAccount("btcb", b.StateLink)
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler, failing on missing fields,
// malformed hex, or an unrecognised `type` string.
func (b *Block) UnmarshalJSON(data []byte) error {
	var j blockJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	sig, err := DecodeSignatureHex(j.Signature)
	if err != nil {
		return err
	}
	work, err := DecodeWorkHex(j.Work)
	if err != nil {
		return err
	}
	nb := &Block{Signature: sig, Work: work}
	switch j.Type {
	case "send":
		nb.Kind = KindSend
		if nb.Previous, err = DecodeU256Hex(j.Previous); err != nil {
			return err
		}
		if nb.Destination, err = DecodeAccount("btcb", j.Destination); err != nil {
			return err
		}
		if nb.Balance, err = DecodeU128Decimal(j.Balance); err != nil {
			return err
		}
	case "receive":
		nb.Kind = KindReceive
		if nb.Previous, err = DecodeU256Hex(j.Previous); err != nil {
			return err
		}
		if nb.Source, err = DecodeU256Hex(j.Source); err != nil {
			return err
		}
	case "open":
		nb.Kind = KindOpen
		if nb.Source, err = DecodeU256Hex(j.Source); err != nil {
			return err
		}
		if nb.Representative, err = DecodeAccount("btcb", j.Representative); err != nil {
			return err
		}
		if nb.OpenAccount, err = DecodeAccount("btcb", j.Account); err != nil {
			return err
		}
	case "change":
		nb.Kind = KindChange
		if nb.Previous, err = DecodeU256Hex(j.Previous); err != nil {
			return err
		}
		if nb.Representative, err = DecodeAccount("btcb", j.Representative); err != nil {
			return err
		}
	case "state":
		nb.Kind = KindState
		if nb.StateAccount, err = DecodeAccount("btcb", j.Account); err != nil {
			return err
		}
		if nb.Previous, err = DecodeU256Hex(j.Previous); err != nil {
			return err
		}
		if nb.Representative, err = DecodeAccount("btcb", j.Representative); err != nil {
			return err
		}
		if nb.Balance, err = DecodeU128Decimal(j.Balance); err != nil {
			return err
		}
		if nb.StateLink, err = DecodeU256Hex(j.Link); err != nil {
			return err
		}
	default:
		return errors.New("core: unknown block type " + j.Type)
	}
	*b = *nb
	return nil
}
