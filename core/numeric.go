package core

// Fixed-width integer primitives shared by every block and wire codec:
// 128-bit amounts, 256-bit hashes/accounts, 512-bit signatures. The source
// (original_source/btcb/lib/numbers.hpp) models these as C++ unions with
// byte/word/dword views; Go has no union type, so each gets its own struct
// with an explicit raw-bytes field and helper views computed on demand.

import (
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// ErrInvalidHex is returned by any decoder fed malformed hex input.
var ErrInvalidHex = errors.New("core: invalid hex encoding")

// ErrInvalidDecimal is returned by decimal decoders fed a non-numeric or
// out-of-range string.
var ErrInvalidDecimal = errors.New("core: invalid decimal encoding")

// U256 is the 256-bit union used for hashes, accounts, and roots. The
// numeric (word) view is backed by holiman/uint256 so difficulty and root
// comparisons are cheap machine-word operations rather than big.Int
// allocations; the raw view is the big-endian byte array hashes are defined
// over.
type U256 [32]byte

// IsZero reports whether every byte is zero.
func (u U256) IsZero() bool {
	return u == U256{}
}

// Bytes returns the raw big-endian bytes.
func (u U256) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, u[:])
	return out
}

// Hex encodes u as lower-case hex, leading zeros preserved.
func (u U256) Hex() string {
	return hex.EncodeToString(u[:])
}

// DecodeU256Hex decodes a case-insensitive hex string into a U256. Leading
// zeros are preserved; any non-hex character or wrong length is an error.
func DecodeU256Hex(s string) (U256, error) {
	var out U256
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return out, ErrInvalidHex
	}
	copy(out[:], b)
	return out, nil
}

// Big returns the numeric (word) view as a holiman/uint256.Int, used for
// difficulty and root-ordering comparisons.
func (u U256) Big() *uint256.Int {
	return new(uint256.Int).SetBytes32(u[:])
}

// Cmp orders two U256 values as unsigned 256-bit integers.
func (u U256) Cmp(o U256) int {
	return u.Big().Cmp(o.Big())
}

// U256FromUint256 builds a U256 from a holiman word value, used when
// computing derived quantities (e.g. difficulty retargets) numerically
// before folding back into the raw byte view blocks hash over.
func U256FromUint256(v *uint256.Int) U256 {
	var out U256
	b := v.Bytes32()
	copy(out[:], b[:])
	return out
}

// U128 is the 128-bit unsigned amount type. Balances are kept as a 16-byte
// big-endian array (the wire/hash-relevant view) plus are convertible to
// math/big for decimal arithmetic, since 128-bit values don't fit a machine
// word and the decimal codec needs full precision arithmetic.
type U128 [16]byte

// ZeroAmount is the additive identity.
var ZeroAmount = U128{}

// Big returns the big.Int view of an amount.
func (u U128) Big() *big.Int {
	return new(big.Int).SetBytes(u[:])
}

// U128FromBig encodes a non-negative big.Int into its 16-byte big-endian
// form. Values that don't fit in 128 bits are truncated to their low bits,
// matching the source's wraparound-free union write (callers are expected
// to keep amounts within range; the ledger never permits overflow to this
// call in the first place).
func U128FromBig(v *big.Int) U128 {
	var out U128
	b := v.Bytes()
	if len(b) > 16 {
		b = b[len(b)-16:]
	}
	copy(out[16-len(b):], b)
	return out
}

// U128FromUint64 is a convenience constructor for small constants.
func U128FromUint64(v uint64) U128 {
	return U128FromBig(new(big.Int).SetUint64(v))
}

// Add returns a+b, saturating is never required because the ledger already
// bounds amounts to <= total supply before calling this.
func (u U128) Add(o U128) U128 {
	return U128FromBig(new(big.Int).Add(u.Big(), o.Big()))
}

// Sub returns a-b. Callers must ensure a >= b; the ledger checks this before
// calling (spec §4.C step 5, "new balance <= old balance").
func (u U128) Sub(o U128) U128 {
	return U128FromBig(new(big.Int).Sub(u.Big(), o.Big()))
}

// Cmp orders two amounts.
func (u U128) Cmp(o U128) int {
	return u.Big().Cmp(o.Big())
}

// IsZero reports whether the amount is zero.
func (u U128) IsZero() bool {
	return u == U128{}
}

// DecimalString renders the amount in base-10, matching the source's
// `encode_dec`.
func (u U128) DecimalString() string {
	return u.Big().String()
}

// MulDivSmall returns u*num/den using big.Int intermediate precision, used
// for the small integer percentages (e.g. quorum percent) spec §4.E names.
func (u U128) MulDivSmall(num, den int64) U128 {
	v := new(big.Int).Mul(u.Big(), big.NewInt(num))
	v.Div(v, big.NewInt(den))
	return U128FromBig(v)
}

// DecodeU128Decimal parses a base-10 string into a U128. Negative numbers,
// empty strings, and values exceeding 128 bits are rejected.
func DecodeU128Decimal(s string) (U128, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 128 {
		return U128{}, ErrInvalidDecimal
	}
	return U128FromBig(v), nil
}

// Signature is the 512-bit ed25519 signature union.
type Signature [64]byte

// Hex encodes the signature as hex for JSON display.
func (s Signature) Hex() string { return hex.EncodeToString(s[:]) }

// DecodeSignatureHex decodes a 64-byte hex-encoded signature.
func DecodeSignatureHex(s string) (Signature, error) {
	var out Signature
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 64 {
		return out, ErrInvalidHex
	}
	copy(out[:], b)
	return out, nil
}

// Work is the 64-bit proof-of-work nonce carried by every block.
type Work uint64

// Hex encodes work as the 16-hex-digit little-endian form the source's
// `work_pool` test vectors use (e.g. S1's "9680625b39d3363d").
func (w Work) Hex() string {
	var b [8]byte
	v := uint64(w)
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
	return hex.EncodeToString(b[:])
}

// DecodeWorkHex parses the 16-hex-digit little-endian work encoding.
func DecodeWorkHex(s string) (Work, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 8 {
		return 0, ErrInvalidHex
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return Work(v), nil
}
