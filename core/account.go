package core

// Account identifiers are U256 values displayed with a network-scoped
// human tag, base-32 grouped, and checksummed. Grounded on
// original_source/btcb/lib/numbers.hpp (`uint256_union::encode_account`) and
// the public btcb/nano account-string convention: alphabet
// "13456789abcdefghijkmnopqrstuwxyz" (digits 0, 2, and the letters l, v are
// dropped to avoid visual confusion with 1/O and u) and a 40-bit blake2b
// checksum of the 32 account bytes, little-endian in the 5-bit grouping.

import (
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const accountAlphabet = "13456789abcdefghijkmnopqrstuwxyz"

// ErrInvalidAccount is returned by DecodeAccount for any malformed input:
// wrong tag, bad character, or checksum mismatch.
var ErrInvalidAccount = errors.New("core: invalid account string")

var accountAlphabetIndex = func() map[byte]uint64 {
	m := make(map[byte]uint64, len(accountAlphabet))
	for i := 0; i < len(accountAlphabet); i++ {
		m[accountAlphabet[i]] = uint64(i)
	}
	return m
}()

// Account is a 256-bit public key identifying a chain.
type Account = U256

// EncodeAccount renders account as "<tag>_<52 base32 chars><8 base32 checksum chars>"
// for the given network tag (e.g. "btcb").
func EncodeAccount(tag string, account Account) string {
	// 4 padding bits + 256 account bits + 40 checksum bits = 300 bits,
	// grouped into 60 5-bit symbols: 52 for the account, 8 for the checksum.
	var bits [300]byte // bit buffer, one bit per byte for simplicity
	idx := 0
	// 4 padding zero bits so the account occupies exactly 260 bits (52*5).
	for i := 0; i < 4; i++ {
		bits[idx] = 0
		idx++
	}
	for _, b := range account[:] {
		for i := 7; i >= 0; i-- {
			bits[idx] = (b >> uint(i)) & 1
			idx++
		}
	}
	checksum := accountChecksum(account)
	for _, b := range checksum {
		for i := 7; i >= 0; i-- {
			bits[idx] = (b >> uint(i)) & 1
			idx++
		}
	}

	var sb strings.Builder
	sb.WriteString(tag)
	sb.WriteByte('_')
	for i := 0; i < 300; i += 5 {
		var v uint64
		for j := 0; j < 5; j++ {
			v = v<<1 | uint64(bits[i+j])
		}
		sb.WriteByte(accountAlphabet[v])
	}
	return sb.String()
}

// DecodeAccount parses an encoded account string for the given network tag,
// validating the checksum.
func DecodeAccount(tag string, s string) (Account, error) {
	var out Account
	prefix := tag + "_"
	if !strings.HasPrefix(s, prefix) {
		return out, ErrInvalidAccount
	}
	body := s[len(prefix):]
	if len(body) != 60 {
		return out, ErrInvalidAccount
	}
	var bits [300]byte
	for i := 0; i < 60; i++ {
		v, ok := accountAlphabetIndex[body[i]]
		if !ok {
			return out, ErrInvalidAccount
		}
		for j := 0; j < 5; j++ {
			bits[i*5+j] = byte((v >> uint(4-j)) & 1)
		}
	}
	// first 4 bits must be zero padding
	for i := 0; i < 4; i++ {
		if bits[i] != 0 {
			return out, ErrInvalidAccount
		}
	}
	var accountBytes [32]byte
	for i := 0; i < 32; i++ {
		var v byte
		for j := 0; j < 8; j++ {
			v = v<<1 | bits[4+i*8+j]
		}
		accountBytes[i] = v
	}
	var checksum [5]byte
	for i := 0; i < 5; i++ {
		var v byte
		for j := 0; j < 8; j++ {
			v = v<<1 | bits[260+i*8+j]
		}
		checksum[i] = v
	}
	copy(out[:], accountBytes[:])
	if accountChecksum(out) != checksum {
		return out, ErrInvalidAccount
	}
	return out, nil
}

// accountChecksum is the 5-byte (40-bit) blake2b digest of the account
// bytes, stored reversed (little-endian symbol order) the way the source's
// union write does for its in-place checksum bytes.
func accountChecksum(account Account) [5]byte {
	h, err := blake2b.New(5, nil)
	if err != nil {
		panic(err) // only fails for invalid output sizes, 5 is always valid
	}
	h.Write(account[:])
	sum := h.Sum(nil)
	var out [5]byte
	for i := 0; i < 5; i++ {
		out[i] = sum[4-i]
	}
	return out
}

// BurnAccount is the all-zero account that can never be a valid chain head;
// an `open` block naming it as account is rejected with `opened_burn_account`.
var BurnAccount = Account{}
