package core

import "golang.org/x/crypto/blake2b"

// blake2b256 hashes the concatenation of parts with a 32-byte digest size,
// the domain every block/vote hash in this package is defined over.
func blake2b256(parts ...[]byte) U256 {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out U256
	copy(out[:], h.Sum(nil))
	return out
}

// le64 encodes v as 8 little-endian bytes, used by the vote hash preimage's
// trailing sequence number (original_source/btcb/secure/common.cpp,
// `vote::hash`).
func le64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// be64 encodes v as 8 big-endian bytes, the wire byte order for multi-byte
// integers per spec §3.
func be64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
