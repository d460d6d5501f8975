package core

// Signing and proof-of-work oracle interfaces. PoW generation itself is out
// of scope (spec §1 treats it as an external oracle); this file owns only
// what the parser and block processor need: verifying a nonce clears a
// configured difficulty threshold, and signing/verifying over a block or
// vote's Hash().

import (
	"crypto/ed25519"
)

// Sign signs digest with priv, returning the 64-byte ed25519 signature.
// Grounded on synnergy-network's wallet.go, which already uses
// crypto/ed25519 for key material; this repo's scope (spec §1) stops at
// sign/verify, not HD derivation.
func Sign(priv ed25519.PrivateKey, digest U256) Signature {
	var out Signature
	copy(out[:], ed25519.Sign(priv, digest[:]))
	return out
}

// Verify reports whether sig is a valid ed25519 signature over digest by
// the account's public key.
func Verify(account Account, digest U256, sig Signature) bool {
	if len(account) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(account[:]), digest[:], sig[:])
}

// WorkOracle computes a work value's difficulty for comparison against a
// network's WorkThreshold; it is deliberately trivial (blake2b over
// root‖nonce folded to a uint64) since real proof-of-work generation and
// its accelerator are out of scope per spec §1 and §6 Non-goals.
type WorkOracle struct{}

// Difficulty returns the 64-bit value the parser compares against
// NetworkParams.WorkThreshold (spec §4.G: "rejected... if the body carries
// a block whose proof-of-work nonce does not clear the configured
// threshold").
func (WorkOracle) Difficulty(root U256, work Work) uint64 {
	h := blake2b256(root[:], be64(uint64(work)))
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(h[i])
	}
	return v
}

// MeetsThreshold reports whether a block's work clears the network's
// configured PoW threshold for its root.
func MeetsThreshold(params *NetworkParams, root U256, work Work) bool {
	return WorkOracle{}.Difficulty(root, work) >= params.WorkThreshold
}
