package core

import (
	"crypto/ed25519"
	"testing"
)

func TestVoteSignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var account Account
	copy(account[:], pub)

	v := &Vote{Account: account, Sequence: 1, Hashes: []U256{{1, 2, 3}}}
	v.Sign(priv)
	if !v.Verify() {
		t.Fatalf("expected valid vote to verify")
	}
}

func TestVoteVerifyRejectsTampering(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var account Account
	copy(account[:], pub)

	v := &Vote{Account: account, Sequence: 1, Hashes: []U256{{1}}}
	v.Sign(priv)
	v.Hashes[0][0] = 0xff
	if v.Verify() {
		t.Fatalf("expected tampered vote to fail verification")
	}
}

func TestVoteVerifyRejectsEmptyOrOverlongPayload(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var account Account
	copy(account[:], pub)

	empty := &Vote{Account: account, Sequence: 1}
	empty.Sign(priv)
	if empty.Verify() {
		t.Fatalf("expected empty hash list to fail verification")
	}

	hashes := make([]U256, maxVoteHashes+1)
	over := &Vote{Account: account, Sequence: 1, Hashes: hashes}
	over.Sign(priv)
	if over.Verify() {
		t.Fatalf("expected over-long hash list to fail verification")
	}
}

func TestVoteHashDomainSeparatesSingleFromMulti(t *testing.T) {
	single := &Vote{Sequence: 1, Hashes: []U256{{9}}}
	multi := &Vote{Sequence: 1, Hashes: []U256{{9}, {9}}}
	if single.Hash() == multi.Hash() {
		t.Fatalf("single and multi-hash votes must not share a hash domain")
	}
}

func TestVoteHashDomainSeparatesEmbeddedFromBareSingleHash(t *testing.T) {
	h := U256{9}
	bare := &Vote{Sequence: 1, Hashes: []U256{h}}
	embedded := &Vote{Sequence: 1, Hashes: []U256{h}, Embedded: true}
	if bare.Hash() == embedded.Hash() {
		t.Fatalf("a single embedded-block vote must sign under a different domain than a bare single hash")
	}
	if bare.Hash() != blake2b256(h[:], le64(1)) {
		t.Fatalf("expected a bare single-hash vote to omit the 'vote ' prefix")
	}
	if embedded.Hash() != blake2b256([]byte("vote "), h[:], le64(1)) {
		t.Fatalf("expected an embedded single-block vote to include the 'vote ' prefix")
	}
}

func TestVoteFullHashDiffersFromHash(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var account Account
	copy(account[:], pub)
	v := &Vote{Account: account, Sequence: 1, Hashes: []U256{{1}}}
	v.Sign(priv)
	if v.Hash() == v.FullHash() {
		t.Fatalf("full hash must differ from the plain signing hash")
	}
}

func TestSequenceCacheRejectsReplay(t *testing.T) {
	c := NewSequenceCache()
	var rep Account
	rep[0] = 1

	if got := c.Check(rep, 5); got != SeqVote {
		t.Fatalf("expected first sequence to be accepted")
	}
	if got := c.Check(rep, 5); got != SeqReplay {
		t.Fatalf("expected equal sequence to be a replay")
	}
	if got := c.Check(rep, 3); got != SeqReplay {
		t.Fatalf("expected lower sequence to be a replay")
	}
	if got := c.Check(rep, 6); got != SeqVote {
		t.Fatalf("expected strictly greater sequence to be accepted")
	}
}

func TestSequenceCacheFlushL1MovesToL2(t *testing.T) {
	c := NewSequenceCache()
	var rep Account
	rep[0] = 2
	c.Check(rep, 10)

	flushed := c.FlushL1()
	if flushed[rep] != 10 {
		t.Fatalf("expected flushed entry to carry sequence 10")
	}
	if got := c.Check(rep, 10); got != SeqReplay {
		t.Fatalf("expected L2-backed sequence to still reject a replay after flush")
	}
}

func TestGenerateAdvancesSequence(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var account Account
	copy(account[:], pub)
	seqCache := NewSequenceCache()

	v1, err := Generate(seqCache, priv, account, []U256{{1}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	v2, err := Generate(seqCache, priv, account, []U256{{2}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if v2.Sequence <= v1.Sequence {
		t.Fatalf("expected strictly increasing sequence numbers, got %d then %d", v1.Sequence, v2.Sequence)
	}
	if !v1.Verify() || !v2.Verify() {
		t.Fatalf("generated votes must verify")
	}
}

func TestGenerateRejectsInvalidPayload(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var account Account
	copy(account[:], pub)
	seqCache := NewSequenceCache()

	if _, err := Generate(seqCache, priv, account, nil); err != ErrInvalidVotePayload {
		t.Fatalf("expected ErrInvalidVotePayload for empty payload, got %v", err)
	}
	oversized := make([]U256, maxVoteHashes+1)
	if _, err := Generate(seqCache, priv, account, oversized); err != ErrInvalidVotePayload {
		t.Fatalf("expected ErrInvalidVotePayload for over-long payload, got %v", err)
	}
}
