package core

import (
	"crypto/ed25519"
	"encoding/binary"
	"net"
	"testing"
)

func generateTestKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	t.Helper()
	return ed25519.GenerateKey(nil)
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{Magic: [2]byte{MagicFirst, byte(NetworkTest)}, VersionMax: 20, VersionUsing: 19, VersionMin: 18, Type: MsgPublish}
	h.setBlockType(KindState)
	buf := EncodeHeader(h)
	if len(buf) != headerSize {
		t.Fatalf("expected an %d-byte header, got %d", headerSize, len(buf))
	}
	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
	if got.blockType() != KindState {
		t.Fatalf("expected block type state after round trip")
	}
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	if _, err := DecodeHeader([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short header buffer")
	}
}

func TestKeepaliveEncodeDecodeRoundTrip(t *testing.T) {
	var k Keepalive
	for i := range k.Peers {
		k.Peers[i] = Endpoint{IP: net.IPv4(10, 0, 0, byte(i+1)), Port: uint16(7075 + i)}
	}
	buf := k.encode()
	got, err := decodeKeepalive(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range k.Peers {
		if got.Peers[i].Port != k.Peers[i].Port {
			t.Fatalf("peer %d port mismatch: got %d want %d", i, got.Peers[i].Port, k.Peers[i].Port)
		}
		if !got.Peers[i].IP.To16().Equal(k.Peers[i].IP.To16()) {
			t.Fatalf("peer %d IP mismatch", i)
		}
	}
}

func TestBulkPullEncodeDecodeRoundTrip(t *testing.T) {
	p := BulkPull{Start: U256{1}, End: U256{2}, Count: 42, HasCount: true}
	buf := p.encode(true)
	got, err := decodeBulkPull(buf, true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Start != p.Start || got.End != p.End || got.Count != p.Count || !got.HasCount {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, p)
	}

	noCount := BulkPull{Start: U256{3}, End: U256{4}}
	buf2 := noCount.encode(false)
	got2, err := decodeBulkPull(buf2, false)
	if err != nil {
		t.Fatalf("decode without count: %v", err)
	}
	if got2.HasCount {
		t.Fatalf("expected HasCount false when no count was encoded")
	}
}

func TestBulkPullAccountEncodeDecodeRoundTrip(t *testing.T) {
	p := BulkPullAccount{Account: Account{5}, MinimumAmount: U128FromUint64(100), Flags: 3}
	buf := p.encode()
	got, err := decodeBulkPullAccount(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Account != p.Account || got.MinimumAmount.DecimalString() != p.MinimumAmount.DecimalString() || got.Flags != p.Flags {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, p)
	}
}

// findWork brute-forces a nonce clearing params' work threshold for root, up
// to a generous bound; the test network threshold is high enough that this
// stays well within a few thousand tries.
func findWork(t *testing.T, params *NetworkParams, root U256) Work {
	t.Helper()
	for n := uint64(0); n < 2_000_000; n++ {
		w := Work(n)
		if MeetsThreshold(params, root, w) {
			return w
		}
	}
	t.Fatalf("could not find a qualifying work value within the search bound")
	return 0
}

func TestParseRoundTripsPublish(t *testing.T) {
	params := TestNetworkParams()
	blk := &Block{Kind: KindChange, Previous: U256{9}, Representative: Account{1}}
	blk.Work = findWork(t, params, blk.Root())

	var h Header
	h.Magic = [2]byte{MagicFirst, byte(params.Discriminator)}
	h.VersionMax, h.VersionUsing, h.VersionMin = 20, 20, 18
	h.Type = MsgPublish
	h.setBlockType(KindChange)

	buf := append(EncodeHeader(h), blk.SerializeUntyped()...)
	gotHeader, body, status := Parse(buf, params)
	if status != ParseSuccess {
		t.Fatalf("expected success, got %s", status)
	}
	if gotHeader.Type != MsgPublish {
		t.Fatalf("expected publish type")
	}
	pub, ok := body.(Publish)
	if !ok {
		t.Fatalf("expected a Publish body, got %T", body)
	}
	if pub.Block.Hash() != blk.Hash() {
		t.Fatalf("decoded block hash mismatch")
	}
}

func TestParseRejectsInsufficientWork(t *testing.T) {
	params := TestNetworkParams()
	// an unclearable threshold makes rejection deterministic regardless of
	// which nonce happens to be supplied.
	params.WorkThreshold = ^uint64(0)
	blk := &Block{Kind: KindChange, Previous: U256{9}, Representative: Account{1}, Work: Work(1)}

	var h Header
	h.Magic = [2]byte{MagicFirst, byte(params.Discriminator)}
	h.VersionMax, h.VersionUsing, h.VersionMin = 20, 20, 18
	h.Type = MsgPublish
	h.setBlockType(KindChange)

	buf := append(EncodeHeader(h), blk.SerializeUntyped()...)
	_, _, status := Parse(buf, params)
	if status != ParseInsufficientWork {
		t.Fatalf("expected insufficient_work, got %s", status)
	}
}

func TestParseRejectsWrongMagic(t *testing.T) {
	params := TestNetworkParams()
	var h Header
	h.Magic = [2]byte{'X', byte(params.Discriminator)}
	h.VersionMax, h.VersionUsing, h.VersionMin = 20, 20, 18
	h.Type = MsgKeepalive
	var k Keepalive
	buf := append(EncodeHeader(h), k.encode()...)
	_, _, status := Parse(buf, params)
	if status != ParseInvalidMagic {
		t.Fatalf("expected invalid_magic, got %s", status)
	}
}

func TestParseRejectsWrongNetwork(t *testing.T) {
	params := TestNetworkParams()
	var h Header
	h.Magic = [2]byte{MagicFirst, byte(NetworkLive)}
	h.VersionMax, h.VersionUsing, h.VersionMin = 20, 20, 18
	h.Type = MsgKeepalive
	var k Keepalive
	buf := append(EncodeHeader(h), k.encode()...)
	_, _, status := Parse(buf, params)
	if status != ParseInvalidNetwork {
		t.Fatalf("expected invalid_network, got %s", status)
	}
}

func TestParseRejectsOutdatedVersion(t *testing.T) {
	params := TestNetworkParams()
	var h Header
	h.Magic = [2]byte{MagicFirst, byte(params.Discriminator)}
	h.VersionMax, h.VersionUsing, h.VersionMin = 20, 5, 18
	h.Type = MsgKeepalive
	var k Keepalive
	buf := append(EncodeHeader(h), k.encode()...)
	_, _, status := Parse(buf, params)
	if status != ParseOutdatedVersion {
		t.Fatalf("expected outdated_version, got %s", status)
	}
}

func TestParseRejectsOversizedDatagram(t *testing.T) {
	params := TestNetworkParams()
	buf := make([]byte, maxDatagram+1)
	_, _, status := Parse(buf, params)
	if status != ParseInvalidHeader {
		t.Fatalf("expected invalid_header for an oversized datagram, got %s", status)
	}
}

func TestParseConfirmAckSingleBlock(t *testing.T) {
	params := TestNetworkParams()
	pub, priv, err := generateTestKey(t)
	_ = pub
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	blk := &Block{Kind: KindChange, Previous: U256{1}, Representative: Account{1}}
	blk.Work = findWork(t, params, blk.Root())
	blk.Signature = Sign(priv, blk.Hash())

	var account Account
	copy(account[:], pub)
	v := &Vote{Account: account, Sequence: 7, Hashes: []U256{blk.Hash()}, Embedded: true}
	v.Sign(priv)

	var h Header
	h.Magic = [2]byte{MagicFirst, byte(params.Discriminator)}
	h.VersionMax, h.VersionUsing, h.VersionMin = 20, 20, 18
	h.Type = MsgConfirmAck
	h.setBlockType(KindChange)

	body := make([]byte, 0, 104)
	body = append(body, v.Account[:]...)
	body = append(body, v.Signature[:]...)
	seq := make([]byte, 8)
	binary.LittleEndian.PutUint64(seq, v.Sequence)
	body = append(body, seq...)
	body = append(body, blk.SerializeUntyped()...)

	buf := append(EncodeHeader(h), body...)
	_, out, status := Parse(buf, params)
	if status != ParseSuccess {
		t.Fatalf("expected success, got %s", status)
	}
	ack, ok := out.(ConfirmAck)
	if !ok {
		t.Fatalf("expected a ConfirmAck body, got %T", out)
	}
	if len(ack.Vote.Hashes) != 1 || ack.Vote.Hashes[0] != blk.Hash() {
		t.Fatalf("expected the decoded vote to carry the block's hash")
	}
	if !ack.Vote.Embedded {
		t.Fatalf("expected a single-block confirm_ack to decode as embedded")
	}
	if !ack.Vote.Verify() {
		t.Fatalf("expected the decoded embedded-block vote to verify against the signature the representative produced")
	}
}

func TestParseConfirmAckMultiHash(t *testing.T) {
	params := TestNetworkParams()
	pub, priv, err := generateTestKey(t)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var account Account
	copy(account[:], pub)
	hashes := []U256{{1}, {2}, {3}}
	v := &Vote{Account: account, Sequence: 3, Hashes: hashes}
	v.Sign(priv)

	var h Header
	h.Magic = [2]byte{MagicFirst, byte(params.Discriminator)}
	h.VersionMax, h.VersionUsing, h.VersionMin = 20, 20, 18
	h.Type = MsgConfirmAck
	h.setBlockType(KindNotABlock)

	body := make([]byte, 0, 104+32*len(hashes))
	body = append(body, v.Account[:]...)
	body = append(body, v.Signature[:]...)
	seq := make([]byte, 8)
	binary.LittleEndian.PutUint64(seq, v.Sequence)
	body = append(body, seq...)
	for _, hsh := range hashes {
		body = append(body, hsh[:]...)
	}

	buf := append(EncodeHeader(h), body...)
	_, out, status := Parse(buf, params)
	if status != ParseSuccess {
		t.Fatalf("expected success, got %s", status)
	}
	ack, ok := out.(ConfirmAck)
	if !ok {
		t.Fatalf("expected a ConfirmAck body, got %T", out)
	}
	if len(ack.Vote.Hashes) != len(hashes) {
		t.Fatalf("expected %d hashes, got %d", len(hashes), len(ack.Vote.Hashes))
	}
	for i, hsh := range hashes {
		if ack.Vote.Hashes[i] != hsh {
			t.Fatalf("hash %d mismatch: got %x want %x", i, ack.Vote.Hashes[i], hsh)
		}
	}
}
