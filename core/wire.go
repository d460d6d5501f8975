package core

// Wire protocol: header, message types, and the parser spec §4.G
// describes. Grounded on original_source/btcb/node/common.cpp's message
// framing and on synnergy-network's core/network.go, which
// already frames outbound payloads with a small fixed header before
// handing them to libp2p — generalized here to the exact 8-byte header and
// per-type body layouts spec §4.G fixes.

import (
	"encoding/binary"
	"errors"
	"net"
)

// MessageType is the wire tag identifying a message body's shape.
type MessageType byte

const (
	MsgKeepalive        MessageType = 2
	MsgPublish          MessageType = 3
	MsgConfirmReq       MessageType = 4
	MsgConfirmAck       MessageType = 5
	MsgBulkPull         MessageType = 6
	MsgBulkPush         MessageType = 7
	MsgFrontierReq      MessageType = 8
	MsgBulkPullBlocks   MessageType = 9
	MsgNodeIDHandshake  MessageType = 10
	MsgBulkPullAccount  MessageType = 11
)

// maxDatagram is the MTU-safe limit spec §4.G enforces for UDP-carried
// messages; larger units travel over the connected bootstrap stream
// instead.
const maxDatagram = 508

// headerSize is the fixed 8-byte header spec §4.G defines.
const headerSize = 8

// Header is the fixed 8-byte prefix of every wire message.
type Header struct {
	Magic         [2]byte
	VersionMax    byte
	VersionUsing  byte
	VersionMin    byte
	Type          MessageType
	Extensions    uint16
}

// blockType/setBlockType unpack/pack bits 8-11 of
// Extensions, the header's block-type field for publish/confirm_req/
// confirm_ack.
func (h Header) blockType() Kind      { return Kind((h.Extensions >> 8) & 0xF) }
func (h *Header) setBlockType(k Kind) { h.Extensions = (h.Extensions &^ 0x0F00) | (uint16(k) << 8) }

// countPresent is bit 0 of a bulk_pull header's extensions.
func (h Header) countPresent() bool { return h.Extensions&0x1 != 0 }

// handshakeQueryPresent/handshakeResponsePresent are bits 0-1 of a
// node_id_handshake header's extensions.
func (h Header) handshakeQueryPresent() bool    { return h.Extensions&0x1 != 0 }
func (h Header) handshakeResponsePresent() bool { return h.Extensions&0x2 != 0 }

// EncodeHeader renders h as its 8-byte wire form.
func EncodeHeader(h Header) []byte {
	b := make([]byte, headerSize)
	b[0], b[1] = h.Magic[0], h.Magic[1]
	b[2], b[3], b[4] = h.VersionMax, h.VersionUsing, h.VersionMin
	b[5] = byte(h.Type)
	binary.BigEndian.PutUint16(b[6:8], h.Extensions)
	return b
}

// DecodeHeader parses the fixed 8-byte header prefix of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, ErrShortBuffer
	}
	var h Header
	h.Magic[0], h.Magic[1] = buf[0], buf[1]
	h.VersionMax, h.VersionUsing, h.VersionMin = buf[2], buf[3], buf[4]
	h.Type = MessageType(buf[5])
	h.Extensions = binary.BigEndian.Uint16(buf[6:8])
	return h, nil
}

// ParseStatus is the closed result enum spec §4.G names for Parse.
type ParseStatus int

const (
	ParseSuccess ParseStatus = iota
	ParseInsufficientWork
	ParseInvalidHeader
	ParseInvalidMessageType
	ParseInvalidKeepalive
	ParseInvalidPublish
	ParseInvalidConfirmReq
	ParseInvalidConfirmAck
	ParseInvalidNodeIDHandshake
	ParseOutdatedVersion
	ParseInvalidMagic
	ParseInvalidNetwork
)

func (s ParseStatus) String() string {
	switch s {
	case ParseSuccess:
		return "success"
	case ParseInsufficientWork:
		return "insufficient_work"
	case ParseInvalidHeader:
		return "invalid_header"
	case ParseInvalidMessageType:
		return "invalid_message_type"
	case ParseInvalidKeepalive:
		return "invalid_keepalive"
	case ParseInvalidPublish:
		return "invalid_publish"
	case ParseInvalidConfirmReq:
		return "invalid_confirm_req"
	case ParseInvalidConfirmAck:
		return "invalid_confirm_ack"
	case ParseInvalidNodeIDHandshake:
		return "invalid_node_id_handshake"
	case ParseOutdatedVersion:
		return "outdated_version"
	case ParseInvalidMagic:
		return "invalid_magic"
	case ParseInvalidNetwork:
		return "invalid_network"
	default:
		return "unknown"
	}
}

// Endpoint is a 16-byte IPv6 address (v4-mapped for IPv4) plus port, the
// wire form keepalive peers use.
type Endpoint struct {
	IP   net.IP
	Port uint16
}

func encodeEndpoint(e Endpoint) []byte {
	out := make([]byte, 18)
	ip16 := e.IP.To16()
	if ip16 == nil {
		ip16 = net.IPv6zero
	}
	copy(out[:16], ip16)
	binary.BigEndian.PutUint16(out[16:18], e.Port)
	return out
}

func decodeEndpoint(b []byte) Endpoint {
	ip := make(net.IP, 16)
	copy(ip, b[:16])
	return Endpoint{IP: ip, Port: binary.BigEndian.Uint16(b[16:18])}
}

// Keepalive carries 8 peer endpoints.
type Keepalive struct {
	Peers [8]Endpoint
}

func (k Keepalive) encode() []byte {
	out := make([]byte, 0, 8*18)
	for _, p := range k.Peers {
		out = append(out, encodeEndpoint(p)...)
	}
	return out
}

func decodeKeepalive(b []byte) (Keepalive, error) {
	if len(b) < 8*18 {
		return Keepalive{}, ErrShortBuffer
	}
	var k Keepalive
	for i := range k.Peers {
		k.Peers[i] = decodeEndpoint(b[i*18 : i*18+18])
	}
	return k, nil
}

// ConfirmReq/Publish share the same body shape: a block named by the
// header's block-type.
type Publish struct{ Block *Block }
type ConfirmReq struct{ Block *Block }

// ConfirmAck carries a vote whose payload is either a single block body
// (variant from the header) or, when the header's block-type is
// KindNotABlock, a repeated hash list (1-12 hashes) whose count is implicit
// in the remaining stream length.
type ConfirmAck struct {
	Vote *Vote
}

// BulkPull requests blocks between start and end, optionally with a count.
type BulkPull struct {
	Start, End U256
	Count      uint32
	HasCount   bool
}

func (b BulkPull) encode(withCount bool) []byte {
	out := make([]byte, 0, 64)
	out = append(out, b.Start[:]...)
	out = append(out, b.End[:]...)
	if withCount {
		out = append(out, 0) // count-present marker byte
		var c [4]byte
		binary.LittleEndian.PutUint32(c[:], b.Count)
		out = append(out, c[:]...)
	}
	return out
}

func decodeBulkPull(b []byte, hasCount bool) (BulkPull, error) {
	if len(b) < 64 {
		return BulkPull{}, ErrShortBuffer
	}
	var p BulkPull
	copy(p.Start[:], b[:32])
	copy(p.End[:], b[32:64])
	if hasCount {
		if len(b) < 64+5 {
			return BulkPull{}, ErrShortBuffer
		}
		// b[64] is the single zero marker byte preceding the count.
		p.Count = binary.LittleEndian.Uint32(b[65:69])
		p.HasCount = true
	}
	return p, nil
}

// BulkPullAccount requests pending entries for account above minimumAmount.
type BulkPullAccount struct {
	Account       Account
	MinimumAmount U128
	Flags         byte
}

func (b BulkPullAccount) encode() []byte {
	out := make([]byte, 0, 49)
	out = append(out, b.Account[:]...)
	out = append(out, b.MinimumAmount[:]...)
	out = append(out, b.Flags)
	return out
}

func decodeBulkPullAccount(b []byte) (BulkPullAccount, error) {
	if len(b) < 49 {
		return BulkPullAccount{}, ErrShortBuffer
	}
	var p BulkPullAccount
	copy(p.Account[:], b[:32])
	copy(p.MinimumAmount[:], b[32:48])
	p.Flags = b[48]
	return p, nil
}

// FrontierReq requests the frontier table starting at StartAccount.
type FrontierReq struct {
	StartAccount Account
	AgeCutoff    uint32
	Count        uint32
}

// NodeIDHandshake carries an optional 32-byte query and an optional
// (account, signature) response.
type NodeIDHandshake struct {
	Query        *[32]byte
	ResponseAcc  Account
	ResponseSig  Signature
	HasResponse  bool
}

func decodeNodeIDHandshake(h Header, b []byte) (NodeIDHandshake, error) {
	var out NodeIDHandshake
	off := 0
	if h.handshakeQueryPresent() {
		if len(b) < off+32 {
			return out, ErrShortBuffer
		}
		var q [32]byte
		copy(q[:], b[off:off+32])
		out.Query = &q
		off += 32
	}
	if h.handshakeResponsePresent() {
		if len(b) < off+32+64 {
			return out, ErrShortBuffer
		}
		copy(out.ResponseAcc[:], b[off:off+32])
		copy(out.ResponseSig[:], b[off+32:off+96])
		out.HasResponse = true
	}
	return out, nil
}

// ErrUnsupportedMessageType is returned by Parse for an unrecognized wire
// tag.
var ErrUnsupportedMessageType = errors.New("core: unsupported message type")

// Parse decodes a raw datagram into a header and typed body, enforcing the
// MTU-safe size limit, magic/network/version checks, and — for bodies
// carrying a block — the proof-of-work threshold (spec §4.G).
func Parse(buf []byte, params *NetworkParams) (Header, interface{}, ParseStatus) {
	if len(buf) > maxDatagram {
		return Header{}, nil, ParseInvalidHeader
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return Header{}, nil, ParseInvalidHeader
	}
	if h.Magic[0] != MagicFirst {
		return h, nil, ParseInvalidMagic
	}
	if Discriminator(h.Magic[1]) != params.Discriminator {
		return h, nil, ParseInvalidNetwork
	}
	if h.VersionUsing < h.VersionMin {
		return h, nil, ParseOutdatedVersion
	}
	body := buf[headerSize:]

	switch h.Type {
	case MsgKeepalive:
		k, err := decodeKeepalive(body)
		if err != nil {
			return h, nil, ParseInvalidKeepalive
		}
		return h, k, ParseSuccess

	case MsgPublish, MsgConfirmReq:
		blk, err := DeserializeUntyped(h.blockType(), body)
		if err != nil {
			if h.Type == MsgPublish {
				return h, nil, ParseInvalidPublish
			}
			return h, nil, ParseInvalidConfirmReq
		}
		if !MeetsThreshold(params, blk.Root(), blk.Work) {
			return h, nil, ParseInsufficientWork
		}
		if h.Type == MsgPublish {
			return h, Publish{Block: blk}, ParseSuccess
		}
		return h, ConfirmReq{Block: blk}, ParseSuccess

	case MsgConfirmAck:
		v, err := decodeConfirmAck(h, body)
		if err != nil {
			return h, nil, ParseInvalidConfirmAck
		}
		return h, ConfirmAck{Vote: v}, ParseSuccess

	case MsgBulkPull:
		p, err := decodeBulkPull(body, h.countPresent())
		if err != nil {
			return h, nil, ParseInvalidHeader
		}
		return h, p, ParseSuccess

	case MsgBulkPullAccount:
		p, err := decodeBulkPullAccount(body)
		if err != nil {
			return h, nil, ParseInvalidHeader
		}
		return h, p, ParseSuccess

	case MsgNodeIDHandshake:
		p, err := decodeNodeIDHandshake(h, body)
		if err != nil {
			return h, nil, ParseInvalidNodeIDHandshake
		}
		return h, p, ParseSuccess

	case MsgFrontierReq, MsgBulkPush, MsgBulkPullBlocks:
		return h, nil, ParseSuccess

	default:
		return h, nil, ParseInvalidMessageType
	}
}

// decodeConfirmAck decodes a vote body: a single block (variant named by
// the header) when the header's block-type isn't KindNotABlock, or
// otherwise a repeated hash list whose count is implicit in the remaining
// length.
func decodeConfirmAck(h Header, body []byte) (*Vote, error) {
	const fixed = 32 + 64 + 8 // account, signature, sequence
	if len(body) < fixed {
		return nil, ErrShortBuffer
	}
	v := &Vote{}
	copy(v.Account[:], body[:32])
	copy(v.Signature[:], body[32:96])
	v.Sequence = binary.LittleEndian.Uint64(body[96:104])
	payload := body[fixed:]

	if h.blockType() != KindNotABlock {
		blk, err := DeserializeUntyped(h.blockType(), payload)
		if err != nil {
			return nil, err
		}
		v.Hashes = []U256{blk.Hash()}
		v.Embedded = true
		return v, nil
	}
	if len(payload)%32 != 0 {
		return nil, ErrShortBuffer
	}
	n := len(payload) / 32
	if n < 1 || n > maxVoteHashes {
		return nil, ErrShortBuffer
	}
	v.Hashes = make([]U256, n)
	for i := 0; i < n; i++ {
		copy(v.Hashes[i][:], payload[i*32:i*32+32])
	}
	return v, nil
}
