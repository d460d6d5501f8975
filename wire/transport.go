// Package wire carries the framed messages core/wire.go defines over a
// libp2p host: one gossipsub topic per network discriminator, plus mDNS
// discovery of local peers.
//
// Grounded on synnergy-network's core/network.go, which
// built a libp2p.New host, joined a gossipsub topic, and ran an mDNS
// discovery notifee — adapted here so the pubsub payload is exactly the
// framed bytes core.Parse decodes, rather than synnergy-network's ad hoc JSON
// envelope.
package wire

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p"
	dht_pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"

	"btcb/core"
)

// mdnsServiceTag namespaces local-network peer discovery per network
// discriminator, so test/beta/live nodes never cross-discover.
func mdnsServiceTag(d core.Discriminator) string {
	return fmt.Sprintf("btcb-peer-discovery-%c", byte(d))
}

// topicName is the single gossipsub topic this network's nodes publish
// wire-framed messages to.
func topicName(d core.Discriminator) string {
	return fmt.Sprintf("btcb-%c", byte(d))
}

// Node wraps a libp2p host plus the one gossipsub topic this network uses
// for block/vote propagation.
type Node struct {
	Host  host.Host
	topic *dht_pubsub.Topic
	sub   *dht_pubsub.Subscription
	log   *logrus.Logger

	discriminator core.Discriminator

	// OnMessage fires for each gossip message received, already stripped
	// of the libp2p pubsub envelope — callers hand the raw bytes to
	// core.Parse.
	OnMessage func(from peer.ID, raw []byte)
}

// mdnsNotifee forwards newly discovered local peers into the host's
// peerstore and attempts a connection.
type mdnsNotifee struct {
	ctx  context.Context
	host host.Host
	log  *logrus.Logger
}

func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == n.host.ID() {
		return
	}
	if err := n.host.Connect(n.ctx, pi); err != nil {
		n.log.WithError(err).WithField("peer", pi.ID.String()).Debug("wire: mdns connect failed")
	}
}

// NewNode builds a libp2p host listening on listenAddr, joins the
// discriminator's gossipsub topic, and starts mDNS discovery.
func NewNode(ctx context.Context, listenAddr string, discriminator core.Discriminator, log *logrus.Logger) (*Node, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h, err := libp2p.New(libp2p.ListenAddrStrings(listenAddr))
	if err != nil {
		return nil, err
	}

	ps, err := dht_pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, err
	}
	topic, err := ps.Join(topicName(discriminator))
	if err != nil {
		h.Close()
		return nil, err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		h.Close()
		return nil, err
	}

	n := &Node{Host: h, topic: topic, sub: sub, log: log, discriminator: discriminator}

	mdns.NewMdnsService(h, mdnsServiceTag(discriminator), &mdnsNotifee{ctx: ctx, host: h, log: log})

	go n.readLoop(ctx)
	return n, nil
}

func (n *Node) readLoop(ctx context.Context) {
	for {
		msg, err := n.sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.log.WithError(err).Warn("wire: pubsub read failed")
			continue
		}
		if msg.ReceivedFrom == n.Host.ID() {
			continue
		}
		if n.OnMessage != nil {
			n.OnMessage(msg.ReceivedFrom, msg.Data)
		}
	}
}

// Publish broadcasts a wire-framed message (as built by core.EncodeHeader
// plus a body encoder) to the gossipsub topic.
func (n *Node) Publish(ctx context.Context, raw []byte) error {
	return n.topic.Publish(ctx, raw)
}

// Connect dials addr directly, bypassing discovery (used for
// preconfigured_peers, spec §6). addr is a full p2p multiaddr
// (/ip4/.../tcp/.../p2p/<id>).
func (n *Node) Connect(ctx context.Context, addr string) error {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	ai, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return err
	}
	return n.Host.Connect(ctx, *ai)
}

// Close tears down the host and its subscription.
func (n *Node) Close() error {
	n.sub.Cancel()
	return n.Host.Close()
}
