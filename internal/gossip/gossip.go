// Package gossip broadcasts new tree roots and accepted deposits between
// relayers over libp2p-pubsub. It sits outside the verifier's trust
// boundary entirely: nothing here is consulted by internal/verifier, and a
// relayer that never wires a Node still verifies and serves proofs
// correctly on its own. Grounded on the teacher's internal/p2p/node.go
// (Node, Config/DefaultConfig, GossipSub join/subscribe/publish shape),
// trimmed from the teacher's three topics (blocks, transactions, tasks) to
// the two a relayer fan-out actually needs.
package gossip

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// Topic names for the two things a relayer fans out.
const (
	RootTopic    = "shieldpool/roots"
	DepositTopic = "shieldpool/deposits"
)

// Handler processes one gossiped message's raw bytes.
type Handler func(ctx context.Context, from peer.ID, data []byte) error

// Config holds node configuration. Grounded on the teacher's p2p.Config/
// DefaultConfig.
type Config struct {
	ListenAddrs    []string
	BootstrapPeers []string
	PrivateKey     crypto.PrivKey
}

// DefaultConfig returns a sensible default: listen on all interfaces, no
// bootstrap peers, a freshly generated identity.
func DefaultConfig() *Config {
	return &Config{ListenAddrs: []string{"/ip4/0.0.0.0/tcp/9100"}}
}

// Node is a minimal libp2p-pubsub peer: it joins the root and deposit
// topics and exposes publish/subscribe on each. Unlike the teacher's Node,
// it does not run DHT peer discovery or mDNS — relayers are expected to be
// configured with an explicit bootstrap list, since this is a small
// federation of relayers, not an open swarm.
type Node struct {
	mu sync.Mutex

	host   host.Host
	pubsub *pubsub.PubSub

	rootTopic    *pubsub.Topic
	depositTopic *pubsub.Topic
	rootSub      *pubsub.Subscription
	depositSub   *pubsub.Subscription

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a libp2p host, joins both gossip topics, and starts
// subscription loops once Start is called.
func New(ctx context.Context, cfg *Config) (*Node, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	nodeCtx, cancel := context.WithCancel(ctx)

	privKey := cfg.PrivateKey
	if privKey == nil {
		var err error
		privKey, _, err = crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("gossip: generate key: %w", err)
		}
	}

	listenAddrs := make([]multiaddr.Multiaddr, len(cfg.ListenAddrs))
	for i, addr := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("gossip: invalid listen address: %w", err)
		}
		listenAddrs[i] = ma
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrs(listenAddrs...),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("gossip: create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(nodeCtx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("gossip: create pubsub: %w", err)
	}

	n := &Node{host: h, pubsub: ps, ctx: nodeCtx, cancel: cancel}

	if err := n.joinTopics(); err != nil {
		n.Close()
		return nil, err
	}

	for _, addr := range cfg.BootstrapPeers {
		if err := n.connectToPeer(addr); err != nil {
			fmt.Printf("gossip: warning: failed to connect to bootstrap peer %s: %v\n", addr, err)
		}
	}

	return n, nil
}

func (n *Node) joinTopics() error {
	var err error

	n.rootTopic, err = n.pubsub.Join(RootTopic)
	if err != nil {
		return fmt.Errorf("gossip: join root topic: %w", err)
	}
	n.rootSub, err = n.rootTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("gossip: subscribe root topic: %w", err)
	}

	n.depositTopic, err = n.pubsub.Join(DepositTopic)
	if err != nil {
		return fmt.Errorf("gossip: join deposit topic: %w", err)
	}
	n.depositSub, err = n.depositTopic.Subscribe()
	if err != nil {
		return fmt.Errorf("gossip: subscribe deposit topic: %w", err)
	}

	return nil
}

func (n *Node) connectToPeer(addr string) error {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return err
	}
	return n.host.Connect(n.ctx, *info)
}

// Start launches the subscription loops for both topics. onRoot fires for
// every gossiped root announcement; onDeposit fires for every gossiped
// accepted deposit. Either handler may be nil to ignore that topic.
func (n *Node) Start(onRoot, onDeposit Handler) {
	go n.loop(n.rootSub, onRoot)
	go n.loop(n.depositSub, onDeposit)
}

func (n *Node) loop(sub *pubsub.Subscription, handler Handler) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			continue
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		if handler == nil {
			continue
		}
		if err := handler(n.ctx, msg.ReceivedFrom, msg.Data); err != nil {
			fmt.Printf("gossip: handler error: %v\n", err)
		}
	}
}

// PublishRoot broadcasts a new tree root (wire-encoded by the caller, e.g.
// root || root_version) to every peer relayer subscribed to RootTopic.
func (n *Node) PublishRoot(data []byte) error {
	return n.rootTopic.Publish(n.ctx, data)
}

// PublishDeposit broadcasts a wire-encoded accepted deposit event to every
// peer relayer subscribed to DepositTopic.
func (n *Node) PublishDeposit(data []byte) error {
	return n.depositTopic.Publish(n.ctx, data)
}

// ID returns the node's peer ID.
func (n *Node) ID() peer.ID {
	return n.host.ID()
}

// Close shuts the node down.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancel()
	if n.rootSub != nil {
		n.rootSub.Cancel()
	}
	if n.depositSub != nil {
		n.depositSub.Cancel()
	}
	return n.host.Close()
}
