package p2p

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// BroadcastFanout is the maximum number of peers a broadcast reaches
// (§4.I.3).
const BroadcastFanout = 8

// DiscoveryInterval is how often the background peer-refresh timer
// fires (§4.I.2).
const DiscoveryInterval = 60 * time.Second

// Hub owns every live peer connection, the known-address book, and the
// handshake/discovery/broadcast policy layered on top of individual
// Peer connections. Its role mirrors the teacher's websocket.Upgrader
// field on the public Handlers struct, generalized from a single
// upgrade-and-stream endpoint into a full mesh of bidirectional peer
// connections this node both accepts and initiates.
type Hub struct {
	nodeID        string
	listenAddress string
	handler       Handler
	log           *zap.SugaredLogger

	upgrader websocket.Upgrader
	dialer   websocket.Dialer

	mu             sync.Mutex
	peers          map[*Peer]struct{}
	knownAddresses map[string]struct{}

	shutdown chan struct{}
	shutOnce sync.Once
}

// NewHub constructs a Hub with a fresh per-process node id.
func NewHub(handler Handler, log *zap.SugaredLogger) *Hub {
	return &Hub{
		nodeID:         uuid.NewString(),
		handler:        handler,
		log:            log,
		upgrader:       websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		peers:          make(map[*Peer]struct{}),
		knownAddresses: make(map[string]struct{}),
		shutdown:       make(chan struct{}),
	}
}

// NodeID returns this process's node id.
func (h *Hub) NodeID() string {
	return h.nodeID
}

// Peers returns a snapshot of currently live peers.
func (h *Hub) Peers() []*Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Peer, 0, len(h.peers))
	for p := range h.peers {
		out = append(out, p)
	}
	return out
}

// PeerCount returns the number of live peers.
func (h *Hub) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// ServeUpgrade handles an inbound HTTP request that should become a
// peer connection, matching the teacher's pattern of a
// websocket.Upgrader field consumed inside an HTTP handler.
func (h *Hub) ServeUpgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	h.adopt(wsConn{conn}, r.RemoteAddr, false)
	return nil
}

// Dial opens an outbound connection to addr ("host:port") and performs
// the handshake within ConnectTimeout.
func (h *Hub) Dial(addr string) error {
	u := url.URL{Scheme: "ws", Host: addr}

	dialer := h.dialer
	dialer.HandshakeTimeout = ConnectTimeout

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("p2p: dial %s: %w", addr, err)
	}
	h.adopt(wsConn{conn}, addr, true)
	return nil
}

// adopt wraps a fresh connection in a Peer, performs the handshake,
// registers it, and starts its read loop.
func (h *Hub) adopt(conn Conn, address string, outbound bool) {
	p := newPeer(conn, address, h.handler, h.log)

	if err := h.sendHandshake(p); err != nil {
		if h.log != nil {
			h.log.Warnw("p2p: handshake send failed", "peer", address, "error", err)
		}
		p.Close()
		return
	}

	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()

	go func() {
		p.readLoop()
		h.onDisconnect(p)
	}()

	h.discoverFrom(p)
}

// sendHandshake sends our nodeinfo immediately on connect (§4.I.1).
func (h *Hub) sendHandshake(p *Peer) error {
	return p.Send(TypeNodeInfo, NodeInfo{NodeID: h.nodeID, ListenAddress: h.listenAddress})
}

// SetListenAddress records this node's advertised host:port for
// outbound handshakes.
func (h *Hub) SetListenAddress(addr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listenAddress = addr
}

// HandleNodeInfo processes an incoming nodeinfo frame per §4.I.1: a
// self-connection or a missing or empty nodeId closes the peer; otherwise
// the advertised identity and listen address are recorded. Sync
// engines dispatch nodeinfo frames here from their Handler
// implementation.
func (h *Hub) HandleNodeInfo(p *Peer, info NodeInfo) {
	if info.NodeID == "" {
		p.Close()
		return
	}
	if info.NodeID == h.nodeID {
		p.Close()
		return
	}
	p.remoteNodeID = info.NodeID
	p.listenAddress = info.ListenAddress
}

// discoverFrom issues getpeers to a newly connected peer and folds the
// results into the known-address set (§4.I.2).
func (h *Hub) discoverFrom(p *Peer) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()

		var resp GetPeersResponse
		if err := p.Request(ctx, TypeGetPeers, struct{}{}, &resp); err != nil {
			return
		}

		h.mu.Lock()
		for _, addr := range resp.Peers {
			if addr != "" {
				h.knownAddresses[addr] = struct{}{}
			}
		}
		h.mu.Unlock()
	}()
}

// AdvertisedPeers answers a getpeers request: every connected peer's
// listenAddress, excluding the requester's own and any empty values
// (§4.I.2).
func (h *Hub) AdvertisedPeers(requester *Peer) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []string
	for p := range h.peers {
		if p == requester || p.listenAddress == "" {
			continue
		}
		if p.listenAddress == requester.listenAddress {
			continue
		}
		out = append(out, p.listenAddress)
	}
	return out
}

// Broadcast sends msgType/data to min(len(peers), BroadcastFanout)
// peers chosen uniformly without replacement (§4.I.3).
func (h *Hub) Broadcast(msgType string, data any) {
	peers := h.Peers()
	n := BroadcastFanout
	if len(peers) < n {
		n = len(peers)
	}

	chosen := sampleWithoutReplacement(peers, n)
	for _, p := range chosen {
		p.Send(msgType, data)
	}
}

func sampleWithoutReplacement(peers []*Peer, n int) []*Peer {
	pool := make([]*Peer, len(peers))
	copy(pool, peers)

	chosen := make([]*Peer, 0, n)
	for i := 0; i < n && len(pool) > 0; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
		if err != nil {
			idx = big.NewInt(0)
		}
		j := int(idx.Int64())
		chosen = append(chosen, pool[j])
		pool[j] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return chosen
}

// onDisconnect removes p from the live set and, while under the
// minimum live-peer count and known addresses remain, attempts to
// backfill from known_addresses (§4.I.2).
func (h *Hub) onDisconnect(p *Peer) {
	h.mu.Lock()
	delete(h.peers, p)
	live := len(h.peers)
	shuttingDown := h.isShutdown()
	h.mu.Unlock()

	if shuttingDown {
		return
	}

	for live < BroadcastFanout {
		addr, ok := h.popKnownAddress()
		if !ok {
			return
		}
		if h.connectedTo(addr) {
			continue
		}
		if err := h.Dial(addr); err != nil && h.log != nil {
			h.log.Debugw("p2p: reconnect attempt failed", "addr", addr, "error", err)
		}
		h.mu.Lock()
		live = len(h.peers)
		h.mu.Unlock()
	}
}

func (h *Hub) popKnownAddress() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for addr := range h.knownAddresses {
		delete(h.knownAddresses, addr)
		return addr, true
	}
	return "", false
}

func (h *Hub) connectedTo(addr string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		if p.Address() == addr || p.listenAddress == addr {
			return true
		}
	}
	return false
}

// RunDiscoveryLoop runs the background peer-refresh timer until
// Shutdown is called: every DiscoveryInterval, pick up to 2 random
// live peers and re-run discovery against them (§4.I.2).
func (h *Hub) RunDiscoveryLoop() {
	ticker := time.NewTicker(DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			peers := h.Peers()
			for _, p := range sampleWithoutReplacement(peers, 2) {
				h.discoverFrom(p)
			}
		case <-h.shutdown:
			return
		}
	}
}

func (h *Hub) isShutdown() bool {
	select {
	case <-h.shutdown:
		return true
	default:
		return false
	}
}

// Shutdown terminates every peer, stops the discovery timer, and
// prevents further outbound reconnection attempts.
func (h *Hub) Shutdown() {
	h.shutOnce.Do(func() {
		close(h.shutdown)
	})
	for _, p := range h.Peers() {
		p.Close()
	}
}
