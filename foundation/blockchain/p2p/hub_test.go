package p2p

import "testing"

func TestHandleNodeInfoSelfConnectionCloses(t *testing.T) {
	h := NewHub(nil, nil)
	connA, _ := newPipe()
	p := newPeer(connA, "a", nil, nil)

	h.HandleNodeInfo(p, NodeInfo{NodeID: h.NodeID()})
	if !p.Closed() {
		t.Fatalf("expected peer closed on self-connection")
	}
}

func TestHandleNodeInfoRecordsIdentity(t *testing.T) {
	h := NewHub(nil, nil)
	connA, _ := newPipe()
	p := newPeer(connA, "a", nil, nil)

	h.HandleNodeInfo(p, NodeInfo{NodeID: "remote-1", ListenAddress: "9.9.9.9:9000"})
	if p.Closed() {
		t.Fatalf("did not expect peer closed")
	}
	if p.RemoteNodeID() != "remote-1" || p.ListenAddress() != "9.9.9.9:9000" {
		t.Fatalf("identity not recorded: %s %s", p.RemoteNodeID(), p.ListenAddress())
	}
}

func TestAdvertisedPeersExcludesRequesterAndEmpty(t *testing.T) {
	h := NewHub(nil, nil)

	connA, _ := newPipe()
	requester := newPeer(connA, "requester", nil, nil)
	requester.listenAddress = "1.1.1.1:1"

	connB, _ := newPipe()
	other := newPeer(connB, "other", nil, nil)
	other.listenAddress = "2.2.2.2:2"

	connC, _ := newPipe()
	noAddr := newPeer(connC, "noaddr", nil, nil)

	h.peers[requester] = struct{}{}
	h.peers[other] = struct{}{}
	h.peers[noAddr] = struct{}{}

	got := h.AdvertisedPeers(requester)
	if len(got) != 1 || got[0] != "2.2.2.2:2" {
		t.Fatalf("unexpected advertised peers: %+v", got)
	}
}

func TestSampleWithoutReplacementBounds(t *testing.T) {
	var peers []*Peer
	for i := 0; i < 20; i++ {
		conn, _ := newPipe()
		peers = append(peers, newPeer(conn, "p", nil, nil))
	}

	chosen := sampleWithoutReplacement(peers, BroadcastFanout)
	if len(chosen) != BroadcastFanout {
		t.Fatalf("expected %d peers, got %d", BroadcastFanout, len(chosen))
	}

	seen := make(map[*Peer]bool)
	for _, p := range chosen {
		if seen[p] {
			t.Fatalf("duplicate peer in sample")
		}
		seen[p] = true
	}

	small := peers[:3]
	chosenSmall := sampleWithoutReplacement(small, BroadcastFanout)
	if len(chosenSmall) != 3 {
		t.Fatalf("expected all peers when fewer than fanout, got %d", len(chosenSmall))
	}
}
