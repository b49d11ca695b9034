package p2p

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// pipeConn connects two pipeConns' in-memory channels so a Peer can be
// exercised without a real network socket.
type pipeConn struct {
	out    chan Envelope
	in     chan Envelope
	closed chan struct{}
	once   sync.Once
}

func newPipe() (*pipeConn, *pipeConn) {
	a := make(chan Envelope, 16)
	b := make(chan Envelope, 16)
	closedA := make(chan struct{})
	closedB := make(chan struct{})
	return &pipeConn{out: a, in: b, closed: closedA}, &pipeConn{out: b, in: a, closed: closedB}
}

func (c *pipeConn) WriteJSON(v any) error {
	env, ok := v.(Envelope)
	if !ok {
		b, _ := json.Marshal(v)
		json.Unmarshal(b, &env)
	}
	select {
	case c.out <- env:
		return nil
	case <-c.closed:
		return context.Canceled
	}
}

func (c *pipeConn) ReadJSON(v any) error {
	select {
	case env := <-c.in:
		p, ok := v.(*Envelope)
		if ok {
			*p = env
			return nil
		}
	case <-c.closed:
		return context.Canceled
	}
	return nil
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type recordingHandler struct {
	mu   sync.Mutex
	got  []string
	resp any
}

func (h *recordingHandler) HandleMessage(sess *Session, msgType string, data json.RawMessage) {
	h.mu.Lock()
	h.got = append(h.got, msgType)
	h.mu.Unlock()

	if h.resp != nil {
		sess.Respond(h.resp)
	}
}

func TestRequestResponseRoundTrip(t *testing.T) {
	connA, connB := newPipe()

	handlerB := &recordingHandler{resp: GetPeersResponse{Peers: []string{"1.2.3.4:9000"}}}
	peerA := newPeer(connA, "a", nil, nil)
	peerB := newPeer(connB, "b", handlerB, nil)

	go peerA.readLoop()
	go peerB.readLoop()

	var resp GetPeersResponse
	err := peerA.Request(context.Background(), TypeGetPeers, struct{}{}, &resp)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if len(resp.Peers) != 1 || resp.Peers[0] != "1.2.3.4:9000" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRequestTimesOut(t *testing.T) {
	connA, connB := newPipe()
	_ = connB // never responds

	peerA := newPeer(connA, "a", nil, nil)
	go peerA.readLoop()

	orig := RequestTimeout
	defer func() { RequestTimeout = orig }()
	RequestTimeout = 20 * time.Millisecond

	var resp GetPeersResponse
	err := peerA.Request(context.Background(), TypeGetPeers, struct{}{}, &resp)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestSendIsFireAndForget(t *testing.T) {
	connA, connB := newPipe()

	handlerB := &recordingHandler{}
	peerB := newPeer(connB, "b", handlerB, nil)
	go peerB.readLoop()

	peerA := newPeer(connA, "a", nil, nil)
	if err := peerA.Send(TypeBlockInv, BlockInv{Hash: "abc", Height: 1}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	handlerB.mu.Lock()
	defer handlerB.mu.Unlock()
	if len(handlerB.got) != 1 || handlerB.got[0] != TypeBlockInv {
		t.Fatalf("expected handler to observe blockinv, got %+v", handlerB.got)
	}
}
