package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RequestTimeout is how long Request waits for a matching response
// before failing (§4.I / §5). A var, not a const, so tests can shrink
// it instead of waiting out the full window.
var RequestTimeout = 3 * time.Second

// ConnectTimeout bounds how long an outbound Dial waits for the
// handshake to complete.
const ConnectTimeout = 1 * time.Second

// ErrTimeout is returned by Request when no response arrives in time.
var ErrTimeout = errors.New("p2p: request timed out")

// ErrSelfConnection is returned when a peer's advertised nodeId
// matches our own.
var ErrSelfConnection = errors.New("p2p: self-connection detected")

// ErrProtocol covers malformed frames and missing required fields.
var ErrProtocol = errors.New("p2p: protocol violation")

// Handler processes an inbound, non-response message. Implementations
// use Session.Respond to answer requests; fire-and-forget message
// types (blockinv, txinv) simply act and return.
type Handler interface {
	HandleMessage(sess *Session, msgType string, data json.RawMessage)
}

// Conn is the subset of *websocket.Conn this package depends on,
// letting tests substitute an in-memory implementation.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// Peer is one WebSocket connection to a remote node.
type Peer struct {
	conn          Conn
	remoteNodeID  string
	listenAddress string
	address       string // host:port this peer was dialed at or reports itself as

	writeMu sync.Mutex

	nextID  uint64
	pending map[uint64]chan Envelope
	pendMu  sync.Mutex

	handler Handler
	log     *zap.SugaredLogger

	closeOnce sync.Once
	closed    chan struct{}
}

// newPeer wraps conn for either an inbound or outbound connection.
func newPeer(conn Conn, address string, handler Handler, log *zap.SugaredLogger) *Peer {
	return &Peer{
		conn:    conn,
		address: address,
		pending: make(map[uint64]chan Envelope),
		handler: handler,
		log:     log,
		closed:  make(chan struct{}),
	}
}

// RemoteNodeID returns the peer's advertised nodeId, valid after the
// handshake completes.
func (p *Peer) RemoteNodeID() string {
	return p.remoteNodeID
}

// ListenAddress returns the peer's advertised listen address, if any.
func (p *Peer) ListenAddress() string {
	return p.listenAddress
}

// Address is the host:port this connection was made to or from.
func (p *Peer) Address() string {
	return p.address
}

// Close terminates the connection. Idempotent.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.conn.Close()
	})
}

// Closed reports whether Close has been called.
func (p *Peer) Closed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *Peer) writeEnvelope(env Envelope) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteJSON(env)
}

// Send transmits a fire-and-forget message with no request id.
func (p *Peer) Send(msgType string, data any) error {
	env, err := EncodeEnvelope(msgType, nil, data)
	if err != nil {
		return err
	}
	return p.writeEnvelope(env)
}

// Request sends msgType/data with a fresh monotonic id and waits up to
// RequestTimeout for the matching "response" frame, decoding its data
// into out.
func (p *Peer) Request(ctx context.Context, msgType string, data any, out any) error {
	p.pendMu.Lock()
	p.nextID++
	id := p.nextID
	ch := make(chan Envelope, 1)
	p.pending[id] = ch
	p.pendMu.Unlock()

	defer func() {
		p.pendMu.Lock()
		delete(p.pending, id)
		p.pendMu.Unlock()
	}()

	env, err := EncodeEnvelope(msgType, &id, data)
	if err != nil {
		return err
	}
	if err := p.writeEnvelope(env); err != nil {
		return err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	select {
	case resp := <-ch:
		if out == nil {
			return nil
		}
		return json.Unmarshal(resp.Data, out)
	case <-timeoutCtx.Done():
		return ErrTimeout
	case <-p.closed:
		return fmt.Errorf("p2p: peer closed while awaiting response")
	}
}

// Session binds an incoming message (if any) to the peer it arrived
// on, offering send/request/respond the way §4.I's session type does.
type Session struct {
	peer      *Peer
	requestID *uint64
}

// Peer returns the underlying connection.
func (s *Session) Peer() *Peer { return s.peer }

// Send forwards to the underlying peer's Send.
func (s *Session) Send(msgType string, data any) error {
	return s.peer.Send(msgType, data)
}

// Request forwards to the underlying peer's Request.
func (s *Session) Request(ctx context.Context, msgType string, data any, out any) error {
	return s.peer.Request(ctx, msgType, data, out)
}

// Respond answers the bound incoming request, if any; a no-op when the
// session was not created for a request (e.g. blockinv/txinv pushes).
func (s *Session) Respond(data any) error {
	if s.requestID == nil {
		return nil
	}
	env, err := EncodeEnvelope(TypeResponse, s.requestID, data)
	if err != nil {
		return err
	}
	return s.peer.writeEnvelope(env)
}

// readLoop dispatches inbound frames until the connection closes:
// responses are routed to their waiting Request call, everything else
// goes to Handler.HandleMessage bound in a fresh Session.
func (p *Peer) readLoop() {
	defer p.Close()

	for {
		var env Envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			if p.log != nil {
				p.log.Debugw("p2p: read loop ending", "peer", p.address, "error", err)
			}
			return
		}

		if env.Type == TypeResponse {
			if env.ID == nil {
				continue
			}
			p.pendMu.Lock()
			ch, ok := p.pending[*env.ID]
			p.pendMu.Unlock()
			if ok {
				select {
				case ch <- env:
				default:
				}
			}
			continue
		}

		if p.handler == nil {
			continue
		}
		sess := &Session{peer: p, requestID: env.ID}
		p.handler.HandleMessage(sess, env.Type, env.Data)
	}
}

// wsConn adapts *websocket.Conn to the Conn interface; gorilla's own
// WriteJSON/ReadJSON/Close methods already satisfy it by embedding.
type wsConn struct {
	*websocket.Conn
}
