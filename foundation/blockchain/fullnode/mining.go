package fullnode

import (
	"context"
	"errors"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
)

// ErrLoopAlreadyRunning is returned by MineLoop when a loop this node
// started is already in flight.
var ErrLoopAlreadyRunning = errors.New("fullnode: mine loop already running")

// Mine builds and searches for a single block paying the active
// account, blocking until it's found, committed, and broadcast, or ctx
// is cancelled.
func (n *Node) Mine(ctx context.Context, message string) (chain.Block, error) {
	priv, err := n.activePrivateKey()
	if err != nil {
		return chain.Block{}, err
	}
	pub := chain.PubKey(priv.PublicKey())
	return n.eng.Mine(ctx, pub, message)
}

// MineLoop starts mining repeatedly in the background, paying the
// active account, until StopLoop is called or the node shuts down.
// onBlock, if non-nil, is called after each block this loop commits.
func (n *Node) MineLoop(message string, onBlock func(chain.Block)) error {
	priv, err := n.activePrivateKey()
	if err != nil {
		return err
	}
	pub := chain.PubKey(priv.PublicKey())

	n.mu.Lock()
	if n.loopCancel != nil {
		n.mu.Unlock()
		return ErrLoopAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	n.loopCancel = cancel
	n.loopDone = done
	n.mu.Unlock()

	go func() {
		defer close(done)
		n.eng.MineLoop(ctx, pub, message, onBlock)
	}()

	return nil
}

// StopLoop cancels a running MineLoop and waits for it to exit. A
// no-op if no loop is running.
func (n *Node) StopLoop() {
	n.mu.Lock()
	cancel := n.loopCancel
	done := n.loopDone
	n.loopCancel = nil
	n.loopDone = nil
	n.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// LoopRunning reports whether a MineLoop started by this node is
// currently active.
func (n *Node) LoopRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loopCancel != nil
}
