package fullnode

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"
)

// ErrNoActiveKey is returned by any operation that needs a signing key
// when none has been imported yet.
var ErrNoActiveKey = errors.New("fullnode: no active private key; run importprivatekey first")

// loadKey reads a hex-encoded private key from path, mirroring the
// teacher's crypto.LoadECDSA for the decred key type this codebase
// uses instead of go-ethereum's.
func loadKey(path string) (*cryptoadapter.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(string(bytes.TrimSpace(raw)))
	if err != nil {
		return nil, fmt.Errorf("fullnode: bad key file %s: %w", path, err)
	}
	return cryptoadapter.PrivateKeyFromBytes(b)
}

// saveKey persists priv to path as hex, creating parent directories as
// needed, mirroring the teacher's crypto.SaveECDSA.
func saveKey(path string, priv *cryptoadapter.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(hex.EncodeToString(priv.Bytes())), 0o600)
}

// ImportPrivateKey persists hexKey as the node's active signing key and
// returns its public key.
func (n *Node) ImportPrivateKey(hexKey string) (chain.PubKey, error) {
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return chain.PubKey{}, fmt.Errorf("fullnode: bad private key hex: %w", err)
	}
	priv, err := cryptoadapter.PrivateKeyFromBytes(b)
	if err != nil {
		return chain.PubKey{}, err
	}

	n.mu.Lock()
	n.activeKey = priv
	n.mu.Unlock()

	if n.keyPath != "" {
		if err := saveKey(n.keyPath, priv); err != nil {
			return chain.PubKey{}, fmt.Errorf("fullnode: save key: %w", err)
		}
	}

	return chain.PubKey(priv.PublicKey()), nil
}

// Account returns the node's active public key.
func (n *Node) Account() (chain.PubKey, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.activeKey == nil {
		return chain.PubKey{}, ErrNoActiveKey
	}
	return chain.PubKey(n.activeKey.PublicKey()), nil
}

func (n *Node) activePrivateKey() (*cryptoadapter.PrivateKey, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.activeKey == nil {
		return nil, ErrNoActiveKey
	}
	return n.activeKey, nil
}
