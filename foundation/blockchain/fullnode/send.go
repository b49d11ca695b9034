package fullnode

import (
	"errors"
	"fmt"
	"sort"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/cryptoadapter"
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/utxo"
)

// ErrInsufficientFunds is returned when the active account's unspent
// outputs cannot cover amount plus the minimum required fee.
var ErrInsufficientFunds = errors.New("fullnode: insufficient funds")

// Send builds, signs, and submits a transaction paying amount to
// toPubKeyHex from the active account's unspent outputs, greedily
// selecting the largest outputs first and returning any surplus as a
// change output back to the sender.
func (n *Node) Send(toPubKeyHex string, amount uint64) (chain.Hash, error) {
	priv, err := n.activePrivateKey()
	if err != nil {
		return chain.Hash{}, err
	}
	toPub, err := chain.PubKeyFromHex(toPubKeyHex)
	if err != nil {
		return chain.Hash{}, fmt.Errorf("fullnode: bad recipient public key: %w", err)
	}
	fromPub := chain.PubKey(priv.PublicKey())

	tx, err := buildSpend(n.uset, fromPub, toPub, amount)
	if err != nil {
		return chain.Hash{}, err
	}
	signSpend(&tx, priv)

	return n.eng.SubmitTransaction(tx)
}

// buildSpend selects unspent outputs of fromPub, largest first, until
// their sum covers amount plus the fee a transaction of that shape
// requires, adding a change output back to fromPub when there's a
// surplus large enough to be worth paying the extra output's fee for.
func buildSpend(uset *utxo.Set, fromPub, toPub chain.PubKey, amount uint64) (chain.Transaction, error) {
	entries := uset.ForPubKey(fromPub)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Output.Amount > entries[j].Output.Amount
	})

	var chosen []utxo.Entry
	var sum uint64
	feeWithChange := func() uint64 { return estimateFee(len(chosen), 2) }

	for _, e := range entries {
		chosen = append(chosen, e)
		sum += e.Output.Amount
		if sum >= amount+feeWithChange() {
			break
		}
	}

	withChangeFee := estimateFee(len(chosen), 2)
	noChangeFee := estimateFee(len(chosen), 1)

	var outputs []chain.TxOutput
	switch {
	case sum >= amount+withChangeFee:
		outputs = []chain.TxOutput{
			{Amount: amount, PublicKey: toPub},
			{Amount: sum - amount - withChangeFee, PublicKey: fromPub},
		}
	case sum >= amount+noChangeFee:
		outputs = []chain.TxOutput{{Amount: amount, PublicKey: toPub}}
	default:
		return chain.Transaction{}, fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, amount+noChangeFee, sum)
	}

	inputs := make([]chain.TxInput, len(chosen))
	for i, e := range chosen {
		inputs[i] = chain.TxInput{PrevTxID: e.TxID, PrevIndex: e.Index}
	}

	return chain.Transaction{Inputs: inputs, Outputs: outputs}, nil
}

// signSpend computes tx's txid (over its unsigned form) and signs each
// input against it, the procedure required because a signature commits
// to the txid, not the other way around.
func signSpend(tx *chain.Transaction, priv *cryptoadapter.PrivateKey) {
	txid := chain.TxID(*tx)
	for i := range tx.Inputs {
		tx.Inputs[i].Signature = cryptoadapter.Sign(txid[:], priv)
	}
}

func estimateFee(inputs, outputs int) uint64 {
	shape := chain.Transaction{
		Inputs:  make([]chain.TxInput, inputs),
		Outputs: make([]chain.TxOutput, outputs),
	}
	return uint64(shape.BytesLength()) * chain.MinFeeRatePerByte
}
