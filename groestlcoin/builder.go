// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package groestlcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/razib6662/wallet-core/txsigner"
)

// TransactionBuilder assembles Groestlcoin transactions from plans.
type TransactionBuilder struct{}

// Compile-time check that the builder satisfies the engine's interface.
var _ txsigner.TransactionBuilder[*Transaction] = (*TransactionBuilder)(nil)

// NewTransactionBuilder returns a Groestlcoin transaction builder.
func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{}
}

// Plan selects inputs and computes change for the request.
func (b *TransactionBuilder) Plan(
	input *txsigner.SigningInput) *txsigner.TransactionPlan {

	return txsigner.PlanTransaction(input)
}

// Build assembles the unsigned transaction described by the plan.
func (b *TransactionBuilder) Build(plan *txsigner.TransactionPlan,
	input *txsigner.SigningInput) (*Transaction, error) {

	if plan.Err != nil {
		return nil, fmt.Errorf("%w: %w", txsigner.ErrFailedPlan,
			plan.Err)
	}

	msgTx := wire.NewMsgTx(txVersion)
	msgTx.LockTime = input.LockTime

	for _, utxo := range plan.UTXOs {
		txIn := wire.NewTxIn(&utxo.OutPoint, nil, nil)

		switch {
		case utxo.Sequence != 0:
			txIn.Sequence = utxo.Sequence

		case input.LockTime != 0:
			txIn.Sequence = wire.MaxTxInSequenceNum - 1
		}

		msgTx.AddTxIn(txIn)
	}

	for _, txOut := range plan.Outputs {
		msgTx.AddTxOut(txOut)
	}

	return NewTransaction(msgTx), nil
}

// NewTransaction returns an empty Groestlcoin transaction.
func (b *TransactionBuilder) NewTransaction() *Transaction {
	return NewTransaction(wire.NewMsgTx(txVersion))
}
