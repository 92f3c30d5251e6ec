// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zcash

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/razib6662/wallet-core/txsigner"
)

// TransactionBuilder assembles Sapling transactions from plans.
type TransactionBuilder struct {
	// branchID is the consensus branch signatures commit to.
	branchID uint32

	// expiryHeight is assigned to every built transaction. Zero never
	// expires.
	expiryHeight uint32
}

// Compile-time check that the builder satisfies the engine's interface.
var _ txsigner.TransactionBuilder[*Transaction] = (*TransactionBuilder)(nil)

// NewTransactionBuilder returns a Zcash builder for the given consensus
// branch and expiry height.
func NewTransactionBuilder(branchID, expiryHeight uint32) *TransactionBuilder {
	return &TransactionBuilder{
		branchID:     branchID,
		expiryHeight: expiryHeight,
	}
}

// NewSaplingBuilder returns a builder for the Sapling consensus branch.
func NewSaplingBuilder(expiryHeight uint32) *TransactionBuilder {
	return NewTransactionBuilder(SaplingBranchID, expiryHeight)
}

// Plan selects inputs and computes change for the request.
func (b *TransactionBuilder) Plan(
	input *txsigner.SigningInput) *txsigner.TransactionPlan {

	return txsigner.PlanTransaction(input)
}

// Build assembles the unsigned Sapling transaction described by the plan.
func (b *TransactionBuilder) Build(plan *txsigner.TransactionPlan,
	input *txsigner.SigningInput) (*Transaction, error) {

	if plan.Err != nil {
		return nil, fmt.Errorf("%w: %w", txsigner.ErrFailedPlan,
			plan.Err)
	}

	tx := b.NewTransaction()
	tx.SetLockTime(input.LockTime)

	for _, utxo := range plan.UTXOs {
		txIn := wire.NewTxIn(&utxo.OutPoint, nil, nil)
		if utxo.Sequence != 0 {
			txIn.Sequence = utxo.Sequence
		}

		tx.AddTxIn(txIn)
	}

	for _, txOut := range plan.Outputs {
		tx.AddTxOut(txOut)
	}

	return tx, nil
}

// NewTransaction returns an empty Sapling transaction.
func (b *TransactionBuilder) NewTransaction() *Transaction {
	return NewTransaction(b.branchID, b.expiryHeight)
}
