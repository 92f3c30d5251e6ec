// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txsigner

import (
	"io"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Transaction is the minimal mutable view of a chain-native transaction the
// signing engine operates on. Every supported chain exposes the same input
// and output shape through the btcd wire types; chain variants are free to
// carry extra consensus fields behind this interface. The claiming script of
// an input is its wire.TxIn.SignatureScript and the witness stack is its
// wire.TxIn.Witness.
type Transaction interface {
	// Version returns the transaction version.
	Version() int32

	// SetVersion sets the transaction version.
	SetVersion(version int32)

	// LockTime returns the transaction lock time.
	LockTime() uint32

	// SetLockTime sets the transaction lock time.
	SetLockTime(lockTime uint32)

	// AddTxIn appends an input to the transaction.
	AddTxIn(in *wire.TxIn)

	// AddTxOut appends an output to the transaction.
	AddTxOut(out *wire.TxOut)

	// TxIn returns the ordered inputs of the transaction.
	TxIn() []*wire.TxIn

	// TxOut returns the ordered outputs of the transaction.
	TxOut() []*wire.TxOut

	// SignatureHash computes the chain-specific sighash committing to
	// the input at the given index. The UTXO supplies the prevout script
	// and amount; prevOuts supplies every spent output for algorithms
	// that commit to all of them (BIP-341).
	SignatureHash(idx int, utxo *UTXO, hashType txscript.SigHashType,
		prevOuts txscript.PrevOutputFetcher) ([]byte, error)

	// Serialize writes the consensus encoding of the transaction.
	Serialize(w io.Writer) error

	// SerializeSize returns the size of the consensus encoding.
	SerializeSize() int
}

// TransactionBuilder assembles chain-native transactions from plans. Each
// supported chain provides one implementation; the signing engine is generic
// over the pair so new chains are added by supplying a new builder, not by
// modifying the engine.
type TransactionBuilder[T Transaction] interface {
	// Plan computes a transaction plan for the given request. Plan never
	// fails at this boundary: a selection failure is recorded on the
	// returned plan and surfaced by Build.
	Plan(input *SigningInput) *TransactionPlan

	// Build assembles the unsigned transaction described by the plan.
	Build(plan *TransactionPlan, input *SigningInput) (T, error)

	// NewTransaction returns an empty transaction of the chain's native
	// type, used when reconstructing a transaction from the alternate
	// scheme engine's response.
	NewTransaction() T
}
