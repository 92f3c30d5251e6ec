// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bitcoin adapts the generic signing engine to the Bitcoin chain:
// wire format transactions, BIP-143 and BIP-341 sighash computation and PSBT
// export.
package bitcoin

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/razib6662/wallet-core/txsigner"
)

// txVersion is the version of every transaction the builder assembles.
const txVersion = 2

// Transaction wraps a Bitcoin wire transaction behind the signing engine's
// transaction interface.
type Transaction struct {
	msgTx *wire.MsgTx
}

// Compile-time check that Transaction satisfies the engine's interface.
var _ txsigner.Transaction = (*Transaction)(nil)

// NewTransaction wraps an existing wire transaction.
func NewTransaction(msgTx *wire.MsgTx) *Transaction {
	return &Transaction{msgTx: msgTx}
}

// MsgTx returns the underlying wire transaction.
func (t *Transaction) MsgTx() *wire.MsgTx {
	return t.msgTx
}

// Version returns the transaction version.
func (t *Transaction) Version() int32 {
	return t.msgTx.Version
}

// SetVersion sets the transaction version.
func (t *Transaction) SetVersion(version int32) {
	t.msgTx.Version = version
}

// LockTime returns the transaction lock time.
func (t *Transaction) LockTime() uint32 {
	return t.msgTx.LockTime
}

// SetLockTime sets the transaction lock time.
func (t *Transaction) SetLockTime(lockTime uint32) {
	t.msgTx.LockTime = lockTime
}

// AddTxIn appends an input to the transaction.
func (t *Transaction) AddTxIn(in *wire.TxIn) {
	t.msgTx.AddTxIn(in)
}

// AddTxOut appends an output to the transaction.
func (t *Transaction) AddTxOut(out *wire.TxOut) {
	t.msgTx.AddTxOut(out)
}

// TxIn returns the ordered inputs of the transaction.
func (t *Transaction) TxIn() []*wire.TxIn {
	return t.msgTx.TxIn
}

// TxOut returns the ordered outputs of the transaction.
func (t *Transaction) TxOut() []*wire.TxOut {
	return t.msgTx.TxOut
}

// SignatureHash computes the sighash of the input at the given index using
// the algorithm the UTXO's variant demands: the legacy algorithm for P2PKH,
// BIP-143 for P2WPKH and BIP-341 for taproot key-path spends.
func (t *Transaction) SignatureHash(idx int, utxo *txsigner.UTXO,
	hashType txscript.SigHashType,
	prevOuts txscript.PrevOutputFetcher) ([]byte, error) {

	switch utxo.Variant {
	case txsigner.VariantP2PKH:
		return txscript.CalcSignatureHash(
			utxo.Script, hashType, t.msgTx, idx,
		)

	case txsigner.VariantP2WPKH:
		sigHashes := txscript.NewTxSigHashes(t.msgTx, prevOuts)

		return txscript.CalcWitnessSigHash(
			utxo.Script, sigHashes, hashType, t.msgTx, idx,
			int64(utxo.Amount),
		)

	case txsigner.VariantP2TRKeyPath:
		sigHashes := txscript.NewTxSigHashes(t.msgTx, prevOuts)

		return txscript.CalcTaprootSignatureHash(
			sigHashes, hashType, t.msgTx, idx, prevOuts,
		)

	default:
		return nil, fmt.Errorf("%w: %v", txsigner.ErrUnsupportedVariant,
			utxo.Variant)
	}
}

// Serialize writes the consensus encoding of the transaction, including the
// witness data of any signed witness inputs.
func (t *Transaction) Serialize(w io.Writer) error {
	return t.msgTx.Serialize(w)
}

// SerializeSize returns the size of the consensus encoding.
func (t *Transaction) SerializeSize() int {
	return t.msgTx.SerializeSize()
}
