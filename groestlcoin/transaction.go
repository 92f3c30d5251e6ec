// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package groestlcoin adapts the generic signing engine to the Groestlcoin
// chain. Groestlcoin keeps Bitcoin's transaction format but hashes signature
// preimages with a single round of SHA-256 instead of two.
package groestlcoin

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/razib6662/wallet-core/txsigner"
)

// txVersion is the version of every transaction the builder assembles.
const txVersion = 2

// Transaction wraps a Groestlcoin transaction. The wire encoding is
// identical to Bitcoin's; only the sighash differs.
type Transaction struct {
	msgTx *wire.MsgTx
}

// Compile-time check that Transaction satisfies the engine's interface.
var _ txsigner.Transaction = (*Transaction)(nil)

// NewTransaction wraps an existing wire transaction.
func NewTransaction(msgTx *wire.MsgTx) *Transaction {
	return &Transaction{msgTx: msgTx}
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

// SignatureHash computes the Groestlcoin sighash of the input at the given
// index: the legacy preimage for P2PKH and the BIP-143 preimage for P2WPKH,
// both digested with a single SHA-256.
func (t *Transaction) SignatureHash(idx int, utxo *txsigner.UTXO,
	hashType txscript.SigHashType,
	_ txscript.PrevOutputFetcher) ([]byte, error) {

	if idx < 0 || idx >= len(t.msgTx.TxIn) {
		return nil, fmt.Errorf("%w: input index %d",
			txsigner.ErrPlanInputMismatch, idx)
	}

	switch utxo.Variant {
	case txsigner.VariantP2PKH:
		return t.legacySigHash(idx, utxo.Script, hashType)

	case txsigner.VariantP2WPKH:
		return t.witnessSigHash(idx, utxo, hashType)

	default:
		return nil, fmt.Errorf("%w: %v", txsigner.ErrUnsupportedVariant,
			utxo.Variant)
	}
}

// legacySigHash builds the legacy all-inputs preimage with the script code
// substituted at the signed index and empty claiming scripts everywhere
// else.
func (t *Transaction) legacySigHash(idx int, scriptCode []byte,
	hashType txscript.SigHashType) ([]byte, error) {

	var buf bytes.Buffer

	writeUint32(&buf, uint32(t.msgTx.Version))

	err := wire.WriteVarInt(&buf, 0, uint64(len(t.msgTx.TxIn)))
	if err != nil {
		return nil, err
	}

	for i, txIn := range t.msgTx.TxIn {
		buf.Write(txIn.PreviousOutPoint.Hash[:])
		writeUint32(&buf, txIn.PreviousOutPoint.Index)

		script := []byte(nil)
		if i == idx {
			script = scriptCode
		}

		if err := wire.WriteVarBytes(&buf, 0, script); err != nil {
			return nil, err
		}

		writeUint32(&buf, txIn.Sequence)
	}

	err = wire.WriteVarInt(&buf, 0, uint64(len(t.msgTx.TxOut)))
	if err != nil {
		return nil, err
	}

	for _, txOut := range t.msgTx.TxOut {
		writeUint64(&buf, uint64(txOut.Value))

		err := wire.WriteVarBytes(&buf, 0, txOut.PkScript)
		if err != nil {
			return nil, err
		}
	}

	writeUint32(&buf, t.msgTx.LockTime)
	writeUint32(&buf, uint32(hashType))

	digest := sha256.Sum256(buf.Bytes())

	return digest[:], nil
}

// witnessSigHash builds the BIP-143 preimage with single SHA-256 digests for
// the intermediate prevout, sequence and output commitments.
func (t *Transaction) witnessSigHash(idx int, utxo *txsigner.UTXO,
	hashType txscript.SigHashType) ([]byte, error) {

	var prevouts bytes.Buffer
	for _, txIn := range t.msgTx.TxIn {
		prevouts.Write(txIn.PreviousOutPoint.Hash[:])
		writeUint32(&prevouts, txIn.PreviousOutPoint.Index)
	}
	hashPrevouts := sha256.Sum256(prevouts.Bytes())

	var sequences bytes.Buffer
	for _, txIn := range t.msgTx.TxIn {
		writeUint32(&sequences, txIn.Sequence)
	}
	hashSequence := sha256.Sum256(sequences.Bytes())

	var outputs bytes.Buffer
	for _, txOut := range t.msgTx.TxOut {
		writeUint64(&outputs, uint64(txOut.Value))

		err := wire.WriteVarBytes(&outputs, 0, txOut.PkScript)
		if err != nil {
			return nil, err
		}
	}
	hashOutputs := sha256.Sum256(outputs.Bytes())

	scriptCode, err := witnessScriptCode(utxo.Script)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeUint32(&buf, uint32(t.msgTx.Version))
	buf.Write(hashPrevouts[:])
	buf.Write(hashSequence[:])

	txIn := t.msgTx.TxIn[idx]
	buf.Write(txIn.PreviousOutPoint.Hash[:])
	writeUint32(&buf, txIn.PreviousOutPoint.Index)

	if err := wire.WriteVarBytes(&buf, 0, scriptCode); err != nil {
		return nil, err
	}

	writeUint64(&buf, uint64(utxo.Amount))
	writeUint32(&buf, txIn.Sequence)
	buf.Write(hashOutputs[:])
	writeUint32(&buf, t.msgTx.LockTime)
	writeUint32(&buf, uint32(hashType))

	digest := sha256.Sum256(buf.Bytes())

	return digest[:], nil
}

// witnessScriptCode expands a version 0 witness pubkey hash program into the
// pay-to-pubkey-hash script code BIP-143 signs.
func witnessScriptCode(script []byte) ([]byte, error) {
	if txscript.GetScriptClass(script) != txscript.WitnessV0PubKeyHashTy {
		return nil, fmt.Errorf("%w: not p2wpkh",
			txsigner.ErrInvalidUtxoScript)
	}

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(script[2:22]).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// Serialize writes the consensus encoding of the transaction.
func (t *Transaction) Serialize(w io.Writer) error {
	return t.msgTx.Serialize(w)
}

// SerializeSize returns the size of the consensus encoding.
func (t *Transaction) SerializeSize() int {
	return t.msgTx.SerializeSize()
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
