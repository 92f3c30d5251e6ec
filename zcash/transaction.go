// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zcash adapts the generic signing engine to the transparent side of
// the Zcash chain: Sapling v4 transactions, the ZIP-243 signature hash and
// the v4 consensus encoding with empty shielded sections.
package zcash

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/dchest/blake2b"
	"github.com/razib6662/wallet-core/txsigner"
)

const (
	// saplingTxVersion is the Sapling transaction version.
	saplingTxVersion = 4

	// saplingVersionGroupID is the version group of Sapling v4
	// transactions.
	saplingVersionGroupID = 0x892f2085

	// SaplingBranchID is the consensus branch the ZIP-243 sighash commits
	// to for the Sapling network upgrade.
	SaplingBranchID = 0x76b809bb

	// overwinteredFlag marks the transaction header as post-Overwinter.
	overwinteredFlag = 1 << 31

	// hashSize is the size of every intermediate ZIP-243 digest.
	hashSize = 32

	// sigHashMask strips the anyone-can-pay flag off a hash type, leaving
	// the base output commitment mode.
	sigHashMask = 0x1f
)

// ZIP-243 BLAKE2b personalizations. The sighash personalization gets the
// little endian consensus branch appended.
var (
	personPrevouts = []byte("ZcashPrevoutHash")
	personSequence = []byte("ZcashSequencHash")
	personOutputs  = []byte("ZcashOutputsHash")
	personSigHash  = []byte("ZcashSigHash")
)

// Transaction is a Sapling v4 Zcash transaction carrying only transparent
// inputs and outputs. The shielded sections serialize empty.
type Transaction struct {
	msgTx *wire.MsgTx

	// expiryHeight is the block height after which the transaction
	// expires unmined. Zero never expires.
	expiryHeight uint32

	// branchID is the consensus branch signatures commit to.
	branchID uint32
}

// Compile-time check that Transaction satisfies the engine's interface.
var _ txsigner.Transaction = (*Transaction)(nil)

// NewTransaction returns an empty Sapling transaction bound to the given
// consensus branch.
func NewTransaction(branchID, expiryHeight uint32) *Transaction {
	return &Transaction{
		msgTx:        wire.NewMsgTx(saplingTxVersion),
		expiryHeight: expiryHeight,
		branchID:     branchID,
	}
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

// ExpiryHeight returns the expiry height of the transaction.
func (t *Transaction) ExpiryHeight() uint32 {
	return t.expiryHeight
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

// SignatureHash computes the ZIP-243 sighash of the input at the given
// index. Only legacy pay-to-pubkey-hash spends exist on the transparent
// side.
func (t *Transaction) SignatureHash(idx int, utxo *txsigner.UTXO,
	hashType txscript.SigHashType,
	_ txscript.PrevOutputFetcher) ([]byte, error) {

	if utxo.Variant != txsigner.VariantP2PKH {
		return nil, fmt.Errorf("%w: %v", txsigner.ErrUnsupportedVariant,
			utxo.Variant)
	}

	if idx < 0 || idx >= len(t.msgTx.TxIn) {
		return nil, fmt.Errorf("%w: input index %d",
			txsigner.ErrPlanInputMismatch, idx)
	}

	anyoneCanPay := hashType&txscript.SigHashAnyOneCanPay != 0
	baseType := hashType & sigHashMask

	var (
		preimage bytes.Buffer
		zeroHash [hashSize]byte
	)

	writeUint32(&preimage, overwinteredFlag|saplingTxVersion)
	writeUint32(&preimage, saplingVersionGroupID)

	// ZIP-243 zeroes hashPrevouts under anyone-can-pay.
	if anyoneCanPay {
		preimage.Write(zeroHash[:])
	} else {
		prevouts, err := t.hashPrevouts()
		if err != nil {
			return nil, err
		}
		preimage.Write(prevouts)
	}

	// hashSequence is zeroed under anyone-can-pay and under the SINGLE
	// and NONE output modes.
	if anyoneCanPay || baseType == txscript.SigHashSingle ||
		baseType == txscript.SigHashNone {

		preimage.Write(zeroHash[:])
	} else {
		sequence, err := t.hashSequence()
		if err != nil {
			return nil, err
		}
		preimage.Write(sequence)
	}

	// hashOutputs commits to all outputs under ALL, to the matching
	// output alone under SINGLE, and to nothing under NONE or a SINGLE
	// input with no corresponding output.
	switch {
	case baseType != txscript.SigHashSingle &&
		baseType != txscript.SigHashNone:

		outputs, err := t.hashOutputs()
		if err != nil {
			return nil, err
		}
		preimage.Write(outputs)

	case baseType == txscript.SigHashSingle && idx < len(t.msgTx.TxOut):
		output, err := t.hashSingleOutput(idx)
		if err != nil {
			return nil, err
		}
		preimage.Write(output)

	default:
		preimage.Write(zeroHash[:])
	}

	// hashJoinSplits, hashShieldedSpends and hashShieldedOutputs are all
	// zero for a transaction with no shielded components.
	preimage.Write(make([]byte, 3*hashSize))

	writeUint32(&preimage, t.msgTx.LockTime)
	writeUint32(&preimage, t.expiryHeight)

	// valueBalance is zero without shielded components.
	writeUint64(&preimage, 0)

	writeUint32(&preimage, uint32(hashType))

	txIn := t.msgTx.TxIn[idx]
	preimage.Write(txIn.PreviousOutPoint.Hash[:])
	writeUint32(&preimage, txIn.PreviousOutPoint.Index)

	err := wire.WriteVarBytes(&preimage, 0, utxo.Script)
	if err != nil {
		return nil, err
	}

	writeUint64(&preimage, uint64(utxo.Amount))
	writeUint32(&preimage, txIn.Sequence)

	person := make([]byte, 0, len(personSigHash)+4)
	person = append(person, personSigHash...)
	person = binary.LittleEndian.AppendUint32(person, t.branchID)

	return blake2bSum(person, preimage.Bytes())
}

// hashPrevouts digests every spent outpoint.
func (t *Transaction) hashPrevouts() ([]byte, error) {
	var buf bytes.Buffer
	for _, txIn := range t.msgTx.TxIn {
		buf.Write(txIn.PreviousOutPoint.Hash[:])
		writeUint32(&buf, txIn.PreviousOutPoint.Index)
	}

	return blake2bSum(personPrevouts, buf.Bytes())
}

// hashSequence digests every input sequence number.
func (t *Transaction) hashSequence() ([]byte, error) {
	var buf bytes.Buffer
	for _, txIn := range t.msgTx.TxIn {
		writeUint32(&buf, txIn.Sequence)
	}

	return blake2bSum(personSequence, buf.Bytes())
}

// hashOutputs digests every output.
func (t *Transaction) hashOutputs() ([]byte, error) {
	var buf bytes.Buffer
	for _, txOut := range t.msgTx.TxOut {
		writeUint64(&buf, uint64(txOut.Value))

		err := wire.WriteVarBytes(&buf, 0, txOut.PkScript)
		if err != nil {
			return nil, err
		}
	}

	return blake2bSum(personOutputs, buf.Bytes())
}

// hashSingleOutput digests only the output matching the signed input index.
func (t *Transaction) hashSingleOutput(idx int) ([]byte, error) {
	txOut := t.msgTx.TxOut[idx]

	var buf bytes.Buffer
	writeUint64(&buf, uint64(txOut.Value))

	if err := wire.WriteVarBytes(&buf, 0, txOut.PkScript); err != nil {
		return nil, err
	}

	return blake2bSum(personOutputs, buf.Bytes())
}

// Serialize writes the Sapling v4 consensus encoding with empty shielded
// sections.
func (t *Transaction) Serialize(w io.Writer) error {
	var buf bytes.Buffer

	writeUint32(&buf, overwinteredFlag|saplingTxVersion)
	writeUint32(&buf, saplingVersionGroupID)

	err := wire.WriteVarInt(&buf, 0, uint64(len(t.msgTx.TxIn)))
	if err != nil {
		return err
	}

	for _, txIn := range t.msgTx.TxIn {
		buf.Write(txIn.PreviousOutPoint.Hash[:])
		writeUint32(&buf, txIn.PreviousOutPoint.Index)

		err := wire.WriteVarBytes(&buf, 0, txIn.SignatureScript)
		if err != nil {
			return err
		}

		writeUint32(&buf, txIn.Sequence)
	}

	err = wire.WriteVarInt(&buf, 0, uint64(len(t.msgTx.TxOut)))
	if err != nil {
		return err
	}

	for _, txOut := range t.msgTx.TxOut {
		writeUint64(&buf, uint64(txOut.Value))

		err := wire.WriteVarBytes(&buf, 0, txOut.PkScript)
		if err != nil {
			return err
		}
	}

	writeUint32(&buf, t.msgTx.LockTime)
	writeUint32(&buf, t.expiryHeight)

	// valueBalance, then the empty shielded spend, shielded output and
	// join split vectors.
	writeUint64(&buf, 0)
	for i := 0; i < 3; i++ {
		if err := wire.WriteVarInt(&buf, 0, 0); err != nil {
			return err
		}
	}

	_, err = w.Write(buf.Bytes())

	return err
}

// SerializeSize returns the size of the consensus encoding.
func (t *Transaction) SerializeSize() int {
	var buf bytes.Buffer
	if err := t.Serialize(&buf); err != nil {
		return 0
	}

	return buf.Len()
}

// blake2bSum computes a 32-byte personalized BLAKE2b digest.
func blake2bSum(person, data []byte) ([]byte, error) {
	h, err := blake2b.New(&blake2b.Config{
		Size:   hashSize,
		Person: person,
	})
	if err != nil {
		return nil, err
	}

	h.Write(data)

	return h.Sum(nil), nil
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
