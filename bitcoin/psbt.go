// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoin

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/razib6662/wallet-core/txsigner"
)

// ExportPacket converts an unsigned transaction and its plan into a PSBT
// packet an external signer can consume. Witness inputs carry their prevout
// as the witness UTXO; every input records the requested sighash flag.
func ExportPacket(tx *Transaction, plan *txsigner.TransactionPlan,
	hashType txscript.SigHashType) (*psbt.Packet, error) {

	packet, err := psbt.NewFromUnsignedTx(strippedCopy(tx.MsgTx()))
	if err != nil {
		return nil, err
	}

	for i, utxo := range plan.UTXOs {
		packet.Inputs[i].SighashType = hashType

		switch utxo.Variant {
		case txsigner.VariantP2WPKH, txsigner.VariantP2TRKeyPath:
			packet.Inputs[i].WitnessUtxo = &wire.TxOut{
				Value:    int64(utxo.Amount),
				PkScript: utxo.Script,
			}
		}
	}

	return packet, nil
}

// PacketFromSigned converts a fully signed transaction into a finalized PSBT
// packet, carrying each input's claim as final script data.
func PacketFromSigned(tx *Transaction,
	plan *txsigner.TransactionPlan) (*psbt.Packet, error) {

	packet, err := psbt.NewFromUnsignedTx(strippedCopy(tx.MsgTx()))
	if err != nil {
		return nil, err
	}

	for i, txIn := range tx.TxIn() {
		if len(txIn.SignatureScript) != 0 {
			packet.Inputs[i].FinalScriptSig = txIn.SignatureScript
			continue
		}

		witness, err := serializeWitnessStack(txIn.Witness)
		if err != nil {
			return nil, err
		}

		packet.Inputs[i].FinalScriptWitness = witness

		utxo := plan.UTXOs[i]
		packet.Inputs[i].WitnessUtxo = &wire.TxOut{
			Value:    int64(utxo.Amount),
			PkScript: utxo.Script,
		}
	}

	return packet, nil
}

// strippedCopy deep-copies a transaction with all claiming data removed,
// which is the shape the PSBT constructor demands.
func strippedCopy(msgTx *wire.MsgTx) *wire.MsgTx {
	stripped := msgTx.Copy()
	for _, txIn := range stripped.TxIn {
		txIn.SignatureScript = nil
		txIn.Witness = nil
	}

	return stripped
}

// serializeWitnessStack encodes a witness stack the way PSBT final witness
// fields expect: an item count followed by length prefixed items.
func serializeWitnessStack(witness wire.TxWitness) ([]byte, error) {
	var buf bytes.Buffer

	err := wire.WriteVarInt(&buf, 0, uint64(len(witness)))
	if err != nil {
		return nil, err
	}

	for _, item := range witness {
		if err := wire.WriteVarBytes(&buf, 0, item); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}
