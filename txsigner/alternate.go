// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txsigner

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/razib6662/wallet-core/tapengine"
)

// signAlternate hands the request to the commit/reveal engine and
// reconstructs a chain-native transaction from its response. Script versus
// witness intent is tracked positionally: the boolean vector built from the
// declared variants before the call is the only record of it, so input
// order must be preserved exactly across the round trip. The response input
// count is validated against the vector before any index is used.
func (s *TransactionSigner[T, B]) signAlternate(ctx context.Context,
	input *SigningInput) (T, error) {

	var zero T

	if s.engine == nil {
		return zero, ErrNoEngine
	}

	// For each input, track whether claiming needs a scriptSig or a
	// witness. Only the legacy pay-to-pubkey-hash variant claims with a
	// script.
	isScript := make([]bool, 0, len(input.UTXOs))

	req := &tapengine.SigningRequest{
		LockTime: input.LockTime,
	}

	for _, utxo := range input.UTXOs {
		isScript = append(isScript, utxo.Variant == VariantP2PKH)

		req.UTXOs = append(req.UTXOs, &tapengine.RequestUTXO{
			PrevHash:       hex.EncodeToString(utxo.OutPoint.Hash[:]),
			PrevIndex:      utxo.OutPoint.Index,
			Sequence:       utxo.Sequence,
			Amount:         uint64(utxo.Amount),
			Script:         utxo.Script,
			Kind:           spendKind(utxo.Variant),
			Ticker:         utxo.Ticker,
			TransferAmount: utxo.TransferAmount,
			MimeType:       utxo.MimeType,
			Payload:        utxo.Payload,
		})
	}

	for _, out := range input.Outputs {
		req.Outputs = append(req.Outputs, &tapengine.RequestOutput{
			Value:  uint64(out.Value),
			Script: out.PkScript,
		})
	}

	for _, key := range input.PrivateKeys {
		req.Keys = append(req.Keys, key.Serialize())
	}

	reqBytes, err := tapengine.EncodeRequest(req)
	if err != nil {
		return zero, err
	}

	// The engine call is the only blocking operation in a signing call;
	// honor a context that is already done before starting it.
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	log.Debugf("Invoking commit/reveal engine with %d utxos, %d outputs",
		len(req.UTXOs), len(req.Outputs))

	respBytes, err := s.engine.SignTransaction(ctx, reqBytes)
	if err != nil {
		return zero, err
	}

	signed, err := tapengine.DecodeResponse(respBytes)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrEngineResponse, err)
	}

	return s.reconstructTransaction(signed, isScript)
}

// reconstructTransaction converts the engine's signed transaction into the
// chain-native representation. Version and lock time are copied verbatim.
// Each input's claim is installed according to the classification vector:
// the returned script bytes become the claiming script for a legacy input,
// or the single witness stack entry for a witness input, never both.
func (s *TransactionSigner[T, B]) reconstructTransaction(
	signed *tapengine.SignedTransaction, isScript []bool) (T, error) {

	var zero T

	if len(signed.Inputs) != len(isScript) {
		return zero, fmt.Errorf("%w: got %d, want %d",
			ErrEngineInputCount, len(signed.Inputs),
			len(isScript))
	}

	tx := s.builder.NewTransaction()
	tx.SetVersion(signed.Version)
	tx.SetLockTime(signed.LockTime)

	for i, in := range signed.Inputs {
		rawHash, err := hex.DecodeString(in.PrevHash)
		if err != nil {
			return zero, fmt.Errorf("%w: prev hash: %v",
				ErrEngineResponse, err)
		}

		hash, err := chainhash.NewHash(rawHash)
		if err != nil {
			return zero, fmt.Errorf("%w: prev hash: %v",
				ErrEngineResponse, err)
		}

		txIn := wire.NewTxIn(
			wire.NewOutPoint(hash, in.PrevIndex), nil, nil,
		)
		txIn.Sequence = in.Sequence

		if isScript[i] {
			txIn.SignatureScript = in.Script
		} else {
			txIn.Witness = wire.TxWitness{in.Script}
		}

		tx.AddTxIn(txIn)
	}

	for _, out := range signed.Outputs {
		tx.AddTxOut(wire.NewTxOut(int64(out.Value), out.Script))
	}

	return tx, nil
}

// spendKind maps a declared script variant to the engine's boundary tag.
// The native and boundary representations are distinct on purpose; this is
// the only conversion between them.
func spendKind(variant ScriptVariant) tapengine.SpendKind {
	switch variant {
	case VariantP2PKH:
		return tapengine.SpendLegacy
	case VariantP2WPKH:
		return tapengine.SpendWitnessV0
	case VariantP2TRKeyPath:
		return tapengine.SpendKeyPath
	case VariantBRC20Transfer:
		return tapengine.SpendBRC20Reveal
	case VariantNFTInscription:
		return tapengine.SpendNFTReveal
	default:
		return tapengine.SpendLegacy
	}
}
