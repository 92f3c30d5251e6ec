// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tapengine builds and signs taproot commit and reveal transactions
// behind a byte oriented boundary. Callers hand it an encoded signing
// request naming the coins to spend, the outputs to create and the keys to
// sign with, and receive back the signed transaction broken into per-input
// and per-output records. The engine spends every requested coin and creates
// exactly the requested outputs; coin selection and fee math stay with the
// caller.
package tapengine

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// engineTxVersion is the version of every transaction the engine
	// builds.
	engineTxVersion = 2

	// p2pkhScriptLen is the byte length of a pay-to-pubkey-hash script.
	p2pkhScriptLen = 25

	// p2wpkhScriptLen is the byte length of a version 0
	// pay-to-witness-pubkey-hash script.
	p2wpkhScriptLen = 22

	// p2trScriptLen is the byte length of a pay-to-taproot script.
	p2trScriptLen = 34
)

// Engine signs taproot commit and reveal transactions. The zero value is
// ready to use.
type Engine struct{}

// New creates a signing engine.
func New() *Engine {
	return &Engine{}
}

// SignTransaction decodes the request, builds a transaction spending all
// requested coins into exactly the requested outputs, signs every input with
// a matching request key and returns the encoded signed transaction.
func (e *Engine) SignTransaction(ctx context.Context,
	request []byte) ([]byte, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := DecodeRequest(request)
	if err != nil {
		return nil, err
	}

	log.Debugf("Signing request with %d utxos, %d outputs and %d keys",
		len(req.UTXOs), len(req.Outputs), len(req.Keys))

	keys := make([]*btcec.PrivateKey, 0, len(req.Keys))
	for _, raw := range req.Keys {
		key, _ := btcec.PrivKeyFromBytes(raw)
		keys = append(keys, key)
	}

	tx, fetcher, err := assembleTx(req)
	if err != nil {
		return nil, err
	}

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	signed := &SignedTransaction{
		Version:  tx.Version,
		LockTime: tx.LockTime,
	}

	for i, utxo := range req.UTXOs {
		claim, err := e.claimInput(tx, sigHashes, i, utxo, keys)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}

		signed.Inputs = append(signed.Inputs, &SignedInput{
			PrevHash:     utxo.PrevHash,
			PrevIndex:    utxo.PrevIndex,
			PrevSequence: utxo.Sequence,
			Script:       claim,
			Sequence:     utxo.Sequence,
		})
	}

	for _, out := range req.Outputs {
		signed.Outputs = append(signed.Outputs, &SignedOutput{
			Value:  out.Value,
			Script: out.Script,
		})
	}

	return EncodeResponse(signed)
}

// assembleTx turns a request into an unsigned transaction and the prevout
// fetcher covering its inputs.
func assembleTx(req *SigningRequest) (*wire.MsgTx,
	txscript.PrevOutputFetcher, error) {

	tx := wire.NewMsgTx(engineTxVersion)
	tx.LockTime = req.LockTime

	fetcher := txscript.NewMultiPrevOutFetcher(nil)

	for _, utxo := range req.UTXOs {
		rawHash, err := hex.DecodeString(utxo.PrevHash)
		if err != nil {
			return nil, nil, ErrBadPrevHash
		}

		hash, err := chainhash.NewHash(rawHash)
		if err != nil {
			return nil, nil, ErrBadPrevHash
		}

		outPoint := wire.NewOutPoint(hash, utxo.PrevIndex)

		txIn := wire.NewTxIn(outPoint, nil, nil)
		txIn.Sequence = utxo.Sequence
		tx.AddTxIn(txIn)

		fetcher.AddPrevOut(*outPoint, &wire.TxOut{
			Value:    int64(utxo.Amount),
			PkScript: utxo.Script,
		})
	}

	for _, out := range req.Outputs {
		tx.AddTxOut(wire.NewTxOut(int64(out.Value), out.Script))
	}

	return tx, fetcher, nil
}

// claimInput signs input i according to the spend kind of its UTXO and
// returns the claiming payload: a scriptSig for legacy spends, the single
// witness element for key path spends, or the serialized witness stack for
// deeper stacks.
func (e *Engine) claimInput(tx *wire.MsgTx, sigHashes *txscript.TxSigHashes,
	i int, utxo *RequestUTXO, keys []*btcec.PrivateKey) ([]byte, error) {

	switch utxo.Kind {
	case SpendLegacy:
		return e.claimLegacy(tx, i, utxo, keys)

	case SpendWitnessV0:
		return e.claimWitnessV0(tx, sigHashes, i, utxo, keys)

	case SpendKeyPath:
		return e.claimKeyPath(tx, sigHashes, i, utxo, keys)

	case SpendBRC20Reveal, SpendNFTReveal:
		return e.claimReveal(tx, sigHashes, i, utxo, keys)

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownSpendKind,
			utxo.Kind)
	}
}

// claimLegacy builds the scriptSig of a pay-to-pubkey-hash spend.
func (e *Engine) claimLegacy(tx *wire.MsgTx, i int, utxo *RequestUTXO,
	keys []*btcec.PrivateKey) ([]byte, error) {

	if len(utxo.Script) != p2pkhScriptLen {
		return nil, ErrMissingKey
	}

	key := keyForPubKeyHash(utxo.Script[3:23], keys)
	if key == nil {
		return nil, ErrMissingKey
	}

	return txscript.SignatureScript(
		tx, i, utxo.Script, txscript.SigHashAll, key, true,
	)
}

// claimWitnessV0 builds the witness of a version 0
// pay-to-witness-pubkey-hash spend and serializes the two element stack.
func (e *Engine) claimWitnessV0(tx *wire.MsgTx,
	sigHashes *txscript.TxSigHashes, i int, utxo *RequestUTXO,
	keys []*btcec.PrivateKey) ([]byte, error) {

	if len(utxo.Script) != p2wpkhScriptLen {
		return nil, ErrMissingKey
	}

	key := keyForPubKeyHash(utxo.Script[2:22], keys)
	if key == nil {
		return nil, ErrMissingKey
	}

	witness, err := txscript.WitnessSignature(
		tx, sigHashes, i, int64(utxo.Amount), utxo.Script,
		txscript.SigHashAll, key, true,
	)
	if err != nil {
		return nil, err
	}

	return serializeWitness(witness)
}

// claimKeyPath builds the taproot key path signature. The witness is a
// single element, so the signature itself is the claiming payload.
func (e *Engine) claimKeyPath(tx *wire.MsgTx,
	sigHashes *txscript.TxSigHashes, i int, utxo *RequestUTXO,
	keys []*btcec.PrivateKey) ([]byte, error) {

	if len(utxo.Script) != p2trScriptLen {
		return nil, ErrMissingKey
	}

	key := keyForTaprootOutput(utxo.Script[2:34], keys)
	if key == nil {
		return nil, ErrMissingKey
	}

	return txscript.RawTxInTaprootSignature(
		tx, sigHashes, i, int64(utxo.Amount), utxo.Script, nil,
		txscript.SigHashDefault, key,
	)
}

// claimReveal rebuilds the inscription committed to by the UTXO, signs the
// script path spend and serializes the three element witness stack of
// signature, leaf script and control block.
func (e *Engine) claimReveal(tx *wire.MsgTx,
	sigHashes *txscript.TxSigHashes, i int, utxo *RequestUTXO,
	keys []*btcec.PrivateKey) ([]byte, error) {

	key, inscription, err := revealInscription(utxo, keys)
	if err != nil {
		return nil, err
	}

	leaf := txscript.NewBaseTapLeaf(inscription.LeafScript)

	sig, err := txscript.RawTxInTapscriptSignature(
		tx, sigHashes, i, int64(utxo.Amount), utxo.Script, leaf,
		txscript.SigHashDefault, key,
	)
	if err != nil {
		return nil, err
	}

	return serializeWitness(wire.TxWitness{
		sig, inscription.LeafScript, inscription.ControlBlock,
	})
}

// revealInscription finds the request key whose inscription commitment
// matches the UTXO script, rebuilding the inscription from the UTXO's
// envelope fields for every candidate.
func revealInscription(utxo *RequestUTXO,
	keys []*btcec.PrivateKey) (*btcec.PrivateKey, *Inscription, error) {

	for _, key := range keys {
		var (
			inscription *Inscription
			err         error
		)

		switch utxo.Kind {
		case SpendBRC20Reveal:
			inscription, err = BuildBRC20TransferInscription(
				utxo.Ticker, utxo.TransferAmount,
				key.PubKey(),
			)

		case SpendNFTReveal:
			inscription, err = BuildNFTInscription(
				utxo.MimeType, utxo.Payload, key.PubKey(),
			)

		default:
			return nil, nil, fmt.Errorf("%w: %d",
				ErrUnknownSpendKind, utxo.Kind)
		}
		if err != nil {
			return nil, nil, err
		}

		if bytes.Equal(inscription.CommitScript, utxo.Script) {
			return key, inscription, nil
		}
	}

	return nil, nil, ErrMissingKey
}

// keyForPubKeyHash returns the key whose compressed public key hashes to the
// given hash160, or nil.
func keyForPubKeyHash(pkHash []byte,
	keys []*btcec.PrivateKey) *btcec.PrivateKey {

	for _, key := range keys {
		hash := btcutil.Hash160(key.PubKey().SerializeCompressed())
		if bytes.Equal(hash, pkHash) {
			return key
		}
	}

	return nil
}

// keyForTaprootOutput returns the key whose BIP-86 tweaked output key
// matches the given x-only key, or nil.
func keyForTaprootOutput(outputKey []byte,
	keys []*btcec.PrivateKey) *btcec.PrivateKey {

	for _, key := range keys {
		tweaked := txscript.ComputeTaprootKeyNoScript(key.PubKey())
		if bytes.Equal(schnorr.SerializePubKey(tweaked), outputKey) {
			return key
		}
	}

	return nil
}

// serializeWitness flattens a witness stack into a single blob, in the wire
// encoding of the stack.
func serializeWitness(witness wire.TxWitness) ([]byte, error) {
	var buf bytes.Buffer

	err := wire.WriteVarInt(&buf, 0, uint64(len(witness)))
	if err != nil {
		return nil, err
	}

	for _, item := range witness {
		err := wire.WriteVarBytes(&buf, 0, item)
		if err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}
