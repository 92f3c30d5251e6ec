// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tapengine

import (
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

const (
	// ordTag marks the inscription envelope inside the tapscript leaf.
	ordTag = "ord"

	// brc20MimeType is the content type of every BRC-20 inscription.
	brc20MimeType = "text/plain;charset=utf-8"

	// maxChunkSize caps a single data push inside the envelope. Larger
	// payloads are split across consecutive pushes.
	maxChunkSize = txscript.MaxScriptElementSize
)

// Inscription is a tapscript inscription commitment: the envelope leaf
// script, the taproot output script that commits to it, and the control
// block that later reveals it.
type Inscription struct {
	// LeafScript is the tapscript leaf carrying the inscription
	// envelope.
	LeafScript []byte

	// CommitScript is the pay-to-taproot script of the output key tweaked
	// with the leaf.
	CommitScript []byte

	// ControlBlock proves leaf membership during the script path spend.
	ControlBlock []byte
}

// BuildBRC20TransferInscription builds the transfer inscription of a BRC-20
// token. The envelope payload is the canonical transfer JSON for the given
// ticker and amount, and the leaf is bound to the given key.
func BuildBRC20TransferInscription(ticker string, amount uint64,
	pubKey *btcec.PublicKey) (*Inscription, error) {

	if ticker == "" {
		return nil, ErrEmptyTicker
	}

	payload := fmt.Sprintf(
		`{"p":"brc-20","op":"transfer","tick":"%s","amt":"%s"}`,
		ticker, strconv.FormatUint(amount, 10),
	)

	return BuildNFTInscription(brc20MimeType, []byte(payload), pubKey)
}

// BuildNFTInscription builds an ordinal inscription of arbitrary content.
// The leaf is bound to the given key, which is the only key able to reveal
// it.
func BuildNFTInscription(mimeType string, payload []byte,
	pubKey *btcec.PublicKey) (*Inscription, error) {

	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	leafScript, err := buildEnvelopeScript(mimeType, payload, pubKey)
	if err != nil {
		return nil, err
	}

	leaf := txscript.NewBaseTapLeaf(leafScript)
	tree := txscript.AssembleTaprootScriptTree(leaf)

	rootHash := tree.RootNode.TapHash()
	outputKey := txscript.ComputeTaprootOutputKey(pubKey, rootHash[:])

	commitScript, err := txscript.PayToTaprootScript(outputKey)
	if err != nil {
		return nil, err
	}

	controlBlock := tree.LeafMerkleProofs[0].ToControlBlock(pubKey)
	controlBlockBytes, err := controlBlock.ToBytes()
	if err != nil {
		return nil, err
	}

	return &Inscription{
		LeafScript:   leafScript,
		CommitScript: commitScript,
		ControlBlock: controlBlockBytes,
	}, nil
}

// buildEnvelopeScript assembles the inscription envelope leaf:
//
//	<32-byte key> OP_CHECKSIG
//	OP_FALSE OP_IF
//	  "ord" 0x01 <mime type> OP_0 <payload chunks> OP_ENDIF
//
// Pushes inside the envelope use raw data push opcodes so the script matches
// the envelope format byte for byte.
func buildEnvelopeScript(mimeType string, payload []byte,
	pubKey *btcec.PublicKey) ([]byte, error) {

	builder := txscript.NewScriptBuilder()
	builder.AddData(schnorr.SerializePubKey(pubKey))
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_FALSE)
	builder.AddOp(txscript.OP_IF)
	builder.AddFullData([]byte(ordTag))
	builder.AddFullData([]byte{0x01})
	builder.AddFullData([]byte(mimeType))
	builder.AddOp(txscript.OP_0)

	for len(payload) > 0 {
		chunk := payload
		if len(chunk) > maxChunkSize {
			chunk = chunk[:maxChunkSize]
		}

		builder.AddFullData(chunk)
		payload = payload[len(chunk):]
	}

	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}
