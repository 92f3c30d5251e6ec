// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tapengine

import (
	"bytes"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

// The boundary between the signing core and this engine is a structured
// binary encoding built from TLV streams. Lists are framed as a varint item
// count followed by varint length prefixed item blobs, where each item is
// itself a TLV stream. The record numbering below is the schema and must
// stay stable.

// SpendKind tags how a requested UTXO is claimed. It deliberately mirrors,
// but is distinct from, the script variants of the signing core; converting
// between the two is the caller's job.
type SpendKind uint8

const (
	// SpendLegacy claims with a pay-to-pubkey-hash scriptSig.
	SpendLegacy SpendKind = 0

	// SpendWitnessV0 claims with a version 0 pay-to-witness-pubkey-hash
	// witness.
	SpendWitnessV0 SpendKind = 1

	// SpendKeyPath claims with a taproot key-path witness.
	SpendKeyPath SpendKind = 2

	// SpendBRC20Reveal claims by revealing a BRC-20 transfer inscription
	// through the taproot script path.
	SpendBRC20Reveal SpendKind = 3

	// SpendNFTReveal claims by revealing an ordinal inscription through
	// the taproot script path.
	SpendNFTReveal SpendKind = 4
)

// SigningRequest describes the transaction the engine must build and sign.
// All listed UTXOs are spent and exactly the listed outputs are created, in
// the given orders.
type SigningRequest struct {
	// LockTime is the lock time of the transaction to build.
	LockTime uint32

	// UTXOs are the coins to spend, in input order.
	UTXOs []*RequestUTXO

	// Outputs are the outputs to create, in output order.
	Outputs []*RequestOutput

	// Keys are the serialized private keys available for signing.
	Keys [][]byte
}

// RequestUTXO is one coin to spend.
type RequestUTXO struct {
	// PrevHash is the previous transaction hash as hex text, in stored
	// byte order.
	PrevHash string

	// PrevIndex is the previous output index.
	PrevIndex uint32

	// Sequence is the sequence number of the spending input.
	Sequence uint32

	// Amount is the value of the coin in satoshis.
	Amount uint64

	// Script is the prevout locking script.
	Script []byte

	// Kind tags how the coin is claimed.
	Kind SpendKind

	// Ticker is the BRC-20 ticker of a transfer inscription reveal.
	Ticker string

	// TransferAmount is the BRC-20 amount of a transfer inscription
	// reveal.
	TransferAmount uint64

	// MimeType is the content type of an ordinal inscription reveal.
	MimeType string

	// Payload is the content of an ordinal inscription reveal.
	Payload []byte
}

// RequestOutput is one output to create.
type RequestOutput struct {
	// Value is the output value in satoshis.
	Value uint64

	// Script is the locking script.
	Script []byte
}

// SignedTransaction is the engine's response: the signed transaction broken
// into per-input and per-output records.
type SignedTransaction struct {
	// Version is the transaction version.
	Version int32

	// LockTime is the transaction lock time.
	LockTime uint32

	// Inputs are the signed inputs, in request order.
	Inputs []*SignedInput

	// Outputs are the created outputs, in request order.
	Outputs []*SignedOutput
}

// SignedInput is one signed input of the response.
type SignedInput struct {
	// PrevHash is the previous transaction hash as hex text, in stored
	// byte order.
	PrevHash string

	// PrevIndex is the previous output index.
	PrevIndex uint32

	// PrevSequence echoes the sequence of the matching request UTXO.
	PrevSequence uint32

	// Script is the claiming data: a scriptSig for legacy spends, or the
	// witness payload for witness spends. A single element witness is
	// carried as-is; deeper stacks travel as one wire-serialized blob.
	Script []byte

	// Sequence is the sequence number of the input.
	Sequence uint32
}

// SignedOutput is one output of the response.
type SignedOutput struct {
	// Value is the output value in satoshis.
	Value uint64

	// Script is the locking script.
	Script []byte
}

// Request record types.
const (
	reqTypeLockTime tlv.Type = 1
	reqTypeUTXOs    tlv.Type = 3
	reqTypeOutputs  tlv.Type = 5
	reqTypeKeys     tlv.Type = 7
)

// Request UTXO item record types.
const (
	utxoTypePrevHash       tlv.Type = 1
	utxoTypePrevIndex      tlv.Type = 3
	utxoTypeSequence       tlv.Type = 5
	utxoTypeAmount         tlv.Type = 7
	utxoTypeScript         tlv.Type = 9
	utxoTypeKind           tlv.Type = 11
	utxoTypeTicker         tlv.Type = 13
	utxoTypeTransferAmount tlv.Type = 15
	utxoTypeMimeType       tlv.Type = 17
	utxoTypePayload        tlv.Type = 19
)

// Response record types.
const (
	respTypeVersion  tlv.Type = 1
	respTypeLockTime tlv.Type = 3
	respTypeInputs   tlv.Type = 5
	respTypeOutputs  tlv.Type = 7
)

// Response input item record types.
const (
	inTypePrevHash     tlv.Type = 1
	inTypePrevIndex    tlv.Type = 3
	inTypePrevSequence tlv.Type = 5
	inTypeScript       tlv.Type = 7
	inTypeSequence     tlv.Type = 9
)

// Output item record types, shared by requests and responses.
const (
	outTypeValue  tlv.Type = 1
	outTypeScript tlv.Type = 3
)

// EncodeRequest serializes a signing request to the boundary encoding.
func EncodeRequest(req *SigningRequest) ([]byte, error) {
	utxoItems := make([][]byte, 0, len(req.UTXOs))
	for _, utxo := range req.UTXOs {
		item, err := encodeRequestUTXO(utxo)
		if err != nil {
			return nil, err
		}

		utxoItems = append(utxoItems, item)
	}

	outputItems := make([][]byte, 0, len(req.Outputs))
	for _, out := range req.Outputs {
		item, err := encodeOutput(out.Value, out.Script)
		if err != nil {
			return nil, err
		}

		outputItems = append(outputItems, item)
	}

	utxos, err := encodeList(utxoItems)
	if err != nil {
		return nil, err
	}

	outputs, err := encodeList(outputItems)
	if err != nil {
		return nil, err
	}

	keys, err := encodeList(req.Keys)
	if err != nil {
		return nil, err
	}

	lockTime := req.LockTime

	return encodeStream(
		tlv.MakePrimitiveRecord(reqTypeLockTime, &lockTime),
		tlv.MakePrimitiveRecord(reqTypeUTXOs, &utxos),
		tlv.MakePrimitiveRecord(reqTypeOutputs, &outputs),
		tlv.MakePrimitiveRecord(reqTypeKeys, &keys),
	)
}

// DecodeRequest parses a signing request from the boundary encoding.
func DecodeRequest(blob []byte) (*SigningRequest, error) {
	var (
		lockTime uint32
		utxos    []byte
		outputs  []byte
		keys     []byte
	)

	err := decodeStream(blob,
		tlv.MakePrimitiveRecord(reqTypeLockTime, &lockTime),
		tlv.MakePrimitiveRecord(reqTypeUTXOs, &utxos),
		tlv.MakePrimitiveRecord(reqTypeOutputs, &outputs),
		tlv.MakePrimitiveRecord(reqTypeKeys, &keys),
	)
	if err != nil {
		return nil, err
	}

	req := &SigningRequest{
		LockTime: lockTime,
	}

	utxoItems, err := decodeList(utxos)
	if err != nil {
		return nil, err
	}
	for _, item := range utxoItems {
		utxo, err := decodeRequestUTXO(item)
		if err != nil {
			return nil, err
		}

		req.UTXOs = append(req.UTXOs, utxo)
	}

	outputItems, err := decodeList(outputs)
	if err != nil {
		return nil, err
	}
	for _, item := range outputItems {
		value, script, err := decodeOutput(item)
		if err != nil {
			return nil, err
		}

		req.Outputs = append(req.Outputs, &RequestOutput{
			Value:  value,
			Script: script,
		})
	}

	req.Keys, err = decodeList(keys)
	if err != nil {
		return nil, err
	}

	return req, nil
}

// EncodeResponse serializes a signed transaction to the boundary encoding.
func EncodeResponse(signed *SignedTransaction) ([]byte, error) {
	inputItems := make([][]byte, 0, len(signed.Inputs))
	for _, in := range signed.Inputs {
		item, err := encodeSignedInput(in)
		if err != nil {
			return nil, err
		}

		inputItems = append(inputItems, item)
	}

	outputItems := make([][]byte, 0, len(signed.Outputs))
	for _, out := range signed.Outputs {
		item, err := encodeOutput(out.Value, out.Script)
		if err != nil {
			return nil, err
		}

		outputItems = append(outputItems, item)
	}

	inputs, err := encodeList(inputItems)
	if err != nil {
		return nil, err
	}

	outputs, err := encodeList(outputItems)
	if err != nil {
		return nil, err
	}

	version := uint32(signed.Version)
	lockTime := signed.LockTime

	return encodeStream(
		tlv.MakePrimitiveRecord(respTypeVersion, &version),
		tlv.MakePrimitiveRecord(respTypeLockTime, &lockTime),
		tlv.MakePrimitiveRecord(respTypeInputs, &inputs),
		tlv.MakePrimitiveRecord(respTypeOutputs, &outputs),
	)
}

// DecodeResponse parses a signed transaction from the boundary encoding.
func DecodeResponse(blob []byte) (*SignedTransaction, error) {
	var (
		version  uint32
		lockTime uint32
		inputs   []byte
		outputs  []byte
	)

	err := decodeStream(blob,
		tlv.MakePrimitiveRecord(respTypeVersion, &version),
		tlv.MakePrimitiveRecord(respTypeLockTime, &lockTime),
		tlv.MakePrimitiveRecord(respTypeInputs, &inputs),
		tlv.MakePrimitiveRecord(respTypeOutputs, &outputs),
	)
	if err != nil {
		return nil, err
	}

	signed := &SignedTransaction{
		Version:  int32(version),
		LockTime: lockTime,
	}

	inputItems, err := decodeList(inputs)
	if err != nil {
		return nil, err
	}
	for _, item := range inputItems {
		in, err := decodeSignedInput(item)
		if err != nil {
			return nil, err
		}

		signed.Inputs = append(signed.Inputs, in)
	}

	outputItems, err := decodeList(outputs)
	if err != nil {
		return nil, err
	}
	for _, item := range outputItems {
		value, script, err := decodeOutput(item)
		if err != nil {
			return nil, err
		}

		signed.Outputs = append(signed.Outputs, &SignedOutput{
			Value:  value,
			Script: script,
		})
	}

	return signed, nil
}

// encodeRequestUTXO serializes one request UTXO item.
func encodeRequestUTXO(utxo *RequestUTXO) ([]byte, error) {
	var (
		prevHash = []byte(utxo.PrevHash)
		kind     = uint8(utxo.Kind)
		ticker   = []byte(utxo.Ticker)
		mime     = []byte(utxo.MimeType)
	)

	return encodeStream(
		tlv.MakePrimitiveRecord(utxoTypePrevHash, &prevHash),
		tlv.MakePrimitiveRecord(utxoTypePrevIndex, &utxo.PrevIndex),
		tlv.MakePrimitiveRecord(utxoTypeSequence, &utxo.Sequence),
		tlv.MakePrimitiveRecord(utxoTypeAmount, &utxo.Amount),
		tlv.MakePrimitiveRecord(utxoTypeScript, &utxo.Script),
		tlv.MakePrimitiveRecord(utxoTypeKind, &kind),
		tlv.MakePrimitiveRecord(utxoTypeTicker, &ticker),
		tlv.MakePrimitiveRecord(
			utxoTypeTransferAmount, &utxo.TransferAmount,
		),
		tlv.MakePrimitiveRecord(utxoTypeMimeType, &mime),
		tlv.MakePrimitiveRecord(utxoTypePayload, &utxo.Payload),
	)
}

// decodeRequestUTXO parses one request UTXO item.
func decodeRequestUTXO(blob []byte) (*RequestUTXO, error) {
	var (
		utxo     RequestUTXO
		prevHash []byte
		kind     uint8
		ticker   []byte
		mime     []byte
	)

	err := decodeStream(blob,
		tlv.MakePrimitiveRecord(utxoTypePrevHash, &prevHash),
		tlv.MakePrimitiveRecord(utxoTypePrevIndex, &utxo.PrevIndex),
		tlv.MakePrimitiveRecord(utxoTypeSequence, &utxo.Sequence),
		tlv.MakePrimitiveRecord(utxoTypeAmount, &utxo.Amount),
		tlv.MakePrimitiveRecord(utxoTypeScript, &utxo.Script),
		tlv.MakePrimitiveRecord(utxoTypeKind, &kind),
		tlv.MakePrimitiveRecord(utxoTypeTicker, &ticker),
		tlv.MakePrimitiveRecord(
			utxoTypeTransferAmount, &utxo.TransferAmount,
		),
		tlv.MakePrimitiveRecord(utxoTypeMimeType, &mime),
		tlv.MakePrimitiveRecord(utxoTypePayload, &utxo.Payload),
	)
	if err != nil {
		return nil, err
	}

	utxo.PrevHash = string(prevHash)
	utxo.Kind = SpendKind(kind)
	utxo.Ticker = string(ticker)
	utxo.MimeType = string(mime)
	utxo.Script = normalizeBytes(utxo.Script)
	utxo.Payload = normalizeBytes(utxo.Payload)

	return &utxo, nil
}

// encodeSignedInput serializes one response input item.
func encodeSignedInput(in *SignedInput) ([]byte, error) {
	prevHash := []byte(in.PrevHash)

	return encodeStream(
		tlv.MakePrimitiveRecord(inTypePrevHash, &prevHash),
		tlv.MakePrimitiveRecord(inTypePrevIndex, &in.PrevIndex),
		tlv.MakePrimitiveRecord(inTypePrevSequence, &in.PrevSequence),
		tlv.MakePrimitiveRecord(inTypeScript, &in.Script),
		tlv.MakePrimitiveRecord(inTypeSequence, &in.Sequence),
	)
}

// decodeSignedInput parses one response input item.
func decodeSignedInput(blob []byte) (*SignedInput, error) {
	var (
		in       SignedInput
		prevHash []byte
	)

	err := decodeStream(blob,
		tlv.MakePrimitiveRecord(inTypePrevHash, &prevHash),
		tlv.MakePrimitiveRecord(inTypePrevIndex, &in.PrevIndex),
		tlv.MakePrimitiveRecord(inTypePrevSequence, &in.PrevSequence),
		tlv.MakePrimitiveRecord(inTypeScript, &in.Script),
		tlv.MakePrimitiveRecord(inTypeSequence, &in.Sequence),
	)
	if err != nil {
		return nil, err
	}

	in.PrevHash = string(prevHash)
	in.Script = normalizeBytes(in.Script)

	return &in, nil
}

// encodeOutput serializes one output item.
func encodeOutput(value uint64, script []byte) ([]byte, error) {
	return encodeStream(
		tlv.MakePrimitiveRecord(outTypeValue, &value),
		tlv.MakePrimitiveRecord(outTypeScript, &script),
	)
}

// decodeOutput parses one output item.
func decodeOutput(blob []byte) (uint64, []byte, error) {
	var (
		value  uint64
		script []byte
	)

	err := decodeStream(blob,
		tlv.MakePrimitiveRecord(outTypeValue, &value),
		tlv.MakePrimitiveRecord(outTypeScript, &script),
	)
	if err != nil {
		return 0, nil, err
	}

	return value, normalizeBytes(script), nil
}

// normalizeBytes maps a decoded zero-length value back to nil so round trips
// through the encoding compare equal.
func normalizeBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}

	return b
}

// encodeStream serializes a TLV stream built from the given records.
func encodeStream(records ...tlv.Record) ([]byte, error) {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decodeStream parses a TLV stream into the given records.
func decodeStream(blob []byte, records ...tlv.Record) error {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	return stream.Decode(bytes.NewReader(blob))
}

// encodeList frames a list of item blobs: a varint item count followed by a
// varint length prefix and the raw bytes of each item.
func encodeList(items [][]byte) ([]byte, error) {
	var (
		buf     bytes.Buffer
		scratch [8]byte
	)

	err := tlv.WriteVarInt(&buf, uint64(len(items)), &scratch)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		err := tlv.WriteVarInt(&buf, uint64(len(item)), &scratch)
		if err != nil {
			return nil, err
		}

		if _, err := buf.Write(item); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// decodeList parses a framed list back into its item blobs.
func decodeList(blob []byte) ([][]byte, error) {
	r := bytes.NewReader(blob)

	var scratch [8]byte

	count, err := tlv.ReadVarInt(r, &scratch)
	if err != nil {
		return nil, ErrTruncatedList
	}

	// Every item costs at least one byte for its length prefix, so a
	// count larger than the remaining bytes cannot be satisfied. Checking
	// up front bounds the allocation below against hostile counts.
	if count > uint64(r.Len()) {
		return nil, ErrTruncatedList
	}

	items := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		n, err := tlv.ReadVarInt(r, &scratch)
		if err != nil {
			return nil, ErrTruncatedList
		}

		if uint64(r.Len()) < n {
			return nil, ErrTruncatedList
		}

		item := make([]byte, n)
		if _, err := io.ReadFull(r, item); err != nil {
			return nil, ErrTruncatedList
		}

		items = append(items, item)
	}

	if r.Len() != 0 {
		return nil, ErrTruncatedList
	}

	return items, nil
}
