// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txsigner implements the signing engine shared by the supported
// UTXO chains. Given a set of selected inputs, desired outputs and key
// material (or externally produced signatures), it produces a fully
// authorized transaction ready for broadcast, or the list of sighash
// preimages an external signer must sign.
package txsigner

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/razib6662/wallet-core/pkg/feerate"
)

// ScriptVariant declares how a UTXO's prevout script is claimed. The variant
// is declared by the caller rather than inferred from the script so that the
// signer never guesses a spend path.
type ScriptVariant uint8

const (
	// VariantP2PKH is a legacy pay-to-pubkey-hash spend, claimed with a
	// scriptSig.
	VariantP2PKH ScriptVariant = iota

	// VariantP2WPKH is a version 0 pay-to-witness-pubkey-hash spend,
	// claimed with a two element witness stack.
	VariantP2WPKH

	// VariantP2TRKeyPath is a taproot key-path spend, claimed with a
	// single element witness stack.
	VariantP2TRKeyPath

	// VariantBRC20Transfer is a taproot script-path spend revealing a
	// BRC-20 transfer inscription. It is only claimable through the
	// alternate commit/reveal engine.
	VariantBRC20Transfer

	// VariantNFTInscription is a taproot script-path spend revealing an
	// ordinal inscription. It is only claimable through the alternate
	// commit/reveal engine.
	VariantNFTInscription
)

// String returns a human-readable representation of the variant.
func (v ScriptVariant) String() string {
	switch v {
	case VariantP2PKH:
		return "p2pkh"
	case VariantP2WPKH:
		return "p2wpkh"
	case VariantP2TRKeyPath:
		return "p2tr-key-path"
	case VariantBRC20Transfer:
		return "brc20-transfer"
	case VariantNFTInscription:
		return "nft-inscription"
	default:
		return "unknown"
	}
}

// UTXO describes a spendable output selected as a transaction input.
type UTXO struct {
	// OutPoint identifies the coin being spent.
	OutPoint wire.OutPoint

	// Amount is the value of the coin.
	Amount btcutil.Amount

	// Script is the prevout locking script of the coin.
	Script []byte

	// Sequence is the sequence number to assign to the spending input.
	Sequence uint32

	// Variant declares how the coin is claimed.
	Variant ScriptVariant

	// Ticker is the BRC-20 ticker of a transfer inscription. Only used
	// by the alternate commit/reveal scheme.
	Ticker string

	// TransferAmount is the BRC-20 amount of a transfer inscription.
	// Only used by the alternate commit/reveal scheme.
	TransferAmount uint64

	// MimeType is the content type of an ordinal inscription payload.
	// Only used by the alternate commit/reveal scheme.
	MimeType string

	// Payload is the ordinal inscription payload. Only used by the
	// alternate commit/reveal scheme.
	Payload []byte
}

// SigningInput is the full signing request for one call. It is owned by the
// caller and never mutated by the signer.
type SigningInput struct {
	// ChainParams identifies the source chain.
	ChainParams *chaincfg.Params

	// UTXOs is the set of candidate coins to spend.
	UTXOs []*UTXO

	// Outputs are the desired outputs, excluding change.
	Outputs []*wire.TxOut

	// ChangeScript is the locking script any change is paid to.
	ChangeScript []byte

	// FeeRate is the desired fee rate.
	FeeRate feerate.SatPerKVByte

	// LockTime is the lock time of the produced transaction.
	LockTime uint32

	// HashType is the sighash flag signatures commit to. The zero value
	// is treated as SigHashAll.
	HashType txscript.SigHashType

	// PrivateKeys are the keys available for local signing.
	PrivateKeys []*btcec.PrivateKey

	// Plan is an optional precomputed plan. When set it is used verbatim
	// and the planner is never invoked, which lets a caller pre-negotiate
	// input selection, e.g. for fee bumping.
	Plan *TransactionPlan

	// AlternateScheme flags that the transaction spends through the
	// commit/reveal inscription scheme handled by the external engine.
	AlternateScheme bool
}

// sigHashType returns the effective sighash flag of the request.
func (in *SigningInput) sigHashType() txscript.SigHashType {
	if in.HashType == 0 {
		return txscript.SigHashAll
	}

	return in.HashType
}

// SignaturePubkey is an externally produced signature together with the
// public key it was made with.
type SignaturePubkey struct {
	// Signature is a DER encoded ECDSA signature or a BIP-340 Schnorr
	// signature, without a sighash flag byte.
	Signature []byte

	// PublicKey is the compressed public key that produced Signature.
	PublicKey []byte
}

// HashPubkey pairs a sighash preimage with the identity of the key expected
// to sign it.
type HashPubkey struct {
	// Sighash is the 32-byte digest to sign.
	Sighash []byte

	// PublicKeyHash identifies the expected signer the way the prevout
	// script commits to it: the 20-byte hash160 of the compressed public
	// key for P2PKH and P2WPKH spends, or the 32-byte x-only output key
	// for taproot spends.
	PublicKeyHash []byte
}

// HashPubkeyList is an ordered list of sighash/signer pairs, one per input
// requiring a signature, in transaction input order.
type HashPubkeyList []HashPubkey

// SigningMode selects the strategy used to fill signatures.
type SigningMode uint8

const (
	// SigningModeNormal signs every input with the provided private keys.
	SigningModeNormal SigningMode = iota

	// SigningModeSizeEstimationOnly fills correctly sized placeholder
	// signatures so the serialized transaction size can be used for fee
	// estimation.
	SigningModeSizeEstimationOnly

	// SigningModeExternal fills signatures from caller-supplied
	// signature/pubkey pairs and performs no local signing.
	SigningModeExternal

	// SigningModeHashOnly fills nothing and only collects the sighash
	// preimages together with the expected signer of each input.
	SigningModeHashOnly
)

// String returns a human-readable representation of the mode.
func (m SigningMode) String() string {
	switch m {
	case SigningModeNormal:
		return "normal"
	case SigningModeSizeEstimationOnly:
		return "size-estimation"
	case SigningModeExternal:
		return "external"
	case SigningModeHashOnly:
		return "hash-only"
	default:
		return "unknown"
	}
}
