// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txsigner

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// estimatedSigLen is the upper bound of a DER encoded ECDSA signature
	// with its appended sighash flag byte: 72 bytes of worst-case DER
	// plus the flag.
	estimatedSigLen = 73

	// compressedPubKeyLen is the length of a compressed secp256k1 public
	// key.
	compressedPubKeyLen = 33

	// schnorrSigLen is the length of a BIP-340 Schnorr signature without
	// a sighash flag byte.
	schnorrSigLen = 64
)

// SignatureBuilder derives the per-input sighash of an unsigned transaction
// and fills its claiming scripts and witnesses according to the signing
// mode. A builder is used for exactly one transaction and discarded.
type SignatureBuilder[T Transaction] struct {
	input        *SigningInput
	plan         *TransactionPlan
	tx           T
	mode         SigningMode
	externalSigs []SignaturePubkey

	// hashes collects the (sighash, expected signer) pairs in input
	// order when the builder runs in hash-only mode.
	hashes HashPubkeyList
}

// NewSignatureBuilder returns a signature builder for one unsigned
// transaction. The external signature list is only consulted in external
// signing mode.
func NewSignatureBuilder[T Transaction](input *SigningInput,
	plan *TransactionPlan, tx T, mode SigningMode,
	externalSigs []SignaturePubkey) *SignatureBuilder[T] {

	return &SignatureBuilder[T]{
		input:        input,
		plan:         plan,
		tx:           tx,
		mode:         mode,
		externalSigs: externalSigs,
	}
}

// Sign walks the transaction inputs in order, pairing each with the plan's
// UTXO at the same position, and fills the claim demanded by the UTXO's
// declared variant. In hash-only mode nothing is filled and the collected
// pairs are available from HashesForSigning afterwards.
func (b *SignatureBuilder[T]) Sign() (T, error) {
	var zero T

	txIns := b.tx.TxIn()
	if len(txIns) != len(b.plan.UTXOs) {
		return zero, fmt.Errorf("%w: %d vs %d", ErrPlanInputMismatch,
			len(txIns), len(b.plan.UTXOs))
	}

	prevOuts := planPrevOutputFetcher(b.plan)

	for i, utxo := range b.plan.UTXOs {
		hashType := b.effectiveHashType(utxo.Variant)

		sighash, err := b.tx.SignatureHash(
			i, utxo, hashType, prevOuts,
		)
		if err != nil {
			return zero, err
		}

		switch b.mode {
		case SigningModeHashOnly:
			signer, err := expectedSigner(utxo)
			if err != nil {
				return zero, err
			}

			b.hashes = append(b.hashes, HashPubkey{
				Sighash:       sighash,
				PublicKeyHash: signer,
			})

		case SigningModeSizeEstimationOnly:
			err = fillPlaceholderClaim(
				txIns[i], utxo.Variant, hashType,
			)
			if err != nil {
				return zero, err
			}

		case SigningModeExternal:
			err = b.fillExternalClaim(
				txIns[i], utxo, sighash, hashType,
			)
			if err != nil {
				return zero, err
			}

		case SigningModeNormal:
			err = b.fillSignedClaim(
				txIns[i], utxo, sighash, hashType,
			)
			if err != nil {
				return zero, err
			}
		}
	}

	return b.tx, nil
}

// HashesForSigning returns the ordered (sighash, expected signer) pairs
// collected by a hash-only signing pass, one per input, in input order.
func (b *SignatureBuilder[T]) HashesForSigning() HashPubkeyList {
	return b.hashes
}

// effectiveHashType resolves the sighash flag for one input. An unset flag
// defaults to SigHashAll, except for taproot key-path spends which default
// to SigHashDefault.
func (b *SignatureBuilder[T]) effectiveHashType(
	variant ScriptVariant) txscript.SigHashType {

	if b.input.HashType != 0 {
		return b.input.HashType
	}

	if variant == VariantP2TRKeyPath {
		return txscript.SigHashDefault
	}

	return txscript.SigHashAll
}

// fillSignedClaim signs one input with a locally held private key and
// installs the claim.
func (b *SignatureBuilder[T]) fillSignedClaim(txIn *wire.TxIn, utxo *UTXO,
	sighash []byte, hashType txscript.SigHashType) error {

	key, err := b.keyForUTXO(utxo)
	if err != nil {
		return err
	}

	switch utxo.Variant {
	case VariantP2PKH, VariantP2WPKH:
		sig := append(
			ecdsa.Sign(key, sighash).Serialize(), byte(hashType),
		)

		return installClaim(
			txIn, utxo.Variant, sig,
			key.PubKey().SerializeCompressed(),
		)

	case VariantP2TRKeyPath:
		// Key-path spends sign with the output key, so the internal
		// key is tweaked with an empty script root first.
		tweaked := txscript.TweakTaprootPrivKey(*key, nil)

		sig, err := schnorr.Sign(tweaked, sighash)
		if err != nil {
			return err
		}

		return installClaim(
			txIn, utxo.Variant,
			taprootSigBytes(sig.Serialize(), hashType), nil,
		)

	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedVariant,
			utxo.Variant)
	}
}

// fillExternalClaim locates the externally produced signature claiming one
// input, verifies it against the computed sighash and installs the claim.
func (b *SignatureBuilder[T]) fillExternalClaim(txIn *wire.TxIn, utxo *UTXO,
	sighash []byte, hashType txscript.SigHashType) error {

	signer, err := expectedSigner(utxo)
	if err != nil {
		return err
	}

	pair, err := matchExternalSignature(b.externalSigs, utxo, signer)
	if err != nil {
		return err
	}

	switch utxo.Variant {
	case VariantP2PKH, VariantP2WPKH:
		sig, err := ecdsa.ParseDERSignature(pair.Signature)
		if err != nil {
			return fmt.Errorf("%w: %v",
				ErrInvalidExternalSignature, err)
		}

		pubKey, err := btcec.ParsePubKey(pair.PublicKey)
		if err != nil {
			return fmt.Errorf("%w: %v",
				ErrInvalidExternalSignature, err)
		}

		if !sig.Verify(sighash, pubKey) {
			return ErrInvalidExternalSignature
		}

		// The pair is caller owned, so the flag byte goes on a copy.
		sigWithFlag := make([]byte, 0, len(pair.Signature)+1)
		sigWithFlag = append(sigWithFlag, pair.Signature...)
		sigWithFlag = append(sigWithFlag, byte(hashType))

		return installClaim(
			txIn, utxo.Variant, sigWithFlag, pair.PublicKey,
		)

	case VariantP2TRKeyPath:
		sig, err := schnorr.ParseSignature(pair.Signature)
		if err != nil {
			return fmt.Errorf("%w: %v",
				ErrInvalidExternalSignature, err)
		}

		outputKey, err := schnorr.ParsePubKey(signer)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidUtxoScript, err)
		}

		if !sig.Verify(sighash, outputKey) {
			return ErrInvalidExternalSignature
		}

		return installClaim(
			txIn, utxo.Variant,
			taprootSigBytes(pair.Signature, hashType), nil,
		)

	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedVariant,
			utxo.Variant)
	}
}

// keyForUTXO finds the private key whose derived identity matches the
// prevout script of the given UTXO.
func (b *SignatureBuilder[T]) keyForUTXO(utxo *UTXO) (*btcec.PrivateKey,
	error) {

	target, err := expectedSigner(utxo)
	if err != nil {
		return nil, err
	}

	for _, key := range b.input.PrivateKeys {
		if keyMatchesSigner(key.PubKey(), utxo.Variant, target) {
			return key, nil
		}
	}

	return nil, fmt.Errorf("%w: no key for utxo %v",
		ErrMissingPrivateKey, utxo.OutPoint)
}

// keyMatchesSigner reports whether the public key's identity, derived the
// way the given variant commits to it, equals target.
func keyMatchesSigner(pubKey *btcec.PublicKey, variant ScriptVariant,
	target []byte) bool {

	switch variant {
	case VariantP2PKH, VariantP2WPKH:
		hash := btcutil.Hash160(pubKey.SerializeCompressed())
		return bytes.Equal(hash, target)

	case VariantP2TRKeyPath:
		outputKey := txscript.ComputeTaprootKeyNoScript(pubKey)
		return bytes.Equal(schnorr.SerializePubKey(outputKey), target)

	default:
		return false
	}
}

// matchExternalSignature returns the supplied pair whose public key claims
// the given UTXO.
func matchExternalSignature(pairs []SignaturePubkey, utxo *UTXO,
	signer []byte) (*SignaturePubkey, error) {

	for i := range pairs {
		pair := &pairs[i]

		switch utxo.Variant {
		case VariantP2PKH, VariantP2WPKH:
			hash := btcutil.Hash160(pair.PublicKey)
			if bytes.Equal(hash, signer) {
				return pair, nil
			}

		case VariantP2TRKeyPath:
			// The pair may carry the 32-byte x-only output key or
			// a 33-byte compressed encoding of it.
			xonly := pair.PublicKey
			if len(xonly) == compressedPubKeyLen {
				xonly = xonly[1:]
			}
			if bytes.Equal(xonly, signer) {
				return pair, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: no signature for utxo %v",
		ErrMissingExternalSignature, utxo.OutPoint)
}

// expectedSigner returns the signer identity the UTXO's prevout script
// commits to: the 20-byte pubkey hash for P2PKH and P2WPKH, or the 32-byte
// x-only output key for taproot key-path spends. The script must match the
// declared variant.
func expectedSigner(utxo *UTXO) ([]byte, error) {
	class := txscript.GetScriptClass(utxo.Script)

	switch utxo.Variant {
	case VariantP2PKH:
		if class != txscript.PubKeyHashTy {
			return nil, fmt.Errorf("%w: %v is not p2pkh",
				ErrInvalidUtxoScript, class)
		}

		// OP_DUP OP_HASH160 <20 byte hash> OP_EQUALVERIFY OP_CHECKSIG.
		return utxo.Script[3:23], nil

	case VariantP2WPKH:
		if class != txscript.WitnessV0PubKeyHashTy {
			return nil, fmt.Errorf("%w: %v is not p2wpkh",
				ErrInvalidUtxoScript, class)
		}

		// OP_0 <20 byte hash>.
		return utxo.Script[2:22], nil

	case VariantP2TRKeyPath:
		if class != txscript.WitnessV1TaprootTy {
			return nil, fmt.Errorf("%w: %v is not p2tr",
				ErrInvalidUtxoScript, class)
		}

		// OP_1 <32 byte x-only key>.
		return utxo.Script[2:34], nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedVariant,
			utxo.Variant)
	}
}

// installClaim fills exactly one of the claiming script or the witness
// stack of an input, according to the declared variant.
func installClaim(txIn *wire.TxIn, variant ScriptVariant, sig,
	pubKey []byte) error {

	switch variant {
	case VariantP2PKH:
		script, err := txscript.NewScriptBuilder().
			AddData(sig).AddData(pubKey).Script()
		if err != nil {
			return err
		}

		txIn.SignatureScript = script
		txIn.Witness = nil

	case VariantP2WPKH:
		txIn.SignatureScript = nil
		txIn.Witness = wire.TxWitness{sig, pubKey}

	case VariantP2TRKeyPath:
		txIn.SignatureScript = nil
		txIn.Witness = wire.TxWitness{sig}

	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedVariant, variant)
	}

	return nil
}

// fillPlaceholderClaim installs a zero-filled claim of the correct
// serialized size so the transaction can be measured for fee estimation.
func fillPlaceholderClaim(txIn *wire.TxIn, variant ScriptVariant,
	hashType txscript.SigHashType) error {

	switch variant {
	case VariantP2PKH, VariantP2WPKH:
		return installClaim(
			txIn, variant,
			make([]byte, estimatedSigLen),
			make([]byte, compressedPubKeyLen),
		)

	case VariantP2TRKeyPath:
		return installClaim(
			txIn, variant,
			taprootSigBytes(
				make([]byte, schnorrSigLen), hashType,
			), nil,
		)

	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedVariant, variant)
	}
}

// taprootSigBytes appends the sighash flag byte to a Schnorr signature
// unless the flag is SigHashDefault, which BIP-341 encodes implicitly. The
// input slice may be caller owned and is never written to.
func taprootSigBytes(sig []byte, hashType txscript.SigHashType) []byte {
	if hashType == txscript.SigHashDefault {
		return sig
	}

	withFlag := make([]byte, 0, len(sig)+1)
	withFlag = append(withFlag, sig...)

	return append(withFlag, byte(hashType))
}

// planPrevOutputFetcher exposes every output spent by the plan, which
// taproot sighash computation commits to.
func planPrevOutputFetcher(
	plan *TransactionPlan) *txscript.MultiPrevOutFetcher {

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for _, utxo := range plan.UTXOs {
		fetcher.AddPrevOut(utxo.OutPoint, &wire.TxOut{
			Value:    int64(utxo.Amount),
			PkScript: utxo.Script,
		})
	}

	return fetcher
}
