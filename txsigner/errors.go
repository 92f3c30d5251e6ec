// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txsigner

import "errors"

var (
	// ErrNoTxOutputs is returned when a plan is requested for an input
	// that has no outputs.
	ErrNoTxOutputs = errors.New("tx has no outputs")

	// ErrNoUTXOs is returned when a plan is requested for an input that
	// has no candidate UTXOs to spend.
	ErrNoUTXOs = errors.New("no spendable utxos")

	// ErrDuplicatedUtxo is returned when a UTXO is specified multiple
	// times.
	ErrDuplicatedUtxo = errors.New("duplicated utxo")

	// ErrMissingFeeRate is returned when a plan is requested without a
	// fee rate.
	ErrMissingFeeRate = errors.New("missing fee rate")

	// ErrMissingChangeScript is returned when a plan is requested without
	// a change script to pay any remainder to.
	ErrMissingChangeScript = errors.New("missing change script")

	// ErrInsufficientBalance is returned when the candidate UTXOs cannot
	// cover the requested outputs plus fees.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrFailedPlan is returned by Build when the plan it was handed
	// carries a planning failure.
	ErrFailedPlan = errors.New("plan failed")

	// ErrPlanInputMismatch is returned when the number of inputs of the
	// built transaction differs from the number of UTXOs selected by the
	// plan.
	ErrPlanInputMismatch = errors.New("plan and transaction input " +
		"counts differ")

	// ErrMissingPrivateKey is returned in normal signing mode when no
	// provided private key can claim a selected UTXO.
	ErrMissingPrivateKey = errors.New("missing private key")

	// ErrMissingExternalSignature is returned in external signing mode
	// when no supplied signature/pubkey pair can claim a selected UTXO.
	ErrMissingExternalSignature = errors.New("missing external signature")

	// ErrInvalidExternalSignature is returned in external signing mode
	// when a supplied signature does not verify against the computed
	// sighash.
	ErrInvalidExternalSignature = errors.New("invalid external signature")

	// ErrUnsupportedVariant is returned when a UTXO declares a script
	// variant the signature builder cannot claim directly.
	ErrUnsupportedVariant = errors.New("unsupported script variant")

	// ErrInvalidUtxoScript is returned when a UTXO's prevout script does
	// not match its declared script variant.
	ErrInvalidUtxoScript = errors.New("utxo script does not match " +
		"declared variant")

	// ErrNoEngine is returned when an input flags the alternate
	// commit/reveal scheme but the signer has no engine configured.
	ErrNoEngine = errors.New("no alternate-scheme engine configured")

	// ErrEngineResponse is returned when the alternate-scheme engine's
	// response cannot be decoded into a transaction.
	ErrEngineResponse = errors.New("malformed engine response")

	// ErrEngineInputCount is returned when the engine's response carries
	// a different number of inputs than the request, which would silently
	// misclassify script and witness claims.
	ErrEngineInputCount = errors.New("engine response input count " +
		"differs from request")
)
