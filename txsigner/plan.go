// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txsigner

import (
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// TransactionPlan describes the inputs, outputs and fee of a transaction
// before it is built. A plan is produced once per signing call, either by
// the caller or by the planner, and is read-only afterwards.
type TransactionPlan struct {
	// UTXOs are the selected inputs, in the order they appear in the
	// built transaction.
	UTXOs []*UTXO

	// Outputs are the final outputs, change included, in the order they
	// appear in the built transaction.
	Outputs []*wire.TxOut

	// Fee is the miner fee paid by the plan.
	Fee btcutil.Amount

	// TotalIn is the combined value of the selected inputs.
	TotalIn btcutil.Amount

	// ChangeIndex is the output index of the change output, or -1 when
	// the plan produced no change.
	ChangeIndex int

	// Err records a selection failure. Planning itself never returns an
	// error; a failed plan refuses to build, and the failure surfaces
	// from the build step unmodified.
	Err error
}

// PlanTransaction selects inputs and computes change for the given request.
// Candidate UTXOs are arranged largest first and fed to the btcwallet
// authoring package, which performs the actual selection and fee
// computation. The change output, when present, keeps the position txauthor
// assigned so planning stays deterministic.
func PlanTransaction(input *SigningInput) *TransactionPlan {
	plan := &TransactionPlan{ChangeIndex: -1}

	if err := validatePlanRequest(input); err != nil {
		plan.Err = err
		return plan
	}

	// Arrange the candidates largest first so small coins are only
	// dragged in when the big ones cannot cover the target.
	arranged := make([]*UTXO, len(input.UTXOs))
	copy(arranged, input.UTXOs)
	sort.SliceStable(arranged, func(i, j int) bool {
		return arranged[i].Amount > arranged[j].Amount
	})

	changeSource := &txauthor.ChangeSource{
		ScriptSize: changeScriptSize(input.ChangeScript),
		NewScript: func() ([]byte, error) {
			return input.ChangeScript, nil
		},
	}

	authored, err := txauthor.NewUnsignedTransaction(
		input.Outputs, input.FeeRate.PerKVByte(),
		makeInputSource(arranged), changeSource,
	)
	if err != nil {
		var srcErr txauthor.InputSourceError
		if errors.As(err, &srcErr) {
			err = fmt.Errorf("%w: %v", ErrInsufficientBalance,
				err)
		}

		plan.Err = err

		return plan
	}

	// Map the selected wire inputs back to the caller's UTXOs. Selection
	// dispenses the arranged coins in order, so every selected outpoint
	// is known.
	byOutpoint := make(map[wire.OutPoint]*UTXO, len(input.UTXOs))
	for _, utxo := range input.UTXOs {
		byOutpoint[utxo.OutPoint] = utxo
	}

	plan.UTXOs = make([]*UTXO, 0, len(authored.Tx.TxIn))
	for _, txIn := range authored.Tx.TxIn {
		plan.UTXOs = append(
			plan.UTXOs, byOutpoint[txIn.PreviousOutPoint],
		)
	}

	var totalOut btcutil.Amount
	for _, txOut := range authored.Tx.TxOut {
		totalOut += btcutil.Amount(txOut.Value)
	}

	plan.Outputs = authored.Tx.TxOut
	plan.TotalIn = authored.TotalInput
	plan.Fee = authored.TotalInput - totalOut
	plan.ChangeIndex = authored.ChangeIndex

	log.Debugf("Planned tx: %d inputs, %d outputs, fee %v",
		len(plan.UTXOs), len(plan.Outputs), plan.Fee)

	return plan
}

// validatePlanRequest performs the checks a request must pass before any
// selection work is attempted.
func validatePlanRequest(input *SigningInput) error {
	if len(input.Outputs) == 0 {
		return ErrNoTxOutputs
	}

	// Each output must clear the default relay dust threshold.
	for _, output := range input.Outputs {
		err := txrules.CheckOutput(
			output, txrules.DefaultRelayFeePerKb,
		)
		if err != nil {
			return err
		}
	}

	if len(input.UTXOs) == 0 {
		return ErrNoUTXOs
	}

	outpoints := make([]wire.OutPoint, len(input.UTXOs))
	for i, utxo := range input.UTXOs {
		outpoints[i] = utxo.OutPoint
	}

	dedup := fn.NewSet(outpoints...)
	if len(dedup) != len(outpoints) {
		return ErrDuplicatedUtxo
	}

	if input.FeeRate.IsZero() {
		return ErrMissingFeeRate
	}

	if len(input.ChangeScript) == 0 {
		return ErrMissingChangeScript
	}

	return nil
}

// changeScriptSize returns the serialized size txauthor should assume for
// the change output's script when estimating fees.
func changeScriptSize(script []byte) int {
	switch txscript.GetScriptClass(script) {
	case txscript.PubKeyHashTy:
		return txsizes.P2PKHPkScriptSize
	case txscript.WitnessV0PubKeyHashTy:
		return txsizes.P2WPKHPkScriptSize
	case txscript.WitnessV1TaprootTy:
		return txsizes.P2TRPkScriptSize
	case txscript.ScriptHashTy:
		return txsizes.NestedP2WPKHPkScriptSize
	default:
		return len(script)
	}
}

// makeInputSource wraps the arranged coins in a txauthor input source that
// dispenses them in order until the requested target is reached.
func makeInputSource(arranged []*UTXO) txauthor.InputSource {
	// Current inputs and their total value. These are closed over by the
	// returned input source and reused across multiple calls.
	currentTotal := btcutil.Amount(0)
	currentInputs := make([]*wire.TxIn, 0, len(arranged))
	currentScripts := make([][]byte, 0, len(arranged))
	currentInputValues := make([]btcutil.Amount, 0, len(arranged))

	return func(target btcutil.Amount) (btcutil.Amount, []*wire.TxIn,
		[]btcutil.Amount, [][]byte, error) {

		for currentTotal < target && len(arranged) != 0 {
			nextCoin := arranged[0]
			arranged = arranged[1:]

			nextInput := wire.NewTxIn(&nextCoin.OutPoint, nil, nil)
			if nextCoin.Sequence != 0 {
				nextInput.Sequence = nextCoin.Sequence
			}
			currentTotal += nextCoin.Amount

			currentInputs = append(currentInputs, nextInput)
			currentScripts = append(
				currentScripts, nextCoin.Script,
			)
			currentInputValues = append(
				currentInputValues, nextCoin.Amount,
			)
		}

		return currentTotal, currentInputs, currentInputValues,
			currentScripts, nil
	}
}
