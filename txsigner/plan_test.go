package txsigner

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/razib6662/wallet-core/pkg/feerate"
	"github.com/stretchr/testify/require"
)

// testScripts are structurally valid prevout and output scripts used across
// the planner tests. The planner never validates signatures, so the embedded
// hashes are arbitrary.
var (
	testP2WPKHScript = append(
		[]byte{0x00, 0x14}, make([]byte, 20)...,
	)

	testP2PKHScript = append(append(
		[]byte{0x76, 0xa9, 0x14}, make([]byte, 20)...),
		0x88, 0xac,
	)
)

// testUTXO returns a planner candidate of the given value, distinguished by
// its outpoint index.
func testUTXO(index uint32, amount btcutil.Amount) *UTXO {
	return &UTXO{
		OutPoint: wire.OutPoint{
			Hash:  chainhash.Hash{0x01},
			Index: index,
		},
		Amount:  amount,
		Script:  testP2WPKHScript,
		Variant: VariantP2WPKH,
	}
}

// testPlanInput returns a spendable planning request the individual tests
// mutate into their failure shapes.
func testPlanInput() *SigningInput {
	return &SigningInput{
		UTXOs: []*UTXO{
			testUTXO(0, 10_000),
			testUTXO(1, 50_000),
			testUTXO(2, 120_000),
		},
		Outputs: []*wire.TxOut{
			wire.NewTxOut(60_000, testP2WPKHScript),
		},
		ChangeScript: testP2WPKHScript,
		FeeRate:      feerate.NewSatPerKVByte(10_000),
	}
}

// TestPlanValidation exercises the request checks that run before any
// selection work.
func TestPlanValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*SigningInput)
		wantErr error
	}{{
		name: "no outputs",
		mutate: func(in *SigningInput) {
			in.Outputs = nil
		},
		wantErr: ErrNoTxOutputs,
	}, {
		name: "no utxos",
		mutate: func(in *SigningInput) {
			in.UTXOs = nil
		},
		wantErr: ErrNoUTXOs,
	}, {
		name: "duplicated utxo",
		mutate: func(in *SigningInput) {
			in.UTXOs = append(in.UTXOs, testUTXO(1, 50_000))
		},
		wantErr: ErrDuplicatedUtxo,
	}, {
		name: "missing fee rate",
		mutate: func(in *SigningInput) {
			in.FeeRate = feerate.SatPerKVByte{}
		},
		wantErr: ErrMissingFeeRate,
	}, {
		name: "missing change script",
		mutate: func(in *SigningInput) {
			in.ChangeScript = nil
		},
		wantErr: ErrMissingChangeScript,
	}}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			input := testPlanInput()
			tc.mutate(input)

			plan := PlanTransaction(input)
			require.ErrorIs(t, plan.Err, tc.wantErr)
			require.Empty(t, plan.UTXOs)
		})
	}
}

// TestPlanSelectsLargestFirst asserts selection starts from the largest
// candidate and stops once the target is covered.
func TestPlanSelectsLargestFirst(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	input := testPlanInput()

	plan := PlanTransaction(input)
	require.NoError(plan.Err)

	// The 120k coin alone covers the 60k target plus fees.
	require.Len(plan.UTXOs, 1)
	require.Equal(uint32(2), plan.UTXOs[0].OutPoint.Index)
	require.Equal(btcutil.Amount(120_000), plan.TotalIn)

	// The remainder comes back as change and the books balance.
	require.GreaterOrEqual(plan.ChangeIndex, 0)
	require.Less(plan.ChangeIndex, len(plan.Outputs))
	require.Positive(plan.Fee)

	var totalOut btcutil.Amount
	for _, txOut := range plan.Outputs {
		totalOut += btcutil.Amount(txOut.Value)
	}
	require.Equal(plan.TotalIn, totalOut+plan.Fee)
}

// TestPlanDragsInSmallCoins asserts small coins are pulled in when the
// largest cannot cover the target alone.
func TestPlanDragsInSmallCoins(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	input := testPlanInput()
	input.Outputs = []*wire.TxOut{
		wire.NewTxOut(150_000, testP2WPKHScript),
	}

	plan := PlanTransaction(input)
	require.NoError(plan.Err)
	require.Len(plan.UTXOs, 2)

	// Largest first: the 120k coin, then the 50k coin.
	require.Equal(uint32(2), plan.UTXOs[0].OutPoint.Index)
	require.Equal(uint32(1), plan.UTXOs[1].OutPoint.Index)
}

// TestPlanInsufficientBalance asserts a target the candidates cannot cover
// surfaces as an insufficient balance failure on the plan.
func TestPlanInsufficientBalance(t *testing.T) {
	t.Parallel()

	input := testPlanInput()
	input.Outputs = []*wire.TxOut{
		wire.NewTxOut(1_000_000, testP2WPKHScript),
	}

	plan := PlanTransaction(input)
	require.ErrorIs(t, plan.Err, ErrInsufficientBalance)
}

// TestPlanRejectsDust asserts outputs below the relay dust threshold are
// rejected before selection.
func TestPlanRejectsDust(t *testing.T) {
	t.Parallel()

	input := testPlanInput()
	input.Outputs = []*wire.TxOut{
		wire.NewTxOut(100, testP2PKHScript),
	}

	plan := PlanTransaction(input)
	require.Error(t, plan.Err)
}

// TestPlanKeepsUtxoSequence asserts a caller assigned sequence number
// survives planning.
func TestPlanKeepsUtxoSequence(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	input := testPlanInput()
	input.UTXOs[2].Sequence = 0xfffffffd

	plan := PlanTransaction(input)
	require.NoError(plan.Err)
	require.Equal(uint32(0xfffffffd), plan.UTXOs[0].Sequence)
}
