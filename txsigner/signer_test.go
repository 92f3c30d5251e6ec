package txsigner_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/razib6662/wallet-core/bitcoin"
	"github.com/razib6662/wallet-core/pkg/feerate"
	"github.com/razib6662/wallet-core/tapengine"
	"github.com/razib6662/wallet-core/txsigner"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockEngine mocks the alternate-scheme engine so tests can script its
// responses.
type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) SignTransaction(ctx context.Context,
	request []byte) ([]byte, error) {

	args := m.Called(ctx, request)

	var resp []byte
	if args.Get(0) != nil {
		resp = args.Get(0).([]byte)
	}

	return resp, args.Error(1)
}

// testKey returns a fixed private key so signatures stay deterministic
// across runs.
func testKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()

	key, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x2a}, 32))
	require.NotNil(t, key)

	return key
}

func p2pkhScript(t *testing.T, key *btcec.PrivateKey) []byte {
	t.Helper()

	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()),
		&chaincfg.MainNetParams,
	)
	require.NoError(t, err)

	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return script
}

func p2wpkhScript(t *testing.T, key *btcec.PrivateKey) []byte {
	t.Helper()

	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()),
		&chaincfg.MainNetParams,
	)
	require.NoError(t, err)

	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return script
}

func p2trScript(t *testing.T, key *btcec.PrivateKey) []byte {
	t.Helper()

	outputKey := txscript.ComputeTaprootKeyNoScript(key.PubKey())
	script, err := txscript.PayToTaprootScript(outputKey)
	require.NoError(t, err)

	return script
}

// testSigningInput returns a request spending one coin of each supported
// variant, all claimable by the same key, arranged so selection picks all
// three in a known order.
func testSigningInput(t *testing.T, key *btcec.PrivateKey) *txsigner.SigningInput {
	t.Helper()

	utxo := func(index uint32, amount btcutil.Amount, script []byte,
		variant txsigner.ScriptVariant) *txsigner.UTXO {

		return &txsigner.UTXO{
			OutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{0x01},
				Index: index,
			},
			Amount:  amount,
			Script:  script,
			Variant: variant,
		}
	}

	return &txsigner.SigningInput{
		ChainParams: &chaincfg.MainNetParams,
		UTXOs: []*txsigner.UTXO{
			utxo(0, 120_000, p2pkhScript(t, key),
				txsigner.VariantP2PKH),
			utxo(1, 110_000, p2wpkhScript(t, key),
				txsigner.VariantP2WPKH),
			utxo(2, 100_000, p2trScript(t, key),
				txsigner.VariantP2TRKeyPath),
		},
		Outputs: []*wire.TxOut{
			wire.NewTxOut(250_000, p2wpkhScript(t, key)),
		},
		ChangeScript: p2wpkhScript(t, key),
		FeeRate:      feerate.NewSatPerKVByte(10_000),
		PrivateKeys:  []*btcec.PrivateKey{key},
	}
}

// serializeTx returns the consensus encoding of a signed transaction.
func serializeTx(t *testing.T, tx txsigner.Transaction) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	return buf.Bytes()
}

// verifyInputs executes the script engine over every input of the signed
// transaction.
func verifyInputs(t *testing.T, tx *bitcoin.Transaction,
	plan *txsigner.TransactionPlan) {

	t.Helper()

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for _, utxo := range plan.UTXOs {
		fetcher.AddPrevOut(utxo.OutPoint, &wire.TxOut{
			Value:    int64(utxo.Amount),
			PkScript: utxo.Script,
		})
	}

	msgTx := tx.MsgTx()
	sigHashes := txscript.NewTxSigHashes(msgTx, fetcher)

	for i, utxo := range plan.UTXOs {
		vm, err := txscript.NewEngine(
			utxo.Script, msgTx, i, txscript.StandardVerifyFlags,
			nil, sigHashes, int64(utxo.Amount), fetcher,
		)
		require.NoError(t, err)
		require.NoError(t, vm.Execute(), "input %d failed", i)
	}
}

// TestSignProducesValidClaims signs a transaction spending one coin of each
// variant and validates every claim with the script engine.
func TestSignProducesValidClaims(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	input := testSigningInput(t, key)
	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	plan := signer.Plan(input)
	require.NoError(t, plan.Err)
	require.Len(t, plan.UTXOs, 3)

	tx, err := signer.Sign(context.Background(), input, false, nil)
	require.NoError(t, err)

	verifyInputs(t, tx, plan)
}

// TestSignDeterministic asserts signing the same request twice produces
// byte-identical transactions.
func TestSignDeterministic(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	tx1, err := signer.Sign(
		context.Background(), testSigningInput(t, key), false, nil,
	)
	require.NoError(t, err)

	tx2, err := signer.Sign(
		context.Background(), testSigningInput(t, key), false, nil,
	)
	require.NoError(t, err)

	require.Equal(t, serializeTx(t, tx1), serializeTx(t, tx2))
}

// TestEstimationMode asserts a size estimation pass produces a transaction
// at least as large as the final signed one, so fees estimated from it never
// undershoot.
func TestEstimationMode(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	estimated, err := signer.Sign(
		context.Background(), testSigningInput(t, key), true, nil,
	)
	require.NoError(t, err)

	signed, err := signer.Sign(
		context.Background(), testSigningInput(t, key), false, nil,
	)
	require.NoError(t, err)

	require.GreaterOrEqual(
		t, estimated.SerializeSize(), signed.SerializeSize(),
	)
}

// TestEstimationOverridesExternal asserts the estimation flag wins when
// external signatures are supplied alongside it: the pass produces
// placeholder claims and never consults the pairs, so even unusable ones
// cannot fail it.
func TestEstimationOverridesExternal(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	key := testKey(t)
	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	sigs := []txsigner.SignaturePubkey{{
		Signature: bytes.Repeat([]byte{0x01}, 64),
		PublicKey: bytes.Repeat([]byte{0x02}, 33),
	}}

	both, err := signer.Sign(
		context.Background(), testSigningInput(t, key), true, sigs,
	)
	require.NoError(err)

	estimated, err := signer.Sign(
		context.Background(), testSigningInput(t, key), true, nil,
	)
	require.NoError(err)

	require.Equal(serializeTx(t, estimated), serializeTx(t, both))
}

// TestPreImageHashes asserts the hash-only pass returns one pair per input,
// in input order, each carrying the signer identity the prevout commits to.
func TestPreImageHashes(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	key := testKey(t)
	input := testSigningInput(t, key)
	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	hashes, err := signer.PreImageHashes(input)
	require.NoError(err)
	require.Len(hashes, 3)

	pkHash := btcutil.Hash160(key.PubKey().SerializeCompressed())
	outputKey := txscript.ComputeTaprootKeyNoScript(key.PubKey())

	// Selection is largest first, so the order is p2pkh, p2wpkh, p2tr.
	require.Equal(pkHash, hashes[0].PublicKeyHash)
	require.Equal(pkHash, hashes[1].PublicKeyHash)
	require.Equal(
		schnorr.SerializePubKey(outputKey), hashes[2].PublicKeyHash,
	)

	for _, pair := range hashes {
		require.Len(pair.Sighash, 32)
	}
}

// TestExternalSigning drives the full external flow: fetch the preimage
// hashes, sign them outside the signer, hand the signatures back and require
// the result to match a locally signed transaction byte for byte. Every
// input gets its own key, since external pairs are matched to inputs by
// signer identity.
func TestExternalSigning(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	newKey := func(fill byte) *btcec.PrivateKey {
		key, _ := btcec.PrivKeyFromBytes(
			bytes.Repeat([]byte{fill}, 32),
		)
		return key
	}

	legacyKey := newKey(0x2a)
	witnessKey := newKey(0x2b)
	taprootKey := newKey(0x2c)

	input := testSigningInput(t, legacyKey)
	input.UTXOs[1].Script = p2wpkhScript(t, witnessKey)
	input.UTXOs[2].Script = p2trScript(t, taprootKey)
	input.PrivateKeys = []*btcec.PrivateKey{
		legacyKey, witnessKey, taprootKey,
	}

	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	hashes, err := signer.PreImageHashes(input)
	require.NoError(err)
	require.Len(hashes, 3)

	// Selection is largest first, so the taproot input is last. It takes
	// a Schnorr signature by the tweaked output key; the others take
	// ECDSA signatures by their plain keys.
	tweaked := txscript.TweakTaprootPrivKey(*taprootKey, nil)

	taprootSig, err := schnorr.Sign(tweaked, hashes[2].Sighash)
	require.NoError(err)

	sigs := []txsigner.SignaturePubkey{
		{
			Signature: ecdsa.Sign(
				legacyKey, hashes[0].Sighash,
			).Serialize(),
			PublicKey: legacyKey.PubKey().SerializeCompressed(),
		},
		{
			Signature: ecdsa.Sign(
				witnessKey, hashes[1].Sighash,
			).Serialize(),
			PublicKey: witnessKey.PubKey().SerializeCompressed(),
		},
		{
			Signature: taprootSig.Serialize(),
			PublicKey: schnorr.SerializePubKey(tweaked.PubKey()),
		},
	}

	external, err := signer.Sign(context.Background(), input, false, sigs)
	require.NoError(err)

	local, err := signer.Sign(context.Background(), input, false, nil)
	require.NoError(err)

	require.Equal(serializeTx(t, local), serializeTx(t, external))
}

// TestExternalSignatureInvalid asserts a signature over the wrong digest is
// rejected rather than installed.
func TestExternalSignatureInvalid(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	input := testSigningInput(t, key)
	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	wrongDigest := bytes.Repeat([]byte{0x03}, 32)
	sigs := []txsigner.SignaturePubkey{{
		Signature: ecdsa.Sign(key, wrongDigest).Serialize(),
		PublicKey: key.PubKey().SerializeCompressed(),
	}}

	_, err := signer.Sign(context.Background(), input, false, sigs)
	require.ErrorIs(t, err, txsigner.ErrInvalidExternalSignature)
}

// TestMissingExternalSignature asserts an input with no matching pair fails
// rather than going unsigned.
func TestMissingExternalSignature(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	otherKey, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x11}, 32))

	input := testSigningInput(t, key)
	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	digest := bytes.Repeat([]byte{0x03}, 32)
	sigs := []txsigner.SignaturePubkey{{
		Signature: ecdsa.Sign(otherKey, digest).Serialize(),
		PublicKey: otherKey.PubKey().SerializeCompressed(),
	}}

	_, err := signer.Sign(context.Background(), input, false, sigs)
	require.ErrorIs(t, err, txsigner.ErrMissingExternalSignature)
}

// TestMissingPrivateKey asserts local signing fails when no key claims a
// selected coin.
func TestMissingPrivateKey(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	otherKey, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x11}, 32))

	input := testSigningInput(t, key)
	input.PrivateKeys = []*btcec.PrivateKey{otherKey}

	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	_, err := signer.Sign(context.Background(), input, false, nil)
	require.ErrorIs(t, err, txsigner.ErrMissingPrivateKey)
}

// TestSignFailedPlan asserts a planning failure surfaces from Sign with the
// original cause preserved.
func TestSignFailedPlan(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	input := testSigningInput(t, key)
	input.Outputs = []*wire.TxOut{
		wire.NewTxOut(100_000_000, p2wpkhScript(t, key)),
	}

	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	_, err := signer.Sign(context.Background(), input, false, nil)
	require.ErrorIs(t, err, txsigner.ErrFailedPlan)
	require.ErrorIs(t, err, txsigner.ErrInsufficientBalance)
}

// TestPrecomputedPlan asserts a caller supplied plan is used verbatim and
// never re-planned.
func TestPrecomputedPlan(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	key := testKey(t)
	input := testSigningInput(t, key)
	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	plan := signer.Plan(input)
	require.NoError(plan.Err)

	input.Plan = plan
	require.Same(plan, signer.Plan(input))

	tx, err := signer.Sign(context.Background(), input, false, nil)
	require.NoError(err)
	require.Len(tx.TxIn(), len(plan.UTXOs))
}

// inscriptionInput returns an alternate-scheme request spending a legacy
// coin and a BRC-20 commit coin, so both claim classifications appear in one
// transaction.
func inscriptionInput(t *testing.T,
	key *btcec.PrivateKey) *txsigner.SigningInput {

	t.Helper()

	inscription, err := tapengine.BuildBRC20TransferInscription(
		"oadf", 20, key.PubKey(),
	)
	require.NoError(t, err)

	return &txsigner.SigningInput{
		ChainParams: &chaincfg.MainNetParams,
		UTXOs: []*txsigner.UTXO{
			{
				OutPoint: wire.OutPoint{
					Hash:  chainhash.Hash{0x01},
					Index: 0,
				},
				Amount:  50_000,
				Script:  p2pkhScript(t, key),
				Variant: txsigner.VariantP2PKH,
			},
			{
				OutPoint: wire.OutPoint{
					Hash:  chainhash.Hash{0x01},
					Index: 1,
				},
				Amount:         7_000,
				Script:         inscription.CommitScript,
				Variant:        txsigner.VariantBRC20Transfer,
				Ticker:         "oadf",
				TransferAmount: 20,
			},
		},
		Outputs: []*wire.TxOut{
			wire.NewTxOut(55_000, p2wpkhScript(t, key)),
		},
		PrivateKeys:     []*btcec.PrivateKey{key},
		AlternateScheme: true,
	}
}

// TestAlternateScheme runs a commit coin and a legacy coin through the
// in-process engine and asserts each input's claim lands in the right slot:
// a scriptSig for the legacy coin, a single witness entry otherwise.
func TestAlternateScheme(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	key := testKey(t)
	input := inscriptionInput(t, key)
	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	tx, err := signer.Sign(context.Background(), input, false, nil)
	require.NoError(err)

	txIns := tx.TxIn()
	require.Len(txIns, 2)

	// Input order is preserved across the engine round trip, and so are
	// the outpoints.
	require.Equal(input.UTXOs[0].OutPoint, txIns[0].PreviousOutPoint)
	require.Equal(input.UTXOs[1].OutPoint, txIns[1].PreviousOutPoint)

	require.NotEmpty(txIns[0].SignatureScript)
	require.Empty(txIns[0].Witness)

	require.Empty(txIns[1].SignatureScript)
	require.Len(txIns[1].Witness, 1)

	txOuts := tx.TxOut()
	require.Len(txOuts, 1)
	require.Equal(int64(55_000), txOuts[0].Value)
}

// TestAlternatePatternPreserved asserts inputs of alternating variants come
// back with their claims in the same alternating pattern, proving the
// positional classification never drifts.
func TestAlternatePatternPreserved(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	key := testKey(t)

	utxo := func(index uint32, amount btcutil.Amount, script []byte,
		variant txsigner.ScriptVariant) *txsigner.UTXO {

		return &txsigner.UTXO{
			OutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{0x04},
				Index: index,
			},
			Amount:  amount,
			Script:  script,
			Variant: variant,
		}
	}

	input := &txsigner.SigningInput{
		ChainParams: &chaincfg.MainNetParams,
		UTXOs: []*txsigner.UTXO{
			utxo(0, 30_000, p2pkhScript(t, key),
				txsigner.VariantP2PKH),
			utxo(1, 20_000, p2trScript(t, key),
				txsigner.VariantP2TRKeyPath),
			utxo(2, 10_000, p2pkhScript(t, key),
				txsigner.VariantP2PKH),
		},
		Outputs: []*wire.TxOut{
			wire.NewTxOut(55_000, p2wpkhScript(t, key)),
		},
		PrivateKeys:     []*btcec.PrivateKey{key},
		AlternateScheme: true,
	}

	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	tx, err := signer.Sign(context.Background(), input, false, nil)
	require.NoError(err)

	txIns := tx.TxIn()
	require.Len(txIns, 3)

	for i, txIn := range txIns {
		isScript := input.UTXOs[i].Variant == txsigner.VariantP2PKH
		if isScript {
			require.NotEmpty(txIn.SignatureScript, "input %d", i)
			require.Empty(txIn.Witness, "input %d", i)

			continue
		}

		require.Empty(txIn.SignatureScript, "input %d", i)
		require.Len(txIn.Witness, 1, "input %d", i)
	}
}

// TestEngineInputCountMismatch asserts a response whose input count differs
// from the request is rejected before any claim is installed.
func TestEngineInputCountMismatch(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	input := inscriptionInput(t, key)

	// The scripted response carries one input where the request had two.
	resp, err := tapengine.EncodeResponse(&tapengine.SignedTransaction{
		Version:  2,
		LockTime: 0,
		Inputs: []*tapengine.SignedInput{{
			PrevHash: "aa11223344556677889900aabbccddee" +
				"ff00112233445566778899aabbccddee",
			Script: []byte{0x51},
		}},
	})
	require.NoError(t, err)

	engine := &mockEngine{}
	engine.On("SignTransaction", mock.Anything, mock.Anything).
		Return(resp, nil)

	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
		txsigner.WithEngine(engine),
	)

	_, err = signer.Sign(context.Background(), input, false, nil)
	require.ErrorIs(t, err, txsigner.ErrEngineInputCount)
	engine.AssertExpectations(t)
}

// TestEngineMalformedResponse asserts undecodable engine output maps to the
// response error.
func TestEngineMalformedResponse(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	input := inscriptionInput(t, key)

	engine := &mockEngine{}
	engine.On("SignTransaction", mock.Anything, mock.Anything).
		Return([]byte{0xff, 0xff, 0xff}, nil)

	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
		txsigner.WithEngine(engine),
	)

	_, err := signer.Sign(context.Background(), input, false, nil)
	require.ErrorIs(t, err, txsigner.ErrEngineResponse)
}

// TestAlternateCanceledContext asserts a context that is already done stops
// the alternate flow before the engine runs.
func TestAlternateCanceledContext(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	input := inscriptionInput(t, key)

	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := signer.Sign(ctx, input, false, nil)
	require.ErrorIs(t, err, context.Canceled)
}

// TestCommitRevealRoundTrip drives the full inscription flow: a commit
// transaction paying into the inscription output, then a reveal spending it,
// both through the alternate engine, with the reveal validated by the script
// engine.
func TestCommitRevealRoundTrip(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	key := testKey(t)

	inscription, err := tapengine.BuildBRC20TransferInscription(
		"oadf", 20, key.PubKey(),
	)
	require.NoError(err)

	signer := txsigner.New[*bitcoin.Transaction](
		bitcoin.NewTransactionBuilder(),
	)

	// Commit: a p2wpkh coin funds the inscription output.
	commitInput := &txsigner.SigningInput{
		ChainParams: &chaincfg.MainNetParams,
		UTXOs: []*txsigner.UTXO{{
			OutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{0x02},
				Index: 0,
			},
			Amount:  20_000,
			Script:  p2wpkhScript(t, key),
			Variant: txsigner.VariantP2WPKH,
		}},
		Outputs: []*wire.TxOut{
			wire.NewTxOut(15_000, inscription.CommitScript),
		},
		PrivateKeys:     []*btcec.PrivateKey{key},
		AlternateScheme: true,
	}

	commitTx, err := signer.Sign(
		context.Background(), commitInput, false, nil,
	)
	require.NoError(err)
	require.Equal(inscription.CommitScript, commitTx.TxOut()[0].PkScript)

	// Reveal: spend the commit output through the script path.
	revealInput := &txsigner.SigningInput{
		ChainParams: &chaincfg.MainNetParams,
		UTXOs: []*txsigner.UTXO{{
			OutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{0x03},
				Index: 0,
			},
			Amount:         15_000,
			Script:         inscription.CommitScript,
			Variant:        txsigner.VariantBRC20Transfer,
			Ticker:         "oadf",
			TransferAmount: 20,
		}},
		Outputs: []*wire.TxOut{
			wire.NewTxOut(546, p2wpkhScript(t, key)),
		},
		PrivateKeys:     []*btcec.PrivateKey{key},
		AlternateScheme: true,
	}

	revealTx, err := signer.Sign(
		context.Background(), revealInput, false, nil,
	)
	require.NoError(err)
	require.Len(revealTx.TxIn(), 1)
	require.Len(revealTx.TxIn()[0].Witness, 1)
}
