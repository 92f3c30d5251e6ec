// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txsigner

import (
	"context"

	"github.com/razib6662/wallet-core/tapengine"
)

// AlternateEngine is the external signing engine handling transactions that
// spend through the commit/reveal inscription scheme. The request and
// response travel in the engine's boundary encoding; the engine owns the
// schema. The call is synchronous, and the context is the only cancellation
// mechanism applied to it.
type AlternateEngine interface {
	// SignTransaction builds and signs the transaction described by the
	// encoded request and returns the encoded signed transaction.
	SignTransaction(ctx context.Context, request []byte) ([]byte, error)
}

// config bundles the optional knobs of a TransactionSigner.
type config struct {
	engine AlternateEngine
}

// Option configures a TransactionSigner.
type Option func(*config)

// WithEngine overrides the engine used for the alternate commit/reveal
// scheme. Mainly useful for tests and for callers running the engine out of
// process.
func WithEngine(engine AlternateEngine) Option {
	return func(cfg *config) {
		cfg.engine = engine
	}
}

// TransactionSigner is the signing entry point, parameterized by a chain's
// transaction and builder types so one dispatch serves every supported
// chain. It holds no per-call state; concurrent calls are safe as long as
// each call owns its SigningInput.
type TransactionSigner[T Transaction, B TransactionBuilder[T]] struct {
	builder B
	engine  AlternateEngine
}

// New returns a signer for the chain served by the given builder. The
// in-process inscription engine is used for the alternate scheme unless an
// option overrides it.
func New[T Transaction, B TransactionBuilder[T]](builder B,
	opts ...Option) *TransactionSigner[T, B] {

	cfg := &config{
		engine: tapengine.New(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &TransactionSigner[T, B]{
		builder: builder,
		engine:  cfg.engine,
	}
}

// Plan returns the transaction plan for the request: the caller's plan
// verbatim when one is attached, otherwise a freshly computed one.
func (s *TransactionSigner[T, B]) Plan(input *SigningInput) *TransactionPlan {
	return s.resolvePlan(input)
}

// Sign produces a fully authorized transaction for the request. The
// commit/reveal scheme, when flagged, takes precedence and is delegated to
// the engine; otherwise the unsigned transaction is built from the plan and
// signed under one of three modes: size estimation when estimationMode is
// set, external when signature/pubkey pairs are supplied, normal otherwise.
// Estimation wins when both are set. Builder and signature failures are
// returned unmodified.
func (s *TransactionSigner[T, B]) Sign(ctx context.Context,
	input *SigningInput, estimationMode bool,
	externalSigs []SignaturePubkey) (T, error) {

	var zero T

	plan := s.resolvePlan(input)

	if input.AlternateScheme {
		return s.signAlternate(ctx, input)
	}

	tx, err := s.builder.Build(plan, input)
	if err != nil {
		return zero, err
	}

	mode := SigningModeNormal
	switch {
	case estimationMode:
		mode = SigningModeSizeEstimationOnly
	case len(externalSigs) > 0:
		mode = SigningModeExternal
	}

	log.Debugf("Signing %d-input transaction in %v mode",
		len(tx.TxIn()), mode)

	builder := NewSignatureBuilder(input, plan, tx, mode, externalSigs)

	return builder.Sign()
}

// PreImageHashes builds the unsigned transaction and returns the sighash
// preimages an external signer must sign: exactly one (sighash, expected
// signer) pair per input, in input order, matching what Sign in external
// mode expects back.
func (s *TransactionSigner[T, B]) PreImageHashes(
	input *SigningInput) (HashPubkeyList, error) {

	plan := s.resolvePlan(input)

	tx, err := s.builder.Build(plan, input)
	if err != nil {
		return nil, err
	}

	builder := NewSignatureBuilder(
		input, plan, tx, SigningModeHashOnly, nil,
	)

	if _, err := builder.Sign(); err != nil {
		return nil, err
	}

	return builder.HashesForSigning(), nil
}

// resolvePlan returns the caller's plan unchanged when set, without
// re-validation, so a pre-negotiated plan (e.g. for fee bumping) is never
// re-planned. Otherwise the chain's planner runs.
func (s *TransactionSigner[T, B]) resolvePlan(
	input *SigningInput) *TransactionPlan {

	if input.Plan != nil {
		return input.Plan
	}

	return s.builder.Plan(input)
}
