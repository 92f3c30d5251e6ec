// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tapengine

import "errors"

var (
	// ErrTruncatedList is returned when a framed list in the boundary
	// encoding ends before all announced items were read, or carries
	// trailing bytes.
	ErrTruncatedList = errors.New("truncated list in boundary encoding")

	// ErrUnknownSpendKind is returned when a request UTXO carries a
	// spend kind this engine cannot claim.
	ErrUnknownSpendKind = errors.New("unknown spend kind")

	// ErrMissingKey is returned when none of the request keys can claim
	// a request UTXO.
	ErrMissingKey = errors.New("no key claims the utxo")

	// ErrBadPrevHash is returned when a request UTXO carries a previous
	// hash that is not 32 bytes of hex text.
	ErrBadPrevHash = errors.New("malformed previous hash")

	// ErrEmptyTicker is returned when a BRC-20 transfer inscription is
	// requested without a ticker.
	ErrEmptyTicker = errors.New("empty brc20 ticker")

	// ErrEmptyPayload is returned when an ordinal inscription is
	// requested without content.
	ErrEmptyPayload = errors.New("empty inscription payload")
)
