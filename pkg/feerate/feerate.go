// Copyright (c) 2025 The wallet-core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package feerate provides a unit type for transaction fee rates.
package feerate

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/wallet/txrules"
)

// SatPerKVByte represents a fee rate in satoshis per kilo-virtual-byte
// (sat/kvb), the unit used by the planner and by the btcwallet authoring
// packages. The zero value is a zero fee rate.
type SatPerKVByte struct {
	rate btcutil.Amount
}

// NewSatPerKVByte creates a new fee rate in sat/kvb.
func NewSatPerKVByte(rate btcutil.Amount) SatPerKVByte {
	return SatPerKVByte{rate: rate}
}

// PerKVByte returns the rate as a plain amount in sat/kvb.
func (s SatPerKVByte) PerKVByte() btcutil.Amount {
	return s.rate
}

// FeeForSize calculates the fee for a transaction of the given serialized
// size in vbytes. The result is rounded the same way relay fee calculations
// round, so estimates agree with what txauthor produces.
func (s SatPerKVByte) FeeForSize(vbytes int) btcutil.Amount {
	return txrules.FeeForSerializeSize(s.rate, vbytes)
}

// IsZero reports whether the fee rate is zero.
func (s SatPerKVByte) IsZero() bool {
	return s.rate == 0
}

// String returns a human-readable string of the fee rate.
func (s SatPerKVByte) String() string {
	return fmt.Sprintf("%d sat/kvb", int64(s.rate))
}
