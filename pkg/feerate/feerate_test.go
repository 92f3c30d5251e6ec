package feerate

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

// TestFeeForSize checks that fee calculation scales with the serialized size
// and rounds the same way the relay fee rules do.
func TestFeeForSize(t *testing.T) {
	t.Parallel()

	rate := NewSatPerKVByte(1000)

	// 1000 sat/kvb over 250 vbytes is 250 sats.
	require.Equal(t, btcutil.Amount(250), rate.FeeForSize(250))

	// A full kilo-vbyte pays the rate exactly.
	require.Equal(t, btcutil.Amount(1000), rate.FeeForSize(1000))

	// The zero value charges nothing.
	var zero SatPerKVByte
	require.True(t, zero.IsZero())
	require.Equal(t, btcutil.Amount(0), zero.FeeForSize(250))
}

// TestStringer checks the human-readable form.
func TestStringer(t *testing.T) {
	t.Parallel()

	require.Equal(t, "2500 sat/kvb", NewSatPerKVByte(2500).String())
}
