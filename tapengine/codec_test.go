package tapengine

import (
	"bytes"
	"testing"

	"github.com/lightningnetwork/lnd/tlv"
	"github.com/stretchr/testify/require"
)

// TestRequestRoundTrip asserts a signing request survives the boundary
// encoding unchanged, with list orders preserved.
func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	req := &SigningRequest{
		LockTime: 650000,
		UTXOs: []*RequestUTXO{
			{
				PrevHash: "aa11223344556677889900aabbccddee" +
					"ff00112233445566778899aabbccddee",
				PrevIndex: 1,
				Sequence:  0xfffffffd,
				Amount:    50000,
				Script:    []byte{0x51, 0x20, 0x01},
				Kind:      SpendKeyPath,
			},
			{
				PrevHash: "bb11223344556677889900aabbccddee" +
					"ff00112233445566778899aabbccddee",
				PrevIndex:      0,
				Amount:         7000,
				Script:         []byte{0x00, 0x14, 0x02},
				Kind:           SpendBRC20Reveal,
				Ticker:         "oadf",
				TransferAmount: 20,
			},
			{
				PrevHash: "cc11223344556677889900aabbccddee" +
					"ff00112233445566778899aabbccddee",
				Amount:   1200,
				Script:   []byte{0x76, 0xa9},
				Kind:     SpendNFTReveal,
				MimeType: "image/png",
				Payload:  []byte{0x89, 0x50, 0x4e, 0x47},
			},
		},
		Outputs: []*RequestOutput{
			{Value: 40000, Script: []byte{0x51, 0x20, 0xaa}},
			{Value: 16000, Script: []byte{0x00, 0x14, 0xbb}},
		},
		Keys: [][]byte{
			{0x01, 0x02, 0x03},
			{0x04, 0x05},
		},
	}

	blob, err := EncodeRequest(req)
	require.NoError(err)

	decoded, err := DecodeRequest(blob)
	require.NoError(err)
	require.Equal(req, decoded)
}

// TestResponseRoundTrip asserts a signed transaction survives the boundary
// encoding unchanged, with input and output orders preserved.
func TestResponseRoundTrip(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	signed := &SignedTransaction{
		Version:  2,
		LockTime: 810000,
		Inputs: []*SignedInput{
			{
				PrevHash: "aa11223344556677889900aabbccddee" +
					"ff00112233445566778899aabbccddee",
				PrevIndex:    3,
				PrevSequence: 0xffffffff,
				Script:       []byte{0x40, 0x01, 0x02},
				Sequence:     0xffffffff,
			},
			{
				PrevHash: "bb11223344556677889900aabbccddee" +
					"ff00112233445566778899aabbccddee",
				Script:   []byte{0x48, 0x30, 0x45},
				Sequence: 0xfffffffd,
			},
		},
		Outputs: []*SignedOutput{
			{Value: 1000, Script: []byte{0x51, 0x20, 0xcc}},
		},
	}

	blob, err := EncodeResponse(signed)
	require.NoError(err)

	decoded, err := DecodeResponse(blob)
	require.NoError(err)
	require.Equal(signed, decoded)
}

// TestEmptyListsRoundTrip asserts empty lists encode and decode cleanly
// rather than collapsing to nil-vs-empty mismatches at the boundary.
func TestEmptyListsRoundTrip(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	req := &SigningRequest{LockTime: 1}

	blob, err := EncodeRequest(req)
	require.NoError(err)

	decoded, err := DecodeRequest(blob)
	require.NoError(err)
	require.Equal(uint32(1), decoded.LockTime)
	require.Empty(decoded.UTXOs)
	require.Empty(decoded.Outputs)
	require.Empty(decoded.Keys)
}

// TestTruncatedList asserts a list cut short mid-item is rejected.
func TestTruncatedList(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	items, err := encodeList([][]byte{{0x01, 0x02, 0x03}})
	require.NoError(err)

	_, err = decodeList(items[:len(items)-1])
	require.ErrorIs(err, ErrTruncatedList)
}

// TestOverstatedListCount asserts a list announcing far more items than its
// payload could hold is rejected instead of driving a huge allocation.
func TestOverstatedListCount(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	var (
		buf     bytes.Buffer
		scratch [8]byte
	)
	require.NoError(tlv.WriteVarInt(&buf, 1<<62, &scratch))

	_, err := decodeList(buf.Bytes())
	require.ErrorIs(err, ErrTruncatedList)

	// The same hostile count arriving as the input list of an engine
	// response must surface as a decode error too.
	var (
		version  uint32 = 2
		lockTime uint32
	)
	inputs := buf.Bytes()
	outputs, err := encodeList(nil)
	require.NoError(err)

	blob, err := encodeStream(
		tlv.MakePrimitiveRecord(respTypeVersion, &version),
		tlv.MakePrimitiveRecord(respTypeLockTime, &lockTime),
		tlv.MakePrimitiveRecord(respTypeInputs, &inputs),
		tlv.MakePrimitiveRecord(respTypeOutputs, &outputs),
	)
	require.NoError(err)

	_, err = DecodeResponse(blob)
	require.ErrorIs(err, ErrTruncatedList)
}

// TestTrailingBytes asserts bytes after the last list item are rejected.
func TestTrailingBytes(t *testing.T) {
	t.Parallel()

	require := require.New(t)

	items, err := encodeList([][]byte{{0x01}})
	require.NoError(err)

	_, err = decodeList(append(items, 0x00))
	require.ErrorIs(err, ErrTruncatedList)
}
