package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mithrel/serialbus/internal/codec"
	"github.com/mithrel/serialbus/pkg/api"
)

func TestEncodeHeaderLayout(t *testing.T) {
	msg, err := codec.Encode("abc", []api.Row{api.IntRow(7)}, []api.Format{api.U8})
	require.NoError(t, err)

	// topic + NUL terminator
	require.Equal(t, []byte{'a', 'b', 'c', 0}, msg[:4])
	// dim
	require.Equal(t, byte(1), msg[4])
	// row length, little endian
	require.Equal(t, []byte{1, 0}, msg[5:7])
	// one specifier byte, U8 in the low nibble
	require.Equal(t, byte(0x02), msg[7])
	// payload
	require.Equal(t, []byte{7}, msg[8:])
}

func TestNibblePacking(t *testing.T) {
	rows := []api.Row{api.IntRow(1), api.IntRow(2), api.IntRow(3)}
	formats := []api.Format{api.U8, api.S16, api.U32}
	msg, err := codec.Encode("t", rows, formats)
	require.NoError(t, err)

	// After "t\x00", dim, and the two row-length bytes come ceil(3/2)=2
	// specifier bytes: U8(2) low nibble + S16(5) high nibble, then U32(6).
	spec := msg[5:7]
	require.Equal(t, byte(0x52), spec[0])
	require.Equal(t, byte(0x06), spec[1])

	f, err := codec.Decode(msg)
	require.NoError(t, err)
	require.Equal(t, formats, f.Formats)
}

func TestRoundTripAllFormats(t *testing.T) {
	cases := []struct {
		format api.Format
		values []int64
	}{
		{api.U8, []int64{0, 1, 127, 128, 255}},
		{api.S8, []int64{-128, -1, 0, 1, 127}},
		{api.U16, []int64{0, 1, 32767, 32768, 65535}},
		{api.S16, []int64{-32768, -1, 0, 1, 32767}},
		{api.U32, []int64{0, 1, 2147483647, 2147483648, 4294967295}},
		{api.S32, []int64{-2147483647, -1, 0, 1, 2147483647}},
	}
	for _, tc := range cases {
		t.Run(tc.format.String(), func(t *testing.T) {
			for _, v := range tc.values {
				msg, err := codec.Encode("rt", []api.Row{api.IntRow(v)}, []api.Format{tc.format})
				require.NoError(t, err)
				f, err := codec.Decode(msg)
				require.NoError(t, err)
				require.Equal(t, "rt", f.Topic)
				require.EqualValues(t, 1, f.RowLength)
				require.Equal(t, []api.Format{tc.format}, f.Formats)
				require.Equal(t, []int64{v}, f.Rows[0].Ints)
			}
		})
	}
}

func TestS32BoundaryStaysUnsigned(t *testing.T) {
	// The decode cutoff is strictly greater-than 2^31, so the exact
	// boundary bit pattern comes back as +2147483648 rather than
	// -2147483648. Kept for wire compatibility with deployed peers.
	msg, err := codec.Encode("edge", []api.Row{api.IntRow(-2147483648)}, []api.Format{api.S32})
	require.NoError(t, err)
	f, err := codec.Decode(msg)
	require.NoError(t, err)
	require.Equal(t, []int64{2147483648}, f.Rows[0].Ints)
}

func TestRoundTripText(t *testing.T) {
	msg, err := codec.Encode("foo", []api.Row{api.TextRow("a test message")}, []api.Format{api.String})
	require.NoError(t, err)
	f, err := codec.Decode(msg)
	require.NoError(t, err)
	require.Equal(t, "foo", f.Topic)
	require.Equal(t, "a test message", f.Text())
	require.EqualValues(t, len("a test message"), f.RowLength)
}

func TestRoundTripMultiRow(t *testing.T) {
	rows := []api.Row{
		api.IntRow(1, 65535, 32768),
		api.IntRow(-1, 0, 1),
	}
	formats := []api.Format{api.U16, api.S16}
	msg, err := codec.Encode("bar", rows, formats)
	require.NoError(t, err)

	f, err := codec.Decode(msg)
	require.NoError(t, err)
	require.EqualValues(t, 3, f.RowLength)
	require.Equal(t, []int64{1, 65535, 32768}, f.Rows[0].Ints)
	require.Equal(t, []int64{-1, 0, 1}, f.Rows[1].Ints)
}

func TestNumericRowThenText(t *testing.T) {
	rows := []api.Row{api.IntRow(9, 8), api.TextRow("tail")}
	formats := []api.Format{api.U8, api.String}
	msg, err := codec.Encode("mix", rows, formats)
	require.NoError(t, err)

	// The text comes from the text specifier's row, not row 0, and sits
	// after the numeric payload as the frame remainder.
	require.Equal(t, []byte{9, 8, 't', 'a', 'i', 'l'}, msg[len(msg)-6:])

	f, err := codec.Decode(msg)
	require.NoError(t, err)
	require.Equal(t, []int64{9, 8}, f.Rows[0].Ints)
	require.Equal(t, "tail", f.Rows[1].Text)
}

func TestEncodeRejects(t *testing.T) {
	row := []api.Row{api.IntRow(1)}

	_, err := codec.Encode("", row, []api.Format{api.U8})
	require.ErrorIs(t, err, codec.ErrMalformedFrame)

	_, err = codec.Encode("bad\x00topic", row, []api.Format{api.U8})
	require.ErrorIs(t, err, codec.ErrMalformedFrame)

	_, err = codec.Encode("f", row, []api.Format{api.Float})
	require.ErrorIs(t, err, codec.ErrUnsupportedFormat)

	_, err = codec.Encode("f", row, nil)
	require.ErrorIs(t, err, codec.ErrMalformedFrame)

	// text specifier before the end of the frame
	_, err = codec.Encode("f",
		[]api.Row{api.TextRow("x"), api.IntRow(1)},
		[]api.Format{api.String, api.U8})
	require.ErrorIs(t, err, codec.ErrMalformedFrame)
}

func TestDecodeRejects(t *testing.T) {
	// no topic terminator anywhere
	_, err := codec.Decode([]byte("no-terminator-here"))
	require.ErrorIs(t, err, codec.ErrMalformedFrame)

	// terminator but nothing after it
	_, err = codec.Decode([]byte{'t', 0})
	require.ErrorIs(t, err, codec.ErrMalformedFrame)

	// zero dim
	_, err = codec.Decode([]byte{'t', 0, 0, 1, 0, 0x02})
	require.ErrorIs(t, err, codec.ErrMalformedFrame)

	// float specifier
	_, err = codec.Decode([]byte{'t', 0, 1, 1, 0, 0x08, 0})
	require.ErrorIs(t, err, codec.ErrUnsupportedFormat)

	// unknown specifier code
	_, err = codec.Decode([]byte{'t', 0, 1, 1, 0, 0x0C, 0})
	require.ErrorIs(t, err, codec.ErrMalformedFrame)

	// truncated payload: row length says 4 U16 elements, only 2 bytes left
	_, err = codec.Decode([]byte{'t', 0, 1, 4, 0, 0x04, 1, 2})
	require.ErrorIs(t, err, codec.ErrMalformedFrame)

	// text specifier in a non-terminal position
	msg := []byte{'t', 0, 2, 1, 0, 0x21, 'x'}
	_, err = codec.Decode(msg)
	require.ErrorIs(t, err, codec.ErrMalformedFrame)
}
