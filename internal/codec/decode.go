package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mithrel/serialbus/pkg/api"
)

// Decode parses one frame back into its topic and typed rows. The walk is
// cursor-based over the input slice; nothing is copied until a row is
// materialized. Text specifiers consume the entire remainder of the frame,
// so they are only legal in the final position.
func Decode(data []byte) (api.Frame, error) {
	var f api.Frame

	zero := bytes.IndexByte(data, 0)
	if zero < 0 {
		return f, fmt.Errorf("%w: missing topic terminator", ErrMalformedFrame)
	}
	f.Topic = string(data[:zero])

	cur := zero + 1
	if len(data)-cur < 3 {
		return f, fmt.Errorf("%w: truncated header", ErrMalformedFrame)
	}
	dim := int(data[cur])
	if dim == 0 {
		return f, fmt.Errorf("%w: zero dim", ErrMalformedFrame)
	}
	f.RowLength = binary.LittleEndian.Uint16(data[cur+1 : cur+3])
	cur += 3

	specBytes := (dim + 1) / 2
	if len(data)-cur < specBytes {
		return f, fmt.Errorf("%w: truncated specifier block", ErrMalformedFrame)
	}
	f.Formats = make([]api.Format, 0, dim)
	for i := 0; i < dim; i++ {
		b := data[cur+i/2]
		code := api.Format(b & 0x0F)
		if i&1 == 1 {
			code = api.Format(b >> 4)
		}
		if code == api.Float {
			return f, fmt.Errorf("%w: float", ErrUnsupportedFormat)
		}
		if !code.Valid() {
			return f, fmt.Errorf("%w: unknown specifier %d", ErrMalformedFrame, uint8(code))
		}
		f.Formats = append(f.Formats, code)
	}
	cur += specBytes

	f.Rows = make([]api.Row, 0, dim)
	for i, spec := range f.Formats {
		if spec.Text() {
			// Text swallows everything left, so a frame cannot continue
			// past it; reject rather than mis-parse later rows.
			if i != dim-1 {
				return f, fmt.Errorf("%w: text row before end of frame", ErrMalformedFrame)
			}
			f.Rows = append(f.Rows, api.TextRow(string(data[cur:])))
			cur = len(data)
			continue
		}

		n := int(f.RowLength) * spec.Width()
		if len(data)-cur < n {
			return f, fmt.Errorf("%w: truncated %s row (want %d bytes, have %d)",
				ErrMalformedFrame, spec, n, len(data)-cur)
		}
		row := make([]int64, 0, f.RowLength)
		for off := cur; off < cur+n; off += spec.Width() {
			var v int64
			switch spec.Width() {
			case 1:
				v = int64(data[off])
			case 2:
				v = int64(binary.LittleEndian.Uint16(data[off : off+2]))
			case 4:
				v = int64(binary.LittleEndian.Uint32(data[off : off+4]))
			}
			row = append(row, signRebase(spec, v))
		}
		f.Rows = append(f.Rows, api.Row{Ints: row})
		cur += n
	}
	return f, nil
}

// signRebase folds an unsigned wire value back into the signed range for
// the S* specifiers. The S32 cutoff is strictly greater-than 2^31, mirroring
// the deployed encoder; the exact boundary value 2147483648 therefore decodes
// unsigned. Changing it would alter wire behavior for that single value.
func signRebase(spec api.Format, v int64) int64 {
	switch spec {
	case api.S8:
		if v > 127 {
			return v - 256
		}
	case api.S16:
		if v > 32767 {
			return v - 65536
		}
	case api.S32:
		if v > 2147483648 {
			return v - 4294967296
		}
	}
	return v
}
