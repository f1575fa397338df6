package codec

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mithrel/serialbus/pkg/api"
)

// Encode serializes one publish event into frame bytes. Every row must be
// homogeneous in the type its specifier implies, and all numeric rows are
// assumed to share rows[0]'s element count; the encoder does not re-check
// per-row lengths. A text specifier emits its own row's text and must be
// the final specifier because text consumes the frame remainder on decode.
func Encode(topic string, rows []api.Row, formats []api.Format) ([]byte, error) {
	if topic == "" {
		return nil, fmt.Errorf("%w: empty topic", ErrMalformedFrame)
	}
	if strings.IndexByte(topic, 0) >= 0 {
		return nil, fmt.Errorf("%w: topic contains NUL", ErrMalformedFrame)
	}
	dim := len(formats)
	if dim == 0 || dim > 255 {
		return nil, fmt.Errorf("%w: dim %d out of range", ErrMalformedFrame, dim)
	}
	if len(rows) != dim {
		return nil, fmt.Errorf("%w: %d rows for %d formats", ErrMalformedFrame, len(rows), dim)
	}
	for i, f := range formats {
		if f == api.Float {
			return nil, fmt.Errorf("%w: float", ErrUnsupportedFormat)
		}
		if !f.Valid() {
			return nil, fmt.Errorf("%w: unknown specifier %d", ErrMalformedFrame, uint8(f))
		}
		if f.Text() && i != dim-1 {
			return nil, fmt.Errorf("%w: text row must be last", ErrMalformedFrame)
		}
	}

	// Row length counts characters for text payloads and elements otherwise.
	var rowLen int
	if formats[0].Text() {
		rowLen = utf8.RuneCountInString(rows[0].Text)
	} else {
		rowLen = len(rows[0].Ints)
	}
	if rowLen > 0xFFFF {
		return nil, fmt.Errorf("%w: row length %d exceeds uint16", ErrMalformedFrame, rowLen)
	}

	msg := make([]byte, 0, len(topic)+4+(dim+1)/2+payloadSize(rows, formats))
	msg = append(msg, topic...)
	msg = append(msg, 0)
	msg = append(msg, byte(dim))
	msg = binary.LittleEndian.AppendUint16(msg, uint16(rowLen))

	// Specifier codes, two per byte: even index in the low nibble, odd in
	// the high nibble.
	for i, f := range formats {
		if i&1 == 0 {
			msg = append(msg, byte(f)&0x0F)
		} else {
			msg[len(msg)-1] |= (byte(f) & 0x0F) << 4
		}
	}

	// Payload rows in specifier order. Negative values land as their
	// two's-complement bit pattern, which the truncating uint conversions
	// produce directly.
	for i, f := range formats {
		if f.Text() {
			msg = append(msg, rows[i].Text...)
			continue
		}
		for _, v := range rows[i].Ints {
			switch f.Width() {
			case 1:
				msg = append(msg, uint8(v))
			case 2:
				msg = binary.LittleEndian.AppendUint16(msg, uint16(v))
			case 4:
				msg = binary.LittleEndian.AppendUint32(msg, uint32(v))
			}
		}
	}
	return msg, nil
}

func payloadSize(rows []api.Row, formats []api.Format) int {
	n := 0
	for i, f := range formats {
		if f.Text() {
			n += len(rows[i].Text)
			continue
		}
		n += len(rows[i].Ints) * f.Width()
	}
	return n
}
