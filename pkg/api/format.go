package api

import (
	"fmt"
	"strings"
)

// Format identifies the element type of one payload row on the wire.
// The numeric codes are part of the frame layout and must not change.
type Format uint8

const (
	None   Format = 0 // text payload, same wire behavior as String
	String Format = 1 // variable-length UTF-8 text
	U8     Format = 2
	S8     Format = 3
	U16    Format = 4
	S16    Format = 5
	U32    Format = 6
	S32    Format = 7
	Float  Format = 8 // reserved; the codec rejects it on both paths
)

var formatNames = map[Format]string{
	None:   "none",
	String: "string",
	U8:     "u8",
	S8:     "s8",
	U16:    "u16",
	S16:    "s16",
	U32:    "u32",
	S32:    "s32",
	Float:  "float",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// Valid reports whether f is a known wire code.
func (f Format) Valid() bool {
	_, ok := formatNames[f]
	return ok
}

// Width returns the encoded size of one element in bytes.
// Text formats have no fixed width and return 0.
func (f Format) Width() int {
	switch f {
	case U8, S8:
		return 1
	case U16, S16:
		return 2
	case U32, S32:
		return 4
	default:
		return 0
	}
}

// Text reports whether f carries a text payload instead of numeric rows.
func (f Format) Text() bool { return f == None || f == String }

// Signed reports whether decoded elements are re-based into the negative range.
func (f Format) Signed() bool { return f == S8 || f == S16 || f == S32 }

// ParseFormat maps a name like "u16" back to its Format. Used by the CLI.
func ParseFormat(s string) (Format, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for f, n := range formatNames {
		if n == want {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown format %q", s)
}
