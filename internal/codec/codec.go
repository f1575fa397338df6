// Package codec implements the serialbus frame layout: a NUL-terminated
// topic, a dimension byte, a little-endian row length, nibble-packed format
// specifiers, then the payload rows. Encode and Decode are pure; links own
// all I/O.
package codec

import "errors"

var (
	// ErrUnsupportedFormat is returned when a frame requests the Float
	// specifier, which the wire layout reserves but does not carry.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrMalformedFrame is returned when frame bytes cannot be parsed:
	// missing topic terminator, truncated payload, unknown specifier code,
	// or a text row in a non-terminal position.
	ErrMalformedFrame = errors.New("malformed frame")
)
