package link

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Stream framing: a uvarint payload length, the payload, then the first
// digestSize bytes of the payload's BLAKE3 hash. A zero-length payload is
// a keepalive and is never surfaced to the bus.
const (
	digestSize   = 4
	maxFrameSize = 1 << 20
)

// ErrBadDigest marks a frame whose trailer did not match its payload.
var ErrBadDigest = fmt.Errorf("frame digest mismatch")

func frameDigest(payload []byte) [digestSize]byte {
	sum := blake3.Sum256(payload)
	var d [digestSize]byte
	copy(d[:], sum[:digestSize])
	return d
}

// writeFrame writes one length-prefixed, digest-trailed frame to w.
func writeFrame(w io.Writer, payload []byte) error {
	var lenbuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenbuf[:], uint64(len(payload)))
	if _, err := w.Write(lenbuf[:n]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	d := frameDigest(payload)
	_, err := w.Write(d[:])
	return err
}

// readFrame reads a single frame from br, verifying its digest trailer.
// Digest failures return ErrBadDigest with the stream still aligned, so the
// caller can drop the frame and keep reading.
func readFrame(br *bufio.Reader) ([]byte, error) {
	ln, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, err
	}
	if ln > maxFrameSize {
		return nil, fmt.Errorf("frame too large: %d bytes", ln)
	}
	payload := make([]byte, ln)
	if _, err := io.ReadFull(br, payload); err != nil {
		return nil, err
	}
	var trailer [digestSize]byte
	if _, err := io.ReadFull(br, trailer[:]); err != nil {
		return nil, err
	}
	want := frameDigest(payload)
	if !bytes.Equal(trailer[:], want[:]) {
		return nil, ErrBadDigest
	}
	return payload, nil
}
