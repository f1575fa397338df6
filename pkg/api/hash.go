package api

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash returns a deterministic BLAKE3 digest of the frame content.
// It covers Topic, Formats, RowLength, and every row in order, so two
// frames hash equal exactly when they carry the same payload.
func (f Frame) Hash() string {
	h := blake3.New()

	h.Write([]byte(f.Topic))
	h.Write([]byte{0})

	for _, fs := range f.Formats {
		h.Write([]byte{byte(fs)})
	}
	h.Write([]byte{0})

	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], f.RowLength)
	h.Write(u16[:])

	var u64 [8]byte
	for _, row := range f.Rows {
		h.Write([]byte(row.Text))
		h.Write([]byte{0})
		for _, v := range row.Ints {
			binary.LittleEndian.PutUint64(u64[:], uint64(v))
			h.Write(u64[:])
		}
		h.Write([]byte{0})
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}
