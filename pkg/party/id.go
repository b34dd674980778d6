package party

import (
	"encoding/binary"
	"io"
	"strconv"
)

// ByteSize is the number of bytes required to store an ID.
const ByteSize = 2

// MAX is the largest value an ID can take, and therefore bounds the size of a ring.
const MAX = (1 << (ByteSize * 8)) - 1

// ID is the position of a party in the ring.
//
// IDs of a ring of n parties are exactly 0, 1, ..., n-1, so that an ID doubles as the
// index of the party's values in any ring-ordered slice.
type ID uint16

// Bytes returns a big-endian []byte of length party.ByteSize.
func (id ID) Bytes() []byte {
	b := make([]byte, ByteSize)
	binary.BigEndian.PutUint16(b, uint16(id))
	return b
}

// String returns the base 10 representation of the ID.
//
// This is also the representation used when a ring is written into a master key.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// WriteTo implements io.WriterTo interface.
func (id ID) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(id.Bytes())
	return int64(n), err
}
