package hash

import (
	"encoding/binary"
	"io"
)

// WriterToWithDomain represents a type writing itself, and knowing its domain.
//
// Providing a domain string lets us distinguish the output of different types
// implementing this same interface.
type WriterToWithDomain interface {
	io.WriterTo

	// Domain returns a context string, which should be unique for each implementor
	Domain() string
}

// writeWithDomain writes out `len(domain) || domain || len(data) || data`, so that two
// consecutive objects can never be confused with a different split of the same bytes.
func writeWithDomain(w io.Writer, object WriterToWithDomain) error {
	domain := []byte(object.Domain())
	if err := binary.Write(w, binary.BigEndian, uint32(len(domain))); err != nil {
		return err
	}
	if _, err := w.Write(domain); err != nil {
		return err
	}
	// buffer the object so its length can be prefixed
	var buf lengthBuffer
	if _, err := object.WriteTo(&buf); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint64(len(buf))); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}

type lengthBuffer []byte

func (b *lengthBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

// BytesWithDomain is a useful wrapper to annotate some chunk of data with a domain.
type BytesWithDomain struct {
	TheDomain string
	Bytes     []byte
}

// WriteTo implements io.WriterTo.
func (b BytesWithDomain) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Bytes)
	return int64(n), err
}

// Domain implements WriterToWithDomain.
func (b BytesWithDomain) Domain() string {
	return b.TheDomain
}
