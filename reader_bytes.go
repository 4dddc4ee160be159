package pickle

import "io"

// BytesReader is a byte source over an in-memory pickle.
type BytesReader struct {
	B []byte // source slice
	N int    // current read position
}

// NewBytesReader creates a new BytesReader.
func NewBytesReader(b []byte) *BytesReader {
	return &BytesReader{B: b}
}

// Read implements the [io.Reader] interface.
func (r *BytesReader) Read(p []byte) (int, error) {
	if r.N >= len(r.B) {
		return 0, io.EOF
	}
	n := copy(p, r.B[r.N:])
	r.N += n
	return n, nil
}

// ReadByte implements the [io.ByteReader] interface.
func (r *BytesReader) ReadByte() (byte, error) {
	if r.N >= len(r.B) {
		return 0, io.EOF
	}
	b := r.B[r.N]
	r.N++
	return b, nil
}

// Reset rewinds the reader to the start of the slice, so the same pickle
// can be decoded again without a new allocation.
func (r *BytesReader) Reset() { r.N = 0 }

// Remaining returns the number of bytes available for reading.
func (r *BytesReader) Remaining() int {
	length := len(r.B) - r.N
	if length <= 0 {
		return 0
	}
	return length
}
