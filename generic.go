package pickle

import (
	"bytes"
	"fmt"
	"io"
)

// MarshalBinaryGeneric provides an encoding.BinaryMarshaler implementation
// for self-sizing types. Types that report a negative size are encoded into
// a growable buffer instead.
func MarshalBinaryGeneric[T interface {
	Size() int
	io.WriterTo
}](v T) ([]byte, error) {
	expectedSize := v.Size()
	if expectedSize < 0 {
		var buf bytes.Buffer
		if _, err := v.WriteTo(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	w := NewBytesWriter(make([]byte, expectedSize))
	n, err := v.WriteTo(w)
	if err != nil {
		return nil, err
	}
	if n < int64(expectedSize) {
		return nil, fmt.Errorf("%w: expected %d bytes, but wrote %d", io.ErrShortWrite, expectedSize, n)
	}
	return w.Bytes(), nil
}

// MarshalToGeneric provides a MarshalTo implementation for self-sizing types.
// It fails without writing when p is shorter than the encoding.
func MarshalToGeneric[T interface {
	Size() int
	io.WriterTo
}](v T, p []byte) (int, error) {
	size := v.Size()
	if size >= 0 && len(p) < size {
		return 0, &EncodeError{Kind: ErrWriteFailed, Value: uint64(size), Err: io.ErrShortBuffer}
	}
	w := NewBytesWriter(p)
	n, err := v.WriteTo(w)
	if err != nil {
		return int(n), err
	}
	if size >= 0 && n < int64(size) {
		return int(n), io.ErrShortWrite
	}
	return int(n), nil
}
