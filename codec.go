package pickle

import (
	"encoding"
	"io"
)

// Marshaler is implemented by types that write their own pickle encoding.
//
// MarshalPickle appends the encoding to w and returns the number of bytes it
// wrote. Types holding key material or other external state implement it
// instead of relying on the derived layout of their fields.
type Marshaler interface {
	MarshalPickle(w *Writer) (int, error)
}

// Unmarshaler is implemented by types that read their own pickle encoding.
//
// UnmarshalPickle consumes exactly the bytes of one value from r. Failures
// should be reported through r (Fail, SetError) or returned; either way the
// decode stops at the first one.
type Unmarshaler interface {
	UnmarshalPickle(r *Reader) error
}

// Sizer is an interface for types that can report their binary size.
// This is useful for pre-allocating buffers before encoding.
type Sizer interface {
	// Size returns the size of the type in bytes when binary encoded,
	// or -1 if the value cannot be encoded.
	Size() int
}

// Codec aggregates the standard binary serialization interfaces.
// A type implementing Codec is a complete, self-sizing binary encoder/decoder.
type Codec interface {
	Sizer
	// encoding.BinaryMarshaler allocates and returns a new byte slice.
	encoding.BinaryMarshaler
	// io.WriterTo provides stream-based writing.
	io.WriterTo
	// MarshalTo encodes into a pre-allocated buffer, failing if it is too small.
	MarshalTo(buf []byte) (int, error)

	encoding.BinaryUnmarshaler
	io.ReaderFrom
}
