package pickle

import "io"

// Value adapts any pickle-encodable type to the Codec interface, for code
// that moves values around as encoding.BinaryMarshaler, io.WriterTo and
// friends.
//
//	var v pickle.Value[Account]
//	if err := v.UnmarshalBinary(data); err != nil { ... }
type Value[T any] struct {
	V T
}

var _ Codec = (*Value[struct{}])(nil)

// Size returns the encoded length of the value, or -1 if it cannot be encoded.
func (c *Value[T]) Size() int {
	n, err := Size(c.V)
	if err != nil {
		return -1
	}
	return n
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (c *Value[T]) MarshalBinary() ([]byte, error) {
	return MarshalBinaryGeneric(c)
}

// MarshalTo encodes the value into p, which must be large enough to hold it.
func (c *Value[T]) MarshalTo(p []byte) (int, error) {
	return MarshalToGeneric(c, p)
}

// WriteTo implements io.WriterTo.
func (c *Value[T]) WriteTo(w io.Writer) (int64, error) {
	n, err := Encode(w, c.V)
	return int64(n), err
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
// Bytes following the value are ignored.
func (c *Value[T]) UnmarshalBinary(data []byte) error {
	v, err := DecodeFromBytes[T](data)
	if err != nil {
		return err
	}
	c.V = v
	return nil
}

// ReadFrom implements io.ReaderFrom. It reads exactly one value.
func (c *Value[T]) ReadFrom(r io.Reader) (int64, error) {
	pr, err := NewReader(r)
	if err != nil {
		return 0, err
	}
	v, err := Decode[T](pr)
	if err != nil {
		return pr.Count(), err
	}
	c.V = v
	return pr.Count(), nil
}
