// Package pickle implements the libolm/vodozemac pickle format: a positional,
// big-endian binary encoding used to persist cryptographic session state.
//
// The mapping from Go types to the wire is:
//
//	           Go | wire
//	--------------+--------------------------------------------------
//	         bool | 1 byte, 0 or 1 (any nonzero byte decodes as true)
//	  uint8, byte | 1 byte
//	       uint32 | 4 bytes big-endian
//	    uint, int | size value: 4 bytes big-endian, 32-bit range only
//	      [N]byte | N raw bytes
//	     *[N]byte | N raw bytes, decoded into a fresh heap array
//	          []T | 4-byte length (at most MaxArrayLength), then each element
//	     struct{} | each exported field in declaration order
//	    interface | 1 discriminant byte, then the variant (see RegisterUnion)
//	           *T | T
//
// Named types encode like their underlying type. There are no field tags,
// padding or versions on the wire: reordering fields or variants changes
// the format.
//
// Struct fields accept two tags:
//
//	`pickle:"-"`      the field is not part of the pickle
//	`pickle:"secret"` the field holds key material; only allowed on *[N]byte
//
// The secret marker never changes the wire bytes. Secret fields are decoded
// straight into their own heap array and wiped if the enclosing record fails
// to decode.
//
// Types that implement Marshaler or Unmarshaler take over their own encoding.
package pickle

import (
	"io"
	"reflect"
)

// Encode writes the pickle of v to w and returns the number of bytes written.
//
// When w is a *Writer the pickle is appended to it and nothing is flushed,
// which lets hand-written Marshalers delegate to derived encodings.
// Otherwise Encode flushes everything it wrote before returning.
func Encode[T any](w io.Writer, v T) (int, error) {
	if pw, ok := w.(*Writer); ok {
		start := pw.Count()
		err := encodeValue(pw, reflect.ValueOf(&v).Elem())
		return int(pw.Count() - start), err
	}

	pw, err := NewWriter(w)
	if err != nil {
		return 0, err
	}
	if err := encodeValue(pw, reflect.ValueOf(&v).Elem()); err != nil {
		return int(pw.Count()), err
	}
	n, err := pw.Result()
	return int(n), err
}

// EncodeToBytes returns the pickle of v in a new slice of exactly its length.
//
// The value is sized first and encoded straight into the result, so no
// intermediate buffer is left holding copies of key material.
func EncodeToBytes[T any](v T) ([]byte, error) {
	size, err := Size(v)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := Encode(NewBytesWriter(buf), v)
	if err != nil {
		Zero(buf)
		return nil, err
	}
	return buf[:n], nil
}

// Size returns the number of bytes Encode would write for v.
func Size[T any](v T) (int, error) {
	rv := topLevel(reflect.ValueOf(&v).Elem())
	p, err := planFor(typeOf(rv))
	if err != nil {
		return 0, err
	}
	if p.size >= 0 {
		return p.size, nil
	}
	w := &Writer{w: countingSink{}}
	p.encode(w, rv)
	return int(w.count), w.err
}

// Decode reads one pickled T from r.
//
// When r is a *Reader it is read from directly, so its count and error
// state carry over. Decode never reads past the end of the value.
func Decode[T any](r io.Reader) (T, error) {
	var v T
	pr, ok := r.(*Reader)
	if !ok {
		var err error
		if pr, err = NewReader(r); err != nil {
			return v, err
		}
	}
	if err := decodeValue(pr, reflect.ValueOf(&v).Elem()); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// DecodeFromBytes decodes one pickled T from the start of data.
// Bytes following the value are ignored.
func DecodeFromBytes[T any](data []byte) (T, error) {
	return Decode[T](NewBytesReader(data))
}

// DecodeInto decodes one pickled value from r into the value ptr points to.
// On failure the pointed-to value is reset to its zero value, including
// fields tagged `pickle:"-"`.
func DecodeInto(r io.Reader, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &TypeError{Type: reflect.TypeOf(ptr), Reason: "DecodeInto needs a non-nil pointer"}
	}
	pr, ok := r.(*Reader)
	if !ok {
		var err error
		if pr, err = NewReader(r); err != nil {
			return err
		}
	}
	return decodeValue(pr, rv.Elem())
}

func encodeValue(w *Writer, v reflect.Value) error {
	if w.err != nil {
		return w.err
	}
	v = topLevel(v)
	p, err := planFor(typeOf(v))
	if err != nil {
		w.SetError(err)
		return err
	}
	p.encode(w, v)
	return w.err
}

func decodeValue(r *Reader, v reflect.Value) error {
	if r.err != nil {
		return r.err
	}
	p, err := planFor(v.Type())
	if err != nil {
		r.SetError(err)
		return err
	}
	p.decode(r, v)
	return r.err
}

// topLevel lets Encode[any] and friends work on the dynamic value when the
// static type is an interface that is not a registered union.
func topLevel(v reflect.Value) reflect.Value {
	if v.Kind() != reflect.Interface {
		return v
	}
	if _, ok := unions.Load(v.Type()); ok {
		return v
	}
	if v.IsNil() {
		return reflect.Value{}
	}
	return addressable(v.Elem())
}

func typeOf(v reflect.Value) reflect.Type {
	if !v.IsValid() {
		return nil
	}
	return v.Type()
}
