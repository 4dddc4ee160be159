package pickle

import (
	"bytes"
	"io"
)

// source is the minimal capability a Reader needs from its input.
type source interface {
	io.Reader
	io.ByteReader
}

// sizedSource is a source that knows how many unread bytes it holds.
// Fixed arrays and sequences use it to fail before reading or allocating.
type sizedSource interface {
	source
	Remaining() int
}

// Reader decodes pickle primitives from a byte source.
// It tracks the first error. Subsequent reads become no-ops.
//
// A Reader never reads ahead: it consumes exactly the bytes of the values
// decoded through it, so several pickles can be decoded back to back from
// one stream. A Reader is not safe for concurrent use.
type Reader struct {
	r     source
	count int64 // total bytes read
	err   error // first error encountered.
}

// NewReader creates a Reader over r.
//
// In-memory sources (*BytesReader, *bytes.Reader, *bytes.Buffer) are used
// directly and report their remaining length. Any io.ByteReader, including
// *bufio.Reader, is used as is. Other readers are read unbuffered.
func NewReader(r io.Reader) (*Reader, error) {
	if r == nil {
		return nil, ErrNilIO
	}

	switch src := r.(type) {
	// Share the cursor of an existing Reader, but keep a separate count.
	case *Reader:
		return &Reader{r: src.r}, nil
	case *BytesReader:
		return &Reader{r: src}, nil
	case *bytes.Reader:
		return &Reader{r: &bytesReaderAdapter{src}}, nil
	case *bytes.Buffer:
		return &Reader{r: &bytesBufferReaderAdapter{src}}, nil
	// *bufio.Reader and other byte readers are consumed as they are.
	case source:
		return &Reader{r: src}, nil
	}

	return &Reader{r: &streamReaderAdapter{r: r}}, nil
}

// NewBytesSource is a shorthand for decoding from an in-memory pickle.
func NewBytesSource(data []byte) *Reader {
	return &Reader{r: NewBytesReader(data)}
}

// Read implements the io.Reader interface.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.r.Read(p)
	r.count += int64(n)
	if err != nil && err != io.EOF {
		r.fault(err)
	}
	return n, err
}

// ReadByte implements the io.ByteReader interface.
func (r *Reader) ReadByte() (byte, error) {
	if r.err != nil {
		return 0, r.err
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.fault(err)
		return 0, r.err
	}
	r.count++
	return b, nil
}

func (r *Reader) Count() int64 { return r.count }
func (r *Reader) Err() error   { return r.err }

// Result returns the total bytes read and the final error state.
func (r *Reader) Result() (int64, error) {
	return r.count, r.err
}

// Remaining reports how many unread bytes the source holds, when it knows.
func (r *Reader) Remaining() (int, bool) {
	if s, ok := r.r.(sizedSource); ok {
		return s.Remaining(), true
	}
	return 0, false
}

// SetError records err as the reader's error unless one is already set.
// Hand-written Unmarshalers use it to abort a decode with their own error.
func (r *Reader) SetError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// Fail records a decode failure of the given kind.
func (r *Reader) Fail(kind error, value uint64) {
	r.SetError(&DecodeError{Kind: kind, Value: value})
}

// fault records an error reported by the underlying source.
func (r *Reader) fault(err error) {
	r.SetError(readFault(err))
}

// ensure fails with ErrInsufficientData when the source is known to hold
// fewer than n bytes.
func (r *Reader) ensure(n int) bool {
	if r.err != nil {
		return false
	}
	if remaining, ok := r.Remaining(); ok && remaining < n {
		r.Fail(ErrInsufficientData, 0)
		return false
	}
	return true
}

// ReadArrayTo fills dest with exactly len(dest) raw bytes.
// Nothing is consumed when the source is known to be too short.
func (r *Reader) ReadArrayTo(dest []byte) {
	if len(dest) == 0 || !r.ensure(len(dest)) {
		return
	}
	n, err := io.ReadFull(r.r, dest)
	r.count += int64(n)
	if err != nil {
		r.fault(err)
	}
}

// ReadBytes reads n raw bytes into a new slice.
func (r *Reader) ReadBytes(n int) []byte {
	if n <= 0 || !r.ensure(n) {
		return nil
	}
	buf := make([]byte, n)
	r.ReadArrayTo(buf)
	if r.err != nil {
		Zero(buf)
		return nil
	}
	return buf
}

// --- Primitive Read Operations ---

func (r *Reader) ReadUint8(dest *uint8) {
	b, err := r.ReadByte()
	if err == nil {
		*dest = b
	}
}

// ReadBool decodes any nonzero byte as true.
func (r *Reader) ReadBool(dest *bool) {
	b, err := r.ReadByte()
	if err == nil {
		*dest = b != 0
	}
}

func (r *Reader) ReadUint32(dest *uint32) {
	var buf [4]byte
	r.ReadArrayTo(buf[:])
	if r.err == nil {
		*dest = Order.Uint32(buf[:])
	}
}

// readSize reads the 32-bit wire form of a size value.
func (r *Reader) readSize() (uint64, bool) {
	var v uint32
	r.ReadUint32(&v)
	return uint64(v), r.err == nil
}

// ReadSize decodes a size value into a Go int.
// It fails with ErrOutsideUsizeRange when the value does not fit.
func (r *Reader) ReadSize(dest *int) {
	v, ok := r.readSize()
	if !ok {
		return
	}
	if !fits[int](v) {
		r.Fail(ErrOutsideUsizeRange, v)
		return
	}
	*dest = int(v)
}

// ReadUsize decodes a size value into the host-width unsigned type.
func (r *Reader) ReadUsize(dest *uint) {
	v, ok := r.readSize()
	if !ok {
		return
	}
	if !fits[uint](v) {
		r.Fail(ErrOutsideUsizeRange, v)
		return
	}
	*dest = uint(v)
}

// ReadLength decodes a sequence length prefix and enforces MaxArrayLength
// before any element is read.
// The bound is checked on the raw 32-bit value, so an oversized length is
// ErrArrayTooBig on every host.
func (r *Reader) ReadLength() int {
	n, ok := r.readSize()
	if !ok {
		return 0
	}
	if n > MaxArrayLength {
		r.Fail(ErrArrayTooBig, n)
		return 0
	}
	return int(n)
}

// ReadVariant decodes a union discriminant for a union of count variants.
// It fails with ErrUnknownEnumVariant when the byte is not below count.
func (r *Reader) ReadVariant(count int) int {
	b, err := r.ReadByte()
	if err != nil {
		return 0
	}
	if int(b) >= count {
		r.Fail(ErrUnknownEnumVariant, uint64(b))
		return 0
	}
	return int(b)
}
