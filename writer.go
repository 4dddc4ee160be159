package pickle

import (
	"bufio"
	"bytes"
	"io"
	"math"
)

// sink is the minimal capability a Writer needs from its output.
type sink interface {
	io.Writer
	io.ByteWriter
	Flush() error
}

// Writer encodes pickle primitives into a byte sink.
// It tracks the first error that occurs.
// After an error, all subsequent write operations become no-ops.
// A Writer is not safe for concurrent use.
type Writer struct {
	w     sink
	count int64 // total bytes written
	err   error // first error encountered. Subsequent writes become no-ops.
	depth int
}

// NewWriter creates a new Writer over w.
//
// In-memory sinks (*BytesWriter, *bytes.Buffer) are written directly.
// A caller-owned *bufio.Writer is written directly and never flushed by
// the Writer. Any other io.Writer is buffered; call Result or Flush to
// push the buffered bytes out.
func NewWriter(w io.Writer) (*Writer, error) {
	if w == nil {
		return nil, ErrNilIO
	}

	switch bw := w.(type) {
	// Reuse the underlying sink of an existing Writer.
	case *Writer:
		return &Writer{w: bw.w, depth: bw.depth + 1}, nil
	case *bufio.Writer:
		return &Writer{w: bw, depth: 1}, nil
	case *BytesWriter:
		return &Writer{w: bw}, nil
	case *bytes.Buffer:
		return &Writer{w: &bytesBufferWriterAdapter{bw}}, nil
	}

	return &Writer{w: bufio.NewWriter(w)}, nil
}

// Write implements the io.Writer interface.
func (w *Writer) Write(buf []byte) (int, error) {
	if buf == nil || w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(buf)
	w.count += int64(n)
	if err != nil {
		w.fault(err)
	}
	return n, w.err
}

// WriteByte implements the io.ByteWriter interface.
func (w *Writer) WriteByte(v byte) error {
	if w.err != nil {
		return w.err
	}
	if err := w.w.WriteByte(v); err != nil {
		w.fault(err)
		return w.err
	}
	w.count++
	return nil
}

func (w *Writer) Count() int64 { return w.count }
func (w *Writer) Err() error   { return w.err }

// SetError records err as the writer's error unless one is already set.
// This preserves the root cause of a failure chain instead of a later,
// less relevant error.
func (w *Writer) SetError(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

// Fail records an encode failure of the given kind.
func (w *Writer) Fail(kind error, value uint64) {
	w.SetError(&EncodeError{Kind: kind, Value: value})
}

// fault records an error reported by the underlying sink.
func (w *Writer) fault(err error) {
	w.SetError(writeFault(err))
}

// Result flushes the buffer and returns the final count and error state.
func (w *Writer) Result() (int64, error) {
	w.Flush()
	return w.count, w.err
}

// Flush writes any buffered data to the underlying io.Writer.
func (w *Writer) Flush() error {
	// Only the outermost writer is responsible for the final flush.
	if w.depth > 0 || w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		w.fault(err)
	}
	return w.err
}

// WriteBytes writes raw bytes with no length prefix.
func (w *Writer) WriteBytes(buf []byte) {
	if len(buf) == 0 || w.err != nil {
		return
	}
	_, _ = w.Write(buf)
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int64) {
	if w.err != nil || n <= 0 {
		return
	}
	if n <= BUFFER_SIZE {
		w.Write(empty[:n])
	} else {
		_, err := io.CopyN(w, zeros, n)
		w.SetError(err)
	}
}

// --- Primitive Write Operations ---

func (w *Writer) WriteUint8(v uint8) {
	_ = w.WriteByte(v)
}

// WriteBool writes 1 for true and 0 for false.
func (w *Writer) WriteBool(v bool) {
	if v {
		_ = w.WriteByte(1)
	} else {
		_ = w.WriteByte(0)
	}
}

func (w *Writer) WriteUint32(v uint32) {
	if w.err != nil {
		return
	}
	var buf [4]byte
	Order.PutUint32(buf[:], v)
	_, _ = w.Write(buf[:])
}

// WriteSize writes a size value in its 32-bit wire form.
// Values above math.MaxUint32 fail with ErrOutsideU32Range and write nothing.
func (w *Writer) WriteSize(v uint64) {
	if w.err != nil {
		return
	}
	if v > math.MaxUint32 {
		w.Fail(ErrOutsideU32Range, v)
		return
	}
	w.WriteUint32(uint32(v))
}

// WriteLength writes a sequence length prefix.
// Lengths above MaxArrayLength fail with ErrArrayTooBig and write nothing.
func (w *Writer) WriteLength(n int) {
	if w.err != nil {
		return
	}
	if n > MaxArrayLength {
		w.Fail(ErrArrayTooBig, uint64(n))
		return
	}
	w.WriteSize(uint64(n))
}

// WriteVariant writes a union discriminant.
func (w *Writer) WriteVariant(index uint8) {
	_ = w.WriteByte(index)
}
