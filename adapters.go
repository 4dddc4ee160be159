package pickle

import (
	"bytes"
	"io"
)

type (
	bytesReaderAdapter       struct{ *bytes.Reader }
	bytesBufferReaderAdapter struct{ *bytes.Buffer }
	bytesBufferWriterAdapter struct{ *bytes.Buffer }

	// streamReaderAdapter reads from a plain io.Reader without buffering,
	// so that nothing past the decoded value is taken from the stream.
	streamReaderAdapter struct {
		r       io.Reader
		scratch [1]byte
	}

	// countingSink discards everything and only counts, for sizing values.
	countingSink struct{}
)

func (r *bytesReaderAdapter) Remaining() int       { return r.Len() }
func (r *bytesBufferReaderAdapter) Remaining() int { return r.Len() }
func (w *bytesBufferWriterAdapter) Flush() error   { return nil }

func (s *streamReaderAdapter) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// ReadByte reads exactly one byte from the stream.
func (s *streamReaderAdapter) ReadByte() (byte, error) {
	if _, err := io.ReadFull(s.r, s.scratch[:]); err != nil {
		return 0, err
	}
	return s.scratch[0], nil
}

func (countingSink) Write(p []byte) (int, error) { return len(p), nil }
func (countingSink) WriteByte(byte) error        { return nil }
func (countingSink) Flush() error                { return nil }
