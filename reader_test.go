package pickle

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// plainReader hides every interface but io.Reader.
type plainReader struct{ r io.Reader }

func (p *plainReader) Read(b []byte) (int, error) { return p.r.Read(b) }

// brokenReader returns some data, then err.
type brokenReader struct {
	data []byte
	err  error
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if len(b.data) == 0 {
		return 0, b.err
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

type ReaderTestSuite struct {
	suite.Suite
}

func (s *ReaderTestSuite) TestConstructors() {
	s.T().Run("NilReader", func(t *testing.T) {
		_, err := NewReader(nil)
		assert.ErrorIs(t, err, ErrNilIO)
	})

	s.T().Run("SharesCursorOfReader", func(t *testing.T) {
		outer := NewBytesSource([]byte{1, 2, 3})
		var b uint8
		outer.ReadUint8(&b)

		inner, err := NewReader(outer)
		require.NoError(t, err)
		inner.ReadUint8(&b)
		assert.Equal(t, uint8(2), b)
		assert.EqualValues(t, 1, inner.Count())
		assert.EqualValues(t, 1, outer.Count())
	})
}

func (s *ReaderTestSuite) TestSuccessfulReads() {
	data := []byte{
		0xAA,                   // uint8
		0x02,                   // bool
		0xDD, 0xEE, 0xFF, 0x00, // uint32
		0x00, 0x00, 0x01, 0x00, // size
		0x00, 0x00, 0x00, 0x03, // length
		0x01,             // variant
		0x11, 0x22, 0x33, // raw bytes
	}
	r, _ := NewReader(bytes.NewReader(data))

	var (
		v8   uint8
		flag bool
		v32  uint32
		size int
	)
	r.ReadUint8(&v8)
	r.ReadBool(&flag)
	r.ReadUint32(&v32)
	r.ReadSize(&size)
	length := r.ReadLength()
	variant := r.ReadVariant(2)
	read := r.ReadBytes(3)

	s.Require().NoError(r.Err())
	s.Assert().Equal(uint8(0xAA), v8)
	s.Assert().True(flag, "any nonzero byte is true")
	s.Assert().Equal(uint32(0xDDEEFF00), v32)
	s.Assert().Equal(256, size)
	s.Assert().Equal(3, length)
	s.Assert().Equal(1, variant)
	s.Assert().Equal([]byte{0x11, 0x22, 0x33}, read)
	s.Assert().EqualValues(len(data), r.Count())

	remaining, known := r.Remaining()
	s.Assert().True(known)
	s.Assert().Zero(remaining)
}

func (s *ReaderTestSuite) TestUsize() {
	r := NewBytesSource([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	var v uint
	r.ReadUsize(&v)
	s.Require().NoError(r.Err())
	s.Assert().EqualValues(uint64(0xFFFFFFFF), uint64(v))
}

func (s *ReaderTestSuite) TestErrorHandling() {
	s.T().Run("SizedSourceTooShort", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader([]byte{0x01, 0x02, 0x03}))
		var v32 uint32
		r.ReadUint32(&v32)

		assert.ErrorIs(t, r.Err(), ErrInsufficientData)
		assert.Zero(t, r.Count(), "a known short source is not consumed")
	})

	s.T().Run("StreamTooShort", func(t *testing.T) {
		r, _ := NewReader(&plainReader{bytes.NewReader([]byte{0x01, 0x02, 0x03})})
		var v32 uint32
		r.ReadUint32(&v32)

		var de *DecodeError
		require.ErrorAs(t, r.Err(), &de)
		assert.ErrorIs(t, de, ErrInsufficientData)
		assert.ErrorIs(t, de, io.ErrUnexpectedEOF)
		assert.EqualValues(t, 3, r.Count())
	})

	s.T().Run("EmptyStream", func(t *testing.T) {
		r, _ := NewReader(&plainReader{bytes.NewReader(nil)})
		var b bool
		r.ReadBool(&b)
		assert.ErrorIs(t, r.Err(), ErrInsufficientData)
		assert.ErrorIs(t, r.Err(), io.ErrUnexpectedEOF)
	})

	s.T().Run("SourceFaultIsWrapped", func(t *testing.T) {
		cause := errors.New("connection reset")
		r, _ := NewReader(&brokenReader{data: []byte{1, 2}, err: cause})
		var v32 uint32
		r.ReadUint32(&v32)
		assert.ErrorIs(t, r.Err(), ErrInsufficientData)
		assert.ErrorIs(t, r.Err(), cause)
	})

	s.T().Run("ReadAfterErrorIsNoOp", func(t *testing.T) {
		r := NewBytesSource([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
		var v8 uint8

		r.ReadVariant(1)
		firstErr := r.Err()
		require.Error(t, firstErr)

		r.ReadUint8(&v8)
		assert.Same(t, firstErr, r.Err(), "the latched error should not change")
		assert.Equal(t, uint8(0), v8, "destination should be unchanged after an error")
		assert.EqualValues(t, 1, r.Count())
	})
}

func (s *ReaderTestSuite) TestLengthBound() {
	s.T().Run("AtBound", func(t *testing.T) {
		r := NewBytesSource([]byte{0x00, 0x00, 0xFF, 0xFF})
		assert.Equal(t, MaxArrayLength, r.ReadLength())
		assert.NoError(t, r.Err())
	})

	s.T().Run("AboveBound", func(t *testing.T) {
		data := append([]byte{0x00, 0x01, 0x00, 0x00}, 1, 2, 3)
		r := NewBytesSource(data)
		assert.Zero(t, r.ReadLength())

		var de *DecodeError
		require.ErrorAs(t, r.Err(), &de)
		assert.ErrorIs(t, de, ErrArrayTooBig)
		assert.EqualValues(t, 65536, de.Value)
		assert.EqualValues(t, 4, r.Count(), "no element bytes may be consumed")
	})

	// Lengths beyond the signed 32-bit range are still too big, not
	// outside the size range, whatever the host word size.
	s.T().Run("AboveInt32", func(t *testing.T) {
		for _, raw := range [][]byte{{0x80, 0x00, 0x00, 0x00}, {0xFF, 0xFF, 0xFF, 0xFF}} {
			r := NewBytesSource(raw)
			assert.Zero(t, r.ReadLength())

			var de *DecodeError
			require.ErrorAs(t, r.Err(), &de)
			assert.ErrorIs(t, de, ErrArrayTooBig)
			assert.NotErrorIs(t, de, ErrOutsideUsizeRange)
			assert.EqualValues(t, Order.Uint32(raw), de.Value)
		}
	})
}

func (s *ReaderTestSuite) TestUnknownVariant() {
	r := NewBytesSource([]byte{0x03})
	r.ReadVariant(3)

	var de *DecodeError
	s.Require().ErrorAs(r.Err(), &de)
	s.Assert().ErrorIs(de, ErrUnknownEnumVariant)
	s.Assert().EqualValues(3, de.Value)
	s.Assert().Equal("pickle: unknown enum variant 3", de.Error())
}

func (s *ReaderTestSuite) TestNoReadAhead() {
	src := bytes.NewReader([]byte{1, 2, 3, 4, 5, 6})
	r, _ := NewReader(&plainReader{src})

	var b uint8
	r.ReadUint8(&b)
	s.Require().NoError(r.Err())
	s.Assert().Equal(5, src.Len(), "exactly one byte consumed from the stream")

	r.ReadArrayTo(make([]byte, 2))
	s.Assert().Equal(3, src.Len())

	_, known := r.Remaining()
	s.Assert().False(known)
}

func (s *ReaderTestSuite) TestByteReaderSources() {
	for name, src := range map[string]io.Reader{
		"bufio":        bufio.NewReader(bytes.NewReader([]byte{0, 0, 0, 9})),
		"bytes.Buffer": bytes.NewBuffer([]byte{0, 0, 0, 9}),
		"BytesReader":  NewBytesReader([]byte{0, 0, 0, 9}),
	} {
		s.T().Run(name, func(t *testing.T) {
			r, err := NewReader(src)
			require.NoError(t, err)
			var v uint32
			r.ReadUint32(&v)
			require.NoError(t, r.Err())
			assert.Equal(t, uint32(9), v)
		})
	}
}

// TestReader runs the ReaderTestSuite.
func TestReader(t *testing.T) {
	suite.Run(t, new(ReaderTestSuite))
}

func TestBytesReader(t *testing.T) {
	r := NewBytesReader([]byte{1, 2, 3})
	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(1), b)
	assert.Equal(t, 2, r.Remaining())
	assert.Equal(t, 1, r.N)

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = r.ReadByte()
	assert.ErrorIs(t, err, io.EOF)

	r.Reset()
	assert.Equal(t, 3, r.Remaining())
}

func TestFits(t *testing.T) {
	assert.True(t, fits[int32](0x7FFFFFFF))
	assert.False(t, fits[int32](0x80000000))
	assert.True(t, fits[uint32](0xFFFFFFFF))
	assert.False(t, fits[uint16](0x10000))
	assert.True(t, fits[int](0xFFFFFFFF) || strconv.IntSize == 32)

	_, ok := toSize(-1)
	assert.False(t, ok)
	v, ok := toSize(uint8(7))
	assert.True(t, ok)
	assert.EqualValues(t, 7, v)
}
