package pickle

import (
	"testing"
)

type BenchmarkPayload struct {
	ID      uint32
	Counter uint
	IsAlive bool
	Key     *[32]byte `pickle:"secret"`
	Chain   [][32]byte
}

func benchmarkPayload() BenchmarkPayload {
	return BenchmarkPayload{
		ID:      1,
		Counter: 100,
		IsAlive: true,
		Key:     (*[32]byte)(seq(32, 0)),
		Chain:   make([][32]byte, 16),
	}
}

func BenchmarkEncodeToBytes(b *testing.B) {
	v := benchmarkPayload()
	b.ReportAllocs()
	for b.Loop() {
		_, _ = EncodeToBytes(v)
	}
}

func BenchmarkDecodeFromBytes(b *testing.B) {
	data, _ := EncodeToBytes(benchmarkPayload())
	b.ReportAllocs()
	for b.Loop() {
		_, _ = DecodeFromBytes[BenchmarkPayload](data)
	}
}

func BenchmarkValueMarshalTo(b *testing.B) {
	c := &Value[BenchmarkPayload]{V: benchmarkPayload()}
	buf := make([]byte, c.Size())
	b.ReportAllocs()
	for b.Loop() {
		_, _ = c.MarshalTo(buf)
	}
}

// Baseline: the same bytes written by hand through a Writer.
func BenchmarkHandWritten(b *testing.B) {
	v := benchmarkPayload()
	buf := make([]byte, 4+4+1+32+4+16*32)
	bw := NewBytesWriter(buf)
	b.ReportAllocs()
	for b.Loop() {
		bw.Reset()
		w, _ := NewWriter(bw)
		w.WriteUint32(v.ID)
		w.WriteSize(uint64(v.Counter))
		w.WriteBool(v.IsAlive)
		w.WriteBytes(v.Key[:])
		w.WriteLength(len(v.Chain))
		for i := range v.Chain {
			w.WriteBytes(v.Chain[i][:])
		}
	}
}
