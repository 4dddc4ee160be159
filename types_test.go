package pickle

// Shared fixtures for the codec tests.

type Foo struct {
	Thing   [32]byte
	Another *[64]byte `pickle:"secret"`
}

type FooPlain struct {
	Thing   [32]byte
	Another *[64]byte
}

type Bar [32]byte

type Count uint32

type Account struct {
	Version Count
	Enabled bool
	Shared  uint8
	Keys    []Bar
	Counter uint
	Index   int
	Tags    [][]byte
	Note    string `pickle:"-"`
	cache   []int  `pickle:"-"`
}

type Something interface{ isSomething() }

type First struct{ Key [4]byte }

type Second struct {
	Count uint32
	Flag  bool
}

type Third struct{}

// Fourth implements Something but is never registered.
type Fourth struct{}

func (First) isSomething()  {}
func (Second) isSomething() {}
func (Third) isSomething()  {}
func (Fourth) isSomething() {}

type Holder struct {
	Session Something
	Tail    uint8
}

type Node struct {
	Value    uint8
	Children []Node
}

// Ratchet pickles itself: a boxed key followed by its index.
type Ratchet struct {
	key   *[32]byte
	index uint32
}

func (r *Ratchet) MarshalPickle(w *Writer) (int, error) {
	start := w.Count()
	if _, err := Encode(w, r.key); err != nil {
		return int(w.Count() - start), err
	}
	w.WriteUint32(r.index)
	return int(w.Count() - start), w.Err()
}

func (r *Ratchet) UnmarshalPickle(rd *Reader) error {
	key, err := Decode[*[32]byte](rd)
	if err != nil {
		return err
	}
	r.key = key
	rd.ReadUint32(&r.index)
	return rd.Err()
}

type Session struct {
	Ratchet Ratchet
	Chains  []Ratchet
}

// Epoch marshals by value and unmarshals through a pointer.
type Epoch uint32

func (e Epoch) MarshalPickle(w *Writer) (int, error) {
	w.WriteUint32(uint32(e))
	return 4, w.Err()
}

func (e *Epoch) UnmarshalPickle(r *Reader) error {
	var v uint32
	r.ReadUint32(&v)
	*e = Epoch(v)
	return r.Err()
}

type Checkpoint struct {
	Epoch *Epoch
}

type Locker interface{ isLocker() }

type Sealed struct {
	Key *[64]byte `pickle:"secret"`
}

func (Sealed) isLocker() {}

// Vault reaches secret boxes through every container kind.
type Vault struct {
	Keys  []Foo
	Owner *Foo
	Slot  Locker
	Plain []FooPlain
}

func init() {
	RegisterUnion[Something](First{}, &Second{}, Third{})
	RegisterUnion[Locker](Sealed{})
}

func seq(n int, from byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = from + byte(i)
	}
	return b
}

func box64(from byte) *[64]byte {
	return (*[64]byte)(seq(64, from))
}
