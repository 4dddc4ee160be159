package pickle

import (
	"encoding/binary"
	"math"

	"golang.org/x/exp/constraints"
)

var (
	// Order is the byte order of every multi-byte integer in a pickle.
	Order = binary.BigEndian
)

// MaxArrayLength is the largest number of elements a sequence may hold.
// Encode and decode share the bound.
const MaxArrayLength = math.MaxUint16

const BUFFER_SIZE = 4096

var empty [BUFFER_SIZE]byte

// zeros is an io.Reader that reads an infinite stream of zero bytes.
var zeros zero

type zero struct{}

func (z zero) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// Zero overwrites b with zeros. Use it to wipe secret material, for
// example Zero(key[:]) on a decoded *[32]byte, once it is no longer needed.
func Zero(b []byte) {
	clear(b)
}

// fits reports whether v is representable in T.
func fits[T constraints.Integer](v uint64) bool {
	t := T(v)
	return t >= 0 && uint64(t) == v
}

// toSize converts a Go integer to the 64-bit form handed to WriteSize.
// Negative values cannot be size values.
func toSize[T constraints.Integer](v T) (uint64, bool) {
	if v < 0 {
		return 0, false
	}
	return uint64(v), true
}
