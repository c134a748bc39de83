package minhash

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

var ErrFamilySizeInvalid = errors.New("hash family size invalid")

// Prime is the modulus of every hash in a family. A fixed Mersenne prime
// covering the whole row-id universe keeps signatures valid while the
// vocabulary grows; sizing the modulus to the current row count would
// invalidate every stored signature on the next insert.
const Prime uint64 = 1<<31 - 1

// EmptySlot fills the signature of a document that produced no shingles.
// Real slots are always < Prime, so the sentinel can never collide.
const EmptySlot uint32 = math.MaxUint32

// Family is a reproducible set of hash functions h_i(x) = (a_i*x + b_i) mod
// Prime. The same (size, seed) always yields the same family, which is what
// lets a persisted index be reopened without re-signing the corpus.
type Family struct {
	size int
	a    []uint64
	b    []uint64
}

func NewFamily(size int, seed int64) (*Family, error) {
	if size < 1 {
		return nil, errors.Wrapf(ErrFamilySizeInvalid, "size %d", size)
	}

	rnd := rand.New(rand.NewSource(seed))
	f := &Family{
		size: size,
		a:    make([]uint64, size),
		b:    make([]uint64, size),
	}

	for i := 0; i < size; i++ {
		f.a[i] = uint64(rnd.Int63n(int64(Prime)-1)) + 1 // [1, Prime)
		f.b[i] = uint64(rnd.Int63n(int64(Prime)))       // [0, Prime)
	}

	return f, nil
}

func (f *Family) Size() int {
	return f.size
}

// Sign computes the minhash signature of a row set: per hash, the minimum of
// h_i over every row. An empty set signs as all EmptySlot.
func (f *Family) Sign(rows []uint32) []uint32 {
	sig := make([]uint32, f.size)

	if len(rows) == 0 {
		for i := range sig {
			sig[i] = EmptySlot
		}
		return sig
	}

	for i := 0; i < f.size; i++ {
		min := uint64(math.MaxUint64)
		a, b := f.a[i], f.b[i]
		for _, x := range rows {
			h := (a*uint64(x) + b) % Prime
			if h < min {
				min = h
			}
		}
		sig[i] = uint32(min)
	}

	return sig
}

// Empty reports whether sig belongs to a document with no shingles. Sign
// fills every slot uniformly, so inspecting the first is enough.
func Empty(sig []uint32) bool {
	return len(sig) == 0 || sig[0] == EmptySlot
}
