package lsh

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/denismitr/twindex/internal/minhash"
)

var ErrBandWidthInvalid = errors.New("band width invalid")

const sigPanic = "twindex: signature narrower than banded width"

// Bands buckets minhash signatures band by band. Two documents become
// candidates as soon as a single band of their signatures collides, so the
// band width trades recall against candidate volume: narrow bands catch
// fainter similarity, wide bands admit fewer pairs.
//
// Bands is derived state. It is rebuilt from signatures on open and never
// persisted.
type Bands struct {
	rows    int
	bands   int
	buckets []map[uint64]map[string]struct{}
}

// New builds an empty banding for signatures of size h cut into bands of
// r rows. Only full bands participate; a remainder of fewer than r trailing
// slots is ignored.
func New(h, r int) (*Bands, error) {
	if r < 1 {
		return nil, errors.Wrapf(ErrBandWidthInvalid, "rows per band %d", r)
	}
	if r > h {
		return nil, errors.Wrapf(ErrBandWidthInvalid, "rows per band %d exceed signature size %d", r, h)
	}

	b := h / r
	bs := &Bands{
		rows:    r,
		bands:   b,
		buckets: make([]map[uint64]map[string]struct{}, b),
	}
	for i := range bs.buckets {
		bs.buckets[i] = make(map[uint64]map[string]struct{})
	}

	return bs, nil
}

func (bs *Bands) Rows() int {
	return bs.rows
}

func (bs *Bands) Bands() int {
	return bs.bands
}

// Insert buckets every band of sig under key. Empty signatures are skipped:
// a document with no shingles collides with every other empty one, and such
// collisions carry no signal.
func (bs *Bands) Insert(key string, sig []uint32) {
	if minhash.Empty(sig) {
		return
	}
	if len(sig) < bs.bands*bs.rows {
		panic(sigPanic)
	}

	for band := 0; band < bs.bands; band++ {
		h := bs.bandKey(band, sig)
		set, ok := bs.buckets[band][h]
		if !ok {
			set = make(map[string]struct{})
			bs.buckets[band][h] = set
		}
		set[key] = struct{}{}
	}
}

// Remove takes key out of every bucket it was inserted under. The signature
// must be the one the key was inserted with.
func (bs *Bands) Remove(key string, sig []uint32) {
	if minhash.Empty(sig) {
		return
	}
	if len(sig) < bs.bands*bs.rows {
		panic(sigPanic)
	}

	for band := 0; band < bs.bands; band++ {
		h := bs.bandKey(band, sig)
		set, ok := bs.buckets[band][h]
		if !ok {
			continue
		}
		delete(set, key)
		if len(set) == 0 {
			delete(bs.buckets[band], h)
		}
	}
}

// Candidates returns every key sharing at least one band bucket with sig,
// except self, sorted for stable iteration.
func (bs *Bands) Candidates(self string, sig []uint32) []string {
	if minhash.Empty(sig) {
		return nil
	}
	if len(sig) < bs.bands*bs.rows {
		panic(sigPanic)
	}

	seen := make(map[string]struct{})
	for band := 0; band < bs.bands; band++ {
		h := bs.bandKey(band, sig)
		for key := range bs.buckets[band][h] {
			if key == self {
				continue
			}
			seen[key] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil
	}

	result := make([]string, 0, len(seen))
	for key := range seen {
		result = append(result, key)
	}
	sort.Strings(result)

	return result
}

func (bs *Bands) bandKey(band int, sig []uint32) uint64 {
	start := band * bs.rows
	buf := make([]byte, 4+4*bs.rows)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(band))
	for i, v := range sig[start : start+bs.rows] {
		binary.LittleEndian.PutUint32(buf[4+i*4:], v)
	}
	return xxhash.Sum64(buf)
}
