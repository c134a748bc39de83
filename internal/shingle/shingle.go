package shingle

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

var ErrRowSpaceExhausted = errors.New("shingle row space exhausted")
var ErrRowConflict = errors.New("shingle row conflict")

// maxRow leaves the top of the uint32 range free; the all-ones value is the
// empty-signature sentinel and must never be a legal row id.
const maxRow = 1<<32 - 2

// Pair binds a shingle fingerprint to the vocabulary row it was assigned.
// Pairs are what the journal records so row assignment replays identically.
type Pair struct {
	FP  uint64
	Row uint32
}

// Split cuts normalized text into overlapping k-rune shingles and returns
// the deduplicated xxhash fingerprint of each distinct shingle. Text shorter
// than k runes yields nothing.
func Split(text string, k int) []uint64 {
	if k < 1 {
		return nil
	}

	runes := []rune(text)
	if len(runes) < k {
		return nil
	}

	seen := make(map[uint64]struct{}, len(runes)-k+1)
	fps := make([]uint64, 0, len(runes)-k+1)
	for i := 0; i+k <= len(runes); i++ {
		fp := xxhash.Sum64String(string(runes[i : i+k]))
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		fps = append(fps, fp)
	}

	return fps
}

// Vocab maps shingle fingerprints to stable row ids. Rows are handed out in
// assignment order and are never reused or renumbered, so signatures built
// against a vocabulary stay valid as it grows.
type Vocab struct {
	rows map[uint64]uint32
	next uint32
}

func NewVocab() *Vocab {
	return &Vocab{rows: make(map[uint64]uint32)}
}

// Grow resolves fingerprints to rows, assigning fresh rows to fingerprints
// the vocabulary has not seen. It returns the document's sorted row set and
// the newly minted pairs in assignment order.
func (v *Vocab) Grow(fps []uint64) ([]uint32, []Pair, error) {
	set := make([]uint32, 0, len(fps))
	var fresh []Pair

	for _, fp := range fps {
		row, ok := v.rows[fp]
		if !ok {
			if v.next > maxRow {
				return nil, nil, ErrRowSpaceExhausted
			}
			row = v.next
			v.rows[fp] = row
			v.next++
			fresh = append(fresh, Pair{FP: fp, Row: row})
		}
		set = append(set, row)
	}

	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return set, fresh, nil
}

// Lookup resolves fingerprints against the existing vocabulary only,
// dropping unknown shingles. Probe documents are resolved this way: a
// shingle the corpus has never produced cannot contribute to similarity.
func (v *Vocab) Lookup(fps []uint64) []uint32 {
	set := make([]uint32, 0, len(fps))
	for _, fp := range fps {
		if row, ok := v.rows[fp]; ok {
			set = append(set, row)
		}
	}

	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return set
}

// Restore replays a journaled assignment. The next-row counter tracks the
// highest replayed row so later Grow calls continue where the journal ended.
func (v *Vocab) Restore(fp uint64, row uint32) error {
	if existing, ok := v.rows[fp]; ok && existing != row {
		return errors.Wrapf(ErrRowConflict, "fingerprint %x maps to both row %d and row %d", fp, existing, row)
	}

	v.rows[fp] = row
	if row >= v.next {
		v.next = row + 1
	}
	return nil
}

// Drop removes fingerprints whose rows are no longer referenced by any live
// document. Row ids of surviving entries are untouched.
func (v *Vocab) Drop(dead func(row uint32) bool) {
	for fp, row := range v.rows {
		if dead(row) {
			delete(v.rows, fp)
		}
	}
}

func (v *Vocab) Len() int {
	return len(v.rows)
}

// NextRow reports the row the next unseen fingerprint would receive.
func (v *Vocab) NextRow() uint32 {
	return v.next
}

// SetNextRow restores the row counter from a journal checkpoint. The counter
// only ever moves forward.
func (v *Vocab) SetNextRow(n uint32) {
	if n > v.next {
		v.next = n
	}
}

// Each visits every fingerprint/row pair in unspecified order.
func (v *Vocab) Each(f func(p Pair) bool) {
	for fp, row := range v.rows {
		if !f(Pair{FP: fp, Row: row}) {
			return
		}
	}
}
