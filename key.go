package twindex

import (
	"strconv"
	"strings"

	"github.com/tidwall/btree"
)

const keySeparator = "/"

// DocKey identifies a document in the index. Keys are compared segment by
// segment on the `/` separator, purely numeric segments by value, so that
// essays/9 sorts before essays/10.
type DocKey struct {
	key      string
	segments []string
}

func newDocKey(k string) DocKey {
	return DocKey{
		key:      k,
		segments: strings.Split(k, keySeparator),
	}
}

// Match reports whether the key satisfies a segmented pattern in which `*`
// stands for any single segment. A pattern shorter than the key matches on
// its prefix.
func (dk *DocKey) Match(patterns []string) bool {
	if len(patterns) == 0 || (len(patterns) == 1 && patterns[0] == "*") {
		return true
	}

	for i := 0; i < len(patterns); i++ {
		if i > len(dk.segments)-1 {
			return patterns[i] == "*"
		}

		if patterns[i] != dk.segments[i] && patterns[i] != "*" {
			return false
		}
	}

	return true
}

func (dk *DocKey) Equal(other *DocKey) bool {
	return dk.key == other.key
}

func (dk *DocKey) String() string {
	return dk.key
}

func (dk *DocKey) Less(other DocKey) bool {
	l := minSegments(dk.segments, other.segments)

	prevEq := false
	for i := 0; i < l; i++ {
		// try to compare as ints
		bothInts, a, b := asInts(dk.segments[i], other.segments[i])
		if bothInts {
			if a != b {
				return a < b
			}

			prevEq = true
			continue
		}

		// fall back to a string comparison
		if dk.segments[i] != other.segments[i] {
			return dk.segments[i] < other.segments[i]
		}

		prevEq = dk.segments[i] == other.segments[i]
	}

	return prevEq && len(other.segments) > len(dk.segments)
}

func byKeys(a, b interface{}) bool {
	i1, i2 := a.(*docEntry), b.(*docEntry)
	return i1.key.Less(i2.key)
}

func ascendRange(tr *btree.BTree, from, to *docEntry, it func(item interface{}) bool) {
	tr.Ascend(from, func(item interface{}) bool {
		ent, ok := item.(*docEntry)
		if !ok {
			panic(castPanic)
		}

		if to.key.Less(ent.key) {
			return false
		}

		return it(item)
	})
}

func descendRange(tr *btree.BTree, from, to *docEntry, it func(item interface{}) bool) {
	// when descending `from` is the upper bound
	tr.Descend(from, func(item interface{}) bool {
		ent, ok := item.(*docEntry)
		if !ok {
			panic(castPanic)
		}

		if ent.key.Less(to.key) {
			return false
		}

		return it(item)
	})
}

func minSegments(a, b []string) int {
	if len(a) > len(b) {
		return len(b)
	}

	return len(a)
}

func asInts(a, b string) (bool, int, int) {
	if a == "" || b == "" || a[0] == '0' || b[0] == '0' {
		return false, 0, 0
	}

	an, err := strconv.Atoi(a)
	if err != nil {
		return false, 0, 0
	}

	bn, err := strconv.Atoi(b)
	if err != nil {
		return false, 0, 0
	}

	return true, an, bn
}
