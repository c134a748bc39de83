package metric

import (
	"math"

	"github.com/pkg/errors"
)

var ErrMetricUnknown = errors.New("similarity metric unknown")

// Kind names a similarity measure over shingle row sets.
type Kind string

const (
	Jaccard   Kind = "jaccard"
	Cosine    Kind = "cosine"
	Euclidean Kind = "euclid"
)

func Resolve(name string) (Kind, error) {
	switch Kind(name) {
	case Jaccard, Cosine, Euclidean:
		return Kind(name), nil
	default:
		return "", errors.Wrapf(ErrMetricUnknown, "%s", name)
	}
}

// Ascending reports whether lower scores mean more similar. Euclidean is a
// distance; the other kinds are similarities.
func (k Kind) Ascending() bool {
	return k == Euclidean
}

// Score computes k over two sorted row sets.
func (k Kind) Score(a, b []uint32) float64 {
	return k.ScoreCounts(Intersection(a, b), len(a), len(b))
}

// ScoreCounts computes k from set cardinalities alone. It lets a probe count
// shingles the vocabulary has never seen: they can intersect nothing but
// still belong in the denominator.
func (k Kind) ScoreCounts(inter, na, nb int) float64 {
	switch k {
	case Jaccard:
		union := na + nb - inter
		if union == 0 {
			return 0
		}
		return float64(inter) / float64(union)
	case Cosine:
		if na == 0 || nb == 0 {
			return 0
		}
		return float64(inter) / math.Sqrt(float64(na)*float64(nb))
	case Euclidean:
		return math.Sqrt(float64(na + nb - 2*inter))
	default:
		return 0
	}
}

// Better reports whether score x ranks strictly ahead of y under k.
func (k Kind) Better(x, y float64) bool {
	if k.Ascending() {
		return x < y
	}
	return x > y
}

// Meets reports whether score clears the threshold under k: at most the
// threshold for distances, at least the threshold for similarities.
func (k Kind) Meets(score, threshold float64) bool {
	if k.Ascending() {
		return score <= threshold
	}
	return score >= threshold
}

// Precision is the fraction of retrieved scores clearing the threshold.
// It is undefined when nothing was retrieved, reported by the second value.
func (k Kind) Precision(scores []float64, threshold float64) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}

	hits := 0
	for _, s := range scores {
		if k.Meets(s, threshold) {
			hits++
		}
	}

	return float64(hits) / float64(len(scores)), true
}

// Recall is the fraction of relevant documents that were retrieved. It is
// undefined when nothing is relevant, reported by the second value.
func Recall(found, relevant int) (float64, bool) {
	if relevant == 0 {
		return 0, false
	}
	return float64(found) / float64(relevant), true
}

// Intersection counts common elements of two sorted sets.
func Intersection(a, b []uint32) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}
