package twindex

import (
	"github.com/jinzhu/copier"
)

// M holds free form document metadata: source path, byte size, author,
// anything the caller wants to travel with the key. Only string, int, bool
// and float64 values survive serialization.
type M map[string]interface{}

func (m M) String(k string) string {
	v, ok := m[k].(string)
	if !ok {
		return ""
	}
	return v
}

func (m M) HasString(k string) bool {
	_, ok := m[k].(string)
	return ok
}

func (m M) Int(k string) int {
	v, ok := m[k].(int)
	if !ok {
		return 0
	}
	return v
}

func (m M) HasInt(k string) bool {
	_, ok := m[k].(int)
	return ok
}

func (m M) Bool(k string) bool {
	v, ok := m[k].(bool)
	if !ok {
		return false
	}
	return v
}

func (m M) HasBool(k string) bool {
	_, ok := m[k].(bool)
	return ok
}

func (m M) Float(k string) float64 {
	v, ok := m[k].(float64)
	if !ok {
		return 0
	}
	return v
}

func (m M) HasFloat(k string) bool {
	_, ok := m[k].(float64)
	return ok
}

func (m M) copy() M {
	if m == nil {
		return nil
	}

	cp := make(M, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// DocInfo is a read-only snapshot of an indexed document.
type DocInfo struct {
	key      string
	shingles int
	meta     M
}

func newDocInfoFromEntry(ent *docEntry) *DocInfo {
	return &DocInfo{
		key:      ent.key.String(),
		shingles: len(ent.rows),
		meta:     ent.meta.copy(),
	}
}

func (d *DocInfo) Key() string {
	return d.key
}

// Shingles is the number of distinct shingles the document contributed.
func (d *DocInfo) Shingles() int {
	return d.shingles
}

// Empty reports whether the document was too short to produce a single
// shingle. Empty documents never match anything.
func (d *DocInfo) Empty() bool {
	return d.shingles == 0
}

func (d *DocInfo) Meta() M {
	return d.meta
}

// Match is a single ranked hit.
type Match struct {
	Key   string
	Score float64
	Meta  M
}

// MatchSet is the ranked outcome of a similarity query. Matches come ordered
// best first: descending scores for similarities, ascending for distances.
type MatchSet struct {
	Metric    Metric
	Ascending bool
	Matches   []Match
}

func (ms *MatchSet) Len() int {
	return len(ms.Matches)
}

func (ms *MatchSet) Keys() []string {
	keys := make([]string, len(ms.Matches))
	for i := range ms.Matches {
		keys[i] = ms.Matches[i].Key
	}
	return keys
}

func (ms *MatchSet) Top() (Match, bool) {
	if len(ms.Matches) == 0 {
		return Match{}, false
	}
	return ms.Matches[0], true
}

func (ms *MatchSet) clone() *MatchSet {
	var cp MatchSet
	if err := copier.CopyWithOption(&cp, ms, copier.Option{DeepCopy: true}); err != nil {
		panic("could not copy match set: " + err.Error())
	}

	return &cp
}

// weight approximates the in-memory footprint for cache accounting.
func (ms *MatchSet) weight() uint64 {
	w := uint64(64)
	for i := range ms.Matches {
		w += uint64(len(ms.Matches[i].Key)) + 16
		for k := range ms.Matches[i].Meta {
			w += uint64(len(k)) + 16
		}
	}
	return w
}

// Report carries retrieval quality numbers for one document, judged against
// a ground truth of exhaustively scored pairs. Precision is undefined when
// nothing was retrieved, recall when nothing but the document itself clears
// the threshold.
type Report struct {
	Key              string
	Retrieved        int
	Relevant         int
	Precision        float64
	PrecisionDefined bool
	Recall           float64
	RecallDefined    bool
}

// Stats describes the open index and the parameters frozen into its artifact.
type Stats struct {
	Documents      int
	EmptyDocuments int
	VocabSize      int
	ShingleSize    int
	Hashes         int
	BandRows       int
	Bands          int
	Seed           int64
	Build          string
}
