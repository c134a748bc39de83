package twindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/btree"

	"github.com/denismitr/twindex/internal/lru"
	"github.com/denismitr/twindex/internal/lsh"
	"github.com/denismitr/twindex/internal/metric"
	"github.com/denismitr/twindex/internal/minhash"
	"github.com/denismitr/twindex/internal/shingle"
)

var ErrKeyAlreadyExists = errors.New("key already exists")
var ErrKeyDoesNotExist = errors.New("key does not exist in index")
var ErrArtifactIncompatible = errors.New("artifact fingerprinting parameters are incompatible")

const castPanic = "how could document index item not be of type *docEntry"

// InMemory opens an index that lives and dies with the process.
const InMemory = ":memory:"

const matchCacheShards = 8

type entryIterator func(ent *docEntry) bool

type resultCache interface {
	Add(key uint64, value interface{}, size uint64) bool
	Get(key uint64) (interface{}, bool)
	Purge()
}

type engine struct {
	artifact       string
	cfg            *Config
	persistence    *persistence
	docs           *btree.BTree
	vocab          *shingle.Vocab
	family         *minhash.Family
	bands          *lsh.Bands
	matches        resultCache
	buildID        string
	paramsExplicit bool
	cfgReplayed    bool
	emptyDocs      int
	stopCh         chan struct{}
	mu             sync.RWMutex
	totalDeletes   uint64
	closed         bool
}

func newEngine(artifact string, cfg *Config) (*engine, error) {
	e := &engine{
		artifact: artifact,
		docs:     btree.NewNonConcurrent(byKeys),
		vocab:    shingle.NewVocab(),
		stopCh:   make(chan struct{}, 1),
	}

	// remembered before applyTo fills zero values in, an explicitly chosen
	// parameter must win over whatever an existing artifact carries
	e.paramsExplicit = cfg.ShingleSize != 0 || cfg.Hashes != 0 || cfg.BandRows != 0 || cfg.Seed != 0

	if err := cfg.applyTo(e); err != nil {
		return nil, err
	}

	if err := e.rebuildFingerprinting(); err != nil {
		return nil, err
	}

	e.buildID = uuid.NewString()

	if cfg.DisableMatchCache {
		e.matches = lru.NullCache{}
	} else {
		c, err := lru.NewCache(matchCacheShards, cfg.MatchCacheBytes, nil)
		if err != nil {
			return nil, err
		}
		e.matches = c
	}

	return e, nil
}

// rebuildFingerprinting derives the hash family and the banding layout from
// the current parameters. Both are derived state and are never persisted.
func (e *engine) rebuildFingerprinting() error {
	family, err := minhash.NewFamily(e.cfg.Hashes, e.cfg.Seed)
	if err != nil {
		return err
	}

	bands, err := lsh.New(e.cfg.Hashes, e.cfg.BandRows)
	if err != nil {
		return err
	}

	e.family = family
	e.bands = bands

	return nil
}

func (e *engine) init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.artifact != InMemory {
		p, err := newPersistence(e.artifact, e.cfg.PersistenceStrategy, e.cfg.TruncateFileWhenOpen)
		if err != nil {
			return err
		}
		e.persistence = p

		if err := e.persistence.load(func(d deserializer) error {
			return d.deserialize(e)
		}); err != nil {
			_ = e.persistence.close()
			e.persistence = nil
			return err
		}

		if !e.cfgReplayed {
			// a fresh artifact, freeze the parameters before the first document
			if err := e.persistence.save([]serializable{&cfgCmd{jc: e.journalConfig()}}); err != nil {
				_ = e.persistence.close()
				e.persistence = nil
				return err
			}
		}

		if e.cfg.PersistenceStrategy == Async {
			go e.asyncFlush(e.cfg.AsyncPersistenceIntervals)
		}

		if !e.cfg.DisableAutoVacuum && !e.cfg.AutoVacuumOnlyOnClose {
			go e.scheduleVacuum(e.cfg.AutoVacuumIntervals)
		}
	}

	return nil
}

// adoptJournalConfig reconciles the journaled parameters with the configured
// ones. The artifact wins unless the caller explicitly picked conflicting
// values, replaying documents against a mismatched hash family would corrupt
// every signature silently.
func (e *engine) adoptJournalConfig(jc journalConfig) error {
	if e.cfgReplayed {
		return errors.Wrap(ErrCommandInvalid, "duplicate cfg command in artifact")
	}
	e.cfgReplayed = true

	same := jc.k == e.cfg.ShingleSize &&
		jc.h == e.cfg.Hashes &&
		jc.r == e.cfg.BandRows &&
		jc.seed == e.cfg.Seed

	if !same {
		if e.paramsExplicit {
			return errors.Wrapf(
				ErrArtifactIncompatible,
				"artifact was built with k=%d h=%d r=%d seed=%d",
				jc.k, jc.h, jc.r, jc.seed,
			)
		}

		e.cfg.ShingleSize = jc.k
		e.cfg.Hashes = jc.h
		e.cfg.BandRows = jc.r
		e.cfg.Seed = jc.seed

		if err := e.rebuildFingerprinting(); err != nil {
			return err
		}
	}

	e.vocab.SetNextRow(jc.next)

	if jc.build != "" {
		e.buildID = jc.build
	}

	return nil
}

func (e *engine) journalConfig() journalConfig {
	return journalConfig{
		k:     e.cfg.ShingleSize,
		h:     e.cfg.Hashes,
		r:     e.cfg.BandRows,
		seed:  e.cfg.Seed,
		next:  e.vocab.NextRow(),
		build: e.buildID,
	}
}

func (e *engine) asyncFlush(d time.Duration) {
	t := time.NewTicker(d)

	for {
		select {
		case <-e.stopCh:
			t.Stop()
			return
		case <-t.C:
			e.mu.Lock()
			if e.closed {
				e.mu.Unlock()
				t.Stop()
				return
			}
			if err := e.persistence.sync(); err != nil {
				panic(err)
			}
			e.mu.Unlock()
		}
	}
}

func (e *engine) scheduleVacuum(d time.Duration) {
	t := time.NewTicker(d)

	for {
		select {
		case <-e.stopCh:
			t.Stop()
			return
		case <-t.C:
			e.mu.Lock()
			if e.closed {
				e.mu.Unlock()
				t.Stop()
				return
			}

			if e.totalDeletes < e.cfg.AutoVacuumMinDeletes {
				e.mu.Unlock()
				continue
			}

			if err := e.runVacuumUnderLock(); err != nil {
				panic(err)
			}
			e.mu.Unlock()
		}
	}
}

// runVacuumUnderLock drops vocabulary rows no live document references and
// rewrites the artifact as one cfg command, one consolidated vocabulary
// command and the current generation of every document. Surviving row ids
// are untouched and the dropped ones are never reissued, stored signatures
// stay valid across the swap.
func (e *engine) runVacuumUnderLock() error {
	live := make(map[uint32]struct{})
	e.docs.Ascend(nil, func(i interface{}) bool {
		ent, ok := i.(*docEntry)
		if !ok {
			panic(castPanic)
		}
		for _, row := range ent.rows {
			live[row] = struct{}{}
		}
		return true
	})

	e.vocab.Drop(func(row uint32) bool {
		_, ok := live[row]
		return !ok
	})

	if e.persistence != nil {
		rs, err := e.snapshotSerializer()
		if err != nil {
			return err
		}

		if err := e.persistence.writeAndSwap(rs); err != nil {
			return err
		}
	}

	e.totalDeletes = 0

	return nil
}

// snapshotSerializer captures the whole index as a minimal command stream.
func (e *engine) snapshotSerializer() (*respSerializer, error) {
	rs := &respSerializer{}

	if err := (&cfgCmd{jc: e.journalConfig()}).serialize(rs); err != nil {
		return nil, err
	}

	pairs := make([]shingle.Pair, 0, e.vocab.Len())
	e.vocab.Each(func(p shingle.Pair) bool {
		pairs = append(pairs, p)
		return true
	})
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Row < pairs[j].Row })

	if len(pairs) > 0 {
		if err := (&vocabCmd{pairs: pairs}).serialize(rs); err != nil {
			return nil, err
		}
	}

	var serr error
	e.docs.Ascend(nil, func(i interface{}) bool {
		ent, ok := i.(*docEntry)
		if !ok {
			panic(castPanic)
		}

		if err := ent.serialize(rs); err != nil {
			serr = err
			return false
		}
		return true
	})
	if serr != nil {
		return nil, serr
	}

	return rs, nil
}

var ErrIndexAlreadyClosed = errors.New("index already closed")

func (e *engine) close() error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return ErrIndexAlreadyClosed
	}

	defer func() {
		e.docs = nil
		e.vocab = nil
		e.family = nil
		e.bands = nil
		e.matches = nil
		e.closed = true
		e.persistence = nil
		e.mu.Unlock()
	}()

	close(e.stopCh)

	if e.persistence != nil {
		if !e.cfg.DisableAutoVacuum {
			if err := e.runVacuumUnderLock(); err != nil {
				_ = e.persistence.close()
				return err
			}
		}

		return e.persistence.close()
	}

	return nil
}

// putUnderLock inserts or replaces a document and keeps the banding index
// in step. It returns the replaced entry so a failed batch can be undone.
func (e *engine) putUnderLock(ent *docEntry, replace bool) (*docEntry, error) {
	existing := e.docs.Set(ent)

	var prior *docEntry
	if existing != nil {
		prior, _ = existing.(*docEntry)
		if prior == nil {
			panic(castPanic)
		}

		if !replace {
			_ = e.docs.Set(prior)
			return nil, errors.Wrapf(ErrKeyAlreadyExists, "key %s", ent.key.String())
		}

		e.bands.Remove(prior.key.String(), prior.sig)
		if prior.empty() {
			e.emptyDocs--
		}
	}

	e.bands.Insert(ent.key.String(), ent.sig)
	if ent.empty() {
		e.emptyDocs++
	}

	e.matches.Purge()

	return prior, nil
}

func (e *engine) removeUnderLock(key DocKey) (*docEntry, error) {
	found := e.docs.Get(&docEntry{key: key})
	if found == nil {
		return nil, errors.Wrapf(ErrKeyDoesNotExist, "key %s does not exist in index", key.String())
	}

	ent, ok := found.(*docEntry)
	if !ok {
		panic(castPanic)
	}

	e.bands.Remove(ent.key.String(), ent.sig)
	if ent.empty() {
		e.emptyDocs--
	}

	e.totalDeletes++
	e.docs.Delete(&docEntry{key: key})

	e.matches.Purge()

	return ent, nil
}

func (e *engine) findByKeyUnderLock(key string) (*docEntry, error) {
	found := e.docs.Get(&docEntry{key: newDocKey(key)})
	if found == nil {
		return nil, errors.Wrapf(ErrKeyDoesNotExist, "key %s does not exist in index", key)
	}

	ent, ok := found.(*docEntry)
	if !ok {
		panic(castPanic)
	}

	return ent, nil
}

// matchUnderLock ranks every banding candidate of the probe against the
// probe's row set. probeLen counts all distinct probe shingles, including
// the ones the vocabulary has never seen, so scores do not inflate when a
// probe is full of novel text.
func (e *engine) matchUnderLock(
	rows []uint32,
	probeLen int,
	sig []uint32,
	selfKey string,
	q *queryOptions,
) (*MatchSet, error) {
	k, err := metric.Resolve(string(q.metric))
	if err != nil {
		return nil, err
	}

	ms := &MatchSet{Metric: q.metric, Ascending: k.Ascending()}

	if probeLen == 0 {
		return ms, nil
	}

	var patterns []string
	if q.pattern != "" {
		patterns = strings.Split(q.pattern, keySeparator)
	}

	for _, key := range e.bands.Candidates(selfKey, sig) {
		ent, err := e.findByKeyUnderLock(key)
		if err != nil {
			continue
		}

		if !ent.key.Match(patterns) {
			continue
		}

		score := k.ScoreCounts(metric.Intersection(rows, ent.rows), probeLen, len(ent.rows))
		if q.hasThreshold && !k.Meets(score, q.threshold) {
			continue
		}

		ms.Matches = append(ms.Matches, Match{Key: key, Score: score, Meta: ent.meta.copy()})
	}

	sortMatches(k, ms.Matches)

	if q.limit > 0 && len(ms.Matches) > q.limit {
		ms.Matches = ms.Matches[:q.limit]
	}

	return ms, nil
}

// sortMatches orders best score first, ties broken by key for stable output.
func sortMatches(k metric.Kind, matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].Key < matches[j].Key
		}
		return k.Better(matches[i].Score, matches[j].Score)
	})
}

// evaluateUnderLock grades the banding layer against exhaustive pairwise
// scoring. For every document the retrieved set comes from the bands and the
// relevant set from brute force over the whole corpus, precision and recall
// follow from those two and the threshold.
func (e *engine) evaluateUnderLock(ctx context.Context, threshold float64, q *queryOptions) ([]Report, error) {
	k, err := metric.Resolve(string(q.metric))
	if err != nil {
		return nil, err
	}

	var patterns []string
	if q.pattern != "" {
		patterns = strings.Split(q.pattern, keySeparator)
	}

	all := make([]*docEntry, 0, e.docs.Len())
	e.docs.Ascend(nil, func(i interface{}) bool {
		ent, ok := i.(*docEntry)
		if !ok {
			panic(castPanic)
		}
		all = append(all, ent)
		return true
	})

	reports := make([]Report, 0, len(all))
	for _, ent := range all {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !ent.key.Match(patterns) {
			continue
		}

		rep := Report{Key: ent.key.String()}

		var scores []float64
		for _, candidateKey := range e.bands.Candidates(ent.key.String(), ent.sig) {
			cand, err := e.findByKeyUnderLock(candidateKey)
			if err != nil {
				continue
			}
			scores = append(scores, k.Score(ent.rows, cand.rows))
		}
		rep.Retrieved = len(scores)

		hits := 0
		for _, s := range scores {
			if k.Meets(s, threshold) {
				hits++
			}
		}

		relevant := 0
		for _, other := range all {
			if other.key.Equal(&ent.key) {
				continue
			}
			if k.Meets(k.Score(ent.rows, other.rows), threshold) {
				relevant++
			}
		}
		rep.Relevant = relevant

		rep.Precision, rep.PrecisionDefined = k.Precision(scores, threshold)
		rep.Recall, rep.RecallDefined = metric.Recall(hits, relevant)

		reports = append(reports, rep)
	}

	return reports, nil
}

func (e *engine) statsUnderLock() Stats {
	return Stats{
		Documents:      e.docs.Len(),
		EmptyDocuments: e.emptyDocs,
		VocabSize:      e.vocab.Len(),
		ShingleSize:    e.cfg.ShingleSize,
		Hashes:         e.cfg.Hashes,
		BandRows:       e.cfg.BandRows,
		Bands:          e.bands.Bands(),
		Seed:           e.cfg.Seed,
		Build:          e.buildID,
	}
}

func (e *engine) Count() int {
	return e.docs.Len()
}

func (e *engine) scanUnderLock(ctx context.Context, q *queryOptions, ir entryIterator) error {
	it := filteringBTreeIterator(ctx, q, ir)

	switch {
	case q.keyRange != nil && q.order == Descend:
		// Descend walks from the upper bound down
		descendRange(
			e.docs,
			&docEntry{key: newDocKey(q.keyRange.To)},
			&docEntry{key: newDocKey(q.keyRange.From)},
			it,
		)
	case q.keyRange != nil:
		ascendRange(
			e.docs,
			&docEntry{key: newDocKey(q.keyRange.From)},
			&docEntry{key: newDocKey(q.keyRange.To)},
			it,
		)
	case q.order == Descend:
		e.docs.Descend(nil, it)
	default:
		e.docs.Ascend(nil, it)
	}

	return ctx.Err()
}

func filteringBTreeIterator(
	ctx context.Context,
	q *queryOptions,
	ir entryIterator,
) func(item interface{}) bool {
	var patterns []string
	if q.pattern != "" {
		patterns = strings.Split(q.pattern, keySeparator)
	}

	return func(item interface{}) bool {
		if ctx.Err() != nil {
			return false
		}

		ent, ok := item.(*docEntry)
		if !ok {
			panic(castPanic)
		}

		// keys order numerically aware, a prefix is not a contiguous
		// segment of the tree and has to be filtered here
		if q.prefix != "" && !strings.HasPrefix(ent.key.String(), q.prefix) {
			return true
		}

		if !ent.key.Match(patterns) {
			return true
		}

		return ir(ent)
	}
}

// matchCacheKey digests the probe rows and every query knob that changes the
// outcome into one cache slot.
func matchCacheKey(rows []uint32, probeLen int, selfKey string, q *queryOptions) uint64 {
	d := xxhash.New()

	var buf [4]byte
	for _, row := range rows {
		binary.LittleEndian.PutUint32(buf[:], row)
		_, _ = d.Write(buf[:])
	}

	_, _ = d.WriteString(fmt.Sprintf(
		"|%d|%s|%s|%s|%d|%v|%v",
		probeLen, selfKey, q.metric, q.pattern, q.limit, q.hasThreshold, q.threshold,
	))

	return d.Sum64()
}
