package twindex

import (
	"context"

	"github.com/pkg/errors"

	"github.com/denismitr/twindex/internal/corpus"
	"github.com/denismitr/twindex/internal/shingle"
)

var ErrBulkIsReadOnly = errors.New("bulk operation is read only")

// Bulk is one locked visit to the index. Writes apply to the in memory state
// immediately and are buffered as journal commands, commit lands them in the
// artifact together and a failed callback undoes them together.
type Bulk struct {
	readOnly bool
	e        *engine
	ctx      context.Context
	cmds     []serializable
	undo     []func()
}

func (b *Bulk) Add(key, text string, appliers ...MetaApplier) error {
	if b.readOnly {
		return ErrBulkIsReadOnly
	}

	return b.put(key, text, false, appliers)
}

func (b *Bulk) Upsert(key, text string, appliers ...MetaApplier) error {
	if b.readOnly {
		return ErrBulkIsReadOnly
	}

	return b.put(key, text, true, appliers)
}

func (b *Bulk) put(key, text string, replace bool, appliers []MetaApplier) error {
	norm := corpus.Normalize(text, b.e.cfg.KeepNewlines)

	return b.putFingerprints(key, shingle.Split(norm, b.e.cfg.ShingleSize), replace, appliers)
}

func (b *Bulk) putFingerprints(key string, fps []uint64, replace bool, appliers []MetaApplier) error {
	if b.readOnly {
		return ErrBulkIsReadOnly
	}

	rows, fresh, err := b.e.vocab.Grow(fps)
	if err != nil {
		return err
	}

	ent := newDocEntry(key, rows, b.e.family.Sign(rows), nil)
	for _, applier := range appliers {
		if err := applier.applyTo(ent); err != nil {
			return err
		}
	}

	prior, err := b.e.putUnderLock(ent, replace)
	if err != nil {
		return err
	}

	// fresh vocabulary rows survive a rollback as orphans, vacuum collects them
	if len(fresh) > 0 {
		b.cmds = append(b.cmds, &vocabCmd{pairs: fresh})
	}
	b.cmds = append(b.cmds, ent)

	if prior != nil {
		b.undo = append(b.undo, func() { _, _ = b.e.putUnderLock(prior, true) })
	} else {
		b.undo = append(b.undo, func() { _, _ = b.e.removeUnderLock(ent.key) })
	}

	return nil
}

func (b *Bulk) Remove(keys ...string) error {
	if b.readOnly {
		return ErrBulkIsReadOnly
	}

	for _, k := range keys {
		prior, err := b.e.removeUnderLock(newDocKey(k))
		if err != nil {
			return err
		}

		b.cmds = append(b.cmds, &deleteCmd{key: prior.key})
		b.undo = append(b.undo, func() { _, _ = b.e.putUnderLock(prior, true) })
	}

	return nil
}

func (b *Bulk) Get(key string) (*DocInfo, error) {
	ent, err := b.e.findByKeyUnderLock(key)
	if err != nil {
		return nil, err
	}

	return newDocInfoFromEntry(ent), nil
}

func (b *Bulk) Has(key string) bool {
	_, err := b.e.findByKeyUnderLock(key)
	return err == nil
}

func (b *Bulk) Count() int {
	return b.e.Count()
}

func (b *Bulk) Stats() Stats {
	return b.e.statsUnderLock()
}

func (b *Bulk) Find(q *queryOptions, dest *[]*DocInfo) error {
	if q == nil {
		q = Q()
	}

	return b.e.scanUnderLock(b.ctx, q, func(ent *docEntry) bool {
		*dest = append(*dest, newDocInfoFromEntry(ent))
		return true
	})
}

func (b *Bulk) Keys(q *queryOptions) ([]string, error) {
	if q == nil {
		q = Q()
	}

	var keys []string
	if err := b.e.scanUnderLock(b.ctx, q, func(ent *docEntry) bool {
		keys = append(keys, ent.key.String())
		return true
	}); err != nil {
		return nil, err
	}

	return keys, nil
}

// Match scores arbitrary text against the corpus. The probe itself is not
// indexed, its shingles resolve against the existing vocabulary only.
func (b *Bulk) Match(text string, q *queryOptions) (*MatchSet, error) {
	if q == nil {
		q = Q()
	}

	norm := corpus.Normalize(text, b.e.cfg.KeepNewlines)
	fps := shingle.Split(norm, b.e.cfg.ShingleSize)
	rows := b.e.vocab.Lookup(fps)

	return b.match(rows, len(fps), b.e.family.Sign(rows), "", q)
}

// MatchKey scores an indexed document against the rest of the corpus. The
// document never matches itself.
func (b *Bulk) MatchKey(key string, q *queryOptions) (*MatchSet, error) {
	if q == nil {
		q = Q()
	}

	ent, err := b.e.findByKeyUnderLock(key)
	if err != nil {
		return nil, err
	}

	return b.match(ent.rows, len(ent.rows), ent.sig, ent.key.String(), q)
}

func (b *Bulk) match(rows []uint32, probeLen int, sig []uint32, selfKey string, q *queryOptions) (*MatchSet, error) {
	ck := matchCacheKey(rows, probeLen, selfKey, q)
	if cached, ok := b.e.matches.Get(ck); ok {
		if ms, ok := cached.(*MatchSet); ok {
			return ms.clone(), nil
		}
	}

	ms, err := b.e.matchUnderLock(rows, probeLen, sig, selfKey, q)
	if err != nil {
		return nil, err
	}

	b.e.matches.Add(ck, ms.clone(), ms.weight())

	return ms, nil
}

func (b *Bulk) Evaluate(threshold float64, q *queryOptions) ([]Report, error) {
	if q == nil {
		q = Q()
	}

	return b.e.evaluateUnderLock(b.ctx, threshold, q)
}

func (b *Bulk) commit() error {
	if len(b.cmds) == 0 {
		return nil
	}

	if b.e.persistence != nil {
		if err := b.e.persistence.save(b.cmds); err != nil {
			return err
		}
	}

	b.cmds = nil
	b.undo = nil

	return nil
}

func (b *Bulk) rollback() {
	for i := len(b.undo) - 1; i >= 0; i-- {
		b.undo[i]()
	}

	b.cmds = nil
	b.undo = nil
}
