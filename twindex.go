package twindex

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/denismitr/twindex/internal/corpus"
	"github.com/denismitr/twindex/internal/shingle"
)

// Index is a near duplicate document index. Documents are reduced to shingle
// sets, signed with minhash and banded for candidate lookup, matching never
// compares a probe against the whole corpus.
type Index struct {
	e *engine
}

type UserCallback func(b *Bulk) error

type Closer func() error

func NullCloser() error { return nil }

// Open loads or creates the artifact at path and replays it into memory.
// Pass InMemory to skip persistence entirely.
func Open(path string, cfgs ...*Config) (*Index, Closer, error) {
	cfg := &Config{}
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}

	e, err := newEngine(path, cfg)
	if err != nil {
		return nil, NullCloser, err
	}

	if err := e.init(); err != nil {
		return nil, NullCloser, err
	}

	x := Index{e: e}

	return &x, x.close, nil
}

func (x *Index) close() error {
	return x.e.close()
}

func (x *Index) View(ctx context.Context, cb UserCallback) error {
	x.e.mu.RLock()
	defer x.e.mu.RUnlock()

	if x.e.closed {
		return ErrIndexAlreadyClosed
	}

	b := Bulk{e: x.e, ctx: ctx, readOnly: true}
	if err := cb(&b); err != nil {
		return errors.Wrap(err, "index read failed")
	}

	return nil
}

func (x *Index) Update(ctx context.Context, cb UserCallback) error {
	x.e.mu.Lock()
	defer x.e.mu.Unlock()

	if x.e.closed {
		return ErrIndexAlreadyClosed
	}

	b := Bulk{e: x.e, ctx: ctx}
	if err := cb(&b); err != nil {
		b.rollback()
		return errors.Wrap(err, "index write failed. rolled back")
	}

	if err := b.commit(); err != nil {
		b.rollback()
		return err
	}

	return nil
}

// Add indexes text under key, failing when the key is taken.
func (x *Index) Add(ctx context.Context, key, text string, appliers ...MetaApplier) error {
	return x.Update(ctx, func(b *Bulk) error {
		return b.Add(key, text, appliers...)
	})
}

// Upsert indexes text under key, replacing any previous generation.
func (x *Index) Upsert(ctx context.Context, key, text string, appliers ...MetaApplier) error {
	return x.Update(ctx, func(b *Bulk) error {
		return b.Upsert(key, text, appliers...)
	})
}

func (x *Index) Remove(ctx context.Context, keys ...string) error {
	return x.Update(ctx, func(b *Bulk) error {
		return b.Remove(keys...)
	})
}

// AddFile indexes a single document from disk under key. JSON files are
// reduced to the configured paths first.
func (x *Index) AddFile(ctx context.Context, key, path string) error {
	text, size, err := corpus.Load(path, x.e.cfg.JSONPaths)
	if err != nil {
		return err
	}

	return x.Update(ctx, func(b *Bulk) error {
		return b.Upsert(key, text, M{"source": path, "bytes": int(size)})
	})
}

type preparedDoc struct {
	key  string
	fps  []uint64
	meta M
}

// AddDir walks root, reads every file matching the configured extension and
// upserts it under its slash separated relative path. Reading and
// fingerprinting run on a bounded worker group, the index itself is touched
// by a single writer so journal replay order stays deterministic.
func (x *Index) AddDir(ctx context.Context, root string) (int, error) {
	entries, err := corpus.List(root, x.e.cfg.Ext)
	if err != nil {
		return 0, err
	}

	if len(entries) == 0 {
		return 0, nil
	}

	prepared := make([]preparedDoc, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.e.cfg.IngestWorkers)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			text, size, err := corpus.Load(entry.Path, x.e.cfg.JSONPaths)
			if err != nil {
				return err
			}

			norm := corpus.Normalize(text, x.e.cfg.KeepNewlines)
			prepared[i] = preparedDoc{
				key:  entry.Key,
				fps:  shingle.Split(norm, x.e.cfg.ShingleSize),
				meta: M{"source": entry.Path, "bytes": int(size)},
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	err = x.Update(ctx, func(b *Bulk) error {
		for i := range prepared {
			p := &prepared[i]
			if err := b.putFingerprints(p.key, p.fps, true, []MetaApplier{p.meta}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(prepared), nil
}

// Match scores text against the corpus and returns ranked matches.
func (x *Index) Match(ctx context.Context, text string, q *queryOptions) (*MatchSet, error) {
	var ms *MatchSet
	err := x.View(ctx, func(b *Bulk) error {
		var err error
		ms, err = b.Match(text, q)
		return err
	})

	return ms, err
}

// MatchKey scores an already indexed document against the rest of the corpus.
func (x *Index) MatchKey(ctx context.Context, key string, q *queryOptions) (*MatchSet, error) {
	var ms *MatchSet
	err := x.View(ctx, func(b *Bulk) error {
		var err error
		ms, err = b.MatchKey(key, q)
		return err
	})

	return ms, err
}

// MatchFile scores a document from disk without indexing it.
func (x *Index) MatchFile(ctx context.Context, path string, q *queryOptions) (*MatchSet, error) {
	text, _, err := corpus.Load(path, x.e.cfg.JSONPaths)
	if err != nil {
		return nil, err
	}

	return x.Match(ctx, text, q)
}

// Evaluate grades candidate retrieval against exhaustive pairwise scoring
// and reports precision and recall per document.
func (x *Index) Evaluate(ctx context.Context, threshold float64, q *queryOptions) ([]Report, error) {
	var reports []Report
	err := x.View(ctx, func(b *Bulk) error {
		var err error
		reports, err = b.Evaluate(threshold, q)
		return err
	})

	return reports, err
}

func (x *Index) Document(key string) (*DocInfo, error) {
	x.e.mu.RLock()
	defer x.e.mu.RUnlock()

	if x.e.closed {
		return nil, ErrIndexAlreadyClosed
	}

	ent, err := x.e.findByKeyUnderLock(key)
	if err != nil {
		return nil, err
	}

	return newDocInfoFromEntry(ent), nil
}

func (x *Index) Has(key string) bool {
	x.e.mu.RLock()
	defer x.e.mu.RUnlock()

	if x.e.closed {
		return false
	}

	_, err := x.e.findByKeyUnderLock(key)

	return err == nil
}

func (x *Index) Count() int {
	x.e.mu.RLock()
	defer x.e.mu.RUnlock()

	if x.e.closed {
		return 0
	}

	return x.e.Count()
}

func (x *Index) VocabSize() int {
	x.e.mu.RLock()
	defer x.e.mu.RUnlock()

	if x.e.closed {
		return 0
	}

	return x.e.vocab.Len()
}

func (x *Index) Stats() (Stats, error) {
	x.e.mu.RLock()
	defer x.e.mu.RUnlock()

	if x.e.closed {
		return Stats{}, ErrIndexAlreadyClosed
	}

	return x.e.statsUnderLock(), nil
}

func (x *Index) Keys(ctx context.Context, q *queryOptions) ([]string, error) {
	var keys []string
	err := x.View(ctx, func(b *Bulk) error {
		var err error
		keys, err = b.Keys(q)
		return err
	})

	return keys, err
}

// Vacuum drops orphaned vocabulary rows and rewrites the artifact as a
// minimal snapshot.
func (x *Index) Vacuum(ctx context.Context) error {
	x.e.mu.Lock()
	defer x.e.mu.Unlock()

	if x.e.closed {
		return ErrIndexAlreadyClosed
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return x.e.runVacuumUnderLock()
}

// ExportTo writes a gzip compressed snapshot of the index to dst. Open
// inflates such snapshots transparently.
func (x *Index) ExportTo(dst string) error {
	x.e.mu.RLock()
	defer x.e.mu.RUnlock()

	if x.e.closed {
		return ErrIndexAlreadyClosed
	}

	rs, err := x.e.snapshotSerializer()
	if err != nil {
		return err
	}

	return exportSnapshot(dst, rs)
}
