package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/denismitr/twindex"
)

var watchExt string

var watchCmd = &cobra.Command{
	Use:   "watch [corpus-dir]",
	Short: "Keep the index in sync with a corpus directory",
	Long: `Performs a full index of the corpus directory, then watches it for
changes. Created and modified documents are re-indexed after a short
debounce, removed documents leave the index. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchExt, "ext", "", "file extension filter (default .txt)")
}

func runWatch(cmd *cobra.Command, args []string) (err error) {
	cfg := fileCfg.indexConfig()
	ext := fileCfg.ext()
	if cmd.Flags().Changed("ext") {
		cfg.Ext = watchExt
		ext = watchExt
	}

	x, closer, err := twindex.Open(artifact, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	n, err := x.AddDir(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	logger.Info("initial sync finished", zap.String("corpus", args[0]), zap.Int("documents", n))
	fmt.Printf("watching %s, %d documents indexed\n", args[0], n)

	cw, err := newCorpusWatcher(x, args[0], ext)
	if err != nil {
		return err
	}

	return cw.run(cmd.Context())
}

// corpusWatcher mirrors filesystem changes under root into the index. Rapid
// rewrites of the same file collapse into one upsert through the pending map.
type corpusWatcher struct {
	fsw      *fsnotify.Watcher
	x        *twindex.Index
	root     string
	ext      string
	debounce time.Duration
	pending  map[string]time.Time
}

func newCorpusWatcher(x *twindex.Index, root, ext string) (*corpusWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	cw := &corpusWatcher{
		fsw:      fsw,
		x:        x,
		root:     root,
		ext:      ext,
		debounce: 500 * time.Millisecond,
		pending:  make(map[string]time.Time),
	}

	if err := cw.watchRecursively(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return cw, nil
}

func (cw *corpusWatcher) watchRecursively(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if err := cw.fsw.Add(path); err != nil {
				return fmt.Errorf("could not watch %s: %w", path, err)
			}
		}

		return nil
	})
}

func (cw *corpusWatcher) run(ctx context.Context) error {
	defer func() {
		_ = cw.fsw.Close()
	}()

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-cw.fsw.Events:
			if !ok {
				return nil
			}
			cw.handleEvent(event)

		case werr, ok := <-cw.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(werr))

		case <-tick.C:
			cw.flushPending(ctx)
		}
	}
}

func (cw *corpusWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := cw.watchRecursively(event.Name); err != nil {
				logger.Warn("could not watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, cw.ext) {
		return
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		cw.pending[event.Name] = time.Now()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(cw.pending, event.Name)
		cw.removeDoc(event.Name)
	}
}

func (cw *corpusWatcher) flushPending(ctx context.Context) {
	now := time.Now()
	for path, at := range cw.pending {
		if now.Sub(at) < cw.debounce {
			continue
		}

		delete(cw.pending, path)
		cw.indexDoc(ctx, path)
	}
}

func (cw *corpusWatcher) key(path string) (string, error) {
	rel, err := filepath.Rel(cw.root, path)
	if err != nil {
		return "", fmt.Errorf("could not resolve %s against %s: %w", path, cw.root, err)
	}
	return filepath.ToSlash(rel), nil
}

func (cw *corpusWatcher) indexDoc(ctx context.Context, path string) {
	key, err := cw.key(path)
	if err != nil {
		logger.Warn("skipping document", zap.Error(err))
		return
	}

	if err := cw.x.AddFile(ctx, key, path); err != nil {
		logger.Warn("could not index document", zap.String("key", key), zap.Error(err))
		return
	}

	logger.Info("document indexed", zap.String("key", key))
}

func (cw *corpusWatcher) removeDoc(path string) {
	key, err := cw.key(path)
	if err != nil {
		logger.Warn("skipping removal", zap.Error(err))
		return
	}

	if err := cw.x.Remove(context.Background(), key); err != nil {
		if errors.Is(err, twindex.ErrKeyDoesNotExist) {
			return
		}
		logger.Warn("could not remove document", zap.String("key", key), zap.Error(err))
		return
	}

	logger.Info("document removed", zap.String("key", key))
}
