package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denismitr/twindex"
)

func TestLoadFileConfig(t *testing.T) {
	t.Run("full config maps into the index configuration", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), ".twindex.yml")
		body := `artifact: corpus.twx
shingle_size: 6
hashes: 64
band_rows: 4
seed: 9
ext: .md
json_paths: [title, body]
keep_newlines: true
ingest_workers: 2
persistence: async
match:
  metric: cosine
  limit: 5
  threshold: 0.8
`
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))

		fc, err := loadFileConfig(p)
		require.NoError(t, err)

		assert.Equal(t, "corpus.twx", fc.Artifact)
		assert.Equal(t, "cosine", fc.Match.Metric)
		assert.Equal(t, 5, fc.Match.Limit)
		assert.InDelta(t, 0.8, fc.Match.Threshold, 1e-9)
		assert.Equal(t, ".md", fc.ext())

		cfg := fc.indexConfig()
		assert.Equal(t, 6, cfg.ShingleSize)
		assert.Equal(t, 64, cfg.Hashes)
		assert.Equal(t, 4, cfg.BandRows)
		assert.Equal(t, int64(9), cfg.Seed)
		assert.Equal(t, ".md", cfg.Ext)
		assert.Equal(t, []string{"title", "body"}, cfg.JSONPaths)
		assert.True(t, cfg.KeepNewlines)
		assert.Equal(t, 2, cfg.IngestWorkers)
		assert.Equal(t, twindex.Async, cfg.PersistenceStrategy)
	})

	t.Run("empty config leaves the defaults to the engine", func(t *testing.T) {
		var fc fileConfig

		cfg := fc.indexConfig()
		assert.Zero(t, cfg.ShingleSize)
		assert.Empty(t, cfg.PersistenceStrategy)
		assert.Equal(t, ".txt", fc.ext())
	})

	t.Run("missing file fails with os.ErrNotExist", func(t *testing.T) {
		_, err := loadFileConfig(filepath.Join(t.TempDir(), "nope.yml"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("malformed yaml fails", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "broken.yml")
		require.NoError(t, os.WriteFile(p, []byte("artifact: [\n"), 0644))

		_, err := loadFileConfig(p)
		require.Error(t, err)
	})
}
