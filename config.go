package twindex

import (
	"time"

	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
)

var ErrConfigInvalid = errors.New("configuration invalid")

const (
	defaultShingleSize = 8
	defaultHashes      = 100
	defaultBandRows    = 4
	defaultSeed        = 1
	defaultExt         = ".txt"
)

const defaultIngestWorkers = 8
const defaultAutoVacuumMinDeletes uint64 = 1000

const minMatchCacheBytes = 4 << 20
const maxMatchCacheBytes = 256 << 20

var defaultAutoVacuumIntervals = 10 * time.Minute
var defaultPersistenceIntervals = 1 * time.Second

type Config struct {
	// fingerprinting parameters, frozen into the artifact on first open
	ShingleSize int
	Hashes      int
	BandRows    int
	Seed        int64

	// corpus ingestion
	Ext           string
	JSONPaths     []string
	KeepNewlines  bool
	IngestWorkers int

	PersistenceStrategy       PersistenceStrategy
	TruncateFileWhenOpen      bool
	AsyncPersistenceIntervals time.Duration
	DisableAutoVacuum         bool
	AutoVacuumOnlyOnClose     bool
	AutoVacuumMinDeletes      uint64
	AutoVacuumIntervals       time.Duration

	DisableMatchCache bool
	MatchCacheBytes   uint64
}

func (cfg *Config) applyTo(e *engine) error {
	if cfg.ShingleSize == 0 {
		cfg.ShingleSize = defaultShingleSize
	}

	if cfg.Hashes == 0 {
		cfg.Hashes = defaultHashes
	}

	if cfg.BandRows == 0 {
		cfg.BandRows = defaultBandRows
	}

	if cfg.Seed == 0 {
		cfg.Seed = defaultSeed
	}

	if cfg.ShingleSize < 2 {
		return errors.Wrapf(ErrConfigInvalid, "shingle size %d is below 2", cfg.ShingleSize)
	}

	if cfg.Hashes < 1 {
		return errors.Wrapf(ErrConfigInvalid, "hash count %d is below 1", cfg.Hashes)
	}

	if cfg.BandRows < 1 || cfg.BandRows > cfg.Hashes {
		return errors.Wrapf(
			ErrConfigInvalid,
			"band rows %d do not fit into %d hashes",
			cfg.BandRows, cfg.Hashes,
		)
	}

	if cfg.Ext == "" {
		cfg.Ext = defaultExt
	}

	if cfg.IngestWorkers < 1 {
		cfg.IngestWorkers = defaultIngestWorkers
	}

	if cfg.PersistenceStrategy == "" {
		cfg.PersistenceStrategy = Sync
	} else if cfg.PersistenceStrategy == Async && cfg.AsyncPersistenceIntervals == 0 {
		cfg.AsyncPersistenceIntervals = defaultPersistenceIntervals
	}

	if cfg.PersistenceStrategy != Sync && cfg.PersistenceStrategy != Async {
		return errors.Wrapf(ErrConfigInvalid, "unknown persistence strategy %s", cfg.PersistenceStrategy)
	}

	if cfg.AutoVacuumIntervals == 0 {
		cfg.AutoVacuumIntervals = defaultAutoVacuumIntervals
	}

	if cfg.AutoVacuumMinDeletes == 0 {
		cfg.AutoVacuumMinDeletes = defaultAutoVacuumMinDeletes
	}

	if cfg.MatchCacheBytes == 0 {
		// between 4MiB and 256MiB, scaled to the machine
		cfg.MatchCacheBytes = memory.TotalMemory() / 256
		if cfg.MatchCacheBytes < minMatchCacheBytes {
			cfg.MatchCacheBytes = minMatchCacheBytes
		}
		if cfg.MatchCacheBytes > maxMatchCacheBytes {
			cfg.MatchCacheBytes = maxMatchCacheBytes
		}
	}

	e.cfg = cfg

	return nil
}
