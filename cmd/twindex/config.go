package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/denismitr/twindex"
)

// matchDefaults are the query knobs a config file can preset for the match
// and eval commands. Flags given on the command line win over them.
type matchDefaults struct {
	Metric    string  `yaml:"metric"`
	Limit     int     `yaml:"limit"`
	Threshold float64 `yaml:"threshold"`
}

type fileConfig struct {
	Artifact string `yaml:"artifact"`

	// fingerprinting parameters, only honored when the artifact is created
	ShingleSize int   `yaml:"shingle_size"`
	Hashes      int   `yaml:"hashes"`
	BandRows    int   `yaml:"band_rows"`
	Seed        int64 `yaml:"seed"`

	// corpus ingestion
	Ext           string   `yaml:"ext"`
	JSONPaths     []string `yaml:"json_paths"`
	KeepNewlines  bool     `yaml:"keep_newlines"`
	IngestWorkers int      `yaml:"ingest_workers"`

	Persistence string `yaml:"persistence"`

	Match matchDefaults `yaml:"match"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("could not parse config %s: %w", path, err)
	}

	return &fc, nil
}

func (fc *fileConfig) indexConfig() *twindex.Config {
	cfg := &twindex.Config{
		ShingleSize:   fc.ShingleSize,
		Hashes:        fc.Hashes,
		BandRows:      fc.BandRows,
		Seed:          fc.Seed,
		Ext:           fc.Ext,
		JSONPaths:     fc.JSONPaths,
		KeepNewlines:  fc.KeepNewlines,
		IngestWorkers: fc.IngestWorkers,
	}

	if fc.Persistence != "" {
		cfg.PersistenceStrategy = twindex.PersistenceStrategy(fc.Persistence)
	}

	return cfg
}

// ext resolves the corpus extension filter the same way the index engine
// does, so commands that walk the corpus themselves agree with it.
func (fc *fileConfig) ext() string {
	if fc.Ext != "" {
		return fc.Ext
	}
	return ".txt"
}
