package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/denismitr/twindex"
)

var (
	indexExt     string
	indexJSON    []string
	indexKeepNL  bool
	indexWorkers int
)

var indexCmd = &cobra.Command{
	Use:   "index [corpus-dir]",
	Short: "Index every document under a corpus directory",
	Long: `Walks the corpus directory recursively and upserts every matching file
into the artifact. Relative slash separated paths become document keys, so
re-indexing the same corpus replaces documents instead of duplicating them.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexExt, "ext", "", "file extension filter (default .txt)")
	indexCmd.Flags().StringSliceVar(&indexJSON, "json-path", nil, "json fields to index for .json documents")
	indexCmd.Flags().BoolVar(&indexKeepNL, "keep-newlines", false, "keep line boundaries when normalizing")
	indexCmd.Flags().IntVar(&indexWorkers, "workers", 0, "parallel corpus readers")
}

func runIndex(cmd *cobra.Command, args []string) (err error) {
	cfg := fileCfg.indexConfig()
	if cmd.Flags().Changed("ext") {
		cfg.Ext = indexExt
	}
	if cmd.Flags().Changed("json-path") {
		cfg.JSONPaths = indexJSON
	}
	if cmd.Flags().Changed("keep-newlines") {
		cfg.KeepNewlines = indexKeepNL
	}
	if cmd.Flags().Changed("workers") {
		cfg.IngestWorkers = indexWorkers
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

	start := time.Now()
	n, err := x.AddDir(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	st, err := x.Stats()
	if err != nil {
		return err
	}

	logger.Info("corpus indexed",
		zap.String("artifact", artifact),
		zap.String("corpus", args[0]),
		zap.Int("documents", n),
		zap.Int("vocabulary", st.VocabSize),
		zap.Duration("took", time.Since(start)),
	)

	fmt.Printf("indexed %d documents from %s\n", n, args[0])
	fmt.Printf("corpus now holds %d documents (%d empty), %d distinct shingles\n",
		st.Documents, st.EmptyDocuments, st.VocabSize)

	return nil
}
