package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/denismitr/twindex"
)

// version is stamped by the linker on release builds.
var version = "dev"

var (
	verbose  bool
	artifact string
	cfgPath  string

	fileCfg *fileConfig

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "twindex",
	Short: "twindex - embedded near duplicate document index",
	Long: `twindex maintains a MinHash/LSH index of a document corpus and answers
near duplicate queries against it.

Documents are normalized, cut into character shingles and folded into compact
signatures. Banding turns the signatures into a candidate lookup that stays
fast while the corpus grows. The index lives in a single artifact file next
to your data.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}

		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		fileCfg, err = loadFileConfig(cfgPath)
		if err != nil {
			// the default config file is optional, a named one is not
			if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
				fileCfg = &fileConfig{}
				return nil
			}
			return err
		}

		if fileCfg.Artifact != "" && !cmd.Flags().Changed("artifact") {
			artifact = fileCfg.Artifact
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&artifact, "artifact", "a", "twindex.twx", "index artifact file")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", ".twindex.yml", "configuration file")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(vacuumCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
}

func openIndex() (*twindex.Index, twindex.Closer, error) {
	return twindex.Open(artifact, fileCfg.indexConfig())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
