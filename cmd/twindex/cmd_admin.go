package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the artifact holds",
	RunE:  runStatus,
}

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Consolidate the artifact and drop orphaned vocabulary",
	RunE:  runVacuum,
}

var exportCmd = &cobra.Command{
	Use:   "export [destination]",
	Short: "Write a compressed snapshot of the artifact",
	Long: `Exports the current index state as a gzip compressed snapshot. Opening
the snapshot later inflates it back into a plain artifact transparently.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runStatus(cmd *cobra.Command, args []string) (err error) {
	x, closer, err := openIndex()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	st, err := x.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("artifact:        %s\n", artifact)
	fmt.Printf("build:           %s\n", st.Build)
	fmt.Printf("documents:       %d (%d empty)\n", st.Documents, st.EmptyDocuments)
	fmt.Printf("vocabulary:      %d distinct shingles\n", st.VocabSize)
	fmt.Printf("fingerprinting:  k=%d, %d hashes, %d bands of %d rows, seed %d\n",
		st.ShingleSize, st.Hashes, st.Bands, st.BandRows, st.Seed)

	return nil
}

func runVacuum(cmd *cobra.Command, args []string) (err error) {
	x, closer, err := openIndex()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	before := x.VocabSize()
	start := time.Now()

	if err := x.Vacuum(cmd.Context()); err != nil {
		return err
	}

	after := x.VocabSize()
	logger.Info("artifact vacuumed",
		zap.String("artifact", artifact),
		zap.Int("vocabulary_before", before),
		zap.Int("vocabulary_after", after),
		zap.Duration("took", time.Since(start)),
	)

	fmt.Printf("vacuumed %s, vocabulary %d -> %d\n", artifact, before, after)

	return nil
}

func runExport(cmd *cobra.Command, args []string) (err error) {
	x, closer, err := openIndex()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := x.ExportTo(args[0]); err != nil {
		return err
	}

	fmt.Printf("exported %s to %s\n", artifact, args[0])

	return nil
}
