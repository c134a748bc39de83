package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/denismitr/twindex"
)

var (
	matchMetric    string
	matchLimit     int
	matchThreshold float64
	matchPattern   string

	thresholdSet bool
)

var matchCmd = &cobra.Command{
	Use:   "match [probe-file]",
	Short: "Find near duplicates of a probe document",
	Long: `Ranks indexed documents against a probe file. With a file argument a
single query runs and the process exits. Without one an interactive loop
reads probe file paths from stdin, one per line, until EXIT.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringVarP(&matchMetric, "metric", "m", string(twindex.Jaccard), "similarity metric: jaccard, cosine or euclid")
	matchCmd.Flags().IntVarP(&matchLimit, "limit", "l", 10, "maximum candidates to report")
	matchCmd.Flags().Float64VarP(&matchThreshold, "threshold", "t", 0, "drop candidates that do not meet this score")
	matchCmd.Flags().StringVarP(&matchPattern, "pattern", "p", "", "only consider keys matching this pattern")
}

func runMatch(cmd *cobra.Command, args []string) (err error) {
	applyMatchDefaults(cmd)

	x, closer, err := openIndex()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if len(args) == 1 {
		return printMatches(cmd.Context(), x, args[0])
	}

	fmt.Println("enter probe file paths, EXIT to quit")

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("probe> ")
		if !sc.Scan() {
			break
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") {
			break
		}

		if perr := printMatches(cmd.Context(), x, line); perr != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", perr)
		}

		if cmd.Context().Err() != nil {
			break
		}
	}

	return sc.Err()
}

func applyMatchDefaults(cmd *cobra.Command) {
	thresholdSet = cmd.Flags().Changed("threshold")

	if !cmd.Flags().Changed("metric") && fileCfg.Match.Metric != "" {
		matchMetric = fileCfg.Match.Metric
	}
	if !cmd.Flags().Changed("limit") && fileCfg.Match.Limit > 0 {
		matchLimit = fileCfg.Match.Limit
	}
	if !thresholdSet && fileCfg.Match.Threshold > 0 {
		matchThreshold = fileCfg.Match.Threshold
		thresholdSet = true
	}
}

func printMatches(ctx context.Context, x *twindex.Index, path string) error {
	q := twindex.Q().Metric(twindex.Metric(matchMetric)).Limit(matchLimit)
	if matchPattern != "" {
		q.Pattern(matchPattern)
	}
	if thresholdSet {
		q.Threshold(matchThreshold)
	}

	start := time.Now()
	ms, err := x.MatchFile(ctx, path, q)
	if err != nil {
		return err
	}

	logger.Debug("probe matched",
		zap.String("probe", path),
		zap.String("metric", string(ms.Metric)),
		zap.Int("candidates", ms.Len()),
		zap.Duration("took", time.Since(start)),
	)

	if ms.Len() == 0 {
		fmt.Println("no candidates")
		return nil
	}

	for _, m := range ms.Matches {
		fmt.Printf("%10.4f  %s\n", m.Score, m.Key)
	}

	return nil
}
