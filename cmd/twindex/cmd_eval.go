package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/denismitr/twindex"
)

var (
	evalThreshold float64
	evalMetric    string
	evalPattern   string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score banding retrieval against exhaustive comparison",
	Long: `For every indexed document, compares what banding retrieves with what an
exhaustive scan of the corpus finds at the given similarity threshold, and
reports per document precision and recall. Documents that retrieve nothing
have no precision; documents with no relevant neighbour have no recall.`,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().Float64VarP(&evalThreshold, "threshold", "t", 0.5, "similarity level that makes a pair relevant")
	evalCmd.Flags().StringVarP(&evalMetric, "metric", "m", string(twindex.Jaccard), "similarity metric: jaccard, cosine or euclid")
	evalCmd.Flags().StringVarP(&evalPattern, "pattern", "p", "", "only evaluate keys matching this pattern")
}

func runEval(cmd *cobra.Command, args []string) (err error) {
	if !cmd.Flags().Changed("metric") && fileCfg.Match.Metric != "" {
		evalMetric = fileCfg.Match.Metric
	}

	x, closer, err := openIndex()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	q := twindex.Q().Metric(twindex.Metric(evalMetric))
	if evalPattern != "" {
		q.Pattern(evalPattern)
	}

	reports, err := x.Evaluate(cmd.Context(), evalThreshold, q)
	if err != nil {
		return err
	}

	if len(reports) == 0 {
		fmt.Println("nothing indexed")
		return nil
	}

	fmt.Printf("%-48s %9s %8s %10s %10s\n", "document", "retrieved", "relevant", "precision", "recall")

	var precisionSum, recallSum float64
	var precisionN, recallN int
	for _, rep := range reports {
		fmt.Printf("%-48s %9d %8d %10s %10s\n",
			rep.Key, rep.Retrieved, rep.Relevant,
			ratio(rep.Precision, rep.PrecisionDefined),
			ratio(rep.Recall, rep.RecallDefined),
		)

		if rep.PrecisionDefined {
			precisionSum += rep.Precision
			precisionN++
		}
		if rep.RecallDefined {
			recallSum += rep.Recall
			recallN++
		}
	}

	fmt.Printf("\nmean precision %s over %d documents, mean recall %s over %d documents\n",
		ratio(precisionSum/float64(max(precisionN, 1)), precisionN > 0), precisionN,
		ratio(recallSum/float64(max(recallN, 1)), recallN > 0), recallN,
	)

	return nil
}

func ratio(v float64, defined bool) string {
	if !defined {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
