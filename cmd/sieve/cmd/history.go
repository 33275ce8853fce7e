package cmd

import (
	"fmt"
	"math"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/prime-sieve/internal/repository"
	"github.com/prime-sieve/pkg/model"
)

var (
	historyLimit int
	historyMode  string
	historySince time.Duration
	historyPrune time.Duration
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long: `List the runs recorded in the history database, newest first.

History is kept only when database.enabled is set in the configuration
(or SIEVE_DATABASE_ENABLED=true).`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list (0 = all)")
	historyCmd.Flags().StringVar(&historyMode, "mode", "", "Only list runs of this mode: generate, count, verify")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "Only list runs newer than this age, e.g. 24h")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "Delete runs older than this age before listing")

	binName := BinName()
	historyCmd.Example = `  # Show the last 20 runs
  ` + binName + ` history

  # Show today's count runs
  ` + binName + ` history --mode count --since 24h

  # Drop runs older than a week
  ` + binName + ` history --prune 168h -n 0`
}

func runHistory(cmd *cobra.Command, args []string) error {
	filter := repository.RunFilter{Limit: historyLimit}
	if historyMode != "" {
		mode, ok := model.ParseRunMode(historyMode)
		if !ok {
			return fmt.Errorf("invalid mode: %q (valid: generate, count, verify)", historyMode)
		}
		filter.Mode = &mode
	}
	now := time.Now()
	if historySince > 0 {
		filter.Since = now.Add(-historySince)
	}

	r, err := getRunner(cmd)
	if err != nil {
		return err
	}
	if historyPrune > 0 {
		n, err := r.Prune(cmd.Context(), now.Add(-historyPrune))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d runs\n", n)
	}

	runs, err := r.History(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tMODE\tBOUND\tCOUNT\tLARGEST\tWINDOWS\tWORKERS\tDURATION\tRESULT")
	for _, run := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			run.ID,
			humanize.RelTime(run.CreateTime, now, "ago", "from now"),
			run.Mode,
			comma(run.Bound),
			comma(run.Count),
			largest(run),
			run.Windows,
			run.Workers,
			run.Duration.Round(time.Millisecond),
			outcome(run),
		)
	}
	return tw.Flush()
}

func comma(v uint64) string {
	if v > math.MaxInt64 {
		return strconv.FormatUint(v, 10)
	}
	return humanize.Comma(int64(v))
}

func largest(run *model.RunRecord) string {
	if run.Largest == 0 {
		return "-"
	}
	return strconv.FormatUint(run.Largest, 10)
}

func outcome(run *model.RunRecord) string {
	switch {
	case run.Verified == nil:
		return "-"
	case *run.Verified:
		return "ok"
	default:
		return "MISMATCH"
	}
}
