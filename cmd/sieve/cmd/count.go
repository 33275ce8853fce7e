package cmd

import (
	"github.com/spf13/cobra"

	"github.com/prime-sieve/pkg/model"
)

// countCmd represents the count command
var countCmd = &cobra.Command{
	Use:   "count [N]",
	Short: "Count the primes up to N",
	Long: `Count the primes p <= N without materializing them.

Only the base primes up to sqrt(N) are kept; every other survivor is counted
with a popcount over its window. When N is not given it is read from
standard input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSieve(cmd, args, model.RunModeCount)
	},
}

func init() {
	rootCmd.AddCommand(countCmd)

	binName := BinName()
	countCmd.Example = `  # Count the primes below one billion
  ` + binName + ` count 1_000_000_000

  # Count with a smaller window and four workers
  ` + binName + ` count 100000000 --window 1000000 -w 4`
}
