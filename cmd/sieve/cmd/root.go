package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prime-sieve/internal/service"
	"github.com/prime-sieve/internal/sieve"
	"github.com/prime-sieve/pkg/config"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/pprof"
	"github.com/prime-sieve/pkg/telemetry"
	"github.com/prime-sieve/pkg/utils"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Output and engine overrides
	outFormat   string
	outCompress string
	outPath     string
	workers     int
	windowSize  uint64

	// Pprof flags
	pprofEnabled  bool
	pprofDir      string
	pprofProfiles string

	// Root command flags
	countOnly bool

	// Per-invocation state, released by teardown
	cfg               *config.Config
	logger            utils.Logger = &utils.NullLogger{}
	runner            *service.Runner
	pprofCollector    *pprof.Collector
	telemetryShutdown telemetry.ShutdownFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "prime-sieve [N]",
	Short: "A parallel segmented sieve of Eratosthenes",
	Long: `prime-sieve lists or counts the primes up to N.

The sieve runs over a mod-30 wheel and spreads the marking of each window
across a pool of workers. Bounds above the window size are processed in
fixed-width windows so memory stays bounded. When N is not given it is read
from standard input.`,
	Args:               cobra.MaximumNArgs(1),
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return teardown() },
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := model.RunModeGenerate
		if countOnly {
			mode = model.RunModeCount
		}
		return runSieve(cmd, args, mode)
	},
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if terr := teardown(); terr != nil && err == nil {
		err = terr
	}
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	if apperrors.IsInvalidBound(err) {
		return 2
	}
	return 1
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file path (default: ./sieve.yaml, ./configs/sieve.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	pf.StringVarP(&outFormat, "format", "f", "text", "Output format: text, json")
	pf.StringVar(&outCompress, "compress", "none", "Output compression: none, gzip, zstd")
	pf.StringVarP(&outPath, "output", "o", "", "Output file (default: stdout)")
	pf.IntVarP(&workers, "workers", "w", 0, "Number of marking workers (0 = number of CPUs)")
	pf.Uint64Var(&windowSize, "window", config.DefaultWindowSize, "Largest bound sieved in one window")

	pf.BoolVar(&pprofEnabled, "pprof", false, "Enable pprof performance profiling")
	pf.StringVar(&pprofDir, "pprof-dir", "./pprof", "Output directory for pprof data")
	pf.StringVar(&pprofProfiles, "pprof-profiles", "cpu,heap", "Comma-separated profile types: cpu,heap,goroutine,block,mutex,allocs")

	rootCmd.Flags().BoolVar(&countOnly, "count", false, "Print the number of primes instead of the list")

	binName := BinName()
	rootCmd.Example = `  # List the primes up to 100
  ` + binName + ` 100

  # Read the bound from standard input
  echo 1000000 | ` + binName + ` --count

  # Write a compressed JSON document
  ` + binName + ` 10_000_000 -f json --compress zstd -o primes.json.zst

  # Profile a large count
  ` + binName + ` count 1000000000 --pprof --pprof-profiles cpu,heap`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}

// setup loads configuration, builds the logger and starts tracing and
// profiling for one invocation.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, loaded)
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	l, err := utils.NewLogger(level, cfg.Log.Output)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "failed to open log output", err)
	}
	logger = l
	utils.SetGlobalLogger(logger)

	shutdown, err := telemetry.Init(cmd.Context())
	if err != nil {
		logger.Warn("Tracing disabled: %v", err)
	} else {
		telemetryShutdown = shutdown
	}

	if pprofEnabled || cfg.Pprof.Enabled {
		pcfg, err := buildPprofConfig()
		if err != nil {
			return err
		}
		collector, err := pprof.NewCollector(pcfg)
		if err != nil {
			return err
		}
		if err := collector.Start(); err != nil {
			return err
		}
		pprofCollector = collector
		logger.Info("pprof collection started (dir: %s)", pcfg.OutputDir)
	}
	return nil
}

// teardown releases everything setup and getRunner acquired. It is safe to
// call more than once.
func teardown() error {
	var firstErr error
	if runner != nil {
		if err := runner.Close(); err != nil {
			firstErr = err
		}
		runner = nil
	}

	if pprofCollector != nil {
		logger.Info("Stopping pprof collection...")
		paths, err := pprofCollector.Stop()
		if err != nil {
			logger.Warn("Failed to stop pprof collector: %v", err)
		}
		for _, p := range paths {
			logger.Info("pprof data saved to: %s", p)
		}
		pprofCollector = nil
	}

	if telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(ctx); err != nil {
			logger.Warn("Failed to flush traces: %v", err)
		}
		telemetryShutdown = nil
	}
	return firstErr
}

// applyFlags overrides configuration values with explicitly set flags.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		c.Output.Format = outFormat
	}
	if flags.Changed("compress") {
		c.Output.Compression = outCompress
	}
	if flags.Changed("output") {
		c.Output.Path = outPath
	}
	if flags.Changed("workers") {
		c.Sieve.Workers = workers
	}
	if flags.Changed("window") {
		c.Sieve.WindowSize = windowSize
	}
	if flags.Changed("pprof-dir") {
		c.Pprof.Dir = pprofDir
	}
	if flags.Changed("pprof-profiles") {
		c.Pprof.Profiles = pprofProfiles
	}
}

// buildPprofConfig builds pprof configuration from the merged settings.
func buildPprofConfig() (*pprof.Config, error) {
	profiles, err := pprof.ParseProfileTypes(cfg.Pprof.Profiles)
	if err != nil {
		return nil, err
	}

	pcfg := pprof.DefaultConfig()
	pcfg.Enabled = true
	pcfg.OutputDir = cfg.Pprof.Dir
	pcfg.Profiles = profiles
	if err := pcfg.Validate(); err != nil {
		return nil, err
	}
	return pcfg, nil
}

// getRunner returns the invocation's runner, creating it on first use.
func getRunner(cmd *cobra.Command) (*service.Runner, error) {
	if runner != nil {
		return runner, nil
	}
	r, err := service.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	r.SetOutput(cmd.OutOrStdout())
	if err := r.Initialize(cmd.Context()); err != nil {
		return nil, err
	}
	runner = r
	return runner, nil
}

// runSieve resolves the bound from args or stdin and runs the sieve.
func runSieve(cmd *cobra.Command, args []string, mode model.RunMode) error {
	var (
		n   uint64
		err error
	)
	if len(args) == 1 {
		n, err = sieve.ParseBound(args[0])
	} else {
		n, err = readBound(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}

	r, err := getRunner(cmd)
	if err != nil {
		return err
	}
	res, err := r.Run(cmd.Context(), n, mode)
	if err != nil {
		return err
	}

	log := GetLogger()
	log.Debug("%s up to %d: %d primes in %dms (%d windows, %d workers)",
		mode, n, res.Count, res.DurationMS, res.Stats.Windows, res.Stats.Workers)
	return nil
}

// readBound prompts on w and reads one line from r.
func readBound(r io.Reader, w io.Writer) (uint64, error) {
	fmt.Fprint(w, "Enter an upper bound: ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, apperrors.Wrap(apperrors.CodeInvalidBound, "failed to read bound", err)
		}
		return 0, apperrors.New(apperrors.CodeInvalidBound, "no bound given")
	}
	return sieve.ParseBound(strings.TrimSpace(scanner.Text()))
}
