// Command verityctl compiles and runs verification campaigns against a
// specification document, and exposes a live dashboard and a
// file-watching mode over the engine's compile/run/findings/coverage/
// analytics contract.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"verityengine/internal/logging"
)

var (
	verbose    bool
	configPath string
	memoryPath string
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "verityctl",
	Short: "verityctl drives specification-based verification campaigns",
	Long: `verityctl compiles a protocol/model specification into a verification
campaign, drives SAT-seeded adaptive traversal against a device under test,
and reports findings, coverage, and campaign analytics.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		if err := logging.Initialize(verbose, !verbose); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize engine logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to an engine config YAML file")
	rootCmd.PersistentFlags().StringVar(&memoryPath, "memory", ".verity/memory.db", "cross-campaign memory database path")

	runCmd.Flags().DurationVar(&runWallTime, "walltime", 30*time.Second, "campaign wall-time budget")
	runCmd.Flags().IntVar(&runIterations, "iterations", 1000, "traversal passes per thread (0 = unbounded)")
	runCmd.Flags().IntVar(&runFindingsLimit, "findings-limit", 0, "stop after this many findings (0 = unbounded)")
	runCmd.Flags().IntVar(&runThreads, "threads", 1, "concurrent traversal threads")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 1, "deterministic global seed")
	runCmd.Flags().StringVar(&runScriptDir, "scripts", "", "directory of yaegi DUT scripts (empty = model-only executor)")
	runCmd.Flags().BoolVar(&runDashboard, "dashboard", false, "launch a live dashboard while the campaign runs")

	watchCmd.Flags().DurationVar(&runWallTime, "walltime", 30*time.Second, "campaign wall-time budget per re-run")
	watchCmd.Flags().IntVar(&runIterations, "iterations", 1000, "traversal passes per thread (0 = unbounded)")
	watchCmd.Flags().IntVar(&runThreads, "threads", 1, "concurrent traversal threads")
	watchCmd.Flags().StringVar(&runScriptDir, "scripts", "", "directory of yaegi DUT scripts (empty = model-only executor)")

	rootCmd.AddCommand(compileCmd, runCmd, findingsCmd, coverageCmd, analyticsCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
