package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	dataDir     string
	storeKind   string
	logLevel    string
	configFile  string
	preset      string
	dt          float64
	steps       int
	batch       int
	backend     string
	workers     int
	seed        int64
	noSave      bool
	metricsAddr string
	traceSpans  bool
	plotKeys    []string
	plotLane    int
	outFile     string
	frameRate   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "physim",
		Short:         "coupled physiology simulation lab",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".physim", "data directory")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "file", "run store: file or sqlite")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the run")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	runCmd.Flags().BoolVar(&traceSpans, "trace", false, "write OpenTelemetry spans to stderr")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark backends and batch sizes",
		Args:  cobra.NoArgs,
		RunE:  benchBackends,
	}
	benchCmd.Flags().IntVar(&steps, "steps", 200, "steps per case")
	benchCmd.Flags().IntVar(&workers, "workers", 0, "cpu backend workers (0 = all cores)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot recorded keys of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&plotKeys, "key", nil, "keys to plot (default: first six recorded)")
	plotCmd.Flags().IntVar(&plotLane, "lane", 0, "batch lane")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list scenario presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	modulesCmd := &cobra.Command{
		Use:   "modules",
		Short: "list solvers, couplers, actions and the execution plan",
		Args:  cobra.NoArgs,
		RunE:  listModules,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with a live monitor",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 20, "ticks per second")

	rootCmd.AddCommand(runCmd, benchCmd, listCmd, plotCmd, exportJSONCmd, exportCSVCmd, presetsCmd, modulesCmd, liveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "scenario preset")
	cmd.Flags().Float64Var(&dt, "dt", 1.0, "timestep in seconds")
	cmd.Flags().IntVar(&steps, "steps", 500, "number of steps")
	cmd.Flags().IntVar(&batch, "batch", 0, "parallel lanes (0 = scalar)")
	cmd.Flags().StringVar(&backend, "backend", "auto", "execution backend: auto, serial, cpu")
	cmd.Flags().IntVar(&workers, "workers", 0, "cpu backend workers (0 = all cores)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "seed for lane jitter")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newLogger writes human-readable logs to stderr.
func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Logger()
}
