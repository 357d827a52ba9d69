package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/san-kum/physim/internal/compute"
	"github.com/san-kum/physim/internal/config"
	"github.com/san-kum/physim/internal/engine"
	"github.com/san-kum/physim/internal/experiment"
	"github.com/san-kum/physim/internal/physiology"
	"github.com/san-kum/physim/internal/storage"
	"github.com/san-kum/physim/internal/telemetry"
	"github.com/san-kum/physim/internal/viz"
)

// loadConfig layers defaults, a preset, a config file and explicit flags,
// in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("batch") {
		cfg.Batch = batch
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	return cfg, cfg.Validate()
}

func openStore(ctx context.Context) (storage.Store, error) {
	path := dataDir
	if storeKind == "sqlite" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, err
		}
		path = filepath.Join(dataDir, "runs.db")
	}
	st, err := storage.Open(storeKind, path)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func recordKeys(cfg *config.Config, exp *experiment.Experiment) []string {
	if len(cfg.Record) > 0 {
		return cfg.Record
	}
	return exp.Engine().Keys()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := newLogger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var opts []engine.Option
	if metricsAddr != "" {
		m := telemetry.NewMetrics(cfg.Record...)
		opts = append(opts, engine.WithObserver(m))
		srv := &http.Server{Addr: metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server")
			}
		}()
		defer srv.Close()
		log.Info().Str("addr", metricsAddr).Msg("serving metrics")
	}
	if traceSpans {
		tr, err := telemetry.NewTracer(os.Stderr, "physim", true)
		if err != nil {
			return err
		}
		defer func() { _ = tr.Shutdown(context.Background()) }()
		opts = append(opts, engine.WithTracer(tr.Tracer()))
	}

	registry := experiment.NewRegistry()
	exp, err := experiment.New(cfg, registry, log, opts...)
	if err != nil {
		return err
	}
	defer exp.Close()

	keys := recordKeys(cfg, exp)
	for _, m := range registry.DefaultMetrics(keys) {
		exp.AddMetric(m)
	}

	fmt.Printf("running %s (%d steps, dt=%gs, backend %s)...\n", cfg.Name, cfg.Steps, cfg.Dt, exp.Engine().Backend().Name())
	start := time.Now()
	result, runErr := exp.Run(ctx)
	elapsed := time.Since(start)

	runID := ""
	if !noSave {
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		meta := storage.RunMetadata{
			Name:       cfg.Name,
			Seed:       cfg.Seed,
			Dt:         cfg.Dt,
			Steps:      cfg.Steps,
			StepsTaken: result.StepsTaken,
			Batch:      cfg.Batch,
			Backend:    exp.Engine().Backend().Name(),
			Solvers:    cfg.Solvers,
			Couplers:   cfg.Couplers,
			Keys:       keys,
			Metrics:    result.Metrics,
		}
		if runErr != nil {
			meta.Error = runErr.Error()
		}
		if runID, err = st.Save(ctx, meta, result.Snapshots); err != nil {
			return err
		}
	}

	fmt.Printf("completed %d steps in %v\n", result.StepsTaken, elapsed)
	if runID != "" {
		fmt.Printf("run id: %s\n", runID)
	}
	printMetrics(os.Stdout, result.Metrics)
	for _, lab := range result.Labs {
		fmt.Printf("\nlab at step %d, lane %d:\n", lab.Step, lab.Lane)
		printMetrics(os.Stdout, lab.Values)
	}
	return runErr
}

func printMetrics(w io.Writer, values map[string]float64) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%.4f\n", name, values[name])
	}
	tw.Flush()
}

func benchBackends(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	registry := experiment.NewRegistry()
	batches := []int{0, 16, 256, 1024}
	n, err := cmd.Flags().GetInt("steps")
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking full physiology library, %d steps per case\n\n", n)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tBATCH\tTIME\tSTEPS/SEC\tLANE-STEPS/SEC")

	for _, name := range compute.Names() {
		for _, b := range batches {
			cfg := config.DefaultConfig()
			cfg.Name = "bench"
			cfg.Steps = n
			cfg.Batch = b
			cfg.Backend = name
			cfg.Workers = workers

			exp, err := experiment.New(cfg, registry, zerolog.Nop())
			if err != nil {
				return err
			}
			start := time.Now()
			result, err := exp.Run(ctx)
			elapsed := time.Since(start)
			exp.Close()
			if err != nil {
				return err
			}

			lanes := max(b, 1)
			perSec := float64(result.StepsTaken) / elapsed.Seconds()
			fmt.Fprintf(w, "%s\t%d\t%v\t%.0f\t%.0f\n", name, b, elapsed.Round(time.Microsecond), perSec, perSec*float64(lanes))
		}
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSTEPS\tDT\tBATCH\tBACKEND\tSTATUS")
	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "halted"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%gs\t%d\t%s\t%s\n",
			run.ID,
			run.Name,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.StepsTaken, run.Steps,
			run.Dt,
			run.Batch,
			run.Backend,
			status,
		)
	}
	return w.Flush()
}

func loadRun(ctx context.Context, runID string) (*storage.RunMetadata, *storage.Series, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()

	meta, err := st.Load(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	series, err := st.LoadSeries(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, series, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(series.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	keys := plotKeys
	if len(keys) == 0 {
		keys = series.Keys[:min(6, len(series.Keys))]
	}

	fmt.Printf("run: %s (%s)\n", meta.ID, meta.Name)
	fmt.Printf("steps: %d  lanes: %d\n\n", meta.StepsTaken, series.Lanes())

	for _, key := range keys {
		_, data, err := series.Column(key, plotLane)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("lane %d has no samples", plotLane)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s (lane %d)", key, plotLane)),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func output() (io.Writer, func() error, error) {
	if outFile == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(w, *meta, series); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, series, err := loadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := storage.ExportCSV(w, series); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tSTEPS\tDT\tOVERRIDES\tINTERVENTIONS")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		actions := make([]string, len(p.Interventions))
		for i, iv := range p.Interventions {
			actions[i] = fmt.Sprintf("%s@%d", iv.Action, iv.Step)
		}
		fmt.Fprintf(w, "%s\t%d\t%gs\t%d\t%s\n", name, p.Steps, p.Dt, len(p.Initial), strings.Join(actions, " "))
	}
	return w.Flush()
}

func listModules(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()

	fmt.Println("solvers:")
	for _, s := range physiology.Solvers() {
		fmt.Printf("  %-14s owns %s\n", s.Name(), strings.Join(s.OwnedKeys(), ", "))
	}
	fmt.Println("\ncouplers:")
	for _, c := range physiology.Couplers() {
		fmt.Printf("  %-20s %s -> %s\n", c.Name(), strings.Join(c.InputKeys(), ", "), strings.Join(c.OutputKeys(), ", "))
	}
	fmt.Println("\nactions:")
	for _, name := range registry.ListActions() {
		a, _ := registry.Action(name)
		fmt.Printf("  %-18s %s\n", name, a.Description())
	}

	eng, err := engine.New(physiology.Solvers(), physiology.Couplers(), config.DefaultDt)
	if err != nil {
		return err
	}
	defer eng.Close()
	fmt.Println("\nplan:")
	fmt.Print(eng.Plan().String())
	fmt.Printf("\nbackends: %s\n", strings.Join(compute.Names(), ", "))
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	exp, err := experiment.New(cfg, experiment.NewRegistry(), zerolog.Nop())
	if err != nil {
		return err
	}
	defer exp.Close()

	interval := time.Second / time.Duration(max(frameRate, 1))
	return viz.RunMonitor(viz.NewMonitor(cmd.Context(), exp, interval))
}
