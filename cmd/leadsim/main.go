package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/leadsim/internal/analysis"
	"github.com/san-kum/leadsim/internal/automation"
	"github.com/san-kum/leadsim/internal/config"
	"github.com/san-kum/leadsim/internal/experiment"
	"github.com/san-kum/leadsim/internal/export"
	"github.com/san-kum/leadsim/internal/monitoring"
	"github.com/san-kum/leadsim/internal/optim"
	"github.com/san-kum/leadsim/internal/plant"
	"github.com/san-kum/leadsim/internal/sim"
	"github.com/san-kum/leadsim/internal/storage"
	"github.com/san-kum/leadsim/internal/tracefile"
	"github.com/san-kum/leadsim/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
)

var (
	dataDir string
	verbose bool
	// Config sources
	configFile string
	preset     string
	// Overrides
	controller  string
	kl          float64
	tauP        float64
	tauZ        float64
	maxRate     float64
	mass        float64
	damping     float64
	dt          float64
	steps       int
	setpoint    float64
	disturbance float64
	disturbAt   float64
	// Outputs
	outPath    string
	exportPath string
	save       bool
	inFile     string
	pngPath    string
	htmlPath   string
	// Sweep
	sweepParams []string
	sweepMetric string
	workers     int
	// Live view
	liveFile  string
	frameRate int
	theme     string
)

// main registers the commands and flags and executes the root command. With
// no subcommand it runs the configured loop, writing the trace file.
// It exits the process with status 1 if command execution returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:          "leadsim",
		Short:        "lead compensator closed-loop simulator",
		SilenceUsage: true,
		RunE:         runSimulation,
	}
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if !verbose {
			monitoring.SetLogger(nil)
		}
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", storage.DefaultDir, "data directory for saved runs")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log diagnostics to stderr")
	addConfigFlags(rootCmd)
	addOutputFlags(rootCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the closed loop and write the trace file",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	addOutputFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved run or a trace file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&inFile, "file", tracefile.DefaultPath, "trace file to read when no run id is given")
	plotCmd.Flags().StringVar(&pngPath, "image", "", "write the plots to an image file (.png, .svg, .pdf, .jpg)")
	plotCmd.Flags().StringVar(&htmlPath, "html", "", "write an interactive HTML chart")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "step-response analysis of a saved run or a trace file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&inFile, "file", tracefile.DefaultPath, "trace file to read when no run id is given")

	marginsCmd := &cobra.Command{
		Use:   "margins",
		Short: "gain and phase margins of the continuous loop",
		Args:  cobra.NoArgs,
		RunE:  showMargins,
	}
	addConfigFlags(marginsCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [preset...]",
		Short: "run presets side by side (all presets when none are named)",
		RunE:  comparePresets,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "grid search over parameters",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addConfigFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "parameter grid: name=min:max:n or name=v1,v2,...")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "iae", "metric to minimize")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "parallel simulations (0 = one per CPU)")

	liveCmd := &cobra.Command{
		Use:   "live [run_id]",
		Short: "replay a run in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)
	liveCmd.Flags().StringVar(&liveFile, "file", "", "trace file to replay")
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")
	liveCmd.Flags().StringVar(&theme, "theme", viz.Themes[0].Name, "color theme: "+strings.Join(viz.ThemeNames(), ", "))

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a saved run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "output file (stdout when empty)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCTRL\tMASS\tMAX_RATE\tSTEPS\tDISTURBANCE")
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%d\t%g@%gs\n",
					name, cfg.Controller, cfg.Plant.Mass, cfg.Compensator.MaxRate,
					cfg.Simulation.Steps, cfg.Simulation.Disturbance.Force, cfg.Simulation.Disturbance.Start)
			}
			return w.Flush()
		},
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a YAML batch of experiments",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, analyzeCmd, marginsCmd, compareCmd, sweepCmd, liveCmd, exportCmd, presetsCmd, scenarioCmd)

	err := rootCmd.Execute()
	_ = monitoring.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&controller, "controller", "lead", "controller: lead or pid")
	f.Float64Var(&kl, "kl", config.DefaultKl, "lead gain")
	f.Float64Var(&tauP, "tau-p", config.DefaultTauP, "lead pole time constant (s)")
	f.Float64Var(&tauZ, "tau-z", config.DefaultTauZ, "lead zero time constant (s)")
	f.Float64Var(&maxRate, "max-rate", config.DefaultMaxRate, "command rate limit (N/s)")
	f.Float64Var(&mass, "mass", plant.DefaultMass, "plant mass (kg)")
	f.Float64Var(&damping, "damping", plant.DefaultDamping, "plant damping (N s/m)")
	f.Float64Var(&dt, "dt", config.DefaultDt, "tick period (s)")
	f.IntVar(&steps, "steps", config.DefaultSteps, "number of ticks")
	f.Float64Var(&setpoint, "setpoint", config.DefaultSetpoint, "position setpoint")
	f.Float64Var(&disturbance, "disturbance", 0, "step disturbance force (N)")
	f.Float64Var(&disturbAt, "disturbance-at", 0, "disturbance start time (s)")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outPath, "out", "o", tracefile.DefaultPath, "trace file")
	cmd.Flags().BoolVar(&save, "save", false, "also save the run under the data directory")
}

// buildConfig layers defaults, a preset or config file, then any flags the
// user set explicitly.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	if preset != "" && configFile != "" {
		return nil, fmt.Errorf("--preset and --config are mutually exclusive")
	}

	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("controller") {
		cfg.Controller = controller
	}
	overrides := []struct {
		flag, param string
		value       float64
	}{
		{"kl", "kl", kl},
		{"tau-p", "tau_p", tauP},
		{"tau-z", "tau_z", tauZ},
		{"max-rate", "max_rate", maxRate},
		{"mass", "mass", mass},
		{"damping", "damping", damping},
		{"dt", "dt", dt},
		{"steps", "steps", float64(steps)},
		{"setpoint", "setpoint", setpoint},
		{"disturbance", "disturbance", disturbance},
	}
	for _, o := range overrides {
		if f.Changed(o.flag) {
			if err := cfg.Set(o.param, o.value); err != nil {
				return nil, err
			}
		}
	}
	if f.Changed("disturbance-at") {
		cfg.Simulation.Disturbance.Start = disturbAt
	}
	if f.Changed("out") {
		cfg.Output = outPath
	}

	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	exp, err := experiment.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	rec := sim.NewRecorder(cfg.Simulation.Steps)
	start := time.Now()
	result, err := exp.RunFile(ctx, cfg.Output, rec)
	if err != nil {
		return err
	}
	monitoring.Logf("run: %d ticks in %v", result.Steps, time.Since(start))

	fmt.Printf("wrote %d records to %s\n", result.Steps, cfg.Output)
	fmt.Printf("final position: %.6f (setpoint %.6f)\n", result.Final.Position, result.Final.Setpoint)
	printMetrics(result.Metrics)

	if !save {
		return nil
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	var step *analysis.StepInfo
	if info, err := analysis.StepResponse(rec.Records, 0.02); err == nil {
		step = &info
	}
	runID, err := st.Save(cfg, result, step, rec.Records)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

// simulate runs cfg in memory and returns the result with every record.
func simulate(ctx context.Context, cfg *config.Config) (*sim.Result, []sim.Record, error) {
	exp, err := experiment.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	rec := sim.NewRecorder(cfg.Simulation.Steps)
	result, err := exp.Run(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	return result, rec.Records, nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

// loadRun reads records from the store when a run id is given, otherwise
// from path. The returned title names the source.
func loadRun(args []string, path string) ([]sim.Record, string, error) {
	if len(args) == 0 {
		recs, err := tracefile.ReadFile(path)
		return recs, path, err
	}

	st := storage.New(dataDir)
	if _, err := st.Load(args[0]); err != nil {
		return nil, "", err
	}
	recs, err := st.LoadRecords(args[0])
	return recs, args[0], err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tCTRL\tSTEPS\tIAE\tOVERSHOOT")

	for _, run := range runs {
		overshoot := "-"
		if run.Step != nil {
			overshoot = fmt.Sprintf("%.2f%%", run.Step.Overshoot)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4f\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Controller,
			run.Steps,
			run.Metrics["iae"],
			overshoot,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	recs, title, err := loadRun(args, inFile)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no data to plot")
	}

	if pngPath != "" {
		if err := export.SavePlot(pngPath, title, recs); err != nil {
			return err
		}
		cmdPath := export.CommandPath(pngPath)
		if err := export.SaveCommandPlot(cmdPath, title, recs); err != nil {
			return err
		}
		fmt.Printf("wrote %s and %s\n", pngPath, cmdPath)
	}
	if htmlPath != "" {
		if err := export.WriteHTMLFile(htmlPath, title, recs); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", htmlPath)
	}
	if pngPath != "" || htmlPath != "" {
		return nil
	}

	fmt.Printf("run: %s\n", title)
	fmt.Printf("samples: %d\n\n", len(recs))

	pos := make([]float64, len(recs))
	ref := make([]float64, len(recs))
	cmdData := make([]float64, len(recs))
	for i, r := range recs {
		pos[i] = float64(r.Position)
		ref[i] = float64(r.Setpoint)
		cmdData[i] = float64(r.Command)
	}

	graph := asciigraph.PlotMany([][]float64{ref, pos},
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("position vs setpoint"),
	)
	fmt.Println(graph)
	fmt.Println()

	graph = asciigraph.Plot(cmdData,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("command (N)"),
	)
	fmt.Println(graph)

	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	recs, title, err := loadRun(args, inFile)
	if err != nil {
		return err
	}

	info, err := analysis.StepResponse(recs, 0.02)
	if err != nil {
		return err
	}

	fmt.Printf("step response: %s\n\n", title)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "rise time (10-90%%)\t%.3f s\n", info.RiseTime)
	fmt.Fprintf(w, "peak\t%.6f at %.2f s\n", info.Peak, info.PeakTime)
	fmt.Fprintf(w, "overshoot\t%.2f%%\n", info.Overshoot)
	fmt.Fprintf(w, "settling time (2%%)\t%.2f s\n", info.SettlingTime)
	fmt.Fprintf(w, "final position\t%.6f\n", info.Final)
	fmt.Fprintf(w, "steady-state error\t%+.6f\n", info.SteadyStateError)
	return w.Flush()
}

func showMargins(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	loop := analysis.Loop{
		Kl:   cfg.Compensator.Kl,
		TauP: cfg.Compensator.TauP,
		TauZ: cfg.Compensator.TauZ,
		M:    cfg.Plant.Mass,
		K:    cfg.Plant.Damping,
	}
	m, err := analysis.ComputeMargins(loop)
	if err != nil {
		return err
	}

	fmt.Printf("L(s) = %g(1+%gs)/(1+%gs) * 1/(s(%gs+%g))\n\n", loop.Kl, loop.TauZ, loop.TauP, loop.M, loop.K)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "gain crossover\t%.4f rad/s\n", m.GainCrossover)
	fmt.Fprintf(w, "phase margin\t%.2f deg\n", m.PhaseMargin)
	fmt.Fprintf(w, "delay margin\t%.3f s\n", m.DelayMargin)
	if !math.IsNaN(m.PhaseCrossover) {
		fmt.Fprintf(w, "phase crossover\t%.4f rad/s\n", m.PhaseCrossover)
		fmt.Fprintf(w, "gain margin\t%.2f dB\n", m.GainMargin)
	} else {
		fmt.Fprintf(w, "phase crossover\tnone\n")
		fmt.Fprintf(w, "gain margin\tinf\n")
	}
	if cfg.Simulation.Dt > m.DelayMargin {
		fmt.Fprintf(w, "warning\ttick period %.3f s exceeds the delay margin\n", cfg.Simulation.Dt)
	}
	return w.Flush()
}

func comparePresets(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = config.ListPresets()
	}

	ctx, cancel := signalContext()
	defer cancel()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tCTRL\tFINAL\tOVERSHOOT\tSETTLING\tIAE\tEFFORT\tSATURATION")

	for _, name := range names {
		cfg := config.GetPreset(name)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s", name)
		}
		result, recs, err := simulate(ctx, cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		info, err := analysis.StepResponse(recs, 0.02)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.2f%%\t%.2fs\t%.4f\t%.4f\t%.1f%%\n",
			name,
			cfg.Controller,
			info.Final,
			info.Overshoot,
			info.SettlingTime,
			result.Metrics["iae"],
			result.Metrics["control_effort"],
			result.Metrics["saturation"]*100,
		)
	}

	return w.Flush()
}

// parseGrid reads name=min:max:n or name=v1,v2,...
func parseGrid(arg string) (string, []float64, error) {
	name, values, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid grid %q: want name=min:max:n or name=v1,v2", arg)
	}

	if parts := strings.Split(values, ":"); len(parts) == 3 {
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil || n < 2 {
			return "", nil, fmt.Errorf("invalid range in %q", arg)
		}
		return name, floats.Span(make([]float64, n), lo, hi), nil
	}

	var grid []float64
	for _, s := range strings.Split(values, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid value in %q: %w", arg, err)
		}
		grid = append(grid, v)
	}
	return name, grid, nil
}

func formatParam(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func runSweep(cmd *cobra.Command, args []string) error {
	if len(sweepParams) == 0 {
		return fmt.Errorf("at least one --param is required")
	}
	base, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(sweepParams))
	ranges := make([][]float64, 0, len(sweepParams))
	for _, arg := range sweepParams {
		name, grid, err := parseGrid(arg)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, grid)
	}

	gs, err := optim.NewGridSearch(names, ranges, workers)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	best, all, err := gs.Search(ctx, base, sweepMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(sweepMetric))
	for _, c := range all {
		vals := make([]string, len(names))
		for i, name := range names {
			vals[i] = formatParam(c.Params[name])
		}
		result := "error"
		if c.Err == nil {
			result = fmt.Sprintf("%.6f", c.Metrics[sweepMetric])
		}
		fmt.Fprintf(w, "%s\t%s\n", strings.Join(vals, "\t"), result)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d candidates in %v\n", len(all), time.Since(start).Round(time.Millisecond))
	fmt.Printf("best %s = %.6f at", sweepMetric, best.Metrics[sweepMetric])
	for _, name := range names {
		fmt.Printf(" %s=%s", name, formatParam(best.Params[name]))
	}
	fmt.Println()
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	if len(args) > 0 || liveFile != "" {
		recs, title, err := loadRun(args, liveFile)
		if err != nil {
			return err
		}
		return viz.Run(title, recs, nil, frameRate, theme)
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, recs, err := simulate(ctx, cfg)
	if err != nil {
		return err
	}
	return viz.Run(cfg.Controller+" loop", recs, result.Metrics, frameRate, theme)
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if exportPath != "" {
		if err := st.ExportJSONFile(exportPath, args[0]); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", exportPath)
		return nil
	}
	return st.ExportJSON(os.Stdout, args[0])
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunScenario(ctx, sc)
	if len(results) > 0 {
		if sc.Name != "" {
			fmt.Printf("scenario: %s\n", sc.Name)
		}
		if sc.Description != "" {
			fmt.Printf("%s\n", sc.Description)
		}
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STEP\tCTRL\tFINAL\tOVERSHOOT\tSETTLING\tIAE")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%.4f\t%.2f%%\t%.2fs\t%.4f\n",
				r.Name, r.Config.Controller, r.Response.Final, r.Response.Overshoot,
				r.Response.SettlingTime, r.Result.Metrics["iae"])
		}
		if ferr := w.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}
