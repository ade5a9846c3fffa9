package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/fchmm/internal/config"
	"github.com/san-kum/fchmm/internal/dataset"
	"github.com/san-kum/fchmm/internal/dense"
	"github.com/san-kum/fchmm/internal/effects"
	"github.com/san-kum/fchmm/internal/metrics"
	"github.com/san-kum/fchmm/internal/storage"
)

var (
	dataDir     string
	verbose     bool
	configFile  string
	concurrency int
	gridFrom    float64
	gridTo      float64
	gridLength  int
	gridValues  []float64
	preset      string
	lower       float64
	upper       float64
	dumpMetrics bool
	class       int
	withDraws   bool
)

// main registers the fchmm commands and executes the root command, exiting
// with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:          "fchmm",
		Short:        "posterior predictive tiv effects for multinomial models",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	predictCmd := &cobra.Command{
		Use:   "predict [input]",
		Short: "compute effects for every posterior draw in a YAML/JSON file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPredict,
	}
	predictCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	predictCmd.Flags().IntVarP(&concurrency, "concurrency", "j", config.DefaultConcurrency, "parallel draws (0 = all CPUs)")
	predictCmd.Flags().Float64Var(&gridFrom, "from", config.DefaultGridFrom, "first tiv value")
	predictCmd.Flags().Float64Var(&gridTo, "to", config.DefaultGridTo, "last tiv value")
	predictCmd.Flags().IntVar(&gridLength, "length", config.DefaultGridLength, "number of tiv values")
	predictCmd.Flags().Float64SliceVar(&gridValues, "values", nil, "explicit tiv values (overrides from/to/length)")
	predictCmd.Flags().StringVar(&preset, "preset", "", "use a preset tiv grid")
	predictCmd.Flags().Float64Var(&lower, "lower", config.DefaultLower, "lower credible quantile")
	predictCmd.Flags().Float64Var(&upper, "upper", config.DefaultUpper, "upper credible quantile")
	predictCmd.Flags().BoolVar(&dumpMetrics, "metrics", false, "print prometheus metrics after the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run summary",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the effect curve of one class",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&class, "class", 0, "class index")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and summary to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().BoolVar(&withDraws, "draws", false, "include per-draw effects")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list tiv grid presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVALUES")
			for _, name := range config.ListPresets() {
				fmt.Fprintf(w, "%s\t%s\n", name, formatValues(config.GetPreset(name).Points()))
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(predictCmd, listCmd, showCmd, plotCmd, exportJSONCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig merges the config file, preset and flags. Flags override the
// preset, which overrides the config file. Any of the three marks the grid as
// set, so tiv values in the input file are then ignored.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if preset != "" {
		grid := config.GetPreset(preset)
		if grid == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg.SetGrid(*grid)
	}

	flags := cmd.Flags()
	if flags.Changed("data") || cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if len(args) > 0 {
		cfg.Input = args[0]
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	grid := cfg.Grid
	spanChanged := flags.Changed("from") || flags.Changed("to") || flags.Changed("length")
	if spanChanged {
		grid.Values = nil
	}
	if flags.Changed("from") {
		grid.From = gridFrom
	}
	if flags.Changed("to") {
		grid.To = gridTo
	}
	if flags.Changed("length") {
		grid.Length = gridLength
	}
	if flags.Changed("values") {
		grid.Values = gridValues
	}
	if spanChanged || flags.Changed("values") {
		cfg.SetGrid(grid)
	}
	if flags.Changed("lower") {
		cfg.Interval.Lower = lower
	}
	if flags.Changed("upper") {
		cfg.Interval.Upper = upper
	}

	if cfg.Input == "" {
		return nil, fmt.Errorf("no input file given")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	post, err := dataset.Load(cfg.Input)
	if err != nil {
		return err
	}

	tiv := cfg.Sweep(post.Tiv)

	reg := prometheus.NewRegistry()
	ens := effects.NewEnsemble(cfg.Concurrency,
		effects.WithLogger(slog.Default()),
		effects.WithObserver(metrics.NewRecorder(reg)),
	)

	n, d := post.X.Dims()
	fmt.Printf("predicting %d draws over %d tiv values...\n", len(post.Draws), len(tiv))
	start := time.Now()

	draws, err := ens.Run(context.Background(), post.Betas(), post.Zetas(), post.X.Dense, tiv)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	summary, err := effects.Summarize(draws, cfg.Interval.Lower, cfg.Interval.Upper)
	if err != nil {
		return err
	}

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.RunMetadata{
		Input:        cfg.Input,
		Observations: n,
		Features:     d,
		Tiv:          tiv,
		Concurrency:  ens.Concurrency(),
		Elapsed:      elapsed.Seconds(),
	}, draws, summary)
	if err != nil {
		return err
	}
	slog.Debug("run saved", slog.String("id", runID), slog.String("dir", cfg.DataDir))

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n\n", runID)
	printSummary(summary, tiv)

	if dumpMetrics {
		fmt.Println()
		return metrics.WriteText(os.Stdout, reg)
	}
	return nil
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
	fmt.Fprintln(w, "ID\tINPUT\tTIME\tDRAWS\tCLASSES\tVALUES\tELAPSED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.3fs\n",
			run.ID,
			run.Input,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Draws,
			run.Classes,
			len(run.Tiv),
			run.Elapsed,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	summary, err := st.LoadSummary(runID)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("run " + meta.ID))
	fmt.Println(field("input", meta.Input))
	fmt.Println(field("time", meta.Timestamp.Format("2006-01-02 15:04:05")))
	fmt.Println(field("draws", meta.Draws))
	fmt.Println(field("design", fmt.Sprintf("%d x %d", meta.Observations, meta.Features)))
	fmt.Println(field("interval", fmt.Sprintf("[%g, %g]", meta.Interval[0], meta.Interval[1])))
	fmt.Println()

	printSummary(summary, meta.Tiv)
	return nil
}

func printSummary(s *effects.Summary, tiv []float64) {
	k, m := s.Mean.Dims()
	fmt.Println(headerStyle.Render("posterior mean effects"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "CLASS")
	for j := 0; j < m; j++ {
		fmt.Fprintf(w, "\ttiv=%g", tiv[j])
	}
	fmt.Fprintln(w)

	for i := 0; i < k; i++ {
		fmt.Fprintf(w, "%d", i)
		for j := 0; j < m; j++ {
			fmt.Fprintf(w, "\t%.4f [%.4f, %.4f]", s.Mean.At(i, j), s.Lower.At(i, j), s.Upper.At(i, j))
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	summary, err := st.LoadSummary(runID)
	if err != nil {
		return err
	}

	k, m := summary.Mean.Dims()
	if class < 0 || class >= k {
		return fmt.Errorf("class %d out of range [0, %d)", class, k)
	}
	if m < 2 {
		return fmt.Errorf("need at least 2 tiv values to plot, run has %d", m)
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("tiv: %g .. %g (%d values)\n\n", meta.Tiv[0], meta.Tiv[m-1], m)

	graph := asciigraph.PlotMany(
		[][]float64{
			mat.Row(nil, class, summary.Lower),
			mat.Row(nil, class, summary.Mean),
			mat.Row(nil, class, summary.Upper),
		},
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Gray, asciigraph.Blue, asciigraph.Gray),
		asciigraph.Caption(fmt.Sprintf("class %d probability vs tiv (mean, %g/%g quantiles)", class, summary.Probs[0], summary.Probs[1])),
	)
	fmt.Println(graph)
	return nil
}

type exportData struct {
	Run     *storage.RunMetadata `json:"run"`
	Mean    [][]float64          `json:"mean"`
	Lower   [][]float64          `json:"lower"`
	Upper   [][]float64          `json:"upper"`
	Effects [][][]float64        `json:"effects,omitempty"`
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	summary, err := st.LoadSummary(runID)
	if err != nil {
		return err
	}

	data := exportData{
		Run:   meta,
		Mean:  dense.ToRows(summary.Mean),
		Lower: dense.ToRows(summary.Lower),
		Upper: dense.ToRows(summary.Upper),
	}

	if withDraws {
		draws, err := st.LoadEffects(runID)
		if err != nil {
			return err
		}
		data.Effects = make([][][]float64, len(draws))
		for i, d := range draws {
			data.Effects[i] = dense.ToRows(d)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func formatValues(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ", ")
}
