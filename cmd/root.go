package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/smartsimpoints/smartsim/sim"
	"github.com/smartsimpoints/smartsim/sim/trace"
	"github.com/smartsimpoints/smartsim/sim/workload"
)

var (
	logLevel         string // Log verbosity level
	configPath       string // YAML run config
	traceHeaderPath  string // Event trace header (YAML)
	traceDataPath    string // Event trace data (CSV)
	regionLogPath    string // Region log output (JSON Lines)
	diagnosticsPath  string // Diagnostic stream destination
	colorDiagnostics bool   // Colour the diagnostic stream
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "smartsim",
	Short: "Barrier-region adaptive sampling for multithreaded simulation",
}

// setLogLevel configures logrus from a level name.
func setLogLevel(name string) {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", name)
	}
	logrus.SetLevel(level)
}

// outputFile is a buffered output that can be closed from normal control
// flow and from exit handlers alike.
type outputFile struct {
	name string
	file *os.File
	buf  *bufio.Writer
	once sync.Once
}

func createOutput(path string) (*outputFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return &outputFile{name: path, file: f, buf: bufio.NewWriter(f)}, nil
}

func (o *outputFile) Write(p []byte) (int, error) {
	return o.buf.Write(p)
}

// Close flushes and closes the file. Safe to call more than once.
func (o *outputFile) Close() {
	if o == nil {
		return
	}
	o.once.Do(func() {
		if err := o.buf.Flush(); err != nil {
			logrus.Errorf("flushing %s: %v", o.name, err)
		}
		if err := o.file.Close(); err != nil {
			logrus.Errorf("closing %s: %v", o.name, err)
		}
	})
}

// replayOutputs are the sinks of one run.
type replayOutputs struct {
	regionLog   io.Writer // nil keeps records in memory only
	diagnostics *trace.Diagnostics
}

// replayTrace loads the configured trace and replays it through a fresh
// controller. An invariant violation inside the controller is returned as an
// *sim.InvariantError.
func replayTrace(ctx context.Context, cfg *RunConfig, out replayOutputs) (summary *trace.RegionSummary, result *workload.ReplayResult, err error) {
	defer recoverInvariant(&err)

	tr, err := workload.LoadEventTrace(cfg.TraceHeader, cfg.TraceData)
	if err != nil {
		return nil, nil, err
	}
	logrus.Infof("loaded %d events (%s trace, %d threads)", len(tr.Events), tr.Header.Mode, tr.Header.Threads)

	ctrl := sim.NewController(sim.ControllerConfig{
		Log:         trace.NewRegionLog(out.regionLog),
		Diagnostics: out.diagnostics,
	})
	result, err = workload.Replay(ctx, tr.Events, ctrl, workload.NewReplayHost())
	if err != nil {
		return nil, nil, fmt.Errorf("replaying trace: %w", err)
	}
	return trace.Summarize(ctrl.Records()), result, nil
}

// recoverInvariant turns an *sim.InvariantError panic into *err. Other panics
// propagate.
func recoverInvariant(err *error) {
	r := recover()
	if r == nil {
		return
	}
	inv, ok := r.(*sim.InvariantError)
	if !ok {
		panic(r)
	}
	*err = inv
}

// colorOutput reports whether diagnostics written to f should be coloured:
// requested, f is a terminal, and neither NO_COLOR nor TERM=dumb is set.
func colorOutput(requested bool, f *os.File) bool {
	if !requested || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printSummary writes the human-readable run summary.
func printSummary(w io.Writer, runID string, s *trace.RegionSummary, r *workload.ReplayResult) {
	fmt.Fprintf(w, "=== Sampling Summary (run %s) ===\n", runID)
	fmt.Fprintf(w, "Regions:            %d (%d detailed, %d fast-forwarded)\n",
		s.TotalRegions, s.DetailedRegions, s.FastForwardRegions)
	fmt.Fprintf(w, "Instructions:       %d (%.2f%% detailed)\n", s.TotalInstructions, 100*s.DetailedFraction())
	fmt.Fprintf(w, "Actual time (s):    %.9g\n", s.ActualSeconds)
	fmt.Fprintf(w, "Estimated time (s): %.9g\n", s.EstimatedSeconds)
	fmt.Fprintf(w, "Aggregate error:    %.6f\n", s.AggregateError)
	fmt.Fprintf(w, "Mean |error|:       %.6f (max %.6f)\n", s.MeanAbsError, s.MaxAbsError)
	if r != nil {
		fmt.Fprintf(w, "Events replayed:    %d (%d threads, %d barriers)\n", r.Events, r.Threads, r.Barriers)
		if r.TotalTime > 0 {
			fmt.Fprintf(w, "Detailed time:      %.2f%%\n", 100*float64(r.DetailedTime)/float64(r.TotalTime))
		}
	}
}

// runCmd replays an event trace through the sampling controller
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay an event trace through the adaptive sampling controller",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := defaultRunConfig()
		if configPath != "" {
			var err error
			if cfg, err = loadRunConfig(configPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		applyFlags(cmd, &cfg)
		setLogLevel(cfg.LogLevel)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("%v", err)
		}

		runID := xid.New().String()
		log := logrus.WithField("run", runID)

		var out replayOutputs
		var files []*outputFile
		closeAll := func() {
			for _, f := range files {
				f.Close()
			}
		}
		atexit.Register(closeAll)
		logrus.RegisterExitHandler(closeAll)

		if cfg.RegionLog != "" {
			f, err := createOutput(cfg.RegionLog)
			if err != nil {
				log.Fatalf("%v", err)
			}
			files = append(files, f)
			out.regionLog = f
		}
		switch cfg.Diagnostics {
		case "":
		case "-":
			out.diagnostics = trace.NewDiagnostics(os.Stderr, colorOutput(cfg.Color, os.Stderr))
		default:
			f, err := createOutput(cfg.Diagnostics)
			if err != nil {
				log.Fatalf("%v", err)
			}
			files = append(files, f)
			out.diagnostics = trace.NewDiagnostics(f, false)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		log.Infof("replaying %s", cfg.TraceData)
		summary, result, err := replayTrace(ctx, &cfg, out)
		if err != nil {
			var inv *sim.InvariantError
			if errors.As(err, &inv) {
				atexit.Fatalf("run %s aborted: %v", runID, inv)
			}
			log.Fatalf("%v", err)
		}
		closeAll()

		printSummary(cmd.OutOrStdout(), runID, summary, result)
		log.Info("Replay complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run config; flags override its values")
	runCmd.Flags().StringVar(&traceHeaderPath, "trace-header", "", "Event trace header (YAML)")
	runCmd.Flags().StringVar(&traceDataPath, "trace-data", "", "Event trace data (CSV)")
	runCmd.Flags().StringVar(&regionLogPath, "region-log", "", "Region log output (JSON Lines)")
	runCmd.Flags().StringVar(&diagnosticsPath, "diagnostics", "", `Diagnostic stream: "-" for stderr or a file path`)
	runCmd.Flags().BoolVar(&colorDiagnostics, "color", true, "Colour diagnostics on a terminal")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
}
