package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/smartsimpoints/smartsim/sim/workload"
)

var (
	workloadSpecPath string // Workload spec (YAML) for generate
	outHeaderPath    string // Generated trace header path
	outDataPath      string // Generated trace data path
	generateSeed     int64  // Seed override; 0 keeps the spec's seed
)

// generateTrace builds an event trace from the workload spec at specPath and
// writes it to headerPath and dataPath.
func generateTrace(specPath, headerPath, dataPath string, seed int64) (*workload.EventTrace, error) {
	spec, err := workload.LoadWorkloadSpec(specPath)
	if err != nil {
		return nil, err
	}
	if seed != 0 {
		spec.Seed = seed
	}
	tr, err := workload.Generate(spec)
	if err != nil {
		return nil, err
	}
	tr.Header.WorkloadSpec = specPath
	if err := workload.ExportEventTrace(&tr.Header, tr.Events, headerPath, dataPath); err != nil {
		return nil, fmt.Errorf("exporting trace: %w", err)
	}
	logrus.Infof("generated %d events for %d regions (seed %d)", len(tr.Events), spec.Regions(), spec.Seed)
	return tr, nil
}

// generateCmd writes a synthetic event trace from a workload spec
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic event trace from a workload spec",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(logLevel)
		if workloadSpecPath == "" {
			logrus.Fatalf("--workload is required")
		}
		tr, err := generateTrace(workloadSpecPath, outHeaderPath, outDataPath, generateSeed)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s (header %s)\n", len(tr.Events), outDataPath, outHeaderPath)
	},
}

func init() {
	generateCmd.Flags().StringVar(&workloadSpecPath, "workload", "", "Workload spec (YAML)")
	generateCmd.Flags().StringVar(&outHeaderPath, "out-header", "trace.yaml", "Output trace header (YAML)")
	generateCmd.Flags().StringVar(&outDataPath, "out-data", "trace.csv", "Output trace data (CSV)")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 0, "Override the spec's seed (0 keeps it)")
}
