package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// RunConfig is the YAML configuration of `smartsim run`.
// Every key must be listed to satisfy KnownFields(true) strict parsing.
type RunConfig struct {
	LogLevel    string `yaml:"log_level"`
	TraceHeader string `yaml:"trace_header"`
	TraceData   string `yaml:"trace_data"`
	RegionLog   string `yaml:"region_log"`  // JSON Lines output; empty keeps records in memory only
	Diagnostics string `yaml:"diagnostics"` // "-" for stderr, a path, or empty for none
	Color       bool   `yaml:"color"`       // colour diagnostics on stderr when it is a terminal
}

// defaultRunConfig returns the configuration used when no --config is given.
func defaultRunConfig() RunConfig {
	return RunConfig{LogLevel: "warn", Color: true}
}

// loadRunConfig parses a run config file over the defaults.
// Uses strict field checking: typos must cause errors.
func loadRunConfig(path string) (RunConfig, error) {
	cfg := defaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading run config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing run config: %w", err)
	}
	return cfg, nil
}

// applyFlags overrides cfg with the flags the user set explicitly, so a value
// from --config survives unless the matching flag is on the command line.
func applyFlags(cmd *cobra.Command, cfg *RunConfig) {
	flags := cmd.Flags()
	if flags.Changed("log") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("trace-header") {
		cfg.TraceHeader = traceHeaderPath
	}
	if flags.Changed("trace-data") {
		cfg.TraceData = traceDataPath
	}
	if flags.Changed("region-log") {
		cfg.RegionLog = regionLogPath
	}
	if flags.Changed("diagnostics") {
		cfg.Diagnostics = diagnosticsPath
	}
	if flags.Changed("color") {
		cfg.Color = colorDiagnostics
	}
}

// Validate reports missing inputs.
func (c *RunConfig) Validate() error {
	if c.TraceHeader == "" || c.TraceData == "" {
		return fmt.Errorf("trace_header and trace_data are required")
	}
	return nil
}
