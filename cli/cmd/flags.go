// Package cmd provides CLI commands for the courier binary.
package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/config"
	"github.com/pithecene-io/courier/types"
)

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// DataDirFlag points at the batch storage root.
	DataDirFlag = &cli.StringFlag{
		Name:    "data-dir",
		Aliases: []string{"d"},
		Usage:   "Batch storage root directory",
		Value:   "courier-data",
		EnvVars: []string{"COURIER_DATA_DIR"},
	}

	// ConfigFlag points at an optional courier.yaml.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to courier.yaml (overrides --preset)",
		EnvVars: []string{"COURIER_CONFIG"},
	}

	// PresetFlag selects a named performance preset.
	PresetFlag = &cli.StringFlag{
		Name:    "preset",
		Usage:   "Performance preset: balanced, low-power, frequent",
		Value:   "balanced",
		EnvVars: []string{"COURIER_PRESET"},
	}

	// FeaturesFlag selects the telemetry tracks to serve.
	FeaturesFlag = &cli.StringFlag{
		Name:  "features",
		Usage: "Comma-separated feature list",
		Value: "logs,traces,rum",
	}
)

// ReadOnlyFlags returns the shared flags for inspection commands.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		DataDirFlag,
	}
}

// loadPreset resolves the active preset from --config or --preset.
func loadPreset(c *cli.Context) (config.Preset, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	p, err := config.Named(c.String("preset"))
	if err != nil {
		return config.Preset{}, err
	}
	if err := p.Validate(); err != nil {
		return config.Preset{}, err
	}
	return p, nil
}

// parseFeatures splits and validates the --features list.
func parseFeatures(c *cli.Context) ([]types.Feature, error) {
	var features []types.Feature
	for _, name := range strings.Split(c.String("features"), ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f := types.Feature(name)
		if err := f.Valid(); err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("no features given")
	}
	return features, nil
}
