package cmd

import (
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/render"
	"github.com/pithecene-io/courier/storage"
	"github.com/pithecene-io/courier/types"
)

// FeatureReport is one feature's stored-batch inventory.
type FeatureReport struct {
	Feature    types.Feature `json:"feature" yaml:"feature"`
	FileCount  int           `json:"file_count" yaml:"file_count"`
	TotalBytes int64         `json:"total_bytes" yaml:"total_bytes"`
	OldestName string        `json:"oldest_name,omitempty" yaml:"oldest_name,omitempty"`
	NewestName string        `json:"newest_name,omitempty" yaml:"newest_name,omitempty"`
}

// InspectCommand returns the inspect command: a read-only view of the batch
// files waiting on disk per feature.
func InspectCommand() *cli.Command {
	flags := append(ReadOnlyFlags(), FeaturesFlag,
		&cli.BoolFlag{
			Name:  "files",
			Usage: "List individual batch files instead of per-feature totals",
		},
	)
	return &cli.Command{
		Name:   "inspect",
		Usage:  "Show stored batch files awaiting upload",
		Flags:  flags,
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	features, err := parseFeatures(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("files") {
		var all []storage.FileInfo
		for _, feature := range features {
			infos, err := listFeatureFiles(c.String("data-dir"), feature)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			all = append(all, infos...)
		}
		return r.Render(all)
	}

	reports := make([]FeatureReport, 0, len(features))
	for _, feature := range features {
		infos, err := listFeatureFiles(c.String("data-dir"), feature)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		report := FeatureReport{Feature: feature, FileCount: len(infos)}
		for _, fi := range infos {
			report.TotalBytes += fi.Size
		}
		if len(infos) > 0 {
			report.OldestName = infos[0].Name
			report.NewestName = infos[len(infos)-1].Name
		}
		reports = append(reports, report)
	}
	return r.Render(reports)
}

// listFeatureFiles lists one feature directory without taking write
// ownership of it; limits are irrelevant for a read-only listing.
func listFeatureFiles(root string, feature types.Feature) ([]storage.FileInfo, error) {
	o, err := storage.NewOrchestrator(filepath.Join(root, string(feature)), storage.Limits{}, 0, nil, nil)
	if err != nil {
		return nil, err
	}
	defer o.Close()
	return o.Snapshot()
}
