package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/format"
	"github.com/pithecene-io/courier/ipc"
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/pipeline"
)

// RunCommand returns the run command: start the feature pipelines and feed
// them from the framed event stream on stdin. The process exits when the
// stream ends or on SIGINT/SIGTERM, after flushing queued events to disk.
func RunCommand() *cli.Command {
	flags := []cli.Flag{
		DataDirFlag,
		ConfigFlag,
		PresetFlag,
		FeaturesFlag,
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the closing metrics summary",
		},
	}
	flags = append(flags, TransportFlags()...)

	return &cli.Command{
		Name:   "run",
		Usage:  "Buffer events from stdin and upload them to the collector",
		Flags:  flags,
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	preset, err := loadPreset(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	features, err := parseFeatures(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	transport, err := buildTransport(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	registry := pipeline.NewRegistry()
	for _, feature := range features {
		f, err := pipeline.NewFeature(pipeline.FeatureConfig{
			Feature:   feature,
			RootDir:   c.String("data-dir"),
			Preset:    preset,
			Format:    format.JSONArray(),
			Transport: transport,
		})
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if err := registry.Register(f); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry.Start(ctx)

	logger := log.NewLogger("intake")
	intake := ipc.NewIntake(registry, logger)
	intakeErr := intake.Run(ctx, os.Stdin)

	if err := registry.Close(); err != nil {
		logger.Warn("pipeline shutdown incomplete", map[string]any{"error": err.Error()})
	}

	if !c.Bool("quiet") {
		for _, snap := range registry.Metrics() {
			fmt.Fprintf(c.App.Writer, "%s: written=%d uploaded=%d dropped=%d retried=%d\n",
				snap.Feature, snap.EventsWritten, snap.BatchesUploaded, snap.EventsDropped, snap.BatchesRetried)
		}
	}

	if intakeErr != nil && !errors.Is(intakeErr, context.Canceled) {
		return cli.Exit(fmt.Sprintf("intake stream failed: %v", intakeErr), 1)
	}
	return nil
}
