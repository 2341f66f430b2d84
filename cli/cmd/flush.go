package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/render"
	"github.com/pithecene-io/courier/format"
	"github.com/pithecene-io/courier/storage"
	"github.com/pithecene-io/courier/types"
	"github.com/pithecene-io/courier/upload"
)

// FlushReport summarizes one feature's flush outcome.
type FlushReport struct {
	Feature  types.Feature `json:"feature" yaml:"feature"`
	Uploaded int           `json:"uploaded" yaml:"uploaded"`
	Rejected int           `json:"rejected" yaml:"rejected"`
	Failed   int           `json:"failed" yaml:"failed"`
}

// FlushCommand returns the flush command: synchronously drain every stored
// batch through the transport, ignoring upload delay and device conditions.
// Intended for shutdown hooks and operator intervention, not steady state.
func FlushCommand() *cli.Command {
	flags := []cli.Flag{FormatFlag, DataDirFlag, FeaturesFlag}
	flags = append(flags, TransportFlags()...)
	return &cli.Command{
		Name:   "flush",
		Usage:  "Upload all stored batches now and delete the delivered ones",
		Flags:  flags,
		Action: flushAction,
	}
}

func flushAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	features, err := parseFeatures(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	transport, err := buildTransport(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var anyFailed bool
	reports := make([]FlushReport, 0, len(features))
	for _, feature := range features {
		report, err := flushFeature(c, feature, transport)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if report.Failed > 0 {
			anyFailed = true
		}
		reports = append(reports, report)
	}

	if err := r.Render(reports); err != nil {
		return err
	}
	if anyFailed {
		return cli.Exit("", 1)
	}
	return nil
}

func flushFeature(c *cli.Context, feature types.Feature, transport upload.Transport) (FlushReport, error) {
	report := FlushReport{Feature: feature}

	// A flush reads everything immediately, so the grace period is zero;
	// nothing else is writing this directory.
	o, err := storage.NewOrchestrator(
		filepath.Join(c.String("data-dir"), string(feature)),
		storage.Limits{}, 0, nil, nil,
	)
	if err != nil {
		return report, err
	}
	defer o.Close()
	reader := storage.NewReader(o, format.JSONArray(), nil, nil)

	for {
		batch, err := reader.ReadNextBatch()
		if errors.Is(err, storage.ErrNoFile) {
			return report, nil
		}
		if err != nil {
			return report, err
		}

		code, err := transport.Send(c.Context, upload.Payload{
			Feature:     feature,
			Name:        batch.Name,
			Body:        batch.Body,
			ContentType: "application/json",
		})
		switch {
		case err != nil:
			// Leave the batch for a later attempt and stop: the remaining
			// batches would hit the same unreachable collector.
			batch.Discard()
			report.Failed++
			return report, nil
		case code >= 200 && code < 300:
			if err := batch.Confirm(); err != nil {
				return report, err
			}
			report.Uploaded++
		case code >= 400 && code < 500:
			if err := batch.Confirm(); err != nil {
				return report, err
			}
			report.Rejected++
		default:
			batch.Discard()
			report.Failed++
			return report, fmt.Errorf("collector returned %d for %s", code, batch.Name)
		}
	}
}
