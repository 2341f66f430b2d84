package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/cli/render"
	"github.com/pithecene-io/courier/types"
)

// VersionResponse is the response for the version command. All components
// share a single version (lockstep versioning).
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: []cli.Flag{FormatFlag},
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			return r.Render(VersionResponse{
				Version: types.Version,
				Commit:  commit,
			})
		},
	}
}
