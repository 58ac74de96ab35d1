package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/convene/pkg/telemetry"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg    config
		asJSON bool
		quiet  bool
	)

	flags := commandFlags(&cfg,
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the answer with its plan as JSON",
			Destination: &asJSON,
		},
		&cli.BoolFlag{
			Name:        "quiet",
			Aliases:     []string{"q"},
			Usage:       "Do not show progress",
			Sources:     cli.EnvVars("CONVENE_QUIET"),
			Destination: &quiet,
		},
	)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a single query",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if query == "" {
				return goerr.New("query is required")
			}

			ctx, err := cfg.configureLogger(ctx)
			if err != nil {
				return err
			}

			e, err := cfg.newEngine(ctx, telemetry.NewLogSink())
			if err != nil {
				return err
			}
			defer e.Close()

			var s *spinner.Spinner
			if !quiet && !asJSON {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				s.Suffix = " thinking..."
				s.Start()
			}

			answer, err := e.orch.Run(ctx, query)
			if s != nil {
				s.Stop()
			}
			if err != nil {
				return goerr.Wrap(err, "failed to answer query")
			}

			w := c.Root().Writer
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(answer); err != nil {
					return goerr.Wrap(err, "failed to encode answer")
				}
				return nil
			}

			fmt.Fprintln(w, answer.Response)
			return nil
		},
	}
}
