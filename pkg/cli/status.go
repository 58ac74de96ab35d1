package cli

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/convene/pkg/telemetry"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func statusCommand() *cli.Command {
	var (
		cfg    config
		asJSON bool
	)

	flags := commandFlags(&cfg,
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print status as JSON",
			Destination: &asJSON,
		},
	)

	return &cli.Command{
		Name:  "status",
		Usage: "Show collaborators, their capabilities and memory statistics",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.configureLogger(ctx)
			if err != nil {
				return err
			}

			e, err := cfg.newEngine(ctx, telemetry.Nop())
			if err != nil {
				return err
			}
			defer e.Close()

			st := e.orch.Status(ctx)
			w := c.Root().Writer
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(st); err != nil {
					return goerr.Wrap(err, "failed to encode status")
				}
				return nil
			}

			printStatus(w, st)
			return nil
		},
	}
}
