package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/convene/pkg/adapter"
	"github.com/m-mizutani/convene/pkg/telemetry"
	"github.com/m-mizutani/convene/pkg/usecase/orchestrator"
	"github.com/m-mizutani/convene/pkg/usecase/scenario"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func scenarioCommand() *cli.Command {
	var (
		cfg      config
		file     string
		output   string
		parallel int64
	)

	flags := commandFlags(&cfg,
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Scenario YAML file (built-in scenarios when empty)",
			Sources:     cli.EnvVars("CONVENE_SCENARIO_FILE"),
			Destination: &file,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Transcript directory or gs://bucket/prefix",
			Value:       "outputs",
			Sources:     cli.EnvVars("CONVENE_OUTPUT"),
			Destination: &output,
		},
		&cli.IntFlag{
			Name:        "parallel",
			Aliases:     []string{"p"},
			Usage:       "Number of scenarios run at once",
			Value:       1,
			Sources:     cli.EnvVars("CONVENE_PARALLEL"),
			Destination: &parallel,
		},
	)

	return &cli.Command{
		Name:  "scenario",
		Usage: "Run demonstration scenarios and save their transcripts",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.configureLogger(ctx)
			if err != nil {
				return err
			}

			scenarios := scenario.Builtin()
			if file != "" {
				loaded, err := scenario.LoadFile(file)
				if err != nil {
					return err
				}
				scenarios = loaded
			}

			storage, err := adapter.NewStorage(ctx, output)
			if err != nil {
				return goerr.Wrap(err, "failed to create storage")
			}

			factory := func(ctx context.Context, sink telemetry.Sink) (*orchestrator.Orchestrator, func(), error) {
				e, err := cfg.newEngine(ctx, sink)
				if err != nil {
					return nil, nil, err
				}
				return e.orch, e.Close, nil
			}

			runner := scenario.NewRunner(storage, factory,
				scenario.WithParallel(int(parallel)),
				scenario.WithSink(telemetry.NewLogSink()),
			)
			outcomes, err := runner.Run(ctx, scenarios)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			for _, o := range outcomes {
				headerColor.Fprintf(w, "SCENARIO '%s' COMPLETED\n", o.Scenario.Name)
				fmt.Fprintf(w, "Output saved to: %s\n", o.Location)
			}
			return nil
		},
	}
}
