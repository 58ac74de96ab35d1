package scenario

import (
	"bytes"
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/m-mizutani/convene/pkg/adapter"
	"github.com/m-mizutani/convene/pkg/telemetry"
	"github.com/m-mizutani/convene/pkg/usecase/orchestrator"
	"github.com/m-mizutani/convene/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// SessionFactory builds a fresh orchestrator reporting to sink. The returned
// function releases its resources.
type SessionFactory func(ctx context.Context, sink telemetry.Sink) (*orchestrator.Orchestrator, func(), error)

// Runner answers scenarios in independent sessions and stores a transcript
// of each
type Runner struct {
	storage  adapter.Storage
	factory  SessionFactory
	parallel int
	sink     telemetry.Sink
}

// Option is a functional option for Runner
type Option func(*Runner)

// WithParallel bounds how many scenarios run at once. Values below one mean one.
func WithParallel(n int) Option {
	return func(r *Runner) {
		r.parallel = n
	}
}

// WithSink adds a sink receiving the events of every session
func WithSink(sink telemetry.Sink) Option {
	return func(r *Runner) {
		r.sink = sink
	}
}

// NewRunner creates a Runner writing transcripts to storage
func NewRunner(storage adapter.Storage, factory SessionFactory, opts ...Option) *Runner {
	r := &Runner{
		storage:  storage,
		factory:  factory,
		parallel: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.parallel < 1 {
		r.parallel = 1
	}
	return r
}

// Outcome is the result of one scenario
type Outcome struct {
	Scenario  Scenario
	Responses []string
	Location  string
}

// Run answers every scenario. Outcomes keep the order of scenarios. The first
// failing scenario cancels the ones not yet finished.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(scenarios))
	ctx = logging.With(ctx, logging.From(ctx).With("run_id", uuid.NewString()))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.parallel)

	for i, sc := range scenarios {
		eg.Go(func() error {
			outcome, err := r.runOne(ctx, sc)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (r *Runner) runOne(ctx context.Context, sc Scenario) (*Outcome, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	ctx = logging.With(ctx, logging.From(ctx).With("scenario", sc.Name))

	var transcript bytes.Buffer
	orch, release, err := r.factory(ctx, telemetry.Multi(telemetry.NewTranscriptSink(&transcript), r.sink))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create session", goerr.V("scenario", sc.Name))
	}
	if release != nil {
		defer release()
	}

	outcome := &Outcome{Scenario: sc}
	for _, q := range sc.Queries {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "scenario cancelled", goerr.V("scenario", sc.Name))
		}
		resp, err := orch.Process(ctx, q)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to answer query",
				goerr.V("scenario", sc.Name),
				goerr.V("query", q))
		}
		outcome.Responses = append(outcome.Responses, resp)
	}

	key := sc.OutputKey()
	w, err := r.storage.Put(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open transcript", goerr.V("scenario", sc.Name))
	}
	if _, err := io.Copy(w, &transcript); err != nil {
		_ = w.Close()
		return nil, goerr.Wrap(err, "failed to write transcript", goerr.V("scenario", sc.Name))
	}
	if err := w.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to save transcript", goerr.V("scenario", sc.Name))
	}

	outcome.Location = r.storage.Location(key)
	logging.From(ctx).Info("scenario completed", "output", outcome.Location)
	return outcome, nil
}
