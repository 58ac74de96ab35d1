package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/convene/pkg/service/mcp"
	"github.com/m-mizutani/convene/pkg/telemetry"
	"github.com/m-mizutani/convene/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	var (
		cfg         config
		transport   string
		addr        string
		metricsAddr string
	)

	flags := commandFlags(&cfg,
		&cli.StringFlag{
			Name:        "transport",
			Usage:       "MCP transport (stdio, http)",
			Value:       "stdio",
			Sources:     cli.EnvVars("CONVENE_TRANSPORT"),
			Destination: &transport,
		},
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address for the http transport",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("CONVENE_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "metrics-addr",
			Usage:       "Listen address for Prometheus metrics (disabled when empty)",
			Sources:     cli.EnvVars("CONVENE_METRICS_ADDR"),
			Destination: &metricsAddr,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the assistant as MCP tools",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.configureLogger(ctx)
			if err != nil {
				return err
			}
			if transport != "stdio" && transport != "http" {
				return goerr.New("unknown transport", goerr.V("transport", transport))
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			sinks := []telemetry.Sink{telemetry.NewLogSink()}
			var registry *prometheus.Registry
			if metricsAddr != "" {
				registry = prometheus.NewRegistry()
				registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				metrics, err := telemetry.NewMetricsSink(registry)
				if err != nil {
					return err
				}
				sinks = append(sinks, metrics)
			}

			e, err := cfg.newEngine(ctx, telemetry.Multi(sinks...))
			if err != nil {
				return err
			}
			defer e.Close()

			server := mcp.NewServer("convene", version, e.orch, e.memory, e.research)

			eg, ctx := errgroup.WithContext(ctx)
			if registry != nil {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
				eg.Go(func() error {
					return listen(ctx, "metrics", metricsAddr, mux)
				})
			}

			if transport == "stdio" {
				eg.Go(func() error {
					err := server.RunStdio(ctx)
					if ctx.Err() != nil {
						return nil
					}
					// peer disconnect ends the whole process
					stop()
					return err
				})
			} else {
				eg.Go(func() error {
					return listen(ctx, "mcp", addr, server.Handler())
				})
			}

			return eg.Wait()
		},
	}
}

// listen serves handler on addr until ctx is done, then shuts down gracefully
func listen(ctx context.Context, name, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("Starting HTTP server", "server", name, "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- goerr.Wrap(err, "failed to start server", goerr.V("server", name), goerr.V("addr", addr))
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shutdown server gracefully", goerr.V("server", name))
		}
		logging.From(ctx).Info("Server shutdown completed", "server", name)
		return nil
	}
}
