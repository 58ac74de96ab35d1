package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/convene/pkg/agent/reasoner"
	"github.com/m-mizutani/convene/pkg/agent/research"
	"github.com/m-mizutani/convene/pkg/index"
	"github.com/m-mizutani/convene/pkg/interfaces"
	"github.com/m-mizutani/convene/pkg/knowledge"
	"github.com/m-mizutani/convene/pkg/memory"
	"github.com/m-mizutani/convene/pkg/service/mcp"
	"github.com/m-mizutani/convene/pkg/telemetry"
	"github.com/m-mizutani/convene/pkg/usecase/orchestrator"
	"github.com/m-mizutani/convene/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Knowledge and memory
	knowledgePath string
	dimension     int64
	embedCache    int64
	capacity      int64

	// Remote research
	mcpResearch string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"l"},
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "warn",
			Sources:     cli.EnvVars("CONVENE_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       string(logging.FormatConsole),
			Sources:     cli.EnvVars("CONVENE_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "knowledge",
			Aliases:     []string{"k"},
			Usage:       "Path to a knowledge base YAML file (built-in knowledge when empty)",
			Sources:     cli.EnvVars("CONVENE_KNOWLEDGE"),
			Destination: &cfg.knowledgePath,
		},
		&cli.StringFlag{
			Name:        "mcp-research",
			Usage:       "Path to an MCP config file; research is delegated to the configured server",
			Sources:     cli.EnvVars("CONVENE_MCP_RESEARCH"),
			Destination: &cfg.mcpResearch,
		},
	}
}

// memoryFlags returns flags tuning the memory store and its similarity index
func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Dimension of the hashed embedding vectors",
			Value:       index.DefaultDimension,
			Sources:     cli.EnvVars("CONVENE_EMBEDDING_DIMENSION"),
			Destination: &cfg.dimension,
		},
		&cli.IntFlag{
			Name:        "embedding-cache",
			Usage:       "Number of cached embeddings (0 disables the cache)",
			Value:       1024,
			Sources:     cli.EnvVars("CONVENE_EMBEDDING_CACHE"),
			Destination: &cfg.embedCache,
		},
		&cli.IntFlag{
			Name:        "memory-capacity",
			Usage:       "Maximum number of memory records (0 is unbounded)",
			Sources:     cli.EnvVars("CONVENE_MEMORY_CAPACITY"),
			Destination: &cfg.capacity,
		},
	}
}

// commandFlags joins command specific flags with the shared ones
func commandFlags(cfg *config, flags ...cli.Flag) []cli.Flag {
	flags = append(flags, globalFlags(cfg)...)
	return append(flags, memoryFlags(cfg)...)
}

// configureLogger installs the logger selected by flags and attaches it to ctx
func (cfg *config) configureLogger(ctx context.Context) (context.Context, error) {
	logger, err := logging.Build(cfg.logLevel, logging.Format(cfg.logFormat), os.Stderr)
	if err != nil {
		return ctx, err
	}
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

// loadKnowledge returns the configured knowledge base
func (cfg *config) loadKnowledge() (*knowledge.Base, error) {
	if cfg.knowledgePath == "" {
		return knowledge.Default(), nil
	}
	base, err := knowledge.LoadFile(cfg.knowledgePath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load knowledge base")
	}
	return base, nil
}

// engine is one session: an orchestrator with its own memory
type engine struct {
	orch     *orchestrator.Orchestrator
	memory   *memory.Store
	research interfaces.ResearchProvider
	closers  []func()
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// newEngine wires knowledge, memory, collaborators and the orchestrator. The
// caller must Close the engine.
func (cfg *config) newEngine(ctx context.Context, sink telemetry.Sink) (*engine, error) {
	if cfg.dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive", goerr.V("dimension", cfg.dimension))
	}
	if cfg.capacity < 0 {
		return nil, goerr.New("memory capacity must not be negative", goerr.V("capacity", cfg.capacity))
	}

	base, err := cfg.loadKnowledge()
	if err != nil {
		return nil, err
	}

	e := &engine{}

	var embedder index.Embedder = index.NewHashEmbedder(int(cfg.dimension))
	if cfg.embedCache > 0 {
		cached, err := index.NewCachedEmbedder(embedder, cfg.embedCache)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, cached.Close)
		embedder = cached
	}

	e.memory = memory.New(
		memory.WithIndex(index.New(index.WithEmbedder(embedder))),
		memory.WithCapacity(int(cfg.capacity)),
	)

	if cfg.mcpResearch != "" {
		mcpCfg, err := mcp.LoadConfig(cfg.mcpResearch)
		if err != nil {
			e.Close()
			return nil, err
		}
		client, provider, err := mcp.ConnectResearch(ctx, mcpCfg)
		if err != nil {
			e.Close()
			return nil, goerr.Wrap(err, "failed to connect research server")
		}
		e.closers = append(e.closers, func() {
			if err := client.Close(); err != nil {
				logging.From(ctx).Warn("failed to close MCP client", "error", err)
			}
		})
		e.research = provider
	} else {
		e.research = research.New(base)
	}

	e.orch = orchestrator.New(e.research, reasoner.New(), e.memory,
		orchestrator.WithTopicKeywords(base.TopicKeywords()),
		orchestrator.WithSink(sink),
	)
	return e, nil
}
