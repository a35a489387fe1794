// Command arcanum serves the tarot reading pipeline.
//
// Usage:
//
//	arcanum serve --config config.yaml
//	arcanum index --config config.yaml
//	arcanum validate --config config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/arcanum-labs/arcanum/pkg/config"
	"github.com/arcanum-labs/arcanum/pkg/embedders"
	"github.com/arcanum-labs/arcanum/pkg/knowledge"
	"github.com/arcanum-labs/arcanum/pkg/logger"
	"github.com/arcanum-labs/arcanum/pkg/orchestrator"
	"github.com/arcanum-labs/arcanum/pkg/prompts"
	"github.com/arcanum-labs/arcanum/pkg/rag"
	"github.com/arcanum-labs/arcanum/pkg/reading"
	"github.com/arcanum-labs/arcanum/pkg/server"
	"github.com/arcanum-labs/arcanum/pkg/store"
	"github.com/arcanum-labs/arcanum/pkg/streaming"
	"github.com/arcanum-labs/arcanum/pkg/tarot"
	"github.com/arcanum-labs/arcanum/pkg/vector"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the reading server."`
	Index    IndexCmd    `cmd:"" help:"Rebuild the vector index from the knowledge base."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration and knowledge base."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("arcanum version %s\n", version)
	return nil
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides config)." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	kb, err := knowledge.Load(cfg.RAG.KnowledgePath)
	if err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}
	if cfg.RAG.WatchKnowledge {
		go func() {
			if err := kb.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Knowledge watch stopped", "error", err)
			}
		}()
	}

	// The retriever degrades to knowledge-base-only context when the
	// vector store is unavailable; the pipeline keeps serving.
	var vecStore *vector.Store
	if embedder, err := embedders.Default(&cfg.RAG.Embedder); err != nil {
		slog.Warn("Embedder unavailable, serving without vector retrieval", "error", err)
	} else if vecStore, err = vector.New(cfg.RAG.PersistPath, cfg.RAG.Collection, embedder); err != nil {
		slog.Warn("Vector store unavailable, serving without vector retrieval", "error", err)
		vecStore = nil
	}

	lru := rag.NewLRU(cfg.RAG.LRUSize, time.Duration(cfg.RAG.LRUTTLSeconds)*time.Second)
	retriever := rag.NewRetriever(kb, vecStore, lru)
	enricher := rag.NewEnricher(retriever, cfg.RAG.TopK)

	builder, err := prompts.NewBuilder(cfg.Reading.PromptOverrideDir)
	if err != nil {
		return fmt.Errorf("failed to load prompt templates: %w", err)
	}

	respCache := orchestrator.NewResponseCache(&cfg.Cache)
	orchSvc := orchestrator.NewService(orchestrator.StaticSettings{Config: &cfg.Settings}, respCache, nil)
	gen := orchSvc.Generator()

	provider, err := store.NewFromConfig(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer provider.Close()
	persister := store.NewPersister(provider)

	deck := make([]tarot.Card, 0, len(kb.AllCards()))
	for _, card := range kb.AllCards() {
		deck = append(deck, *card)
	}
	shuffler := tarot.NewShuffler(deck)
	allocator := reading.NewAllocator(nil)

	engine := reading.NewEngine(gen, enricher, builder, shuffler, allocator, &cfg.Reading)
	parallel := reading.NewParallelEngine(gen, enricher, builder, shuffler, allocator, reading.CelticCrossWorkflow(), &cfg.Reading)
	streamer := streaming.NewStreamer(engine, parallel, enricher, shuffler, gen, persister, &cfg.Reading)

	srv := server.New(&cfg.Server, orchSvc, engine, parallel, streamer, retriever, persister, respCache)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		slog.Info("Shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// IndexCmd rebuilds the vector index from the knowledge base.
type IndexCmd struct{}

func (c *IndexCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	kb, err := knowledge.Load(cfg.RAG.KnowledgePath)
	if err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}
	embedder, err := embedders.Default(&cfg.RAG.Embedder)
	if err != nil {
		return fmt.Errorf("indexing requires an embedder: %w", err)
	}
	vecStore, err := vector.New(cfg.RAG.PersistPath, cfg.RAG.Collection, embedder)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}

	n, err := rag.IngestKnowledge(ctx, kb, vecStore)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d snippets into %s\n", n, cfg.RAG.Collection)
	return nil
}

// ValidateCmd checks the configuration file and knowledge base.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	kb, err := knowledge.Load(cfg.RAG.KnowledgePath)
	if err != nil {
		return fmt.Errorf("knowledge base check failed: %w", err)
	}
	fmt.Printf("Configuration OK (%d cards, %d spreads)\n", len(kb.AllCards()), len(kb.AllSpreads()))
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("arcanum"),
		kong.Description("arcanum - AI tarot reading pipeline"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	output := os.Stderr
	if cli.LogFile != "" {
		f, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		output = f
	}
	logger.Init(level, output, cli.LogFormat)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
