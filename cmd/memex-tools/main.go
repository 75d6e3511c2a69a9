// Command memex-tools serves the eight retrieval tools of the Tool
// Service over MCP stdio, read-only against an existing record store
// and vector index (spec §6.3).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"memex/internal/config"
	"memex/internal/embedder"
	"memex/internal/metrics"
	"memex/internal/observability"
	"memex/internal/record"
	"memex/internal/toolservice"
	"memex/internal/vectorindex"
)

func main() {
	configPath := flag.String("config", "", "path to memex config YAML")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sink := metrics.Sink(metrics.NoopSink{})
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitOTel(ctx, cfg.Telemetry)
		if err != nil {
			log.Warn().Err(err).Msg("otel init failed, running without telemetry export")
		} else {
			defer func() { _ = shutdown(context.Background()) }()
			observability.EnableOTelLogging(cfg.Telemetry.ServiceName)
			sink = metrics.NewOtelMetrics()
		}
	}

	store, err := record.NewFileStore(cfg.RecordDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open record store")
	}

	index, err := openVectorIndex(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("vector index unavailable at startup, tools degrade to fallback mode")
		index = nil
	}

	embed := embedder.NewClient(cfg.Embedding, cfg.Vector.Dimension)

	svc := toolservice.New(store, index, embed, toolservice.WithMetrics(sink))
	server := newServer(svc)

	log.Info().Str("record_dir", cfg.RecordDir).Msg("memex-tools starting")
	if err := server.serve(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("tool server stopped with error")
	}
	log.Info().Msg("memex-tools stopped")
}

func openVectorIndex(cfg config.Config) (vectorindex.VectorStore, error) {
	switch cfg.Vector.Backend {
	case "qdrant":
		return vectorindex.NewQdrantVector(cfg.Vector.Endpoint, cfg.Vector.Collection, cfg.Vector.Dimension, cfg.Vector.Metric)
	case "chromem":
		return vectorindex.NewChromemVector(cfg.Vector.DataDir, cfg.Vector.Collection, cfg.Vector.Dimension)
	case "memory":
		return vectorindex.NewMemoryVector(cfg.Vector.Dimension), nil
	default:
		os.Stderr.WriteString("unknown vector backend " + cfg.Vector.Backend + ", falling back to memory\n")
		return vectorindex.NewMemoryVector(cfg.Vector.Dimension), nil
	}
}
