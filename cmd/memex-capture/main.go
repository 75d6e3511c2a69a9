// Command memex-capture runs the Capture/Ingest Pipeline (C) as a
// background daemon: on a timer it screenshots every active display,
// OCRs each image, persists a record per screen, and upserts the
// non-empty ones into the vector index (spec §4.3).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"memex/internal/capture"
	"memex/internal/config"
	"memex/internal/embedder"
	"memex/internal/metrics"
	"memex/internal/observability"
	"memex/internal/record"
	"memex/internal/vectorindex"
)

func main() {
	configPath := flag.String("config", "", "path to memex config YAML")
	source := flag.String("source", "memex-capture", "attribution string written into each capture record")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sink metrics.Sink = metrics.NoopSink{}
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
		log.Warn().Err(err).Msg("vector index unavailable at startup, captures persist without indexing until repaired")
		index = nil
	}

	embed := embedder.NewClient(cfg.Embedding, cfg.Vector.Dimension)

	pipeline := capture.New(
		capture.Config{
			TickInterval: cfg.CaptureInterval(),
			RecordDir:    cfg.RecordDir,
			Source:       *source,
		},
		store,
		index,
		embed,
		capture.DisplayCapturer{},
		capture.NewHTTPOCR(cfg.OCR),
		sink,
	)

	if err := pipeline.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start capture pipeline")
	}
	log.Info().Dur("interval", cfg.CaptureInterval()).Msg("memex-capture running")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining in-flight tick")
	if err := pipeline.Stop(); err != nil {
		log.Error().Err(err).Msg("capture pipeline stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("memex-capture stopped")
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
