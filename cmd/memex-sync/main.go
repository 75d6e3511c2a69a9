// Command memex-sync drives a one-shot Sync/Repair pass (D): reconciling
// the record store against the vector index after a crash, a config
// change, or an embedding-model migration (spec §4.4, §6.5).
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"memex/internal/config"
	"memex/internal/embedder"
	"memex/internal/memexerr"
	"memex/internal/observability"
	"memex/internal/record"
	"memex/internal/sync"
	"memex/internal/vectorindex"
)

// Exit codes per spec §6.5.
const (
	exitSuccess          = 0
	exitPartial          = 2
	exitIndexUnavailable = 3
	exitConfigError      = 4
	exitStoreUnreadable  = 5
)

func main() {
	log.SetFlags(0)
	var (
		configPath = flag.String("config", "", "path to memex config YAML")
		rebuild    = flag.Bool("rebuild", false, "clear and reinsert every non-empty record instead of a catch-up scan")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("load config: %v", err)
		os.Exit(exitConfigError)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx := context.Background()
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitOTel(ctx, cfg.Telemetry)
		if err != nil {
			log.Printf("otel init failed, running without telemetry export: %v", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
			observability.EnableOTelLogging(cfg.Telemetry.ServiceName)
		}
	}

	store, err := record.NewFileStore(cfg.RecordDir)
	if err != nil {
		log.Printf("open record store: %v", err)
		os.Exit(exitStoreUnreadable)
	}

	index, err := openVectorIndex(cfg)
	if err != nil {
		log.Printf("open vector index: %v", err)
		os.Exit(exitIndexUnavailable)
	}

	embed := embedder.NewClient(cfg.Embedding, cfg.Vector.Dimension)
	reconciler := sync.New(store, index, embed)

	var report sync.Report
	if *rebuild {
		report, err = reconciler.Rebuild(ctx)
	} else {
		report, err = reconciler.CatchUp(ctx)
	}
	if err != nil {
		if kind, ok := memexerr.Of(err); ok && kind == memexerr.KindIoFailure {
			log.Printf("sync: store unreadable: %v", err)
			os.Exit(exitStoreUnreadable)
		}
		log.Printf("sync: %v", err)
		os.Exit(exitIndexUnavailable)
	}

	log.Printf("scanned=%d added=%d skipped_empty=%d skipped_existing=%d errors=%d duration=%s",
		report.Scanned, report.Added, report.SkippedEmpty, report.SkippedExisting, report.Errors, report.Duration)

	if report.Errors > 0 {
		os.Exit(exitPartial)
	}
	os.Exit(exitSuccess)
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
