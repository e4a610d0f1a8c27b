package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/backoff"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/crawl"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/lake"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/metrics"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	mode := flag.String("mode", "", "Access mode: auto, s3, or http (overrides config)")
	flag.Parse()

	log.Println("Common Crawl columnar index -> DuckLake ingestion")

	config, err := LoadAppConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *mode != "" {
		config.Source.Mode = *mode
	}
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	transport, err := config.ResolveTransport()
	if err != nil {
		log.Fatalf("Failed to resolve transport: %v", err)
	}
	log.Printf("Access mode: %s (file prefix %s)", transport.Mode, transport.FilePrefix)

	m := metrics.New(config.Metrics)
	m.Serve(config.Metrics.Address)

	// Cancellation is cooperative: the context is consulted before every
	// file and at one-second granularity inside backoff waits.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Interrupt received (%v). Finishing current operation and exiting...", sig)
		cancel()
	}()

	db, err := lake.Open(ctx, lake.Options{
		CatalogPath: config.CatalogPath(transport),
		CatalogName: config.DuckLake.CatalogName,
		DataPath:    config.DuckLake.DataPath,
		S3:          transport.S3,
	})
	if err != nil {
		log.Fatalf("Failed to open DuckLake catalog: %v", err)
	}
	defer db.Close()

	builder := crawl.NewCatalogBuilder(config.Source.DataURL)
	builder.OnMissingManifest = func(*crawl.ManifestMissingError) { m.RecordMissingManifest() }

	p := &pipeline.Pipeline{
		Meta:          crawl.NewMetadataSource(config.Source.IndexURL, config.Source.CollinfoPath),
		Catalog:       builder,
		Lake:          db,
		Backoff:       backoff.New(time.Duration(config.Ingest.ThrottleWaitSeconds) * time.Second),
		Metrics:       m,
		FilePrefix:    transport.FilePrefix,
		ProgressEvery: config.Ingest.ProgressInterval,
	}

	summary, err := p.Run(ctx)
	if err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}

	if summary.Cancelled {
		log.Printf("Run cancelled: %d absorbed, %d skipped, %d left for next run",
			summary.Old.Absorbed+summary.New.Absorbed,
			summary.Old.Skipped+summary.New.Skipped,
			summary.Old.Abandoned+summary.New.Abandoned)
		return
	}

	log.Printf("Run complete: %d crawls, %d catalog files, %d absorbed (%d old, %d new), %d skipped",
		summary.Crawls, summary.CatalogSize,
		summary.Old.Absorbed+summary.New.Absorbed,
		summary.Old.Absorbed, summary.New.Absorbed,
		summary.Old.Skipped+summary.New.Skipped)
	log.Printf("View ready: %s.archives", config.DuckLake.CatalogName)
}
