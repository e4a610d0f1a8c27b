// Package pipeline implements the incremental catalog-ingestion pipeline:
// enumerate the full universe of columnar index files, diff it against the
// destination's own file manifests, and absorb the delta one file at a
// time. Correctness rests entirely on set-difference reconciliation
// against DuckLake's manifest; the pipeline keeps no ledger of its own.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/backoff"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/crawl"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/epoch"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/metrics"
)

// Lake is the storage-engine contract the pipeline runs against. The
// production implementation is lake.DB; tests use a recorded-call fake.
type Lake interface {
	TableExists(ctx context.Context, table string) (bool, error)
	ListDataFiles(ctx context.Context, table string) (map[string]struct{}, error)
	CreateTableFromFile(ctx context.Context, table, sampleURL string) error
	AddDataFile(ctx context.Context, table, fileURL string, allowMissing bool) error
	AddColumnIfAbsent(ctx context.Context, table, column, columnType string) error
	ReplaceArchiveView(ctx context.Context, view, newTable, oldTable, tsColumn string) error
}

// MetadataSource fetches the ordered list of crawl batches.
type MetadataSource interface {
	Fetch(ctx context.Context) ([]crawl.Batch, error)
}

// CatalogExpander expands crawl batches into source files.
type CatalogExpander interface {
	Expand(ctx context.Context, batches []crawl.Batch) ([]crawl.File, error)
}

// Pipeline wires the stages of one ingestion run.
type Pipeline struct {
	Meta    MetadataSource
	Catalog CatalogExpander
	Lake    Lake
	Backoff *backoff.Controller
	Metrics *metrics.Metrics

	// FilePrefix is the transport base prepended to every relative path
	// (e.g. "https://data.commoncrawl.org/" or "s3://commoncrawl/").
	FilePrefix string

	// ProgressEvery is the progress log sampling cadence (first file and
	// every Nth). Zero means 10.
	ProgressEvery int
}

// Stats counts per-file terminal outcomes for one destination.
type Stats struct {
	Absorbed  int
	Skipped   int
	Abandoned int
}

// Summary describes one pipeline run.
type Summary struct {
	Crawls      int
	CatalogSize int
	DeltaOld    int
	DeltaNew    int
	Old         Stats
	New         Stats
	Cancelled   bool
}

// Run executes one full pipeline pass. Per-file failures are contained
// inside the executor; only metadata, catalog, and schema-setup failures
// surface as errors. Cancellation is not an error, no matter which stage
// it interrupts: the summary reports it and the next run completes the
// remainder.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	batches, err := p.Meta.Fetch(ctx)
	if err != nil {
		return p.stopOrFail(summary, err)
	}
	summary.Crawls = len(batches)

	files, err := p.Catalog.Expand(ctx, batches)
	if err != nil {
		return p.stopOrFail(summary, err)
	}
	summary.CatalogSize = len(files)
	p.Metrics.SetCatalogSize(len(files))

	if err := p.ensureTables(ctx, files); err != nil {
		return p.stopOrFail(summary, err)
	}
	if err := p.reconcileSchema(ctx); err != nil {
		return p.stopOrFail(summary, err)
	}

	absorbed, err := p.absorbedUnion(ctx)
	if err != nil {
		return p.stopOrFail(summary, err)
	}

	// Old is processed fully before New, matching the two-phase source
	// structure. The destinations are independent; the ordering exists
	// for comprehensible progress reporting.
	deltaOld := Delta(files, epoch.Old, p.FilePrefix, absorbed)
	summary.DeltaOld = len(deltaOld)
	p.Metrics.SetDeltaSize(epoch.TableOld, len(deltaOld))
	log.Printf("[pipeline] %d new files for %s", len(deltaOld), epoch.TableOld)

	summary.Old, summary.Cancelled = p.ingest(ctx, deltaOld, epoch.Old)
	if summary.Cancelled {
		log.Println("[pipeline] Run stopped by cancellation; remaining files left for the next run")
		return summary, nil
	}

	deltaNew := Delta(files, epoch.New, p.FilePrefix, absorbed)
	summary.DeltaNew = len(deltaNew)
	p.Metrics.SetDeltaSize(epoch.TableNew, len(deltaNew))
	log.Printf("[pipeline] %d new files for %s", len(deltaNew), epoch.TableNew)

	summary.New, summary.Cancelled = p.ingest(ctx, deltaNew, epoch.New)
	if summary.Cancelled {
		log.Println("[pipeline] Run stopped by cancellation; remaining files left for the next run")
		return summary, nil
	}

	if err := p.publishView(ctx); err != nil {
		return p.stopOrFail(summary, err)
	}
	return summary, nil
}

// stopOrFail separates the two ways a stage error ends a run: a
// cancellation surfacing through any stage is a graceful stop reported in
// the summary, everything else is a failure.
func (p *Pipeline) stopOrFail(summary *Summary, err error) (*Summary, error) {
	if errors.Is(err, context.Canceled) {
		summary.Cancelled = true
		log.Println("[pipeline] Run stopped by cancellation; remaining files left for the next run")
		return summary, nil
	}
	return nil, err
}

// absorbedUnion lists both destinations' manifests and merges them. Both
// are consulted for every epoch: a file misrouted into the wrong
// destination by a prior run counts as absorbed and is never re-ingested.
func (p *Pipeline) absorbedUnion(ctx context.Context) (map[string]struct{}, error) {
	union := make(map[string]struct{})
	for _, table := range []string{epoch.TableOld, epoch.TableNew} {
		manifest, err := p.Lake.ListDataFiles(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("listing absorbed files for %s: %w", table, err)
		}
		for path := range manifest {
			union[path] = struct{}{}
		}
	}
	log.Printf("[pipeline] %d files already absorbed across both destinations", len(union))
	return union, nil
}

// publishView replaces the unified archives view. It runs only after both
// destination schemas are final for the run; it reads only committed
// state, so a replaced view is always consistent.
func (p *Pipeline) publishView(ctx context.Context) error {
	if err := p.Lake.ReplaceArchiveView(ctx,
		epoch.ViewName, epoch.TableNew, epoch.TableOld, epoch.TimestampColumn); err != nil {
		return fmt.Errorf("publishing unified view: %w", err)
	}
	return nil
}

func (p *Pipeline) progressEvery() int {
	if p.ProgressEvery <= 0 {
		return 10
	}
	return p.ProgressEvery
}
