package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/crawl"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/epoch"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/lake"
)

// ingest absorbs the delta into one destination, sequentially. Per file:
//
//	PENDING -> ABSORBED   add succeeded
//	PENDING -> PENDING    throttled; fixed backoff, then retry the same file
//	PENDING -> SKIPPED    non-retryable add failure (warn, continue)
//	PENDING -> ABANDONED  cancellation observed; left for the next run
//
// The old destination tolerates files its historical path lists reference
// but that no longer exist upstream; the new destination is strict.
// A single bad file never aborts the batch.
func (p *Pipeline) ingest(ctx context.Context, delta []crawl.File, ep epoch.Epoch) (Stats, bool) {
	var stats Stats
	if len(delta) == 0 {
		return stats, false
	}

	table := ep.Table()
	allowMissing := ep == epoch.Old
	every := p.progressEvery()

	log.Printf("[ingest] Adding %d files to %s...", len(delta), table)

	for i, f := range delta {
		select {
		case <-ctx.Done():
			stats.Abandoned = len(delta) - i
			log.Printf("[ingest] Stopped at file %d/%d", i+1, len(delta))
			return stats, true
		default:
		}

		url := p.FilePrefix + f.Path
		if i == 0 || (i+1)%every == 0 {
			log.Printf("[ingest] Adding file %d/%d: %s", i+1, len(delta), url)
		}

		for {
			start := time.Now()
			// The in-flight add always runs to completion; a stop request
			// is honored at the next loop-top check or backoff wait.
			err := p.Lake.AddDataFile(context.WithoutCancel(ctx), table, url, allowMissing)
			if err == nil {
				stats.Absorbed++
				p.Metrics.RecordAbsorbed(table)
				p.Metrics.ObserveAddDuration(time.Since(start).Seconds())
				break
			}

			if lake.IsThrottled(err) {
				log.Printf("[ingest] Throttled on %s, backing off %s: %v",
					url, p.Backoff.Interval(), err)
				p.Metrics.RecordThrottleWait()
				if cancelled := p.Backoff.Wait(ctx); cancelled {
					stats.Abandoned = len(delta) - i
					log.Printf("[ingest] Stopped at file %d/%d", i+1, len(delta))
					return stats, true
				}
				continue
			}

			log.Printf("[ingest] WARNING: failed to add %s: %v", url, err)
			stats.Skipped++
			p.Metrics.RecordSkipped(table)
			break
		}
	}

	log.Printf("[ingest] %s done: %d absorbed, %d skipped", table, stats.Absorbed, stats.Skipped)
	return stats, false
}
