package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/crawl"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/epoch"
)

// Delta computes the ingestion delta for one epoch: the catalog restricted
// to that epoch, minus every file already present in either destination's
// manifest. The result is sorted by (crawl, path) so repeated runs process
// files in the same sequence.
func Delta(catalog []crawl.File, ep epoch.Epoch, prefix string, absorbed map[string]struct{}) []crawl.File {
	var delta []crawl.File
	for _, f := range catalog {
		if epoch.Route(f.Crawl) != ep {
			continue
		}
		if _, ok := absorbed[prefix+f.Path]; ok {
			continue
		}
		delta = append(delta, f)
	}
	sort.Slice(delta, func(i, j int) bool {
		if delta[i].Crawl != delta[j].Crawl {
			return delta[i].Crawl < delta[j].Crawl
		}
		return delta[i].Path < delta[j].Path
	})
	return delta
}

// ensureTables creates any destination table that does not exist yet, with
// zero rows, seeded from the lexicographically maximal file path for its
// epoch. Paths embed monotonically increasing crawl/partition identifiers,
// so the maximal path is the newest file and its schema is a superset of
// everything older in the epoch.
func (p *Pipeline) ensureTables(ctx context.Context, catalog []crawl.File) error {
	// New epoch: the newest file overall.
	sampleNew := maxPath(catalog, func(crawl.File) bool { return true })

	// Old epoch: the newest file among batches strictly before the boundary.
	sampleOld := maxPath(catalog, func(f crawl.File) bool { return epoch.Route(f.Crawl) == epoch.Old })

	for _, dest := range []struct {
		table  string
		sample string
	}{
		{epoch.TableNew, sampleNew},
		{epoch.TableOld, sampleOld},
	} {
		exists, err := p.Lake.TableExists(ctx, dest.table)
		if err != nil {
			return fmt.Errorf("checking table %s: %w", dest.table, err)
		}
		if exists {
			continue
		}
		if dest.sample == "" {
			log.Printf("[pipeline] WARNING: no catalog files for %s, table creation deferred", dest.table)
			continue
		}
		if err := p.Lake.CreateTableFromFile(ctx, dest.table, p.FilePrefix+dest.sample); err != nil {
			return fmt.Errorf("creating table %s: %w", dest.table, err)
		}
	}
	return nil
}

func maxPath(catalog []crawl.File, keep func(crawl.File) bool) string {
	max := ""
	for _, f := range catalog {
		if keep(f) && f.Path > max {
			max = f.Path
		}
	}
	return max
}
