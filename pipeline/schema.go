package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/epoch"
)

// reconcileSchema backfills the old destination with every column later
// crawls introduced, as nullable VARCHAR. Runs once, before ingestion.
// A column that already exists is success; any other failure aborts the
// run, since an inconsistent destination schema would corrupt the unified
// view.
func (p *Pipeline) reconcileSchema(ctx context.Context) error {
	exists, err := p.Lake.TableExists(ctx, epoch.TableOld)
	if err != nil {
		return fmt.Errorf("checking table %s: %w", epoch.TableOld, err)
	}
	if !exists {
		return nil
	}

	for _, col := range epoch.RequiredColumns {
		if err := p.Lake.AddColumnIfAbsent(ctx, epoch.TableOld, col, "VARCHAR"); err != nil {
			return fmt.Errorf("schema reconciliation for %s: %w", epoch.TableOld, err)
		}
	}
	log.Printf("[pipeline] Schema reconciled for %s (%d required columns)",
		epoch.TableOld, len(epoch.RequiredColumns))
	return nil
}
