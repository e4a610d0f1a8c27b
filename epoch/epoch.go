// Package epoch routes crawl batches to their destination schema epoch.
// Common Crawl changed the columnar index schema at CC-MAIN-2021-49: from
// that crawl onward fetch_time carries a timezone. Everything before lands
// in the old table, everything from the boundary onward in the new one.
package epoch

import "strings"

// Epoch identifies one of the two destination schema epochs.
type Epoch int

const (
	// Old covers CC-MAIN-2013-20 through CC-MAIN-2021-43
	// (fetch_time is TIMESTAMP, no timezone).
	Old Epoch = iota

	// New covers CC-MAIN-2021-49 onwards
	// (fetch_time is TIMESTAMP WITH TIME ZONE).
	New
)

// Boundary is the first crawl of the new epoch. Crawl ids embed zero-padded
// year/week segments, so lexicographic comparison is chronological.
const Boundary = "CC-MAIN-2021-49"

// Destination table and view names. Fixed constants: these are the only
// identifiers the pipeline ever interpolates into SQL.
const (
	TableOld = "cc_main_2013_to_2021"
	TableNew = "cc_main_2021_and_forward"
	ViewName = "archives"
)

// TimestampColumn is the column whose representation differs between epochs.
const TimestampColumn = "fetch_time"

// RequiredColumns are columns added to the index in later crawls that the
// old table must carry (nullable VARCHAR) so the unified view lines up.
var RequiredColumns = []string{
	"content_languages",
	"content_charset",
	"fetch_redirect",
}

// DeniedCrawls are the earliest crawls, which have no columnar index.
var DeniedCrawls = map[string]bool{
	"CC-MAIN-2012":      true,
	"CC-MAIN-2009-2010": true,
	"CC-MAIN-2008-2009": true,
}

// Route returns the destination epoch for a crawl id. Pure function; the
// boundary crawl itself routes to New.
func Route(crawlID string) Epoch {
	if strings.Compare(crawlID, Boundary) < 0 {
		return Old
	}
	return New
}

// String returns the epoch label used in logs and metrics.
func (e Epoch) String() string {
	if e == Old {
		return "2013_to_2021"
	}
	return "2021_and_forward"
}

// Table returns the destination table name for the epoch.
func (e Epoch) Table() string {
	if e == Old {
		return TableOld
	}
	return TableNew
}
