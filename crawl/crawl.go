// Package crawl enumerates the universe of source files: it fetches the
// Common Crawl collection metadata and expands each crawl into its list of
// columnar index parquet paths.
package crawl

import (
	"fmt"
	"net/http"
	"time"
)

// Batch is one crawl from the collection metadata (collinfo.json).
// Immutable once fetched; lives for a single pipeline run.
type Batch struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TimeGate string `json:"timegate"`
	CDXAPI   string `json:"cdx-api"`
}

// File is one source parquet file: the crawl it belongs to plus its path
// relative to the data endpoint. The absolute location is computed by the
// pipeline by prefixing the selected transport's base.
//
// Precondition on the upstream source: relative paths embed zero-padded
// crawl and partition segments, so lexicographic order on Path is
// chronological order. Table seeding relies on this.
type File struct {
	Crawl string
	Path  string
}

// MetadataError reports that the collection metadata could not be fetched
// or parsed. There is no partial-metadata mode; this aborts the run.
type MetadataError struct {
	Source string
	Err    error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("crawl metadata unavailable from %s: %v", e.Source, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// ManifestMissingError reports that a single crawl's paths manifest is
// absent upstream. The batch is skipped; the run continues.
type ManifestMissingError struct {
	Crawl string
	URL   string
}

func (e *ManifestMissingError) Error() string {
	return fmt.Sprintf("paths manifest missing for crawl %s (%s)", e.Crawl, e.URL)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}
