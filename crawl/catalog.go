package crawl

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// DefaultDataURL is the public HTTPS data endpoint. Paths manifests are
// always fetched from here, even when ingestion itself runs over S3.
const DefaultDataURL = "https://data.commoncrawl.org/"

// pathsManifestTemplate locates the gzipped path list for one crawl.
const pathsManifestTemplate = "crawl-data/%s/cc-index-table.paths.gz"

// CatalogBuilder expands crawl batches into the full list of source files.
type CatalogBuilder struct {
	client  *http.Client
	dataURL string

	// OnMissingManifest, if set, is called for each batch whose paths
	// manifest is absent upstream. The batch is skipped either way.
	OnMissingManifest func(*ManifestMissingError)
}

// NewCatalogBuilder returns a builder fetching paths manifests from
// dataURL. An empty dataURL selects the public endpoint.
func NewCatalogBuilder(dataURL string) *CatalogBuilder {
	if dataURL == "" {
		dataURL = DefaultDataURL
	}
	if !strings.HasSuffix(dataURL, "/") {
		dataURL += "/"
	}
	return &CatalogBuilder{
		client:  newHTTPClient(),
		dataURL: dataURL,
	}
}

// Expand resolves every batch's paths manifest and returns one File per
// listed path. A batch whose manifest is truly absent (HTTP 404) is skipped
// with a warning; any other transport failure aborts the expansion. No
// ordering is guaranteed; the reconciler sorts downstream.
func (b *CatalogBuilder) Expand(ctx context.Context, batches []Batch) ([]File, error) {
	var files []File
	for _, batch := range batches {
		paths, err := b.fetchManifest(ctx, batch.ID)
		if err != nil {
			var missing *ManifestMissingError
			if errors.As(err, &missing) {
				log.Printf("[crawl] WARNING: %v, skipping crawl", missing)
				if b.OnMissingManifest != nil {
					b.OnMissingManifest(missing)
				}
				continue
			}
			return nil, fmt.Errorf("expanding crawl %s: %w", batch.ID, err)
		}
		for _, p := range paths {
			files = append(files, File{Crawl: batch.ID, Path: p})
		}
	}
	log.Printf("[crawl] Catalog expanded: %d files across %d crawls", len(files), len(batches))
	return files, nil
}

// fetchManifest downloads and decompresses one crawl's path list.
func (b *CatalogBuilder) fetchManifest(ctx context.Context, crawlID string) ([]string, error) {
	url := b.dataURL + fmt.Sprintf(pathsManifestTemplate, crawlID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &ManifestMissingError{Crawl: crawlID, URL: url}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", url, err)
	}
	defer gz.Close()

	var paths []string
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return paths, nil
}
