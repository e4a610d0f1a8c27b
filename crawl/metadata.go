package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"

	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/epoch"
)

// DefaultCollinfoURL is the public collection metadata endpoint.
const DefaultCollinfoURL = "https://index.commoncrawl.org/collinfo.json"

// DefaultCollinfoOverride is the local file substituted transparently for
// the remote endpoint when it exists in the working directory.
const DefaultCollinfoOverride = "collinfo.json"

// MetadataSource fetches the ordered list of crawl batches.
type MetadataSource struct {
	client    *http.Client
	url       string
	localPath string
}

// NewMetadataSource returns a source reading from url, preferring the file
// at localPath when it exists. Empty arguments select the defaults.
func NewMetadataSource(url, localPath string) *MetadataSource {
	if url == "" {
		url = DefaultCollinfoURL
	}
	if localPath == "" {
		localPath = DefaultCollinfoOverride
	}
	return &MetadataSource{
		client:    newHTTPClient(),
		url:       url,
		localPath: localPath,
	}
}

// Fetch returns all known crawl batches, sorted ascending by id, with the
// crawls that lack a columnar index filtered out. Failure to reach the
// endpoint or to parse its payload is a *MetadataError.
func (s *MetadataSource) Fetch(ctx context.Context) ([]Batch, error) {
	raw, source, err := s.read(ctx)
	if err != nil {
		return nil, &MetadataError{Source: source, Err: err}
	}

	var batches []Batch
	if err := json.Unmarshal(raw, &batches); err != nil {
		return nil, &MetadataError{Source: source, Err: fmt.Errorf("malformed collinfo: %w", err)}
	}

	kept := batches[:0]
	for _, b := range batches {
		if b.ID == "" {
			return nil, &MetadataError{Source: source, Err: fmt.Errorf("collinfo entry with empty id")}
		}
		if epoch.DeniedCrawls[b.ID] {
			continue
		}
		kept = append(kept, b)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })

	log.Printf("[crawl] Fetched metadata from %s: %d crawls to process", source, len(kept))
	return kept, nil
}

func (s *MetadataSource) read(ctx context.Context) (data []byte, source string, err error) {
	if _, statErr := os.Stat(s.localPath); statErr == nil {
		data, err = os.ReadFile(s.localPath)
		return data, s.localPath, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, s.url, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.url, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.url, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err = io.ReadAll(resp.Body)
	return data, s.url, err
}
