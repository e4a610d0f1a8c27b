package crawl

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func gzipBytes(t *testing.T, lines []string) []byte {
	t.Helper()
	var buf strings.Builder
	gz := gzip.NewWriter(nopWriteCloser{&buf})
	if _, err := gz.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return []byte(buf.String())
}

type nopWriteCloser struct{ w *strings.Builder }

func (n nopWriteCloser) Write(p []byte) (int, error) { return n.w.Write(p) }

func TestExpand(t *testing.T) {
	manifests := map[string][]string{
		"CC-MAIN-2021-43": {
			"cc-index/table/cc-main/warc/crawl=CC-MAIN-2021-43/subset=warc/part-00000.parquet",
			"cc-index/table/cc-main/warc/crawl=CC-MAIN-2021-43/subset=warc/part-00001.parquet",
		},
		"CC-MAIN-2021-49": {
			"cc-index/table/cc-main/warc/crawl=CC-MAIN-2021-49/subset=warc/part-00000.parquet",
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for id, lines := range manifests {
			if r.URL.Path == "/crawl-data/"+id+"/cc-index-table.paths.gz" {
				w.Write(gzipBytes(t, lines))
				return
			}
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	b := NewCatalogBuilder(srv.URL)
	files, err := b.Expand(context.Background(), []Batch{
		{ID: "CC-MAIN-2021-43"},
		{ID: "CC-MAIN-2021-49"},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("got %d files, want 3: %+v", len(files), files)
	}
	for _, f := range files {
		if !strings.Contains(f.Path, "crawl="+f.Crawl+"/") {
			t.Errorf("file %q associated with wrong crawl %q", f.Path, f.Crawl)
		}
	}
}

func TestExpandSkipsMissingManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "CC-MAIN-2021-49") {
			w.Write(gzipBytes(t, []string{"cc-index/table/cc-main/warc/crawl=CC-MAIN-2021-49/part-00000.parquet"}))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	b := NewCatalogBuilder(srv.URL)
	var skipped []*ManifestMissingError
	b.OnMissingManifest = func(e *ManifestMissingError) { skipped = append(skipped, e) }

	files, err := b.Expand(context.Background(), []Batch{
		{ID: "CC-MAIN-2019-04"},
		{ID: "CC-MAIN-2021-49"},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if len(skipped) != 1 || skipped[0].Crawl != "CC-MAIN-2019-04" {
		t.Fatalf("skipped = %+v, want one entry naming CC-MAIN-2019-04", skipped)
	}
	if !strings.Contains(skipped[0].Error(), "CC-MAIN-2019-04") {
		t.Errorf("error %q does not name the batch", skipped[0].Error())
	}
}

func TestExpandTransportFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewCatalogBuilder(srv.URL)
	_, err := b.Expand(context.Background(), []Batch{{ID: "CC-MAIN-2021-49"}})
	if err == nil {
		t.Fatal("expected a fatal error for a non-404 transport failure")
	}
	if !strings.Contains(err.Error(), "CC-MAIN-2021-49") {
		t.Errorf("error %q does not name the crawl", err.Error())
	}
}
