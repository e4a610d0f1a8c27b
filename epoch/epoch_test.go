package epoch

import "testing"

func TestRoute(t *testing.T) {
	cases := []struct {
		crawl string
		want  Epoch
	}{
		{"CC-MAIN-2013-20", Old},
		{"CC-MAIN-2015-06", Old},
		{"CC-MAIN-2021-43", Old},
		// The boundary crawl itself routes entirely to New.
		{"CC-MAIN-2021-49", New},
		{"CC-MAIN-2022-05", New},
		{"CC-MAIN-2024-10", New},
	}

	for _, tc := range cases {
		if got := Route(tc.crawl); got != tc.want {
			t.Errorf("Route(%q) = %v, want %v", tc.crawl, got, tc.want)
		}
	}
}

func TestRouteIsPure(t *testing.T) {
	for i := 0; i < 3; i++ {
		if Route("CC-MAIN-2021-49") != New {
			t.Fatal("boundary crawl must always route to New")
		}
	}
}

func TestTables(t *testing.T) {
	if Old.Table() != TableOld {
		t.Errorf("Old.Table() = %q, want %q", Old.Table(), TableOld)
	}
	if New.Table() != TableNew {
		t.Errorf("New.Table() = %q, want %q", New.Table(), TableNew)
	}
	if Old.Table() == New.Table() {
		t.Error("epochs must map to distinct tables")
	}
}

func TestDeniedCrawls(t *testing.T) {
	for _, id := range []string{"CC-MAIN-2012", "CC-MAIN-2009-2010", "CC-MAIN-2008-2009"} {
		if !DeniedCrawls[id] {
			t.Errorf("expected %s to be denied", id)
		}
	}
	if DeniedCrawls["CC-MAIN-2013-20"] {
		t.Error("CC-MAIN-2013-20 has a columnar index and must not be denied")
	}
}

func TestRequiredColumns(t *testing.T) {
	want := map[string]bool{
		"content_languages": true,
		"content_charset":   true,
		"fetch_redirect":    true,
	}
	if len(RequiredColumns) != len(want) {
		t.Fatalf("RequiredColumns = %v, want %d columns", RequiredColumns, len(want))
	}
	for _, col := range RequiredColumns {
		if !want[col] {
			t.Errorf("unexpected required column %q", col)
		}
	}
}
