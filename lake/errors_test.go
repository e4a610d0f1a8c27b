package lake

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"HTTP GET error ... 403 Forbidden", KindThrottled},
		{"IO Error: rate limit exceeded", KindThrottled},
		{"upstream says Rate Limit", KindOther}, // matching is case-sensitive, like the engine's messages
		{"Binder Error: column not found", KindOther},
		{"HTTP GET error ... 404 Not Found", KindOther},
		{"", KindOther},
	}
	for _, tc := range cases {
		if got := classify(errors.New(tc.msg)); got != tc.want {
			t.Errorf("classify(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestIsThrottled(t *testing.T) {
	throttled := opErr("add_file", "t", "f.parquet", errors.New("HTTP 403"))
	if !IsThrottled(throttled) {
		t.Error("403 add failure not recognized as throttling")
	}
	if !IsThrottled(fmt.Errorf("adding file: %w", throttled)) {
		t.Error("wrapped throttling error not recognized")
	}

	plain := opErr("add_file", "t", "f.parquet", errors.New("parquet footer corrupt"))
	if IsThrottled(plain) {
		t.Error("non-throttling failure classified as throttling")
	}
	if IsThrottled(errors.New("403")) {
		t.Error("bare error without classification must not report throttling")
	}
	if IsThrottled(nil) {
		t.Error("nil error reported as throttling")
	}
}

func TestOpErrorMessage(t *testing.T) {
	cause := errors.New("HTTP 403")
	err := opErr("add_file", "cc_main_2021_and_forward", "part-00000.parquet", cause)

	msg := err.Error()
	for _, part := range []string{"add_file", "cc_main_2021_and_forward", "part-00000.parquet", "HTTP 403"} {
		if !strings.Contains(msg, part) {
			t.Errorf("error %q missing %q", msg, part)
		}
	}
	if !errors.Is(err, cause) {
		t.Error("OpError does not unwrap to its cause")
	}
}
