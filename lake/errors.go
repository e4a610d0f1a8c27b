package lake

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failed storage operation. Retryable vs. fatal is a
// structural property of the returned error, not something callers infer
// from message text.
type Kind int

const (
	// KindOther is any failure that is not a throttling condition.
	KindOther Kind = iota

	// KindThrottled means the remote source denied access due to rate
	// limiting. The operation will succeed if retried after the limiter's
	// recovery window.
	KindThrottled
)

// OpError is the error type for every failed lake operation.
type OpError struct {
	Kind  Kind
	Op    string
	Table string
	File  string
	Err   error
}

func (e *OpError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("lake %s %s (%s): %v", e.Op, e.Table, e.File, e.Err)
	}
	if e.Table != "" {
		return fmt.Sprintf("lake %s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("lake %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// IsThrottled reports whether err is a throttling-class lake failure.
func IsThrottled(err error) bool {
	var oe *OpError
	return errors.As(err, &oe) && oe.Kind == KindThrottled
}

// classify maps a raw driver error to an error kind. The DuckDB httpfs
// extension surfaces remote throttling as HTTP 403 in the message text;
// the substring match is confined to this single boundary.
func classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	msg := err.Error()
	if strings.Contains(msg, "403") || strings.Contains(msg, "rate limit") {
		return KindThrottled
	}
	return KindOther
}

func opErr(op, table, file string, err error) *OpError {
	return &OpError{Kind: classify(err), Op: op, Table: table, File: file, Err: err}
}
