// Package datasource defines the core's error-handling vocabulary and the
// DataSource / Decoder capability contracts it pulls frames through. Every
// fallible operation in this module returns a Result instead of panicking;
// the render thread never allocates and never propagates an unexpected
// error beyond silencing its output span.
package datasource

import "fmt"

// Result is the outcome of a fallible core operation. The zero value is
// Success so a freshly-declared Result reads as "nothing went wrong yet".
type Result int

const (
	Success Result = iota
	InvalidArgs
	InvalidOperation
	OutOfMemory
	Busy
	AtEnd
	Unavailable
	NoBackend
	NoDataAvailable
	Cancelled
	TooBig
	NotImplemented
)

var names = map[Result]string{
	Success:          "success",
	InvalidArgs:      "invalid args",
	InvalidOperation: "invalid operation",
	OutOfMemory:      "out of memory",
	Busy:             "busy",
	AtEnd:            "at end",
	Unavailable:      "unavailable",
	NoBackend:        "no backend",
	NoDataAvailable:  "no data available",
	Cancelled:        "cancelled",
	TooBig:           "too big",
	NotImplemented:   "not implemented",
}

func (r Result) String() string {
	if s, ok := names[r]; ok {
		return s
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// Error satisfies the error interface so callers that only care whether an
// operation failed can still write `if err := f(); err != nil`. Success,
// Busy and AtEnd are not failures but implementing Error unconditionally
// keeps Result a single type across the whole module; callers that need to
// distinguish "not yet done" from "failed" should compare the Result value
// directly (see IsFailure).
func (r Result) Error() string {
	return r.String()
}

// IsFailure reports whether r represents an actual failure, as opposed to a
// transient or non-error terminal state (Success, Busy, AtEnd).
func (r Result) IsFailure() bool {
	switch r {
	case Success, Busy, AtEnd:
		return false
	default:
		return true
	}
}
