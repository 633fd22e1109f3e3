package audit

import "errors"

var (
	// ErrStorage indicates the underlying store failed after the internal
	// retry. Callers treat it as non-fatal for the triggering business
	// operation but must surface it.
	ErrStorage = errors.New("audit: storage failure")
	// ErrInvalidFilter indicates malformed query input, e.g. an unknown
	// severity or an unparsable date. No partial results are returned.
	ErrInvalidFilter = errors.New("audit: invalid filter")
	// ErrInvalidEntry indicates an append without the required fields.
	ErrInvalidEntry = errors.New("audit: invalid entry")
	// ErrTimeout indicates a store call exceeded its deadline.
	ErrTimeout = errors.New("audit: operation timed out")
	// ErrDuplicateAppend indicates the entry's dedup key was already
	// processed; the record exists and must not be written again.
	ErrDuplicateAppend = errors.New("audit: duplicate append")
)
