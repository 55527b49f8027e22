package internalerr

import "errors"

// Sentinel errors shared across the build and extraction pipelines.
var (
	ErrNotFound         = errors.New("not found")
	ErrMissingField     = errors.New("missing required field")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// Configuration errors that abort an extraction run.
	ErrUnsupportedDatatype   = errors.New("unsupported datatype")
	ErrUnrecognizedCandidate = errors.New("unrecognized candidate shape")
)
