package repository

import "errors"

// Sentinel kinds for table errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrMissingColumn  = errors.New("missing column")
	ErrMalformedTable = errors.New("malformed table")
)
