package service

import "errors"

// Sentinel kinds returned to the API and the pipeline commands.
var (
	ErrStationNotFound    = errors.New("station not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrMissingCoordinates = errors.New("missing coordinates")
)
