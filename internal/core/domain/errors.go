package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyResult is returned when a lookup succeeded with zero geometry records.
var ErrEmptyResult = errors.New("lookup returned no geometry records")

// ErrNoClick is returned when no click has been resolved yet.
var ErrNoClick = errors.New("no click resolved yet")

// LookupTransportError wraps a network or connection failure.
type LookupTransportError struct {
	Err error
}

func (e *LookupTransportError) Error() string {
	return fmt.Sprintf("lookup transport: %v", e.Err)
}

func (e *LookupTransportError) Unwrap() error { return e.Err }

// LookupStatusError is a non-2xx response from the lookup service.
type LookupStatusError struct {
	StatusCode int
	Body       string
}

func (e *LookupStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("lookup status %d", e.StatusCode)
	}
	return fmt.Sprintf("lookup status %d: %s", e.StatusCode, e.Body)
}

// UpstreamError is a failure talking to the soil survey data source.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Upstream service error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ErrInvalidCoordinate is returned for out-of-range or non-finite coordinates.
var ErrInvalidCoordinate = errors.New("coordinate out of range")
