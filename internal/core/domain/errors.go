package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed or out-of-range customer fields.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// NotFoundError reports a customer id with no record.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("customer %d not found", e.ID)
}

// StorageError reports a failed read or write of the durable document.
// The mutation that caused it was not applied.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Navigation session errors. None of them are fatal to a session.
var (
	ErrRoutingUnavailable     = errors.New("route unavailable")
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")
	ErrPositionUnavailable    = errors.New("position not available")
	ErrNoValidWaypoints       = errors.New("no valid customers selected")
	ErrRecordsNotLoaded       = errors.New("customer records not loaded")
	ErrRecordsUnavailable     = errors.New("customer records unavailable")
	ErrRouteNotSet            = errors.New("route not set")
)

// ErrMessagingUnavailable is returned when no broker is connected.
var ErrMessagingUnavailable = errors.New("messaging unavailable")

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err carries a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsStorage reports whether err carries a *StorageError.
func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}
