package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrUnknownTenant signals a request for a tenant this deployment does not serve.
	ErrUnknownTenant = errors.New("unknown tenant")
	// ErrInvalidSearch signals caller input that cannot be turned into a search.
	ErrInvalidSearch = errors.New("invalid search parameters")
	// ErrSearchFailed signals an index failure while executing a search.
	ErrSearchFailed = errors.New("search failed")
	// ErrForbidden signals an actor context that may not use a feature.
	ErrForbidden = errors.New("forbidden")
)

// SearchParseError reports which request parameter could not be interpreted.
type SearchParseError struct {
	Param string
	Err   error
}

func (e *SearchParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid parameter %s", e.Param)
	}
	return fmt.Sprintf("invalid parameter %s: %v", e.Param, e.Err)
}

// Is lets errors.Is match ErrInvalidSearch.
func (e *SearchParseError) Is(target error) bool { return target == ErrInvalidSearch }

func (e *SearchParseError) Unwrap() error { return e.Err }

// NewParseError creates a SearchParseError for param.
func NewParseError(param string, err error) error {
	return &SearchParseError{Param: param, Err: err}
}

// NewParseErrorf creates a SearchParseError with a formatted cause.
func NewParseErrorf(param, format string, args ...any) error {
	return &SearchParseError{Param: param, Err: fmt.Errorf(format, args...)}
}

// SearchExecutionError wraps a failure of the underlying index.
type SearchExecutionError struct {
	Err error
}

func (e *SearchExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrSearchFailed.Error(), e.Err)
}

// Is lets errors.Is match ErrSearchFailed.
func (e *SearchExecutionError) Is(target error) bool { return target == ErrSearchFailed }

func (e *SearchExecutionError) Unwrap() error { return e.Err }
