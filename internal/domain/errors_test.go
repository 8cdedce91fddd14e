package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestSearchParseError(t *testing.T) {
	cause := errors.New("not a number")
	err := fmt.Errorf("normalize: %w", NewParseError("filter[distance]", cause))

	if !errors.Is(err, ErrInvalidSearch) {
		t.Fatal("expected errors.Is(err, ErrInvalidSearch)")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause must stay reachable")
	}
	var pe *SearchParseError
	if !errors.As(err, &pe) || pe.Param != "filter[distance]" {
		t.Fatalf("expected SearchParseError for filter[distance], got %v", err)
	}
}

func TestSearchExecutionError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &SearchExecutionError{Err: cause}
	if !errors.Is(err, ErrSearchFailed) || !errors.Is(err, cause) {
		t.Fatal("execution error must match ErrSearchFailed and its cause")
	}
	if errors.Is(err, ErrInvalidSearch) {
		t.Fatal("execution error must not look like a parse error")
	}
}
