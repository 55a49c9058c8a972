package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNotFound is returned when a note is not found
	ErrNotFound = errors.New("note not found")

	// ErrStoreClosed is returned when trying to use a closed store
	ErrStoreClosed = errors.New("store is closed")

	// ErrEngineClosed is returned when trying to use a closed engine
	ErrEngineClosed = errors.New("engine is closed")

	// ErrNoProvider is returned when an operation needs an embedding
	// provider but the engine is unbound
	ErrNoProvider = errors.New("no embedding provider bound")

	// ErrProviderInit is returned when a provider fails to initialize
	ErrProviderInit = errors.New("provider initialization failed")

	// ErrEmbedFailed is returned when the provider fails to embed a text
	ErrEmbedFailed = errors.New("embedding failed")

	// ErrEmptyQuery is returned when a search query is empty
	ErrEmptyQuery = errors.New("empty query")

	// ErrInvalidTopK is returned when the requested result count is below one
	ErrInvalidTopK = errors.New("top-k must be at least 1")
)

// EngineError wraps errors with operation context.
type EngineError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("noterank: %v", e.Err)
	}
	return fmt.Sprintf("noterank: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *EngineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Op: op, Err: err}
}
