// Package errs defines the error taxonomy shared across the ingestion
// pipeline and the search engine. Per-item pipeline failures wrap one of
// these so the batch report can attribute them to a stage; search surfaces
// them directly to the caller.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel categories. Use errors.Is to classify wrapped errors.
var (
	ErrFetchFailed      = errors.New("fetch failed")
	ErrProcessingFailed = errors.New("processing failed")
	ErrEmbeddingFailed  = errors.New("embedding failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidQuery     = errors.New("invalid query")
)

// TransientError marks an error as retryable. The retry policy keeps trying
// while errors.As reports a transient error; everything else is terminal.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// FetchFailed wraps err into the fetch category.
func FetchFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrFetchFailed, err)
}

// ProcessingFailed wraps err into the processing category.
func ProcessingFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrProcessingFailed, err)
}

// EmbeddingFailed wraps err into the embedding category.
func EmbeddingFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
}

// StoreUnavailable wraps err into the store category.
func StoreUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// InvalidQuery builds a synchronous input-validation error. Never retried.
func InvalidQuery(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, reason)
}
