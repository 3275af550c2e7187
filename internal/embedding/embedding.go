// Package embedding converts cleaned text records into fixed-dimension
// vectors through an external provider, batching requests and retrying
// transient failures.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Provider is an external embedding service. Embed returns one vector per
// input text, in input order. Errors are classified as transient or fatal
// through ProviderError.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrorKind classifies a provider failure. Transient failures (rate limit,
// network blip) may succeed on retry; fatal failures (bad auth, malformed
// request) will not.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ProviderError wraps a provider failure with its retry classification.
type ProviderError struct {
	Kind ErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable provider error.
func Transient(err error) *ProviderError {
	return &ProviderError{Kind: KindTransient, Err: err}
}

// Fatal wraps err as a non-retryable provider error.
func Fatal(err error) *ProviderError {
	return &ProviderError{Kind: KindFatal, Err: err}
}

// IsTransient reports whether err is classified as retryable. Unclassified
// errors are treated as non-retryable.
func IsTransient(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind == KindTransient
	}
	return false
}
