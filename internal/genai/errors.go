// Package genai is the recommendation client for the generative-language service.
package genai

import (
	"errors"
	"fmt"
)

// FetchKind classifies why a recommendation request failed.
type FetchKind string

const (
	// NetworkUnavailable covers transport errors and timeouts.
	NetworkUnavailable FetchKind = "network_unavailable"
	// InvalidResponseShape means the service answered but the payload was unusable.
	InvalidResponseShape FetchKind = "invalid_response_shape"
	// UpstreamError means the service reported an error.
	UpstreamError FetchKind = "upstream_error"
)

// FetchError is returned by every recommender on failure.
type FetchError struct {
	Err        error
	Kind       FetchKind
	StatusCode int
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err.
// Errors that are not a *FetchError count as UpstreamError.
func KindOf(err error) FetchKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return UpstreamError
}

func networkErr(err error) *FetchError {
	return &FetchError{Kind: NetworkUnavailable, Err: err}
}

func shapeErr(format string, args ...any) *FetchError {
	return &FetchError{Kind: InvalidResponseShape, Err: fmt.Errorf(format, args...)}
}

func upstreamErr(status int, err error) *FetchError {
	return &FetchError{Kind: UpstreamError, StatusCode: status, Err: err}
}
